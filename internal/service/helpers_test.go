package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tush00nka/phonechat/internal/model"
	"tush00nka/phonechat/internal/pkg/auth"
	"tush00nka/phonechat/internal/repository/memory"
)

type capturingProvider struct {
	mu    sync.Mutex
	texts map[string][]string
	err   error
}

func newCapturingProvider() *capturingProvider {
	return &capturingProvider{texts: make(map[string][]string)}
}

func (p *capturingProvider) SendSMS(ctx context.Context, phone, text string) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts[phone] = append(p.texts[phone], text)
	return nil
}

// lastCode returns the digits of the most recent code sent to phone.
func (p *capturingProvider) lastCode(t *testing.T, phone string) string {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	texts := p.texts[phone]
	if len(texts) == 0 {
		t.Fatalf("no code sent to %s", phone)
	}
	last := texts[len(texts)-1]
	return last[strings.LastIndex(last, " ")+1:]
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event model.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func newTestAuth(store *memory.Store, provider *capturingProvider) *authService {
	tokens := auth.NewTokenManager("test-key", time.Hour)
	return NewAuthService(store.Users(), store.Verifications(), provider, tokens, AuthOptions{
		CodeTTL:  10 * time.Minute,
		HashCost: bcrypt.MinCost,
	}).(*authService)
}

func createUser(t *testing.T, store *memory.Store, phone, name string) *model.User {
	t.Helper()
	user := &model.User{Phone: phone, Name: &name}
	if err := store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func newStore() *memory.Store {
	return memory.NewStore()
}
