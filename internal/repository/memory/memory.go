// Package memory keeps every repository in process memory. It backs
// DB_DRIVER=memory and the service and handler tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tush00nka/phonechat/internal/model"
	"tush00nka/phonechat/internal/repository"
)

type Store struct {
	mu       sync.RWMutex
	users    map[string]model.User
	codes    map[string]model.VerificationCode
	messages []model.Message
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		users: make(map[string]model.User),
		codes: make(map[string]model.VerificationCode),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the clock used for created_at timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *Store) Users() repository.UserRepository                 { return (*userRepository)(s) }
func (s *Store) Messages() repository.MessageRepository           { return (*messageRepository)(s) }
func (s *Store) Verifications() repository.VerificationRepository { return (*verificationRepository)(s) }

type userRepository Store

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Phone == user.Phone {
			return repository.ErrDuplicate
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := r.now()
	user.CreatedAt, user.UpdatedAt = now, now
	r.users[user.ID] = cloneUser(*user)
	return nil
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneUser(u)
	return &out, nil
}

func (r *userRepository) FindByPhone(ctx context.Context, phone string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Phone == phone {
			out := cloneUser(u)
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepository) FindByIDs(ctx context.Context, ids []string) ([]*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]*model.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out := cloneUser(u)
			users = append(users, &out)
		}
	}
	return users, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	user.UpdatedAt = r.now()
	r.users[user.ID] = cloneUser(*user)
	return nil
}

func (r *userRepository) Exists(ctx context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.users[id]
	return ok, nil
}

func (r *userRepository) Search(ctx context.Context, excludeID, prompt string, limit int) ([]*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	prompt = strings.ToLower(prompt)
	var users []*model.User
	for _, u := range r.users {
		if u.ID == excludeID {
			continue
		}
		name := ""
		if u.Name != nil {
			name = strings.ToLower(*u.Name)
		}
		if strings.Contains(u.Phone, prompt) || strings.Contains(name, prompt) {
			out := cloneUser(u)
			users = append(users, &out)
		}
	}

	sort.Slice(users, func(i, j int) bool {
		ni, nj := nameOf(users[i]), nameOf(users[j])
		if ni != nj {
			return ni < nj
		}
		return users[i].Phone < users[j].Phone
	})
	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

type messageRepository Store

func (r *messageRepository) Create(ctx context.Context, message *model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	message.CreatedAt = r.now()
	stored := *message
	stored.Sender, stored.Receiver = nil, nil
	r.messages = append(r.messages, stored)
	return nil
}

func (r *messageRepository) FindByID(ctx context.Context, id string) (*model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.messages {
		if m.ID == id {
			out := r.withUsers(m)
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *messageRepository) ListConversation(ctx context.Context, a, b string, limit int) ([]model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.Message
	for _, m := range r.messages {
		if m.BelongsTo(a, b) {
			out = append(out, r.withUsers(m))
		}
	}

	sortAscending(out)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *messageRepository) DeleteConversation(ctx context.Context, a, b string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	before := len(r.messages)
	r.messages = slices.DeleteFunc(r.messages, func(m model.Message) bool {
		return m.BelongsTo(a, b)
	})
	return int64(before - len(r.messages)), nil
}

func (r *messageRepository) ListHeaders(ctx context.Context, userID string) ([]model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.Message
	for _, m := range r.messages {
		if m.SenderID == userID || (m.ReceiverID != nil && *m.ReceiverID == userID) {
			out = append(out, model.Message{
				SenderID:   m.SenderID,
				ReceiverID: m.ReceiverID,
				CreatedAt:  m.CreatedAt,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *messageRepository) withUsers(m model.Message) model.Message {
	if u, ok := r.users[m.SenderID]; ok {
		sender := cloneUser(u)
		m.Sender = &sender
	}
	if m.ReceiverID != nil {
		if u, ok := r.users[*m.ReceiverID]; ok {
			receiver := cloneUser(u)
			m.Receiver = &receiver
		}
	}
	return m
}

type verificationRepository Store

func (r *verificationRepository) Create(ctx context.Context, code *model.VerificationCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if code.ID == "" {
		code.ID = uuid.NewString()
	}
	if code.CreatedAt.IsZero() {
		code.CreatedAt = r.now()
	}
	r.codes[code.ID] = *code
	return nil
}

func (r *verificationRepository) DeleteStale(ctx context.Context, phone string, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, c := range r.codes {
		if c.Phone == phone && (c.Used || !c.ExpiresAt.After(now)) {
			delete(r.codes, id)
			n++
		}
	}
	return n, nil
}

func (r *verificationRepository) FindActive(ctx context.Context, phone string, now time.Time, limit int) ([]model.VerificationCode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.VerificationCode
	for _, c := range r.codes {
		if c.Phone == phone && c.Usable(now) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *verificationRepository) MarkUsed(ctx context.Context, id string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.codes[id]
	if !ok || !c.Usable(now) {
		return false, nil
	}
	c.Used = true
	r.codes[id] = c
	return true, nil
}

func nameOf(u *model.User) string {
	if u.Name == nil {
		return ""
	}
	return *u.Name
}

func cloneUser(u model.User) model.User {
	if u.Name != nil {
		name := *u.Name
		u.Name = &name
	}
	if u.Avatar != nil {
		avatar := *u.Avatar
		u.Avatar = &avatar
	}
	return u
}

func sortAscending(messages []model.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
}
