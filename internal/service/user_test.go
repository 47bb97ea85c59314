package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type staticPresence map[string]bool

func (p staticPresence) Online(ctx context.Context, ids []string) (map[string]bool, error) {
	return p, nil
}

func TestUserService_RecentPartners(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	store.SetClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})

	a := createUser(t, store, "79990000001", "Alice")
	b := createUser(t, store, "79990000002", "Bob")
	c := createUser(t, store, "79990000003", "Carol")
	createUser(t, store, "79990000004", "Dave")

	messages := NewMessageService(store.Messages(), store.Users(), nil)
	for _, m := range []struct{ from, to string }{{a.ID, b.ID}, {c.ID, a.ID}, {b.ID, a.ID}} {
		if _, err := messages.Send(ctx, m.from, SendMessageInput{Text: "x", ReceiverID: m.to}); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	svc := NewUserService(store.Users(), store.Messages(), staticPresence{c.ID: true})
	partners, err := svc.Partners(ctx, a.ID, "")
	if err != nil {
		t.Fatalf("partners: %v", err)
	}
	if len(partners) != 2 {
		t.Fatalf("expected 2 partners, got %d", len(partners))
	}
	if partners[0].ID != b.ID || partners[1].ID != c.ID {
		t.Fatalf("expected Bob then Carol, got %s then %s", partners[0].DisplayName(), partners[1].DisplayName())
	}
	if partners[0].Online || !partners[1].Online {
		t.Fatalf("unexpected online flags: %+v", partners)
	}
}

func TestUserService_Search(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	a := createUser(t, store, "79990000001", "Alice")
	createUser(t, store, "79990000002", "Bob")
	createUser(t, store, "79991110003", "bobby")

	svc := NewUserService(store.Users(), store.Messages(), nil)

	partners, err := svc.Partners(ctx, a.ID, "BOB")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(partners) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(partners))
	}

	partners, _ = svc.Partners(ctx, a.ID, "7999")
	for _, p := range partners {
		if p.ID == a.ID {
			t.Fatal("search must exclude the requester")
		}
	}
	if len(partners) != 2 {
		t.Fatalf("expected 2 phone matches, got %d", len(partners))
	}
}

func TestUserService_UpdateName(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	a := createUser(t, store, "79990000001", "Alice")
	svc := NewUserService(store.Users(), store.Messages(), nil)

	name := "  Alicia  "
	user, err := svc.UpdateName(ctx, a.ID, &name)
	if err != nil || user.Name == nil || *user.Name != "Alicia" {
		t.Fatalf("update: %+v, %v", user, err)
	}

	var verr *ValidationError
	for _, bad := range []string{"   ", strings.Repeat("я", 51)} {
		if _, err := svc.UpdateName(ctx, a.ID, &bad); !errors.As(err, &verr) {
			t.Errorf("name %q: expected ValidationError, got %v", bad, err)
		}
	}

	ok := strings.Repeat("я", 50)
	if _, err := svc.UpdateName(ctx, a.ID, &ok); err != nil {
		t.Errorf("50 runes should be accepted: %v", err)
	}

	user, err = svc.UpdateName(ctx, a.ID, nil)
	if err != nil || user.Name != nil {
		t.Fatalf("clear: %+v, %v", user, err)
	}

	if _, err := svc.UpdateName(ctx, "missing", nil); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
