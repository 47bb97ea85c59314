package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"
)

func TestAuthService_Scenario(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	provider := newCapturingProvider()
	svc := newTestAuth(store, provider)

	if err := svc.IssueCode(ctx, "+7 999 123 45 67"); err != nil {
		t.Fatalf("issue: %v", err)
	}

	now := svc.now()
	active, _ := store.Verifications().FindActive(ctx, "79991234567", now, 0)
	if len(active) != 1 {
		t.Fatalf("expected one active code, got %d", len(active))
	}
	if ttl := active[0].ExpiresAt.Sub(now); ttl < 9*time.Minute || ttl > 10*time.Minute {
		t.Fatalf("expected expiry in 10 minutes, got %v", ttl)
	}
	code := provider.lastCode(t, "79991234567")
	if active[0].Code == code {
		t.Fatal("code must be stored hashed")
	}

	user, token, err := svc.VerifyCode(ctx, "+7 (999) 123-45-67", code)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if user.Phone != "79991234567" || user.Name == nil || *user.Name != "User 4567" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if token == "" {
		t.Fatal("expected token")
	}

	if _, _, err := svc.VerifyCode(ctx, "79991234567", code); !errors.Is(err, ErrInvalidOrExpiredCode) {
		t.Fatalf("second verify: expected ErrInvalidOrExpiredCode, got %v", err)
	}

	resolved, err := svc.ResolveSession(ctx, token)
	if err != nil || resolved == nil || resolved.ID != user.ID {
		t.Fatalf("resolve: got %+v, %v", resolved, err)
	}
}

func TestAuthService_ReturningUserKeepsID(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	provider := newCapturingProvider()
	svc := newTestAuth(store, provider)

	login := func() string {
		t.Helper()
		if err := svc.IssueCode(ctx, "79991234567"); err != nil {
			t.Fatalf("issue: %v", err)
		}
		user, _, err := svc.VerifyCode(ctx, "79991234567", provider.lastCode(t, "79991234567"))
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		return user.ID
	}

	if first, second := login(), login(); first != second {
		t.Fatalf("expected same user, got %s and %s", first, second)
	}
}

func TestAuthService_ExpiredCode(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	provider := newCapturingProvider()
	svc := newTestAuth(store, provider)

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }
	if err := svc.IssueCode(ctx, "79991234567"); err != nil {
		t.Fatalf("issue: %v", err)
	}

	svc.now = func() time.Time { return start.Add(11 * time.Minute) }
	_, _, err := svc.VerifyCode(ctx, "79991234567", provider.lastCode(t, "79991234567"))
	if !errors.Is(err, ErrInvalidOrExpiredCode) {
		t.Fatalf("expected ErrInvalidOrExpiredCode, got %v", err)
	}
}

func TestAuthService_OnlyNewestCodesRedeemable(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	provider := newCapturingProvider()
	svc := newTestAuth(store, provider)

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var codes []string
	for i := 0; i < maxActiveCodes+2; i++ {
		at := start.Add(time.Duration(i) * time.Second)
		svc.now = func() time.Time { return at }
		if err := svc.IssueCode(ctx, "79991234567"); err != nil {
			t.Fatalf("issue %d: %v", i, err)
		}
		codes = append(codes, provider.lastCode(t, "79991234567"))
	}

	svc.now = func() time.Time { return start.Add(time.Minute) }
	active, _ := store.Verifications().FindActive(ctx, "79991234567", svc.now(), maxActiveCodes)
	if len(active) != maxActiveCodes {
		t.Fatalf("expected %d active codes, got %d", maxActiveCodes, len(active))
	}

	oldest, newer := codes[0], codes[2:]
	if !slices.Contains(newer, oldest) {
		if _, _, err := svc.VerifyCode(ctx, "79991234567", oldest); !errors.Is(err, ErrInvalidOrExpiredCode) {
			t.Fatalf("oldest code: expected ErrInvalidOrExpiredCode, got %v", err)
		}
	}
	if _, _, err := svc.VerifyCode(ctx, "79991234567", codes[2]); err != nil {
		t.Fatalf("fifth newest code should verify: %v", err)
	}
}

func TestAuthService_WrongCode(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	provider := newCapturingProvider()
	svc := newTestAuth(store, provider)

	if err := svc.IssueCode(ctx, "79991234567"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	wrong := "000000"
	if provider.lastCode(t, "79991234567") == wrong {
		wrong = "000001"
	}
	if _, _, err := svc.VerifyCode(ctx, "79991234567", wrong); !errors.Is(err, ErrInvalidOrExpiredCode) {
		t.Fatalf("expected ErrInvalidOrExpiredCode, got %v", err)
	}
}

func TestAuthService_ConcurrentVerify(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	provider := newCapturingProvider()
	svc := newTestAuth(store, provider)

	if err := svc.IssueCode(ctx, "79991234567"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	code := provider.lastCode(t, "79991234567")

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.VerifyCode(ctx, "79991234567", code)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else if !errors.Is(err, ErrInvalidOrExpiredCode) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one success, got %d", successes)
	}
}

func TestAuthService_Validation(t *testing.T) {
	ctx := context.Background()
	svc := newTestAuth(newStore(), newCapturingProvider())

	var verr *ValidationError
	if err := svc.IssueCode(ctx, "12345"); !errors.As(err, &verr) || verr.Field != "phone" {
		t.Errorf("short phone: expected phone ValidationError, got %v", err)
	}
	if _, _, err := svc.VerifyCode(ctx, "79991234567", "12345"); !errors.As(err, &verr) || verr.Field != "code" {
		t.Errorf("short code: expected code ValidationError, got %v", err)
	}
}

func TestAuthService_DispatchError(t *testing.T) {
	provider := newCapturingProvider()
	provider.err = errors.New("gateway down")
	svc := newTestAuth(newStore(), provider)

	if err := svc.IssueCode(context.Background(), "79991234567"); !errors.Is(err, ErrDispatch) {
		t.Fatalf("expected ErrDispatch, got %v", err)
	}
}

func TestAuthService_ResolveSession(t *testing.T) {
	ctx := context.Background()
	svc := newTestAuth(newStore(), newCapturingProvider())

	for _, token := range []string{"", "not-a-token"} {
		user, err := svc.ResolveSession(ctx, token)
		if user != nil || err != nil {
			t.Errorf("token %q: expected nil, nil; got %+v, %v", token, user, err)
		}
	}

	orphan, _ := svc.tokens.GenerateToken("missing-user", "79990000000")
	if user, err := svc.ResolveSession(ctx, orphan); user != nil || err != nil {
		t.Errorf("orphan token: expected nil, nil; got %+v, %v", user, err)
	}
}
