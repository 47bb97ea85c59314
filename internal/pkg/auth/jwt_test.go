package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)

	token, err := m.GenerateToken("user-1", "79991234567")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != "user-1" || claims.Phone != "79991234567" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenManager_Rejects(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	token, _ := m.GenerateToken("user-1", "79991234567")

	other := NewTokenManager("other-secret", time.Hour)
	if _, err := other.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("wrong key: expected ErrInvalidToken, got %v", err)
	}

	expired := NewTokenManager("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _ := expired.GenerateToken("user-1", "79991234567")
	if _, err := m.ValidateToken(old); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired: expected ErrInvalidToken, got %v", err)
	}

	if _, err := m.ValidateToken("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage: expected ErrInvalidToken, got %v", err)
	}
}
