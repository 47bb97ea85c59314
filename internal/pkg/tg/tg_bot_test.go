package tg

import (
	"context"
	"errors"
	"testing"
)

func TestLinkNormalizesPhone(t *testing.T) {
	a := &TelegramAdapter{chatIDs: make(map[string]int64)}
	a.Link("+7 999 123-45-67", 42)

	if got := a.GetID("79991234567"); got != 42 {
		t.Fatalf("expected chat 42, got %d", got)
	}
	if got := a.GetID("+79991234567"); got != 42 {
		t.Fatalf("expected chat 42 for formatted lookup, got %d", got)
	}
}

func TestSendSMS_Unlinked(t *testing.T) {
	a := &TelegramAdapter{chatIDs: make(map[string]int64)}
	err := a.SendSMS(context.Background(), "79991234567", "code")
	if !errors.Is(err, ErrPhoneNotLinked) {
		t.Fatalf("expected ErrPhoneNotLinked, got %v", err)
	}
}
