package sms

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"math/big"

	"tush00nka/phonechat/internal/pkg/phone"
)

// Provider delivers a short text to a phone number.
type Provider interface {
	SendSMS(ctx context.Context, phone, text string) error
}

// LogProvider writes messages to the log instead of sending them. Development only.
type LogProvider struct{}

func NewLogProvider() *LogProvider {
	return &LogProvider{}
}

func (p *LogProvider) SendSMS(ctx context.Context, number, text string) error {
	log.Printf("SMS to %s: %s", phone.Format(number), text)
	return nil
}

// CodeText is the body sent with a verification code.
func CodeText(code string) string {
	return "Your verification code: " + code
}

var codeSpan = big.NewInt(900000)

// GenerateVerificationCode returns a uniformly distributed code in 100000..999999.
func GenerateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpan)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
