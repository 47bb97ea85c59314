package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tush00nka/phonechat/internal/model"
	"tush00nka/phonechat/internal/pkg/auth"
	"tush00nka/phonechat/internal/pkg/phone"
	"tush00nka/phonechat/internal/pkg/sms"
	"tush00nka/phonechat/internal/repository"
)

const (
	codeLength = 6
	// maxActiveCodes ограничивает число bcrypt-сравнений за одну проверку
	maxActiveCodes = 5
)

// AuthOptions параметры выдачи кодов
type AuthOptions struct {
	CodeTTL  time.Duration
	HashCost int
}

type authService struct {
	userRepo repository.UserRepository
	codeRepo repository.VerificationRepository
	provider sms.Provider
	tokens   *auth.TokenManager
	opts     AuthOptions
	now      func() time.Time
}

// NewAuthService создает сервис входа по коду из SMS
func NewAuthService(
	userRepo repository.UserRepository,
	codeRepo repository.VerificationRepository,
	provider sms.Provider,
	tokens *auth.TokenManager,
	opts AuthOptions,
) AuthService {
	if opts.CodeTTL <= 0 {
		opts.CodeTTL = 10 * time.Minute
	}
	if opts.HashCost == 0 {
		opts.HashCost = bcrypt.DefaultCost
	}
	return &authService{
		userRepo: userRepo,
		codeRepo: codeRepo,
		provider: provider,
		tokens:   tokens,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// IssueCode генерирует код, сохраняет его хеш и отправляет код на телефон
func (s *authService) IssueCode(ctx context.Context, rawPhone string) error {
	number := phone.Normalize(rawPhone)
	if !phone.Valid(number) {
		return invalid("phone", "invalid phone number")
	}

	now := s.now()
	if n, err := s.codeRepo.DeleteStale(ctx, number, now); err != nil {
		log.Printf("Failed to clean up codes for %s: %v", number, err)
	} else if n > 0 {
		log.Printf("Removed %d stale codes for %s", n, number)
	}

	code, err := sms.GenerateVerificationCode()
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.opts.HashCost)
	if err != nil {
		return fmt.Errorf("failed to hash code: %w", err)
	}

	err = s.codeRepo.Create(ctx, &model.VerificationCode{
		Phone:     number,
		Code:      string(hash),
		ExpiresAt: now.Add(s.opts.CodeTTL),
		CreatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("failed to store code: %w", err)
	}

	if err := s.provider.SendSMS(ctx, number, sms.CodeText(code)); err != nil {
		return fmt.Errorf("%w: %v", ErrDispatch, err)
	}

	return nil
}

// VerifyCode погашает код и возвращает пользователя с токеном сессии.
// Новый пользователь создается при первом входе.
func (s *authService) VerifyCode(ctx context.Context, rawPhone, code string) (*model.User, string, error) {
	number := phone.Normalize(rawPhone)
	if !phone.Valid(number) {
		return nil, "", invalid("phone", "invalid phone number")
	}
	if !phone.IsCode(code, codeLength) {
		return nil, "", invalid("code", "code must be 6 digits")
	}

	now := s.now()
	active, err := s.codeRepo.FindActive(ctx, number, now, maxActiveCodes)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load codes: %w", err)
	}

	var match *model.VerificationCode
	for i := range active {
		if bcrypt.CompareHashAndPassword([]byte(active[i].Code), []byte(code)) == nil {
			match = &active[i]
			break
		}
	}
	if match == nil {
		return nil, "", ErrInvalidOrExpiredCode
	}

	ok, err := s.codeRepo.MarkUsed(ctx, match.ID, now)
	if err != nil {
		return nil, "", fmt.Errorf("failed to consume code: %w", err)
	}
	if !ok {
		return nil, "", ErrInvalidOrExpiredCode
	}

	user, err := s.findOrCreateUser(ctx, number)
	if err != nil {
		return nil, "", err
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Phone)
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}

// findOrCreateUser при гонке двух первых входов перечитывает существующую запись
func (s *authService) findOrCreateUser(ctx context.Context, number string) (*model.User, error) {
	user, err := s.userRepo.FindByPhone(ctx, number)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	name := defaultName(number)
	user = &model.User{Phone: number, Name: &name}
	err = s.userRepo.Create(ctx, user)
	if errors.Is(err, repository.ErrDuplicate) {
		return s.userRepo.FindByPhone(ctx, number)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Printf("Registered user %s", user.ID)
	return user, nil
}

func defaultName(number string) string {
	if len(number) > 4 {
		number = number[len(number)-4:]
	}
	return "User " + number
}

// ResolveSession возвращает пользователя по токену
func (s *authService) ResolveSession(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, nil
	}

	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, nil
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}
	return user, nil
}
