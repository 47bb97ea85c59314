package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"tush00nka/phonechat/internal/model"
	"tush00nka/phonechat/internal/repository"
)

const (
	searchLimit   = 50
	maxNameLength = 50
)

type userService struct {
	userRepo    repository.UserRepository
	messageRepo repository.MessageRepository
	presence    PresenceReader
}

// NewUserService создает сервис пользователей. presence может быть nil
func NewUserService(userRepo repository.UserRepository, messageRepo repository.MessageRepository, presence PresenceReader) UserService {
	return &userService{userRepo: userRepo, messageRepo: messageRepo, presence: presence}
}

// GetUserByID возвращает пользователя по ID
func (s *userService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Partners ищет пользователей или возвращает недавних собеседников
func (s *userService) Partners(ctx context.Context, requesterID, search string) ([]model.Partner, error) {
	var (
		partners []model.Partner
		err      error
	)

	if search = strings.TrimSpace(search); search != "" {
		partners, err = s.searchPartners(ctx, requesterID, search)
	} else {
		partners, err = s.recentPartners(ctx, requesterID)
	}
	if err != nil {
		return nil, err
	}

	s.markOnline(ctx, partners)
	return partners, nil
}

func (s *userService) searchPartners(ctx context.Context, requesterID, search string) ([]model.Partner, error) {
	users, err := s.userRepo.Search(ctx, requesterID, search, searchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}

	partners := make([]model.Partner, 0, len(users))
	for _, u := range users {
		partners = append(partners, model.Partner{User: *u})
	}
	return partners, nil
}

func (s *userService) recentPartners(ctx context.Context, requesterID string) ([]model.Partner, error) {
	headers, err := s.messageRepo.ListHeaders(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	last := make(map[string]time.Time)
	var ids []string
	for _, h := range headers {
		other, ok := h.Counterpart(requesterID)
		if !ok || other == requesterID {
			continue
		}
		if t, seen := last[other]; !seen || h.CreatedAt.After(t) {
			if !seen {
				ids = append(ids, other)
			}
			last[other] = h.CreatedAt
		}
	}

	users, err := s.userRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load partners: %w", err)
	}

	partners := make([]model.Partner, 0, len(users))
	for _, u := range users {
		at := last[u.ID]
		partners = append(partners, model.Partner{User: *u, LastMessageAt: &at})
	}

	sort.SliceStable(partners, func(i, j int) bool {
		return partners[i].LastMessageAt.After(*partners[j].LastMessageAt)
	})
	return partners, nil
}

func (s *userService) markOnline(ctx context.Context, partners []model.Partner) {
	if s.presence == nil || len(partners) == 0 {
		return
	}

	ids := make([]string, len(partners))
	for i := range partners {
		ids[i] = partners[i].ID
	}

	online, err := s.presence.Online(ctx, ids)
	if err != nil {
		log.Printf("Failed to read presence: %v", err)
		return
	}
	for i := range partners {
		partners[i].Online = online[partners[i].ID]
	}
}

// UpdateName меняет имя. nil очищает его
func (s *userService) UpdateName(ctx context.Context, userID string, name *string) (*model.User, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if name == nil {
		user.Name = nil
	} else {
		trimmed := strings.TrimSpace(*name)
		if n := utf8.RuneCountInString(trimmed); n == 0 || n > maxNameLength {
			return nil, invalid("name", "name must be between 1 and 50 characters")
		}
		user.Name = &trimmed
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}
