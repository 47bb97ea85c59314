package service

import (
	"context"
	"io"

	"tush00nka/phonechat/internal/model"
)

// AuthService вход по номеру телефона
type AuthService interface {
	IssueCode(ctx context.Context, rawPhone string) error
	VerifyCode(ctx context.Context, rawPhone, code string) (*model.User, string, error)
	// ResolveSession возвращает nil без ошибки, если токен не указывает на существующего пользователя
	ResolveSession(ctx context.Context, token string) (*model.User, error)
}

// UserService профиль и список собеседников
type UserService interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	Partners(ctx context.Context, requesterID, search string) ([]model.Partner, error)
	UpdateName(ctx context.Context, userID string, name *string) (*model.User, error)
}

// MessageService личные сообщения между двумя пользователями
type MessageService interface {
	Send(ctx context.Context, senderID string, in SendMessageInput) (*model.Message, error)
	ListConversation(ctx context.Context, requesterID, targetID string) ([]model.Message, error)
	DeleteConversation(ctx context.Context, requesterID, targetID string) (int64, error)
}

// UploadService загрузка медиафайлов
type UploadService interface {
	Upload(ctx context.Context, uploaderID string, in UploadInput) (*model.FileMetadata, error)
	HealthCheck(ctx context.Context) error
}

// EventPublisher рассылает события переписки подписчикам
type EventPublisher interface {
	Publish(ctx context.Context, event model.Event) error
}

// PresenceReader сообщает, кто из пользователей сейчас онлайн
type PresenceReader interface {
	Online(ctx context.Context, userIDs []string) (map[string]bool, error)
}

// Storage сохраняет загруженный файл и возвращает его публичный URL
type Storage interface {
	Save(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	HealthCheck(ctx context.Context) error
}
