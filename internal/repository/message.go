package repository

import (
	"context"
	"slices"

	"gorm.io/gorm"

	"tush00nka/phonechat/internal/model"
)

type MessageRepository interface {
	Create(ctx context.Context, message *model.Message) error
	FindByID(ctx context.Context, id string) (*model.Message, error)
	// ListConversation returns the newest limit messages between a and b, oldest first.
	ListConversation(ctx context.Context, a, b string, limit int) ([]model.Message, error)
	DeleteConversation(ctx context.Context, a, b string) (int64, error)
	// ListHeaders returns sender, receiver and time of every message involving userID, newest first.
	ListHeaders(ctx context.Context, userID string) ([]model.Message, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository создает репозиторий сообщений
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func pairScope(a, b string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a)
	}
}

func (r *messageRepository) Create(ctx context.Context, message *model.Message) error {
	return translate(r.db.WithContext(ctx).Omit("Sender", "Receiver").Create(message).Error)
}

func (r *messageRepository) FindByID(ctx context.Context, id string) (*model.Message, error) {
	var message model.Message
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Preload("Receiver").
		Where("id = ?", id).
		First(&message).Error
	if err != nil {
		return nil, translate(err)
	}
	return &message, nil
}

func (r *messageRepository) ListConversation(ctx context.Context, a, b string, limit int) ([]model.Message, error) {
	var messages []model.Message

	err := r.db.WithContext(ctx).
		Scopes(pairScope(a, b)).
		Preload("Sender").
		Preload("Receiver").
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	slices.Reverse(messages)
	return messages, nil
}

func (r *messageRepository) DeleteConversation(ctx context.Context, a, b string) (int64, error) {
	result := r.db.WithContext(ctx).Scopes(pairScope(a, b)).Delete(&model.Message{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *messageRepository) ListHeaders(ctx context.Context, userID string) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.WithContext(ctx).
		Select("sender_id", "receiver_id", "created_at").
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}
