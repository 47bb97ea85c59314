package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"tush00nka/phonechat/internal/model"
	"tush00nka/phonechat/internal/repository"
)

// ConversationLimit сколько последних сообщений пары отдается за раз
const ConversationLimit = 100

// SendMessageInput данные нового сообщения
type SendMessageInput struct {
	Text       string
	ReceiverID string
	MediaURL   string
	MediaType  string
}

type messageService struct {
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	events      EventPublisher
}

// NewMessageService создает сервис сообщений. events может быть nil
func NewMessageService(messageRepo repository.MessageRepository, userRepo repository.UserRepository, events EventPublisher) MessageService {
	return &messageService{messageRepo: messageRepo, userRepo: userRepo, events: events}
}

// Send проверяет и сохраняет сообщение, затем публикует событие
func (s *messageService) Send(ctx context.Context, senderID string, in SendMessageInput) (*model.Message, error) {
	text := strings.TrimSpace(in.Text)
	mediaURL := strings.TrimSpace(in.MediaURL)
	mediaType := strings.TrimSpace(in.MediaType)
	receiverID := strings.TrimSpace(in.ReceiverID)

	if text == "" && mediaURL == "" {
		return nil, ErrEmptyMessage
	}
	if receiverID == "" {
		return nil, invalid("receiverId", "receiverId is required")
	}
	if receiverID == senderID {
		return nil, ErrSelfMessage
	}
	if (mediaURL == "") != (mediaType == "") {
		return nil, invalid("mediaType", "mediaUrl and mediaType must be provided together")
	}
	if mediaType != "" && mediaType != model.MediaImage && mediaType != model.MediaVideo {
		return nil, invalid("mediaType", "mediaType must be image or video")
	}

	exists, err := s.userRepo.Exists(ctx, receiverID)
	if err != nil {
		return nil, fmt.Errorf("failed to check receiver: %w", err)
	}
	if !exists {
		return nil, ErrReceiverNotFound
	}

	message := &model.Message{
		SenderID:   senderID,
		ReceiverID: &receiverID,
		Text:       optional(text),
		MediaURL:   optional(mediaURL),
		MediaType:  optional(mediaType),
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	saved, err := s.messageRepo.FindByID(ctx, message.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load message: %w", err)
	}

	s.publish(ctx, model.Event{
		Type:            model.EventMessageCreated,
		ConversationKey: model.ConversationKey(senderID, receiverID),
		Message:         saved,
	})

	return saved, nil
}

// ListConversation возвращает последние сообщения пары по возрастанию времени
func (s *messageService) ListConversation(ctx context.Context, requesterID, targetID string) ([]model.Message, error) {
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return nil, invalid("receiverId", "receiverId is required")
	}

	messages, err := s.messageRepo.ListConversation(ctx, requesterID, targetID, ConversationLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	if messages == nil {
		messages = []model.Message{}
	}
	return messages, nil
}

// DeleteConversation удаляет всю переписку между двумя пользователями.
// Сообщение, отправленное одновременно с удалением, может уцелеть.
func (s *messageService) DeleteConversation(ctx context.Context, requesterID, targetID string) (int64, error) {
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return 0, invalid("userId", "userId is required")
	}
	if targetID == requesterID {
		return 0, ErrSelfDelete
	}

	n, err := s.messageRepo.DeleteConversation(ctx, requesterID, targetID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete conversation: %w", err)
	}

	s.publish(ctx, model.Event{
		Type:            model.EventConversationDeleted,
		ConversationKey: model.ConversationKey(requesterID, targetID),
		DeletedCount:    n,
	})

	return n, nil
}

func (s *messageService) publish(ctx context.Context, event model.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		log.Printf("Failed to publish %s for %s: %v", event.Type, event.ConversationKey, err)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
