package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MediaImage = "image"
	MediaVideo = "video"
)

type Message struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Text       *string   `gorm:"type:text" json:"text"`
	SenderID   string    `gorm:"type:varchar(36);index;not null" json:"senderId"`
	ReceiverID *string   `gorm:"type:varchar(36);index" json:"receiverId"`
	MediaURL   *string   `json:"mediaUrl"`
	MediaType  *string   `gorm:"type:varchar(16)" json:"mediaType"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`

	Sender   *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Receiver *User `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// Counterpart returns the other participant of the message as seen by userID.
// The second result is false for legacy messages without a receiver.
func (m *Message) Counterpart(userID string) (string, bool) {
	if m.ReceiverID == nil {
		return "", false
	}
	if m.SenderID == userID {
		return *m.ReceiverID, true
	}
	return m.SenderID, true
}

// BelongsTo reports whether the message is part of the conversation between a and b.
func (m *Message) BelongsTo(a, b string) bool {
	if m.ReceiverID == nil {
		return false
	}
	r := *m.ReceiverID
	return (m.SenderID == a && r == b) || (m.SenderID == b && r == a)
}
