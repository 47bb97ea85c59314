package model

const (
	EventMessageCreated      = "message.created"
	EventConversationDeleted = "conversation.deleted"
)

// Event is a change in a conversation, fanned out to realtime subscribers.
type Event struct {
	Type            string   `json:"type"`
	ConversationKey string   `json:"conversationKey"`
	Message         *Message `json:"message,omitempty"`
	DeletedCount    int64    `json:"deletedCount,omitempty"`
}
