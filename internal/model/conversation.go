package model

import "time"

// ConversationKey identifies the unordered pair of users that owns a one-to-one chat.
func ConversationKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// Partner is a user the requester can chat with.
type Partner struct {
	User
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	Online        bool       `json:"online"`
}
