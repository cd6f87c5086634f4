package models

import "time"

// MessageTTL is how long a message lives after it is sent.
const MessageTTL = 5 * time.Minute

// Message represents a chat message.
type Message struct {
	ID             string    `json:"id"`
	ChatID         string    `json:"chatId"`
	SenderID       string    `json:"senderId"`
	SenderUsername string    `json:"senderUsername"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	ExpiresAt      time.Time `json:"expiresAt"`
	IsRead         bool      `json:"isRead"`
	IsRepliedTo    bool      `json:"isRepliedTo"`
}

// Expired reports whether the message is due for removal at now.
func (m Message) Expired(now time.Time) bool {
	return !m.ExpiresAt.After(now)
}
