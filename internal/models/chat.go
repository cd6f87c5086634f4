package models

import "time"

// ChatKind distinguishes one-to-one chats from groups.
type ChatKind string

const (
	ChatKindDirect ChatKind = "direct"
	ChatKindGroup  ChatKind = "group"
)

// ParseChatKind maps a wire value to a ChatKind. An empty value means direct.
func ParseChatKind(s string) (ChatKind, bool) {
	switch ChatKind(s) {
	case "", ChatKindDirect:
		return ChatKindDirect, true
	case ChatKindGroup:
		return ChatKindGroup, true
	}
	return "", false
}

// ChatOptions carries the optional group attributes supplied on creation.
type ChatOptions struct {
	Name            string
	Description     string
	MaxParticipants int
	IsPublic        bool
}

// Chat represents a short-lived room and its message log.
type Chat struct {
	ID              string    `json:"id"`
	Kind            ChatKind  `json:"type"`
	Participants    []User    `json:"participants"`
	Messages        []Message `json:"messages"`
	CreatedAt       time.Time `json:"createdAt"`
	LastActivity    time.Time `json:"lastActivity"`
	IsActive        bool      `json:"isActive"`
	Name            string    `json:"name,omitempty"`
	Description     string    `json:"description,omitempty"`
	MaxParticipants int       `json:"maxParticipants,omitempty"`
	IsPublic        bool      `json:"isPublic,omitempty"`
	CreatedBy       string    `json:"createdBy,omitempty"`
}

// HasParticipant reports whether userID is a member of the chat.
func (c Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// ParticipantIDs returns member ids in display order.
func (c Chat) ParticipantIDs() []string {
	ids := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		ids = append(ids, p.ID)
	}
	return ids
}
