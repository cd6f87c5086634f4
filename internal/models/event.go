package models

// Inbound event names.
const (
	EventUserConnect    = "user:connect"
	EventUserSearch     = "user:search"
	EventUserRandom     = "user:random"
	EventChatCreate     = "chat:create"
	EventGroupCreate    = "group:create"
	EventChatJoin       = "chat:join"
	EventMessageSend    = "message:send"
	EventMessageRead    = "message:read"
	EventUserTyping     = "user:typing"
	EventChatLeave      = "chat:leave"
	EventSessionBurn    = "session:burn"
	EventSessionCleanup = "session:cleanup"
)

// Outbound event names.
const (
	EventUserRegistered = "user:registered"
	EventUserOnline     = "user:online"
	EventUserOffline    = "user:offline"
	EventUserFound      = "user:found"
	EventChatCreated    = "chat:created"
	EventChatJoined     = "chat:joined"
	EventUserJoined     = "user:joined"
	EventMessageReceive = "message:receive"
	EventMessageUpdated = "message:updated"
	EventUserLeft       = "user:left"
	EventMessageExpired = "message:expired"
	EventSessionBurned  = "session:burned"
)

// Event is the frame exchanged over websocket connections in both directions.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// UserJoinedEvent tells existing members that someone joined.
type UserJoinedEvent struct {
	ChatID string `json:"chatId"`
	User   User   `json:"user"`
	Chat   Chat   `json:"chat"`
}

// UserLeftEvent tells remaining members that someone left.
type UserLeftEvent struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

// TypingEvent relays a typing indicator.
type TypingEvent struct {
	ChatID   string `json:"chatId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

// MessageExpiredEvent announces a message removed by the sweeper.
type MessageExpiredEvent struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
}
