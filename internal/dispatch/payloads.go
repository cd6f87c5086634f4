package dispatch

import (
	"bytes"
	"encoding/json"
)

type registerPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type searchPayload struct {
	Query string `json:"query"`
}

type createPayload struct {
	Type            string   `json:"type"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	MaxParticipants int      `json:"maxParticipants"`
	IsPublic        bool     `json:"isPublic"`
	ParticipantIDs  []string `json:"participantIds"`
}

type joinPayload struct {
	ChatID      string `json:"chatId"`
	PeerID      string `json:"peerId"`
	OtherUserID string `json:"otherUserId"`
}

func (p joinPayload) peer() string {
	if p.PeerID != "" {
		return p.PeerID
	}
	return p.OtherUserID
}

type sendPayload struct {
	ChatID  string `json:"chatId"`
	Content string `json:"content"`
}

type readPayload struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
}

type typingPayload struct {
	ChatID   string `json:"chatId"`
	IsTyping bool   `json:"isTyping"`
}

type leavePayload struct {
	ChatID string `json:"chatId"`
}

// decode unmarshals data into v. Missing data leaves v at its zero value.
func decode(data json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return json.Unmarshal(trimmed, v)
}

// decodeQuery accepts either {"query": "..."} or a bare JSON string.
func decodeQuery(data json.RawMessage) (string, error) {
	var query string
	if err := json.Unmarshal(bytes.TrimSpace(data), &query); err == nil {
		return query, nil
	}
	var payload searchPayload
	if err := decode(data, &payload); err != nil {
		return "", err
	}
	return payload.Query, nil
}
