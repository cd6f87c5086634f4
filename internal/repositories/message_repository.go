package repositories

import (
	"context"
	"errors"
	"time"

	"nox-relay/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions with a chat's message ledger.
type MessageRepository interface {
	Append(ctx context.Context, chatID string, sender models.User, content string) (models.Message, error)
	MarkRead(ctx context.Context, chatID string, messageID string) (models.Message, error)
	SweepExpired(ctx context.Context, chatID string, now time.Time) ([]models.Message, error)
	ListMessages(ctx context.Context, chatID string) ([]models.Message, error)
}

// MessageRepo manages the message logs stored on ChatRepo records.
type MessageRepo struct {
	chats *ChatRepo
}

// NewMessageRepo constructs a MessageRepo over the given chat store.
func NewMessageRepo(chats *ChatRepo) *MessageRepo {
	return &MessageRepo{chats: chats}
}

// Append stamps and stores a message sent by a chat participant.
func (r *MessageRepo) Append(ctx context.Context, chatID string, sender models.User, content string) (models.Message, error) {
	r.chats.mu.Lock()
	defer r.chats.mu.Unlock()

	chat, ok := r.chats.chats[chatID]
	if !ok {
		return models.Message{}, ErrChatNotFound
	}
	if !chat.HasParticipant(sender.ID) {
		return models.Message{}, ErrNotParticipant
	}

	now := r.chats.opts.now()
	msg := models.Message{
		ID:             NewID(),
		ChatID:         chatID,
		SenderID:       sender.ID,
		SenderUsername: sender.Username,
		Content:        content,
		Timestamp:      now,
		ExpiresAt:      now.Add(models.MessageTTL),
	}
	chat.Messages = append(chat.Messages, msg)
	chat.LastActivity = now
	return msg, nil
}

// MarkRead flags a message as read.
func (r *MessageRepo) MarkRead(ctx context.Context, chatID string, messageID string) (models.Message, error) {
	r.chats.mu.Lock()
	defer r.chats.mu.Unlock()

	chat, ok := r.chats.chats[chatID]
	if !ok {
		return models.Message{}, ErrChatNotFound
	}
	for i := range chat.Messages {
		if chat.Messages[i].ID == messageID {
			chat.Messages[i].IsRead = true
			return chat.Messages[i], nil
		}
	}
	return models.Message{}, ErrMessageNotFound
}

// SweepExpired removes every message whose expiry is at or before now and
// returns them in log order. Survivors keep their order.
func (r *MessageRepo) SweepExpired(ctx context.Context, chatID string, now time.Time) ([]models.Message, error) {
	r.chats.mu.Lock()
	defer r.chats.mu.Unlock()

	chat, ok := r.chats.chats[chatID]
	if !ok {
		return nil, ErrChatNotFound
	}

	var removed []models.Message
	kept := chat.Messages[:0]
	for _, m := range chat.Messages {
		if m.Expired(now) {
			removed = append(removed, m)
			continue
		}
		kept = append(kept, m)
	}
	chat.Messages = kept
	return removed, nil
}

// ListMessages returns the current log of a chat.
func (r *MessageRepo) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	r.chats.mu.RLock()
	defer r.chats.mu.RUnlock()

	chat, ok := r.chats.chats[chatID]
	if !ok {
		return nil, ErrChatNotFound
	}
	return append([]models.Message{}, chat.Messages...), nil
}
