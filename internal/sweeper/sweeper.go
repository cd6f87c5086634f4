package sweeper

import (
	"context"
	"errors"
	"log"
	"time"

	"nox-relay/internal/models"
	"nox-relay/internal/observability"
	"nox-relay/internal/repositories"
)

// DefaultInterval is the period between two expiry sweeps.
const DefaultInterval = 60 * time.Second

// Notifier is told about every message a sweep removes.
type Notifier interface {
	MessageExpired(ctx context.Context, chatID string, msg models.Message)
}

// Sweeper evicts expired messages from every live chat. It never removes
// chats.
type Sweeper struct {
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	notifier Notifier
}

func New(chats repositories.ChatRepository, messages repositories.MessageRepository, notifier Notifier) *Sweeper {
	return &Sweeper{chats: chats, messages: messages, notifier: notifier}
}

// Sweep removes every message with expiresAt at or before now, visiting
// chats in creation order, and returns how many were removed.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) int {
	start := time.Now()
	total := 0

	for _, chatID := range s.chats.ChatIDs(ctx) {
		removed, err := s.messages.SweepExpired(ctx, chatID, now)
		if err != nil {
			if !errors.Is(err, repositories.ErrChatNotFound) {
				log.Printf("sweep failed chat_id=%s: %v", chatID, err)
			}
			continue
		}
		for _, msg := range removed {
			s.notifier.MessageExpired(ctx, chatID, msg)
		}
		if len(removed) > 0 {
			log.Printf("cleaned up expired messages chat_id=%s count=%d", chatID, len(removed))
		}
		total += len(removed)
	}

	observability.AddMessagesExpired(total)
	observability.ObserveSweep(time.Since(start))
	return total
}
