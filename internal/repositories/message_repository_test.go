package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nox-relay/internal/models"
)

func setupLedger(t *testing.T) (*ChatRepo, *MessageRepo, *fakeClock, models.Chat) {
	t.Helper()
	clock := newFakeClock()
	chats := NewChatRepo(WithClock(clock.Now))
	chat, _, err := chats.JoinOrCreateDirect(context.Background(), "", alice, &bob)
	require.NoError(t, err)
	return chats, NewMessageRepo(chats), clock, chat
}

func TestAppendStampsExpiry(t *testing.T) {
	ctx := context.Background()
	chats, messages, clock, chat := setupLedger(t)
	clock.Advance(10 * time.Second)

	msg, err := messages.Append(ctx, chat.ID, alice, "hi")
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, chat.ID, msg.ChatID)
	assert.Equal(t, alice.ID, msg.SenderID)
	assert.Equal(t, "Alice", msg.SenderUsername)
	assert.Equal(t, clock.Now(), msg.Timestamp)
	assert.Equal(t, models.MessageTTL, msg.ExpiresAt.Sub(msg.Timestamp))
	assert.False(t, msg.IsRead)
	assert.False(t, msg.IsRepliedTo)

	updated, err := chats.GetChat(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), updated.LastActivity)
	require.Len(t, updated.Messages, 1)
}

func TestAppendRequiresChatAndMembership(t *testing.T) {
	ctx := context.Background()
	_, messages, _, chat := setupLedger(t)

	_, err := messages.Append(ctx, "missing", alice, "hi")
	assert.ErrorIs(t, err, ErrChatNotFound)

	_, err = messages.Append(ctx, chat.ID, carol, "hi")
	assert.ErrorIs(t, err, ErrNotParticipant)

	list, err := messages.ListMessages(ctx, chat.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()
	_, messages, _, chat := setupLedger(t)
	msg, err := messages.Append(ctx, chat.ID, alice, "hi")
	require.NoError(t, err)

	updated, err := messages.MarkRead(ctx, chat.ID, msg.ID)
	require.NoError(t, err)
	assert.True(t, updated.IsRead)

	_, err = messages.MarkRead(ctx, chat.ID, "missing")
	assert.ErrorIs(t, err, ErrMessageNotFound)
	_, err = messages.MarkRead(ctx, "missing", msg.ID)
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestSweepExpiredKeepsOrderOfSurvivors(t *testing.T) {
	ctx := context.Background()
	_, messages, clock, chat := setupLedger(t)

	first, err := messages.Append(ctx, chat.ID, alice, "one")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	second, err := messages.Append(ctx, chat.ID, bob, "two")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	third, err := messages.Append(ctx, chat.ID, alice, "three")
	require.NoError(t, err)

	removed, err := messages.SweepExpired(ctx, chat.ID, first.Timestamp.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, removed)

	// expiry is inclusive
	removed, err = messages.SweepExpired(ctx, chat.ID, first.ExpiresAt)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, first.ID, removed[0].ID)

	list, err := messages.ListMessages(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, third.ID, list[1].ID)

	removed, err = messages.SweepExpired(ctx, chat.ID, third.ExpiresAt.Add(time.Second))
	require.NoError(t, err)
	assert.Len(t, removed, 2)

	_, err = messages.SweepExpired(ctx, "missing", clock.Now())
	assert.ErrorIs(t, err, ErrChatNotFound)
}
