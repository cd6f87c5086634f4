package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"

	"nox-relay/internal/models"
	"nox-relay/internal/repositories"
)

func (d *Dispatcher) register(ctx context.Context, connID string, data json.RawMessage) {
	var payload registerPayload
	if err := decode(data, &payload); err != nil {
		d.drop(ctx, connID, models.EventUserConnect, "decode_error", err)
		return
	}
	if payload.ID == "" {
		payload.ID = repositories.NewID()
	}

	// A rebind must not leave either side listening to the other identity's chats.
	if prev, err := d.users.ResolveUser(ctx, connID); err == nil && prev.ID != payload.ID {
		d.hub.UnsubscribeAll(connID)
	}
	if prevConn, ok := d.users.ConnectionFor(ctx, payload.ID); ok && prevConn != connID {
		d.hub.UnsubscribeAll(prevConn)
	}

	user := d.users.Register(ctx, connID, models.User{ID: payload.ID, Username: payload.Username})
	for _, chatID := range d.chats.ChatsForUser(ctx, user.ID) {
		d.hub.Subscribe(chatID, connID)
	}

	log.Printf("user registered user_id=%s conn_id=%s", user.ID, connID)
	d.hub.SendTo(connID, models.Event{Type: models.EventUserRegistered, Data: user})
	d.hub.BroadcastExcept(connID, models.Event{Type: models.EventUserOnline, Data: user})
	d.audit.EmitFields(ctx, "INFO", "user registered", "", user.ID, map[string]string{"conn_id": connID})
}

func (d *Dispatcher) search(ctx context.Context, connID string, actor models.User, data json.RawMessage) {
	query, err := decodeQuery(data)
	if err != nil {
		d.drop(ctx, connID, models.EventUserSearch, "decode_error", err)
		return
	}
	found := d.users.Search(ctx, query, actor.ID)
	d.hub.SendTo(connID, models.Event{Type: models.EventUserFound, Data: found})
}

func (d *Dispatcher) random(ctx context.Context, connID string, actor models.User, _ json.RawMessage) {
	found := []models.User{}
	if user, err := d.users.PickRandomOnline(ctx, actor.ID); err == nil {
		found = append(found, user)
	}
	d.hub.SendTo(connID, models.Event{Type: models.EventUserFound, Data: found})
}

func (d *Dispatcher) createChat(ctx context.Context, connID string, actor models.User, data json.RawMessage) {
	d.create(ctx, connID, actor, data, false)
}

func (d *Dispatcher) createGroup(ctx context.Context, connID string, actor models.User, data json.RawMessage) {
	d.create(ctx, connID, actor, data, true)
}

func (d *Dispatcher) create(ctx context.Context, connID string, actor models.User, data json.RawMessage, group bool) {
	var payload createPayload
	if err := decode(data, &payload); err != nil {
		d.drop(ctx, connID, models.EventChatCreate, "decode_error", err)
		return
	}

	kind, ok := models.ParseChatKind(payload.Type)
	if group {
		kind, ok = models.ChatKindGroup, true
	}
	if !ok {
		d.drop(ctx, connID, models.EventChatCreate, "invalid_kind", nil)
		return
	}

	others := make([]models.User, 0, len(payload.ParticipantIDs))
	for _, id := range payload.ParticipantIDs {
		if id == actor.ID {
			continue
		}
		user, err := d.users.GetUser(ctx, id)
		if err != nil {
			continue
		}
		others = append(others, user)
	}

	chat, err := d.chats.CreateChat(ctx, kind, actor, models.ChatOptions{
		Name:            payload.Name,
		Description:     payload.Description,
		MaxParticipants: payload.MaxParticipants,
		IsPublic:        payload.IsPublic,
	}, others)
	if err != nil {
		d.drop(ctx, connID, models.EventChatCreate, dropReason(err), err)
		return
	}

	d.subscribeParticipants(ctx, chat)
	d.hub.Publish(chat.ID, models.Event{Type: models.EventChatCreated, Data: d.view(ctx, chat)}, "")

	log.Printf("chat created chat_id=%s type=%s participants=%d", chat.ID, chat.Kind, len(chat.Participants))
	d.audit.EmitFields(ctx, "INFO", "chat created", "", actor.ID, map[string]string{
		"chat_id":      chat.ID,
		"type":         string(chat.Kind),
		"participants": strconv.Itoa(len(chat.Participants)),
	})
}

func (d *Dispatcher) join(ctx context.Context, connID string, actor models.User, data json.RawMessage) {
	var payload joinPayload
	if err := decode(data, &payload); err != nil {
		d.drop(ctx, connID, models.EventChatJoin, "decode_error", err)
		return
	}

	var peer *models.User
	if peerID := payload.peer(); peerID != "" {
		if user, err := d.users.GetUser(ctx, peerID); err == nil {
			peer = &user
		}
	}

	chat, result, err := d.chats.JoinOrCreateDirect(ctx, payload.ChatID, actor, peer)
	if err != nil {
		d.drop(ctx, connID, models.EventChatJoin, dropReason(err), err)
		return
	}

	d.hub.Subscribe(chat.ID, connID)
	if result.Created {
		d.subscribeParticipants(ctx, chat)
	}

	view := d.view(ctx, chat)
	d.hub.SendTo(connID, models.Event{Type: models.EventChatJoined, Data: view})
	if result.Changed() {
		d.hub.Publish(chat.ID, models.Event{
			Type: models.EventUserJoined,
			Data: models.UserJoinedEvent{ChatID: chat.ID, User: actor, Chat: view},
		}, connID)
	}
}

func (d *Dispatcher) send(ctx context.Context, connID string, actor models.User, data json.RawMessage) {
	var payload sendPayload
	if err := decode(data, &payload); err != nil {
		d.drop(ctx, connID, models.EventMessageSend, "decode_error", err)
		return
	}

	msg, err := d.messages.Append(ctx, payload.ChatID, actor, payload.Content)
	if err != nil {
		d.drop(ctx, connID, models.EventMessageSend, dropReason(err), err)
		return
	}
	d.hub.Publish(payload.ChatID, models.Event{Type: models.EventMessageReceive, Data: msg}, "")
}

func (d *Dispatcher) markRead(ctx context.Context, connID string, actor models.User, data json.RawMessage) {
	var payload readPayload
	if err := decode(data, &payload); err != nil {
		d.drop(ctx, connID, models.EventMessageRead, "decode_error", err)
		return
	}
	if err := d.requireParticipant(ctx, payload.ChatID, actor.ID); err != nil {
		d.drop(ctx, connID, models.EventMessageRead, dropReason(err), err)
		return
	}

	msg, err := d.messages.MarkRead(ctx, payload.ChatID, payload.MessageID)
	if err != nil {
		d.drop(ctx, connID, models.EventMessageRead, dropReason(err), err)
		return
	}
	d.hub.Publish(payload.ChatID, models.Event{Type: models.EventMessageUpdated, Data: msg}, "")
}

func (d *Dispatcher) typing(ctx context.Context, connID string, actor models.User, data json.RawMessage) {
	var payload typingPayload
	if err := decode(data, &payload); err != nil {
		d.drop(ctx, connID, models.EventUserTyping, "decode_error", err)
		return
	}
	if err := d.requireParticipant(ctx, payload.ChatID, actor.ID); err != nil {
		d.drop(ctx, connID, models.EventUserTyping, dropReason(err), err)
		return
	}

	d.hub.Publish(payload.ChatID, models.Event{
		Type: models.EventUserTyping,
		Data: models.TypingEvent{
			ChatID:   payload.ChatID,
			UserID:   actor.ID,
			Username: actor.Username,
			IsTyping: payload.IsTyping,
		},
	}, connID)
}

func (d *Dispatcher) leave(ctx context.Context, connID string, actor models.User, data json.RawMessage) {
	var payload leavePayload
	if err := decode(data, &payload); err != nil {
		d.drop(ctx, connID, models.EventChatLeave, "decode_error", err)
		return
	}
	d.hub.Unsubscribe(payload.ChatID, connID)

	if err := d.leaveChat(ctx, connID, payload.ChatID, actor.ID); err != nil {
		d.drop(ctx, connID, models.EventChatLeave, dropReason(err), err)
	}
}

// burn removes the actor from every chat and then from the directory. The
// connection stays open but is anonymous again.
func (d *Dispatcher) burn(ctx context.Context, connID string, actor models.User, _ json.RawMessage) {
	chatIDs := d.chats.ChatsForUser(ctx, actor.ID)
	for _, chatID := range chatIDs {
		if err := d.leaveChat(ctx, connID, chatID, actor.ID); err != nil {
			log.Printf("session burn leave failed chat_id=%s user_id=%s: %v", chatID, actor.ID, err)
		}
	}
	d.hub.UnsubscribeAll(connID)

	if err := d.users.Remove(ctx, actor.ID); err != nil {
		log.Printf("session burn remove failed user_id=%s: %v", actor.ID, err)
	}

	log.Printf("session burned user_id=%s chats=%d", actor.ID, len(chatIDs))
	d.hub.SendTo(connID, models.Event{Type: models.EventSessionBurned})
	d.audit.EmitFields(ctx, "INFO", "session burned", "", actor.ID, map[string]string{
		"chats": strconv.Itoa(len(chatIDs)),
	})
}

func (d *Dispatcher) leaveChat(ctx context.Context, connID, chatID, userID string) error {
	remaining, err := d.chats.Leave(ctx, chatID, userID)
	if err != nil {
		return err
	}
	d.hub.Unsubscribe(chatID, connID)

	if remaining == 0 {
		d.hub.CloseTopic(chatID)
		log.Printf("chat closed chat_id=%s", chatID)
		return nil
	}
	d.hub.Publish(chatID, models.Event{
		Type: models.EventUserLeft,
		Data: models.UserLeftEvent{ChatID: chatID, UserID: userID},
	}, connID)
	return nil
}

func (d *Dispatcher) requireParticipant(ctx context.Context, chatID, userID string) error {
	chat, err := d.chats.GetChat(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.HasParticipant(userID) {
		return repositories.ErrNotParticipant
	}
	return nil
}

func (d *Dispatcher) subscribeParticipants(ctx context.Context, chat models.Chat) {
	for _, p := range chat.Participants {
		if connID, ok := d.users.ConnectionFor(ctx, p.ID); ok {
			d.hub.Subscribe(chat.ID, connID)
		}
	}
}

// view refreshes participant records from the directory so presence flags
// reflect the current state rather than the state at join time.
func (d *Dispatcher) view(ctx context.Context, chat models.Chat) models.Chat {
	for i, p := range chat.Participants {
		if user, err := d.users.GetUser(ctx, p.ID); err == nil {
			chat.Participants[i] = user
		}
	}
	return chat
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, repositories.ErrChatNotFound):
		return "chat_not_found"
	case errors.Is(err, repositories.ErrNotParticipant):
		return "not_participant"
	case errors.Is(err, repositories.ErrMessageNotFound):
		return "message_not_found"
	case errors.Is(err, repositories.ErrChatFull):
		return "chat_full"
	case errors.Is(err, repositories.ErrUserNotFound):
		return "user_not_found"
	default:
		return "error"
	}
}
