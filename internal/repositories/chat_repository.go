package repositories

import (
	"context"
	"errors"
	"sync"

	"nox-relay/internal/models"
)

var (
	ErrChatNotFound   = errors.New("chat not found")
	ErrNotParticipant = errors.New("user is not a chat participant")
	ErrChatFull       = errors.New("chat is full")
)

// JoinResult reports how a join changed the room store.
type JoinResult struct {
	Created bool
	Added   bool
}

// Changed reports whether the membership of the chat changed.
func (j JoinResult) Changed() bool {
	return j.Created || j.Added
}

// ChatRepository abstracts room creation, membership and teardown.
type ChatRepository interface {
	CreateChat(ctx context.Context, kind models.ChatKind, creator models.User, opts models.ChatOptions, others []models.User) (models.Chat, error)
	GetChat(ctx context.Context, chatID string) (models.Chat, error)
	JoinOrCreateDirect(ctx context.Context, chatID string, requester models.User, peer *models.User) (models.Chat, JoinResult, error)
	Leave(ctx context.Context, chatID string, userID string) (int, error)
	ChatsForUser(ctx context.Context, userID string) []string
	ChatIDs(ctx context.Context) []string
	Count(ctx context.Context) int
}

// ChatRepo is an in-memory ChatRepository. Message logs live on the chat
// records and are managed through MessageRepo.
type ChatRepo struct {
	mu    sync.RWMutex
	chats map[string]*models.Chat
	order []string
	opts  options
}

// NewChatRepo constructs an empty ChatRepo.
func NewChatRepo(opts ...Option) *ChatRepo {
	return &ChatRepo{
		chats: make(map[string]*models.Chat),
		opts:  buildOptions(opts),
	}
}

// CreateChat allocates a chat owned by creator. Other users are added in order,
// skipping duplicates and the creator.
func (r *ChatRepo) CreateChat(ctx context.Context, kind models.ChatKind, creator models.User, opts models.ChatOptions, others []models.User) (models.Chat, error) {
	participants := []models.User{creator}
	seen := map[string]struct{}{creator.ID: {}}
	for _, u := range others {
		if _, dup := seen[u.ID]; dup {
			continue
		}
		seen[u.ID] = struct{}{}
		participants = append(participants, u)
	}
	if opts.MaxParticipants > 0 && len(participants) > opts.MaxParticipants {
		return models.Chat{}, ErrChatFull
	}

	now := r.opts.now()
	chat := &models.Chat{
		ID:           NewID(),
		Kind:         kind,
		Participants: participants,
		Messages:     []models.Message{},
		CreatedAt:    now,
		LastActivity: now,
		IsActive:     true,
	}
	if kind == models.ChatKindGroup {
		chat.Name = opts.Name
		chat.Description = opts.Description
		chat.MaxParticipants = opts.MaxParticipants
		chat.IsPublic = opts.IsPublic
		chat.CreatedBy = creator.ID
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.insert(chat)
	return cloneChat(chat), nil
}

// GetChat fetches a copy of a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID string) (models.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chat, ok := r.chats[chatID]
	if !ok {
		return models.Chat{}, ErrChatNotFound
	}
	return cloneChat(chat), nil
}

// JoinOrCreateDirect adds requester to an existing chat, or creates a direct
// chat with peer when chatID does not resolve. ErrChatNotFound means neither
// the chat nor the peer could be used.
func (r *ChatRepo) JoinOrCreateDirect(ctx context.Context, chatID string, requester models.User, peer *models.User) (models.Chat, JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if chat, ok := r.chats[chatID]; ok {
		if chat.HasParticipant(requester.ID) {
			return cloneChat(chat), JoinResult{}, nil
		}
		if chat.MaxParticipants > 0 && len(chat.Participants) >= chat.MaxParticipants {
			return models.Chat{}, JoinResult{}, ErrChatFull
		}
		chat.Participants = append(chat.Participants, requester)
		return cloneChat(chat), JoinResult{Added: true}, nil
	}

	if peer == nil || peer.ID == requester.ID {
		return models.Chat{}, JoinResult{}, ErrChatNotFound
	}

	now := r.opts.now()
	chat := &models.Chat{
		ID:           NewID(),
		Kind:         models.ChatKindDirect,
		Participants: []models.User{requester, *peer},
		Messages:     []models.Message{},
		CreatedAt:    now,
		LastActivity: now,
		IsActive:     true,
	}
	r.insert(chat)
	return cloneChat(chat), JoinResult{Created: true, Added: true}, nil
}

// Leave removes userID from the chat and returns how many participants remain.
// A chat left with no participants is deleted.
func (r *ChatRepo) Leave(ctx context.Context, chatID string, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	chat, ok := r.chats[chatID]
	if !ok {
		return 0, ErrChatNotFound
	}

	idx := -1
	for i, p := range chat.Participants {
		if p.ID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return len(chat.Participants), ErrNotParticipant
	}

	chat.Participants = append(chat.Participants[:idx], chat.Participants[idx+1:]...)
	if len(chat.Participants) == 0 {
		r.remove(chatID)
		return 0, nil
	}
	return len(chat.Participants), nil
}

// ChatsForUser lists the ids of chats userID belongs to, in creation order.
func (r *ChatRepo) ChatsForUser(ctx context.Context, userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for _, id := range r.order {
		if r.chats[id].HasParticipant(userID) {
			ids = append(ids, id)
		}
	}
	return ids
}

// ChatIDs lists every chat id in creation order.
func (r *ChatRepo) ChatIDs(ctx context.Context) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Count returns the number of live chats.
func (r *ChatRepo) Count(ctx context.Context) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chats)
}

func (r *ChatRepo) insert(chat *models.Chat) {
	r.chats[chat.ID] = chat
	r.order = append(r.order, chat.ID)
}

func (r *ChatRepo) remove(chatID string) {
	delete(r.chats, chatID)
	for i, id := range r.order {
		if id == chatID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

func cloneChat(chat *models.Chat) models.Chat {
	c := *chat
	c.Participants = append([]models.User(nil), chat.Participants...)
	c.Messages = append([]models.Message{}, chat.Messages...)
	return c
}
