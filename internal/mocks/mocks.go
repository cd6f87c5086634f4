package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"nox-relay/internal/models"
	"nox-relay/internal/repositories"
)

var (
	_ repositories.UserRepository    = (*UserRepositoryMock)(nil)
	_ repositories.ChatRepository    = (*ChatRepositoryMock)(nil)
	_ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) Register(ctx context.Context, connID string, user models.User) models.User {
	args := m.Called(ctx, connID, user)
	return args.Get(0).(models.User)
}

func (m *UserRepositoryMock) ResolveUser(ctx context.Context, connID string) (models.User, error) {
	args := m.Called(ctx, connID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID string) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) ConnectionFor(ctx context.Context, userID string) (string, bool) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Bool(1)
}

func (m *UserRepositoryMock) MarkOffline(ctx context.Context, connID string) (models.User, error) {
	args := m.Called(ctx, connID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) Remove(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *UserRepositoryMock) Search(ctx context.Context, query string, excludingUserID string) []models.User {
	args := m.Called(ctx, query, excludingUserID)
	var list []models.User
	if val := args.Get(0); val != nil {
		list = val.([]models.User)
	}
	return list
}

func (m *UserRepositoryMock) PickRandomOnline(ctx context.Context, excludingUserID string) (models.User, error) {
	args := m.Called(ctx, excludingUserID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) Count(ctx context.Context) int {
	args := m.Called(ctx)
	return args.Int(0)
}

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) CreateChat(ctx context.Context, kind models.ChatKind, creator models.User, opts models.ChatOptions, others []models.User) (models.Chat, error) {
	args := m.Called(ctx, kind, creator, opts, others)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID string) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) JoinOrCreateDirect(ctx context.Context, chatID string, requester models.User, peer *models.User) (models.Chat, repositories.JoinResult, error) {
	args := m.Called(ctx, chatID, requester, peer)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	var result repositories.JoinResult
	if val := args.Get(1); val != nil {
		result = val.(repositories.JoinResult)
	}
	return chat, result, args.Error(2)
}

func (m *ChatRepositoryMock) Leave(ctx context.Context, chatID string, userID string) (int, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Int(0), args.Error(1)
}

func (m *ChatRepositoryMock) ChatsForUser(ctx context.Context, userID string) []string {
	args := m.Called(ctx, userID)
	var ids []string
	if val := args.Get(0); val != nil {
		ids = val.([]string)
	}
	return ids
}

func (m *ChatRepositoryMock) ChatIDs(ctx context.Context) []string {
	args := m.Called(ctx)
	var ids []string
	if val := args.Get(0); val != nil {
		ids = val.([]string)
	}
	return ids
}

func (m *ChatRepositoryMock) Count(ctx context.Context) int {
	args := m.Called(ctx)
	return args.Int(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Append(ctx context.Context, chatID string, sender models.User, content string) (models.Message, error) {
	args := m.Called(ctx, chatID, sender, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, chatID string, messageID string) (models.Message, error) {
	args := m.Called(ctx, chatID, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) SweepExpired(ctx context.Context, chatID string, now time.Time) ([]models.Message, error) {
	args := m.Called(ctx, chatID, now)
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	args := m.Called(ctx, chatID)
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list, args.Error(1)
}
