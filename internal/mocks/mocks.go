package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"clinic-chat-service/internal/delivery"
	"clinic-chat-service/internal/models"
	"clinic-chat-service/internal/repositories"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) CreateOrGetChat(ctx context.Context, userID int, otherID int) (models.Chat, error) {
	args := m.Called(ctx, userID, otherID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) IsParticipant(ctx context.Context, chatID int, userID int) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ChatRepositoryMock) ListChats(ctx context.Context, userID int) ([]models.ChatListEntry, error) {
	args := m.Called(ctx, userID)
	var list []models.ChatListEntry
	if val := args.Get(0); val != nil {
		list = val.([]models.ChatListEntry)
	}
	return list, args.Error(1)
}

func (m *ChatRepositoryMock) DeleteChat(ctx context.Context, chatID int) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, chatID int, senderID int, content string, attachments []models.AttachmentInput) (models.MessageWithAttachments, error) {
	args := m.Called(ctx, chatID, senderID, content, attachments)
	var msg models.MessageWithAttachments
	if val := args.Get(0); val != nil {
		msg = val.(models.MessageWithAttachments)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) History(ctx context.Context, chatID int, limit int) ([]models.MessageWithAttachments, error) {
	args := m.Called(ctx, chatID, limit)
	var msgs []models.MessageWithAttachments
	if val := args.Get(0); val != nil {
		msgs = val.([]models.MessageWithAttachments)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, chatID int, readerID int) (int64, error) {
	args := m.Called(ctx, chatID, readerID)
	return args.Get(0).(int64), args.Error(1)
}

type UserDirectoryMock struct {
	mock.Mock
}

func (m *UserDirectoryMock) Get(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserDirectoryMock) BulkGet(ctx context.Context, ids []int) ([]models.User, error) {
	args := m.Called(ctx, ids)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) SendToUser(userID int, payload []byte) bool {
	args := m.Called(userID, payload)
	return args.Bool(0)
}

type DelivererMock struct {
	mock.Mock
}

func (m *DelivererMock) Deliver(ctx context.Context, chatID int, senderID int, content string, attachments []models.AttachmentInput) (models.MessageWithAttachments, error) {
	args := m.Called(ctx, chatID, senderID, content, attachments)
	var msg models.MessageWithAttachments
	if val := args.Get(0); val != nil {
		msg = val.(models.MessageWithAttachments)
	}
	return msg, args.Error(1)
}

type ChatServiceMock struct {
	mock.Mock
}

func (m *ChatServiceMock) CreateOrGetChat(ctx context.Context, userA int, userB int) (models.Chat, error) {
	args := m.Called(ctx, userA, userB)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatServiceMock) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatServiceMock) ListChatsForUser(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.ChatSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ChatSummary)
	}
	return list, args.Error(1)
}

func (m *ChatServiceMock) GetHistory(ctx context.Context, chatID int, requesterID int, limit int) ([]models.MessageWithAttachments, error) {
	args := m.Called(ctx, chatID, requesterID, limit)
	var msgs []models.MessageWithAttachments
	if val := args.Get(0); val != nil {
		msgs = val.([]models.MessageWithAttachments)
	}
	return msgs, args.Error(1)
}

func (m *ChatServiceMock) MarkRead(ctx context.Context, chatID int, requesterID int) (int64, error) {
	args := m.Called(ctx, chatID, requesterID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *ChatServiceMock) DeleteChat(ctx context.Context, chatID int, requesterID int) error {
	args := m.Called(ctx, chatID, requesterID)
	return args.Error(0)
}

var _ repositories.ChatRepository = (*ChatRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.UserDirectory = (*UserDirectoryMock)(nil)
var _ delivery.Notifier = (*NotifierMock)(nil)
