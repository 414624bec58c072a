package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"clinic-chat-service/internal/mocks"
	"clinic-chat-service/internal/models"
	"clinic-chat-service/internal/repositories"
)

func newTestService(historyLimit int) (*ChatService, *mocks.ChatRepositoryMock, *mocks.MessageRepositoryMock, *mocks.UserDirectoryMock) {
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	users := new(mocks.UserDirectoryMock)
	return NewChatService(chats, messages, users, historyLimit), chats, messages, users
}

func TestCreateOrGetChatSameUser(t *testing.T) {
	svc, chats, _, users := newTestService(0)

	_, err := svc.CreateOrGetChat(context.Background(), 1, 1)
	require.ErrorIs(t, err, ErrSameUser)
	users.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	chats.AssertNotCalled(t, "CreateOrGetChat", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateOrGetChatUnknownRecipient(t *testing.T) {
	svc, chats, _, users := newTestService(0)

	users.On("Get", mock.Anything, 1).Return(models.User{ID: 1}, nil).Once()
	users.On("Get", mock.Anything, 9).Return(models.User{}, repositories.ErrUserNotFound).Once()

	_, err := svc.CreateOrGetChat(context.Background(), 1, 9)
	require.ErrorIs(t, err, repositories.ErrUserNotFound)
	chats.AssertNotCalled(t, "CreateOrGetChat", mock.Anything, mock.Anything, mock.Anything)
	users.AssertExpectations(t)
}

func TestCreateOrGetChatPassesThrough(t *testing.T) {
	svc, chats, _, users := newTestService(0)

	users.On("Get", mock.Anything, 2).Return(models.User{ID: 2}, nil).Once()
	users.On("Get", mock.Anything, 1).Return(models.User{ID: 1}, nil).Once()
	chats.On("CreateOrGetChat", mock.Anything, 2, 1).Return(models.Chat{ID: 5, User1ID: 1, User2ID: 2}, nil).Once()

	chat, err := svc.CreateOrGetChat(context.Background(), 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, chat.ID)
	chats.AssertExpectations(t)
}

func TestListChatsForUserMergesCounterparts(t *testing.T) {
	svc, chats, _, users := newTestService(0)

	last := &models.Message{ID: 8, ChatID: 3, SenderID: 2, Content: "see you at 10"}
	entries := []models.ChatListEntry{
		{Chat: models.Chat{ID: 3, User1ID: 1, User2ID: 2, CreatedAt: time.Now()}, LastMessage: last},
		{Chat: models.Chat{ID: 4, User1ID: 1, User2ID: 7}},
	}
	chats.On("ListChats", mock.Anything, 1).Return(entries, nil).Once()
	// Directory has no row for user 7; the summary still lists the chat.
	users.On("BulkGet", mock.Anything, []int{2, 7}).Return([]models.User{{ID: 2, DisplayName: "Dr. Pavlova"}}, nil).Once()

	summaries, err := svc.ListChatsForUser(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, 3, summaries[0].ChatID)
	assert.Equal(t, "Dr. Pavlova", summaries[0].Counterpart.DisplayName)
	assert.Equal(t, last, summaries[0].LastMessage)

	assert.Equal(t, 4, summaries[1].ChatID)
	assert.Equal(t, 7, summaries[1].Counterpart.ID)
	assert.Nil(t, summaries[1].LastMessage)
	users.AssertExpectations(t)
}

func TestGetHistoryRequiresParticipant(t *testing.T) {
	svc, chats, messages, _ := newTestService(0)

	chats.On("GetChat", mock.Anything, 3).Return(models.Chat{ID: 3, User1ID: 1, User2ID: 2}, nil).Once()

	_, err := svc.GetHistory(context.Background(), 3, 99, 0)
	require.ErrorIs(t, err, ErrNotParticipant)
	messages.AssertNotCalled(t, "History", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetHistoryAppliesDefaultLimit(t *testing.T) {
	svc, chats, messages, _ := newTestService(10)

	chats.On("GetChat", mock.Anything, 3).Return(models.Chat{ID: 3, User1ID: 1, User2ID: 2}, nil).Once()
	messages.On("History", mock.Anything, 3, 10).Return([]models.MessageWithAttachments{}, nil).Once()

	_, err := svc.GetHistory(context.Background(), 3, 1, 0)
	require.NoError(t, err)
	messages.AssertExpectations(t)
}

func TestGetHistoryHonorsExplicitLimit(t *testing.T) {
	svc, chats, messages, _ := newTestService(10)

	chats.On("GetChat", mock.Anything, 3).Return(models.Chat{ID: 3, User1ID: 1, User2ID: 2}, nil).Once()
	messages.On("History", mock.Anything, 3, 50).Return([]models.MessageWithAttachments{}, nil).Once()

	_, err := svc.GetHistory(context.Background(), 3, 1, 50)
	require.NoError(t, err)
	messages.AssertExpectations(t)
}

func TestMarkReadRequiresParticipant(t *testing.T) {
	svc, chats, messages, _ := newTestService(0)

	chats.On("GetChat", mock.Anything, 3).Return(models.Chat{ID: 3, User1ID: 1, User2ID: 2}, nil).Once()

	_, err := svc.MarkRead(context.Background(), 3, 99)
	require.ErrorIs(t, err, ErrNotParticipant)
	messages.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkReadPassesThrough(t *testing.T) {
	svc, chats, messages, _ := newTestService(0)

	chats.On("GetChat", mock.Anything, 3).Return(models.Chat{ID: 3, User1ID: 1, User2ID: 2}, nil).Once()
	messages.On("MarkRead", mock.Anything, 3, 2).Return(int64(4), nil).Once()

	changed, err := svc.MarkRead(context.Background(), 3, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), changed)
	messages.AssertExpectations(t)
}

func TestDeleteChatRequiresParticipant(t *testing.T) {
	svc, chats, _, _ := newTestService(0)

	chats.On("GetChat", mock.Anything, 3).Return(models.Chat{ID: 3, User1ID: 1, User2ID: 2}, nil).Once()

	err := svc.DeleteChat(context.Background(), 3, 99)
	require.ErrorIs(t, err, ErrNotParticipant)
	chats.AssertNotCalled(t, "DeleteChat", mock.Anything, mock.Anything)
}

func TestDeleteChatNotFound(t *testing.T) {
	svc, chats, _, _ := newTestService(0)

	chats.On("GetChat", mock.Anything, 3).Return(models.Chat{}, repositories.ErrChatNotFound).Once()

	err := svc.DeleteChat(context.Background(), 3, 1)
	require.ErrorIs(t, err, repositories.ErrChatNotFound)
}

func TestDeleteChatPassesThrough(t *testing.T) {
	svc, chats, _, _ := newTestService(0)

	chats.On("GetChat", mock.Anything, 3).Return(models.Chat{ID: 3, User1ID: 1, User2ID: 2}, nil).Once()
	chats.On("DeleteChat", mock.Anything, 3).Return(nil).Once()

	err := svc.DeleteChat(context.Background(), 3, 2)
	require.NoError(t, err)
	chats.AssertExpectations(t)
}
