package delivery_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"clinic-chat-service/internal/delivery"
	"clinic-chat-service/internal/mocks"
	"clinic-chat-service/internal/models"
	"clinic-chat-service/internal/repositories"
)

func newTestRouter() (*delivery.Router, *mocks.ChatRepositoryMock, *mocks.MessageRepositoryMock, *mocks.NotifierMock) {
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	notifier := new(mocks.NotifierMock)
	return delivery.NewRouter(chats, messages, notifier), chats, messages, notifier
}

func TestDeliverChatNotFound(t *testing.T) {
	router, chats, messages, _ := newTestRouter()

	chats.On("GetChat", mock.Anything, 3).Return(models.Chat{}, repositories.ErrChatNotFound).Once()

	_, err := router.Deliver(context.Background(), 3, 1, "hi", nil)
	require.ErrorIs(t, err, repositories.ErrChatNotFound)
	messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	chats.AssertExpectations(t)
}

func TestDeliverSenderNotParticipant(t *testing.T) {
	router, chats, messages, _ := newTestRouter()

	chats.On("GetChat", mock.Anything, 3).Return(models.Chat{ID: 3, User1ID: 1, User2ID: 2}, nil).Once()

	_, err := router.Deliver(context.Background(), 3, 99, "hi", nil)
	require.ErrorIs(t, err, delivery.ErrSenderNotParticipant)
	messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeliverEmptyMessage(t *testing.T) {
	router, chats, messages, _ := newTestRouter()

	chats.On("GetChat", mock.Anything, 3).Return(models.Chat{ID: 3, User1ID: 1, User2ID: 2}, nil).Once()

	_, err := router.Deliver(context.Background(), 3, 1, "", nil)
	require.ErrorIs(t, err, delivery.ErrEmptyMessage)
	messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeliverEmptyContentWithAttachmentIsValid(t *testing.T) {
	router, chats, messages, notifier := newTestRouter()

	attachments := []models.AttachmentInput{{FilePath: "scans/knee.png", Kind: models.AttachmentKindImage}}
	stored := models.MessageWithAttachments{
		Message:     models.Message{ID: 10, ChatID: 3, SenderID: 1},
		Attachments: []models.Attachment{{ID: 1, MessageID: 10, FilePath: "scans/knee.png", Kind: models.AttachmentKindImage}},
	}

	chats.On("GetChat", mock.Anything, 3).Return(models.Chat{ID: 3, User1ID: 1, User2ID: 2}, nil).Once()
	messages.On("CreateMessage", mock.Anything, 3, 1, "", attachments).Return(stored, nil).Once()
	notifier.On("SendToUser", 2, mock.Anything).Return(true).Once()

	msg, err := router.Deliver(context.Background(), 3, 1, "", attachments)
	require.NoError(t, err)
	assert.Equal(t, 10, msg.ID)
	messages.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestDeliverUnsupportedAttachmentKind(t *testing.T) {
	router, chats, messages, _ := newTestRouter()

	chats.On("GetChat", mock.Anything, 3).Return(models.Chat{ID: 3, User1ID: 1, User2ID: 2}, nil).Once()

	_, err := router.Deliver(context.Background(), 3, 1, "", []models.AttachmentInput{{FilePath: "x.exe", Kind: "binary"}})
	require.ErrorIs(t, err, delivery.ErrAttachmentKind)
	messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeliverPersistErrorSkipsFanOut(t *testing.T) {
	router, chats, messages, notifier := newTestRouter()

	dbErr := errors.New("connection reset")
	chats.On("GetChat", mock.Anything, 3).Return(models.Chat{ID: 3, User1ID: 1, User2ID: 2}, nil).Once()
	messages.On("CreateMessage", mock.Anything, 3, 1, "hi", mock.Anything).
		Return(models.MessageWithAttachments{}, dbErr).Once()

	_, err := router.Deliver(context.Background(), 3, 1, "hi", nil)
	require.ErrorIs(t, err, dbErr)
	notifier.AssertNotCalled(t, "SendToUser", mock.Anything, mock.Anything)
}

func TestDeliverFansOutToCounterpart(t *testing.T) {
	router, chats, messages, notifier := newTestRouter()

	stored := models.MessageWithAttachments{Message: models.Message{ID: 11, ChatID: 3, SenderID: 2, Content: "hi"}}
	chats.On("GetChat", mock.Anything, 3).Return(models.Chat{ID: 3, User1ID: 1, User2ID: 2}, nil).Once()
	messages.On("CreateMessage", mock.Anything, 3, 2, "hi", mock.Anything).Return(stored, nil).Once()

	var payload []byte
	notifier.On("SendToUser", 1, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).([]byte)
	}).Return(true).Once()

	msg, err := router.Deliver(context.Background(), 3, 2, "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, 11, msg.ID)

	var event models.ChatEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, models.EventMessage, event.Type)
	require.NotNil(t, event.Message)
	assert.Equal(t, 11, event.Message.ID)
	notifier.AssertExpectations(t)
}

func TestDeliverOfflineRecipientStillSucceeds(t *testing.T) {
	router, chats, messages, notifier := newTestRouter()

	stored := models.MessageWithAttachments{Message: models.Message{ID: 12, ChatID: 3, SenderID: 1, Content: "hi"}}
	chats.On("GetChat", mock.Anything, 3).Return(models.Chat{ID: 3, User1ID: 1, User2ID: 2}, nil).Once()
	messages.On("CreateMessage", mock.Anything, 3, 1, "hi", mock.Anything).Return(stored, nil).Once()
	notifier.On("SendToUser", 2, mock.Anything).Return(false).Once()

	msg, err := router.Deliver(context.Background(), 3, 1, "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, 12, msg.ID)
	notifier.AssertExpectations(t)
}
