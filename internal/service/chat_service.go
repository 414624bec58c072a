package service

import (
	"context"
	"errors"

	"clinic-chat-service/internal/models"
	"clinic-chat-service/internal/repositories"
)

var (
	ErrSameUser       = errors.New("cannot start a chat with yourself")
	ErrNotParticipant = errors.New("requester is not a chat participant")
)

const defaultHistoryLimit = 25

// ChatService implements the chat lifecycle operations that do not touch
// live connections: creation, listing, history, read state and deletion.
type ChatService struct {
	chats        repositories.ChatRepository
	messages     repositories.MessageRepository
	users        repositories.UserDirectory
	historyLimit int
}

// NewChatService constructs a ChatService. historyLimit bounds GetHistory
// calls that pass no explicit limit; zero falls back to the default.
func NewChatService(chats repositories.ChatRepository, messages repositories.MessageRepository, users repositories.UserDirectory, historyLimit int) *ChatService {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &ChatService{chats: chats, messages: messages, users: users, historyLimit: historyLimit}
}

// CreateOrGetChat returns the chat between two distinct existing users,
// creating it on first use. Idempotent across argument order.
func (s *ChatService) CreateOrGetChat(ctx context.Context, userA int, userB int) (models.Chat, error) {
	if userA == userB {
		return models.Chat{}, ErrSameUser
	}
	if _, err := s.users.Get(ctx, userA); err != nil {
		return models.Chat{}, err
	}
	if _, err := s.users.Get(ctx, userB); err != nil {
		return models.Chat{}, err
	}
	return s.chats.CreateOrGetChat(ctx, userA, userB)
}

// GetChat fetches a chat by id.
func (s *ChatService) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	return s.chats.GetChat(ctx, chatID)
}

// ListChatsForUser returns the user's chats with counterpart identity and
// last message, most recently active first. Chats without messages come
// last.
func (s *ChatService) ListChatsForUser(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	entries, err := s.chats.ListChats(ctx, userID)
	if err != nil {
		return nil, err
	}

	counterpartIDs := make([]int, 0, len(entries))
	for _, entry := range entries {
		counterpartIDs = append(counterpartIDs, entry.Chat.OtherParticipant(userID))
	}
	users, err := s.users.BulkGet(ctx, counterpartIDs)
	if err != nil {
		return nil, err
	}
	userByID := make(map[int]models.User, len(users))
	for _, u := range users {
		userByID[u.ID] = u
	}

	summaries := make([]models.ChatSummary, 0, len(entries))
	for _, entry := range entries {
		counterpartID := entry.Chat.OtherParticipant(userID)
		counterpart, ok := userByID[counterpartID]
		if !ok {
			counterpart = models.User{ID: counterpartID}
		}
		summaries = append(summaries, models.ChatSummary{
			ChatID:      entry.Chat.ID,
			Counterpart: counterpart,
			LastMessage: entry.LastMessage,
			CreatedAt:   entry.Chat.CreatedAt,
		})
	}
	return summaries, nil
}

// GetHistory returns the most recent limit messages of the chat, oldest
// first, each with its attachments.
func (s *ChatService) GetHistory(ctx context.Context, chatID int, requesterID int, limit int) ([]models.MessageWithAttachments, error) {
	if err := s.requireParticipant(ctx, chatID, requesterID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.historyLimit
	}
	return s.messages.History(ctx, chatID, limit)
}

// MarkRead flips the read flag on every unread message in the chat not
// sent by the requester. Idempotent; returns the number of messages that
// changed state.
func (s *ChatService) MarkRead(ctx context.Context, chatID int, requesterID int) (int64, error) {
	if err := s.requireParticipant(ctx, chatID, requesterID); err != nil {
		return 0, err
	}
	return s.messages.MarkRead(ctx, chatID, requesterID)
}

// DeleteChat removes the chat with all its messages and attachments.
// Either participant may delete.
func (s *ChatService) DeleteChat(ctx context.Context, chatID int, requesterID int) error {
	if err := s.requireParticipant(ctx, chatID, requesterID); err != nil {
		return err
	}
	return s.chats.DeleteChat(ctx, chatID)
}

func (s *ChatService) requireParticipant(ctx context.Context, chatID int, userID int) error {
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.HasParticipant(userID) {
		return ErrNotParticipant
	}
	return nil
}
