package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"clinic-chat-service/internal/models"
)

var ErrChatNotFound = errors.New("chat not found")

// ChatRepository abstracts chat persistence.
type ChatRepository interface {
	CreateOrGetChat(ctx context.Context, userID int, otherID int) (models.Chat, error)
	GetChat(ctx context.Context, chatID int) (models.Chat, error)
	IsParticipant(ctx context.Context, chatID int, userID int) (bool, error)
	ListChats(ctx context.Context, userID int) ([]models.ChatListEntry, error)
	DeleteChat(ctx context.Context, chatID int) error
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// CreateOrGetChat returns the chat between the two users, creating it if it
// does not exist yet. The pair is normalized before lookup so the call is
// idempotent regardless of argument order.
func (r *ChatRepo) CreateOrGetChat(ctx context.Context, userID int, otherID int) (models.Chat, error) {
	user1, user2 := userID, otherID
	if user1 > user2 {
		user1, user2 = user2, user1
	}

	var chat models.Chat
	query := `SELECT id, user1_id, user2_id, created_at FROM chats WHERE user1_id=$1 AND user2_id=$2`
	err := r.db.GetContext(ctx, &chat, query, user1, user2)
	if err == nil {
		return chat, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, err
	}

	err = r.db.QueryRowxContext(ctx,
		`INSERT INTO chats (user1_id, user2_id) VALUES ($1, $2)
         ON CONFLICT (user1_id, user2_id) DO UPDATE SET user1_id = EXCLUDED.user1_id
         RETURNING id, user1_id, user2_id, created_at`, user1, user2).
		Scan(&chat.ID, &chat.User1ID, &chat.User2ID, &chat.CreatedAt)
	if err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT id, user1_id, user2_id, created_at FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// IsParticipant checks whether a user belongs to the chat.
func (r *ChatRepo) IsParticipant(ctx context.Context, chatID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chats WHERE id=$1 AND (user1_id=$2 OR user2_id=$2))`, chatID, userID)
	return exists, err
}

type chatListRow struct {
	ID          int           `db:"id"`
	User1ID     int           `db:"user1_id"`
	User2ID     int           `db:"user2_id"`
	CreatedAt   sql.NullTime  `db:"created_at"`
	LastID      sql.NullInt64 `db:"last_id"`
	LastSender  sql.NullInt64 `db:"last_sender_id"`
	LastContent sql.NullString `db:"last_content"`
	LastRead    sql.NullBool  `db:"last_is_read"`
	LastAt      sql.NullTime  `db:"last_at"`
}

// ListChats returns the user's chats with their most recent message,
// ordered by that message's timestamp descending. Chats that have no
// messages yet sort last, newest chat first among them.
func (r *ChatRepo) ListChats(ctx context.Context, userID int) ([]models.ChatListEntry, error) {
	query := `SELECT c.id, c.user1_id, c.user2_id, c.created_at,
            m.id AS last_id, m.sender_id AS last_sender_id, m.content AS last_content,
            m.is_read AS last_is_read, m.created_at AS last_at
        FROM chats c
        LEFT JOIN LATERAL (
            SELECT id, sender_id, content, is_read, created_at
            FROM messages WHERE chat_id = c.id
            ORDER BY created_at DESC, id DESC LIMIT 1
        ) m ON TRUE
        WHERE c.user1_id=$1 OR c.user2_id=$1
        ORDER BY m.created_at DESC NULLS LAST, c.created_at DESC`

	var rows []chatListRow
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}

	result := make([]models.ChatListEntry, 0, len(rows))
	for _, row := range rows {
		entry := models.ChatListEntry{
			Chat: models.Chat{
				ID:        row.ID,
				User1ID:   row.User1ID,
				User2ID:   row.User2ID,
				CreatedAt: row.CreatedAt.Time,
			},
		}
		if row.LastID.Valid {
			entry.LastMessage = &models.Message{
				ID:        int(row.LastID.Int64),
				ChatID:    row.ID,
				SenderID:  int(row.LastSender.Int64),
				Content:   row.LastContent.String,
				IsRead:    row.LastRead.Bool,
				CreatedAt: row.LastAt.Time,
			}
		}
		result = append(result, entry)
	}
	return result, nil
}

// DeleteChat removes the chat; messages and attachments cascade.
func (r *ChatRepo) DeleteChat(ctx context.Context, chatID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chats WHERE id=$1`, chatID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrChatNotFound
	}
	return nil
}
