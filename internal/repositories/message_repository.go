package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"clinic-chat-service/internal/models"
)

// MessageRepository is the durable message store. Each call is one atomic
// store operation; partial writes are never left behind.
type MessageRepository interface {
	CreateMessage(ctx context.Context, chatID int, senderID int, content string, attachments []models.AttachmentInput) (models.MessageWithAttachments, error)
	History(ctx context.Context, chatID int, limit int) ([]models.MessageWithAttachments, error)
	MarkRead(ctx context.Context, chatID int, readerID int) (int64, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message and its attachments in one transaction.
// The returned row carries the server-assigned id and timestamp, which fix
// the message's position in history.
func (r *MessageRepo) CreateMessage(ctx context.Context, chatID int, senderID int, content string, attachments []models.AttachmentInput) (models.MessageWithAttachments, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.MessageWithAttachments{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var msg models.MessageWithAttachments
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO messages (chat_id, sender_id, content) VALUES ($1, $2, $3)
         RETURNING id, chat_id, sender_id, content, is_read, created_at`,
		chatID, senderID, content).
		Scan(&msg.ID, &msg.ChatID, &msg.SenderID, &msg.Content, &msg.IsRead, &msg.CreatedAt)
	if err != nil {
		return models.MessageWithAttachments{}, fmt.Errorf("insert message: %w", err)
	}

	for _, in := range attachments {
		var att models.Attachment
		err = tx.QueryRowxContext(ctx,
			`INSERT INTO attachments (message_id, file_path, kind) VALUES ($1, $2, $3)
             RETURNING id, message_id, file_path, kind`,
			msg.ID, in.FilePath, in.Kind).
			Scan(&att.ID, &att.MessageID, &att.FilePath, &att.Kind)
		if err != nil {
			return models.MessageWithAttachments{}, fmt.Errorf("insert attachment: %w", err)
		}
		msg.Attachments = append(msg.Attachments, att)
	}

	if err := tx.Commit(); err != nil {
		return models.MessageWithAttachments{}, fmt.Errorf("commit message: %w", err)
	}
	return msg, nil
}

// History returns the most recent limit messages of the chat ordered
// oldest to newest, each with its attachments.
func (r *MessageRepo) History(ctx context.Context, chatID int, limit int) ([]models.MessageWithAttachments, error) {
	query := `SELECT id, chat_id, sender_id, content, is_read, created_at FROM (
            SELECT id, chat_id, sender_id, content, is_read, created_at
            FROM messages WHERE chat_id=$1
            ORDER BY created_at DESC, id DESC LIMIT $2
        ) recent ORDER BY created_at ASC, id ASC`

	var msgs []models.Message
	if err := r.db.SelectContext(ctx, &msgs, query, chatID, limit); err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return []models.MessageWithAttachments{}, nil
	}

	ids := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, int64(m.ID))
	}

	var atts []models.Attachment
	err := r.db.SelectContext(ctx, &atts,
		`SELECT id, message_id, file_path, kind FROM attachments WHERE message_id = ANY($1) ORDER BY id ASC`,
		pq.Array(ids))
	if err != nil {
		return nil, err
	}

	byMessage := make(map[int][]models.Attachment, len(msgs))
	for _, att := range atts {
		byMessage[att.MessageID] = append(byMessage[att.MessageID], att)
	}

	result := make([]models.MessageWithAttachments, 0, len(msgs))
	for _, m := range msgs {
		result = append(result, models.MessageWithAttachments{Message: m, Attachments: byMessage[m.ID]})
	}
	return result, nil
}

// MarkRead flips is_read on every unread message in the chat that was not
// sent by readerID. Returns the number of rows changed; a second call with
// no new messages changes nothing.
func (r *MessageRepo) MarkRead(ctx context.Context, chatID int, readerID int) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET is_read = TRUE WHERE chat_id=$1 AND sender_id<>$2 AND is_read = FALSE`,
		chatID, readerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
