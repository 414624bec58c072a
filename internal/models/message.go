package models

import "time"

// Attachment kinds accepted by the store.
const (
	AttachmentKindImage    = "image"
	AttachmentKindDocument = "document"
)

// Message represents one unit of content within a chat. It is immutable
// once created except for the read flag, which only ever flips to true.
type Message struct {
	ID        int       `db:"id" json:"id"`
	ChatID    int       `db:"chat_id" json:"chat_id"`
	SenderID  int       `db:"sender_id" json:"sender_id"`
	Content   string    `db:"content" json:"content"`
	IsRead    bool      `db:"is_read" json:"is_read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Attachment is a file reference owned by a single message.
type Attachment struct {
	ID        int    `db:"id" json:"id"`
	MessageID int    `db:"message_id" json:"message_id"`
	FilePath  string `db:"file_path" json:"file_path"`
	Kind      string `db:"kind" json:"kind"`
}

// AttachmentInput is the caller-supplied part of an attachment.
type AttachmentInput struct {
	FilePath string `json:"file_path"`
	Kind     string `json:"kind"`
}

// MessageWithAttachments is a message together with its attachments.
type MessageWithAttachments struct {
	Message
	Attachments []Attachment `json:"attachments"`
}

// ChatEvent is pushed to live websocket connections.
type ChatEvent struct {
	Type    string                  `json:"type"`
	Message *MessageWithAttachments `json:"message,omitempty"`
	ChatID  int                     `json:"chat_id,omitempty"`
	UserID  int                     `json:"user_id,omitempty"`
	Reason  string                  `json:"reason,omitempty"`
}

// Event types carried by ChatEvent.
const (
	EventMessage      = "message"
	EventMessagesRead = "messages_read"
	EventError        = "error"
)
