package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"clinic-chat-service/internal/models"
	"clinic-chat-service/internal/observability"
	"clinic-chat-service/internal/repositories"
)

var (
	ErrSenderNotParticipant = errors.New("sender is not a chat participant")
	ErrEmptyMessage         = errors.New("message requires content or at least one attachment")
	ErrAttachmentKind       = errors.New("unsupported attachment kind")
)

// Notifier pushes a payload to every live connection of a user and reports
// whether at least one connection accepted it.
type Notifier interface {
	SendToUser(userID int, payload []byte) bool
}

// Router is the single entry point for "a message happened". Persistence
// is the durability point: only a durably stored message is ever fanned
// out. A recipient without live connections is not an error; the message
// stays fetchable through history.
type Router struct {
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	notifier Notifier
}

// NewRouter constructs a Router.
func NewRouter(chats repositories.ChatRepository, messages repositories.MessageRepository, notifier Notifier) *Router {
	return &Router{chats: chats, messages: messages, notifier: notifier}
}

// Deliver validates, persists and fans out one inbound message.
func (r *Router) Deliver(ctx context.Context, chatID int, senderID int, content string, attachments []models.AttachmentInput) (models.MessageWithAttachments, error) {
	chat, err := r.chats.GetChat(ctx, chatID)
	if err != nil {
		return models.MessageWithAttachments{}, err
	}
	if !chat.HasParticipant(senderID) {
		return models.MessageWithAttachments{}, ErrSenderNotParticipant
	}
	if content == "" && len(attachments) == 0 {
		return models.MessageWithAttachments{}, ErrEmptyMessage
	}
	for _, att := range attachments {
		if att.Kind != models.AttachmentKindImage && att.Kind != models.AttachmentKindDocument {
			return models.MessageWithAttachments{}, fmt.Errorf("%w: %q", ErrAttachmentKind, att.Kind)
		}
	}

	msg, err := r.messages.CreateMessage(ctx, chatID, senderID, content, attachments)
	if err != nil {
		return models.MessageWithAttachments{}, fmt.Errorf("persist message: %w", err)
	}

	recipientID := chat.OtherParticipant(senderID)
	payload, err := json.Marshal(models.ChatEvent{Type: models.EventMessage, Message: &msg})
	if err != nil {
		log.Printf("delivery: marshal message %d: %v", msg.ID, err)
		return msg, nil
	}

	if r.notifier.SendToUser(recipientID, payload) {
		observability.IncDelivery(observability.DeliveryDelivered)
	} else {
		observability.IncDelivery(observability.DeliveryOffline)
	}
	return msg, nil
}
