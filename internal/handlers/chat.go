package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"clinic-chat-service/internal/delivery"
	"clinic-chat-service/internal/models"
	"clinic-chat-service/internal/repositories"
	"clinic-chat-service/internal/service"
	"clinic-chat-service/internal/telemetry"
)

// ChatService is the lifecycle surface the HTTP layer consumes.
type ChatService interface {
	CreateOrGetChat(ctx context.Context, userA int, userB int) (models.Chat, error)
	ListChatsForUser(ctx context.Context, userID int) ([]models.ChatSummary, error)
	GetHistory(ctx context.Context, chatID int, requesterID int, limit int) ([]models.MessageWithAttachments, error)
	MarkRead(ctx context.Context, chatID int, requesterID int) (int64, error)
	DeleteChat(ctx context.Context, chatID int, requesterID int) error
}

// Deliverer routes an inbound message through persist-then-fan-out.
type Deliverer interface {
	Deliver(ctx context.Context, chatID int, senderID int, content string, attachments []models.AttachmentInput) (models.MessageWithAttachments, error)
}

// ChatHandler exposes the chat lifecycle and send operations over HTTP.
type ChatHandler struct {
	svc    ChatService
	router Deliverer
	audit  *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler. audit may be nil.
func NewChatHandler(svc ChatService, router Deliverer, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{svc: svc, router: router, audit: audit}
}

// ListChats returns the caller's chats ordered by last activity.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := c.GetInt("userID")

	chats, err := h.svc.ListChatsForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// StartChat creates or returns the chat between the caller and another
// user.
func (h *ChatHandler) StartChat(c *gin.Context) {
	var req struct {
		RecipientID int `json:"recipient_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	chat, err := h.svc.CreateOrGetChat(c.Request.Context(), userID, req.RecipientID)
	if err != nil {
		respondError(c, err, "could not create chat")
		return
	}

	h.emitAudit(c, fmt.Sprintf("chat %d opened between users %d and %d", chat.ID, chat.User1ID, chat.User2ID))
	c.JSON(http.StatusOK, gin.H{"chat_id": chat.ID})
}

// GetChatMessages returns the chat's most recent messages, oldest first.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	userID := c.GetInt("userID")
	msgs, err := h.svc.GetHistory(c.Request.Context(), chatID, userID, limit)
	if err != nil {
		respondError(c, err, "failed to load messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostChatMessage stores a message and fans it out to the recipient's
// live connections. Same delivery path as the websocket.
func (h *ChatHandler) PostChatMessage(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	var req struct {
		Content     string                   `json:"content"`
		Attachments []models.AttachmentInput `json:"attachments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	msg, err := h.router.Deliver(c.Request.Context(), chatID, userID, req.Content, req.Attachments)
	if err != nil {
		respondError(c, err, "failed to send message")
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// MarkRead flips the read flag on the chat's unread messages not sent by
// the caller.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	userID := c.GetInt("userID")
	updated, err := h.svc.MarkRead(c.Request.Context(), chatID, userID)
	if err != nil {
		respondError(c, err, "failed to mark messages as read")
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// DeleteChat removes the chat with all messages and attachments.
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	userID := c.GetInt("userID")
	if err := h.svc.DeleteChat(c.Request.Context(), chatID, userID); err != nil {
		respondError(c, err, "could not delete chat")
		return
	}

	h.emitAudit(c, fmt.Sprintf("chat %d deleted by user %d", chatID, userID))
	c.Status(http.StatusNoContent)
}

func (h *ChatHandler) emitAudit(c *gin.Context, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), "info", text, requestIDFromContext(c), auditUserID(c))
}

// respondError maps domain errors onto HTTP statuses; anything unknown is
// a 500 with the fallback text.
func respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, repositories.ErrChatNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
	case errors.Is(err, repositories.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, service.ErrSameUser):
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot chat with yourself"})
	case errors.Is(err, service.ErrNotParticipant),
		errors.Is(err, delivery.ErrSenderNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat participant"})
	case errors.Is(err, delivery.ErrEmptyMessage),
		errors.Is(err, delivery.ErrAttachmentKind):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
