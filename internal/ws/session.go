package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"clinic-chat-service/internal/delivery"
	"clinic-chat-service/internal/models"
	"clinic-chat-service/internal/observability"
	"clinic-chat-service/internal/repositories"
	"clinic-chat-service/internal/service"
)

// Deliverer routes one validated inbound message: persist, then fan out.
type Deliverer interface {
	Deliver(ctx context.Context, chatID int, senderID int, content string, attachments []models.AttachmentInput) (models.MessageWithAttachments, error)
}

// ChatLifecycle is the slice of the chat lifecycle service sessions use.
type ChatLifecycle interface {
	CreateOrGetChat(ctx context.Context, userA int, userB int) (models.Chat, error)
	GetChat(ctx context.Context, chatID int) (models.Chat, error)
	MarkRead(ctx context.Context, chatID int, requesterID int) (int64, error)
}

// SessionState is the lifecycle position of one connection.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateAuthenticated
	StateActive
	StateClosed
)

// Session drives a single connection through
// connecting -> authenticated -> active -> closed. Closed is terminal; a
// reconnect is a fresh session.
type Session struct {
	conn     Conn
	registry *Registry
	router   Deliverer
	chats    ChatLifecycle

	client *Client
	info   ConnInfo

	state     atomic.Int32
	closeOnce sync.Once
}

// NewSession wraps a freshly accepted connection. No identity is attached
// yet.
func NewSession(conn Conn, registry *Registry, router Deliverer, chats ChatLifecycle) *Session {
	s := &Session{conn: conn, registry: registry, router: router, chats: chats}
	s.state.Store(int32(StateConnecting))
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Client returns the session's client once authenticated, nil before.
func (s *Session) Client() *Client {
	return s.client
}

// Authenticate attaches the resolved identity. The credential itself is
// resolved during the HTTP handshake; a failed resolution closes the raw
// connection without a session ever reaching this point.
func (s *Session) Authenticate(userID int) {
	s.client = NewClient(userID, s.conn)
	s.state.Store(int32(StateAuthenticated))
}

// Activate registers the session with the registry and starts the write
// pump. The session can receive fan-out from this point on.
func (s *Session) Activate(info ConnInfo) {
	info.ConnID = s.client.ID
	info.UserID = s.client.UserID
	info.ConnectedAt = time.Now()
	s.info = info

	s.registry.Register(s.client)
	go s.client.WritePump()
	s.state.Store(int32(StateActive))

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	s.publishEvent(context.Background(), "ws_connect", "")
}

// Run blocks on the read loop until the transport closes or a fatal read
// error occurs. Cleanup runs on every exit path.
func (s *Session) Run(ctx context.Context) {
	var closeReason string
	defer func() {
		s.close(closeReason)
	}()

	s.conn.SetReadLimit(maxFrameSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("ws: user %d read error: %v", s.client.UserID, err)
				observability.IncWSEvent("ws_error")
				s.publishEvent(ctx, "ws_error", closeReason)
			}
			return
		}
		s.HandleFrame(ctx, data)
	}
}

// Close terminates the session. Idempotent.
func (s *Session) Close() {
	s.close("closed by server")
}

func (s *Session) close(reason string) {
	s.closeOnce.Do(func() {
		wasActive := s.State() == StateActive
		s.state.Store(int32(StateClosed))

		if s.client != nil {
			s.registry.Unregister(s.client)
			s.client.Close()
		} else {
			_ = s.conn.Close()
		}

		if wasActive {
			observability.DecWSActive()
			observability.IncWSEvent("ws_disconnect")
			s.publishEvent(context.Background(), "ws_disconnect", reason)
		}
	})
}

type inboundFrame struct {
	Type        string                   `json:"type"`
	ChatID      int                      `json:"chat_id"`
	RecipientID int                      `json:"recipient_id"`
	Content     string                   `json:"content"`
	Attachments []models.AttachmentInput `json:"attachments"`
}

// HandleFrame dispatches one inbound frame. Malformed frames are dropped
// with a logged warning; they never terminate the session.
func (s *Session) HandleFrame(ctx context.Context, data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Printf("ws: user %d sent malformed frame: %v", s.client.UserID, err)
		observability.IncWSEvent("malformed_frame")
		return
	}

	switch frame.Type {
	case models.EventMessage:
		s.handleMessage(ctx, frame)
	case "mark_read":
		s.handleMarkRead(ctx, frame)
	default:
		log.Printf("ws: user %d sent unknown frame type %q", s.client.UserID, frame.Type)
	}
}

func (s *Session) handleMessage(ctx context.Context, frame inboundFrame) {
	chatID := frame.ChatID
	if chatID == 0 {
		if frame.RecipientID == 0 {
			s.sendError("message requires chat_id or recipient_id")
			return
		}
		chat, err := s.chats.CreateOrGetChat(ctx, s.client.UserID, frame.RecipientID)
		if err != nil {
			s.sendError(frameErrorText(err))
			return
		}
		chatID = chat.ID
	}

	msg, err := s.router.Deliver(ctx, chatID, s.client.UserID, frame.Content, frame.Attachments)
	if err != nil {
		log.Printf("ws: deliver from user %d to chat %d failed: %v", s.client.UserID, chatID, err)
		s.sendError(frameErrorText(err))
		return
	}

	// Echo the stored message back to the sending connection so the
	// client learns the assigned id and timestamp.
	if payload, err := json.Marshal(models.ChatEvent{Type: models.EventMessage, Message: &msg}); err == nil {
		s.client.Enqueue(payload)
	}
}

func (s *Session) handleMarkRead(ctx context.Context, frame inboundFrame) {
	if frame.ChatID == 0 {
		s.sendError("mark_read requires chat_id")
		return
	}

	changed, err := s.chats.MarkRead(ctx, frame.ChatID, s.client.UserID)
	if err != nil {
		s.sendError(frameErrorText(err))
		return
	}
	if changed == 0 {
		return
	}

	chat, err := s.chats.GetChat(ctx, frame.ChatID)
	if err != nil {
		log.Printf("ws: chat %d lookup after mark_read: %v", frame.ChatID, err)
		return
	}
	payload, err := json.Marshal(models.ChatEvent{
		Type:   models.EventMessagesRead,
		ChatID: frame.ChatID,
		UserID: s.client.UserID,
	})
	if err != nil {
		return
	}
	s.registry.SendToUser(chat.OtherParticipant(s.client.UserID), payload)
}

func (s *Session) sendError(reason string) {
	payload, err := json.Marshal(models.ChatEvent{Type: models.EventError, Reason: reason})
	if err != nil {
		return
	}
	s.client.Enqueue(payload)
}

// frameErrorText maps domain errors to client-facing reasons without
// leaking internals.
func frameErrorText(err error) string {
	switch {
	case errors.Is(err, repositories.ErrChatNotFound):
		return "chat not found"
	case errors.Is(err, repositories.ErrUserNotFound):
		return "user not found"
	case errors.Is(err, delivery.ErrSenderNotParticipant),
		errors.Is(err, service.ErrNotParticipant):
		return "not a chat participant"
	case errors.Is(err, delivery.ErrEmptyMessage):
		return "message requires content or at least one attachment"
	case errors.Is(err, delivery.ErrAttachmentKind):
		return "unsupported attachment kind"
	case errors.Is(err, service.ErrSameUser):
		return "cannot message yourself"
	default:
		return "failed to send message"
	}
}

func (s *Session) publishEvent(ctx context.Context, event, reason string) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       event,
			"conn_id":     s.info.ConnID,
			"duration_ms": time.Since(s.info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   s.info.UserID,
			"device_id": s.info.DeviceID,
			"ip":        s.info.IP,
		},
	}

	headers := observability.BuildHeaders(s.info.RequestID, s.info.TraceID)
	_ = observability.PublishEvent(ctx, "ws_events.chats", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   payload,
	}, headers)
}
