package ws

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"clinic-chat-service/internal/observability"
)

// TokenResolver resolves a bearer credential to an authenticated user id.
type TokenResolver interface {
	Resolve(credential string) (int, error)
}

// Handler upgrades /ws requests and runs a session per connection.
type Handler struct {
	registry *Registry
	router   Deliverer
	chats    ChatLifecycle
	resolver TokenResolver
}

// NewHandler constructs a Handler.
func NewHandler(registry *Registry, router Deliverer, chats ChatLifecycle, resolver TokenResolver) *Handler {
	return &Handler{registry: registry, router: router, chats: chats, resolver: resolver}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates the handshake, upgrades the connection and blocks
// on the session's read loop until the connection closes.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("clinic-chat-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	credential := bearerCredential(c)
	userID, err := h.resolver.Resolve(credential)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	sess := NewSession(conn, h.registry, h.router, h.chats)
	sess.Authenticate(userID)
	sess.Activate(ConnInfo{
		DeviceID:  observability.DeviceIDFromRequest(c.Request),
		IP:        observability.IPFromRequest(c.Request),
		RequestID: observability.RequestIDFromRequest(c.Request),
		TraceID:   span.SpanContext().TraceID().String(),
	})
	sess.Run(ctx)
}

// bearerCredential pulls the token from the Authorization header, falling
// back to the token query parameter for browser websocket clients that
// cannot set headers.
func bearerCredential(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}
