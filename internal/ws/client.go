package ws

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
	maxFrameSize  = 64 * 1024
	sendQueueSize = 32
)

// Conn is the subset of *websocket.Conn the registry and sessions rely on.
// Tests substitute an in-memory implementation.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Client wraps one live connection of one authenticated user. Outbound
// payloads pass through a buffered queue drained by a single write pump,
// so each connection's outbound stream is FIFO in enqueue order.
type Client struct {
	ID     string
	UserID int

	conn Conn
	send chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// NewClient constructs a Client for an authenticated connection.
func NewClient(userID int, conn Conn) *Client {
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
		closed: make(chan struct{}),
	}
}

// Enqueue hands a payload to the write pump. False means the client is
// closed or its queue is saturated; such a connection is treated as dead.
func (c *Client) Enqueue(payload []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	case <-c.closed:
		return false
	default:
		return false
	}
}

// Close tears the connection down. Safe to call more than once and from
// any goroutine.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

// Closed reports whether Close has run.
func (c *Client) Closed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// WritePump drains the send queue onto the connection and keeps it alive
// with pings. Any write error closes the client; queued payloads for a
// dead connection are dropped, the durable store remains authoritative.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("ws: write to user %d failed: %v", c.UserID, err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
