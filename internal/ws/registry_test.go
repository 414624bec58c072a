package ws

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

// fakeConn is an in-memory stand-in for a websocket connection.
type fakeConn struct {
	closed atomic.Bool
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	return 0, nil, fmt.Errorf("fakeConn: read not supported")
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error { return nil }
func (f *fakeConn) SetReadLimit(limit int64)                        {}
func (f *fakeConn) SetReadDeadline(t time.Time) error               { return nil }
func (f *fakeConn) SetWriteDeadline(t time.Time) error              { return nil }
func (f *fakeConn) SetPongHandler(h func(appData string) error)     {}

func (f *fakeConn) Close() error {
	f.closed.Store(true)
	return nil
}

// receivePayload pops the next queued payload without running a write pump.
func receivePayload(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case payload := <-c.send:
		return payload
	case <-time.After(time.Second):
		t.Fatalf("no payload queued for user %d", c.UserID)
		return nil
	}
}

func TestRegistryRegisterAndUnregister(t *testing.T) {
	reg := NewRegistry()
	client := NewClient(1, &fakeConn{})

	reg.Register(client)
	if reg.ActiveUsers() != 1 {
		t.Fatalf("expected one active user, got %d", reg.ActiveUsers())
	}

	reg.Unregister(client)
	if reg.ActiveUsers() != 0 {
		t.Fatalf("expected empty registry, got %d users", reg.ActiveUsers())
	}

	// A second unregister of the same client must be a no-op.
	reg.Unregister(client)
	if reg.ActiveUsers() != 0 {
		t.Fatalf("expected empty registry after double unregister")
	}
}

func TestSendToUserOffline(t *testing.T) {
	reg := NewRegistry()

	if reg.SendToUser(42, []byte(`{}`)) {
		t.Fatalf("expected false for a user with no connections")
	}
}

func TestSendToUserFansOutToAllConnections(t *testing.T) {
	reg := NewRegistry()
	first := NewClient(1, &fakeConn{})
	second := NewClient(1, &fakeConn{})
	reg.Register(first)
	reg.Register(second)

	if !reg.SendToUser(1, []byte("hello")) {
		t.Fatalf("expected delivery to succeed")
	}

	if got := string(receivePayload(t, first)); got != "hello" {
		t.Fatalf("first connection got %q", got)
	}
	if got := string(receivePayload(t, second)); got != "hello" {
		t.Fatalf("second connection got %q", got)
	}
}

func TestSendToUserDropsDeadConnection(t *testing.T) {
	reg := NewRegistry()
	healthy := NewClient(1, &fakeConn{})
	dead := NewClient(1, &fakeConn{})
	reg.Register(healthy)
	reg.Register(dead)

	dead.Close()

	if !reg.SendToUser(1, []byte("still here")) {
		t.Fatalf("expected delivery via the healthy connection")
	}
	if got := string(receivePayload(t, healthy)); got != "still here" {
		t.Fatalf("healthy connection got %q", got)
	}

	// The dead connection must be gone; only one target remains.
	reg.mu.RLock()
	entry := reg.users[1]
	reg.mu.RUnlock()
	entry.mu.Lock()
	remaining := len(entry.clients)
	entry.mu.Unlock()
	if remaining != 1 {
		t.Fatalf("expected one remaining connection, got %d", remaining)
	}
}

func TestSendToUserSaturatedQueueClosesClient(t *testing.T) {
	reg := NewRegistry()
	client := NewClient(1, &fakeConn{})
	reg.Register(client)

	for i := 0; i < sendQueueSize; i++ {
		if !client.Enqueue([]byte("fill")) {
			t.Fatalf("queue filled early at %d", i)
		}
	}

	if reg.SendToUser(1, []byte("overflow")) {
		t.Fatalf("expected delivery to fail on a saturated queue")
	}
	if !client.Closed() {
		t.Fatalf("expected saturated client to be closed")
	}
	if reg.ActiveUsers() != 0 {
		t.Fatalf("expected saturated client to be unregistered")
	}
}

func TestEnqueueOrderIsFIFO(t *testing.T) {
	client := NewClient(1, &fakeConn{})

	for i := 0; i < 5; i++ {
		if !client.Enqueue([]byte{byte('a' + i)}) {
			t.Fatalf("enqueue %d failed", i)
		}
	}
	for i := 0; i < 5; i++ {
		got := receivePayload(t, client)
		if want := byte('a' + i); got[0] != want {
			t.Fatalf("payload %d: got %q want %q", i, got[0], want)
		}
	}
}

func TestEnqueueAfterCloseFails(t *testing.T) {
	client := NewClient(1, &fakeConn{})
	client.Close()

	if client.Enqueue([]byte("late")) {
		t.Fatalf("expected enqueue on a closed client to fail")
	}
	if !client.Closed() {
		t.Fatalf("expected client to report closed")
	}
}
