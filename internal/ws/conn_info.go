package ws

import "time"

// ConnInfo carries handshake metadata attached to a session for event
// envelopes.
type ConnInfo struct {
	ConnID      string
	UserID      int
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
