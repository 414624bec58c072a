package ws

import "sync"

// Registry tracks which users currently hold live connections. One
// Registry is constructed per server process and passed to every session;
// it is never a package-level singleton so tests can run several
// independent instances.
//
// Each user's connection set carries its own lock, so sends to unrelated
// users never contend. The outer map lock is only taken to look up,
// insert or drop an entry.
type Registry struct {
	mu    sync.RWMutex
	users map[int]*userEntry
}

type userEntry struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{users: make(map[int]*userEntry)}
}

// Register adds the client to its user's connection set. Multiple
// simultaneous connections per user are expected (several devices).
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.users[c.UserID]
	if !ok {
		entry = &userEntry{clients: make(map[*Client]struct{})}
		r.users[c.UserID] = entry
	}
	entry.mu.Lock()
	entry.clients[c] = struct{}{}
	entry.mu.Unlock()
}

// Unregister removes the client from its user's set. Idempotent: a client
// already gone is a no-op, which guards against double-cleanup races
// between the read loop teardown and a failed send.
func (r *Registry) Unregister(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.users[c.UserID]
	if !ok {
		return
	}
	entry.mu.Lock()
	delete(entry.clients, c)
	empty := len(entry.clients) == 0
	entry.mu.Unlock()
	if empty {
		delete(r.users, c.UserID)
	}
}

// SendToUser pushes the payload to every live connection of the user and
// reports whether at least one accepted it. A dead or saturated
// connection is closed and unregistered without affecting the user's
// other connections.
func (r *Registry) SendToUser(userID int, payload []byte) bool {
	r.mu.RLock()
	entry, ok := r.users[userID]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	entry.mu.Lock()
	targets := make([]*Client, 0, len(entry.clients))
	for c := range entry.clients {
		targets = append(targets, c)
	}
	entry.mu.Unlock()

	delivered := false
	for _, c := range targets {
		if c.Enqueue(payload) {
			delivered = true
			continue
		}
		c.Close()
		r.Unregister(c)
	}
	return delivered
}

// ActiveUsers returns the number of users with at least one live
// connection.
func (r *Registry) ActiveUsers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
