package hub

import (
	"fmt"
	"sync"
	"time"
)

// Sender is the hub-facing side of a live connection. The websocket layer
// implements it; tests use in-memory fakes.
type Sender interface {
	ID() string
	Send(Event) error
}

// Connection is one open transport session. UserID stays empty until the
// session authenticates.
type Connection struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	sender    Sender
}

// Registry maps live connections to authenticated users. A user may hold any
// number of concurrent connections (multi-device).
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
	users map[string]map[string]*Connection
	now   func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*Connection),
		users: make(map[string]map[string]*Connection),
		now:   time.Now,
	}
}

// Register records a new unauthenticated connection.
func (r *Registry) Register(s Sender) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn := &Connection{
		ID:        s.ID(),
		CreatedAt: r.now(),
		sender:    s,
	}
	r.conns[conn.ID] = conn
	return conn
}

// Authenticate binds a verified user id to a connection. Rebinding the same
// user is a no-op; rebinding a different user is rejected. The first return
// value is true when this is the user's first live connection, which is the
// trigger for a presence delta.
func (r *Registry) Authenticate(connID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return false, newError(ErrorCodeNotFound, "unknown connection", fmt.Errorf("registry: connection %s not registered", connID))
	}
	if conn.UserID != "" {
		if conn.UserID == userID {
			return false, nil
		}
		return false, newError(ErrorCodeAuth, "connection already bound to another user", fmt.Errorf("registry: connection %s bound to %s, refusing rebind to %s", connID, conn.UserID, userID))
	}

	conn.UserID = userID
	set, ok := r.users[userID]
	if !ok {
		set = make(map[string]*Connection)
		r.users[userID] = set
	}
	set[connID] = conn
	return len(set) == 1, nil
}

// Unregister removes a connection. Idempotent. Returns the bound user id (if
// any) and whether this was that user's last live connection.
func (r *Registry) Unregister(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return "", false
	}
	delete(r.conns, connID)

	if conn.UserID == "" {
		return "", false
	}
	set := r.users[conn.UserID]
	delete(set, connID)
	if len(set) == 0 {
		delete(r.users, conn.UserID)
		return conn.UserID, true
	}
	return conn.UserID, false
}

// Get returns the connection record for connID.
func (r *Registry) Get(connID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[connID]
	return conn, ok
}

// ConnectionsOf returns the senders of every live connection of userID, used
// for multi-device fan-out.
func (r *Registry) ConnectionsOf(userID string) []Sender {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.users[userID]
	senders := make([]Sender, 0, len(set))
	for _, conn := range set {
		senders = append(senders, conn.sender)
	}
	return senders
}

// Senders returns every live connection, authenticated or not. Presence
// broadcasts go to all of them.
func (r *Registry) Senders() []Sender {
	r.mu.RLock()
	defer r.mu.RUnlock()

	senders := make([]Sender, 0, len(r.conns))
	for _, conn := range r.conns {
		senders = append(senders, conn.sender)
	}
	return senders
}

// OnlineUsers returns the ids of users with at least one live connection.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.users))
	for userID := range r.users {
		users = append(users, userID)
	}
	return users
}
