package hub

import (
	"sort"
	"sync"
	"time"
)

// PresenceBroadcaster tracks the set of online users and publishes the full
// set to every connection whenever it changes. Rapid connect/disconnect flaps
// are coalesced through a short debounce window; with a zero window every
// change broadcasts immediately. Convergence to the true live set is the only
// hard requirement.
type PresenceBroadcaster struct {
	mu       sync.Mutex
	online   map[string]struct{}
	debounce time.Duration
	pending  *time.Timer

	broadcast func(Event)
}

func NewPresenceBroadcaster(debounce time.Duration, broadcast func(Event)) *PresenceBroadcaster {
	return &PresenceBroadcaster{
		online:    make(map[string]struct{}),
		debounce:  debounce,
		broadcast: broadcast,
	}
}

// UserUp marks a user online. Called when the user's first connection
// authenticates.
func (p *PresenceBroadcaster) UserUp(userID string) {
	p.mu.Lock()
	p.online[userID] = struct{}{}
	p.scheduleLocked()
	p.mu.Unlock()
}

// UserDown marks a user offline. Called when the user's last connection
// unregisters.
func (p *PresenceBroadcaster) UserDown(userID string) {
	p.mu.Lock()
	delete(p.online, userID)
	p.scheduleLocked()
	p.mu.Unlock()
}

func (p *PresenceBroadcaster) scheduleLocked() {
	if p.debounce <= 0 {
		p.emit(p.snapshotLocked())
		return
	}
	if p.pending != nil {
		return
	}
	p.pending = time.AfterFunc(p.debounce, func() {
		p.mu.Lock()
		p.pending = nil
		users := p.snapshotLocked()
		p.mu.Unlock()
		p.emit(users)
	})
}

func (p *PresenceBroadcaster) emit(users []string) {
	p.broadcast(Event{
		Kind: EventOnlineUsers,
		Data: OnlineUsersPayload{Users: users},
	})
}

func (p *PresenceBroadcaster) snapshotLocked() []string {
	users := make([]string, 0, len(p.online))
	for userID := range p.online {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}

// Snapshot returns the current online set in sorted order.
func (p *PresenceBroadcaster) Snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}
