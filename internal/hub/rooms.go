package hub

import (
	"hash/fnv"
	"sync"
)

const roomShardCount = 32

// RoomTable is the many-to-many mapping between connections and rooms.
// Rooms are sharded by id hash so join/leave traffic on unrelated rooms never
// contends on one lock. Rooms come into existence on first join and are
// garbage-collected when their last subscriber leaves.
type RoomTable struct {
	shards [roomShardCount]roomShard

	// reverse index: connection id -> room ids it joined, for the
	// disconnect cascade.
	revMu sync.Mutex
	rev   map[string]map[string]struct{}
}

type roomShard struct {
	mu    sync.RWMutex
	rooms map[string]map[string]struct{}
}

func NewRoomTable() *RoomTable {
	t := &RoomTable{
		rev: make(map[string]map[string]struct{}),
	}
	for i := range t.shards {
		t.shards[i].rooms = make(map[string]map[string]struct{})
	}
	return t
}

func (t *RoomTable) shard(roomID string) *roomShard {
	h := fnv.New32a()
	h.Write([]byte(roomID))
	return &t.shards[h.Sum32()%roomShardCount]
}

// Join subscribes a connection to a room. Idempotent.
func (t *RoomTable) Join(connID, roomID string) {
	s := t.shard(roomID)
	s.mu.Lock()
	subs, ok := s.rooms[roomID]
	if !ok {
		subs = make(map[string]struct{})
		s.rooms[roomID] = subs
	}
	subs[connID] = struct{}{}
	s.mu.Unlock()

	t.revMu.Lock()
	rooms, ok := t.rev[connID]
	if !ok {
		rooms = make(map[string]struct{})
		t.rev[connID] = rooms
	}
	rooms[roomID] = struct{}{}
	t.revMu.Unlock()
}

// Leave removes a connection from a room and deletes the room once empty.
// Leaving a room the connection never joined is a no-op.
func (t *RoomTable) Leave(connID, roomID string) {
	s := t.shard(roomID)
	s.mu.Lock()
	if subs, ok := s.rooms[roomID]; ok {
		delete(subs, connID)
		if len(subs) == 0 {
			delete(s.rooms, roomID)
		}
	}
	s.mu.Unlock()

	t.revMu.Lock()
	if rooms, ok := t.rev[connID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(t.rev, connID)
		}
	}
	t.revMu.Unlock()
}

// SubscribersOf returns a snapshot of the connection ids subscribed to a
// room.
func (t *RoomTable) SubscribersOf(roomID string) []string {
	s := t.shard(roomID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs := s.rooms[roomID]
	out := make([]string, 0, len(subs))
	for connID := range subs {
		out = append(out, connID)
	}
	return out
}

// RoomsOf returns a snapshot of the rooms a connection has joined.
func (t *RoomTable) RoomsOf(connID string) []string {
	t.revMu.Lock()
	defer t.revMu.Unlock()

	rooms := t.rev[connID]
	out := make([]string, 0, len(rooms))
	for roomID := range rooms {
		out = append(out, roomID)
	}
	return out
}

// DropConnection removes a connection from every room it joined, as part of
// the unregister cascade.
func (t *RoomTable) DropConnection(connID string) {
	for _, roomID := range t.RoomsOf(connID) {
		t.Leave(connID, roomID)
	}
}

// RoomCount reports the number of live rooms, for metrics.
func (t *RoomTable) RoomCount() int {
	total := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.RLock()
		total += len(s.rooms)
		s.mu.RUnlock()
	}
	return total
}
