package hub

import (
	"log"
)

// RemotePublisher mirrors room and user-targeted events to other hub nodes.
// The websocket layer provides a redis-backed implementation; a nil publisher
// means single-node operation.
type RemotePublisher interface {
	PublishRemote(roomID string, ev Event) error
	NotifyRemote(userID string, ev Event) error
}

// Router fans events out to room subscribers and to individual users.
// Delivery is at-least-once per connection per publish: the router never
// deduplicates, and a failed send to one subscriber is logged and skipped
// without affecting the rest. Fan-out is synchronous into each connection's
// ordered send queue, which preserves publish order per room and publisher.
type Router struct {
	registry *Registry
	rooms    *RoomTable
	remote   RemotePublisher
}

func NewRouter(registry *Registry, rooms *RoomTable, remote RemotePublisher) *Router {
	return &Router{
		registry: registry,
		rooms:    rooms,
		remote:   remote,
	}
}

// Publish delivers ev to every connection subscribed to roomID, then mirrors
// it to peer nodes. Remote mirroring is best effort.
func (r *Router) Publish(roomID string, ev Event) {
	r.PublishLocal(roomID, ev)

	if r.remote != nil {
		if err := r.remote.PublishRemote(roomID, ev); err != nil {
			log.Printf("router: remote publish to room %s failed: %v", roomID, err)
		}
	}
}

// PublishLocal fans out to local subscribers only. The relay uses it for
// events that arrived from another node.
func (r *Router) PublishLocal(roomID string, ev Event) {
	for _, connID := range r.rooms.SubscribersOf(roomID) {
		conn, ok := r.registry.Get(connID)
		if !ok {
			continue
		}
		r.deliver(conn.sender, ev)
	}
}

// NotifyUser delivers ev to every live connection of userID, independent of
// room membership, then mirrors it to peer nodes for any connection the user
// holds elsewhere. Zero local connections is a normal outcome.
func (r *Router) NotifyUser(userID string, ev Event) {
	r.NotifyLocal(userID, ev)

	if r.remote != nil {
		if err := r.remote.NotifyRemote(userID, ev); err != nil {
			log.Printf("router: remote notify for user %s failed: %v", userID, err)
		}
	}
}

// NotifyLocal delivers to the user's local connections only. The relay uses
// it for user-targeted events that arrived from another node.
func (r *Router) NotifyLocal(userID string, ev Event) {
	for _, s := range r.registry.ConnectionsOf(userID) {
		r.deliver(s, ev)
	}
}

// Broadcast delivers ev to every live connection, used for global presence
// updates.
func (r *Router) Broadcast(ev Event) {
	for _, s := range r.registry.Senders() {
		r.deliver(s, ev)
	}
}

// deliver isolates per-subscriber failures: a dead connection loses the
// event, reconnects, and re-joins. The hub never retries.
func (r *Router) deliver(s Sender, ev Event) {
	if err := s.Send(ev); err != nil {
		log.Printf("router: dropping %s event for connection %s: %v", ev.Kind, s.ID(), err)
	}
}
