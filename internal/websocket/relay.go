package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"chat-hub-backend/internal/hub"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const relayChannel = "hub:rooms"

// Relay mirrors room and user-targeted events between hub nodes over a redis
// pub/sub channel. Each payload carries the origin node id so a node never
// re-applies its own publishes. Implements hub.RemotePublisher.
type Relay struct {
	client *redis.Client
	nodeID string
}

// relayEnvelope addresses either a room (fan-out) or a user (targeted
// delivery); exactly one of RoomID and UserID is set.
type relayEnvelope struct {
	Origin string          `json:"origin"`
	RoomID string          `json:"roomId,omitempty"`
	UserID string          `json:"userId,omitempty"`
	Kind   hub.EventKind   `json:"event"`
	Data   json.RawMessage `json:"data,omitempty"`
}

func NewRelay(client *redis.Client) *Relay {
	return &Relay{
		client: client,
		nodeID: uuid.NewString(),
	}
}

func (r *Relay) PublishRemote(roomID string, ev hub.Event) error {
	if roomID == "" {
		return fmt.Errorf("websocket relay: roomID required")
	}
	return r.publish(relayEnvelope{Origin: r.nodeID, RoomID: roomID, Kind: ev.Kind}, ev.Data)
}

// NotifyRemote mirrors a user-targeted event so peers deliver it to the
// user's connections on their node.
func (r *Relay) NotifyRemote(userID string, ev hub.Event) error {
	if userID == "" {
		return fmt.Errorf("websocket relay: userID required")
	}
	return r.publish(relayEnvelope{Origin: r.nodeID, UserID: userID, Kind: ev.Kind}, ev.Data)
}

func (r *Relay) publish(env relayEnvelope, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("websocket relay: marshal payload: %w", err)
	}
	env.Data = payload

	envJSON, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("websocket relay: marshal envelope: %w", err)
	}
	if err := r.client.Publish(context.Background(), relayChannel, string(envJSON)).Err(); err != nil {
		return fmt.Errorf("websocket relay: redis publish: %w", err)
	}
	return nil
}

// Run subscribes to the relay channel and feeds remote events into the local
// fan-out until ctx is cancelled. Call in its own goroutine.
func (r *Relay) Run(ctx context.Context, router *hub.Router) {
	subscriber := r.client.Subscribe(ctx, relayChannel)
	defer subscriber.Close()

	ch := subscriber.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var env relayEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("Relay: malformed payload on %s: %v", relayChannel, err)
				continue
			}
			if env.Origin == r.nodeID {
				continue
			}

			ev := hub.Event{Kind: env.Kind, Data: env.Data}
			if env.UserID != "" {
				router.NotifyLocal(env.UserID, ev)
				continue
			}
			router.PublishLocal(env.RoomID, ev)
		}
	}
}
