// Package hub is the connection and presence coordination core: it tracks
// which connections belong to which users, which rooms each connection
// subscribed to, who is online, who sits in which voice channel, and routes
// chat and notification events to the right connections.
package hub

import (
	"context"
	"fmt"
	"log"
	"time"

	"chat-hub-backend/internal/queue"
)

// TokenVerifier validates an identity token and returns the verified user id.
// Verification fails closed: any invalid or expired token is an error.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// RoomDirectory lists the rooms a user should auto-join at connect time. It
// is backed by the external CRUD store; the hub never owns room membership
// policy.
type RoomDirectory interface {
	ConversationIDs(ctx context.Context, userID string) ([]string, error)
	ChannelIDs(ctx context.Context, userID string) ([]string, error)
	GuildIDs(ctx context.Context, userID string) ([]string, error)
}

type Config struct {
	// CallRingTimeout ends a RINGING call that was never accepted.
	CallRingTimeout time.Duration
	// PresenceDebounce coalesces presence flapping. Zero broadcasts
	// immediately.
	PresenceDebounce time.Duration
	// AutoJoinTimeout bounds the directory lookups of the connect-time
	// bulk join.
	AutoJoinTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		CallRingTimeout:  30 * time.Second,
		PresenceDebounce: 250 * time.Millisecond,
		AutoJoinTimeout:  10 * time.Second,
	}
}

// Hub wires the registry, subscription table, presence broadcaster, voice
// state machine and router together behind one instance with injected
// collaborators. Constructed once per process.
type Hub struct {
	cfg Config

	registry *Registry
	rooms    *RoomTable
	voice    *VoiceChannels
	calls    *CallTable
	router   *Router
	presence *PresenceBroadcaster
	unread   *UnreadTracker

	verifier  TokenVerifier
	directory RoomDirectory
	jobs      *queue.RequestQueueManager
}

func New(cfg Config, verifier TokenVerifier, directory RoomDirectory, jobs *queue.RequestQueueManager, remote RemotePublisher) *Hub {
	h := &Hub{
		cfg:       cfg,
		registry:  NewRegistry(),
		rooms:     NewRoomTable(),
		voice:     NewVoiceChannels(),
		unread:    NewUnreadTracker(),
		verifier:  verifier,
		directory: directory,
		jobs:      jobs,
	}
	h.router = NewRouter(h.registry, h.rooms, remote)
	h.presence = NewPresenceBroadcaster(cfg.PresenceDebounce, h.router.Broadcast)
	h.calls = NewCallTable(cfg.CallRingTimeout, h.callTimedOut)
	return h
}

// Router exposes the fan-out surface for collaborators (REST endpoints, the
// cross-node relay).
func (h *Hub) Router() *Router {
	return h.router
}

// Connect registers a newly opened transport session.
func (h *Hub) Connect(s Sender) *Connection {
	return h.registry.Register(s)
}

// Disconnect runs the full unregister cascade for a connection: subscription
// table first, then voice rosters, then the registry, so that no broadcast
// issued afterwards can target the dead connection. Idempotent.
func (h *Hub) Disconnect(connID string) {
	conn, ok := h.registry.Get(connID)
	if !ok {
		return
	}

	h.rooms.DropConnection(connID)
	rosterDeltas := h.voice.DropConnection(connID, conn.UserID)

	userID, last := h.registry.Unregister(connID)
	if last {
		h.presence.UserDown(userID)
	}

	for _, d := range rosterDeltas {
		h.router.Publish(d.GuildID, Event{Kind: EventVoiceChannelUpdate, Data: d.Delta})
	}
}

// Authenticate verifies the token, binds the user to the connection, emits a
// presence delta for the user's first connection, and schedules the
// connect-time bulk join of the user's rooms.
func (h *Hub) Authenticate(connID, token string) (string, error) {
	userID, err := h.verifier.Verify(token)
	if err != nil {
		return "", newError(ErrorCodeAuth, "identity verification failed", err)
	}

	first, err := h.registry.Authenticate(connID, userID)
	if err != nil {
		return "", err
	}
	if first {
		h.presence.UserUp(userID)
	}

	h.scheduleAutoJoin(connID, userID)
	return userID, nil
}

// scheduleAutoJoin runs the directory lookups on the job queue so a slow
// store never stalls the connection's read loop. Each join is independent and
// idempotent; a failed list is logged and retried naturally on reconnect.
func (h *Hub) scheduleAutoJoin(connID, userID string) {
	if h.directory == nil {
		return
	}
	job := queue.Job{
		Fn: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), h.cfg.AutoJoinTimeout)
			defer cancel()

			lists := []struct {
				name  string
				fetch func(context.Context, string) ([]string, error)
			}{
				{"conversations", h.directory.ConversationIDs},
				{"channels", h.directory.ChannelIDs},
				{"guilds", h.directory.GuildIDs},
			}
			for _, l := range lists {
				ids, err := l.fetch(ctx, userID)
				if err != nil {
					log.Printf("hub: auto-join %s lookup for user %s failed: %v", l.name, userID, err)
					continue
				}
				h.JoinRooms(connID, ids)
			}
			return nil
		},
	}
	if h.jobs != nil {
		h.jobs.EnqueueJob(job)
		return
	}
	if err := job.Fn(); err != nil {
		log.Printf("hub: auto-join for user %s failed: %v", userID, err)
	}
}

// JoinRooms subscribes the connection to each room, as a batch of independent
// idempotent joins. Rooms of a dead connection are skipped.
func (h *Hub) JoinRooms(connID string, roomIDs []string) {
	if _, ok := h.registry.Get(connID); !ok {
		return
	}
	for _, roomID := range roomIDs {
		if roomID == "" {
			continue
		}
		h.rooms.Join(connID, roomID)
	}
}

// LeaveRoom unsubscribes the connection from one room.
func (h *Hub) LeaveRoom(connID, roomID string) {
	h.rooms.Leave(connID, roomID)
}

// PublishMessage fans a chat message out to the room. The sender id always
// comes from the authenticated connection, never from the payload.
func (h *Hub) PublishMessage(connID string, payload MessagePayload) error {
	conn, err := h.authedConn(connID)
	if err != nil {
		return err
	}
	if payload.RoomID == "" {
		return newError(ErrorCodeNotFound, "message requires a room id", fmt.Errorf("hub: empty room id from connection %s", connID))
	}
	payload.SenderID = conn.UserID
	if payload.CreatedAt == 0 {
		payload.CreatedAt = time.Now().Unix()
	}
	h.router.Publish(payload.RoomID, Event{Kind: EventMessage, Data: payload})
	return nil
}

// Notify delivers a targeted notification to every connection of the
// recipient, whether or not they joined any related room this session.
func (h *Hub) Notify(connID string, payload NotificationPayload) error {
	conn, err := h.authedConn(connID)
	if err != nil {
		return err
	}
	if payload.RecipientID == "" {
		return newError(ErrorCodeNotFound, "notification requires a recipient", fmt.Errorf("hub: empty recipient from connection %s", connID))
	}
	payload.SenderID = conn.UserID
	if payload.CreatedAt == 0 {
		payload.CreatedAt = time.Now().Unix()
	}
	h.router.NotifyUser(payload.RecipientID, Event{Kind: EventNotification, Data: payload})
	return nil
}

// Refresh tells every subscriber of a room to re-fetch room-scoped data from
// the external store. Used by the CRUD service after it creates or mutates a
// conversation.
func (h *Hub) Refresh(roomID string) {
	h.router.Publish(roomID, Event{Kind: EventRefresh})
}

// VoiceJoin puts the connection's user on the channel roster and broadcasts
// the roster delta into the guild room.
func (h *Hub) VoiceJoin(connID, guildID, channelID string) error {
	conn, err := h.authedConn(connID)
	if err != nil {
		return err
	}
	if delta := h.voice.Join(guildID, channelID, conn.UserID, connID); delta != nil {
		h.router.Publish(guildID, Event{Kind: EventVoiceChannelUpdate, Data: *delta})
	}
	return nil
}

// VoiceLeave removes this connection's presence from the channel roster. The
// user stays on the roster while another of their connections is still in the
// channel.
func (h *Hub) VoiceLeave(connID, channelID string) error {
	conn, err := h.authedConn(connID)
	if err != nil {
		return err
	}
	guildID, ok := h.voice.GuildOf(channelID)
	if !ok {
		return nil
	}
	if delta := h.voice.Leave(channelID, conn.UserID, connID); delta != nil {
		h.router.Publish(guildID, Event{Kind: EventVoiceChannelUpdate, Data: *delta})
	}
	return nil
}

// VoiceMute overwrites the user's mute flag and always broadcasts the
// current value, even when unchanged.
func (h *Hub) VoiceMute(connID, channelID string, muted bool) error {
	conn, err := h.authedConn(connID)
	if err != nil {
		return err
	}
	guildID, _ := h.voice.GuildOf(channelID)
	delta, err := h.voice.SetMute(channelID, conn.UserID, muted)
	if err != nil {
		return err
	}
	h.router.Publish(guildID, Event{Kind: EventVoiceChannelUpdate, Data: *delta})
	return nil
}

// ActiveChannels snapshots the voice rosters of a guild for late joiners.
func (h *Hub) ActiveChannels(guildID string) map[string][]string {
	return h.voice.ActiveChannels(guildID)
}

// VoiceParticipants returns the roster of one voice channel.
func (h *Hub) VoiceParticipants(channelID string) []string {
	return h.voice.Participants(channelID)
}

// UserInVoiceChannel reports whether the user currently sits in the channel.
func (h *Hub) UserInVoiceChannel(channelID, userID string) bool {
	return h.voice.HasParticipant(channelID, userID)
}

// CallInvite starts a 1:1 call: IDLE -> RINGING, then rings every connection
// of the target user.
func (h *Hub) CallInvite(connID, conversationID, targetID, imageURL string) error {
	conn, err := h.authedConn(connID)
	if err != nil {
		return err
	}
	if conversationID == "" || targetID == "" {
		return newError(ErrorCodeNotFound, "call invite requires conversation and target", fmt.Errorf("hub: incomplete invite from connection %s", connID))
	}

	if _, err := h.calls.Invite(conversationID, conn.UserID, targetID); err != nil {
		return err
	}
	h.router.NotifyUser(targetID, Event{
		Kind: EventIncomingVoiceCall,
		Data: VoiceCallPayload{ConversationID: conversationID, ImageURL: imageURL},
	})
	return nil
}

// CallAccept transitions RINGING -> ACTIVE and cues the other party.
func (h *Hub) CallAccept(connID, conversationID string) error {
	conn, err := h.authedConn(connID)
	if err != nil {
		return err
	}
	session, err := h.calls.Accept(conversationID)
	if err != nil {
		return err
	}
	h.router.NotifyUser(session.otherParty(conn.UserID), Event{
		Kind: EventJoinVoiceCall,
		Data: VoiceCallPayload{ConversationID: conversationID},
	})
	return nil
}

// CallLeave ends the session from any non-terminal state and cues the other
// party. Leaving a conversation with no live session is a no-op; delivering
// the cue to zero connections is a normal outcome.
func (h *Hub) CallLeave(connID, conversationID string) error {
	conn, err := h.authedConn(connID)
	if err != nil {
		return err
	}
	session := h.calls.End(conversationID)
	if session == nil {
		return nil
	}
	h.router.NotifyUser(session.otherParty(conn.UserID), Event{
		Kind: EventLeaveVoiceCall,
		Data: VoiceCallPayload{ConversationID: conversationID},
	})
	return nil
}

func (s *CallSession) otherParty(userID string) string {
	if userID == s.Initiator {
		return s.Target
	}
	return s.Initiator
}

// callTimedOut runs when a RINGING session expires without an accept: the
// initiator gets the leave cue so local ringing stops.
func (h *Hub) callTimedOut(session CallSession) {
	h.router.NotifyUser(session.Initiator, Event{
		Kind: EventLeaveVoiceCall,
		Data: VoiceCallPayload{ConversationID: session.ConversationID},
	})
}

// RecordView upserts the last-viewed watermark for a conversation.
func (h *Hub) RecordView(userID, conversationID string, ts time.Time) bool {
	return h.unread.RecordView(userID, conversationID, ts)
}

// UnreadSince returns the last-viewed watermark, epoch origin when absent.
func (h *Hub) UnreadSince(userID, conversationID string) time.Time {
	return h.unread.UnreadSince(userID, conversationID)
}

// Watermarks returns all of a user's conversation watermarks.
func (h *Hub) Watermarks(userID string) map[string]time.Time {
	return h.unread.Watermarks(userID)
}

// OnlineUsers returns the current online set.
func (h *Hub) OnlineUsers() []string {
	return h.presence.Snapshot()
}

// RoomCount reports the number of live rooms, for metrics.
func (h *Hub) RoomCount() int {
	return h.rooms.RoomCount()
}

func (h *Hub) authedConn(connID string) (*Connection, error) {
	conn, ok := h.registry.Get(connID)
	if !ok {
		return nil, newError(ErrorCodeNotFound, "unknown connection", fmt.Errorf("hub: connection %s not registered", connID))
	}
	if conn.UserID == "" {
		return nil, newError(ErrorCodeAuth, "connection not authenticated", fmt.Errorf("hub: connection %s has no bound user", connID))
	}
	return conn, nil
}
