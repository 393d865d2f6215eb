package websocket

import (
	"context"
	"errors"
	"testing"

	"chat-hub-backend/internal/hub"
)

type staticVerifier struct{ userID string }

func (v staticVerifier) Verify(token string) (string, error) {
	if token == "" {
		return "", errors.New("empty token")
	}
	return v.userID, nil
}

type emptyDirectory struct{}

func (emptyDirectory) ConversationIDs(context.Context, string) ([]string, error) {
	return nil, nil
}
func (emptyDirectory) ChannelIDs(context.Context, string) ([]string, error) { return nil, nil }
func (emptyDirectory) GuildIDs(context.Context, string) ([]string, error)   { return nil, nil }

// newTestClient builds a client without an underlying socket. Dispatch and
// Send only touch the buffered channel, never the Conn.
func newTestClient(t *testing.T, h *hub.Hub) (*Handler, *WSClient) {
	t.Helper()
	handler := NewHandler(h, DefaultConfig())
	cl := newWSClient(nil, "conn-1", handler.cfg)
	h.Connect(cl)
	return handler, cl
}

func newTestHub() *hub.Hub {
	cfg := hub.DefaultConfig()
	cfg.PresenceDebounce = 0
	return hub.New(cfg, staticVerifier{userID: "u1"}, emptyDirectory{}, nil, nil)
}

func drain(cl *WSClient) []hub.Event {
	var evs []hub.Event
	for {
		select {
		case ev := <-cl.send:
			evs = append(evs, ev)
		default:
			return evs
		}
	}
}

func TestDispatchRejectsMalformedEnvelope(t *testing.T) {
	handler, cl := newTestClient(t, newTestHub())

	handler.dispatch(cl, []byte(`{"event": 42}`))

	evs := drain(cl)
	if len(evs) != 1 || evs[0].Kind != hub.EventError {
		t.Fatalf("events = %v, want one error event", evs)
	}
	if evs[0].Data.(hub.ErrorPayload).Code != hub.ErrorCodeInternal {
		t.Fatalf("error code = %v", evs[0].Data)
	}
}

func TestDispatchRejectsUnknownKind(t *testing.T) {
	handler, cl := newTestClient(t, newTestHub())

	handler.dispatch(cl, []byte(`{"event":"selfDestruct","data":{}}`))

	evs := drain(cl)
	if len(evs) != 1 || evs[0].Kind != hub.EventError {
		t.Fatalf("events = %v, want one error event", evs)
	}
}

func TestDispatchRejectsOutboundKind(t *testing.T) {
	handler, cl := newTestClient(t, newTestHub())

	// onlineUsers is server-to-client only; a client must not inject it.
	handler.dispatch(cl, []byte(`{"event":"onlineUsers","data":{"users":["mallory"]}}`))

	evs := drain(cl)
	if len(evs) != 1 || evs[0].Kind != hub.EventError {
		t.Fatalf("events = %v, want one error event", evs)
	}
}

func TestDispatchJoinOnlineBindsUser(t *testing.T) {
	h := newTestHub()
	handler, cl := newTestClient(t, h)

	handler.dispatch(cl, []byte(`{"event":"joinOnline","data":{"token":"tok"}}`))

	if users := h.OnlineUsers(); len(users) != 1 || users[0] != "u1" {
		t.Fatalf("online users = %v, want [u1]", users)
	}
	// The presence broadcast lands on the authenticated connection.
	evs := drain(cl)
	var sawPresence bool
	for _, ev := range evs {
		if ev.Kind == hub.EventOnlineUsers {
			sawPresence = true
		}
		if ev.Kind == hub.EventError {
			t.Fatalf("unexpected error event: %v", ev.Data)
		}
	}
	if !sawPresence {
		t.Fatal("no onlineUsers broadcast after joinOnline")
	}
}

func TestDispatchJoinOnlineBadToken(t *testing.T) {
	h := newTestHub()
	handler, cl := newTestClient(t, h)

	handler.dispatch(cl, []byte(`{"event":"joinOnline","data":{"token":""}}`))

	if users := h.OnlineUsers(); len(users) != 0 {
		t.Fatalf("online users = %v, want none", users)
	}
	evs := drain(cl)
	if len(evs) != 1 || evs[0].Kind != hub.EventError {
		t.Fatalf("events = %v, want one error event", evs)
	}
	if evs[0].Data.(hub.ErrorPayload).Code != hub.ErrorCodeAuth {
		t.Fatalf("error code = %v, want auth", evs[0].Data)
	}
}

func TestDispatchJoinRoomAcceptsStringAndList(t *testing.T) {
	h := newTestHub()
	handler, cl := newTestClient(t, h)
	handler.dispatch(cl, []byte(`{"event":"joinOnline","data":{"token":"tok"}}`))
	drain(cl)

	handler.dispatch(cl, []byte(`{"event":"joinRoom","data":"room-a"}`))
	handler.dispatch(cl, []byte(`{"event":"joinRoom","data":["room-b","room-c"]}`))

	if evs := drain(cl); len(evs) != 0 {
		t.Fatalf("unexpected events: %v", evs)
	}
	if got := h.RoomCount(); got != 3 {
		t.Fatalf("room count = %d, want 3", got)
	}
}

func TestDispatchMessageRoundTrip(t *testing.T) {
	h := newTestHub()
	handler, cl := newTestClient(t, h)
	handler.dispatch(cl, []byte(`{"event":"joinOnline","data":{"token":"tok"}}`))
	handler.dispatch(cl, []byte(`{"event":"joinRoom","data":"room-a"}`))
	drain(cl)

	handler.dispatch(cl, []byte(`{"event":"message","data":{"roomId":"room-a","content":"hi"}}`))

	evs := drain(cl)
	if len(evs) != 1 || evs[0].Kind != hub.EventMessage {
		t.Fatalf("events = %v, want one message", evs)
	}
	msg := evs[0].Data.(hub.MessagePayload)
	if msg.SenderID != "u1" {
		t.Fatalf("sender = %q, want the authenticated user", msg.SenderID)
	}
}

func TestSendDropsWhenBufferFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SendBuffer = 1
	cl := newWSClient(nil, "conn-1", cfg)

	if err := cl.Send(hub.Event{Kind: hub.EventRefresh}); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := cl.Send(hub.Event{Kind: hub.EventRefresh}); err == nil {
		t.Fatal("second send should drop on a full buffer")
	}
}

func TestSendFailsAfterClose(t *testing.T) {
	cl := newWSClient(nil, "conn-1", DefaultConfig())
	cl.close()
	if err := cl.Send(hub.Event{Kind: hub.EventRefresh}); err == nil {
		t.Fatal("send after close should fail")
	}
}
