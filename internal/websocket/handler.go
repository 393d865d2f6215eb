package websocket

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"chat-hub-backend/internal/hub"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Config carries the transport timing knobs. PongWait is the heartbeat
// timeout: a silent connection past it runs the full disconnect cascade.
type Config struct {
	PingInterval time.Duration
	PongWait     time.Duration
	ReadLimit    int64
	SendBuffer   int
}

func DefaultConfig() Config {
	return Config{
		PingInterval: 30 * time.Second,
		PongWait:     75 * time.Second,
		ReadLimit:    512 * 1024,
		SendBuffer:   32,
	}
}

// Handler upgrades HTTP requests into hub connections and decodes the wire
// envelope into typed hub operations.
type Handler struct {
	hub *hub.Hub
	cfg Config
}

func NewHandler(h *hub.Hub, cfg Config) *Handler {
	return &Handler{
		hub: h,
		cfg: cfg,
	}
}

// Serve upgrades the request and registers the connection with the hub. The
// connection starts unauthenticated; a joinOnline event binds the user.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cl := newWSClient(conn, uuid.NewString(), h.cfg)
	h.hub.Connect(cl)
	incConnections()

	go cl.keepAlive()
	go cl.writeMessage()
	go cl.readMessage(h)
}

// envelope is the wire framing: {"event": <kind>, "data": <payload>}.
type envelope struct {
	Kind hub.EventKind   `json:"event"`
	Data json.RawMessage `json:"data"`
}

// dispatch decodes one inbound frame and applies it. Unknown or outbound-only
// event kinds are rejected with an error event rather than silently ignored.
func (h *Handler) dispatch(cl *WSClient, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.sendError(cl, hub.ErrorCodeInternal, "malformed event envelope")
		return
	}
	if !env.Kind.Inbound() {
		h.sendError(cl, hub.ErrorCodeNotFound, "unknown event kind: "+string(env.Kind))
		return
	}

	if err := h.apply(cl, env); err != nil {
		code := hub.ErrorCodeInternal
		var hubErr *hub.Error
		if errors.As(err, &hubErr) {
			code = hubErr.Code
		}
		log.Printf("Connection %s: %s rejected: %v", cl.ConnID, env.Kind, err)
		h.sendError(cl, code, err.Error())
	}
}

func (h *Handler) apply(cl *WSClient, env envelope) error {
	switch env.Kind {
	case hub.EventJoinOnline:
		var p hub.JoinOnlinePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		_, err := h.hub.Authenticate(cl.ConnID, p.Token)
		return err

	case hub.EventJoinRoom:
		var rooms hub.RoomList
		if err := json.Unmarshal(env.Data, &rooms); err != nil {
			var p hub.JoinRoomPayload
			if err := json.Unmarshal(env.Data, &p); err != nil {
				return err
			}
			rooms = p.Rooms
		}
		h.hub.JoinRooms(cl.ConnID, rooms)
		return nil

	case hub.EventMessage:
		var p hub.MessagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		return h.hub.PublishMessage(cl.ConnID, p)

	case hub.EventNotification:
		var p hub.NotificationPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		return h.hub.Notify(cl.ConnID, p)

	case hub.EventJoinVoiceChannel:
		var p hub.VoiceChannelPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		return h.hub.VoiceJoin(cl.ConnID, p.GuildID, p.ChannelID)

	case hub.EventLeaveVoiceChannel:
		var p hub.VoiceChannelPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		return h.hub.VoiceLeave(cl.ConnID, p.ChannelID)

	case hub.EventMuteVoiceChannel:
		var p hub.VoiceChannelPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		return h.hub.VoiceMute(cl.ConnID, p.ChannelID, p.Muted)

	case hub.EventNewVoiceCall:
		var p hub.VoiceCallPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		return h.hub.CallInvite(cl.ConnID, p.ConversationID, p.TargetID, p.ImageURL)

	case hub.EventJoinVoiceCall:
		var p hub.VoiceCallPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		return h.hub.CallAccept(cl.ConnID, p.ConversationID)

	case hub.EventLeaveVoiceCall:
		var p hub.VoiceCallPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		return h.hub.CallLeave(cl.ConnID, p.ConversationID)
	}
	return nil
}

func (h *Handler) sendError(cl *WSClient, code hub.ErrorCode, message string) {
	// Best effort: the connection may already be gone.
	_ = cl.Send(hub.Event{
		Kind: hub.EventError,
		Data: hub.ErrorPayload{Code: code, Message: message},
	})
}
