package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"chat-hub-backend/internal/api/middleware"
	"chat-hub-backend/internal/hub"
)

// The REST surface collaborators use next to the websocket: the external
// store reads watermarks and rosters here, and pokes the hub to broadcast
// refresh advisories after CRUD mutations.

type HubPaths struct {
	UnreadPrefix       string
	UnreadViewedPath   string
	ParticipantsPrefix string
}

type hubEndpoints struct {
	hub   *hub.Hub
	paths HubPaths
}

type HubEndpointsAPI interface {
	Unread(http.ResponseWriter, *http.Request) error
	UpdateLastViewed(http.ResponseWriter, *http.Request) error
	VoiceParticipants(http.ResponseWriter, *http.Request) error
	VoiceRoomEmpty(http.ResponseWriter, *http.Request) error
	VoiceUserInRoom(http.ResponseWriter, *http.Request) error
	OnlineUsers(http.ResponseWriter, *http.Request) error
	Refresh(http.ResponseWriter, *http.Request) error
}

func NewHubEndpoints(h *hub.Hub, paths HubPaths) HubEndpointsAPI {
	return &hubEndpoints{
		hub:   h,
		paths: paths,
	}
}

type watermarkResponse struct {
	ConversationID string `json:"conversationId"`
	LastViewed     int64  `json:"lastViewed"`
}

// Unread serves the last-viewed watermark of the authenticated user, either
// for one conversation (path suffix) or all of them. A missing watermark
// reports the epoch origin: everything unread.
func (e *hubEndpoints) Unread(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: e.getUnread,
	})
}

func (e *hubEndpoints) getUnread(w http.ResponseWriter, r *http.Request) error {
	userID := middleware.UserID(r)
	if userID == "" {
		return &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized.",
			ErrorLog:   fmt.Errorf("unread: no authenticated user on request"),
		}
	}

	conversationID := strings.TrimPrefix(r.URL.Path, e.paths.UnreadPrefix)
	if conversationID == r.URL.Path {
		// Bare prefix without the trailing slash: list every watermark.
		conversationID = ""
	}
	conversationID = strings.Trim(conversationID, "/")

	if conversationID == "" {
		watermarks := e.hub.Watermarks(userID)
		out := make([]watermarkResponse, 0, len(watermarks))
		for convID, ts := range watermarks {
			out = append(out, watermarkResponse{ConversationID: convID, LastViewed: ts.Unix()})
		}
		return WriteJSON(w, http.StatusOK, out)
	}

	ts := e.hub.UnreadSince(userID, conversationID)
	lastViewed := int64(0)
	if !ts.IsZero() {
		lastViewed = ts.Unix()
	}
	return WriteJSON(w, http.StatusOK, watermarkResponse{
		ConversationID: conversationID,
		LastViewed:     lastViewed,
	})
}

type updateLastViewedRequest struct {
	ConversationID string `json:"conversationId"`
	Timestamp      int64  `json:"timestamp"`
}

// UpdateLastViewed upserts the watermark for the authenticated user. Stale
// timestamps are accepted and ignored, so retried client calls stay safe.
func (e *hubEndpoints) UpdateLastViewed(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPut: func(w http.ResponseWriter, r *http.Request) error {
			userID := middleware.UserID(r)
			if userID == "" {
				return &HTTPError{
					StatusCode: http.StatusUnauthorized,
					Message:    "Unauthorized.",
					ErrorLog:   fmt.Errorf("updateLastViewed: no authenticated user on request"),
				}
			}

			var req updateLastViewedRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				return badRequest("Invalid request body.", err)
			}
			if req.ConversationID == "" {
				return badRequest("conversationId is required.", errors.New("updateLastViewed: empty conversation id"))
			}

			ts := time.Unix(req.Timestamp, 0)
			if req.Timestamp == 0 {
				ts = time.Now()
			}
			advanced := e.hub.RecordView(userID, req.ConversationID, ts)
			return WriteJSON(w, http.StatusOK, map[string]bool{"updated": advanced})
		},
	})
}

// VoiceParticipants snapshots all active voice channel rosters of a guild so
// late-joining clients can render current participants.
func (e *hubEndpoints) VoiceParticipants(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: func(w http.ResponseWriter, r *http.Request) error {
			guildID := strings.TrimPrefix(r.URL.Path, e.paths.ParticipantsPrefix)
			guildID = strings.Trim(guildID, "/")
			if guildID == "" {
				return badRequest("guildId is required.", errors.New("participants: empty guild id"))
			}
			return WriteJSON(w, http.StatusOK, e.hub.ActiveChannels(guildID))
		},
	})
}

type roomEmptyRequest struct {
	ChannelID string `json:"channelId"`
}

func (e *hubEndpoints) VoiceRoomEmpty(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: func(w http.ResponseWriter, r *http.Request) error {
			var req roomEmptyRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				return badRequest("Invalid request body.", err)
			}
			participants := e.hub.VoiceParticipants(req.ChannelID)
			return WriteJSON(w, http.StatusOK, map[string]bool{"empty": len(participants) == 0})
		},
	})
}

type userInRoomRequest struct {
	ChannelID string `json:"channelId"`
	UserID    string `json:"userId"`
}

func (e *hubEndpoints) VoiceUserInRoom(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: func(w http.ResponseWriter, r *http.Request) error {
			var req userInRoomRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				return badRequest("Invalid request body.", err)
			}
			present := e.hub.UserInVoiceChannel(req.ChannelID, req.UserID)
			return WriteJSON(w, http.StatusOK, map[string]bool{"present": present})
		},
	})
}

// OnlineUsers returns the current online set, the same data the hub pushes
// as onlineUsers events.
func (e *hubEndpoints) OnlineUsers(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: func(w http.ResponseWriter, r *http.Request) error {
			return WriteJSON(w, http.StatusOK, e.hub.OnlineUsers())
		},
	})
}

type refreshRequest struct {
	RoomID string `json:"roomId"`
}

// Refresh lets the external CRUD service tell every subscriber of a room to
// re-fetch, e.g. after it created a conversation.
func (e *hubEndpoints) Refresh(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: func(w http.ResponseWriter, r *http.Request) error {
			var req refreshRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				return badRequest("Invalid request body.", err)
			}
			if req.RoomID == "" {
				return badRequest("roomId is required.", errors.New("refresh: empty room id"))
			}
			e.hub.Refresh(req.RoomID)
			return WriteJSON(w, http.StatusOK, ApiMessageResponse{Message: "ok"})
		},
	})
}

func badRequest(message string, err error) *HTTPError {
	return &HTTPError{
		StatusCode: http.StatusBadRequest,
		Message:    message,
		ErrorLog:   err,
	}
}
