package hub

import (
	"encoding/json"
	"fmt"
)

// EventKind is the closed set of event names exchanged with clients. Unknown
// kinds are rejected at the transport boundary instead of being dropped
// silently.
type EventKind string

const (
	// client -> hub
	EventJoinRoom          EventKind = "joinRoom"
	EventMessage           EventKind = "message"
	EventNotification      EventKind = "notification"
	EventJoinOnline        EventKind = "joinOnline"
	EventJoinVoiceChannel  EventKind = "joinVoiceChannel"
	EventLeaveVoiceChannel EventKind = "leaveVoiceChannel"
	EventMuteVoiceChannel  EventKind = "muteVoiceChannel"
	EventNewVoiceCall      EventKind = "newVoiceCall"
	EventJoinVoiceCall     EventKind = "joinVoiceCall"
	EventLeaveVoiceCall    EventKind = "leaveVoiceCall"

	// hub -> client
	EventOnlineUsers        EventKind = "onlineUsers"
	EventIncomingVoiceCall  EventKind = "incomingVoiceCall"
	EventVoiceChannelUpdate EventKind = "voiceChannelUpdate"
	EventRefresh            EventKind = "refresh"
	EventError              EventKind = "error"
)

var inboundKinds = map[EventKind]bool{
	EventJoinRoom:          true,
	EventMessage:           true,
	EventNotification:      true,
	EventJoinOnline:        true,
	EventJoinVoiceChannel:  true,
	EventLeaveVoiceChannel: true,
	EventMuteVoiceChannel:  true,
	EventNewVoiceCall:      true,
	EventJoinVoiceCall:     true,
	EventLeaveVoiceCall:    true,
}

// Inbound reports whether clients are allowed to send this event kind.
func (k EventKind) Inbound() bool {
	return inboundKinds[k]
}

// Event is the envelope delivered to and received from connections.
type Event struct {
	Kind EventKind   `json:"event"`
	Data interface{} `json:"data,omitempty"`
}

// RoomList accepts either a single room id or a list of room ids, matching
// the batched joinRoom calls clients issue at connect time.
type RoomList []string

func (r *RoomList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*r = RoomList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("room list: expected string or array of strings")
	}
	*r = RoomList(many)
	return nil
}

type JoinRoomPayload struct {
	Rooms RoomList `json:"rooms"`
}

type JoinOnlinePayload struct {
	Token string `json:"token"`
}

type MessagePayload struct {
	RoomID    string `json:"roomId"`
	SenderID  string `json:"senderId"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"createdAt"`
}

type NotificationPayload struct {
	RecipientID string `json:"recipientId"`
	SenderID    string `json:"senderId"`
	Content     string `json:"content"`
	ImageURL    string `json:"imageUrl,omitempty"`
	CreatedAt   int64  `json:"createdAt"`
}

type VoiceChannelPayload struct {
	GuildID   string `json:"guildId"`
	ChannelID string `json:"channelId"`
	Muted     bool   `json:"muted,omitempty"`
}

// RosterDeltaKind enumerates voice roster changes carried by a single
// voiceChannelUpdate event so clients reconcile with one handler.
type RosterDeltaKind string

const (
	RosterJoined      RosterDeltaKind = "joined"
	RosterLeft        RosterDeltaKind = "left"
	RosterMuteChanged RosterDeltaKind = "muteChanged"
)

type RosterDelta struct {
	ChannelID string          `json:"channelId"`
	UserID    string          `json:"userId"`
	Kind      RosterDeltaKind `json:"kind"`
	Muted     bool            `json:"muted"`
}

type VoiceCallPayload struct {
	ConversationID string `json:"conversationId"`
	TargetID       string `json:"targetId,omitempty"`
	ImageURL       string `json:"imageUrl,omitempty"`
}

type OnlineUsersPayload struct {
	Users []string `json:"users"`
}

type ErrorPayload struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}
