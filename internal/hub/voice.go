package hub

import (
	"fmt"
	"sync"
	"time"
)

// VoiceChannels tracks who is present in each guild voice channel. The roster
// is keyed (channelID, userID): a user appears once per channel no matter how
// many devices they joined from, and the entry survives until the last of
// those connections leaves or drops. Each channel carries its own mutex so
// traffic in one channel never blocks another.
type VoiceChannels struct {
	mu       sync.RWMutex
	channels map[string]*voiceChannel
	now      func() time.Time
}

type voiceChannel struct {
	mu           sync.Mutex
	guildID      string
	participants map[string]*voiceParticipant

	// dead is set under mu when collect removes the channel from the map.
	// Holders of a stale pointer must re-fetch instead of mutating an
	// orphaned roster.
	dead bool
}

type voiceParticipant struct {
	muted    bool
	joinedAt time.Time
	conns    map[string]struct{}
}

func NewVoiceChannels() *VoiceChannels {
	return &VoiceChannels{
		channels: make(map[string]*voiceChannel),
		now:      time.Now,
	}
}

// lockChannel returns the channel with its mutex held, creating it when create
// is set. It retries when the fetched pointer lost a race with collect: a dead
// channel is already gone from the map and must not be resurrected.
func (v *VoiceChannels) lockChannel(guildID, channelID string, create bool) *voiceChannel {
	for {
		v.mu.RLock()
		ch, ok := v.channels[channelID]
		v.mu.RUnlock()

		if !ok {
			if !create {
				return nil
			}
			v.mu.Lock()
			ch, ok = v.channels[channelID]
			if !ok {
				ch = &voiceChannel{
					guildID:      guildID,
					participants: make(map[string]*voiceParticipant),
				}
				v.channels[channelID] = ch
			}
			v.mu.Unlock()
		}

		ch.mu.Lock()
		if !ch.dead {
			return ch
		}
		ch.mu.Unlock()
	}
}

// Join adds userID to the channel roster via connID. The returned delta is
// non-nil when the user was not on the roster yet; joining from an additional
// device only reference-counts the existing entry and leaves the mute flag
// untouched, so observers never hold a stale value.
func (v *VoiceChannels) Join(guildID, channelID, userID, connID string) *RosterDelta {
	ch := v.lockChannel(guildID, channelID, true)
	defer ch.mu.Unlock()

	p, ok := ch.participants[userID]
	if !ok {
		p = &voiceParticipant{
			joinedAt: v.now(),
			conns:    make(map[string]struct{}),
		}
		ch.participants[userID] = p
	}
	p.conns[connID] = struct{}{}
	if ok {
		return nil
	}
	return &RosterDelta{ChannelID: channelID, UserID: userID, Kind: RosterJoined}
}

// Leave drops connID's presence in the channel for userID. The returned delta
// is non-nil when that was the user's last connection in the channel and the
// roster entry is gone.
func (v *VoiceChannels) Leave(channelID, userID, connID string) *RosterDelta {
	ch := v.lockChannel("", channelID, false)
	if ch == nil {
		return nil
	}
	delta := ch.leaveLocked(channelID, userID, connID)
	empty := len(ch.participants) == 0
	ch.mu.Unlock()

	if empty {
		v.collect(channelID)
	}
	return delta
}

func (ch *voiceChannel) leaveLocked(channelID, userID, connID string) *RosterDelta {
	p, ok := ch.participants[userID]
	if !ok {
		return nil
	}
	delete(p.conns, connID)
	if len(p.conns) > 0 {
		return nil
	}
	delete(ch.participants, userID)
	return &RosterDelta{ChannelID: channelID, UserID: userID, Kind: RosterLeft}
}

// collect removes an empty channel. The emptiness check and the map delete
// happen with both locks held, and the channel is marked dead so a Join that
// fetched the pointer before the delete retries against the map instead of
// landing a participant in an orphaned roster.
func (v *VoiceChannels) collect(channelID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	ch, ok := v.channels[channelID]
	if !ok {
		return
	}
	ch.mu.Lock()
	if len(ch.participants) == 0 {
		ch.dead = true
		delete(v.channels, channelID)
	}
	ch.mu.Unlock()
}

// SetMute overwrites the mute flag for a roster entry. The delta is returned
// even when the value did not change: observers always receive the current
// source of truth.
func (v *VoiceChannels) SetMute(channelID, userID string, muted bool) (*RosterDelta, error) {
	ch := v.lockChannel("", channelID, false)
	if ch == nil {
		return nil, newError(ErrorCodeNotFound, "no such voice channel", fmt.Errorf("voice: channel %s has no roster", channelID))
	}
	defer ch.mu.Unlock()

	p, ok := ch.participants[userID]
	if !ok {
		return nil, newError(ErrorCodeNotFound, "user not in voice channel", fmt.Errorf("voice: user %s not on roster of %s", userID, channelID))
	}
	p.muted = muted
	return &RosterDelta{ChannelID: channelID, UserID: userID, Kind: RosterMuteChanged, Muted: muted}, nil
}

// GuildOf returns the guild a channel belongs to, for broadcast scoping.
func (v *VoiceChannels) GuildOf(channelID string) (string, bool) {
	ch := v.lockChannel("", channelID, false)
	if ch == nil {
		return "", false
	}
	guildID := ch.guildID
	ch.mu.Unlock()
	return guildID, true
}

// ActiveChannels snapshots the rosters of every active channel in a guild so
// late-joining clients see current participants, not just future deltas.
func (v *VoiceChannels) ActiveChannels(guildID string) map[string][]string {
	v.mu.RLock()
	type entry struct {
		id string
		ch *voiceChannel
	}
	entries := make([]entry, 0)
	for id, ch := range v.channels {
		if ch.guildID == guildID {
			entries = append(entries, entry{id, ch})
		}
	}
	v.mu.RUnlock()

	out := make(map[string][]string, len(entries))
	for _, e := range entries {
		e.ch.mu.Lock()
		if e.ch.dead {
			e.ch.mu.Unlock()
			continue
		}
		users := make([]string, 0, len(e.ch.participants))
		for userID := range e.ch.participants {
			users = append(users, userID)
		}
		e.ch.mu.Unlock()
		if len(users) > 0 {
			out[e.id] = users
		}
	}
	return out
}

// Participants returns the roster of one channel.
func (v *VoiceChannels) Participants(channelID string) []string {
	ch := v.lockChannel("", channelID, false)
	if ch == nil {
		return nil
	}
	defer ch.mu.Unlock()
	users := make([]string, 0, len(ch.participants))
	for userID := range ch.participants {
		users = append(users, userID)
	}
	return users
}

// HasParticipant reports whether userID is currently on the channel roster.
func (v *VoiceChannels) HasParticipant(channelID, userID string) bool {
	ch := v.lockChannel("", channelID, false)
	if ch == nil {
		return false
	}
	defer ch.mu.Unlock()
	_, ok := ch.participants[userID]
	return ok
}

// DropConnection removes connID from every roster that references it and
// returns the deltas for users whose last channel connection this was,
// together with the guild each channel belongs to.
func (v *VoiceChannels) DropConnection(connID, userID string) []GuildRosterDelta {
	if userID == "" {
		return nil
	}

	v.mu.RLock()
	type entry struct {
		id string
		ch *voiceChannel
	}
	entries := make([]entry, 0, len(v.channels))
	for id, ch := range v.channels {
		entries = append(entries, entry{id, ch})
	}
	v.mu.RUnlock()

	var deltas []GuildRosterDelta
	for _, e := range entries {
		e.ch.mu.Lock()
		if e.ch.dead {
			e.ch.mu.Unlock()
			continue
		}
		delta := e.ch.leaveLocked(e.id, userID, connID)
		empty := len(e.ch.participants) == 0
		guildID := e.ch.guildID
		e.ch.mu.Unlock()

		if delta != nil {
			deltas = append(deltas, GuildRosterDelta{GuildID: guildID, Delta: *delta})
		}
		if empty {
			v.collect(e.id)
		}
	}
	return deltas
}

// GuildRosterDelta pairs a roster change with the guild room it should be
// broadcast into.
type GuildRosterDelta struct {
	GuildID string
	Delta   RosterDelta
}
