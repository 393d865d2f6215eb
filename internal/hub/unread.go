package hub

import (
	"sync"
	"time"
)

type watermarkKey struct {
	userID         string
	conversationID string
}

// UnreadTracker stores the per (user, conversation) last-viewed watermark.
// The external message store computes unread counts as messages newer than
// the watermark; the hub only keeps the timestamps.
type UnreadTracker struct {
	mu         sync.RWMutex
	watermarks map[watermarkKey]time.Time
}

func NewUnreadTracker() *UnreadTracker {
	return &UnreadTracker{
		watermarks: make(map[watermarkKey]time.Time),
	}
}

// RecordView upserts the watermark. Monotonic: a timestamp older than the
// stored one is ignored, protecting against out-of-order client calls.
// Returns whether the watermark advanced.
func (u *UnreadTracker) RecordView(userID, conversationID string, ts time.Time) bool {
	key := watermarkKey{userID: userID, conversationID: conversationID}

	u.mu.Lock()
	defer u.mu.Unlock()
	if current, ok := u.watermarks[key]; ok && !ts.After(current) {
		return false
	}
	u.watermarks[key] = ts
	return true
}

// UnreadSince returns the watermark for (user, conversation). Without one it
// returns the epoch origin, meaning everything is unread.
func (u *UnreadTracker) UnreadSince(userID, conversationID string) time.Time {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.watermarks[watermarkKey{userID: userID, conversationID: conversationID}]
}

// Watermarks returns every watermark a user holds, keyed by conversation id.
func (u *UnreadTracker) Watermarks(userID string) map[string]time.Time {
	u.mu.RLock()
	defer u.mu.RUnlock()

	out := make(map[string]time.Time)
	for key, ts := range u.watermarks {
		if key.userID == userID {
			out[key.conversationID] = ts
		}
	}
	return out
}
