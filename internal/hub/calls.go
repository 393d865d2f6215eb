package hub

import (
	"fmt"
	"sync"
	"time"
)

// CallState is the lifecycle of a 1:1 voice call session. ENDED is terminal:
// a new invite on the same conversation creates a fresh session.
type CallState string

const (
	CallIdle    CallState = "IDLE"
	CallRinging CallState = "RINGING"
	CallActive  CallState = "ACTIVE"
	CallEnded   CallState = "ENDED"
)

// CallSession is one 1:1 voice call, keyed by conversation id.
type CallSession struct {
	ConversationID string
	Initiator      string
	Target         string
	State          CallState
	StartedAt      time.Time

	timer *time.Timer
}

// CallTable owns every non-terminal call session. A RINGING session that is
// not accepted within ringTimeout auto-transitions to ENDED and the initiator
// is told via onTimeout.
type CallTable struct {
	mu          sync.Mutex
	sessions    map[string]*CallSession
	ringTimeout time.Duration
	now         func() time.Time
	onTimeout   func(session CallSession)
}

func NewCallTable(ringTimeout time.Duration, onTimeout func(CallSession)) *CallTable {
	return &CallTable{
		sessions:    make(map[string]*CallSession),
		ringTimeout: ringTimeout,
		now:         time.Now,
		onTimeout:   onTimeout,
	}
}

// Invite starts a new session for the conversation: IDLE -> RINGING. It
// conflicts when the conversation already has a live session, and also when
// the target is busy in any other live call (recipient availability).
func (t *CallTable) Invite(conversationID, fromUser, toUser string) (*CallSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.sessions[conversationID]; ok {
		return nil, newError(ErrorCodeConflict, "call already in progress", fmt.Errorf("calls: conversation %s already %s", conversationID, existing.State))
	}
	for _, s := range t.sessions {
		if s.Initiator == toUser || s.Target == toUser {
			return nil, newError(ErrorCodeConflict, "callee is busy in another call", fmt.Errorf("calls: user %s already in call on %s", toUser, s.ConversationID))
		}
	}

	session := &CallSession{
		ConversationID: conversationID,
		Initiator:      fromUser,
		Target:         toUser,
		State:          CallRinging,
		StartedAt:      t.now(),
	}
	if t.ringTimeout > 0 {
		session.timer = time.AfterFunc(t.ringTimeout, func() {
			t.expire(conversationID)
		})
	}
	t.sessions[conversationID] = session
	return session, nil
}

// Accept transitions RINGING -> ACTIVE.
func (t *CallTable) Accept(conversationID string) (*CallSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	session, ok := t.sessions[conversationID]
	if !ok {
		return nil, newError(ErrorCodeNotFound, "no ringing call for conversation", fmt.Errorf("calls: no session for %s", conversationID))
	}
	if session.State != CallRinging {
		return nil, newError(ErrorCodeConflict, "call is not ringing", fmt.Errorf("calls: conversation %s is %s", conversationID, session.State))
	}
	session.State = CallActive
	if session.timer != nil {
		session.timer.Stop()
		session.timer = nil
	}
	return session, nil
}

// End moves any non-terminal session to ENDED and forgets it. Ending a
// conversation with no session is a no-op and returns nil.
func (t *CallTable) End(conversationID string) *CallSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.endLocked(conversationID)
}

func (t *CallTable) endLocked(conversationID string) *CallSession {
	session, ok := t.sessions[conversationID]
	if !ok {
		return nil
	}
	session.State = CallEnded
	if session.timer != nil {
		session.timer.Stop()
		session.timer = nil
	}
	delete(t.sessions, conversationID)
	return session
}

// Get returns the live session for a conversation, if any.
func (t *CallTable) Get(conversationID string) (CallSession, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	session, ok := t.sessions[conversationID]
	if !ok {
		return CallSession{}, false
	}
	return *session, true
}

func (t *CallTable) expire(conversationID string) {
	t.mu.Lock()
	session, ok := t.sessions[conversationID]
	if !ok || session.State != CallRinging {
		t.mu.Unlock()
		return
	}
	ended := *t.endLocked(conversationID)
	t.mu.Unlock()

	if t.onTimeout != nil {
		t.onTimeout(ended)
	}
}
