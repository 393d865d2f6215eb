package hub

import (
	"testing"
	"time"
)

func TestCallTransitions(t *testing.T) {
	table := NewCallTable(0, nil)

	session, err := table.Invite("conv-1", "u1", "u2")
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	if session.State != CallRinging {
		t.Fatalf("state after invite = %s", session.State)
	}

	session, err = table.Accept("conv-1")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if session.State != CallActive {
		t.Fatalf("state after accept = %s", session.State)
	}

	ended := table.End("conv-1")
	if ended == nil || ended.State != CallEnded {
		t.Fatalf("end returned %+v", ended)
	}
	if _, live := table.Get("conv-1"); live {
		t.Fatal("ended session still tracked")
	}
}

func TestCallInviteConflicts(t *testing.T) {
	table := NewCallTable(0, nil)
	if _, err := table.Invite("conv-1", "u1", "u2"); err != nil {
		t.Fatalf("invite: %v", err)
	}

	if _, err := table.Invite("conv-1", "u1", "u2"); !IsCode(err, ErrorCodeConflict) {
		t.Fatalf("duplicate invite: expected conflict, got %v", err)
	}

	table.Accept("conv-1")
	if _, err := table.Invite("conv-1", "u1", "u2"); !IsCode(err, ErrorCodeConflict) {
		t.Fatalf("invite on active call: expected conflict, got %v", err)
	}

	// Recipient busy elsewhere.
	if _, err := table.Invite("conv-2", "u3", "u2"); !IsCode(err, ErrorCodeConflict) {
		t.Fatalf("invite to busy recipient: expected conflict, got %v", err)
	}

	table.End("conv-1")
	if _, err := table.Invite("conv-1", "u1", "u2"); err != nil {
		t.Fatalf("fresh invite after end: %v", err)
	}
}

func TestCallAcceptRequiresRinging(t *testing.T) {
	table := NewCallTable(0, nil)

	if _, err := table.Accept("conv-1"); !IsCode(err, ErrorCodeNotFound) {
		t.Fatalf("accept without session: expected not_found, got %v", err)
	}

	table.Invite("conv-1", "u1", "u2")
	table.Accept("conv-1")
	if _, err := table.Accept("conv-1"); !IsCode(err, ErrorCodeConflict) {
		t.Fatalf("second accept: expected conflict, got %v", err)
	}
}

func TestCallEndWithoutSessionIsNoop(t *testing.T) {
	table := NewCallTable(0, nil)
	if ended := table.End("conv-404"); ended != nil {
		t.Fatalf("end of unknown conversation returned %+v", ended)
	}
}

func TestCallRingTimeout(t *testing.T) {
	timedOut := make(chan CallSession, 1)
	table := NewCallTable(20*time.Millisecond, func(s CallSession) {
		timedOut <- s
	})

	if _, err := table.Invite("conv-1", "u1", "u2"); err != nil {
		t.Fatalf("invite: %v", err)
	}

	select {
	case s := <-timedOut:
		if s.ConversationID != "conv-1" || s.Initiator != "u1" || s.State != CallEnded {
			t.Fatalf("timeout session = %+v", s)
		}
	case <-time.After(time.Second):
		t.Fatal("ring timeout never fired")
	}

	if _, live := table.Get("conv-1"); live {
		t.Fatal("timed-out session still tracked")
	}
}

func TestCallAcceptStopsTimeout(t *testing.T) {
	timedOut := make(chan CallSession, 1)
	table := NewCallTable(20*time.Millisecond, func(s CallSession) {
		timedOut <- s
	})

	table.Invite("conv-1", "u1", "u2")
	if _, err := table.Accept("conv-1"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	select {
	case s := <-timedOut:
		t.Fatalf("timeout fired after accept: %+v", s)
	case <-time.After(80 * time.Millisecond):
	}
}
