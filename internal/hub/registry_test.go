package hub

import "testing"

func TestRegistryAuthenticateBindsOnce(t *testing.T) {
	r := NewRegistry()
	r.Register(newFakeSender("c1"))

	first, err := r.Authenticate("c1", "u1")
	if err != nil || !first {
		t.Fatalf("first authenticate: first=%v err=%v", first, err)
	}

	// Same user again is a no-op.
	first, err = r.Authenticate("c1", "u1")
	if err != nil || first {
		t.Fatalf("repeat authenticate: first=%v err=%v", first, err)
	}

	// A different user is rejected, not silently overwritten.
	if _, err := r.Authenticate("c1", "u2"); !IsCode(err, ErrorCodeAuth) {
		t.Fatalf("rebind: expected auth error, got %v", err)
	}
	if conn, _ := r.Get("c1"); conn.UserID != "u1" {
		t.Fatalf("rebind overwrote user: %s", conn.UserID)
	}
}

func TestRegistryAuthenticateUnknownConnection(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Authenticate("ghost", "u1"); !IsCode(err, ErrorCodeNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestRegistryFirstAndLastConnection(t *testing.T) {
	r := NewRegistry()
	r.Register(newFakeSender("c1"))
	r.Register(newFakeSender("c2"))

	if first, _ := r.Authenticate("c1", "u1"); !first {
		t.Fatal("c1 should be u1's first connection")
	}
	if first, _ := r.Authenticate("c2", "u1"); first {
		t.Fatal("c2 should not be u1's first connection")
	}

	if _, last := r.Unregister("c1"); last {
		t.Fatal("unregistering c1 should not be the last")
	}
	userID, last := r.Unregister("c2")
	if userID != "u1" || !last {
		t.Fatalf("unregistering c2: userID=%s last=%v", userID, last)
	}

	// Idempotent.
	if userID, last := r.Unregister("c2"); userID != "" || last {
		t.Fatalf("repeated unregister: userID=%s last=%v", userID, last)
	}
}

func TestRegistryConnectionsOf(t *testing.T) {
	r := NewRegistry()
	r.Register(newFakeSender("c1"))
	r.Register(newFakeSender("c2"))
	r.Register(newFakeSender("c3"))
	r.Authenticate("c1", "u1")
	r.Authenticate("c2", "u1")
	r.Authenticate("c3", "u2")

	if got := len(r.ConnectionsOf("u1")); got != 2 {
		t.Errorf("u1 has %d connections, want 2", got)
	}
	if got := len(r.ConnectionsOf("u2")); got != 1 {
		t.Errorf("u2 has %d connections, want 1", got)
	}
	if got := len(r.ConnectionsOf("u3")); got != 0 {
		t.Errorf("u3 has %d connections, want 0", got)
	}
	if got := len(r.OnlineUsers()); got != 2 {
		t.Errorf("%d users online, want 2", got)
	}
}
