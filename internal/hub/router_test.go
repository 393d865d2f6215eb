package hub

import "testing"

type fakeRemote struct {
	rooms map[string]int
	users map[string]int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		rooms: make(map[string]int),
		users: make(map[string]int),
	}
}

func (f *fakeRemote) PublishRemote(roomID string, ev Event) error {
	f.rooms[roomID]++
	return nil
}

func (f *fakeRemote) NotifyRemote(userID string, ev Event) error {
	f.users[userID]++
	return nil
}

func remoteTestHub(remote RemotePublisher) *Hub {
	verifier := &fakeVerifier{users: map[string]string{
		"token-u1": "u1",
		"token-u2": "u2",
	}}
	return New(testConfig(), verifier, nil, nil, remote)
}

func TestNotifyUserMirroredToPeerNodes(t *testing.T) {
	remote := newFakeRemote()
	h := remoteTestHub(remote)

	connect(t, h, "conn-a", "token-u1")
	target := connect(t, h, "conn-b", "token-u2")

	if err := h.Notify("conn-a", NotificationPayload{RecipientID: "u2", Content: "ping"}); err != nil {
		t.Fatalf("notify: %v", err)
	}

	// Local devices and remote peers both see the targeted event, so a
	// recipient connected to another node is not skipped.
	if got := target.received(EventNotification); len(got) != 1 {
		t.Fatalf("local device received %d notifications, want 1", len(got))
	}
	if remote.users["u2"] != 1 {
		t.Fatalf("remote mirror saw %d notifies for u2, want 1", remote.users["u2"])
	}
}

func TestCallInviteMirroredToPeerNodes(t *testing.T) {
	remote := newFakeRemote()
	h := remoteTestHub(remote)
	connect(t, h, "conn-a", "token-u1")

	if err := h.CallInvite("conn-a", "conv-1", "u2", ""); err != nil {
		t.Fatalf("invite: %v", err)
	}
	if remote.users["u2"] != 1 {
		t.Fatalf("remote mirror saw %d incoming-call cues for u2, want 1", remote.users["u2"])
	}
}

func TestRoomPublishMirroredToPeerNodes(t *testing.T) {
	remote := newFakeRemote()
	h := remoteTestHub(remote)

	connect(t, h, "conn-a", "token-u1")
	h.JoinRooms("conn-a", []string{"conv-1"})

	if err := h.PublishMessage("conn-a", MessagePayload{RoomID: "conv-1", Content: "hi"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if remote.rooms["conv-1"] != 1 {
		t.Fatalf("remote mirror saw %d publishes for conv-1, want 1", remote.rooms["conv-1"])
	}
}

func TestLocalDeliveryNotMirroredBack(t *testing.T) {
	remote := newFakeRemote()
	h := remoteTestHub(remote)
	target := connect(t, h, "conn-a", "token-u1")
	h.JoinRooms("conn-a", []string{"room-1"})

	// Events that arrived from a peer are applied locally without echoing
	// back into the relay.
	h.Router().NotifyLocal("u1", Event{Kind: EventRefresh})
	h.Router().PublishLocal("room-1", Event{Kind: EventRefresh})

	if len(remote.users) != 0 || len(remote.rooms) != 0 {
		t.Fatalf("local-only delivery reached the remote mirror: users=%v rooms=%v", remote.users, remote.rooms)
	}
	if got := target.received(EventRefresh); len(got) != 2 {
		t.Fatalf("target received %d refresh events, want 2", len(got))
	}
}
