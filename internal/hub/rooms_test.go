package hub

import (
	"fmt"
	"sync"
	"testing"
)

func TestRoomJoinLeaveParity(t *testing.T) {
	cases := []struct {
		name       string
		ops        []string // "j" or "l"
		subscribed bool
	}{
		{"single join", []string{"j"}, true},
		{"join join", []string{"j", "j"}, true},
		{"join leave", []string{"j", "l"}, false},
		{"leave only", []string{"l"}, false},
		{"join leave join", []string{"j", "l", "j"}, true},
		{"join join leave", []string{"j", "j", "l"}, false},
		{"leave join leave leave", []string{"l", "j", "l", "l"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			table := NewRoomTable()
			for _, op := range tc.ops {
				if op == "j" {
					table.Join("c1", "room-1")
				} else {
					table.Leave("c1", "room-1")
				}
			}
			subs := table.SubscribersOf("room-1")
			got := len(subs) == 1
			if got != tc.subscribed {
				t.Errorf("after %v subscribed=%v, want %v", tc.ops, got, tc.subscribed)
			}
		})
	}
}

func TestRoomGarbageCollection(t *testing.T) {
	table := NewRoomTable()
	table.Join("c1", "room-1")
	table.Join("c2", "room-1")

	table.Leave("c1", "room-1")
	if table.RoomCount() != 1 {
		t.Fatalf("room collected while a subscriber remains")
	}
	table.Leave("c2", "room-1")
	if table.RoomCount() != 0 {
		t.Fatalf("empty room not collected")
	}
}

func TestRoomDropConnection(t *testing.T) {
	table := NewRoomTable()
	table.Join("c1", "room-1")
	table.Join("c1", "room-2")
	table.Join("c2", "room-2")

	table.DropConnection("c1")

	if subs := table.SubscribersOf("room-1"); len(subs) != 0 {
		t.Errorf("room-1 still has %v", subs)
	}
	if subs := table.SubscribersOf("room-2"); len(subs) != 1 || subs[0] != "c2" {
		t.Errorf("room-2 has %v, want [c2]", subs)
	}
	if rooms := table.RoomsOf("c1"); len(rooms) != 0 {
		t.Errorf("reverse index still lists %v for c1", rooms)
	}
}

func TestRoomConcurrentJoinLeave(t *testing.T) {
	table := NewRoomTable()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			connID := fmt.Sprintf("c%d", worker)
			for j := 0; j < 200; j++ {
				roomID := fmt.Sprintf("room-%d", j%7)
				table.Join(connID, roomID)
				if j%3 == 0 {
					table.Leave(connID, roomID)
				}
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		table.DropConnection(fmt.Sprintf("c%d", i))
	}
	if table.RoomCount() != 0 {
		t.Fatalf("%d rooms left after all connections dropped", table.RoomCount())
	}
}
