package endpoints

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chat-hub-backend/internal/api/middleware"
	"chat-hub-backend/internal/hub"
)

type stubVerifier struct{ userID string }

func (v stubVerifier) Verify(string) (string, error) {
	return v.userID, nil
}

func newUnreadHandler(t *testing.T, h *hub.Hub) http.HandlerFunc {
	t.Helper()
	e := NewHubEndpoints(h, HubPaths{
		UnreadPrefix:       "/api/hub/v1/unread/",
		UnreadViewedPath:   "/api/hub/v1/unread/updateLastViewed",
		ParticipantsPrefix: "/api/hub/v1/voice/participants/",
	})
	return middleware.RequireAuth(stubVerifier{userID: "u1"})(func(w http.ResponseWriter, r *http.Request) {
		if err := e.Unread(w, r); err != nil {
			t.Fatalf("unread handler: %v", err)
		}
	})
}

func getJSON(t *testing.T, handler http.HandlerFunc, path string, out interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET %s: status = %d", path, rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("GET %s: decode response: %v", path, err)
	}
}

func TestUnreadListsAllWatermarks(t *testing.T) {
	h := hub.New(hub.Config{}, nil, nil, nil, nil)
	h.RecordView("u1", "conv-1", time.Unix(500, 0))
	h.RecordView("u1", "conv-2", time.Unix(900, 0))
	h.RecordView("u2", "conv-1", time.Unix(700, 0))

	// The bare route without a trailing slash is the list-everything call.
	var got []watermarkResponse
	getJSON(t, newUnreadHandler(t, h), "/api/hub/v1/unread", &got)

	if len(got) != 2 {
		t.Fatalf("listed %d watermarks, want 2: %+v", len(got), got)
	}
	byConv := make(map[string]int64, len(got))
	for _, wm := range got {
		byConv[wm.ConversationID] = wm.LastViewed
	}
	if byConv["conv-1"] != 500 || byConv["conv-2"] != 900 {
		t.Fatalf("unexpected watermarks: %+v", got)
	}
}

func TestUnreadSingleConversation(t *testing.T) {
	h := hub.New(hub.Config{}, nil, nil, nil, nil)
	h.RecordView("u1", "conv-1", time.Unix(500, 0))

	var got watermarkResponse
	getJSON(t, newUnreadHandler(t, h), "/api/hub/v1/unread/conv-1", &got)

	if got.ConversationID != "conv-1" || got.LastViewed != 500 {
		t.Fatalf("watermark = %+v", got)
	}
}

func TestUnreadMissingWatermarkIsEpoch(t *testing.T) {
	h := hub.New(hub.Config{}, nil, nil, nil, nil)

	var got watermarkResponse
	getJSON(t, newUnreadHandler(t, h), "/api/hub/v1/unread/conv-x", &got)

	if got.LastViewed != 0 {
		t.Fatalf("missing watermark lastViewed = %d, want 0", got.LastViewed)
	}
}
