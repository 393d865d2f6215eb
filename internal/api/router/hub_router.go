package router

import (
	"net/http"
	"strings"

	"chat-hub-backend/internal/api"
	"chat-hub-backend/internal/api/endpoints"
	"chat-hub-backend/internal/api/middleware"
)

// HubRoutes wires the websocket entrypoint and the collaborator REST surface.
// The unread routes require a verified bearer token; the voice and refresh
// routes are called service-to-service by the external store.
func HubRoutes(prefix string, verifier middleware.TokenVerifier) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		base := strings.TrimRight(prefix, "/")
		paths := endpoints.HubPaths{
			UnreadPrefix:       base + "/unread/",
			UnreadViewedPath:   base + "/unread/updateLastViewed",
			ParticipantsPrefix: base + "/voice/participants/",
		}
		hubEndpoints := endpoints.NewHubEndpoints(s.Hub(), paths)

		requireAuth := middleware.RequireAuth(verifier)

		mux.HandleFunc(base+"/socket", func(w http.ResponseWriter, r *http.Request) {
			s.WSHandler().Serve(w, r)
		})

		mux.HandleFunc(base+"/unread/updateLastViewed", s.MakeHTTPHandleFunc(hubEndpoints.UpdateLastViewed, requireAuth))
		mux.HandleFunc(base+"/unread/", s.MakeHTTPHandleFunc(hubEndpoints.Unread, requireAuth))
		mux.HandleFunc(base+"/unread", s.MakeHTTPHandleFunc(hubEndpoints.Unread, requireAuth))

		mux.HandleFunc(base+"/voice/participants/", s.MakeHTTPHandleFunc(hubEndpoints.VoiceParticipants))
		mux.HandleFunc(base+"/voice/room-empty", s.MakeHTTPHandleFunc(hubEndpoints.VoiceRoomEmpty))
		mux.HandleFunc(base+"/voice/user-in-room", s.MakeHTTPHandleFunc(hubEndpoints.VoiceUserInRoom))

		mux.HandleFunc(base+"/online", s.MakeHTTPHandleFunc(hubEndpoints.OnlineUsers))
		mux.HandleFunc(base+"/refresh", s.MakeHTTPHandleFunc(hubEndpoints.Refresh))
	}
}
