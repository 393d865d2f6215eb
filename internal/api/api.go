package api

import (
	"fmt"
	"net/http"

	"chat-hub-backend/internal/hub"
	"chat-hub-backend/internal/queue"
	"chat-hub-backend/internal/websocket"

	"github.com/prometheus/client_golang/prometheus"
)

type RouteRegistrar func(mux *http.ServeMux, s *APIServer)

type APIServer struct {
	listenAddr          string
	requestQueueManager *queue.RequestQueueManager
	hub                 *hub.Hub
	wsHandler           *websocket.Handler
	routeRegistrars     []RouteRegistrar
	metrics             *metrics
}

func NewAPIServer(listenAddr string, rqm *queue.RequestQueueManager, h *hub.Hub, wsHandler *websocket.Handler, registrars ...RouteRegistrar) *APIServer {

	return &APIServer{
		listenAddr:          listenAddr,
		requestQueueManager: rqm,
		hub:                 h,
		wsHandler:           wsHandler,
		routeRegistrars:     registrars,
		metrics:             newMetrics(prometheus.DefaultRegisterer, listenAddr, rqm),
	}
}

func (s *APIServer) Run() {
	mux := http.NewServeMux()

	for _, reg := range s.routeRegistrars {
		reg(mux, s)
	}

	mux.Handle("/metrics", s.metrics.metricsHandler())

	fmt.Printf("Server listening on http://localhost%s\n", s.listenAddr)

	if err := http.ListenAndServe(s.listenAddr, s.metrics.instrument(mux)); err != nil {
		fmt.Printf("server stopped: %v\n", err)
	}
}

func (s *APIServer) Hub() *hub.Hub {
	return s.hub
}

func (s *APIServer) WSHandler() *websocket.Handler {
	return s.wsHandler
}
