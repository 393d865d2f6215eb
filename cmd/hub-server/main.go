package main

import (
	"context"
	"log"

	"chat-hub-backend/internal/api"
	"chat-hub-backend/internal/api/router"
	"chat-hub-backend/internal/database"
	"chat-hub-backend/internal/directory"
	"chat-hub-backend/internal/env"
	"chat-hub-backend/internal/hub"
	"chat-hub-backend/internal/identity"
	"chat-hub-backend/internal/queue"
	"chat-hub-backend/internal/websocket"

	"github.com/go-redis/redis/v8"
)

func main() {
	queueManager := queue.NewRequestQueueManager(10, 10)
	db, err := database.NewDatabase()
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}

	verifier := identity.NewJWTVerifier(env.MustGet(env.UserSecretKey))
	roomDirectory := directory.NewDynamoDirectory(db)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     env.Get(env.ChatRedisURL),
		Password: env.Get(env.ChatRedisPass),
		DB:       0,
	})
	relay := websocket.NewRelay(redisClient)

	hubCfg := hub.DefaultConfig()
	hubCfg.CallRingTimeout = env.GetDuration(env.CallRingTimeout, hubCfg.CallRingTimeout)
	hubCfg.PresenceDebounce = env.GetDuration(env.PresenceDebounce, hubCfg.PresenceDebounce)

	h := hub.New(hubCfg, verifier, roomDirectory, queueManager, relay)
	websocket.RegisterRoomGauge(h)

	wsCfg := websocket.DefaultConfig()
	wsCfg.PongWait = env.GetDuration(env.HeartbeatTimeout, wsCfg.PongWait)
	wsHandler := websocket.NewHandler(h, wsCfg)

	go relay.Run(context.Background(), h.Router())

	server := api.NewAPIServer(
		":83",
		queueManager,
		h,
		wsHandler,
		router.UtilsRoutes("/api/hub/v1"),
		router.HubRoutes("/api/hub/v1", verifier),
	)

	server.Run()
}
