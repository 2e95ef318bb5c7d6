package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"match_sync_service/internal/api/handlers"
	"match_sync_service/internal/api/router"
	"match_sync_service/internal/sync/app"
	"match_sync_service/internal/sync/repository"
	"match_sync_service/internal/sync/transport"
	"match_sync_service/pkg/config"
	"match_sync_service/pkg/logger"
	"match_sync_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.SyncService, config.EnvConfig.SyncServiceLogPath)
	cfg := config.LoadConfig[config.Sync](config.EnvConfig.SyncService, config.EnvConfig.SyncServiceYAMLPath)

	// 1. session handover from the app shell, auth itself is external
	accessToken := os.Getenv("SYNC_ACCESS_TOKEN")
	refreshToken := os.Getenv("SYNC_REFRESH_TOKEN")
	if accessToken == "" {
		logger.Log.Fatal("SYNC_ACCESS_TOKEN not set")
	}
	session := token.NewSession(accessToken, refreshToken,
		repository.NewAuthRefresher(cfg.API.BaseURL, cfg.API.Timeout))

	userID, err := session.UserID()
	if err != nil {
		logger.Log.Fatal("cannot read user id from access token", zap.Error(err))
	}

	// 2. engine dependencies, all explicitly constructed
	api := repository.NewRESTMatchAPI(cfg.API.BaseURL, cfg.API.Timeout, session)
	store := app.NewConversationStore(app.StoreOptions{
		TypingTTL:   cfg.Store.TypingTTL,
		DedupWindow: cfg.Store.DedupWindow,
	})
	registry := transport.NewSubscriptionRegistry()
	manager := transport.NewManager(cfg.Realtime.URL, transport.NewWebsocketDialer(),
		registry, cfg.Realtime.MaxAttempts, cfg.Realtime.BaseDelay)
	engine := app.NewSyncEngine(manager, store, api)
	unread := app.NewUnreadAggregator(store)
	tracker := app.NewOptimisticUseCase(store, api, cfg.Swipe.Rollback)

	// 3. start the sync session
	if err := engine.Start(context.Background(), userID); err != nil {
		logger.Log.Fatal("sync session start failed", zap.Error(err))
	}
	defer engine.Stop()

	// 4. fiber bridge for the UI process
	r := fiber.New()
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.SyncServiceLogPath),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	router.RegisterRoutes(r, handlers.NewSyncHandler(engine, store, unread, tracker))

	port := cfg.Port
	if port == "" {
		port = config.EnvConfig.SyncServicePort
	}
	port = ":" + port
	log.Printf("Sync Service listening on %s", port)
	if err := r.Listen(port); err != nil {
		log.Fatalf("Failed to start Fiber: %v", err)
	}
}
