package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"estatesync/internal/adapter/apiclient"
	"estatesync/internal/auth"
	"estatesync/internal/cache"
	"estatesync/internal/domain/entity"
	"estatesync/internal/infrastructure/realtime"
	"estatesync/internal/infrastructure/storage"
	"estatesync/internal/provider"
	"estatesync/pkg/config"
	"estatesync/pkg/logger"
)

// watch is a terminal client that exercises the sync layer end to end: it
// adopts cached snapshots, refreshes from the API, and prints realtime
// events until interrupted.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	var store storage.Store
	if cfg.RedisAddr != "" {
		log.Printf("Using Redis cache backend at %s", cfg.RedisAddr)
		store = storage.NewRedis(cfg.RedisAddr)
	} else {
		fileStore, err := storage.NewFile(cfg.CacheDir)
		if err != nil {
			log.Fatalf("Failed to open cache dir: %v", err)
		}
		store = fileStore
	}

	api := apiclient.NewClient(cfg.APIBaseURL, nil)
	listings := cache.NewListings(store, cfg.ListingsTTL)
	rooms := cache.NewRooms(store, cfg.ChatRoomsTTL)
	markers := cache.NewSentMarkers(store)
	p := provider.New(api, listings, rooms, markers)

	authStore := auth.NewStore(store)
	session := authStore.Load(ctx)
	if session == nil && cfg.AuthToken != "" {
		session = &entity.AuthSession{
			Token: cfg.AuthToken,
			User:  entity.User{ID: auth.TokenSubject(cfg.AuthToken)},
		}
		if err := authStore.Save(ctx, *session); err != nil {
			logger.Warn("persist session: %v", err)
		}
	}

	var channel *realtime.Channel
	if session != nil {
		if auth.IsExpired(session.Token) {
			logger.Warn("stored token is expired, running anonymously")
		} else {
			api.SetToken(session.Token)
			p.SetUser(session.User.ID)

			handlers := p.Handlers()
			handlers.OnNotification = func(n realtime.Notification) {
				logger.Info("notification from %s: %s", n.Title, n.Body)
			}
			handlers.OnTyping = func(roomID string, t realtime.TypingPayload) {
				logger.Info("%s is typing in room %s", t.UserName, roomID)
			}
			channel = realtime.NewChannel(cfg.WSBaseURL, handlers)
			channel.SetUser(session.User.ID)
			p.SetSender(channel)
		}
	}

	p.Start(ctx)
	if channel != nil {
		channel.Connect()
	}

	logger.Info("watching: %d listings, %d featured, %d chat rooms cached",
		len(p.Listings()), len(p.Featured()), len(p.Rooms()))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	if channel != nil {
		channel.Disconnect()
	}
	logger.Info("shutting down")
}
