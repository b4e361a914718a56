package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"livechat/backend/internal/api/handler"
	"livechat/backend/internal/auth"
	"livechat/backend/internal/blob"
	"livechat/backend/internal/chat"
	"livechat/backend/internal/chathub"
	"livechat/backend/internal/config"
	"livechat/backend/internal/localization"
	"livechat/backend/internal/storage"
	"livechat/backend/internal/telegram"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newLogger(cfg *config.Config) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsDevelopment() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	return logger
}

// setupRedis returns nil when redis is not configured or unreachable and the
// postgres feed is in use.
func setupRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		if cfg.RealtimeSource == config.SourceRedis {
			logger.Fatal("redis is required by REALTIME_SOURCE=redis", zap.Error(err))
		}
		logger.Warn("redis unavailable; continuing without it", zap.Error(err))
		rdb.Close()
		return nil
	}
	return rdb
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := newLogger(cfg)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Storage
	db, err := storage.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connect", zap.Error(err))
	}
	store := storage.NewStorageService(db, logger)
	if err := store.Migrate(ctx); err != nil {
		logger.Fatal("database bootstrap", zap.Error(err))
	}

	rdb := setupRedis(ctx, cfg, logger)
	if rdb != nil {
		defer rdb.Close()
	}

	blobs, err := blob.NewLocalStore(cfg.UploadDir, cfg.UploadBucket, cfg.PublicBaseURL)
	if err != nil {
		logger.Fatal("blob store", zap.Error(err))
	}

	// 2. Change feed, hub and chat service
	var (
		feed      chathub.Feed
		publisher chat.Publisher = chat.NopPublisher{}
	)
	switch cfg.RealtimeSource {
	case config.SourceRedis:
		redisFeed := chathub.NewRedisFeed(rdb, logger)
		feed, publisher = redisFeed, redisFeed
	default:
		feed = chathub.NewPostgresFeed(cfg.DatabaseURL, logger)
	}

	hub := chathub.NewManagerService(feed, logger)
	chatSvc := chat.NewService(store, blobs, publisher, chat.Options{
		MaxContentLen:  cfg.MaxMessageLen,
		MaxUploadBytes: cfg.MaxUploadBytes(),
	}, logger)

	hubErr := make(chan error, 1)
	go func() { hubErr <- hub.Run(ctx) }()

	// 3. Telegram notifications
	if cfg.TelegramEnabled() {
		if err := startTelegram(ctx, cfg, hub, chatSvc, rdb, logger); err != nil {
			logger.Error("telegram notifier disabled", zap.Error(err))
		}
	}

	// 4. HTTP
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	h := handler.NewHandler(hub, chatSvc,
		auth.NewTokenService(cfg.JWTSecret, cfg.SessionTTL),
		auth.NewAdminKey(cfg.AdminKeyHash),
		cfg.MaxUploadBytes(), logger)
	r := handler.NewRouter(h, handler.RouterOptions{
		CORSOrigins: cfg.CORSOrigins,
		FilesDir:    blobs.Root(),
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-hubErr:
		logger.Error("chat hub stopped", zap.Error(err))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func startTelegram(ctx context.Context, cfg *config.Config, hub *chathub.ManagerService, chatSvc *chat.Service, rdb *redis.Client, logger *zap.Logger) error {
	bot, err := telegram.NewBotAPI(cfg.TelegramBotToken, logger)
	if err != nil {
		return err
	}
	loc, err := localization.Default()
	if err != nil {
		return err
	}

	replies := telegram.NewRedisReplyIndex(rdb, 7*24*time.Hour)
	newNotifier := func() *telegram.Notifier {
		return telegram.NewNotifier(bot, cfg.TelegramAdminChatID, cfg.AdminLang, loc, replies, chatSvc, logger)
	}
	notifier := newNotifier()
	if !hub.Register(notifier) {
		return errors.New("chat hub is not running")
	}
	notifier.Run()
	go notifier.Poll(ctx, telegram.Updates(bot))
	go keepNotifier(ctx, hub, notifier, newNotifier, logger)
	return nil
}

// keepNotifier registers a fresh notifier whenever the hub detaches the
// current one while the server is still running.
func keepNotifier(ctx context.Context, hub *chathub.ManagerService, n *telegram.Notifier, next func() *telegram.Notifier, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.Done():
		}
		if ctx.Err() != nil {
			return
		}
		logger.Warn("telegram notifier detached, registering again")
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
		n = next()
		if !hub.Register(n) {
			return
		}
		n.Run()
	}
}
