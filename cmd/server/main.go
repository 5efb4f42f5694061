package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"librarium/internal/app"
	"librarium/internal/config"
	"librarium/internal/server"
	"librarium/internal/util"
	"librarium/pkg/auth"
	"librarium/pkg/queue"
	"librarium/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session ttl: %v", err)
	}
	activationTTL, err := config.ParseActivationTTL(cfg.ActivationTTL)
	if err != nil {
		log.Fatalf("failed to parse activation ttl: %v", err)
	}
	tokens, err := auth.NewTokenManager(cfg.JWTSecret, sessionTTL, activationTTL)
	if err != nil {
		log.Fatalf("failed to init token manager: %v", err)
	}

	st, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}

	notifier, err := newNotifier(cfg)
	if err != nil {
		log.Fatalf("failed to init notification queue: %v", err)
	}

	appCore, err := app.New(app.Config{
		Store:             st,
		Notifier:          notifier,
		Tokens:            tokens,
		PasswordMinLength: cfg.PasswordMinLength,
		LoanPeriod:        cfg.LoanPeriod(),
		ActivationBaseURL: cfg.ActivationBaseURL,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:                        appCore,
		RedisAddr:                  cfg.RedisAddr,
		RedisPassword:              cfg.RedisPassword,
		LoginRateLimitPerMinute:    cfg.LoginRateLimitPerMinute,
		RegisterRateLimitPerMinute: cfg.RegisterRateLimitPerMinute,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("library server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

func newNotifier(cfg config.FileConfig) (app.Notifier, error) {
	if cfg.QueueBroker == "rabbitmq" {
		return queue.NewRabbitJobQueue(queue.RabbitQueueConfig{
			URL:   cfg.RabbitURL,
			Queue: cfg.QueueStream,
		})
	}
	return queue.NewRedisJobQueue(queue.RedisQueueConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		Stream:   cfg.QueueStream,
		Group:    cfg.QueueGroup,
	})
}
