package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"librarium/internal/config"
	"librarium/internal/notifier"
	"librarium/internal/util"
	"librarium/pkg/mailer"
	"librarium/pkg/queue"
	"librarium/pkg/store"
)

// jobQueue is both sides of the broker: the worker drains it and the
// overdue sweep feeds it.
type jobQueue interface {
	notifier.Consumer
	notifier.Enqueuer
}

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	util.InitLogger(cfg.LogLevel)

	st, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}

	q, err := newQueue(cfg)
	if err != nil {
		log.Fatalf("failed to init notification queue: %v", err)
	}

	sender, err := mailer.New(mailer.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
	if err != nil {
		log.Fatalf("failed to init mailer: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := notifier.NewSweeper(st, q)
	schedule := cron.New()
	if _, err := schedule.AddFunc(cfg.SweepSchedule, func() {
		if _, err := sweeper.Sweep(ctx, time.Now()); err != nil {
			slog.Error("overdue sweep failed", "err", err)
		}
	}); err != nil {
		log.Fatalf("failed to schedule overdue sweep: %v", err)
	}
	schedule.Start()
	defer schedule.Stop()

	worker := notifier.NewWorker(q, sender, cfg.QueueConcurrency)
	slog.Info("notifier running", "broker", cfg.QueueBroker, "sweep", cfg.SweepSchedule)
	worker.Run(ctx)
	slog.Info("notifier stopped")
}

func newQueue(cfg config.FileConfig) (jobQueue, error) {
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
