// Package main runs the background email worker: the outbox relay and the delivery loop.
package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/eventportal/backend/config"
	"github.com/eventportal/backend/internal/emaillogs"
	"github.com/eventportal/backend/internal/notifications"
	"github.com/eventportal/backend/internal/worker"
	"github.com/eventportal/backend/pkg/database"
	"github.com/eventportal/backend/pkg/queue"
	"github.com/eventportal/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var mailer notifications.Mailer
	if cfg.Email.SMTPHost == "" {
		logger.Warn("smtp not configured, emails are logged only")
		mailer = notifications.NewLogMailer(logger)
	} else {
		mailer = notifications.NewSMTPMailer(notifications.SMTPConfig{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUser,
			Password: cfg.Email.SMTPPass,
			From:     cfg.Email.FromAddress,
			FromName: cfg.Email.FromName,
		}, logger)
	}

	emailLogsRepo := emaillogs.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	relay := worker.NewOutboxRelay(emailLogsRepo, jobQueue, cfg.Worker.PollInterval, cfg.Worker.BatchSize, cfg.Worker.VisibilityTimeout, logger)
	processor := worker.NewEmailProcessor(emailLogsRepo, jobQueue, mailer, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return relay.Run(gctx) })
	g.Go(func() error { return processor.Run(gctx) })
	logger.Info("worker started")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker", zap.Error(err))
	}
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
