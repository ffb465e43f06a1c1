// Package main generates and emails the certificates of one event from the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eventportal/backend/config"
	"github.com/eventportal/backend/internal/certificates"
	"github.com/eventportal/backend/internal/events"
	"github.com/eventportal/backend/internal/notifications"
	"github.com/eventportal/backend/internal/registrations"
	"github.com/eventportal/backend/pkg/database"
	"github.com/eventportal/backend/pkg/redis"
	"github.com/eventportal/backend/pkg/storage"
)

func main() {
	var opts registrations.BatchOptions
	flag.BoolVar(&opts.SkipGeneration, "skip-generation", false, "do not render certificates, only email existing ones")
	flag.BoolVar(&opts.SkipEmail, "skip-email", false, "render certificates without emailing them")
	flag.BoolVar(&opts.IgnoreConfirmed, "ignore-confirmed", false, "include registrations that were never confirmed")
	flag.BoolVar(&opts.IgnorePresent, "ignore-present", false, "include attendees not marked present")
	flag.BoolVar(&opts.IgnoreSent, "ignore-sent", false, "include registrations whose certificate was already emailed")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <event_slug>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	slug := flag.Arg(0)

	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{MaxConns: 4}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		Bucket:               cfg.AWS.Bucket,
		Endpoint:             cfg.AWS.Endpoint,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	event, err := events.NewRepository(pool).GetEventBySlug(ctx, slug)
	if err != nil {
		logger.Fatal("event", zap.String("slug", slug), zap.Error(err))
	}

	var mailer notifications.Mailer = notifications.NewLogMailer(logger)
	if cfg.Email.SMTPHost != "" {
		mailer = notifications.NewSMTPMailer(notifications.SMTPConfig{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUser,
			Password: cfg.Email.SMTPPass,
			From:     cfg.Email.FromAddress,
			FromName: cfg.Email.FromName,
		}, logger)
	}

	issuer := registrations.NewIssuer(registrations.IssuerDeps{
		Store:    registrations.NewRepository(pool),
		Renderer: certificates.NewRenderer(certificates.NewHTTPConverter(cfg.Certificates.ConverterURL, cfg.Certificates.ConverterTimeout, logger), cfg.Certificates.PageWidth, cfg.Certificates.PageHeight),
		Blob:     s3Client,
		Locker:   redis.NewLocker(rdb.Client, "eventportal:lock:", logger),
		Mailer:   mailer,
		Composer: notifications.NewComposer(cfg.Server.SiteURL, cfg.Server.Location()),
		LockTTL:  cfg.Certificates.LockTTL,
		Logger:   logger,
	})

	fmt.Printf("Event: %s\n", event.Title)
	groups, err := issuer.RunBatch(ctx, event.ID, opts, func(g registrations.BatchGroup) {
		printGroup(os.Stdout, g, opts)
	})
	if err != nil {
		logger.Fatal("batch", zap.Error(err))
	}
	failed := printSummary(os.Stdout, groups)
	if failed > 0 {
		os.Exit(1)
	}
}

// printGroup writes one line per registration of g.
func printGroup(w io.Writer, g registrations.BatchGroup, opts registrations.BatchOptions) {
	fmt.Fprintf(w, "\n%s (%d)\n", g.TutorialTitle, len(g.Items))
	for _, it := range g.Items {
		fmt.Fprintf(w, "  %s", it.AttendeeName)
		if !opts.SkipGeneration {
			fmt.Fprintf(w, "  generate: %s", outcome(it.Generated, it.GenerateErr))
		}
		if !opts.SkipEmail {
			fmt.Fprintf(w, "  email: %s", outcome(it.Emailed, it.EmailErr))
		}
		fmt.Fprintln(w)
	}
}

func outcome(ok bool, err error) string {
	if err != nil {
		return "FAILED (" + err.Error() + ")"
	}
	if ok {
		return "ok"
	}
	return "skipped"
}

// printSummary writes totals and returns the number of failed registrations.
func printSummary(w io.Writer, groups []registrations.BatchGroup) int {
	total, failed := 0, 0
	for _, g := range groups {
		for _, it := range g.Items {
			total++
			if it.GenerateErr != nil || it.EmailErr != nil {
				failed++
			}
		}
	}
	fmt.Fprintf(w, "\n%d registrations processed, %d failed\n", total, failed)
	return failed
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	logger, _ := config.Build()
	return logger
}
