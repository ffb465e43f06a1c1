// Package main runs the event portal HTTP server with WebSocket seat updates and graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/eventportal/backend/config"
	"github.com/eventportal/backend/internal/auth"
	"github.com/eventportal/backend/internal/certificates"
	"github.com/eventportal/backend/internal/emaillogs"
	"github.com/eventportal/backend/internal/events"
	"github.com/eventportal/backend/internal/middleware"
	"github.com/eventportal/backend/internal/models"
	"github.com/eventportal/backend/internal/notifications"
	"github.com/eventportal/backend/internal/realtime"
	"github.com/eventportal/backend/internal/registrations"
	"github.com/eventportal/backend/internal/worker"
	"github.com/eventportal/backend/pkg/database"
	"github.com/eventportal/backend/pkg/queue"
	"github.com/eventportal/backend/pkg/redis"
	"github.com/eventportal/backend/pkg/response"
	"github.com/eventportal/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var blob storage.Blob
	if cfg.AWS.Enabled() {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			Bucket:               cfg.AWS.Bucket,
			Endpoint:             cfg.AWS.Endpoint,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			blob = s3Client
		}
	}

	loc := cfg.Server.Location()
	composer := notifications.NewComposer(cfg.Server.SiteURL, loc)
	mailer := newMailer(cfg.Email, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)
	if cfg.Admin.Email != "" {
		created, err := auth.EnsureAdmin(ctx, authRepo, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.FullName)
		if err != nil {
			logger.Fatal("bootstrap admin", zap.Error(err))
		}
		if created {
			logger.Info("bootstrap admin created", zap.String("email", cfg.Admin.Email))
		}
	}

	// Events, tutorials, instructors and signers
	eventRepo := events.NewRepository(pool)
	eventHandler := events.NewHandler(eventRepo, blob, logger)

	// Live seat counts
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	seatBoard := realtime.NewSeatBoard(hub, eventRepo, logger)

	// Registrations and certificates
	registrationRepo := registrations.NewRepository(pool)
	registrationSvc := registrations.NewService(registrationRepo, composer, logger)
	registrationSvc.SetSeatListener(seatBoard.SeatsChanged)
	issuer := registrations.NewIssuer(registrations.IssuerDeps{
		Store:    registrationRepo,
		Renderer: certificates.NewRenderer(certificates.NewHTTPConverter(cfg.Certificates.ConverterURL, cfg.Certificates.ConverterTimeout, logger), cfg.Certificates.PageWidth, cfg.Certificates.PageHeight),
		Blob:     blob,
		Locker:   redis.NewLocker(rdb.Client, "eventportal:lock:", logger),
		Mailer:   mailer,
		Composer: composer,
		LockTTL:  cfg.Certificates.LockTTL,
		Logger:   logger,
	})
	registrationHandler := registrations.NewHandler(registrationSvc, issuer, logger)

	emailLogsRepo := emaillogs.NewRepository(pool)
	emailLogsHandler := emaillogs.NewHandler(emailLogsRepo, jobQueue, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Public portal
	api := router.Group("/api")
	eventHandler.RegisterPublicRoutes(api)
	registrationHandler.RegisterPublicRoutes(api)

	// Auth (public)
	router.POST("/auth/login", authHandler.Login)

	// Back office (JWT required)
	admin := router.Group("/admin")
	admin.Use(middleware.JWT(jwtService), middleware.RequireRole(models.RoleAdmin, models.RoleOperator))
	{
		eventHandler.RegisterAdminRoutes(admin)
		registrationHandler.RegisterAdminRoutes(admin)
		emailLogsHandler.RegisterAdminRoutes(admin)

		// Users (admin only)
		admin.GET("/users", middleware.RequireRole(models.RoleAdmin), authHandler.List)
		admin.POST("/users", middleware.RequireRole(models.RoleAdmin), authHandler.CreateOperator)
	}

	// WebSocket (anonymous; one room per event)
	router.GET("/ws/events/:slug", realtime.ServeWs(hub, seatBoard, eventRepo, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background email delivery, when not run by cmd/worker
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	g, gctx := errgroup.WithContext(workerCtx)
	if cfg.Server.RunWorker {
		relay := worker.NewOutboxRelay(emailLogsRepo, jobQueue, cfg.Worker.PollInterval, cfg.Worker.BatchSize, cfg.Worker.VisibilityTimeout, logger)
		processor := worker.NewEmailProcessor(emailLogsRepo, jobQueue, mailer, logger)
		g.Go(func() error { return relay.Run(gctx) })
		g.Go(func() error { return processor.Run(gctx) })
		logger.Info("email worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("email worker", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newMailer(cfg config.EmailConfig, logger *zap.Logger) notifications.Mailer {
	if cfg.SMTPHost == "" {
		logger.Warn("smtp not configured, emails are logged only")
		return notifications.NewLogMailer(logger)
	}
	return notifications.NewSMTPMailer(notifications.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.FromAddress,
		FromName: cfg.FromName,
	}, logger)
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
