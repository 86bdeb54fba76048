// Package main boots the merch inventory and point-of-sale API.
//
// @title Merch POS API
// @version 1.0
// @description Inventory, events and point-of-sale transactions for a student organization's merch booth.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"merchpos/config"
	"merchpos/internal/adapters/auth"
	"merchpos/internal/adapters/email"
	"merchpos/internal/adapters/gcs"
	"merchpos/internal/adapters/redisstore"
	httpdelivery "merchpos/internal/delivery/http"
	"merchpos/internal/delivery/http/controllers"
	"merchpos/internal/delivery/http/middleware"
	"merchpos/internal/domain"
	"merchpos/internal/metrics"
	"merchpos/internal/repository/postgres"
	"merchpos/internal/services"
)

const (
	lockTTL         = 30 * time.Second
	shutdownTimeout = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := config.NewLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, db, "up"); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		logger.Info("migrations applied")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var (
		idem   middleware.IdempotencyStore
		locker domain.Locker
	)
	if cfg.Redis.URL != "" {
		var client *redis.Client
		client, err = redisstore.New(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		idem = redisstore.NewIdempotencyStore(client)
		locker = redisstore.NewLocker(client, lockTTL, logger)
		logger.Info("redis enabled")
	} else {
		logger.Warn("REDIS_URL not set; idempotency keys and maintenance locks are disabled")
	}

	mailer, err := email.NewMailer(email.MailerConfig{
		Provider:    cfg.Email.Provider,
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
		SES: email.SESConfig{
			Region:             cfg.Email.AWSRegion,
			AccessKeyID:        cfg.Email.AWSAccessKeyID,
			SecretAccessKey:    cfg.Email.AWSSecretAccessKey,
			InsecureSkipVerify: cfg.Email.SESInsecureSkipVerify,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("create mailer: %w", err)
	}
	renderer, err := email.NewTemplateRenderer()
	if err != nil {
		return fmt.Errorf("load email templates: %w", err)
	}

	timeout := cfg.RequestTimeout
	userRepo := postgres.NewUserRepository(db)
	productRepo := postgres.NewProductRepository(db)
	eventRepo := postgres.NewEventRepository(db)
	txRepo := postgres.NewTransactionRepository(db)
	movementRepo := postgres.NewStockMovementRepository(db)
	activityRepo := postgres.NewActivityLogRepository(db)

	jwt := auth.NewJWTManager(cfg.Auth.JWTSecret)
	activitySvc := services.NewActivityService(activityRepo, logger, timeout)
	emailSvc := services.NewEmailService(mailer, renderer, logger)
	authSvc := services.NewAuthService(userRepo, auth.NewBcryptHasher(cfg.Auth.BcryptCost), jwt, emailSvc, activitySvc, services.AuthSettings{
		PresidentEmail:      cfg.Auth.PresidentEmail,
		AllowedEmailDomains: cfg.Auth.AllowedEmailDomains,
		TokenExpiry:         cfg.Auth.JWTExpiry,
	}, m, logger, timeout)
	productSvc := services.NewProductService(productRepo, movementRepo, locker, m, logger, timeout)
	eventSvc := services.NewEventService(eventRepo, timeout)
	txSvc := services.NewTransactionService(txRepo, eventRepo, movementRepo, productSvc, m, logger, timeout)
	reportSvc := services.NewReportService(eventRepo, txRepo, timeout)

	ctrls := httpdelivery.Controllers{
		Auth:        controllers.NewAuthController(logger, authSvc, activitySvc),
		Product:     controllers.NewProductController(logger, productSvc, activitySvc),
		Event:       controllers.NewEventController(logger, eventSvc, txSvc, reportSvc, activitySvc),
		Transaction: controllers.NewTransactionController(logger, txSvc, activitySvc),
	}
	if cfg.Storage.Bucket != "" {
		store, err := gcs.New(ctx, gcs.Config{
			Bucket:          cfg.Storage.Bucket,
			CredentialsJSON: cfg.Storage.CredentialsJSON,
			PublicBaseURL:   cfg.Storage.PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("open object storage: %w", err)
		}
		defer store.Close()
		storageSvc := services.NewStorageService(store, productRepo, cfg.Storage.MaxUploadBytes, timeout)
		ctrls.Storage = controllers.NewStorageController(logger, storageSvc, activitySvc, cfg.Storage.MaxUploadBytes)
		logger.Info("object storage enabled", "bucket", cfg.Storage.Bucket)
	}

	mux := httpdelivery.NewRouter(ctrls, httpdelivery.RouterDeps{
		Logger:      logger,
		Verifier:    jwt,
		Users:       authSvc,
		Idempotency: idem,
		AdminKey:    cfg.Auth.AdminMaintenanceKey,
		Gatherer:    reg,
		Ping:        db.PingContext,
	})

	var handler http.Handler = mux
	handler = middleware.Metrics(m, handler)
	handler = middleware.CORS(cfg.CORSOrigins, handler)
	handler = middleware.LoggingMiddleware(logger, handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recoverer(logger, handler)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
