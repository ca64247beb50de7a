// Package main is the entrypoint for chronicled, the audit and versioning
// service for the ISP back office.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/backbill/chronicle/internal/api"
	"github.com/backbill/chronicle/internal/config"
	"github.com/backbill/chronicle/internal/crypto"
	"github.com/backbill/chronicle/internal/db"
	"github.com/backbill/chronicle/internal/db/migrations"
	"github.com/backbill/chronicle/internal/dbpool"
	"github.com/backbill/chronicle/internal/service"
	"github.com/backbill/chronicle/internal/store"
	"github.com/backbill/chronicle/internal/ws"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

func main() {
	// Load .env if present; real deployments set env vars directly.
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	if err := run(log); err != nil {
		log.WithError(err).Fatal("chronicled exited with error")
	}
}

func run(log *logrus.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	log.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL.Value())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	provider, err := crypto.NewStaticProvider(cfg.EncryptionKey.Value())
	if err != nil {
		return fmt.Errorf("initializing encryption: %w", err)
	}

	base := store.Base{
		Pool:   pool,
		Log:    log,
		Crypto: crypto.NewService(provider),
	}

	entityStore := store.NewEntityStore(base)
	auditStore := store.NewAuditStore(base)
	snapshotStore := store.NewSnapshotStore(base)
	queueStore := store.NewQueueStore(base, store.QueueConfig{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.BaseRetryDelay,
		MaxDelay:   cfg.MaxRetryDelay,
	})

	hub := ws.NewHub(log)
	go hub.Run(ctx)

	bridge := db.NewNotifyBridge(log, pool, hub)
	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("starting notify bridge: %w", err)
	}

	entitySvc := service.NewEntityService(entityStore, log)
	auditSvc := service.NewAuditService(auditStore, log)
	queueSvc := service.NewQueueService(queueStore, log)
	snapshotSvc := service.NewSnapshotService(snapshotStore, entityStore, entityStore, log, cfg.SnapshotRetention)

	processor := service.NewQueueProcessor(queueStore, auditStore, log, service.ProcessorConfig{
		Workers:           cfg.AuditWorkers,
		PollInterval:      cfg.QueuePollInterval,
		StaleClaimTimeout: cfg.StaleClaimTimeout,
	})

	janitor := service.NewJanitor(queueStore, snapshotStore, log, service.JanitorConfig{
		QueueRetention: cfg.QueueRetention,
	})

	router := api.NewRouter(ctx, &api.RouterDeps{
		Log:         log,
		Pool:        pool,
		Hub:         hub,
		Entities:    entitySvc,
		Audit:       auditSvc,
		Queue:       queueSvc,
		Snapshots:   snapshotSvc,
		APIKey:      cfg.APIKey.Value(),
		CORSOrigins: cfg.CORSOrigins,
		Version:     version,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return processor.Run(ctx)
	})

	g.Go(func() error {
		return janitor.Run(ctx)
	})

	g.Go(func() error {
		log.WithFields(logrus.Fields{
			"addr":    cfg.Addr(),
			"version": version,
		}).Info("chronicled listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("http server shutdown")
		}

		hub.Shutdown()

		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("chronicled stopped")

	return nil
}
