package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/autofix"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/batch"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/client"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/config"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/database"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/httpapi"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/importer"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/logging"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/metrics"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/settings"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	log.WithField("version", version.String()).Info("starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stores: PostgreSQL when DATABASE_URL is set, memory otherwise
	var (
		store         batch.Store
		settingsStore settings.Store
		pool          *pgxpool.Pool
	)
	if cfg.UsesDatabase() {
		pool, err = database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			return err
		}
		store = batch.NewPostgresStore(pool)
		settingsStore = settings.NewPostgresStore(pool)
		log.Info("using PostgreSQL stores")
	} else {
		store = batch.NewMemoryStore()
		settingsStore = settings.NewMemoryStore()
		log.Warn("DATABASE_URL not set, imports are kept in memory only")
	}

	reg := metrics.NewRegistry()
	creds := settings.NewResolver(settingsStore, client.Credentials{
		BaseURL:   cfg.ERPNext.BaseURL,
		APIKey:    cfg.ERPNext.APIKey,
		APISecret: cfg.ERPNext.APISecret,
	})
	remote := client.New(creds, client.Options{
		Timeout: cfg.ERPNext.Timeout,
		Metrics: reg,
		Logger:  log.WithField("component", "erpnext"),
	})
	fixer := autofix.New(remote,
		autofix.WithLogger(log.WithField("component", "autofix")),
		autofix.WithMetrics(reg),
	)

	processor := importer.NewProcessor(store, remote, fixer, importer.ProcessorOptions{
		MaxRetries: cfg.Import.AutoFixMaxRetries,
		Logger:     log.WithField("component", "processor"),
		Metrics:    reg,
	})
	queue := importer.NewQueue(cfg.Import.QueueSize, reg)
	service := importer.NewService(store, queue, processor, importer.ServiceOptions{
		AllowedBaseDir: cfg.AllowedBaseDir,
		MaxUploadBytes: cfg.Import.MaxUploadBytes,
		Logger:         log.WithField("component", "upload"),
		Metrics:        reg,
	})

	workers := importer.NewPool(queue, store, processor, cfg.Import.Workers, log.WithField("component", "worker"))
	if err := workers.Recover(ctx); err != nil {
		log.WithError(err).Error("batch recovery failed")
	}
	workers.Start(ctx)

	handler := httpapi.NewHandler(httpapi.Deps{
		Uploader:       service,
		Store:          store,
		Credentials:    creds,
		Remote:         remote,
		MaxUploadBytes: cfg.Import.MaxUploadBytes,
		Logger:         log.WithField("component", "http"),
	})
	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: httpapi.SetupRouter(handler, httpapi.RouterOptions{
			APIKey:      cfg.APIKey,
			Metrics:     reg.Handler(),
			MetricsPath: cfg.MetricsPath,
		}),
	}
	if cfg.APIKey == "" {
		log.Warn("IMPORTER_API_KEY not set, API authentication is disabled")
	}

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-sigChan:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-serverErr:
		log.WithError(err).Error("server error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	cancel() // stop taking new batches

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown error")
	}
	if err := workers.Wait(shutdownCtx); err != nil {
		log.WithError(err).Warn("workers did not finish before shutdown timeout")
	}

	log.WithFields(logrus.Fields{"queued": queue.Len()}).Info("server stopped")
	return nil
}
