package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"chitieu/internal/amqp"
	"chitieu/internal/auth"
	"chitieu/internal/cli"
	apphttp "chitieu/internal/http"
	applog "chitieu/internal/log"
	"chitieu/internal/objstore"
	"chitieu/internal/services"
	"chitieu/internal/storage"
)

func main() {
	logger := cli.SetupLogger()
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	var publisher services.SyncPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without sync", "error", err)
		} else {
			logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
			publisher = client
			defer client.Close()
		}
	}

	images, err := objstore.NewStore(cfg.ImageDir)
	if err != nil {
		logger.Error("Failed to initialize image store", "error", err, "dir", cfg.ImageDir)
		return
	}

	appLogger := applog.New(applog.DefaultConfig())
	applog.SetDefault(appLogger)

	srv := apphttp.NewServer(apphttp.Options{
		Config:     *cfg,
		Auth:       auth.NewManager(repo, cfg.SessionTTL),
		Entries:    services.NewEntryService(repo, publisher),
		Categories: services.NewCategoryService(repo),
		Roles:      services.NewRoleService(repo),
		Images:     images,
		ImageRepo:  repo,
		Logger:     appLogger,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sweepExpiredSessions(sweepCtx, logger, repo)

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", "error", err)
		}
	})

	logger.Info("Starting server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err)
	}

	cli.WaitForShutdown(ctx, done)
}

// sweepExpiredSessions periodically purges sessions past their expiry so the
// sessions table does not grow without bound.
func sweepExpiredSessions(ctx context.Context, logger *slog.Logger, repo *storage.SQLiteRepository) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.DeleteExpiredSessions(ctx, time.Now())
			if err != nil {
				logger.Warn("Session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("Purged expired sessions", "count", n)
			}
		}
	}
}
