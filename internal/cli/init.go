// Package cli holds the startup plumbing shared by the chitieu binaries:
// logging, env loading, config validation, storage init, and shutdown
// signal handling.
package cli

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"chitieu/internal/config"
	"chitieu/internal/storage"
)

// SetupLogger builds the process logger and installs it as the slog
// default. LOG_LEVEL=debug switches on debug output.
func SetupLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// LoadEnvFile reads .env for local development. A missing file is fine;
// any other failure is reported so a malformed file does not pass silently.
func LoadEnvFile() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Could not load .env file", "error", err)
	}
}

// LoadAndValidateConfig reads configuration from the environment and exits
// the process when it does not validate. Binaries cannot run on a broken
// config, so there is no error return.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens the repository at dbPath, running migrations, and exits
// the process on failure.
func InitSQLite(logger *slog.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Could not open SQLite database", "error", err, "path", dbPath)
		os.Exit(1)
	}
	logger.Info("Opened SQLite database", "path", dbPath)
	return repo
}

// GracefulShutdown wires SIGINT/SIGTERM to an orderly stop. On the first
// signal it runs cleanup (bounded by timeout), cancels the returned
// context, and closes the done channel.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigs
		logger.Info("Shutting down", "signal", sig.String())

		if cleanup != nil {
			finished := make(chan struct{})
			go func() {
				cleanup()
				close(finished)
			}()
			select {
			case <-finished:
			case <-time.After(timeout):
				logger.Warn("Cleanup did not finish in time", "timeout", timeout)
			}
		}
		cancel()
	}()

	return ctx, done
}

// WaitForShutdown blocks until GracefulShutdown has run to completion.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
