// Package backend selects the export sink the sync worker writes to.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"chitieu/internal/config"
	"chitieu/internal/sheets"
	gsheet "chitieu/internal/sheets/google"
	"chitieu/internal/sheets/memory"
)

// Result carries the chosen sink and its cleanup hook.
type Result struct {
	Sink    sheets.ExportSink
	Cleanup func()
}

// Factory builds export sinks from configuration.
type Factory struct {
	logger *slog.Logger
}

// NewFactory creates a new sink factory.
func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger}
}

// CreateSink builds the export sink named by cfg.ExportSink.
// Supported values are "memory" and "sheets".
func (f *Factory) CreateSink(ctx context.Context, cfg *config.Config) (*Result, error) {
	switch cfg.ExportSink {
	case "memory":
		return f.createMemorySink()
	case "sheets":
		return f.createSheetsSink(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported export sink: %s", cfg.ExportSink)
	}
}

func (f *Factory) createMemorySink() (*Result, error) {
	f.logger.Info("Initialized in-memory export sink")
	return &Result{
		Sink:    memory.New(),
		Cleanup: nil,
	}, nil
}

func (f *Factory) createSheetsSink(ctx context.Context, cfg *config.Config) (*Result, error) {
	cli, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleCredentialsJSON,
		CredentialsFile: cfg.GoogleCredentialsFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets export sink",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet_name", cfg.GoogleSheetName)

	return &Result{
		Sink:    cli,
		Cleanup: nil,
	}, nil
}
