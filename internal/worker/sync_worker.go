package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"chitieu/internal/amqp"
	"chitieu/internal/core"
	"chitieu/internal/sheets"
	"chitieu/internal/storage"
)

// EntryStore is the storage surface the worker needs: reading entries by ID
// and tracking their export status.
type EntryStore interface {
	GetEntryAnyOwner(ctx context.Context, id int64) (core.Entry, error)
	GetPendingSyncEntries(ctx context.Context, limit int) ([]storage.PendingSyncEntry, error)
	MarkSynced(ctx context.Context, id int64) error
	MarkSyncError(ctx context.Context, id int64) error
}

// SyncWorker mirrors entry mutations into the export spreadsheet.
type SyncWorker struct {
	store     EntryStore
	sink      sheets.ExportSink
	batchSize int
}

func NewSyncWorker(store EntryStore, sink sheets.ExportSink, batchSize int) *SyncWorker {
	return &SyncWorker{
		store:     store,
		sink:      sink,
		batchSize: batchSize,
	}
}

// HandleMessage processes one sync message from the queue.
func (w *SyncWorker) HandleMessage(ctx context.Context, msg *amqp.EntrySyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"kind", msg.Kind,
		"id", msg.ID,
		"version", msg.Version)

	switch msg.Kind {
	case amqp.KindDelete:
		if err := w.sink.Delete(ctx, msg.ID); err != nil {
			return fmt.Errorf("delete entry from export: %w", err)
		}
		return nil
	case amqp.KindUpsert:
		return w.exportEntry(ctx, msg.ID)
	default:
		// Unknown kinds are dropped, not requeued.
		slog.WarnContext(ctx, "Unknown sync message kind", "kind", msg.Kind, "id", msg.ID)
		return nil
	}
}

// exportEntry loads the entry and pushes it to the sink. An entry deleted
// between publish and delivery is treated as done: the delete message that
// follows will clean up the export.
func (w *SyncWorker) exportEntry(ctx context.Context, id int64) error {
	entry, err := w.store.GetEntryAnyOwner(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		slog.InfoContext(ctx, "Entry gone before export, skipping", "id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get entry from storage: %w", err)
	}

	ref, err := w.sink.Upsert(ctx, sheets.ExportRow{
		EntryID:     entry.ID,
		Owner:       entry.Owner,
		Date:        entry.Date,
		Description: entry.Description,
		AmountDong:  entry.Amount.Dong,
		Category:    entry.Category,
	})
	if err != nil {
		if markErr := w.store.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", markErr)
		}
		return fmt.Errorf("upsert to export: %w", err)
	}

	if err := w.store.MarkSynced(ctx, id); err != nil {
		// The export itself worked; only the bookkeeping failed.
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", id, "error", err)
	}

	slog.InfoContext(ctx, "Successfully exported entry",
		"id", id,
		"sheets_ref", ref,
		"amount_dong", entry.Amount.Dong)

	return nil
}

// ProcessPending sweeps entries still marked pending. This is a backup
// mechanism in case queue messages are lost.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.store.GetPendingSyncEntries(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending entries: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending entries", "count", len(pending))

	for _, p := range pending {
		if err := w.exportEntry(ctx, p.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to export pending entry", "id", p.ID, "error", err)
		}
	}
	return nil
}

// StartupSyncCheck drains a larger pending backlog once at worker startup,
// recovering from missed messages or worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.store.GetPendingSyncEntries(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending entries for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending entries found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending entries on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0
	for _, p := range pending {
		if err := w.exportEntry(ctx, p.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to export entry during startup",
				"id", p.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"synced", successCount,
		"errors", errorCount)

	return nil
}
