package sheets

import (
	"context"
	"time"
)

// ExportRow is the flattened shape of an entry in the export spreadsheet.
// The entry ID in column A keys upserts and deletes.
type ExportRow struct {
	EntryID     int64
	Owner       string
	Date        time.Time
	Description string
	AmountDong  int64
	Category    string
}

// Ports for outbound adapters.
type (
	// EntryUpserter writes or rewrites an entry's row in the export.
	EntryUpserter interface {
		Upsert(ctx context.Context, row ExportRow) (rowRef string, err error)
	}

	// EntryDeleter removes an entry's row from the export.
	EntryDeleter interface {
		Delete(ctx context.Context, entryID int64) error
	}

	// ExportSink is the full export surface the sync worker drives.
	ExportSink interface {
		EntryUpserter
		EntryDeleter
	}
)
