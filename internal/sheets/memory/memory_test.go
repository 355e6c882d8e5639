package memory

import (
	"context"
	"testing"
	"time"

	ports "chitieu/internal/sheets"
)

func row(id int64, desc string) ports.ExportRow {
	return ports.ExportRow{
		EntryID:     id,
		Owner:       "u1",
		Date:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Description: desc,
		AmountDong:  1000,
		Category:    "Khác",
	}
}

func TestUpsertAndDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref, err := s.Upsert(ctx, row(1, "a"))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if ref != "mem:1" {
		t.Fatalf("expected mem:1, got %s", ref)
	}
	if _, err := s.Upsert(ctx, row(2, "b")); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Re-upserting replaces in place without duplicating.
	if _, err := s.Upsert(ctx, row(1, "a2")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	rows := s.Rows()
	if len(rows) != 2 || rows[0].Description != "a2" || rows[1].Description != "b" {
		t.Fatalf("unexpected rows: %+v", rows)
	}

	if err := s.Delete(ctx, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	rows = s.Rows()
	if len(rows) != 1 || rows[0].EntryID != 2 {
		t.Fatalf("unexpected rows after delete: %+v", rows)
	}

	// Deleting a missing row is a no-op.
	if err := s.Delete(ctx, 99); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}
