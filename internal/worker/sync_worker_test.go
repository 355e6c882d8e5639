package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"chitieu/internal/amqp"
	"chitieu/internal/core"
	"chitieu/internal/sheets"
	"chitieu/internal/sheets/memory"
	"chitieu/internal/storage"
)

type fakeEntryStore struct {
	entries  map[int64]core.Entry
	statuses map[int64]string
}

func newFakeEntryStore() *fakeEntryStore {
	return &fakeEntryStore{
		entries:  make(map[int64]core.Entry),
		statuses: make(map[int64]string),
	}
}

func (f *fakeEntryStore) add(e core.Entry) {
	f.entries[e.ID] = e
	f.statuses[e.ID] = storage.SyncPending
}

func (f *fakeEntryStore) GetEntryAnyOwner(_ context.Context, id int64) (core.Entry, error) {
	e, ok := f.entries[id]
	if !ok {
		return core.Entry{}, core.ErrNotFound
	}
	return e, nil
}

func (f *fakeEntryStore) GetPendingSyncEntries(_ context.Context, limit int) ([]storage.PendingSyncEntry, error) {
	var out []storage.PendingSyncEntry
	for id, status := range f.statuses {
		if status == storage.SyncPending && len(out) < limit {
			out = append(out, storage.PendingSyncEntry{ID: id, Version: 1})
		}
	}
	return out, nil
}

func (f *fakeEntryStore) MarkSynced(_ context.Context, id int64) error {
	f.statuses[id] = storage.SyncDone
	return nil
}

func (f *fakeEntryStore) MarkSyncError(_ context.Context, id int64) error {
	f.statuses[id] = storage.SyncError
	return nil
}

func testEntry(id int64) core.Entry {
	return core.Entry{
		ID:          id,
		Owner:       "u1",
		Category:    "Ăn uống",
		Description: "cà phê",
		Amount:      core.Money{Dong: 25000},
		Date:        time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestHandleUpsertMessage(t *testing.T) {
	store := newFakeEntryStore()
	store.add(testEntry(1))
	sink := memory.New()
	w := NewSyncWorker(store, sink, 10)

	err := w.HandleMessage(context.Background(), amqp.NewUpsertMessage(1, 1))
	if err != nil {
		t.Fatalf("handle message: %v", err)
	}

	rows := sink.Rows()
	if len(rows) != 1 || rows[0].EntryID != 1 || rows[0].AmountDong != 25000 {
		t.Fatalf("unexpected export rows: %+v", rows)
	}
	if store.statuses[1] != storage.SyncDone {
		t.Fatalf("expected entry marked synced, got %s", store.statuses[1])
	}
}

func TestHandleUpsertForMissingEntry(t *testing.T) {
	w := NewSyncWorker(newFakeEntryStore(), memory.New(), 10)

	// An entry deleted before delivery is skipped, not requeued.
	if err := w.HandleMessage(context.Background(), amqp.NewUpsertMessage(42, 1)); err != nil {
		t.Fatalf("expected skip, got %v", err)
	}
}

func TestHandleDeleteMessage(t *testing.T) {
	store := newFakeEntryStore()
	store.add(testEntry(1))
	sink := memory.New()
	w := NewSyncWorker(store, sink, 10)

	if err := w.HandleMessage(context.Background(), amqp.NewUpsertMessage(1, 1)); err != nil {
		t.Fatalf("handle upsert: %v", err)
	}
	if err := w.HandleMessage(context.Background(), amqp.NewDeleteMessage(1, "u1")); err != nil {
		t.Fatalf("handle delete: %v", err)
	}
	if len(sink.Rows()) != 0 {
		t.Fatalf("expected empty export after delete")
	}
}

func TestHandleUnknownKindDropped(t *testing.T) {
	w := NewSyncWorker(newFakeEntryStore(), memory.New(), 10)
	msg := &amqp.EntrySyncMessage{Kind: "mystery", ID: 1}
	if err := w.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("unknown kind should not error, got %v", err)
	}
}

func TestProcessPendingSweep(t *testing.T) {
	store := newFakeEntryStore()
	store.add(testEntry(1))
	store.add(testEntry(2))
	sink := memory.New()
	w := NewSyncWorker(store, sink, 10)

	if err := w.ProcessPending(context.Background()); err != nil {
		t.Fatalf("process pending: %v", err)
	}
	if len(sink.Rows()) != 2 {
		t.Fatalf("expected both entries exported, got %d", len(sink.Rows()))
	}
	for id := int64(1); id <= 2; id++ {
		if store.statuses[id] != storage.SyncDone {
			t.Fatalf("entry %d not marked synced", id)
		}
	}

	// A second sweep finds nothing to do.
	if err := w.ProcessPending(context.Background()); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
}

var errSinkFailure = errors.New("sheet unavailable")

type failingSink struct{}

func (failingSink) Upsert(context.Context, sheets.ExportRow) (string, error) {
	return "", errSinkFailure
}

func (failingSink) Delete(context.Context, int64) error {
	return errSinkFailure
}

func TestUpsertFailureMarksError(t *testing.T) {
	store := newFakeEntryStore()
	store.add(testEntry(1))
	w := NewSyncWorker(store, failingSink{}, 10)

	err := w.HandleMessage(context.Background(), amqp.NewUpsertMessage(1, 1))
	if !errors.Is(err, errSinkFailure) {
		t.Fatalf("expected sink failure, got %v", err)
	}
	if store.statuses[1] != storage.SyncError {
		t.Fatalf("expected entry marked with sync error, got %s", store.statuses[1])
	}
}

func TestStartupSyncCheck(t *testing.T) {
	store := newFakeEntryStore()
	for id := int64(1); id <= 3; id++ {
		store.add(testEntry(id))
	}
	w := NewSyncWorker(store, memory.New(), 1)

	// Startup check uses a 5x batch, so all three fit.
	if err := w.StartupSyncCheck(context.Background()); err != nil {
		t.Fatalf("startup sync: %v", err)
	}
	for id := int64(1); id <= 3; id++ {
		if store.statuses[id] != storage.SyncDone {
			t.Fatalf("entry %d not synced at startup", id)
		}
	}
}
