package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"chitieu/internal/core"
)

type fakeEntryRepo struct {
	entries  []core.Entry
	nextID   int64
	listErr  error
	saveErr  error
	deleted  []int64
	updated  []core.Entry
	versions map[int64]int64
}

func (f *fakeEntryRepo) ListEntries(ctx context.Context, owner string) ([]core.Entry, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []core.Entry
	for _, e := range f.entries {
		if e.Owner == owner {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEntryRepo) CreateEntry(ctx context.Context, e core.Entry) (int64, error) {
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	f.nextID++
	e.ID = f.nextID
	f.entries = append(f.entries, e)
	return e.ID, nil
}

func (f *fakeEntryRepo) GetEntry(ctx context.Context, id int64, owner string) (core.Entry, error) {
	for _, e := range f.entries {
		if e.ID == id && e.Owner == owner {
			return e, nil
		}
	}
	return core.Entry{}, core.ErrNotFound
}

func (f *fakeEntryRepo) UpdateEntry(ctx context.Context, e core.Entry) (int64, error) {
	f.updated = append(f.updated, e)
	if f.versions == nil {
		f.versions = make(map[int64]int64)
	}
	if f.versions[e.ID] == 0 {
		f.versions[e.ID] = 1
	}
	f.versions[e.ID]++
	return f.versions[e.ID], nil
}

func (f *fakeEntryRepo) DeleteEntry(ctx context.Context, id int64, owner string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakePublisher struct {
	upserts  []int64
	versions []int64
	deletes  []int64
	closed   bool
	err      error
}

func (f *fakePublisher) PublishEntryUpsert(ctx context.Context, id, version int64) error {
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, id)
	f.versions = append(f.versions, version)
	return nil
}

func (f *fakePublisher) PublishEntryDelete(ctx context.Context, id int64, owner string) error {
	if f.err != nil {
		return f.err
	}
	f.deletes = append(f.deletes, id)
	return nil
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

func serviceEntry(owner, desc string, dong int64, date string) core.Entry {
	d, _ := time.Parse(core.DateLayout, date)
	return core.Entry{
		Owner:       owner,
		Category:    "Ăn uống",
		Description: desc,
		Amount:      core.Money{Dong: dong},
		Date:        d,
	}
}

func TestEntryServiceAddPrepends(t *testing.T) {
	repo := &fakeEntryRepo{}
	svc := NewEntryService(repo, nil)
	ctx := context.Background()

	first, err := svc.Add(ctx, serviceEntry("u1", "Cơm trưa", 45000, "2024-03-01"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	second, err := svc.Add(ctx, serviceEntry("u1", "Cà phê", 30000, "2024-03-02"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	entries, _ := svc.Entries("u1")
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != second.ID || entries[1].ID != first.ID {
		t.Errorf("expected newest first, got ids %d, %d", entries[0].ID, entries[1].ID)
	}
}

func TestEntryServiceAddValidationLeavesCacheUntouched(t *testing.T) {
	repo := &fakeEntryRepo{}
	svc := NewEntryService(repo, nil)
	ctx := context.Background()

	if _, err := svc.Add(ctx, serviceEntry("u1", "Cơm trưa", 45000, "2024-03-01")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	bad := serviceEntry("u1", "   ", 10000, "2024-03-02")
	if _, err := svc.Add(ctx, bad); !errors.Is(err, core.ErrEmptyDescription) {
		t.Fatalf("expected ErrEmptyDescription, got %v", err)
	}

	entries, _ := svc.Entries("u1")
	if len(entries) != 1 {
		t.Errorf("expected cache unchanged with 1 entry, got %d", len(entries))
	}
	if len(repo.entries) != 1 {
		t.Errorf("expected storage unchanged with 1 entry, got %d", len(repo.entries))
	}
}

func TestEntryServiceUpdatePatchesInPlace(t *testing.T) {
	repo := &fakeEntryRepo{}
	svc := NewEntryService(repo, nil)
	ctx := context.Background()

	a, _ := svc.Add(ctx, serviceEntry("u1", "Cơm trưa", 45000, "2024-03-01"))
	b, _ := svc.Add(ctx, serviceEntry("u1", "Cà phê", 30000, "2024-03-02"))

	// Move the older entry's date past the newer one. Its position must
	// not change until the next Load.
	patched := a
	patched.Description = "Cơm tối"
	d, _ := time.Parse(core.DateLayout, "2024-03-10")
	patched.Date = d
	if err := svc.Update(ctx, patched); err != nil {
		t.Fatalf("Update: %v", err)
	}

	entries, _ := svc.Entries("u1")
	if entries[0].ID != b.ID {
		t.Errorf("expected untouched entry to keep first position, got id %d", entries[0].ID)
	}
	if entries[1].Description != "Cơm tối" {
		t.Errorf("expected patched description, got %q", entries[1].Description)
	}
}

func TestEntryServiceDeleteRequiresConfirmation(t *testing.T) {
	repo := &fakeEntryRepo{}
	svc := NewEntryService(repo, nil)
	ctx := context.Background()

	e, _ := svc.Add(ctx, serviceEntry("u1", "Cơm trưa", 45000, "2024-03-01"))

	if err := svc.Delete(ctx, "u1", e.ID, false); !errors.Is(err, ErrConfirmationRequired) {
		t.Fatalf("expected ErrConfirmationRequired, got %v", err)
	}
	if len(repo.deleted) != 0 {
		t.Errorf("expected no storage delete, got %v", repo.deleted)
	}

	if err := svc.Delete(ctx, "u1", e.ID, true); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	entries, _ := svc.Entries("u1")
	if len(entries) != 0 {
		t.Errorf("expected empty cache, got %d entries", len(entries))
	}
}

func TestEntryServiceFailedLoadKeepsStaleList(t *testing.T) {
	repo := &fakeEntryRepo{}
	svc := NewEntryService(repo, nil)
	ctx := context.Background()

	svc.Add(ctx, serviceEntry("u1", "Cơm trưa", 45000, "2024-03-01"))
	if err := svc.Load(ctx, "u1"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	repo.listErr = errors.New("db gone")
	if err := svc.Load(ctx, "u1"); err == nil {
		t.Fatal("expected load error")
	}

	entries, status := svc.Entries("u1")
	if status != core.StoreFailed {
		t.Errorf("expected StoreFailed, got %v", status)
	}
	if len(entries) != 1 {
		t.Errorf("expected stale list preserved, got %d entries", len(entries))
	}
}

func TestEntryServicePublishesSyncMessages(t *testing.T) {
	repo := &fakeEntryRepo{}
	pub := &fakePublisher{}
	svc := NewEntryService(repo, pub)
	ctx := context.Background()

	e, _ := svc.Add(ctx, serviceEntry("u1", "Cơm trưa", 45000, "2024-03-01"))
	if err := svc.Delete(ctx, "u1", e.ID, true); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if len(pub.upserts) != 1 || pub.upserts[0] != e.ID {
		t.Errorf("expected upsert for id %d, got %v", e.ID, pub.upserts)
	}
	if len(pub.deletes) != 1 || pub.deletes[0] != e.ID {
		t.Errorf("expected delete for id %d, got %v", e.ID, pub.deletes)
	}

	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !pub.closed {
		t.Error("expected publisher closed")
	}
}

func TestEntryServicePublishesStorageVersion(t *testing.T) {
	repo := &fakeEntryRepo{}
	pub := &fakePublisher{}
	svc := NewEntryService(repo, pub)
	ctx := context.Background()

	e, _ := svc.Add(ctx, serviceEntry("u1", "Cơm trưa", 45000, "2024-03-01"))
	e.Description = "Cơm tối"
	if err := svc.Update(ctx, e); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := svc.Update(ctx, e); err != nil {
		t.Fatalf("Update: %v", err)
	}

	want := []int64{1, 2, 3}
	if len(pub.versions) != len(want) {
		t.Fatalf("expected %d upserts, got %v", len(want), pub.versions)
	}
	for i, v := range want {
		if pub.versions[i] != v {
			t.Errorf("upsert %d: expected version %d, got %d", i, v, pub.versions[i])
		}
	}
}

func TestEntryServiceGetFallsBackToStorage(t *testing.T) {
	repo := &fakeEntryRepo{}
	svc := NewEntryService(repo, nil)
	ctx := context.Background()

	e := serviceEntry("u1", "Cơm trưa", 45000, "2024-03-01")
	id, _ := repo.CreateEntry(ctx, e)

	// The cached list has never been loaded; Get must still resolve.
	got, err := svc.Get(ctx, "u1", id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Description != "Cơm trưa" {
		t.Errorf("unexpected entry: %+v", got)
	}

	if _, err := svc.Get(ctx, "u2", id); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected not found for wrong owner, got %v", err)
	}
}

func TestEntryServicePublishFailureDoesNotFailMutation(t *testing.T) {
	repo := &fakeEntryRepo{}
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewEntryService(repo, pub)
	ctx := context.Background()

	if _, err := svc.Add(ctx, serviceEntry("u1", "Cơm trưa", 45000, "2024-03-01")); err != nil {
		t.Fatalf("Add should survive publish failure: %v", err)
	}
	entries, _ := svc.Entries("u1")
	if len(entries) != 1 {
		t.Errorf("expected entry cached despite publish failure, got %d", len(entries))
	}
}

func TestEntryServiceOwnerIsolation(t *testing.T) {
	repo := &fakeEntryRepo{}
	svc := NewEntryService(repo, nil)
	ctx := context.Background()

	svc.Add(ctx, serviceEntry("u1", "Cơm trưa", 45000, "2024-03-01"))
	svc.Add(ctx, serviceEntry("u2", "Xăng xe", 80000, "2024-03-01"))

	u1, _ := svc.Entries("u1")
	u2, _ := svc.Entries("u2")
	if len(u1) != 1 || len(u2) != 1 {
		t.Fatalf("expected one entry per owner, got %d and %d", len(u1), len(u2))
	}
	if u1[0].Description == u2[0].Description {
		t.Error("owners share cached entries")
	}
}
