package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"chitieu/internal/core"
)

// ErrConfirmationRequired is returned when a destructive operation is
// attempted without the caller confirming it first.
var ErrConfirmationRequired = errors.New("confirmation required")

// EntryRepository is the storage surface the entry service needs.
type EntryRepository interface {
	ListEntries(ctx context.Context, owner string) ([]core.Entry, error)
	GetEntry(ctx context.Context, id int64, owner string) (core.Entry, error)
	CreateEntry(ctx context.Context, e core.Entry) (int64, error)
	UpdateEntry(ctx context.Context, e core.Entry) (int64, error)
	DeleteEntry(ctx context.Context, id int64, owner string) error
}

// SyncPublisher queues export work for mutated entries. A nil publisher
// disables export.
type SyncPublisher interface {
	PublishEntryUpsert(ctx context.Context, id, version int64) error
	PublishEntryDelete(ctx context.Context, id int64, owner string) error
	Close() error
}

type entryState struct {
	entries []core.Entry
	status  core.StoreStatus
}

// EntryService holds each owner's entry list in memory, writing mutations
// through to storage and patching the cached list without a re-fetch.
type EntryService struct {
	mu        sync.Mutex
	repo      EntryRepository
	publisher SyncPublisher
	byOwner   map[string]*entryState
}

func NewEntryService(repo EntryRepository, publisher SyncPublisher) *EntryService {
	return &EntryService{
		repo:      repo,
		publisher: publisher,
		byOwner:   make(map[string]*entryState),
	}
}

// Load refreshes the owner's list from storage. A failed refresh keeps the
// previous list and flags the store failed so views can warn about
// staleness instead of going blank.
func (s *EntryService) Load(ctx context.Context, owner string) error {
	s.mu.Lock()
	st := s.state(owner)
	st.status = core.StoreLoading
	s.mu.Unlock()

	entries, err := s.repo.ListEntries(ctx, owner)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		st.status = core.StoreFailed
		return fmt.Errorf("load entries: %w", err)
	}
	st.entries = entries
	st.status = core.StoreReady
	return nil
}

// Entries returns a copy of the owner's cached list and its load state.
func (s *EntryService) Entries(owner string) ([]core.Entry, core.StoreStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(owner)
	out := make([]core.Entry, len(st.entries))
	copy(out, st.entries)
	return out, st.status
}

// Add validates and persists a new entry, then prepends it to the cached
// list. On any failure the cached list is untouched.
func (s *EntryService) Add(ctx context.Context, e core.Entry) (core.Entry, error) {
	if err := e.Validate(); err != nil {
		return core.Entry{}, err
	}

	id, err := s.repo.CreateEntry(ctx, e)
	if err != nil {
		return core.Entry{}, fmt.Errorf("save entry: %w", err)
	}
	e.ID = id

	s.mu.Lock()
	st := s.state(e.Owner)
	st.entries = append([]core.Entry{e}, st.entries...)
	s.mu.Unlock()

	s.publishUpsert(ctx, id, 1)
	return e, nil
}

// Get resolves a single entry, serving from the cached list when possible
// and falling back to storage when the list has not been loaded yet.
func (s *EntryService) Get(ctx context.Context, owner string, id int64) (core.Entry, error) {
	s.mu.Lock()
	st := s.state(owner)
	for _, e := range st.entries {
		if e.ID == id {
			s.mu.Unlock()
			return e, nil
		}
	}
	s.mu.Unlock()

	e, err := s.repo.GetEntry(ctx, id, owner)
	if err != nil {
		return core.Entry{}, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// Update patches the entry in storage and in the cached list, keeping its
// position. The list is not re-sorted even if the date changed; the next
// Load restores canonical order.
func (s *EntryService) Update(ctx context.Context, e core.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}

	version, err := s.repo.UpdateEntry(ctx, e)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}

	s.mu.Lock()
	st := s.state(e.Owner)
	for i := range st.entries {
		if st.entries[i].ID == e.ID {
			st.entries[i] = e
			break
		}
	}
	s.mu.Unlock()

	s.publishUpsert(ctx, e.ID, version)
	return nil
}

// Delete removes the entry, requiring an explicit confirmation flag.
func (s *EntryService) Delete(ctx context.Context, owner string, id int64, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}

	if err := s.repo.DeleteEntry(ctx, id, owner); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}

	s.mu.Lock()
	st := s.state(owner)
	for i := range st.entries {
		if st.entries[i].ID == id {
			st.entries = append(st.entries[:i], st.entries[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	if s.publisher != nil {
		if err := s.publisher.PublishEntryDelete(ctx, id, owner); err != nil {
			// The local delete succeeded; the export catches up later.
			slog.ErrorContext(ctx, "Failed to publish delete message", "id", id, "error", err)
		}
	}
	return nil
}

func (s *EntryService) publishUpsert(ctx context.Context, id, version int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEntryUpsert(ctx, id, version); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message", "id", id, "error", err)
	}
}

// state returns the owner's slot; callers must hold the mutex.
func (s *EntryService) state(owner string) *entryState {
	st, ok := s.byOwner[owner]
	if !ok {
		st = &entryState{status: core.StoreLoading}
		s.byOwner[owner] = st
	}
	return st
}

// Close releases the publisher connection.
func (s *EntryService) Close() error {
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			return fmt.Errorf("close publisher: %w", err)
		}
	}
	return nil
}
