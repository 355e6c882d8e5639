package services

import (
	"context"
	"fmt"
	"sync"

	"chitieu/internal/core"
)

// CategoryRepository is the storage surface the category service needs.
type CategoryRepository interface {
	ListCategories(ctx context.Context, owner string) ([]core.Category, error)
	CreateCategory(ctx context.Context, c core.Category) (int64, error)
	UpdateCategory(ctx context.Context, c core.Category) error
	DeleteCategory(ctx context.Context, id int64, owner string) error
	CountEntriesByCategory(ctx context.Context, owner, category string) (int64, error)
}

type categoryState struct {
	categories []core.Category
	status     core.StoreStatus
}

// CategoryService manages each owner's category list. Categories are
// referenced from entries by name snapshot, so deleting one never touches
// existing entries; deletion is refused while references remain.
type CategoryService struct {
	mu      sync.Mutex
	repo    CategoryRepository
	byOwner map[string]*categoryState
}

func NewCategoryService(repo CategoryRepository) *CategoryService {
	return &CategoryService{
		repo:    repo,
		byOwner: make(map[string]*categoryState),
	}
}

// Load refreshes the owner's categories, keeping the old list on failure.
func (s *CategoryService) Load(ctx context.Context, owner string) error {
	s.mu.Lock()
	st := s.state(owner)
	st.status = core.StoreLoading
	s.mu.Unlock()

	categories, err := s.repo.ListCategories(ctx, owner)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		st.status = core.StoreFailed
		return fmt.Errorf("load categories: %w", err)
	}
	st.categories = categories
	st.status = core.StoreReady
	return nil
}

// Categories returns a copy of the owner's cached list and its load state.
func (s *CategoryService) Categories(owner string) ([]core.Category, core.StoreStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(owner)
	out := make([]core.Category, len(st.categories))
	copy(out, st.categories)
	return out, st.status
}

// Add persists a new category and appends it to the cached list.
func (s *CategoryService) Add(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	id, err := s.repo.CreateCategory(ctx, c)
	if err != nil {
		return core.Category{}, fmt.Errorf("save category: %w", err)
	}
	c.ID = id

	s.mu.Lock()
	st := s.state(c.Owner)
	st.categories = append(st.categories, c)
	s.mu.Unlock()

	return c, nil
}

// Update renames or regroups a category in place. Entries keep whatever
// name they were recorded with.
func (s *CategoryService) Update(ctx context.Context, c core.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}

	if err := s.repo.UpdateCategory(ctx, c); err != nil {
		return fmt.Errorf("update category: %w", err)
	}

	s.mu.Lock()
	st := s.state(c.Owner)
	for i := range st.categories {
		if st.categories[i].ID == c.ID {
			st.categories[i] = c
			break
		}
	}
	s.mu.Unlock()
	return nil
}

// InUse reports whether any of the owner's entries still carry the name.
func (s *CategoryService) InUse(ctx context.Context, owner, name string) (bool, error) {
	n, err := s.repo.CountEntriesByCategory(ctx, owner, name)
	if err != nil {
		return false, fmt.Errorf("count category references: %w", err)
	}
	return n > 0, nil
}

// Delete removes a category after confirming nothing references it.
func (s *CategoryService) Delete(ctx context.Context, owner string, id int64, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}

	s.mu.Lock()
	var name string
	for _, c := range s.state(owner).categories {
		if c.ID == id {
			name = c.Name
			break
		}
	}
	s.mu.Unlock()
	if name == "" {
		return core.ErrNotFound
	}

	inUse, err := s.InUse(ctx, owner, name)
	if err != nil {
		return err
	}
	if inUse {
		return core.ErrCategoryInUse
	}

	if err := s.repo.DeleteCategory(ctx, id, owner); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	s.mu.Lock()
	st := s.state(owner)
	for i := range st.categories {
		if st.categories[i].ID == id {
			st.categories = append(st.categories[:i], st.categories[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	return nil
}

// NormalizeSelection maps a possibly stale selected category name onto the
// current list: a missing or deleted selection falls back to the first
// category, and an empty list clears it.
func (s *CategoryService) NormalizeSelection(owner, selected string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(owner)
	if len(st.categories) == 0 {
		return ""
	}
	for _, c := range st.categories {
		if c.Name == selected {
			return selected
		}
	}
	return st.categories[0].Name
}

func (s *CategoryService) state(owner string) *categoryState {
	st, ok := s.byOwner[owner]
	if !ok {
		st = &categoryState{status: core.StoreLoading}
		s.byOwner[owner] = st
	}
	return st
}
