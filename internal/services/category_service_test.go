package services

import (
	"context"
	"errors"
	"testing"

	"chitieu/internal/core"
)

type fakeCategoryRepo struct {
	categories []core.Category
	nextID     int64
	usage      map[string]int64
	listErr    error
}

func (f *fakeCategoryRepo) ListCategories(ctx context.Context, owner string) ([]core.Category, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []core.Category
	for _, c := range f.categories {
		if c.Owner == owner {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCategoryRepo) CreateCategory(ctx context.Context, c core.Category) (int64, error) {
	f.nextID++
	c.ID = f.nextID
	f.categories = append(f.categories, c)
	return c.ID, nil
}

func (f *fakeCategoryRepo) UpdateCategory(ctx context.Context, c core.Category) error {
	for i := range f.categories {
		if f.categories[i].ID == c.ID {
			f.categories[i] = c
			return nil
		}
	}
	return core.ErrNotFound
}

func (f *fakeCategoryRepo) DeleteCategory(ctx context.Context, id int64, owner string) error {
	for i := range f.categories {
		if f.categories[i].ID == id && f.categories[i].Owner == owner {
			f.categories = append(f.categories[:i], f.categories[i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

func (f *fakeCategoryRepo) CountEntriesByCategory(ctx context.Context, owner, category string) (int64, error) {
	return f.usage[owner+"/"+category], nil
}

func TestCategoryServiceDeleteRefusedWhileInUse(t *testing.T) {
	repo := &fakeCategoryRepo{usage: map[string]int64{"u1/Ăn uống": 3}}
	svc := NewCategoryService(repo)
	ctx := context.Background()

	c, err := svc.Add(ctx, core.Category{Owner: "u1", Name: "Ăn uống", Group: "Sinh hoạt"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := svc.Delete(ctx, "u1", c.ID, true); !errors.Is(err, core.ErrCategoryInUse) {
		t.Fatalf("expected ErrCategoryInUse, got %v", err)
	}
	categories, _ := svc.Categories("u1")
	if len(categories) != 1 {
		t.Errorf("expected category kept, got %d", len(categories))
	}

	repo.usage["u1/Ăn uống"] = 0
	if err := svc.Delete(ctx, "u1", c.ID, true); err != nil {
		t.Fatalf("Delete after references cleared: %v", err)
	}
	categories, _ = svc.Categories("u1")
	if len(categories) != 0 {
		t.Errorf("expected empty list, got %d", len(categories))
	}
}

func TestCategoryServiceDeleteRequiresConfirmation(t *testing.T) {
	repo := &fakeCategoryRepo{usage: map[string]int64{}}
	svc := NewCategoryService(repo)
	ctx := context.Background()

	c, _ := svc.Add(ctx, core.Category{Owner: "u1", Name: "Đi lại", Group: "Sinh hoạt"})
	if err := svc.Delete(ctx, "u1", c.ID, false); !errors.Is(err, ErrConfirmationRequired) {
		t.Fatalf("expected ErrConfirmationRequired, got %v", err)
	}
}

func TestCategoryServiceRenameKeepsEntrySnapshots(t *testing.T) {
	repo := &fakeCategoryRepo{usage: map[string]int64{}}
	svc := NewCategoryService(repo)
	ctx := context.Background()

	c, _ := svc.Add(ctx, core.Category{Owner: "u1", Name: "Ăn uống", Group: "Sinh hoạt"})

	renamed := c
	renamed.Name = "Ăn ngoài"
	if err := svc.Update(ctx, renamed); err != nil {
		t.Fatalf("Update: %v", err)
	}

	categories, _ := svc.Categories("u1")
	if categories[0].Name != "Ăn ngoài" {
		t.Errorf("expected renamed category, got %q", categories[0].Name)
	}
	// Usage is keyed by the old snapshot name; rename must not move it.
	if repo.usage["u1/Ăn ngoài"] != 0 {
		t.Error("rename should not rewrite entry references")
	}
}

func TestCategoryServiceValidationRejected(t *testing.T) {
	repo := &fakeCategoryRepo{usage: map[string]int64{}}
	svc := NewCategoryService(repo)

	if _, err := svc.Add(context.Background(), core.Category{Owner: "u1", Name: "   "}); !errors.Is(err, core.ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if len(repo.categories) != 0 {
		t.Error("invalid category must not reach storage")
	}
}

func TestCategoryServiceFailedLoadKeepsStaleList(t *testing.T) {
	repo := &fakeCategoryRepo{usage: map[string]int64{}}
	svc := NewCategoryService(repo)
	ctx := context.Background()

	svc.Add(ctx, core.Category{Owner: "u1", Name: "Ăn uống", Group: "Sinh hoạt"})
	if err := svc.Load(ctx, "u1"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	repo.listErr = errors.New("db gone")
	if err := svc.Load(ctx, "u1"); err == nil {
		t.Fatal("expected load error")
	}

	categories, status := svc.Categories("u1")
	if status != core.StoreFailed {
		t.Errorf("expected StoreFailed, got %v", status)
	}
	if len(categories) != 1 {
		t.Errorf("expected stale list preserved, got %d", len(categories))
	}
}

func TestCategoryServiceNormalizeSelection(t *testing.T) {
	repo := &fakeCategoryRepo{usage: map[string]int64{}}
	svc := NewCategoryService(repo)
	ctx := context.Background()

	if got := svc.NormalizeSelection("u1", "Ăn uống"); got != "" {
		t.Errorf("empty list should clear selection, got %q", got)
	}

	svc.Add(ctx, core.Category{Owner: "u1", Name: "Ăn uống", Group: "Sinh hoạt"})
	svc.Add(ctx, core.Category{Owner: "u1", Name: "Đi lại", Group: "Sinh hoạt"})

	if got := svc.NormalizeSelection("u1", "Đi lại"); got != "Đi lại" {
		t.Errorf("valid selection should be kept, got %q", got)
	}
	if got := svc.NormalizeSelection("u1", "Đã xóa"); got != "Ăn uống" {
		t.Errorf("stale selection should fall back to first category, got %q", got)
	}
}
