package services

import (
	"context"
	"errors"
	"testing"

	"chitieu/internal/core"
)

type fakeRoleRepo struct {
	roles       []core.Role
	users       []core.Identity
	assignments map[string][]int64
	resolves    int
}

func newFakeRoleRepo() *fakeRoleRepo {
	return &fakeRoleRepo{
		roles: []core.Role{
			{ID: 1, Name: core.RoleSuperAdmin},
			{ID: 2, Name: core.RoleEntry},
			{ID: 3, Name: core.RoleReport},
			{ID: 4, Name: core.RoleCategory},
		},
		assignments: make(map[string][]int64),
	}
}

func (f *fakeRoleRepo) roleName(id int64) string {
	for _, r := range f.roles {
		if r.ID == id {
			return r.Name
		}
	}
	return ""
}

func (f *fakeRoleRepo) ListRoles(ctx context.Context) ([]core.Role, error) {
	return f.roles, nil
}

func (f *fakeRoleRepo) GetRoleByName(ctx context.Context, name string) (core.Role, error) {
	for _, r := range f.roles {
		if r.Name == name {
			return r, nil
		}
	}
	return core.Role{}, core.ErrNotFound
}

func (f *fakeRoleRepo) ListUserRoles(ctx context.Context, userID string) ([]string, error) {
	f.resolves++
	var names []string
	for _, id := range f.assignments[userID] {
		names = append(names, f.roleName(id))
	}
	return names, nil
}

func (f *fakeRoleRepo) ListAllAssignments(ctx context.Context) ([]core.RoleAssignment, error) {
	var out []core.RoleAssignment
	for _, u := range f.users {
		for _, id := range f.assignments[u.ID] {
			out = append(out, core.RoleAssignment{UserID: u.ID, RoleID: id, RoleName: f.roleName(id)})
		}
	}
	return out, nil
}

func (f *fakeRoleRepo) ListUsers(ctx context.Context) ([]core.Identity, error) {
	return f.users, nil
}

func (f *fakeRoleRepo) GrantRole(ctx context.Context, userID string, roleID int64) error {
	for _, id := range f.assignments[userID] {
		if id == roleID {
			return nil
		}
	}
	f.assignments[userID] = append(f.assignments[userID], roleID)
	return nil
}

func (f *fakeRoleRepo) RevokeRole(ctx context.Context, userID string, roleID int64) error {
	ids := f.assignments[userID]
	for i, id := range ids {
		if id == roleID {
			f.assignments[userID] = append(ids[:i], ids[i+1:]...)
			return nil
		}
	}
	return nil
}

func TestRoleServiceResolveCaches(t *testing.T) {
	repo := newFakeRoleRepo()
	repo.users = []core.Identity{{ID: "u1", Email: "an@example.com"}}
	repo.assignments["u1"] = []int64{2, 3}
	svc := NewRoleService(repo)
	ctx := context.Background()

	rs, err := svc.Resolve(ctx, "u1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !rs.Has(core.RoleEntry) || !rs.Has(core.RoleReport) {
		t.Errorf("expected Entry and Report, got %v", rs.Names())
	}
	if rs.Has(core.RoleCategory) {
		t.Error("Category should not be granted")
	}

	if _, err := svc.Resolve(ctx, "u1"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if repo.resolves != 1 {
		t.Errorf("expected second resolve served from cache, storage hit %d times", repo.resolves)
	}
}

func TestRoleServiceGrantInvalidatesCache(t *testing.T) {
	repo := newFakeRoleRepo()
	repo.users = []core.Identity{{ID: "u1", Email: "an@example.com"}}
	svc := NewRoleService(repo)
	ctx := context.Background()

	rs, _ := svc.Resolve(ctx, "u1")
	if !rs.Empty() {
		t.Fatalf("expected no roles, got %v", rs.Names())
	}

	if err := svc.Grant(ctx, "u1", core.RoleCategory); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	rs, _ = svc.Resolve(ctx, "u1")
	if !rs.Has(core.RoleCategory) {
		t.Error("grant not visible after cache invalidation")
	}

	if err := svc.Revoke(ctx, "u1", core.RoleCategory); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	rs, _ = svc.Resolve(ctx, "u1")
	if rs.Has(core.RoleCategory) {
		t.Error("revoke not visible after cache invalidation")
	}
}

func TestRoleServiceGrantUnknownRole(t *testing.T) {
	svc := NewRoleService(newFakeRoleRepo())
	if err := svc.Grant(context.Background(), "u1", "Janitor"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRoleServiceSuperAdminAbsorbsAll(t *testing.T) {
	repo := newFakeRoleRepo()
	repo.users = []core.Identity{{ID: "admin", Email: "admin@example.com"}}
	repo.assignments["admin"] = []int64{1}
	svc := NewRoleService(repo)

	rs, err := svc.Resolve(context.Background(), "admin")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for _, name := range []string{core.RoleEntry, core.RoleReport, core.RoleCategory} {
		if !rs.Has(name) {
			t.Errorf("SuperAdmin should imply %s", name)
		}
	}
	if !rs.IsSuperAdmin() {
		t.Error("expected IsSuperAdmin")
	}
}

func TestRoleServiceMatrixIncludesUnassignedUsers(t *testing.T) {
	repo := newFakeRoleRepo()
	repo.users = []core.Identity{
		{ID: "u1", Email: "an@example.com"},
		{ID: "u2", Email: "binh@example.com"},
	}
	repo.assignments["u1"] = []int64{2}
	svc := NewRoleService(repo)

	rows, err := svc.Matrix(context.Background())
	if err != nil {
		t.Fatalf("Matrix: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if !rows[0].Roles.Has(core.RoleEntry) {
		t.Errorf("expected u1 to hold Entry, got %v", rows[0].Roles.Names())
	}
	if !rows[1].Roles.Empty() {
		t.Errorf("expected u2 without roles, got %v", rows[1].Roles.Names())
	}
}

func TestRoleServiceMatrixReflectsGrantAndRevoke(t *testing.T) {
	repo := newFakeRoleRepo()
	repo.users = []core.Identity{{ID: "u1", Email: "an@example.com"}}
	svc := NewRoleService(repo)
	ctx := context.Background()

	if err := svc.Grant(ctx, "u1", core.RoleReport); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	rows, _ := svc.Matrix(ctx)
	if !rows[0].Roles.Has(core.RoleReport) {
		t.Error("matrix missing fresh grant")
	}

	if err := svc.Revoke(ctx, "u1", core.RoleReport); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	rows, _ = svc.Matrix(ctx)
	if rows[0].Roles.Has(core.RoleReport) {
		t.Error("matrix still shows revoked role")
	}
}

func TestRoleServiceGrantDefaults(t *testing.T) {
	repo := newFakeRoleRepo()
	repo.users = []core.Identity{{ID: "u1", Email: "an@example.com"}}
	svc := NewRoleService(repo)
	ctx := context.Background()

	if err := svc.GrantDefaults(ctx, "u1"); err != nil {
		t.Fatalf("GrantDefaults: %v", err)
	}

	rs, _ := svc.Resolve(ctx, "u1")
	if !rs.Has(core.RoleEntry) || !rs.Has(core.RoleReport) {
		t.Errorf("expected default Entry and Report, got %v", rs.Names())
	}
	if rs.Has(core.RoleCategory) || rs.IsSuperAdmin() {
		t.Errorf("defaults granted too much: %v", rs.Names())
	}
}
