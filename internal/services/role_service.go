package services

import (
	"context"
	"fmt"
	"time"

	"chitieu/internal/cache"
	"chitieu/internal/core"
)

// RoleRepository is the storage surface the role service needs.
type RoleRepository interface {
	ListRoles(ctx context.Context) ([]core.Role, error)
	GetRoleByName(ctx context.Context, name string) (core.Role, error)
	ListUserRoles(ctx context.Context, userID string) ([]string, error)
	ListAllAssignments(ctx context.Context) ([]core.RoleAssignment, error)
	ListUsers(ctx context.Context) ([]core.Identity, error)
	GrantRole(ctx context.Context, userID string, roleID int64) error
	RevokeRole(ctx context.Context, userID string, roleID int64) error
}

// MatrixRow is one identity in the admin role matrix. Identities without
// any assignment still appear, with an empty role set.
type MatrixRow struct {
	Identity core.Identity
	Roles    core.RoleSet
}

// RoleService resolves effective roles with a short-lived per-user cache.
// Grants and revokes invalidate the affected user so the change is visible
// on the next request.
type RoleService struct {
	repo  RoleRepository
	cache *cache.LRUCache[core.RoleSet]
}

func NewRoleService(repo RoleRepository) *RoleService {
	return &RoleService{
		repo:  repo,
		cache: cache.NewLRUCache[core.RoleSet](1000, 30*time.Second),
	}
}

// Resolve returns the user's effective role set.
func (s *RoleService) Resolve(ctx context.Context, userID string) (core.RoleSet, error) {
	if rs, ok := s.cache.Get(userID); ok {
		return rs, nil
	}

	names, err := s.repo.ListUserRoles(ctx, userID)
	if err != nil {
		return core.RoleSet{}, fmt.Errorf("resolve roles: %w", err)
	}
	rs := core.NewRoleSet(names...)
	s.cache.Set(userID, rs)
	return rs, nil
}

// Roles lists the defined roles.
func (s *RoleService) Roles(ctx context.Context) ([]core.Role, error) {
	return s.repo.ListRoles(ctx)
}

// Matrix rebuilds the full identity-by-role view from scratch. Every known
// identity gets a row even when it holds no roles.
func (s *RoleService) Matrix(ctx context.Context) ([]MatrixRow, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	assignments, err := s.repo.ListAllAssignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	byUser := make(map[string][]string)
	for _, a := range assignments {
		byUser[a.UserID] = append(byUser[a.UserID], a.RoleName)
	}

	rows := make([]MatrixRow, 0, len(users))
	for _, u := range users {
		rows = append(rows, MatrixRow{
			Identity: u,
			Roles:    core.NewRoleSet(byUser[u.ID]...),
		})
	}
	return rows, nil
}

// Grant assigns a role by name and invalidates the user's cached set.
func (s *RoleService) Grant(ctx context.Context, userID, roleName string) error {
	role, err := s.repo.GetRoleByName(ctx, roleName)
	if err != nil {
		return fmt.Errorf("look up role %q: %w", roleName, err)
	}
	if err := s.repo.GrantRole(ctx, userID, role.ID); err != nil {
		return err
	}
	s.cache.Delete(userID)
	return nil
}

// Revoke removes a role by name and invalidates the user's cached set.
func (s *RoleService) Revoke(ctx context.Context, userID, roleName string) error {
	role, err := s.repo.GetRoleByName(ctx, roleName)
	if err != nil {
		return fmt.Errorf("look up role %q: %w", roleName, err)
	}
	if err := s.repo.RevokeRole(ctx, userID, role.ID); err != nil {
		return err
	}
	s.cache.Delete(userID)
	return nil
}

// GrantDefaults gives a fresh identity the starter roles.
func (s *RoleService) GrantDefaults(ctx context.Context, userID string) error {
	for _, name := range core.DefaultRoles {
		if err := s.Grant(ctx, userID, name); err != nil {
			return fmt.Errorf("grant default role %s: %w", name, err)
		}
	}
	return nil
}
