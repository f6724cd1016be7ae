package roles

import (
	"context"
	"errors"
	"strings"

	"github.com/castellan/castellan/internal/rbac"
)

// ErrReservedName rejects role names shaped like auto-created personal
// roles (e.g. "user-42").
var ErrReservedName = errors.New("roles: name reserved for personal roles")

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context, limit, offset int) ([]Role, int, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	CreateRole(ctx context.Context, name, principalType string) (Role, error)
	RolePermissionNames(ctx context.Context, roleID int64) ([]string, error)
}

// Service handles role business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListRoles returns one page of roles plus the total row count.
func (s *Service) ListRoles(ctx context.Context, limit, offset int) ([]Role, int, error) {
	return s.repo.ListRoles(ctx, limit, offset)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole inserts a new role after trimming the name. Names in the
// personal-role shape are reserved.
func (s *Service) CreateRole(ctx context.Context, name, principalType string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("roles: role name required")
	}
	if rbac.IsPersonalRoleName(name) {
		return Role{}, ErrReservedName
	}
	return s.repo.CreateRole(ctx, name, principalType)
}

// RolePermissionNames returns the permission names attached to a role.
func (s *Service) RolePermissionNames(ctx context.Context, roleID int64) ([]string, error) {
	return s.repo.RolePermissionNames(ctx, roleID)
}
