package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
)

// Resolver answers role/permission membership queries for principals and
// keeps the principal-role graph synchronized to caller-supplied target
// state. Reads go through the fact cache; every mutation ends with an
// explicit invalidation of the affected principal's cached facts, issued
// only after the underlying write has completed. The window between a
// write and its invalidation is an accepted bounded-staleness trade-off;
// the invalidation itself is unconditional so over-invalidation can
// happen, under-invalidation cannot.
type Resolver struct {
	repo   Repository
	cache  *FactCache
	logger *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(repo Repository, cache *FactCache, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{repo: repo, cache: cache, logger: logger}
}

// PersonalRoleName derives the conventional name of a principal's
// auto-created personal role.
func PersonalRoleName(t PrincipalType, principalID int64) string {
	return fmt.Sprintf("%s-%d", t, principalID)
}

var personalRolePattern = regexp.MustCompile(`^(admin|user)-[0-9]+$`)

// IsPersonalRoleName reports whether name has the shape reserved for
// auto-created personal roles. Human-created roles must not use it, or
// they would collide with AssignPermissionToPrincipal's find-or-create.
func IsPersonalRoleName(name string) bool {
	return personalRolePattern.MatchString(name)
}

// SyncRoles reconciles a principal's role links against the desired set.
// Links outside the desired set are removed, missing ones are batch
// inserted, and the principal's cached facts are invalidated regardless
// of whether anything changed.
func (r *Resolver) SyncRoles(ctx context.Context, t PrincipalType, principalID int64, desired []int64) error {
	if !t.Valid() {
		return ErrInvalidPrincipalType
	}
	existing, err := r.repo.PrincipalRoleIDs(ctx, t, principalID)
	if err != nil {
		return err
	}

	want := make(map[int64]struct{}, len(desired))
	for _, id := range desired {
		want[id] = struct{}{}
	}
	have := make(map[int64]struct{}, len(existing))
	for _, id := range existing {
		have[id] = struct{}{}
	}

	var toRemove []int64
	for _, id := range existing {
		if _, ok := want[id]; !ok {
			toRemove = append(toRemove, id)
		}
	}
	var toAdd []int64
	for _, id := range desired {
		if _, ok := have[id]; !ok {
			toAdd = append(toAdd, id)
		}
	}

	// Removals first; the sets are disjoint so ordering is a sequential
	// convenience, not a correctness requirement.
	if len(toRemove) > 0 {
		if err := r.repo.RemovePrincipalRoles(ctx, t, principalID, toRemove); err != nil {
			return err
		}
	}
	if len(toAdd) > 0 {
		if err := r.repo.AddPrincipalRoles(ctx, t, principalID, toAdd); err != nil {
			return err
		}
	}

	return r.cache.Invalidate(ctx, t, principalID)
}

// AssignRole links one role to a principal. The role must exist.
func (r *Resolver) AssignRole(ctx context.Context, t PrincipalType, principalID, roleID int64) error {
	if !t.Valid() {
		return ErrInvalidPrincipalType
	}
	if _, err := r.repo.GetRole(ctx, roleID); err != nil {
		return err
	}
	if err := r.repo.AddPrincipalRoles(ctx, t, principalID, []int64{roleID}); err != nil {
		return err
	}
	return r.cache.Invalidate(ctx, t, principalID)
}

// AssignPermissionToRole links one permission to a role. Per-principal
// caches are untouched: there is no principal to scope a key by, so the
// caller is expected to trigger a matrix rebuild separately.
func (r *Resolver) AssignPermissionToRole(ctx context.Context, roleID, permissionID int64) error {
	return r.repo.AddRolePermissions(ctx, roleID, []int64{permissionID})
}

// AssignPermissionToPrincipal grants a single permission to a principal
// through its personal role, creating and attaching the role on first
// use. A concurrent create of the same personal role surfaces as the
// database's unique-constraint error.
func (r *Resolver) AssignPermissionToPrincipal(ctx context.Context, t PrincipalType, principalID, permissionID int64) error {
	if !t.Valid() {
		return ErrInvalidPrincipalType
	}
	name := PersonalRoleName(t, principalID)
	role, err := r.repo.FindRoleByName(ctx, t, name)
	if err != nil {
		if !errors.Is(err, ErrRoleNotFound) {
			return err
		}
		role, err = r.repo.CreateRole(ctx, t, name, false)
		if err != nil {
			return err
		}
		if err := r.repo.AddPrincipalRoles(ctx, t, principalID, []int64{role.ID}); err != nil {
			return err
		}
	}
	if err := r.repo.AddRolePermissions(ctx, role.ID, []int64{permissionID}); err != nil {
		return err
	}
	return r.cache.Invalidate(ctx, t, principalID)
}

// HasRole reports whether the principal holds a role with the given name.
func (r *Resolver) HasRole(ctx context.Context, t PrincipalType, principalID int64, roleName string) (bool, error) {
	refs, err := r.Roles(ctx, t, principalID)
	if err != nil {
		return false, err
	}
	for _, ref := range refs {
		if ref.Name == roleName {
			return true, nil
		}
	}
	return false, nil
}

// HasPermission reports whether the principal holds the named permission
// through any of its roles.
func (r *Resolver) HasPermission(ctx context.Context, t PrincipalType, principalID int64, permissionName string) (bool, error) {
	names, err := r.PermissionNames(ctx, t, principalID)
	if err != nil {
		return false, err
	}
	for _, name := range names {
		if name == permissionName {
			return true, nil
		}
	}
	return false, nil
}

// Roles returns the principal's roles, read through the fact cache.
func (r *Resolver) Roles(ctx context.Context, t PrincipalType, principalID int64) ([]RoleRef, error) {
	if !t.Valid() {
		return nil, ErrInvalidPrincipalType
	}
	if refs, ok := r.cache.Roles(ctx, t, principalID); ok {
		return refs, nil
	}
	refs, err := r.repo.PrincipalRoles(ctx, t, principalID)
	if err != nil {
		return nil, err
	}
	if refs == nil {
		refs = []RoleRef{}
	}
	r.cache.StoreRoles(ctx, t, principalID, refs)
	return refs, nil
}

// PermissionNames returns the principal's flattened permission list, read
// through the fact cache.
func (r *Resolver) PermissionNames(ctx context.Context, t PrincipalType, principalID int64) ([]string, error) {
	if !t.Valid() {
		return nil, ErrInvalidPrincipalType
	}
	if names, ok := r.cache.PermissionNames(ctx, t, principalID); ok {
		return names, nil
	}
	names, err := r.repo.PrincipalPermissionNames(ctx, t, principalID)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	r.cache.StorePermissionNames(ctx, t, principalID, names)
	return names, nil
}

// InvalidateCache unconditionally deletes the principal's cached facts.
func (r *Resolver) InvalidateCache(ctx context.Context, t PrincipalType, principalID int64) error {
	return r.cache.Invalidate(ctx, t, principalID)
}
