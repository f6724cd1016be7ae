package rbac

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"
)

// MatrixBuilder maintains the denormalized role/permission view cached
// across processes. Reads are served from cache; a miss (or a forced
// refresh) rebuilds the matrix from the graph store and overwrites the
// cache entry wholesale. Permission mutations rebuild eagerly so every
// subsequent read observes them.
type MatrixBuilder struct {
	repo   Repository
	cache  *FactCache
	logger *slog.Logger
	group  singleflight.Group
}

// NewMatrixBuilder constructs a MatrixBuilder.
func NewMatrixBuilder(repo Repository, cache *FactCache, logger *slog.Logger) *MatrixBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &MatrixBuilder{repo: repo, cache: cache, logger: logger}
}

// Permissions returns the permission matrix. With force false the cached
// matrix is preferred; on a miss the matrix is rebuilt from the graph
// store, with concurrent miss rebuilds collapsed into one. A forced
// rebuild always runs its own query: an in-flight miss rebuild may have
// read its rows before the caller's write committed, so sharing it
// would cache pre-mutation data. Forget detaches that flight so later
// misses cannot join it either.
func (b *MatrixBuilder) Permissions(ctx context.Context, force bool) (Matrix, error) {
	if force {
		b.group.Forget(matrixKey)
		return b.rebuild(ctx)
	}
	if m, ok := b.cache.Matrix(ctx); ok {
		return m, nil
	}
	result, err, _ := b.group.Do(matrixKey, func() (any, error) {
		return b.rebuild(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(Matrix), nil
}

// UpdatePermission grants or revokes a permission on a role. System
// roles are rejected before any write. A parent permission fans out to
// all of its children; a childless parent resolves to an empty target
// set and the call is a harmless no-op. On success the matrix is rebuilt
// eagerly; callers needing the fresh matrix must re-fetch it.
func (b *MatrixBuilder) UpdatePermission(ctx context.Context, roleID, permissionID int64, grant bool) error {
	role, err := b.repo.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return ErrSystemRoleImmutable
	}

	perm, err := b.repo.GetPermission(ctx, permissionID)
	if err != nil {
		return err
	}

	var targets []int64
	if perm.ParentID != nil {
		targets = []int64{perm.ID}
	} else {
		children, err := b.repo.ChildPermissions(ctx, perm.ID)
		if err != nil {
			return err
		}
		for _, child := range children {
			targets = append(targets, child.ID)
		}
	}
	if len(targets) == 0 {
		return nil
	}

	if grant {
		err = b.repo.AddRolePermissions(ctx, roleID, targets)
	} else {
		err = b.repo.RemoveRolePermissions(ctx, roleID, targets)
	}
	if err != nil {
		return err
	}

	if _, err := b.Permissions(ctx, true); err != nil {
		return err
	}
	return nil
}

// rebuild queries every role with its permissions and regroups the rows
// by principal type and role name. An empty grant set means no roles
// exist; the empty matrix is returned without touching the cache so a
// transient read problem cannot poison it.
func (b *MatrixBuilder) rebuild(ctx context.Context) (Matrix, error) {
	grants, err := b.repo.RoleGrants(ctx)
	if err != nil {
		return nil, err
	}
	matrix := make(Matrix)
	if len(grants) == 0 {
		return matrix, nil
	}
	for _, grant := range grants {
		byRole, ok := matrix[grant.PrincipalType]
		if !ok {
			byRole = make(map[string][]string)
			matrix[grant.PrincipalType] = byRole
		}
		if _, ok := byRole[grant.RoleName]; !ok {
			byRole[grant.RoleName] = []string{}
		}
		if grant.PermissionName != "" {
			byRole[grant.RoleName] = append(byRole[grant.RoleName], grant.PermissionName)
		}
	}
	if err := b.cache.StoreMatrix(ctx, matrix); err != nil {
		b.logger.Warn("store permission matrix", slog.Any("error", err))
	}
	return matrix, nil
}
