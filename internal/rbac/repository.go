package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines graph-store access for roles, permissions and the
// two junction relations. Referential integrity is enforced by the
// database; constraint violations propagate to callers untranslated.
type Repository interface {
	GetRole(ctx context.Context, id int64) (Role, error)
	FindRoleByName(ctx context.Context, principalType PrincipalType, name string) (Role, error)
	CreateRole(ctx context.Context, principalType PrincipalType, name string, isSystem bool) (Role, error)

	GetPermission(ctx context.Context, id int64) (Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	ChildPermissions(ctx context.Context, parentID int64) ([]Permission, error)

	PrincipalRoleIDs(ctx context.Context, principalType PrincipalType, principalID int64) ([]int64, error)
	PrincipalRoles(ctx context.Context, principalType PrincipalType, principalID int64) ([]RoleRef, error)
	PrincipalPermissionNames(ctx context.Context, principalType PrincipalType, principalID int64) ([]string, error)
	AddPrincipalRoles(ctx context.Context, principalType PrincipalType, principalID int64, roleIDs []int64) error
	RemovePrincipalRoles(ctx context.Context, principalType PrincipalType, principalID int64, roleIDs []int64) error

	AddRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	RemoveRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	RoleGrants(ctx context.Context) ([]RoleGrant, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// GetRole fetches a role by ID.
func (r *PGRepository) GetRole(ctx context.Context, id int64) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, principal_type, is_system, status, created_at, updated_at FROM roles WHERE id = $1`, id)
	return scanRole(row)
}

// FindRoleByName fetches a role by its name within a principal type scope.
func (r *PGRepository) FindRoleByName(ctx context.Context, principalType PrincipalType, name string) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, principal_type, is_system, status, created_at, updated_at FROM roles WHERE principal_type = $1 AND name = $2`, principalType, name)
	return scanRole(row)
}

// CreateRole inserts a new role.
func (r *PGRepository) CreateRole(ctx context.Context, principalType PrincipalType, name string, isSystem bool) (Role, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO roles (name, principal_type, is_system, status)
		VALUES ($1, $2, $3, 'active')
		RETURNING id, name, principal_type, is_system, status, created_at, updated_at`,
		name, principalType, isSystem)
	return scanRole(row)
}

// GetPermission fetches a permission by ID.
func (r *PGRepository) GetPermission(ctx context.Context, id int64) (Permission, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, principal_type, parent_id FROM permissions WHERE id = $1`, id)
	perm, err := scanPermission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, ErrPermissionNotFound
		}
		return Permission{}, err
	}
	return perm, nil
}

// ListPermissions returns all permissions ordered by name.
func (r *PGRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, principal_type, parent_id FROM permissions ORDER BY principal_type, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPermissions(rows)
}

// ChildPermissions returns the permissions directly under a parent node.
func (r *PGRepository) ChildPermissions(ctx context.Context, parentID int64) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, principal_type, parent_id FROM permissions WHERE parent_id = $1 ORDER BY name`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPermissions(rows)
}

// PrincipalRoleIDs returns the role IDs currently linked to a principal.
func (r *PGRepository) PrincipalRoleIDs(ctx context.Context, principalType PrincipalType, principalID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT role_id FROM principal_roles WHERE principal_type = $1 AND principal_id = $2`, principalType, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PrincipalRoles returns the roles linked to a principal joined to their names.
func (r *PGRepository) PrincipalRoles(ctx context.Context, principalType PrincipalType, principalID int64) ([]RoleRef, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.name
		FROM principal_roles pr
		JOIN roles r ON r.id = pr.role_id
		WHERE pr.principal_type = $1 AND pr.principal_id = $2
		ORDER BY r.name`, principalType, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refs []RoleRef
	for rows.Next() {
		var ref RoleRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// PrincipalPermissionNames returns the flattened, deduplicated permission
// names a principal holds through its roles.
func (r *PGRepository) PrincipalPermissionNames(ctx context.Context, principalType PrincipalType, principalID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT p.name
		FROM principal_roles pr
		JOIN role_permissions rp ON rp.role_id = pr.role_id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE pr.principal_type = $1 AND pr.principal_id = $2
		ORDER BY p.name`, principalType, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// AddPrincipalRoles links roles to a principal in a single batch insert.
func (r *PGRepository) AddPrincipalRoles(ctx context.Context, principalType PrincipalType, principalID int64, roleIDs []int64) error {
	if len(roleIDs) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO principal_roles (principal_id, principal_type, role_id)
		SELECT $1, $2, unnest($3::bigint[])
		ON CONFLICT DO NOTHING`, principalID, principalType, roleIDs)
	return err
}

// RemovePrincipalRoles unlinks the given roles from a principal.
func (r *PGRepository) RemovePrincipalRoles(ctx context.Context, principalType PrincipalType, principalID int64, roleIDs []int64) error {
	if len(roleIDs) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
		DELETE FROM principal_roles
		WHERE principal_type = $1 AND principal_id = $2 AND role_id = ANY($3::bigint[])`,
		principalType, principalID, roleIDs)
	return err
}

// AddRolePermissions links permissions to a role, skipping duplicates.
func (r *PGRepository) AddRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if len(permissionIDs) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT DO NOTHING`, roleID, permissionIDs)
	return err
}

// RemoveRolePermissions unlinks permissions from a role.
func (r *PGRepository) RemoveRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if len(permissionIDs) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
		DELETE FROM role_permissions
		WHERE role_id = $1 AND permission_id = ANY($2::bigint[])`, roleID, permissionIDs)
	return err
}

// RoleGrants returns every role joined to its permissions. Roles without
// permissions are included with an empty permission name so the matrix
// builder can still emit them.
func (r *PGRepository) RoleGrants(ctx context.Context) ([]RoleGrant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.name, r.principal_type, p.name
		FROM roles r
		LEFT JOIN role_permissions rp ON rp.role_id = r.id
		LEFT JOIN permissions p ON p.id = rp.permission_id
		ORDER BY r.principal_type, r.name, p.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []RoleGrant
	for rows.Next() {
		var grant RoleGrant
		var permName pgtype.Text
		if err := rows.Scan(&grant.RoleName, &grant.PrincipalType, &permName); err != nil {
			return nil, err
		}
		if permName.Valid {
			grant.PermissionName = permName.String
		}
		grants = append(grants, grant)
	}
	return grants, rows.Err()
}

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	var createdAt, updatedAt pgtype.Timestamptz
	if err := row.Scan(&role.ID, &role.Name, &role.PrincipalType, &role.IsSystem, &role.Status, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrRoleNotFound
		}
		return Role{}, err
	}
	role.CreatedAt = createdAt.Time
	role.UpdatedAt = updatedAt.Time
	return role, nil
}

func scanPermission(row pgx.Row) (Permission, error) {
	var perm Permission
	var parentID pgtype.Int8
	if err := row.Scan(&perm.ID, &perm.Name, &perm.PrincipalType, &parentID); err != nil {
		return Permission{}, err
	}
	if parentID.Valid {
		id := parentID.Int64
		perm.ParentID = &id
	}
	return perm, nil
}

func collectPermissions(rows pgx.Rows) ([]Permission, error) {
	var perms []Permission
	for rows.Next() {
		var perm Permission
		var parentID pgtype.Int8
		if err := rows.Scan(&perm.ID, &perm.Name, &perm.PrincipalType, &parentID); err != nil {
			return nil, err
		}
		if parentID.Valid {
			id := parentID.Int64
			perm.ParentID = &id
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
