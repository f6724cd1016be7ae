package rbac

import "time"

// PrincipalType distinguishes the two account populations that can be
// authenticated and authorized.
type PrincipalType string

const (
	// PrincipalAdmin identifies back-office administrator accounts.
	PrincipalAdmin PrincipalType = "admin"
	// PrincipalUser identifies regular user accounts.
	PrincipalUser PrincipalType = "user"
)

// Valid reports whether t is one of the known principal types.
func (t PrincipalType) Valid() bool {
	return t == PrincipalAdmin || t == PrincipalUser
}

// Role represents a named, reusable permission bundle scoped to a
// principal type. System roles are immutable with respect to permission
// edits.
type Role struct {
	ID            int64
	Name          string
	PrincipalType PrincipalType
	IsSystem      bool
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Permission represents a grantable capability. Permissions form a
// two-level tree: top-level entries (ParentID nil) are category markers,
// children are the capabilities actually attached to roles.
type Permission struct {
	ID            int64
	Name          string
	PrincipalType PrincipalType
	ParentID      *int64
}

// RoleRef is the compact role projection handed to callers that only
// need identity and name.
type RoleRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// RoleGrant is one row of the denormalized role/permission join used to
// build the permission matrix. PermissionName is empty for roles that
// have no permissions attached.
type RoleGrant struct {
	RoleName       string
	PrincipalType  PrincipalType
	PermissionName string
}

// Matrix is the global denormalized permission view, grouped by
// principal type, then role name, to the role's permission names.
type Matrix map[PrincipalType]map[string][]string

// PermissionsFor merges the permission lists of the given roles for one
// principal type. The result is deduplicated and safe to attach to a
// session.
func (m Matrix) PermissionsFor(t PrincipalType, roleNames []string) []string {
	byRole, ok := m[t]
	if !ok {
		return []string{}
	}
	seen := make(map[string]struct{})
	merged := make([]string, 0)
	for _, role := range roleNames {
		for _, perm := range byRole[role] {
			if _, dup := seen[perm]; dup {
				continue
			}
			seen[perm] = struct{}{}
			merged = append(merged, perm)
		}
	}
	return merged
}
