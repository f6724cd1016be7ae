package rbac

import "errors"

var (
	// ErrRoleNotFound indicates the referenced role does not exist.
	ErrRoleNotFound = errors.New("rbac: role not found")
	// ErrPermissionNotFound indicates the referenced permission does not exist.
	ErrPermissionNotFound = errors.New("rbac: permission not found")
	// ErrSystemRoleImmutable rejects permission edits on system roles.
	ErrSystemRoleImmutable = errors.New("rbac: cannot modify permissions of a system role")
	// ErrInvalidPrincipalType rejects principal types outside admin/user.
	ErrInvalidPrincipalType = errors.New("rbac: invalid principal type")
)
