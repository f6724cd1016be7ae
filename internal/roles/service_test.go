package roles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/castellan/castellan/testing"
)

type fakeRoleRepo struct {
	created []Role
}

func (f *fakeRoleRepo) ListRoles(ctx context.Context, limit, offset int) ([]Role, int, error) {
	return nil, 0, nil
}

func (f *fakeRoleRepo) GetRole(ctx context.Context, id int64) (Role, error) {
	return Role{}, nil
}

func (f *fakeRoleRepo) CreateRole(ctx context.Context, name, principalType string) (Role, error) {
	role := Role{ID: int64(len(f.created) + 1), Name: name, PrincipalType: principalType, Status: "active"}
	f.created = append(f.created, role)
	return role, nil
}

func (f *fakeRoleRepo) RolePermissionNames(ctx context.Context, roleID int64) ([]string, error) {
	return nil, nil
}

func TestCreateRoleTrimsName(t *testing.T) {
	repo := &fakeRoleRepo{}
	svc := NewService(repo)

	role, err := svc.CreateRole(context.Background(), "  editor  ", "admin")
	require.NoError(t, err)
	require.Equal(t, "editor", role.Name)
}

func TestCreateRoleEmptyNameRejected(t *testing.T) {
	repo := &fakeRoleRepo{}
	svc := NewService(repo)

	_, err := svc.CreateRole(context.Background(), "   ", "admin")
	require.Error(t, err)
	require.Empty(t, repo.created)
}

func TestCreateRoleReservedNameRejected(t *testing.T) {
	repo := &fakeRoleRepo{}
	svc := NewService(repo)

	// Names in the personal-role shape would collide with auto-created
	// roles.
	for _, name := range []string{"user-42", "admin-7", " user-1 "} {
		_, err := svc.CreateRole(context.Background(), name, "user")
		require.ErrorIs(t, err, ErrReservedName, name)
	}
	require.Empty(t, repo.created)

	// Near misses are ordinary names.
	for _, name := range []string{"user-admin", "users-42", "user-"} {
		_, err := svc.CreateRole(context.Background(), name, "user")
		require.NoError(t, err, name)
	}
}
