package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	_ "github.com/castellan/castellan/testing"
)

func newTestCache(t *testing.T) (*FactCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewFactCache(client, time.Minute, nil), mr
}

func TestSyncRolesDiff(t *testing.T) {
	repo := newFakeRepo()
	repo.addRole(1, "alpha", PrincipalUser, false)
	repo.addRole(2, "beta", PrincipalUser, false)
	repo.addRole(3, "gamma", PrincipalUser, false)
	repo.addRole(4, "delta", PrincipalUser, false)
	repo.link(PrincipalUser, 7, 1, 2, 3)

	cache, _ := newTestCache(t)
	resolver := NewResolver(repo, cache, nil)

	err := resolver.SyncRoles(context.Background(), PrincipalUser, 7, []int64{2, 3, 4})
	require.NoError(t, err)

	require.Equal(t, [][]int64{{1}}, repo.removedLinks)
	require.Equal(t, [][]int64{{4}}, repo.addedLinks)

	ids, err := repo.PrincipalRoleIDs(context.Background(), PrincipalUser, 7)
	require.NoError(t, err)
	require.Equal(t, []int64{2, 3, 4}, ids)
}

func TestSyncRolesIdempotentStillInvalidates(t *testing.T) {
	repo := newFakeRepo()
	repo.addRole(1, "alpha", PrincipalUser, false)
	repo.link(PrincipalUser, 7, 1)

	cache, mr := newTestCache(t)
	resolver := NewResolver(repo, cache, nil)

	// Prime the cached facts, then sync to an identical target set.
	mr.Set("rbac:user:7:roles", `[{"id":1,"name":"alpha"}]`)
	mr.Set("rbac:user:7:permissions", `["widgets.view"]`)

	err := resolver.SyncRoles(context.Background(), PrincipalUser, 7, []int64{1})
	require.NoError(t, err)

	require.Empty(t, repo.removedLinks)
	require.Empty(t, repo.addedLinks)
	require.False(t, mr.Exists("rbac:user:7:roles"))
	require.False(t, mr.Exists("rbac:user:7:permissions"))
}

func TestSyncRolesInvalidPrincipalType(t *testing.T) {
	cache, _ := newTestCache(t)
	resolver := NewResolver(newFakeRepo(), cache, nil)

	err := resolver.SyncRoles(context.Background(), PrincipalType("robot"), 1, nil)
	require.ErrorIs(t, err, ErrInvalidPrincipalType)
}

func TestAssignRoleMissingRole(t *testing.T) {
	cache, _ := newTestCache(t)
	resolver := NewResolver(newFakeRepo(), cache, nil)

	err := resolver.AssignRole(context.Background(), PrincipalAdmin, 1, 99)
	require.ErrorIs(t, err, ErrRoleNotFound)
}

func TestAssignRoleInvalidatesCache(t *testing.T) {
	repo := newFakeRepo()
	repo.addRole(1, "alpha", PrincipalAdmin, false)

	cache, mr := newTestCache(t)
	resolver := NewResolver(repo, cache, nil)

	mr.Set("rbac:admin:5:roles", `[]`)
	mr.Set("rbac:admin:5:permissions", `[]`)

	err := resolver.AssignRole(context.Background(), PrincipalAdmin, 5, 1)
	require.NoError(t, err)
	require.False(t, mr.Exists("rbac:admin:5:roles"))
	require.False(t, mr.Exists("rbac:admin:5:permissions"))
}

func TestRolesReadThrough(t *testing.T) {
	repo := newFakeRepo()
	repo.addRole(1, "alpha", PrincipalUser, false)
	repo.link(PrincipalUser, 7, 1)

	cache, mr := newTestCache(t)
	resolver := NewResolver(repo, cache, nil)
	ctx := context.Background()

	refs, err := resolver.Roles(ctx, PrincipalUser, 7)
	require.NoError(t, err)
	require.Equal(t, []RoleRef{{ID: 1, Name: "alpha"}}, refs)
	require.Equal(t, 1, repo.principalRoleCalls)

	// Second read is served from cache.
	refs, err = resolver.Roles(ctx, PrincipalUser, 7)
	require.NoError(t, err)
	require.Equal(t, []RoleRef{{ID: 1, Name: "alpha"}}, refs)
	require.Equal(t, 1, repo.principalRoleCalls)

	// After TTL expiry the repo is consulted again.
	mr.FastForward(2 * time.Minute)
	_, err = resolver.Roles(ctx, PrincipalUser, 7)
	require.NoError(t, err)
	require.Equal(t, 2, repo.principalRoleCalls)
}

func TestPermissionNamesCachesEmptyList(t *testing.T) {
	repo := newFakeRepo()
	cache, mr := newTestCache(t)
	resolver := NewResolver(repo, cache, nil)
	ctx := context.Background()

	names, err := resolver.PermissionNames(ctx, PrincipalUser, 3)
	require.NoError(t, err)
	require.Empty(t, names)
	require.True(t, mr.Exists("rbac:user:3:permissions"))

	// The empty list is a valid cached fact, not a miss.
	_, err = resolver.PermissionNames(ctx, PrincipalUser, 3)
	require.NoError(t, err)
	require.Equal(t, 1, repo.principalPermCalls)
}

func TestReadsFallBackWhenCacheDown(t *testing.T) {
	repo := newFakeRepo()
	repo.addRole(1, "alpha", PrincipalUser, false)
	repo.link(PrincipalUser, 7, 1)
	repo.addPerm(10, "widgets.view", PrincipalUser, nil)
	repo.grant(1, 10)

	cache, mr := newTestCache(t)
	resolver := NewResolver(repo, cache, nil)
	mr.SetError("connection refused")

	refs, err := resolver.Roles(context.Background(), PrincipalUser, 7)
	require.NoError(t, err)
	require.Equal(t, []RoleRef{{ID: 1, Name: "alpha"}}, refs)

	names, err := resolver.PermissionNames(context.Background(), PrincipalUser, 7)
	require.NoError(t, err)
	require.Equal(t, []string{"widgets.view"}, names)
}

func TestHasRoleAndHasPermission(t *testing.T) {
	repo := newFakeRepo()
	repo.addRole(1, "alpha", PrincipalUser, false)
	repo.link(PrincipalUser, 7, 1)
	repo.addPerm(10, "widgets.view", PrincipalUser, nil)
	repo.grant(1, 10)

	cache, _ := newTestCache(t)
	resolver := NewResolver(repo, cache, nil)
	ctx := context.Background()

	ok, err := resolver.HasRole(ctx, PrincipalUser, 7, "alpha")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = resolver.HasRole(ctx, PrincipalUser, 7, "beta")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = resolver.HasPermission(ctx, PrincipalUser, 7, "widgets.view")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = resolver.HasPermission(ctx, PrincipalUser, 7, "widgets.edit")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHasPermissionSeesFreshFactsAfterMutation(t *testing.T) {
	repo := newFakeRepo()
	repo.addRole(1, "alpha", PrincipalUser, false)
	repo.addPerm(10, "widgets.view", PrincipalUser, nil)
	repo.grant(1, 10)

	cache, _ := newTestCache(t)
	resolver := NewResolver(repo, cache, nil)
	ctx := context.Background()

	ok, err := resolver.HasPermission(ctx, PrincipalUser, 7, "widgets.view")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, resolver.AssignRole(ctx, PrincipalUser, 7, 1))

	// AssignRole invalidated the cached facts, so the next read must not
	// serve the stale empty list.
	ok, err = resolver.HasPermission(ctx, PrincipalUser, 7, "widgets.view")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAssignPermissionToPrincipalCreatesPersonalRole(t *testing.T) {
	repo := newFakeRepo()
	repo.addPerm(10, "widgets.view", PrincipalUser, nil)
	repo.addPerm(11, "widgets.edit", PrincipalUser, nil)

	cache, _ := newTestCache(t)
	resolver := NewResolver(repo, cache, nil)
	ctx := context.Background()

	err := resolver.AssignPermissionToPrincipal(ctx, PrincipalUser, 7, 10)
	require.NoError(t, err)

	role, err := repo.FindRoleByName(ctx, PrincipalUser, "user-7")
	require.NoError(t, err)
	require.False(t, role.IsSystem)

	ids, err := repo.PrincipalRoleIDs(ctx, PrincipalUser, 7)
	require.NoError(t, err)
	require.Equal(t, []int64{role.ID}, ids)

	// Second grant reuses the existing personal role.
	err = resolver.AssignPermissionToPrincipal(ctx, PrincipalUser, 7, 11)
	require.NoError(t, err)

	again, err := repo.FindRoleByName(ctx, PrincipalUser, "user-7")
	require.NoError(t, err)
	require.Equal(t, role.ID, again.ID)

	names, err := repo.PrincipalPermissionNames(ctx, PrincipalUser, 7)
	require.NoError(t, err)
	require.Equal(t, []string{"widgets.edit", "widgets.view"}, names)
}

func TestPersonalRoleName(t *testing.T) {
	require.Equal(t, "user-42", PersonalRoleName(PrincipalUser, 42))
	require.Equal(t, "admin-1", PersonalRoleName(PrincipalAdmin, 1))

	require.True(t, IsPersonalRoleName("user-42"))
	require.True(t, IsPersonalRoleName("admin-1"))
	require.False(t, IsPersonalRoleName("user-admin"))
	require.False(t, IsPersonalRoleName("users-42"))
	require.False(t, IsPersonalRoleName("editor"))
}
