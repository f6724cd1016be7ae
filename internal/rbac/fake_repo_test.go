package rbac

import (
	"context"
	"fmt"
	"sort"
)

// fakeRepo is an in-memory Repository used across the package tests. It
// counts repository hits so cache behavior can be asserted.
type fakeRepo struct {
	roles      map[int64]Role
	perms      map[int64]Permission
	links      map[string]map[int64]struct{} // principal key -> role IDs
	rolePerms  map[int64]map[int64]struct{}
	nextRoleID int64

	principalRoleCalls int
	principalPermCalls int
	grantCalls         int
	addedRolePerms     [][]int64
	removedRolePerms   [][]int64
	addedLinks         [][]int64
	removedLinks       [][]int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		roles:     make(map[int64]Role),
		perms:     make(map[int64]Permission),
		links:     make(map[string]map[int64]struct{}),
		rolePerms: make(map[int64]map[int64]struct{}),
	}
}

func (f *fakeRepo) addRole(id int64, name string, t PrincipalType, system bool) {
	f.roles[id] = Role{ID: id, Name: name, PrincipalType: t, IsSystem: system, Status: "active"}
	if id >= f.nextRoleID {
		f.nextRoleID = id + 1
	}
}

func (f *fakeRepo) addPerm(id int64, name string, t PrincipalType, parentID *int64) {
	f.perms[id] = Permission{ID: id, Name: name, PrincipalType: t, ParentID: parentID}
}

func (f *fakeRepo) link(t PrincipalType, principalID int64, roleIDs ...int64) {
	key := principalKey(t, principalID)
	if f.links[key] == nil {
		f.links[key] = make(map[int64]struct{})
	}
	for _, id := range roleIDs {
		f.links[key][id] = struct{}{}
	}
}

func (f *fakeRepo) grant(roleID int64, permIDs ...int64) {
	if f.rolePerms[roleID] == nil {
		f.rolePerms[roleID] = make(map[int64]struct{})
	}
	for _, id := range permIDs {
		f.rolePerms[roleID][id] = struct{}{}
	}
}

func principalKey(t PrincipalType, id int64) string {
	return fmt.Sprintf("%s:%d", t, id)
}

func (f *fakeRepo) GetRole(ctx context.Context, id int64) (Role, error) {
	role, ok := f.roles[id]
	if !ok {
		return Role{}, ErrRoleNotFound
	}
	return role, nil
}

func (f *fakeRepo) FindRoleByName(ctx context.Context, t PrincipalType, name string) (Role, error) {
	for _, role := range f.roles {
		if role.PrincipalType == t && role.Name == name {
			return role, nil
		}
	}
	return Role{}, ErrRoleNotFound
}

func (f *fakeRepo) CreateRole(ctx context.Context, t PrincipalType, name string, isSystem bool) (Role, error) {
	if f.nextRoleID == 0 {
		f.nextRoleID = 1
	}
	role := Role{ID: f.nextRoleID, Name: name, PrincipalType: t, IsSystem: isSystem, Status: "active"}
	f.roles[role.ID] = role
	f.nextRoleID++
	return role, nil
}

func (f *fakeRepo) GetPermission(ctx context.Context, id int64) (Permission, error) {
	perm, ok := f.perms[id]
	if !ok {
		return Permission{}, ErrPermissionNotFound
	}
	return perm, nil
}

func (f *fakeRepo) ListPermissions(ctx context.Context) ([]Permission, error) {
	out := make([]Permission, 0, len(f.perms))
	for _, perm := range f.perms {
		out = append(out, perm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) ChildPermissions(ctx context.Context, parentID int64) ([]Permission, error) {
	var out []Permission
	for _, perm := range f.perms {
		if perm.ParentID != nil && *perm.ParentID == parentID {
			out = append(out, perm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) PrincipalRoleIDs(ctx context.Context, t PrincipalType, principalID int64) ([]int64, error) {
	var ids []int64
	for id := range f.links[principalKey(t, principalID)] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeRepo) PrincipalRoles(ctx context.Context, t PrincipalType, principalID int64) ([]RoleRef, error) {
	f.principalRoleCalls++
	ids, _ := f.PrincipalRoleIDs(ctx, t, principalID)
	var refs []RoleRef
	for _, id := range ids {
		if role, ok := f.roles[id]; ok {
			refs = append(refs, RoleRef{ID: role.ID, Name: role.Name})
		}
	}
	return refs, nil
}

func (f *fakeRepo) PrincipalPermissionNames(ctx context.Context, t PrincipalType, principalID int64) ([]string, error) {
	f.principalPermCalls++
	seen := make(map[string]struct{})
	for roleID := range f.links[principalKey(t, principalID)] {
		for permID := range f.rolePerms[roleID] {
			if perm, ok := f.perms[permID]; ok {
				seen[perm.Name] = struct{}{}
			}
		}
	}
	var names []string
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeRepo) AddPrincipalRoles(ctx context.Context, t PrincipalType, principalID int64, roleIDs []int64) error {
	f.addedLinks = append(f.addedLinks, append([]int64(nil), roleIDs...))
	f.link(t, principalID, roleIDs...)
	return nil
}

func (f *fakeRepo) RemovePrincipalRoles(ctx context.Context, t PrincipalType, principalID int64, roleIDs []int64) error {
	f.removedLinks = append(f.removedLinks, append([]int64(nil), roleIDs...))
	key := principalKey(t, principalID)
	for _, id := range roleIDs {
		delete(f.links[key], id)
	}
	return nil
}

func (f *fakeRepo) AddRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	f.addedRolePerms = append(f.addedRolePerms, append([]int64(nil), permissionIDs...))
	f.grant(roleID, permissionIDs...)
	return nil
}

func (f *fakeRepo) RemoveRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	f.removedRolePerms = append(f.removedRolePerms, append([]int64(nil), permissionIDs...))
	for _, id := range permissionIDs {
		delete(f.rolePerms[roleID], id)
	}
	return nil
}

func (f *fakeRepo) RoleGrants(ctx context.Context) ([]RoleGrant, error) {
	f.grantCalls++
	roleIDs := make([]int64, 0, len(f.roles))
	for id := range f.roles {
		roleIDs = append(roleIDs, id)
	}
	sort.Slice(roleIDs, func(i, j int) bool { return roleIDs[i] < roleIDs[j] })

	var grants []RoleGrant
	for _, roleID := range roleIDs {
		role := f.roles[roleID]
		var permNames []string
		for permID := range f.rolePerms[roleID] {
			if perm, ok := f.perms[permID]; ok {
				permNames = append(permNames, perm.Name)
			}
		}
		sort.Strings(permNames)
		if len(permNames) == 0 {
			grants = append(grants, RoleGrant{RoleName: role.Name, PrincipalType: role.PrincipalType})
			continue
		}
		for _, name := range permNames {
			grants = append(grants, RoleGrant{RoleName: role.Name, PrincipalType: role.PrincipalType, PermissionName: name})
		}
	}
	return grants, nil
}

var _ Repository = (*fakeRepo)(nil)
