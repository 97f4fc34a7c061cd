package service

import (
	"context"
	"testing"

	"civil-erp/internal/model"
	"civil-erp/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestCreateRoleValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := env.roleService()
	ctx := context.Background()
	actor := uuid.New()

	role, err := svc.CreateRole(ctx, CreateRoleRequest{
		Name:        "  Accountant ",
		Permissions: []model.ModulePermission{{Module: model.ModuleFinancial, View: true}},
	}, actor)
	require.NoError(t, err)
	assert.Equal(t, "Accountant", role.Name)
	assert.False(t, role.IsSystemRole)
	assert.Equal(t, []string{model.ActionCreateRole}, env.auditActions(t, role.ID.String()))

	_, err = svc.CreateRole(ctx, CreateRoleRequest{Name: "accountant"}, actor)
	assert.True(t, apperror.Is(err, apperror.Conflict))

	_, err = svc.CreateRole(ctx, CreateRoleRequest{Name: "   "}, actor)
	assert.True(t, apperror.Is(err, apperror.Validation))

	_, err = svc.CreateRole(ctx, CreateRoleRequest{
		Name:        "Warehouse",
		Permissions: []model.ModulePermission{{Module: "warehouse", View: true}},
	}, actor)
	assert.True(t, apperror.Is(err, apperror.Validation))
	assert.Equal(t, "Invalid module: warehouse", apperror.Message(err))
}

func TestSystemRoleIsProtected(t *testing.T) {
	env := newTestEnv(t)
	svc := env.roleService()
	ctx := context.Background()
	actor := uuid.New()

	_, err := svc.InitSystemRoles(ctx, &actor)
	require.NoError(t, err)
	admin, err := env.roles.FindByName(ctx, "Administrator", nil)
	require.NoError(t, err)
	require.True(t, admin.IsSystemRole)

	err = svc.DeleteRole(ctx, admin.ID, actor)
	assert.True(t, apperror.Is(err, apperror.Conflict))

	_, err = svc.UpdateRole(ctx, admin.ID, UpdateRoleRequest{Name: strPtr("Root")}, actor)
	assert.True(t, apperror.Is(err, apperror.Conflict))

	_, err = svc.UpdateRole(ctx, admin.ID, UpdateRoleRequest{
		Description: strPtr("changed"),
		IsActive:    boolPtr(false),
	}, actor)
	assert.True(t, apperror.Is(err, apperror.InvalidState))

	stored, err := svc.GetRole(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, admin.Name, stored.Name)
	assert.Equal(t, admin.Description, stored.Description)
	assert.True(t, stored.IsActive)
	assert.Equal(t, admin.Permissions, stored.Permissions)
}

func TestUpdateRoleAppliesPartialChanges(t *testing.T) {
	env := newTestEnv(t)
	svc := env.roleService()
	ctx := context.Background()
	actor := uuid.New()

	role := env.createRole(t, "Site Lead", model.ModulePermission{Module: model.ModuleProjects, View: true})
	env.createRole(t, "Auditor")

	_, err := svc.UpdateRole(ctx, role.ID, UpdateRoleRequest{Name: strPtr("AUDITOR")}, actor)
	assert.True(t, apperror.Is(err, apperror.Conflict))

	perms := []model.ModulePermission{{Module: model.ModuleProjects, View: true, Edit: true}}
	updated, err := svc.UpdateRole(ctx, role.ID, UpdateRoleRequest{Permissions: &perms, IsActive: boolPtr(false)}, actor)
	require.NoError(t, err)
	assert.Equal(t, "Site Lead", updated.Name)
	assert.False(t, updated.IsActive)

	stored, err := env.roles.FindByID(ctx, role.ID)
	require.NoError(t, err)
	assert.Equal(t, perms, stored.Permissions)
	assert.False(t, stored.IsActive)

	_, err = svc.UpdateRole(ctx, uuid.New(), UpdateRoleRequest{}, actor)
	assert.True(t, apperror.Is(err, apperror.NotFound))
}

func TestDeleteRoleInUse(t *testing.T) {
	env := newTestEnv(t)
	svc := env.roleService()
	ctx := context.Background()
	actor := uuid.New()

	used := env.createRole(t, "Accountant")
	env.createUser(t, "acc@example.com", model.UserRoleFinance, &used.ID)

	err := svc.DeleteRole(ctx, used.ID, actor)
	require.True(t, apperror.Is(err, apperror.Conflict))
	assert.Contains(t, apperror.Message(err), "1 user(s)")

	free := env.createRole(t, "Temp")
	require.NoError(t, svc.DeleteRole(ctx, free.ID, actor))

	_, err = svc.GetRole(ctx, free.ID)
	assert.True(t, apperror.Is(err, apperror.NotFound))
	assert.Contains(t, env.auditActions(t, free.ID.String()), model.ActionDeleteRole)
}

func TestAssignAndRemoveRole(t *testing.T) {
	env := newTestEnv(t)
	svc := env.roleService()
	ctx := context.Background()
	actor := uuid.New()

	role := env.createRole(t, "Accountant")
	user := env.createUser(t, "u@example.com", model.UserRoleSiteEngineer, nil)

	_, err := svc.AssignRole(ctx, uuid.New(), role.ID, actor)
	assert.True(t, apperror.Is(err, apperror.NotFound))
	_, err = svc.AssignRole(ctx, user.ID, uuid.New(), actor)
	assert.True(t, apperror.Is(err, apperror.NotFound))

	assigned, err := svc.AssignRole(ctx, user.ID, role.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, role.ID, assigned.ID)

	listed, err := svc.ListUsersWithRoles(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.NotNil(t, listed[0].RoleName)
	assert.Equal(t, "Accountant", *listed[0].RoleName)

	require.NoError(t, svc.RemoveRole(ctx, user.ID, actor))
	reloaded, err := env.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.RoleID)
	assert.ElementsMatch(t, []string{model.ActionAssignRole, model.ActionRemoveRole}, env.auditActions(t, user.ID.String()))

	role.IsActive = false
	require.NoError(t, env.roles.Update(ctx, role))
	_, err = svc.AssignRole(ctx, user.ID, role.ID, actor)
	assert.True(t, apperror.Is(err, apperror.NotFound))
}

func TestInitSystemRolesIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	svc := env.roleService()
	ctx := context.Background()

	first, err := svc.InitSystemRoles(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultRoles()), first.Created)

	second, err := svc.InitSystemRoles(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, second.Created)
	assert.Equal(t, len(DefaultRoles()), second.Total)
}

func TestRBACStats(t *testing.T) {
	env := newTestEnv(t)
	svc := env.roleService()
	ctx := context.Background()

	acc := env.createRole(t, "Accountant")
	dormant := env.createRole(t, "Dormant")
	dormant.IsActive = false
	require.NoError(t, env.roles.Update(ctx, dormant))

	env.createUser(t, "a@example.com", model.UserRoleFinance, &acc.ID)
	env.createUser(t, "b@example.com", model.UserRoleFinance, &acc.ID)
	env.createUser(t, "c@example.com", model.UserRoleSiteEngineer, nil)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.TotalRoles)
	assert.EqualValues(t, 1, stats.ActiveRoles)
	assert.EqualValues(t, 3, stats.TotalUsers)
	assert.EqualValues(t, 2, stats.UsersWithRBACRole)
	assert.EqualValues(t, 1, stats.UsersWithLegacyRole)
	assert.Equal(t, map[string]int64{"Accountant": 2}, stats.UsersPerRole)
}
