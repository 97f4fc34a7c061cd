package service

import (
	"context"
	"testing"

	"civil-erp/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogsIncludeActor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	actor := env.createUser(t, "admin@example.com", model.UserRoleAdmin, nil)

	env.audit.Record(ctx, &actor.ID, model.ActionCreateRole, "r-1", "Accountant", map[string]string{"k": "v"})
	env.audit.Record(ctx, nil, model.ActionInitSystemRoles, "", "", nil)

	logs, total, err := env.audit.GetAuditLogs(ctx, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, logs, 2)

	byAction := map[string]AuditLogResponse{}
	for _, l := range logs {
		byAction[l.Action] = l
	}
	created := byAction[model.ActionCreateRole]
	assert.Equal(t, actor.ID.String(), created.UserID)
	assert.Equal(t, actor.Name, created.UserName)
	assert.JSONEq(t, `{"k":"v"}`, created.Details)
	assert.Empty(t, byAction[model.ActionInitSystemRoles].UserID)
}

func TestCredentialProviderReturnsCopy(t *testing.T) {
	env := newTestEnv(t)
	svc, provider, _ := env.gstSettings(t)
	ctx := context.Background()

	_, err := svc.Save(ctx, credentialsFor(""), uuid.New())
	require.NoError(t, err)

	first := provider.Current()
	require.NotNil(t, first)
	first.Username = "mutated"
	assert.Equal(t, "api_user", provider.Current().Username)

	require.NoError(t, env.creds.DeleteAll(ctx))
	assert.NotNil(t, provider.Current(), "only Reload observes the store")
	require.NoError(t, provider.Reload(ctx))
	assert.Nil(t, provider.Current())
}
