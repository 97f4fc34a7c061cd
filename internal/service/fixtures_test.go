package service

import (
	"context"
	"io"
	"strings"
	"testing"

	"civil-erp/internal/database/dbtest"
	"civil-erp/internal/model"
	"civil-erp/internal/nic"
	"civil-erp/internal/repository"
	"civil-erp/pkg/secret"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testEnv struct {
	db        *gorm.DB
	log       *logrus.Logger
	users     repository.UserRepository
	roles     repository.RoleRepository
	invoices  repository.EInvoiceRepository
	creds     repository.GSTCredentialRepository
	auditRepo repository.AuditRepository
	audit     AuditService
	resolver  PermissionResolver
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := dbtest.New(t)
	log := logrus.New()
	log.SetOutput(io.Discard)

	env := &testEnv{
		db:        db,
		log:       log,
		users:     repository.NewUserRepository(db),
		roles:     repository.NewRoleRepository(db),
		invoices:  repository.NewEInvoiceRepository(db),
		creds:     repository.NewGSTCredentialRepository(db),
		auditRepo: repository.NewAuditRepository(db),
	}
	env.audit = NewAuditService(env.auditRepo, log)
	env.resolver = NewPermissionResolver(env.roles)
	return env
}

func (e *testEnv) roleService() RoleService {
	return NewRoleService(e.roles, e.users, repository.NewTransactionManager(e.db), e.audit, e.log)
}

func (e *testEnv) createUser(t *testing.T, email, legacyRole string, roleID *uuid.UUID) *model.User {
	t.Helper()
	u := &model.User{Email: email, Name: email, Password: "x", Role: legacyRole, RoleID: roleID, IsActive: true}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func (e *testEnv) createRole(t *testing.T, name string, perms ...model.ModulePermission) *model.Role {
	t.Helper()
	r := &model.Role{Name: name, Permissions: perms, IsActive: true}
	require.NoError(t, e.roles.Create(context.Background(), r))
	return r
}

func (e *testEnv) auditActions(t *testing.T, entityID string) []string {
	t.Helper()
	logs, err := e.auditRepo.ListByEntity(context.Background(), entityID)
	require.NoError(t, err)
	actions := make([]string, 0, len(logs))
	for _, l := range logs {
		actions = append(actions, l.Action)
	}
	return actions
}

func newCipher(t *testing.T) *secret.Cipher {
	t.Helper()
	c, err := secret.NewCipher(strings.Repeat("k", 32))
	require.NoError(t, err)
	return c
}

func (e *testEnv) portalClient(c *secret.Cipher) *nic.Client {
	return nic.NewClient(c, nic.DefaultTimeouts, nil, e.log)
}

func (e *testEnv) gstSettings(t *testing.T) (GSTSettingsService, CredentialProvider, *secret.Cipher) {
	t.Helper()
	c := newCipher(t)
	provider := NewCredentialProvider(e.creds, nil, e.log)
	return NewGSTSettingsService(e.creds, provider, c, e.portalClient(c), e.audit), provider, c
}

func credentialsFor(url string) SaveGSTCredentialsRequest {
	return SaveGSTCredentialsRequest{
		GSTIN:        "33AAAAA0000A1Z5",
		Username:     "api_user",
		Password:     "portal-pass",
		ClientID:     "client-1",
		ClientSecret: "client-secret",
		NICURL:       url,
	}
}
