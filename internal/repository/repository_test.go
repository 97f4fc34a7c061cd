package repository

import (
	"context"
	"errors"
	"testing"

	"civil-erp/internal/database/dbtest"
	"civil-erp/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	return dbtest.New(t)
}

func TestRoleRepositoryFindByNameIsCaseInsensitive(t *testing.T) {
	db := newTestDB(t)
	repo := NewRoleRepository(db)
	ctx := context.Background()

	role := &model.Role{Name: "Accountant", IsActive: true}
	require.NoError(t, repo.Create(ctx, role))

	found, err := repo.FindByName(ctx, "  accountant ", nil)
	require.NoError(t, err)
	assert.Equal(t, role.ID, found.ID)

	_, err = repo.FindByName(ctx, "ACCOUNTANT", &role.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestRoleRepositoryFindActiveByIDSkipsInactive(t *testing.T) {
	db := newTestDB(t)
	repo := NewRoleRepository(db)
	ctx := context.Background()

	role := &model.Role{Name: "Site Lead", IsActive: true}
	require.NoError(t, repo.Create(ctx, role))
	role.IsActive = false
	require.NoError(t, repo.Update(ctx, role))

	_, err := repo.FindActiveByID(ctx, role.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	found, err := repo.FindByID(ctx, role.ID)
	require.NoError(t, err)
	assert.False(t, found.IsActive)

	active, err := repo.List(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := repo.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRoleRepositoryPersistsPermissions(t *testing.T) {
	db := newTestDB(t)
	repo := NewRoleRepository(db)
	ctx := context.Background()

	role := &model.Role{
		Name:     "Accountant",
		IsActive: true,
		Permissions: []model.ModulePermission{
			{Module: model.ModuleFinancial, View: true, Create: true, Edit: true},
		},
	}
	require.NoError(t, repo.Create(ctx, role))

	found, err := repo.FindByID(ctx, role.ID)
	require.NoError(t, err)
	require.Len(t, found.Permissions, 1)
	assert.Equal(t, model.ModulePermission{Module: model.ModuleFinancial, View: true, Create: true, Edit: true}, found.Permissions[0])
}

func TestUserRepositoryRoleCounts(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepository(db)
	roles := NewRoleRepository(db)
	ctx := context.Background()

	role := &model.Role{Name: "Accountant", IsActive: true}
	require.NoError(t, roles.Create(ctx, role))

	a := &model.User{Email: "a@example.com", Name: "A", Password: "x", Role: model.UserRoleFinance, IsActive: true}
	b := &model.User{Email: "b@example.com", Name: "B", Password: "x", Role: model.UserRoleFinance, IsActive: true}
	require.NoError(t, users.Create(ctx, a))
	require.NoError(t, users.Create(ctx, b))
	require.NoError(t, users.SetRoleID(ctx, a.ID, &role.ID))

	count, err := users.CountByRoleID(ctx, role.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	withRole, err := users.CountWithRole(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, withRole)

	perRole, err := users.CountPerRole(ctx)
	require.NoError(t, err)
	require.Len(t, perRole, 1)
	assert.Equal(t, role.ID, perRole[0].RoleID)

	require.NoError(t, users.SetRoleID(ctx, a.ID, nil))
	reloaded, err := users.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.RoleID)
}

func TestEInvoiceRepositoryStats(t *testing.T) {
	db := newTestDB(t)
	repo := NewEInvoiceRepository(db)
	ctx := context.Background()

	for i, status := range []string{model.EInvoiceIRNGenerated, model.EInvoiceRejected, model.EInvoiceAuthFailed} {
		inv := &model.EInvoice{
			DocumentNumber:    "INV-" + string(rune('A'+i)),
			DocumentDate:      "01/04/2026",
			DocumentType:      "INV",
			SupplyType:        "B2B",
			SellerGSTIN:       "33AAAAA0000A1Z5",
			SellerLegalName:   "Seller",
			BuyerGSTIN:        "33BBBBB0000B1Z5",
			BuyerLegalName:    "Buyer",
			TotalTaxableValue: decimal.NewFromInt(100),
			TotalInvoiceValue: decimal.NewFromInt(118),
			Status:            status,
		}
		require.NoError(t, repo.Create(ctx, inv))
	}

	failed, err := repo.CountByStatus(ctx, model.EInvoiceRejected, model.EInvoiceAuthFailed, model.EInvoiceSubmissionFailed)
	require.NoError(t, err)
	assert.EqualValues(t, 2, failed)

	total, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	sum, err := repo.SumTotalValue(ctx)
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.NewFromInt(354)), sum.String())

	list, count, err := repo.List(ctx, model.EInvoiceIRNGenerated, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	assert.Len(t, list, 1)
}

func TestGSTCredentialRepositoryIsSingleton(t *testing.T) {
	db := newTestDB(t)
	repo := NewGSTCredentialRepository(db)
	ctx := context.Background()

	_, err := repo.Get(ctx)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	first := &model.GSTCredential{GSTIN: "g1", Username: "u", PasswordEnc: "p", ClientID: "c", ClientSecretEnc: "s", NICURL: model.DefaultNICURL, IsSandbox: false}
	require.NoError(t, repo.Upsert(ctx, first))
	assert.False(t, first.IsSandbox)
	stored, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.False(t, stored.IsSandbox)

	require.NoError(t, repo.Upsert(ctx, &model.GSTCredential{GSTIN: "g2", Username: "u", PasswordEnc: "p", ClientID: "c", ClientSecretEnc: "s", NICURL: model.DefaultNICURL, IsSandbox: true}))

	var count int64
	require.NoError(t, db.Model(&model.GSTCredential{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	cred, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "g2", cred.GSTIN)
	assert.True(t, cred.IsSandbox)

	require.NoError(t, repo.DeleteAll(ctx))
	_, err = repo.Get(ctx)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestTransactionManagerRollsBack(t *testing.T) {
	db := newTestDB(t)
	tx := NewTransactionManager(db)
	roles := NewRoleRepository(db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := tx.RunInTx(ctx, func(txCtx context.Context) error {
		require.NoError(t, roles.Create(txCtx, &model.Role{Name: "Temp", IsActive: true}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	count, err := roles.Count(ctx, false)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}

func TestTransactionManagerJoinsOuterTransaction(t *testing.T) {
	db := newTestDB(t)
	tx := NewTransactionManager(db)
	roles := NewRoleRepository(db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := tx.RunInTx(ctx, func(outer context.Context) error {
		require.NoError(t, tx.RunInTx(outer, func(inner context.Context) error {
			assert.True(t, inTx(inner))
			return roles.Create(inner, &model.Role{Name: "Nested", IsActive: true})
		}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	count, err := roles.Count(ctx, false)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}
