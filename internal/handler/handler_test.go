package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"civil-erp/internal/database/dbtest"
	"civil-erp/internal/middleware"
	"civil-erp/internal/model"
	"civil-erp/internal/nic"
	"civil-erp/internal/repository"
	"civil-erp/internal/service"
	"civil-erp/pkg/secret"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testApp struct {
	router *gin.Engine
	users  repository.UserRepository
	tokens service.TokenManager
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := dbtest.New(t)
	log := logrus.New()
	log.SetOutput(io.Discard)

	key, err := secret.GenerateKey()
	require.NoError(t, err)
	cipher, err := secret.NewCipher(key)
	require.NoError(t, err)

	users := repository.NewUserRepository(db)
	roles := repository.NewRoleRepository(db)
	creds := repository.NewGSTCredentialRepository(db)
	audit := service.NewAuditService(repository.NewAuditRepository(db), log)
	resolver := service.NewPermissionResolver(roles)
	tokens := service.NewTokenManager("handler-test-secret", time.Hour)
	provider := service.NewCredentialProvider(creds, nil, log)
	client := nic.NewClient(cipher, nic.Timeouts{Auth: time.Second, Submit: time.Second, Cancel: time.Second}, nil, log)
	guard := middleware.NewGuard(users, resolver, tokens, nil)

	r := gin.New()
	api := r.Group("")
	NewAuthHandler(service.NewUserService(users, resolver, tokens), guard, time.Hour, false).RegisterRoutes(api)
	NewRoleHandler(service.NewRoleService(roles, users, repository.NewTransactionManager(db), audit, log), guard).RegisterRoutes(api)
	NewSettingsHandler(service.NewGSTSettingsService(creds, provider, cipher, client, audit), guard).RegisterRoutes(api)
	NewEInvoiceHandler(service.NewEInvoiceService(repository.NewEInvoiceRepository(db), provider, client, audit, nil, nil, log), guard).RegisterRoutes(api)
	NewAuditHandler(audit, guard).RegisterRoutes(api)

	return &testApp{router: r, users: users, tokens: tokens}
}

func (a *testApp) tokenFor(t *testing.T, email, legacyRole string) string {
	t.Helper()
	u := &model.User{Email: email, Name: email, Password: "x", Role: legacyRole, IsActive: true}
	require.NoError(t, a.users.Create(context.Background(), u))
	token, err := a.tokens.Issue(u)
	require.NoError(t, err)
	return token
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func invoiceBody(docNo string) model.EInvoiceRequest {
	return model.EInvoiceRequest{
		DocumentNumber:  docNo,
		DocumentDate:    "01/04/2026",
		SellerGSTIN:     "33AAAAA0000A1Z5",
		SellerLegalName: "Civil Corp Pvt Ltd",
		SellerAddress:   "12 Anna Salai",
		SellerLocation:  "Chennai",
		SellerPincode:   "600002",
		BuyerGSTIN:      "33BBBBB0000B1Z5",
		BuyerLegalName:  "Metro Builders",
		BuyerAddress:    "4 Mount Road",
		BuyerLocation:   "Chennai",
		BuyerPincode:    "600006",
		Items: []model.EInvoiceItem{{
			SlNo:            1,
			ItemDescription: "Ready mix concrete",
			HSNCode:         "3824",
			Quantity:        decimal.NewFromInt(1),
			UnitPrice:       decimal.NewFromInt(1000),
			TaxableValue:    decimal.NewFromInt(1000),
			GSTRate:         decimal.NewFromInt(18),
			IGSTAmount:      decimal.NewFromInt(180),
			TotalItemValue:  decimal.NewFromInt(1180),
		}},
		TotalTaxableValue: decimal.NewFromInt(1000),
		TotalIGST:         decimal.NewFromInt(180),
		TotalInvoiceValue: decimal.NewFromInt(1180),
	}
}

func TestRegisterLoginAndMe(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"email": "eng@example.com", "password": "secret1", "name": "Eng",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = app.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "eng@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var tok service.TokenResponse
	decode(t, w, &tok)
	assert.NotEmpty(t, tok.AccessToken)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.AccessTokenCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	w = app.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "eng@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEInvoiceLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t)
	finance := app.tokenFor(t, "fin@example.com", model.UserRoleFinance)

	w := app.do(t, http.MethodPost, "/api/einvoice/generate", finance, invoiceBody("INV-100"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var inv model.EInvoice
	decode(t, w, &inv)
	assert.Equal(t, model.EInvoiceIRNGenerated, inv.Status)
	require.NotNil(t, inv.IRN)

	w = app.do(t, http.MethodPost, "/api/einvoice/generate", finance, invoiceBody("INV-100"))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = app.do(t, http.MethodGet, "/api/einvoice?status=irn_generated&page=1&limit=10", finance, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var page struct {
		Total int64            `json:"total"`
		Page  int              `json:"page"`
		Limit int              `json:"limit"`
		Items []model.EInvoice `json:"items"`
	}
	decode(t, w, &page)
	assert.EqualValues(t, 1, page.Total)
	assert.Equal(t, 10, page.Limit)
	require.Len(t, page.Items, 1)

	w = app.do(t, http.MethodGet, "/api/einvoice?status=bogus", finance, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodGet, "/api/einvoice/not-a-uuid", finance, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(t, http.MethodPost, "/api/einvoice/"+inv.ID.String()+"/cancel?reason=Duplicate", finance, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &inv)
	assert.Equal(t, model.EInvoiceCancelled, inv.Status)
	require.NotNil(t, inv.ErrorDetails)
	assert.Equal(t, "Cancelled: Duplicate", *inv.ErrorDetails)

	w = app.do(t, http.MethodPost, "/api/einvoice/"+inv.ID.String()+"/cancel", finance, service.CancelEInvoiceRequest{Reason: "again"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = app.do(t, http.MethodGet, "/api/einvoice-stats", finance, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats service.EInvoiceStats
	decode(t, w, &stats)
	assert.EqualValues(t, 1, stats.Total)
	assert.EqualValues(t, 1, stats.Cancelled)
	assert.False(t, stats.CredentialsConfigured)
}

func TestEInvoiceRequiresPermission(t *testing.T) {
	app := newTestApp(t)
	engineer := app.tokenFor(t, "eng@example.com", model.UserRoleSiteEngineer)

	w := app.do(t, http.MethodPost, "/api/einvoice/generate", engineer, invoiceBody("INV-1"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(t, http.MethodGet, "/api/einvoice", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGSTSettingsAccess(t *testing.T) {
	app := newTestApp(t)
	admin := app.tokenFor(t, "admin@example.com", model.UserRoleAdmin)
	finance := app.tokenFor(t, "fin@example.com", model.UserRoleFinance)

	w := app.do(t, http.MethodGet, "/api/settings/gst-credentials", finance, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got service.GSTCredentialsResponse
	decode(t, w, &got)
	assert.False(t, got.IsConfigured)

	save := service.SaveGSTCredentialsRequest{
		GSTIN: "33AAAAA0000A1Z5", Username: "api_user", Password: "pw", ClientID: "cid", ClientSecret: "cs",
	}
	w = app.do(t, http.MethodPost, "/api/settings/gst-credentials", finance, save)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(t, http.MethodPost, "/api/settings/gst-credentials", admin, save)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &got)
	assert.True(t, got.IsConfigured)
	assert.Equal(t, "api_user", got.Username)
	assert.NotContains(t, w.Body.String(), `"pw"`)

	w = app.do(t, http.MethodDelete, "/api/settings/gst-credentials", admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodPost, "/api/settings/gst-credentials/test", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuditLogsAdminOnly(t *testing.T) {
	app := newTestApp(t)
	admin := app.tokenFor(t, "admin@example.com", model.UserRoleAdmin)
	finance := app.tokenFor(t, "fin@example.com", model.UserRoleFinance)

	w := app.do(t, http.MethodGet, "/api/audit-logs", finance, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(t, http.MethodPost, "/api/rbac/init", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = app.do(t, http.MethodGet, "/api/audit-logs?limit=5", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var page struct {
		Total int64                      `json:"total"`
		Limit int                        `json:"limit"`
		Items []service.AuditLogResponse `json:"items"`
	}
	decode(t, w, &page)
	assert.Equal(t, 5, page.Limit)
	assert.Positive(t, page.Total)
}
