package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"civil-erp/internal/database/dbtest"
	"civil-erp/internal/model"
	"civil-erp/internal/repository"
	"civil-erp/internal/service"
	"civil-erp/pkg/apperror"
	"civil-erp/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type guardFixture struct {
	guard  *Guard
	users  repository.UserRepository
	roles  repository.RoleRepository
	tokens service.TokenManager
}

func newGuardFixture(t *testing.T) *guardFixture {
	t.Helper()
	db := dbtest.New(t)
	users := repository.NewUserRepository(db)
	roles := repository.NewRoleRepository(db)
	tokens := service.NewTokenManager("middleware-test-secret", time.Hour)
	return &guardFixture{
		guard:  NewGuard(users, service.NewPermissionResolver(roles), tokens, nil),
		users:  users,
		roles:  roles,
		tokens: tokens,
	}
}

func (f *guardFixture) tokenFor(t *testing.T, email, legacyRole string, role *model.Role) (*model.User, string) {
	t.Helper()
	u := &model.User{Email: email, Name: email, Password: "x", Role: legacyRole, IsActive: true}
	if role != nil {
		u.RoleID = &role.ID
	}
	require.NoError(t, f.users.Create(context.Background(), u))
	token, err := f.tokens.Issue(u)
	require.NoError(t, err)
	return u, token
}

func TestAuthorizeFineGrained(t *testing.T) {
	f := newGuardFixture(t)
	ctx := context.Background()
	role := &model.Role{Name: "Accountant", IsActive: true, Permissions: []model.ModulePermission{
		{Module: model.ModuleEInvoicing, View: true},
	}}
	require.NoError(t, f.roles.Create(ctx, role))
	_, token := f.tokenFor(t, "acc@example.com", model.UserRoleSiteEngineer, role)

	user, res, err := f.guard.Authorize(ctx, token, model.ModuleEInvoicing, model.ActionView)
	require.NoError(t, err)
	assert.Equal(t, "acc@example.com", user.Email)
	assert.Equal(t, service.SourceFineGrained, res.Source)

	_, _, err = f.guard.Authorize(ctx, token, model.ModuleEInvoicing, model.ActionCreate)
	assert.True(t, apperror.Is(err, apperror.Forbidden))
	assert.Equal(t, "Insufficient permissions: create on einvoicing denied", apperror.Message(err))

	_, _, err = f.guard.Authorize(ctx, token, "warehouse", model.ActionView)
	assert.Equal(t, "Access to warehouse denied", apperror.Message(err))
}

func TestAuthorizeLegacyIgnoresFineGrainedRole(t *testing.T) {
	f := newGuardFixture(t)
	ctx := context.Background()
	role := &model.Role{Name: "Everything", IsActive: true, Permissions: []model.ModulePermission{
		{Module: model.ModuleAdmin, View: true, Create: true, Edit: true, Delete: true},
	}}
	require.NoError(t, f.roles.Create(ctx, role))
	_, token := f.tokenFor(t, "eng@example.com", model.UserRoleSiteEngineer, role)

	_, err := f.guard.AuthorizeLegacy(ctx, token, model.UserRoleAdmin)
	assert.True(t, apperror.Is(err, apperror.Forbidden))
	assert.Equal(t, "Insufficient permissions", apperror.Message(err))

	user, err := f.guard.AuthorizeLegacy(ctx, token, model.UserRoleAdmin, model.UserRoleSiteEngineer)
	require.NoError(t, err)
	assert.Equal(t, model.UserRoleSiteEngineer, user.Role)
}

func TestIdentifyFailures(t *testing.T) {
	f := newGuardFixture(t)
	ctx := context.Background()

	_, err := f.guard.Identify(ctx, "")
	assert.True(t, apperror.Is(err, apperror.Unauthenticated))

	_, err = f.guard.Identify(ctx, "garbage")
	assert.True(t, apperror.Is(err, apperror.InvalidCredential))

	ghost, err := f.tokens.Issue(&model.User{ID: uuid.New(), Role: model.UserRoleAdmin})
	require.NoError(t, err)
	_, err = f.guard.Identify(ctx, ghost)
	assert.True(t, apperror.Is(err, apperror.InvalidCredential))
	assert.Equal(t, "User not found", apperror.Message(err))
}

func newRouter(f *guardFixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	ok := func(c *gin.Context) {
		user, _ := CurrentUser(c)
		_, hasRes := CurrentResolution(c)
		c.JSON(http.StatusOK, gin.H{"email": user.Email, "resolved": hasRes})
	}
	r.GET("/me", f.guard.Authenticate(), ok)
	r.GET("/admin", f.guard.RequireAdmin(), ok)
	r.GET("/finance", f.guard.RequireRole(model.UserRoleFinance, model.UserRoleAdmin), ok)
	r.GET("/einvoice", f.guard.RequirePermission(model.ModuleEInvoicing, model.ActionView), ok)
	return r
}

func do(r http.Handler, path, token string, cookie bool) (*httptest.ResponseRecorder, response.Response) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		if cookie {
			req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
		} else {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body response.Response
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestGuardMiddlewareStatuses(t *testing.T) {
	f := newGuardFixture(t)
	r := newRouter(f)
	_, finance := f.tokenFor(t, "fin@example.com", model.UserRoleFinance, nil)
	_, engineer := f.tokenFor(t, "eng@example.com", model.UserRoleSiteEngineer, nil)
	_, admin := f.tokenFor(t, "admin@example.com", model.UserRoleAdmin, nil)

	w, body := do(r, "/me", "", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "error", body.Status)

	w, _ = do(r, "/me", engineer, true)
	assert.Equal(t, http.StatusOK, w.Code, "cookie token accepted")

	w, body = do(r, "/admin", finance, false)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Admin access required", body.Error)

	w, _ = do(r, "/admin", admin, false)
	assert.Equal(t, http.StatusOK, w.Code)

	w, body = do(r, "/finance", engineer, false)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Insufficient permissions", body.Error)

	w, _ = do(r, "/einvoice", finance, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"resolved":true`)

	w, body = do(r, "/einvoice", engineer, false)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Insufficient permissions: view on einvoicing denied", body.Error)
}

func TestTokenFromRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	read := func(header string, cookie string) (string, error) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			c.Request.Header.Set("Authorization", header)
		}
		if cookie != "" {
			c.Request.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: cookie})
		}
		return TokenFromRequest(c)
	}

	token, err := read("Bearer abc", "")
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	token, err = read("", "from-cookie")
	require.NoError(t, err)
	assert.Equal(t, "from-cookie", token)

	token, err = read("", "")
	require.NoError(t, err)
	assert.Empty(t, token)

	for _, header := range []string{"Basic xyz", "Bearer", "Bearer   ", "abc"} {
		_, err = read(header, "from-cookie")
		assert.True(t, apperror.Is(err, apperror.InvalidCredential), header)
	}
}

func TestMalformedAuthorizationHeaderIsInvalidCredential(t *testing.T) {
	f := newGuardFixture(t)
	r := newRouter(f)

	for _, path := range []string{"/me", "/admin", "/einvoice"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Basic xyz")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		var body response.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		assert.Equal(t, "Invalid authorization header", body.Error, path)
	}
}
