package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"civil-erp/internal/metrics"
	"civil-erp/internal/model"
	"civil-erp/internal/repository"
	"civil-erp/internal/service"
	"civil-erp/pkg/apperror"
	"civil-erp/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	AccessTokenCookie = "access_token"

	contextUserKey       = "currentUser"
	contextResolutionKey = "permissionResolution"
)

// Guard label values for the denial metric.
const (
	guardLegacy     = "legacy"
	guardAdmin      = "admin"
	guardPermission = "permission"
)

// SetAccessTokenCookie sets access_token as an HttpOnly cookie.
// Cross-origin deployments need SameSite=None with Secure.
func SetAccessTokenCookie(c *gin.Context, token string, ttl time.Duration, secure bool) {
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteNoneMode
	}
	c.SetSameSite(sameSite)
	c.SetCookie(AccessTokenCookie, token, int(ttl.Seconds()), "/", "", secure, true)
}

func ClearAccessTokenCookie(c *gin.Context, secure bool) {
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteNoneMode
	}
	c.SetSameSite(sameSite)
	c.SetCookie(AccessTokenCookie, "", -1, "/", "", secure, true)
}

// Guard authenticates bearer tokens and enforces both the legacy role check and
// the per-module permission check.
type Guard struct {
	users    repository.UserRepository
	resolver service.PermissionResolver
	tokens   service.TokenManager
	metrics  *metrics.Metrics
}

func NewGuard(users repository.UserRepository, resolver service.PermissionResolver, tokens service.TokenManager, m *metrics.Metrics) *Guard {
	return &Guard{users: users, resolver: resolver, tokens: tokens, metrics: m}
}

// Identify resolves a raw token to a live user.
func (g *Guard) Identify(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, apperror.New(apperror.Unauthenticated, "Authorization is missing")
	}
	id, _, err := g.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	user, err := g.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.New(apperror.InvalidCredential, "User not found")
		}
		return nil, apperror.Wrap(apperror.Internal, err, "Failed to load user")
	}
	return user, nil
}

// AuthorizeLegacy passes only when the user's legacy role string is in roles.
// Fine-grained roles play no part here.
func (g *Guard) AuthorizeLegacy(ctx context.Context, token string, roles ...string) (*model.User, error) {
	return g.authorizeLegacy(ctx, token, "Insufficient permissions", roles)
}

func (g *Guard) authorizeLegacy(ctx context.Context, token, deniedMessage string, roles []string) (*model.User, error) {
	user, err := g.Identify(ctx, token)
	if err != nil {
		return nil, err
	}
	for _, r := range roles {
		if user.Role == r {
			return user, nil
		}
	}
	return nil, apperror.NewForbidden("%s", deniedMessage)
}

// Authorize resolves the user's permission matrix and checks one module action.
func (g *Guard) Authorize(ctx context.Context, token, module, action string) (*model.User, *service.Resolution, error) {
	user, err := g.Identify(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	res, err := g.resolver.Resolve(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	set, ok := res.Permissions[module]
	if !ok {
		return nil, nil, apperror.NewForbidden("Access to %s denied", module)
	}
	if !set.Allows(action) {
		return nil, nil, apperror.NewForbidden("Insufficient permissions: %s on %s denied", action, module)
	}
	return user, res, nil
}

// Authenticate only requires a valid token for a live user.
func (g *Guard) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := TokenFromRequest(c)
		if err != nil {
			g.abort(c, "", err)
			return
		}
		user, err := g.Identify(c.Request.Context(), token)
		if err != nil {
			g.abort(c, "", err)
			return
		}
		c.Set(contextUserKey, user)
		c.Next()
	}
}

// RequireRole is the legacy guard: the user's role string must be one of roles.
func (g *Guard) RequireRole(roles ...string) gin.HandlerFunc {
	return g.requireRole(guardLegacy, "Insufficient permissions", roles)
}

func (g *Guard) RequireAdmin() gin.HandlerFunc {
	return g.requireRole(guardAdmin, "Admin access required", []string{model.UserRoleAdmin})
}

func (g *Guard) requireRole(label, deniedMessage string, roles []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := TokenFromRequest(c)
		if err != nil {
			g.abort(c, label, err)
			return
		}
		user, err := g.authorizeLegacy(c.Request.Context(), token, deniedMessage, roles)
		if err != nil {
			g.abort(c, label, err)
			return
		}
		c.Set(contextUserKey, user)
		c.Next()
	}
}

// RequirePermission is the fine-grained guard. The resolution is kept in the
// context so handlers can reuse it.
func (g *Guard) RequirePermission(module, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := TokenFromRequest(c)
		if err != nil {
			g.abort(c, guardPermission, err)
			return
		}
		user, res, err := g.Authorize(c.Request.Context(), token, module, action)
		if err != nil {
			g.abort(c, guardPermission, err)
			return
		}
		c.Set(contextUserKey, user)
		c.Set(contextResolutionKey, res)
		c.Next()
	}
}

func (g *Guard) abort(c *gin.Context, label string, err error) {
	kind := apperror.KindOf(err)
	status := apperror.HTTPStatus(kind)
	msg := apperror.Message(err)
	if kind == apperror.Forbidden {
		g.metrics.RecordDenied(label)
	}
	if kind == apperror.Internal {
		msg = "Failed to verify permissions"
	}
	c.AbortWithStatusJSON(status, response.Error(status, msg))
}

// TokenFromRequest reads the bearer token from the Authorization header,
// falling back to the access_token cookie. A header that is present but not a
// bearer credential is an InvalidCredential error; no token at all yields "".
func TokenFromRequest(c *gin.Context) (string, error) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", apperror.New(apperror.InvalidCredential, "Invalid authorization header")
		}
		return strings.TrimSpace(parts[1]), nil
	}
	if token, err := c.Cookie(AccessTokenCookie); err == nil {
		return token, nil
	}
	return "", nil
}

// CurrentUser returns the user stored by any of the guards.
func CurrentUser(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get(contextUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*model.User)
	return user, ok
}

// CurrentResolution is only set by RequirePermission.
func CurrentResolution(c *gin.Context) (*service.Resolution, bool) {
	v, ok := c.Get(contextResolutionKey)
	if !ok {
		return nil, false
	}
	res, ok := v.(*service.Resolution)
	return res, ok
}
