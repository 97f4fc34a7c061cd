package handler

import (
	"net/http"
	"time"

	"civil-erp/internal/middleware"
	"civil-erp/internal/service"
	"civil-erp/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	userService   service.UserService
	guard         *middleware.Guard
	tokenTTL      time.Duration
	secureCookies bool
}

// NewAuthHandler wires the login endpoints. secureCookies should be set in release mode.
func NewAuthHandler(userService service.UserService, guard *middleware.Guard, tokenTTL time.Duration, secureCookies bool) *AuthHandler {
	return &AuthHandler{userService: userService, guard: guard, tokenTTL: tokenTTL, secureCookies: secureCookies}
}

func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup) {
	auth := router.Group("/api/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/logout", h.Logout)
		auth.GET("/me", h.guard.Authenticate(), h.GetMe)
	}
}

// Register creates an account with a legacy role
// @Summary      Register user
// @Description  Creates a user account and returns an access token with the resolved permissions
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RegisterRequest  true  "Registration payload"
// @Success      201      {object}  response.Response{data=service.TokenResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.userService.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.SetAccessTokenCookie(c, res.AccessToken, h.tokenTTL, h.secureCookies)
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, res))
}

// Login authenticates by email and password
// @Summary      Login user
// @Description  Authenticates a user by email and password, returning a JWT and setting the access_token cookie
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginRequest  true  "Login credentials"
// @Success      200      {object}  response.Response{data=service.TokenResponse}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.userService.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.SetAccessTokenCookie(c, res.AccessToken, h.tokenTTL, h.secureCookies)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// Logout clears the access_token cookie
// @Summary      Logout user
// @Tags         auth
// @Produce      json
// @Success      200  {object}  response.Response{data=response.Message}
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	middleware.ClearAccessTokenCookie(c, h.secureCookies)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, response.Message{Message: "Logged out successfully"}))
}

// GetMe returns the current user with the resolved permission matrix
// @Summary      Get current user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.UserWithPermissions}
// @Failure      401  {object}  response.Response
// @Router       /api/auth/me [get]
func (h *AuthHandler) GetMe(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User not found in context"))
		return
	}

	me, err := h.userService.Me(c.Request.Context(), user)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, me))
}
