package handler

import (
	"net/http"
	"strconv"

	"civil-erp/internal/middleware"
	"civil-erp/internal/service"
	"civil-erp/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RoleHandler struct {
	roleService service.RoleService
	guard       *middleware.Guard
}

func NewRoleHandler(roleService service.RoleService, guard *middleware.Guard) *RoleHandler {
	return &RoleHandler{roleService: roleService, guard: guard}
}

// PermissionCheck is the answer of the permission probe endpoint.
type PermissionCheck struct {
	Module  string `json:"module"`
	Action  string `json:"action"`
	Allowed bool   `json:"allowed"`
	Source  string `json:"source"`
}

func (h *RoleHandler) RegisterRoutes(router *gin.RouterGroup) {
	rbac := router.Group("/api/rbac")
	rbac.GET("/my-permissions/:module/:action", h.CheckPermission)

	admin := rbac.Group("")
	admin.Use(h.guard.RequireAdmin())
	{
		admin.GET("/modules", h.ListModules)
		admin.GET("/roles", h.ListRoles)
		admin.POST("/roles", h.CreateRole)
		admin.GET("/roles/:id", h.GetRole)
		admin.PUT("/roles/:id", h.UpdateRole)
		admin.DELETE("/roles/:id", h.DeleteRole)
		admin.POST("/assign-role", h.AssignRole)
		admin.DELETE("/users/:id/role", h.RemoveRole)
		admin.GET("/users", h.ListUsers)
		admin.GET("/stats", h.Stats)
		admin.POST("/init", h.InitSystemRoles)
	}
}

// ListModules returns the fixed module and action sets
// @Summary      List permission modules
// @Tags         rbac
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.ModulesResponse}
// @Failure      403  {object}  response.Response
// @Router       /api/rbac/modules [get]
func (h *RoleHandler) ListModules(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(http.StatusOK, h.roleService.ListModules()))
}

// ListRoles returns roles, active only unless include_inactive is set
// @Summary      List roles
// @Tags         rbac
// @Security     BearerAuth
// @Produce      json
// @Param        include_inactive  query     bool  false  "Include inactive roles"
// @Success      200               {object}  response.Response{data=[]model.Role}
// @Router       /api/rbac/roles [get]
func (h *RoleHandler) ListRoles(c *gin.Context) {
	includeInactive, _ := strconv.ParseBool(c.DefaultQuery("include_inactive", "false"))
	roles, err := h.roleService.ListRoles(c.Request.Context(), includeInactive)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, roles))
}

// CreateRole creates a custom role
// @Summary      Create role
// @Tags         rbac
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateRoleRequest  true  "Role payload"
// @Success      201      {object}  response.Response{data=model.Role}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/rbac/roles [post]
func (h *RoleHandler) CreateRole(c *gin.Context) {
	var req service.CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	role, err := h.roleService.CreateRole(c.Request.Context(), req, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, role))
}

// GetRole returns a single role
// @Summary      Get role
// @Tags         rbac
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Role ID"
// @Success      200  {object}  response.Response{data=model.Role}
// @Failure      404  {object}  response.Response
// @Router       /api/rbac/roles/{id} [get]
func (h *RoleHandler) GetRole(c *gin.Context) {
	id, ok := pathUUID(c, "id", "Role not found")
	if !ok {
		return
	}
	role, err := h.roleService.GetRole(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, role))
}

// UpdateRole applies a partial update
// @Summary      Update role
// @Description  System roles cannot be renamed or deactivated
// @Tags         rbac
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Role ID"
// @Param        payload  body      service.UpdateRoleRequest  true  "Fields to change"
// @Success      200      {object}  response.Response{data=model.Role}
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/rbac/roles/{id} [put]
func (h *RoleHandler) UpdateRole(c *gin.Context) {
	id, ok := pathUUID(c, "id", "Role not found")
	if !ok {
		return
	}
	var req service.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	role, err := h.roleService.UpdateRole(c.Request.Context(), id, req, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, role))
}

// DeleteRole deletes an unassigned custom role
// @Summary      Delete role
// @Tags         rbac
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Role ID"
// @Success      200  {object}  response.Response{data=response.Message}
// @Failure      409  {object}  response.Response
// @Router       /api/rbac/roles/{id} [delete]
func (h *RoleHandler) DeleteRole(c *gin.Context) {
	id, ok := pathUUID(c, "id", "Role not found")
	if !ok {
		return
	}
	if err := h.roleService.DeleteRole(c.Request.Context(), id, actorID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, response.Message{Message: "Role deleted successfully"}))
}

// AssignRole links a user to an active role
// @Summary      Assign role
// @Tags         rbac
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.AssignRoleRequest  true  "User and role"
// @Success      200      {object}  response.Response{data=response.Message}
// @Failure      404      {object}  response.Response
// @Router       /api/rbac/assign-role [post]
func (h *RoleHandler) AssignRole(c *gin.Context) {
	var req service.AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "User not found"))
		return
	}
	roleID, err := uuid.Parse(req.RoleID)
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "Role not found or inactive"))
		return
	}

	role, err := h.roleService.AssignRole(c.Request.Context(), userID, roleID, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, response.Message{Message: "Role '" + role.Name + "' assigned successfully"}))
}

// RemoveRole detaches the fine-grained role; the user falls back to the legacy role
// @Summary      Remove user role
// @Tags         rbac
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response{data=response.Message}
// @Failure      404  {object}  response.Response
// @Router       /api/rbac/users/{id}/role [delete]
func (h *RoleHandler) RemoveRole(c *gin.Context) {
	id, ok := pathUUID(c, "id", "User not found")
	if !ok {
		return
	}
	if err := h.roleService.RemoveRole(c.Request.Context(), id, actorID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, response.Message{Message: "Role removed successfully"}))
}

// ListUsers lists users with their role names
// @Summary      List users with roles
// @Tags         rbac
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.UserRoleResponse}
// @Router       /api/rbac/users [get]
func (h *RoleHandler) ListUsers(c *gin.Context) {
	users, err := h.roleService.ListUsersWithRoles(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, users))
}

// Stats summarises role usage
// @Summary      RBAC statistics
// @Tags         rbac
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.RBACStats}
// @Router       /api/rbac/stats [get]
func (h *RoleHandler) Stats(c *gin.Context) {
	stats, err := h.roleService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}

// InitSystemRoles creates the default roles that are missing
// @Summary      Initialise default roles
// @Tags         rbac
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.InitRolesResult}
// @Router       /api/rbac/init [post]
func (h *RoleHandler) InitSystemRoles(c *gin.Context) {
	actor := actorID(c)
	res, err := h.roleService.InitSystemRoles(c.Request.Context(), &actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// CheckPermission runs the fine-grained guard for an arbitrary module action
// @Summary      Check a permission
// @Description  Answers 200 when the caller holds the action on the module, 403 otherwise
// @Tags         rbac
// @Security     BearerAuth
// @Produce      json
// @Param        module  path      string  true  "Module"
// @Param        action  path      string  true  "Action (view, create, edit, delete)"
// @Success      200     {object}  response.Response{data=PermissionCheck}
// @Failure      403     {object}  response.Response
// @Router       /api/rbac/my-permissions/{module}/{action} [get]
func (h *RoleHandler) CheckPermission(c *gin.Context) {
	module, action := c.Param("module"), c.Param("action")
	token, err := middleware.TokenFromRequest(c)
	if err != nil {
		respondError(c, err)
		return
	}
	_, res, err := h.guard.Authorize(c.Request.Context(), token, module, action)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, PermissionCheck{
		Module:  module,
		Action:  action,
		Allowed: true,
		Source:  res.Source,
	}))
}
