package handler

import (
	"net/http"

	"civil-erp/internal/middleware"
	"civil-erp/internal/model"
	"civil-erp/internal/service"
	"civil-erp/pkg/response"

	"github.com/gin-gonic/gin"
)

type SettingsHandler struct {
	gstService service.GSTSettingsService
	guard      *middleware.Guard
}

func NewSettingsHandler(gstService service.GSTSettingsService, guard *middleware.Guard) *SettingsHandler {
	return &SettingsHandler{gstService: gstService, guard: guard}
}

func (h *SettingsHandler) RegisterRoutes(router *gin.RouterGroup) {
	gst := router.Group("/api/settings/gst-credentials")
	{
		gst.GET("", h.guard.RequireRole(model.UserRoleAdmin, model.UserRoleFinance), h.GetGSTCredentials)
		gst.POST("", h.guard.RequireAdmin(), h.SaveGSTCredentials)
		gst.DELETE("", h.guard.RequireAdmin(), h.DeleteGSTCredentials)
		gst.POST("/test", h.guard.RequireAdmin(), h.TestConnection)
	}
}

// SaveGSTCredentials stores the NIC portal credentials
// @Summary      Save GST credentials
// @Description  Secrets are encrypted at rest. Send "___unchanged___" as password or client_secret to keep the stored value.
// @Tags         settings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.SaveGSTCredentialsRequest  true  "Credentials"
// @Success      200      {object}  response.Response{data=service.GSTCredentialsResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/settings/gst-credentials [post]
func (h *SettingsHandler) SaveGSTCredentials(c *gin.Context) {
	var req service.SaveGSTCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.gstService.Save(c.Request.Context(), req, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// GetGSTCredentials returns the non-secret part of the stored credentials
// @Summary      Get GST credentials
// @Tags         settings
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.GSTCredentialsResponse}
// @Router       /api/settings/gst-credentials [get]
func (h *SettingsHandler) GetGSTCredentials(c *gin.Context) {
	res, err := h.gstService.Get(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// DeleteGSTCredentials removes the credentials; e-invoicing returns to test mode
// @Summary      Delete GST credentials
// @Tags         settings
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=response.Message}
// @Router       /api/settings/gst-credentials [delete]
func (h *SettingsHandler) DeleteGSTCredentials(c *gin.Context) {
	if err := h.gstService.Delete(c.Request.Context(), actorID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, response.Message{Message: "GST credentials removed"}))
}

// TestConnection authenticates against the NIC portal with the stored credentials
// @Summary      Test NIC connection
// @Tags         settings
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.ConnectionTestResult}
// @Failure      400  {object}  response.Response
// @Router       /api/settings/gst-credentials/test [post]
func (h *SettingsHandler) TestConnection(c *gin.Context) {
	res, err := h.gstService.TestConnection(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}
