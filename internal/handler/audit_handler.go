package handler

import (
	"net/http"

	"civil-erp/internal/middleware"
	"civil-erp/internal/service"
	"civil-erp/pkg/pagination"
	"civil-erp/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
	guard        *middleware.Guard
}

func NewAuditHandler(auditService service.AuditService, guard *middleware.Guard) *AuditHandler {
	return &AuditHandler{auditService: auditService, guard: guard}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/audit-logs")
	group.Use(h.guard.RequireAdmin())
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs retrieves paginated audit records with the acting user
// @Summary      Get audit logs
// @Description  Role, credential and e-invoice changes, newest first
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Page}
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Parse(c)

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, logs, total, p.Page, p.Limit))
}
