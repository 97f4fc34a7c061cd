package handler

import (
	"net/http"

	"civil-erp/internal/middleware"
	"civil-erp/internal/model"
	"civil-erp/internal/service"
	"civil-erp/pkg/pagination"
	"civil-erp/pkg/response"

	"github.com/gin-gonic/gin"
)

type EInvoiceHandler struct {
	einvoiceService service.EInvoiceService
	guard           *middleware.Guard
}

func NewEInvoiceHandler(einvoiceService service.EInvoiceService, guard *middleware.Guard) *EInvoiceHandler {
	return &EInvoiceHandler{einvoiceService: einvoiceService, guard: guard}
}

func (h *EInvoiceHandler) RegisterRoutes(router *gin.RouterGroup) {
	m := model.ModuleEInvoicing
	einvoice := router.Group("/api/einvoice")
	{
		einvoice.POST("/generate", h.guard.RequirePermission(m, model.ActionCreate), h.Generate)
		einvoice.GET("", h.guard.RequirePermission(m, model.ActionView), h.List)
		einvoice.GET("/:id", h.guard.RequirePermission(m, model.ActionView), h.Get)
		einvoice.POST("/:id/cancel", h.guard.RequirePermission(m, model.ActionEdit), h.Cancel)
	}
	router.GET("/api/einvoice-stats", h.guard.RequirePermission(m, model.ActionView), h.Stats)
}

// Generate registers an invoice with the NIC portal, or simulates it when no credentials are stored
// @Summary      Generate e-invoice
// @Description  Portal failures do not fail the request; inspect status and error_details of the returned invoice.
// @Tags         einvoice
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      model.EInvoiceRequest  true  "Invoice document"
// @Success      201      {object}  response.Response{data=model.EInvoice}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/einvoice/generate [post]
func (h *EInvoiceHandler) Generate(c *gin.Context) {
	var req model.EInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	actor := actorID(c)
	invoice, err := h.einvoiceService.Generate(c.Request.Context(), req, &actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, invoice))
}

// List returns a page of e-invoices, newest first
// @Summary      List e-invoices
// @Tags         einvoice
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Filter by status"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=response.Page}
// @Failure      400     {object}  response.Response
// @Router       /api/einvoice [get]
func (h *EInvoiceHandler) List(c *gin.Context) {
	p := pagination.Parse(c)
	invoices, total, err := h.einvoiceService.List(c.Request.Context(), c.Query("status"), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, invoices, total, p.Page, p.Limit))
}

// Get returns one e-invoice
// @Summary      Get e-invoice
// @Tags         einvoice
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "E-invoice ID"
// @Success      200  {object}  response.Response{data=model.EInvoice}
// @Failure      404  {object}  response.Response
// @Router       /api/einvoice/{id} [get]
func (h *EInvoiceHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id", "E-Invoice not found")
	if !ok {
		return
	}
	invoice, err := h.einvoiceService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// Cancel cancels an IRN-generated invoice
// @Summary      Cancel e-invoice
// @Description  The reason comes from the JSON body or the reason query parameter. The portal call is best effort.
// @Tags         einvoice
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                          true   "E-invoice ID"
// @Param        reason   query     string                          false  "Cancellation reason"
// @Param        payload  body      service.CancelEInvoiceRequest  false  "Cancellation reason"
// @Success      200      {object}  response.Response{data=model.EInvoice}
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/einvoice/{id}/cancel [post]
func (h *EInvoiceHandler) Cancel(c *gin.Context) {
	id, ok := pathUUID(c, "id", "E-Invoice not found")
	if !ok {
		return
	}
	var req service.CancelEInvoiceRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	if req.Reason == "" {
		req.Reason = c.Query("reason")
	}

	actor := actorID(c)
	invoice, err := h.einvoiceService.Cancel(c.Request.Context(), id, req.Reason, &actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// Stats counts e-invoices per outcome
// @Summary      E-invoice statistics
// @Tags         einvoice
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.EInvoiceStats}
// @Router       /api/einvoice-stats [get]
func (h *EInvoiceHandler) Stats(c *gin.Context) {
	stats, err := h.einvoiceService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}
