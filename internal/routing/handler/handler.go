package handler

import (
	"net/http"

	"crm_routing_backend/internal/routing/service"
	"crm_routing_backend/internal/routing/transport"
	"crm_routing_backend/platform/httpkit"
	"crm_routing_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	svc      *service.Service
	validate *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgUnauthorized     = "unauthorized"
)

func New(svc *service.Service, validate *validator.Validator) *Handler {
	return &Handler{svc: svc, validate: validate}
}

// RegisterRoutes mounts the routing operations every authenticated user may
// call.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/leads/:id/assign", h.Assign)
	rg.POST("/leads/:id/reassign", h.Reassign)
	rg.POST("/leads/:id/score", h.Score)
	rg.GET("/leads/:id/history", h.ListHistory)

	rg.GET("/rules", h.ListRules)
	rg.GET("/rules/:id", h.GetRule)
	rg.GET("/queue", h.ListQueue)
	rg.GET("/workloads", h.ListWorkloads)
}

// RegisterAdminRoutes mounts rule and workload administration plus the
// manual queue drain.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/rules", h.CreateRule)
	rg.PUT("/rules/:id", h.UpdateRule)
	rg.DELETE("/rules/:id", h.DeleteRule)

	rg.POST("/queue/process", h.ProcessQueue)

	rg.PUT("/workloads/:userId/availability", h.SetAvailability)
	rg.PUT("/workloads/:userId/capacity", h.SetCapacity)
}

func (h *Handler) Assign(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	ident := httpkit.GetIdentity(c)
	if !ident.IsAuthenticated() {
		httpkit.Error(c, http.StatusUnauthorized, msgUnauthorized, nil)
		return
	}

	result, err := h.svc.AssignLead(c.Request.Context(), ident.TenantID(), leadID, ident.UserID())
	if err != nil {
		h.serviceError(c, err)
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) Reassign(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.ReassignLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	ident := httpkit.GetIdentity(c)
	if !ident.IsAuthenticated() {
		httpkit.Error(c, http.StatusUnauthorized, msgUnauthorized, nil)
		return
	}

	if err := h.svc.ReassignLead(c.Request.Context(), ident.TenantID(), leadID, req.UserID, ident.UserID(), req.Reason); err != nil {
		h.serviceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Score(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	ident := httpkit.GetIdentity(c)
	if !ident.IsAuthenticated() {
		httpkit.Error(c, http.StatusUnauthorized, msgUnauthorized, nil)
		return
	}

	result, err := h.svc.ScoreLead(c.Request.Context(), ident.TenantID(), leadID)
	if err != nil {
		h.serviceError(c, err)
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) ListHistory(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	ident := httpkit.GetIdentity(c)
	if !ident.IsAuthenticated() {
		httpkit.Error(c, http.StatusUnauthorized, msgUnauthorized, nil)
		return
	}

	history, err := h.svc.ListHistory(c.Request.Context(), ident.TenantID(), leadID)
	if err != nil {
		h.serviceError(c, err)
		return
	}
	httpkit.OK(c, history)
}

// serviceError renders a service failure. Sentinels are typed apperr values,
// so the kind-to-status mapping lives in one place.
func (h *Handler) serviceError(c *gin.Context, err error) {
	httpkit.HandleError(c, err)
}
