package handler

import (
	"net/http"

	"crm_routing_backend/internal/routing/transport"
	"crm_routing_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func (h *Handler) ListQueue(c *gin.Context) {
	var req transport.ListQueueRequest
	if err := c.ShouldBindQuery(&req); err != nil {
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

	entries, err := h.svc.ListQueue(c.Request.Context(), ident.TenantID(), req)
	if err != nil {
		h.serviceError(c, err)
		return
	}
	httpkit.OK(c, entries)
}

// ProcessQueue triggers an immediate drain, the same routine the scheduler
// runs periodically. Admin-only escape hatch.
func (h *Handler) ProcessQueue(c *gin.Context) {
	var req transport.ProcessQueueRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
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

	report, err := h.svc.ProcessRoutingQueue(c.Request.Context(), ident.TenantID(), req.BatchSize)
	if err != nil {
		h.serviceError(c, err)
		return
	}
	httpkit.OK(c, report)
}

func (h *Handler) ListWorkloads(c *gin.Context) {
	ident := httpkit.GetIdentity(c)
	if !ident.IsAuthenticated() {
		httpkit.Error(c, http.StatusUnauthorized, msgUnauthorized, nil)
		return
	}

	workloads, err := h.svc.ListWorkloads(c.Request.Context(), ident.TenantID())
	if err != nil {
		h.serviceError(c, err)
		return
	}
	httpkit.OK(c, workloads)
}

func (h *Handler) SetAvailability(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.SetAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	ident := httpkit.GetIdentity(c)
	if !ident.IsAuthenticated() {
		httpkit.Error(c, http.StatusUnauthorized, msgUnauthorized, nil)
		return
	}

	if err := h.svc.SetAvailability(c.Request.Context(), ident.TenantID(), userID, req.IsAvailable); err != nil {
		h.serviceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) SetCapacity(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.SetCapacityRequest
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

	if err := h.svc.SetCapacity(c.Request.Context(), ident.TenantID(), userID, req.MaxLeadCapacity); err != nil {
		h.serviceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
