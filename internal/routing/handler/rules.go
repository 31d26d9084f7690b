package handler

import (
	"net/http"

	"crm_routing_backend/internal/routing/transport"
	"crm_routing_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func (h *Handler) CreateRule(c *gin.Context) {
	var req transport.CreateRuleRequest
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

	rule, err := h.svc.CreateRule(c.Request.Context(), ident.TenantID(), req)
	if err != nil {
		h.serviceError(c, err)
		return
	}
	httpkit.JSON(c, http.StatusCreated, rule)
}

func (h *Handler) UpdateRule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.UpdateRuleRequest
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

	rule, err := h.svc.UpdateRule(c.Request.Context(), id, ident.TenantID(), req)
	if err != nil {
		h.serviceError(c, err)
		return
	}
	httpkit.OK(c, rule)
}

func (h *Handler) GetRule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	ident := httpkit.GetIdentity(c)
	if !ident.IsAuthenticated() {
		httpkit.Error(c, http.StatusUnauthorized, msgUnauthorized, nil)
		return
	}

	rule, err := h.svc.GetRule(c.Request.Context(), id, ident.TenantID())
	if err != nil {
		h.serviceError(c, err)
		return
	}
	httpkit.OK(c, rule)
}

func (h *Handler) ListRules(c *gin.Context) {
	ident := httpkit.GetIdentity(c)
	if !ident.IsAuthenticated() {
		httpkit.Error(c, http.StatusUnauthorized, msgUnauthorized, nil)
		return
	}

	rules, err := h.svc.ListRules(c.Request.Context(), ident.TenantID())
	if err != nil {
		h.serviceError(c, err)
		return
	}
	httpkit.OK(c, rules)
}

func (h *Handler) DeleteRule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	ident := httpkit.GetIdentity(c)
	if !ident.IsAuthenticated() {
		httpkit.Error(c, http.StatusUnauthorized, msgUnauthorized, nil)
		return
	}

	if err := h.svc.DeleteRule(c.Request.Context(), id, ident.TenantID()); err != nil {
		h.serviceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
