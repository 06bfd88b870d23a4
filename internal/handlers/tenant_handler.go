package handlers

import (
	"net/http"

	"github.com/Tesseract-Nexus/global-services/vault-service/internal/middleware"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/models"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TenantHandler handles HTTP requests for tenant and agent management
type TenantHandler struct {
	service *services.TenantService
	logger  *logrus.Entry
}

// NewTenantHandler creates a new tenant handler
func NewTenantHandler(service *services.TenantService, logger *logrus.Entry) *TenantHandler {
	return &TenantHandler{
		service: service,
		logger:  logger,
	}
}

// CreateTenant handles POST /api/v1/tenants
func (h *TenantHandler) CreateTenant(c *gin.Context) {
	var req models.CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	tenant, err := h.service.CreateTenant(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, tenant)
}

// GetTenant handles GET /api/v1/tenants/:id
func (h *TenantHandler) GetTenant(c *gin.Context) {
	caller, _ := middleware.GetCaller(c)

	tenantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}

	// Callers only ever see their own tenant; a foreign id reads like a
	// missing record.
	if tenantID != caller.TenantID {
		respondError(c, h.logger, services.ErrNotFound)
		return
	}

	tenant, err := h.service.GetTenant(c.Request.Context(), tenantID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, tenant)
}

// RegisterAgent handles POST /api/v1/agents
func (h *TenantHandler) RegisterAgent(c *gin.Context) {
	caller, _ := middleware.GetCaller(c)

	var req models.RegisterAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	agent, err := h.service.RegisterAgent(c.Request.Context(), caller, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, agent)
}

// GetAgent handles GET /api/v1/agents/:id
func (h *TenantHandler) GetAgent(c *gin.Context) {
	caller, _ := middleware.GetCaller(c)

	agentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}

	agent, err := h.service.GetAgent(c.Request.Context(), caller, agentID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, agent)
}

// RotateAgentKey handles PUT /api/v1/agents/:id/key
func (h *TenantHandler) RotateAgentKey(c *gin.Context) {
	caller, _ := middleware.GetCaller(c)

	agentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}

	var req models.RotateAgentKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	agent, err := h.service.RotateAgentKey(c.Request.Context(), caller, agentID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, agent)
}
