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

// LeaseHandler handles HTTP requests for lease operations
type LeaseHandler struct {
	service *services.LeaseService
	logger  *logrus.Entry
}

// NewLeaseHandler creates a new lease handler
func NewLeaseHandler(service *services.LeaseService, logger *logrus.Entry) *LeaseHandler {
	return &LeaseHandler{
		service: service,
		logger:  logger,
	}
}

// CreateLease handles POST /api/v1/secrets/:id/leases
func (h *LeaseHandler) CreateLease(c *gin.Context) {
	caller, _ := middleware.GetCaller(c)

	secretID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}

	var req models.CreateLeaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	lease, err := h.service.CreateLease(c.Request.Context(), caller, secretID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, lease)
}

// ListLeases handles GET /api/v1/secrets/:id/leases
func (h *LeaseHandler) ListLeases(c *gin.Context) {
	caller, _ := middleware.GetCaller(c)

	secretID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}

	var agentID *uuid.UUID
	if raw := c.Query("agent_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, err)
			return
		}
		agentID = &parsed
	}

	leases, err := h.service.ListLeases(c.Request.Context(), caller, secretID, agentID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"leases": leases, "count": len(leases)})
}

// RevokeLeases handles DELETE /api/v1/secrets/:id/leases/:agent_id
func (h *LeaseHandler) RevokeLeases(c *gin.Context) {
	caller, _ := middleware.GetCaller(c)

	secretID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}
	agentID, err := uuid.Parse(c.Param("agent_id"))
	if err != nil {
		badRequest(c, err)
		return
	}

	if err := h.service.RevokeLeases(c.Request.Context(), caller, secretID, agentID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ResolveLease handles GET /api/v1/secrets/:id/lease
func (h *LeaseHandler) ResolveLease(c *gin.Context) {
	caller, _ := middleware.GetCaller(c)

	secretID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}

	payload, err := h.service.ResolveForAgent(c.Request.Context(), caller, secretID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, payload)
}
