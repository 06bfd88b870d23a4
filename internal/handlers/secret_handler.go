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

// SecretHandler handles HTTP requests for secret operations
type SecretHandler struct {
	service *services.SecretService
	logger  *logrus.Entry
}

// NewSecretHandler creates a new secret handler
func NewSecretHandler(service *services.SecretService, logger *logrus.Entry) *SecretHandler {
	return &SecretHandler{
		service: service,
		logger:  logger,
	}
}

// CreateSecret handles POST /api/v1/secrets
func (h *SecretHandler) CreateSecret(c *gin.Context) {
	caller, _ := middleware.GetCaller(c)

	var req models.CreateSecretRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	secret, err := h.service.CreateSecret(c.Request.Context(), caller, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, secret)
}

// GetSecret handles GET /api/v1/secrets/:id
func (h *SecretHandler) GetSecret(c *gin.Context) {
	caller, _ := middleware.GetCaller(c)

	secretID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}

	secret, err := h.service.GetSecret(c.Request.Context(), caller, secretID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, secret)
}

// UpdateSecret handles PATCH /api/v1/secrets/:id
func (h *SecretHandler) UpdateSecret(c *gin.Context) {
	caller, _ := middleware.GetCaller(c)

	secretID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}

	var req models.UpdateSecretRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	secret, err := h.service.UpdateSecret(c.Request.Context(), caller, secretID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, secret)
}

// DeleteSecret handles DELETE /api/v1/secrets/:id
func (h *SecretHandler) DeleteSecret(c *gin.Context) {
	caller, _ := middleware.GetCaller(c)

	secretID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}

	if err := h.service.DeleteSecret(c.Request.Context(), caller, secretID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SearchSecrets handles POST /api/v1/secrets/search
func (h *SecretHandler) SearchSecrets(c *gin.Context) {
	caller, _ := middleware.GetCaller(c)

	var req models.SearchSecretsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	secrets, err := h.service.SearchSecrets(c.Request.Context(), caller, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"secrets": secrets, "count": len(secrets)})
}
