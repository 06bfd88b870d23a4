package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Tesseract-Nexus/global-services/vault-service/internal/middleware"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/models"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AuditHandler exposes the tenant's audit trail to administrators
type AuditHandler struct {
	auditRepo repository.AuditRepository
	logger    *logrus.Entry
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditRepo repository.AuditRepository, logger *logrus.Entry) *AuditHandler {
	return &AuditHandler{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// ListAuditLogs handles GET /api/v1/audit
func (h *AuditHandler) ListAuditLogs(c *gin.Context) {
	caller, _ := middleware.GetCaller(c)
	if !caller.IsAdmin() {
		c.JSON(http.StatusForbidden, models.ErrorResponse{
			Error:   "ACCESS_DENIED",
			Message: "only administrators may read the audit trail",
		})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	entityType := c.Query("entity_type")
	entityID := c.Query("entity_id")

	var (
		logs []*models.VaultAuditLog
		err  error
	)
	if entityType != "" && entityID != "" {
		logs, err = h.auditRepo.GetByEntity(c.Request.Context(), caller.TenantID, entityType, entityID, limit)
	} else {
		since := time.Time{}
		if raw := c.Query("since"); raw != "" {
			since, err = time.Parse(time.RFC3339, raw)
			if err != nil {
				badRequest(c, err)
				return
			}
		}
		logs, err = h.auditRepo.GetByTenant(c.Request.Context(), caller.TenantID, since, limit)
	}
	if err != nil {
		h.logger.WithError(err).Error("failed to list audit logs")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "INTERNAL_ERROR",
			Message: "failed to list audit logs",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"logs": logs, "count": len(logs)})
}
