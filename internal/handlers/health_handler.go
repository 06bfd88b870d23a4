package handlers

import (
	"net/http"
	"time"

	"github.com/Tesseract-Nexus/global-services/vault-service/internal/crypto"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HealthHandler handles health check endpoints. Readiness covers the two
// dependencies the vault cannot serve without: the database and the system
// master key.
type HealthHandler struct {
	db   *gorm.DB
	keys crypto.MasterKeyProvider
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *gorm.DB, keys crypto.MasterKeyProvider) *HealthHandler {
	return &HealthHandler{db: db, keys: keys}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	checks := make(map[string]string)
	status := "healthy"

	// Check database connection
	sqlDB, err := h.db.DB()
	if err != nil {
		checks["database"] = "unhealthy: " + err.Error()
		status = "unhealthy"
	} else if err := sqlDB.Ping(); err != nil {
		checks["database"] = "unhealthy: " + err.Error()
		status = "unhealthy"
	} else {
		checks["database"] = "healthy"
	}

	// Without the master key no tenant DEK can be unwrapped, so an
	// unreachable key means the service cannot do useful work
	if _, err := h.keys.MasterKey(c.Request.Context()); err != nil {
		checks["master_key"] = "unhealthy: " + err.Error()
		status = "unhealthy"
	} else {
		checks["master_key"] = "healthy"
	}

	statusCode := http.StatusOK
	if status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, models.HealthResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now(),
	})
}
