package middleware

import (
	"net/http"
	"time"

	"github.com/Tesseract-Nexus/global-services/vault-service/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// Context keys
	KeyCaller    = "caller"
	KeyRequestID = "request_id"
)

// RequestID middleware adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(KeyRequestID, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// CallerIdentity middleware builds the caller from the identity headers the
// gateway injects after authentication. All three are mandatory; requests
// without a complete identity never reach a handler.
func CallerIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, err := uuid.Parse(c.GetHeader("X-Tenant-ID"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "UNAUTHORIZED",
				"message": "X-Tenant-ID header is required",
			})
			return
		}

		actorID, err := uuid.Parse(c.GetHeader("X-Actor-ID"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "UNAUTHORIZED",
				"message": "X-Actor-ID header is required",
			})
			return
		}

		role := models.ActorRole(c.GetHeader("X-Actor-Role"))
		if role != models.RoleAdmin && role != models.RoleAgent {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "UNAUTHORIZED",
				"message": "X-Actor-Role header must be admin or agent",
			})
			return
		}

		c.Set(KeyCaller, models.Caller{
			TenantID: tenantID,
			ActorID:  actorID,
			Role:     role,
		})
		c.Next()
	}
}

// RequestLogger middleware logs request information
func RequestLogger(logger *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		entry := logger.WithFields(logrus.Fields{
			"status":     statusCode,
			"method":     c.Request.Method,
			"path":       path,
			"latency":    latency,
			"request_id": GetRequestID(c),
		})

		if caller, ok := GetCaller(c); ok {
			entry = entry.WithFields(logrus.Fields{
				"tenant_id":  caller.TenantID,
				"actor_role": caller.Role,
			})
		}

		if statusCode >= 500 {
			entry.Error("request completed with error")
		} else if statusCode >= 400 {
			entry.Warn("request completed with client error")
		} else {
			entry.Info("request completed")
		}
	}
}

// Helper functions to get context values

// GetCaller retrieves the authenticated caller from context
func GetCaller(c *gin.Context) (models.Caller, bool) {
	if val, exists := c.Get(KeyCaller); exists {
		if caller, ok := val.(models.Caller); ok {
			return caller, true
		}
	}
	return models.Caller{}, false
}

// GetRequestID retrieves the request ID from context
func GetRequestID(c *gin.Context) string {
	if val, exists := c.Get(KeyRequestID); exists {
		return val.(string)
	}
	return ""
}
