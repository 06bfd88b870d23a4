package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"github.com/Tesseract-Nexus/global-services/vault-service/internal/idempotency"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// HeaderIdempotencyKey is the client-supplied deduplication key for
// mutating calls
const HeaderIdempotencyKey = "Idempotency-Key"

// Deduplicator is the idempotency store surface the middleware needs
type Deduplicator interface {
	Begin(ctx context.Context, tenantID uuid.UUID, key string) (*idempotency.CachedResponse, error)
	Commit(ctx context.Context, tenantID uuid.UUID, key string, status int, body []byte) error
}

// bodyCapture tees the response body so a successful outcome can be stored
// for replay
type bodyCapture struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyCapture) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotent deduplicates mutating calls carrying an Idempotency-Key header.
// A repeated key within the retention window replays the first successful
// response verbatim; a concurrent duplicate is rejected while the first
// execution is still running. Calls without the header pass through.
func Idempotent(store Deduplicator, logger *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		caller, ok := GetCaller(c)
		if !ok {
			c.Next()
			return
		}

		cached, err := store.Begin(c.Request.Context(), caller.TenantID, key)
		if err != nil {
			if errors.Is(err, idempotency.ErrInProgress) {
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{
					"error":   "IN_PROGRESS",
					"message": "a request with this idempotency key is already in progress",
				})
				return
			}
			logger.WithError(err).Error("idempotency lookup failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":   "INTERNAL_ERROR",
				"message": "failed to check idempotency key",
			})
			return
		}

		if cached != nil {
			c.Header("X-Idempotent-Replay", "true")
			c.Data(cached.Status, "application/json", cached.Body)
			c.Abort()
			return
		}

		capture := &bodyCapture{ResponseWriter: c.Writer}
		c.Writer = capture

		// The slot is reserved, so the commit must run even when the handler
		// panics past us to the recovery middleware. A response that never
		// got written counts as a failure and releases the reservation, which
		// keeps a retry with the same key possible.
		defer func() {
			status := capture.Status()
			if !capture.Written() {
				status = http.StatusInternalServerError
			}
			if err := store.Commit(c.Request.Context(), caller.TenantID, key, status, capture.buf.Bytes()); err != nil {
				logger.WithError(err).Error("failed to record idempotent response")
			}
		}()

		c.Next()
	}
}
