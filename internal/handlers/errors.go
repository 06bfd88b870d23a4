package handlers

import (
	"errors"
	"net/http"

	"github.com/Tesseract-Nexus/global-services/vault-service/internal/crypto"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/models"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// respondError maps service errors onto HTTP responses. Ciphertext
// authentication failures are deliberately reported as internal errors, never
// as missing records, and logged loudly: they indicate tampering or a wrong
// master key, not caller mistakes.
func respondError(c *gin.Context, logger *logrus.Entry, err error) {
	var stateErr *services.InvalidStateError

	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "NOT_FOUND",
			Message: "resource not found",
		})
	case errors.Is(err, services.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "INVALID_REQUEST",
			Message: err.Error(),
		})
	case errors.Is(err, services.ErrAccessDenied):
		c.JSON(http.StatusForbidden, models.ErrorResponse{
			Error:   "ACCESS_DENIED",
			Message: err.Error(),
		})
	case errors.As(err, &stateErr):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "INVALID_STATE",
			Message: stateErr.Error(),
			Details: string(stateErr.CurrentStatus),
		})
	case errors.Is(err, crypto.ErrAuthenticationFailed):
		logger.WithError(err).Warn("ciphertext authentication failed")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "INTEGRITY_FAILURE",
			Message: "stored data failed integrity verification",
		})
	case errors.Is(err, crypto.ErrMasterKeyUnavailable):
		logger.WithError(err).Error("master key unavailable")
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error:   "KEY_UNAVAILABLE",
			Message: "master key is currently unavailable",
		})
	default:
		logger.WithError(err).Error("request failed")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "INTERNAL_ERROR",
			Message: "an internal error occurred",
		})
	}
}

// badRequest reports a body/parameter binding failure
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "INVALID_REQUEST",
		Message: err.Error(),
	})
}
