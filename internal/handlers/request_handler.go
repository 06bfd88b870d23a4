package handlers

import (
	"net/http"
	"strconv"

	"github.com/Tesseract-Nexus/global-services/vault-service/internal/middleware"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/models"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RequestHandler handles HTTP requests for the secret request workflow
type RequestHandler struct {
	service *services.RequestService
	logger  *logrus.Entry
}

// NewRequestHandler creates a new request handler
func NewRequestHandler(service *services.RequestService, logger *logrus.Entry) *RequestHandler {
	return &RequestHandler{
		service: service,
		logger:  logger,
	}
}

// CreateRequest handles POST /api/v1/requests
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	caller, _ := middleware.GetCaller(c)

	var req models.CreateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	request, err := h.service.CreateRequest(c.Request.Context(), caller, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, request)
}

// GetRequest handles GET /api/v1/requests/:id
func (h *RequestHandler) GetRequest(c *gin.Context) {
	caller, _ := middleware.GetCaller(c)

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}

	request, err := h.service.GetRequest(c.Request.Context(), caller, requestID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

// ListRequests handles GET /api/v1/requests
func (h *RequestHandler) ListRequests(c *gin.Context) {
	caller, _ := middleware.GetCaller(c)

	var status *models.RequestStatus
	if raw := c.Query("status"); raw != "" {
		s := models.RequestStatus(raw)
		status = &s
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	requests, err := h.service.ListRequests(c.Request.Context(), caller, status, limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"requests": requests, "count": len(requests)})
}

// DecideRequest handles PUT /api/v1/requests/:id/status
func (h *RequestHandler) DecideRequest(c *gin.Context) {
	caller, _ := middleware.GetCaller(c)

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}

	var req models.UpdateRequestStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	request, err := h.service.Decide(c.Request.Context(), caller, requestID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

// AbandonRequest handles POST /api/v1/requests/:id/abandon
func (h *RequestHandler) AbandonRequest(c *gin.Context) {
	caller, _ := middleware.GetCaller(c)

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}

	request, err := h.service.Abandon(c.Request.Context(), caller, requestID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, request)
}
