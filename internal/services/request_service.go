package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Tesseract-Nexus/global-services/vault-service/internal/events"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/metrics"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/models"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RequestService runs the secret request workflow: agents raise CREATE or
// LEASE tickets, administrators fulfill or reject them, requesters may
// abandon their own. Terminal states admit no further transitions, enforced
// by a conditional write so concurrent deciders cannot both win.
type RequestService struct {
	requestRepo        repository.RequestRepository
	secretRepo         repository.SecretRepository
	auditRepo          repository.AuditRepository
	publisher          *events.Publisher
	metrics            *metrics.Collector
	logger             *logrus.Entry
	fulfillmentBaseURL string
}

// NewRequestService creates a new request service
func NewRequestService(
	requestRepo repository.RequestRepository,
	secretRepo repository.SecretRepository,
	auditRepo repository.AuditRepository,
	publisher *events.Publisher,
	collector *metrics.Collector,
	logger *logrus.Entry,
	fulfillmentBaseURL string,
) *RequestService {
	return &RequestService{
		requestRepo:        requestRepo,
		secretRepo:         secretRepo,
		auditRepo:          auditRepo,
		publisher:          publisher,
		metrics:            collector,
		logger:             logger,
		fulfillmentBaseURL: strings.TrimSuffix(fulfillmentBaseURL, "/"),
	}
}

// CreateRequest raises a workflow ticket in pending state. The fulfillment
// URL is derived from the assigned id and written back in a second step, so
// the returned record always carries it.
func (s *RequestService) CreateRequest(ctx context.Context, caller models.Caller, req *models.CreateRequestRequest) (*models.SecretRequest, error) {
	if req.Type != models.RequestTypeCreate && req.Type != models.RequestTypeLease {
		return nil, fmt.Errorf("%w: type must be CREATE or LEASE", ErrInvalidArgument)
	}
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	if len(req.Context) > models.MaxContextBytes {
		return nil, fmt.Errorf("%w: context exceeds %d bytes", ErrInvalidArgument, models.MaxContextBytes)
	}
	if req.TargetSecretID != nil && req.Type != models.RequestTypeLease {
		return nil, fmt.Errorf("%w: target_secret_id is only valid for LEASE requests", ErrInvalidArgument)
	}

	requiredMetadata, err := encodeMetadata(req.RequiredMetadata)
	if err != nil {
		return nil, err
	}
	if req.RequiredFields == nil {
		req.RequiredFields = []string{}
	}
	requiredFields, err := models.NewJSONB(req.RequiredFields)
	if err != nil {
		return nil, fmt.Errorf("%w: required_fields is not serializable", ErrInvalidArgument)
	}

	if req.TargetSecretID != nil {
		if _, err := s.secretRepo.GetByIDAndTenant(ctx, caller.TenantID, *req.TargetSecretID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("failed to get target secret: %w", err)
		}
	}

	request := &models.SecretRequest{
		TenantID:         caller.TenantID,
		RequesterID:      caller.ActorID,
		Status:           models.RequestPending,
		Type:             req.Type,
		Name:             req.Name,
		Context:          req.Context,
		RequiredMetadata: requiredMetadata,
		RequiredFields:   requiredFields,
		TargetSecretID:   req.TargetSecretID,
	}

	if err := s.requestRepo.Create(ctx, request); err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	request.FulfillmentURL = fmt.Sprintf("%s/requests/%s", s.fulfillmentBaseURL, request.ID)
	if err := s.requestRepo.SetFulfillmentURL(ctx, caller.TenantID, request.ID, request.FulfillmentURL); err != nil {
		return nil, fmt.Errorf("failed to set fulfillment url: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"tenant_id":  caller.TenantID,
		"request_id": request.ID,
		"type":       request.Type,
	}).Info("secret request created")

	s.logAudit(ctx, caller, request.ID.String(), models.AuditActionCreated, models.AuditStatusSuccess, "")
	s.publisher.Publish(events.SubjectRequestCreated, events.Event{
		TenantID: caller.TenantID.String(),
		EntityID: request.ID.String(),
		ActorID:  caller.ActorID.String(),
		Fields:   map[string]string{"type": string(request.Type)},
	})

	return request, nil
}

// GetRequest retrieves a request within the caller's tenant
func (s *RequestService) GetRequest(ctx context.Context, caller models.Caller, id uuid.UUID) (*models.SecretRequest, error) {
	request, err := s.requestRepo.GetByIDAndTenant(ctx, caller.TenantID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return request, nil
}

// ListRequests lists the tenant's requests, optionally filtered by status
func (s *RequestService) ListRequests(ctx context.Context, caller models.Caller, status *models.RequestStatus, limit, offset int) ([]*models.SecretRequest, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	requests, err := s.requestRepo.ListByTenant(ctx, caller.TenantID, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return requests, nil
}

// Decide fulfills or rejects a pending request. Fulfillment maps the request
// to an existing secret; rejection records a reason. The losing side of a
// concurrent decision gets an invalid state error carrying the status that won.
func (s *RequestService) Decide(ctx context.Context, caller models.Caller, id uuid.UUID, req *models.UpdateRequestStatusRequest) (*models.SecretRequest, error) {
	if !caller.IsAdmin() {
		return nil, fmt.Errorf("%w: only administrators may decide requests", ErrAccessDenied)
	}

	updates := map[string]interface{}{"status": req.Status}
	var subject string

	switch req.Status {
	case models.RequestFulfilled:
		if req.SecretID == nil {
			return nil, fmt.Errorf("%w: secret_id is required to fulfill", ErrInvalidArgument)
		}
		if _, err := s.secretRepo.GetByIDAndTenant(ctx, caller.TenantID, *req.SecretID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("failed to get secret: %w", err)
		}
		updates["mapped_secret_id"] = *req.SecretID
		subject = events.SubjectRequestFulfilled
	case models.RequestRejected:
		if strings.TrimSpace(req.Reason) == "" {
			return nil, fmt.Errorf("%w: reason is required to reject", ErrInvalidArgument)
		}
		updates["rejection_reason"] = req.Reason
		subject = events.SubjectRequestRejected
	default:
		return nil, fmt.Errorf("%w: status must be fulfilled or rejected", ErrInvalidArgument)
	}

	return s.transition(ctx, caller, id, updates, subject)
}

// Abandon withdraws a pending request. Only the original requester may do so.
func (s *RequestService) Abandon(ctx context.Context, caller models.Caller, id uuid.UUID) (*models.SecretRequest, error) {
	request, err := s.GetRequest(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if request.RequesterID != caller.ActorID {
		return nil, fmt.Errorf("%w: only the requester may abandon a request", ErrAccessDenied)
	}

	updates := map[string]interface{}{"status": models.RequestAbandoned}
	return s.transition(ctx, caller, id, updates, events.SubjectRequestAbandoned)
}

// transition applies a pending-only conditional write and translates a lost
// race into an invalid state error reporting the current status
func (s *RequestService) transition(ctx context.Context, caller models.Caller, id uuid.UUID, updates map[string]interface{}, subject string) (*models.SecretRequest, error) {
	applied, err := s.requestRepo.TransitionFromPending(ctx, caller.TenantID, id, updates)
	if err != nil {
		return nil, fmt.Errorf("failed to transition request: %w", err)
	}

	if !applied {
		current, err := s.requestRepo.GetByIDAndTenant(ctx, caller.TenantID, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("failed to get request: %w", err)
		}
		return nil, &InvalidStateError{CurrentStatus: current.Status}
	}

	request, err := s.requestRepo.GetByIDAndTenant(ctx, caller.TenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload request: %w", err)
	}

	toStatus := string(request.Status)
	s.logger.WithFields(logrus.Fields{
		"tenant_id":  caller.TenantID,
		"request_id": id,
		"status":     toStatus,
	}).Info("request transitioned")

	s.logAudit(ctx, caller, id.String(), auditActionForStatus(request.Status), models.AuditStatusSuccess, "")
	s.metrics.RequestTransitions.WithLabelValues(toStatus).Inc()
	s.publisher.Publish(subject, events.Event{
		TenantID: caller.TenantID.String(),
		EntityID: id.String(),
		ActorID:  caller.ActorID.String(),
	})

	return request, nil
}

func auditActionForStatus(status models.RequestStatus) string {
	switch status {
	case models.RequestFulfilled:
		return models.AuditActionFulfilled
	case models.RequestRejected:
		return models.AuditActionRejected
	case models.RequestAbandoned:
		return models.AuditActionAbandoned
	default:
		return models.AuditActionUpdated
	}
}

func (s *RequestService) logAudit(ctx context.Context, caller models.Caller, entityID, action, status, errMsg string) {
	actorID := caller.ActorID.String()
	role := string(caller.Role)
	entry := &models.VaultAuditLog{
		TenantID:   caller.TenantID,
		EntityType: models.EntityRequest,
		EntityID:   &entityID,
		Action:     action,
		Status:     status,
		ActorID:    &actorID,
		ActorRole:  &role,
	}
	if errMsg != "" {
		entry.ErrorMessage = &errMsg
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.WithError(err).Error("failed to create audit log")
	}
}
