package repository

import (
	"context"
	"time"

	"github.com/Tesseract-Nexus/global-services/vault-service/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestRepository provides database operations for secret requests.
// Transitions out of pending go through TransitionFromPending, a conditional
// write on the status column: when two callers race, whichever commits first
// wins and the loser sees zero rows affected.
type RequestRepository interface {
	Create(ctx context.Context, request *models.SecretRequest) error
	GetByIDAndTenant(ctx context.Context, tenantID, id uuid.UUID) (*models.SecretRequest, error)
	SetFulfillmentURL(ctx context.Context, tenantID, id uuid.UUID, url string) error
	TransitionFromPending(ctx context.Context, tenantID, id uuid.UUID, updates map[string]interface{}) (bool, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, status *models.RequestStatus, limit, offset int) ([]*models.SecretRequest, error)
}

// requestRepository implements RequestRepository
type requestRepository struct {
	db *gorm.DB
}

// NewRequestRepository creates a new request repository instance
func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

// Create creates a new request record
func (r *requestRepository) Create(ctx context.Context, request *models.SecretRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

// GetByIDAndTenant retrieves a request by id within a tenant
func (r *requestRepository) GetByIDAndTenant(ctx context.Context, tenantID, id uuid.UUID) (*models.SecretRequest, error) {
	var request models.SecretRequest
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// SetFulfillmentURL patches in the fulfillment URL after the id is known
func (r *requestRepository) SetFulfillmentURL(ctx context.Context, tenantID, id uuid.UUID, url string) error {
	return r.db.WithContext(ctx).
		Model(&models.SecretRequest{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Update("fulfillment_url", url).Error
}

// TransitionFromPending applies updates only while the request is still
// pending. Returns false when the conditional write matched no row, meaning
// the request is absent or already terminal.
func (r *requestRepository) TransitionFromPending(ctx context.Context, tenantID, id uuid.UUID, updates map[string]interface{}) (bool, error) {
	updates["updated_at"] = time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.SecretRequest{}).
		Where("tenant_id = ? AND id = ? AND status = ?", tenantID, id, models.RequestPending).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListByTenant retrieves requests for a tenant, optionally filtered by status
func (r *requestRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID, status *models.RequestStatus, limit, offset int) ([]*models.SecretRequest, error) {
	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var requests []*models.SecretRequest
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}
