package repository

import (
	"context"
	"time"

	"github.com/Tesseract-Nexus/global-services/vault-service/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditRepository provides database operations for audit logs
type AuditRepository interface {
	Create(ctx context.Context, log *models.VaultAuditLog) error
	GetByEntity(ctx context.Context, tenantID uuid.UUID, entityType, entityID string, limit int) ([]*models.VaultAuditLog, error)
	GetByTenant(ctx context.Context, tenantID uuid.UUID, since time.Time, limit int) ([]*models.VaultAuditLog, error)
}

// auditRepository implements AuditRepository
type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new audit repository instance
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

// Create creates a new audit log entry
func (r *auditRepository) Create(ctx context.Context, log *models.VaultAuditLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// GetByEntity retrieves audit logs for a specific entity
func (r *auditRepository) GetByEntity(ctx context.Context, tenantID uuid.UUID, entityType, entityID string, limit int) ([]*models.VaultAuditLog, error) {
	var logs []*models.VaultAuditLog
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND entity_type = ? AND entity_id = ?", tenantID, entityType, entityID).
		Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// GetByTenant retrieves audit logs for a tenant since a given time
func (r *auditRepository) GetByTenant(ctx context.Context, tenantID uuid.UUID, since time.Time, limit int) ([]*models.VaultAuditLog, error) {
	var logs []*models.VaultAuditLog
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND created_at >= ?", tenantID, since).
		Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
