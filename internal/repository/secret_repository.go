package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Tesseract-Nexus/global-services/vault-service/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SecretRepository provides database operations for secrets.
// Every operation is tenant-scoped: lookups combine id and tenant_id so a
// cross-tenant id probe behaves exactly like a missing record.
type SecretRepository interface {
	Create(ctx context.Context, secret *models.Secret) error
	GetByIDAndTenant(ctx context.Context, tenantID, id uuid.UUID) (*models.Secret, error)
	Update(ctx context.Context, secret *models.Secret) error
	UpdateAndInvalidateLeases(ctx context.Context, secret *models.Secret) (int64, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	SearchByMetadata(ctx context.Context, tenantID uuid.UUID, metadata map[string]string) ([]*models.Secret, error)
}

// secretRepository implements SecretRepository
type secretRepository struct {
	db *gorm.DB
}

// NewSecretRepository creates a new secret repository instance
func NewSecretRepository(db *gorm.DB) SecretRepository {
	return &secretRepository{db: db}
}

// Create creates a new secret record
func (r *secretRepository) Create(ctx context.Context, secret *models.Secret) error {
	return r.db.WithContext(ctx).Create(secret).Error
}

// GetByIDAndTenant retrieves a secret by id within a tenant
func (r *secretRepository) GetByIDAndTenant(ctx context.Context, tenantID, id uuid.UUID) (*models.Secret, error) {
	var secret models.Secret
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&secret).Error
	if err != nil {
		return nil, err
	}
	return &secret, nil
}

// Update saves the full secret record
func (r *secretRepository) Update(ctx context.Context, secret *models.Secret) error {
	return r.db.WithContext(ctx).Save(secret).Error
}

// UpdateAndInvalidateLeases saves the secret and drops every lease on it in
// one transaction, so a new ciphertext never becomes visible while stale
// agent-bound payloads still resolve. Returns the number of dropped leases.
func (r *secretRepository) UpdateAndInvalidateLeases(ctx context.Context, secret *models.Secret) (int64, error) {
	var dropped int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(secret).Error; err != nil {
			return err
		}
		result := tx.Where("tenant_id = ? AND secret_id = ?", secret.TenantID, secret.ID).
			Delete(&models.Lease{})
		if result.Error != nil {
			return result.Error
		}
		dropped = result.RowsAffected
		return nil
	})
	return dropped, err
}

// Delete removes a secret within a tenant
func (r *secretRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&models.Secret{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SearchByMetadata returns secrets whose metadata contains every given
// key/value pair (exact-match conjunction), using JSONB containment
func (r *secretRepository) SearchByMetadata(ctx context.Context, tenantID uuid.UUID, metadata map[string]string) ([]*models.Secret, error) {
	predicate, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata predicate: %w", err)
	}

	var secrets []*models.Secret
	err = r.db.WithContext(ctx).
		Where("tenant_id = ? AND metadata @> ?", tenantID, string(predicate)).
		Order("created_at ASC").
		Find(&secrets).Error
	if err != nil {
		return nil, err
	}
	return secrets, nil
}
