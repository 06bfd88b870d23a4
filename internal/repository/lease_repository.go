package repository

import (
	"context"

	"github.com/Tesseract-Nexus/global-services/vault-service/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LeaseRepository provides database operations for leases
type LeaseRepository interface {
	Upsert(ctx context.Context, lease *models.Lease) error
	ListBySecret(ctx context.Context, tenantID, secretID uuid.UUID, agentID *uuid.UUID) ([]*models.Lease, error)
	FindBySecretAgentKey(ctx context.Context, tenantID, secretID, agentID uuid.UUID, publicKey string) (*models.Lease, error)
	DeleteBySecretAndAgent(ctx context.Context, tenantID, secretID, agentID uuid.UUID) (int64, error)
	DeleteBySecret(ctx context.Context, tenantID, secretID uuid.UUID) (int64, error)
}

// leaseRepository implements LeaseRepository
type leaseRepository struct {
	db *gorm.DB
}

// NewLeaseRepository creates a new lease repository instance
func NewLeaseRepository(db *gorm.DB) LeaseRepository {
	return &leaseRepository{db: db}
}

// Upsert creates a lease, or replaces payload/expiry in place when one
// already exists for the (secret, agent, public key) triple
func (r *leaseRepository) Upsert(ctx context.Context, lease *models.Lease) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "secret_id"}, {Name: "agent_id"}, {Name: "public_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"encrypted_payload",
			"expires_at",
			"updated_at",
		}),
	}).Create(lease).Error
}

// ListBySecret lists leases for a secret, optionally filtered by agent
func (r *leaseRepository) ListBySecret(ctx context.Context, tenantID, secretID uuid.UUID, agentID *uuid.UUID) ([]*models.Lease, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND secret_id = ?", tenantID, secretID)
	if agentID != nil {
		query = query.Where("agent_id = ?", *agentID)
	}

	var leases []*models.Lease
	if err := query.Order("created_at ASC").Find(&leases).Error; err != nil {
		return nil, err
	}
	return leases, nil
}

// FindBySecretAgentKey retrieves the lease matching the exact triple
func (r *leaseRepository) FindBySecretAgentKey(ctx context.Context, tenantID, secretID, agentID uuid.UUID, publicKey string) (*models.Lease, error) {
	var lease models.Lease
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND secret_id = ? AND agent_id = ? AND public_key = ?",
			tenantID, secretID, agentID, publicKey).
		First(&lease).Error
	if err != nil {
		return nil, err
	}
	return &lease, nil
}

// DeleteBySecretAndAgent removes all leases for a (secret, agent) pair and
// returns the number removed. An agent can hold leases under several keys;
// revocation is all-or-nothing per agent.
func (r *leaseRepository) DeleteBySecretAndAgent(ctx context.Context, tenantID, secretID, agentID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND secret_id = ? AND agent_id = ?", tenantID, secretID, agentID).
		Delete(&models.Lease{})
	return result.RowsAffected, result.Error
}

// DeleteBySecret removes all leases referencing a secret
func (r *leaseRepository) DeleteBySecret(ctx context.Context, tenantID, secretID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND secret_id = ?", tenantID, secretID).
		Delete(&models.Lease{})
	return result.RowsAffected, result.Error
}
