package repository

import (
	"context"
	"time"

	"github.com/Tesseract-Nexus/global-services/vault-service/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AgentRepository provides database operations for agent identities.
// Every read and write is tenant-scoped; the tenant_id clause lives here so
// callers cannot forget it.
type AgentRepository interface {
	Create(ctx context.Context, agent *models.Agent) error
	GetByIDAndTenant(ctx context.Context, tenantID, id uuid.UUID) (*models.Agent, error)
	UpdatePublicKey(ctx context.Context, tenantID, id uuid.UUID, publicKey string) error
}

// agentRepository implements AgentRepository
type agentRepository struct {
	db *gorm.DB
}

// NewAgentRepository creates a new agent repository instance
func NewAgentRepository(db *gorm.DB) AgentRepository {
	return &agentRepository{db: db}
}

// Create creates a new agent record
func (r *agentRepository) Create(ctx context.Context, agent *models.Agent) error {
	return r.db.WithContext(ctx).Create(agent).Error
}

// GetByIDAndTenant retrieves an agent by id within a tenant
func (r *agentRepository) GetByIDAndTenant(ctx context.Context, tenantID, id uuid.UUID) (*models.Agent, error) {
	var agent models.Agent
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&agent).Error
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

// UpdatePublicKey replaces the agent's registered public key.
// Leases issued under the previous key become unresolvable but are not deleted.
func (r *agentRepository) UpdatePublicKey(ctx context.Context, tenantID, id uuid.UUID, publicKey string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Agent{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(map[string]interface{}{
			"public_key": publicKey,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
