package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AgentStatus represents the lifecycle state of an agent identity
type AgentStatus string

const (
	AgentActive   AgentStatus = "active"
	AgentDisabled AgentStatus = "disabled"
)

// Agent is a non-human, token-authenticated caller identity.
// PublicKey is the agent's currently registered public key; leases are bound
// to the key that was registered at issuance, so rotating it orphans them.
type Agent struct {
	ID        uuid.UUID   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID  uuid.UUID   `gorm:"type:uuid;not null;index:idx_agents_tenant" json:"tenant_id"`
	Name      string      `gorm:"type:varchar(255);not null" json:"name"`
	PublicKey string      `gorm:"type:text;not null" json:"public_key"`
	TokenHash string      `gorm:"type:varchar(255);not null" json:"-"`
	Status    AgentStatus `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	CreatedAt time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM
func (Agent) TableName() string {
	return "vault_agents"
}

// BeforeCreate hook to set default ID
func (a *Agent) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
