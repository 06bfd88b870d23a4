package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Lease grants one agent read access to one secret's value, encoded as an
// encrypted payload bound to the public key the agent had registered at
// issuance. At most one lease exists per (secret, agent, public key) tuple.
type Lease struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID         uuid.UUID  `gorm:"type:uuid;not null;index:idx_leases_tenant" json:"tenant_id"`
	SecretID         uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_leases_secret_agent_key;index:idx_leases_secret" json:"secret_id"`
	AgentID          uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_leases_secret_agent_key" json:"agent_id"`
	PublicKey        string     `gorm:"type:text;not null;uniqueIndex:idx_leases_secret_agent_key" json:"public_key"`
	EncryptedPayload []byte     `gorm:"type:bytea;not null" json:"-"`
	ExpiresAt        *time.Time `gorm:"index" json:"expires_at,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM
func (Lease) TableName() string {
	return "vault_leases"
}

// BeforeCreate hook to set default ID
func (l *Lease) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// Expired reports whether the lease has passed its expiry, if one is set
func (l *Lease) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}
