package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TenantStatus represents the lifecycle state of a tenant
type TenantStatus string

const (
	TenantActive    TenantStatus = "active"
	TenantSuspended TenantStatus = "suspended"
)

// Tenant is the isolation boundary for all vault entities.
// EncryptedTenantKey holds the tenant DEK wrapped under the system master key;
// the plaintext DEK is never persisted.
type Tenant struct {
	ID                 uuid.UUID    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name               string       `gorm:"type:varchar(255);not null" json:"name"`
	Status             TenantStatus `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	EncryptedTenantKey []byte       `gorm:"type:bytea;not null" json:"-"`
	CreatedAt          time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM
func (Tenant) TableName() string {
	return "vault_tenants"
}

// BeforeCreate hook to set default ID
func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// ActorRole identifies the kind of caller performing an operation
type ActorRole string

const (
	RoleAdmin ActorRole = "admin"
	RoleAgent ActorRole = "agent"
)

// Caller is the identity triple resolved by the upstream auth layer.
// The vault trusts it once handed in; token verification happens upstream.
type Caller struct {
	TenantID uuid.UUID
	ActorID  uuid.UUID
	Role     ActorRole
}

// IsAdmin returns true for administrative callers
func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}
