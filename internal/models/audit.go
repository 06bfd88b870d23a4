package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VaultAuditLog records all vault operations for audit trail.
// Values and key material are never written here.
type VaultAuditLog struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID     uuid.UUID `gorm:"type:uuid;not null;index:idx_vault_audit_tenant" json:"tenant_id"`
	EntityType   string    `gorm:"type:varchar(50);not null" json:"entity_type"`
	EntityID     *string   `gorm:"type:varchar(100)" json:"entity_id,omitempty"`
	Action       string    `gorm:"type:varchar(50);not null" json:"action"`
	Status       string    `gorm:"type:varchar(20);not null" json:"status"`
	ErrorMessage *string   `gorm:"type:text" json:"error_message,omitempty"`
	ActorID      *string   `gorm:"type:varchar(100)" json:"actor_id,omitempty"`
	ActorRole    *string   `gorm:"type:varchar(20)" json:"actor_role,omitempty"`
	RequestID    *string   `gorm:"type:varchar(100)" json:"request_id,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index:idx_vault_audit_time" json:"created_at"`
}

// TableName returns the table name for GORM
func (VaultAuditLog) TableName() string {
	return "vault_audit_log"
}

// BeforeCreate hook to set default ID
func (a *VaultAuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Audited entity types
const (
	EntityTenant  = "tenant"
	EntityAgent   = "agent"
	EntitySecret  = "secret"
	EntityLease   = "lease"
	EntityRequest = "request"
)

// AuditAction constants
const (
	AuditActionCreated   = "created"
	AuditActionUpdated   = "updated"
	AuditActionDeleted   = "deleted"
	AuditActionAccessed  = "accessed"
	AuditActionRevoked   = "revoked"
	AuditActionFulfilled = "fulfilled"
	AuditActionRejected  = "rejected"
	AuditActionAbandoned = "abandoned"
	AuditActionTamper    = "tamper_detected"
)

// AuditStatus constants
const (
	AuditStatusSuccess = "success"
	AuditStatusFailure = "failure"
)
