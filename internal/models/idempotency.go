package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IdempotencyState tracks whether a deduplicated call has finished
type IdempotencyState string

const (
	// IdempotencyInProgress is the reserve marker inserted before the
	// business logic runs; a concurrent duplicate fails its insert on the
	// unique index instead of re-executing.
	IdempotencyInProgress IdempotencyState = "in_progress"
	IdempotencyCompleted  IdempotencyState = "completed"
)

// IdempotencyRecord caches the response of a completed mutating call, keyed
// by tenant plus the caller-supplied idempotency key.
type IdempotencyRecord struct {
	ID             uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID       uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_idem_tenant_key" json:"tenant_id"`
	ClientKey      string           `gorm:"type:varchar(255);not null;uniqueIndex:idx_idem_tenant_key" json:"client_key"`
	State          IdempotencyState `gorm:"type:varchar(20);not null;default:'in_progress'" json:"state"`
	ResponseStatus int              `gorm:"type:int" json:"response_status"`
	ResponseBody   []byte           `gorm:"type:jsonb" json:"response_body,omitempty"`
	CreatedAt      time.Time        `gorm:"autoCreateTime;index:idx_idem_created" json:"created_at"`
}

// TableName returns the table name for GORM
func (IdempotencyRecord) TableName() string {
	return "vault_idempotency_records"
}

// BeforeCreate hook to set default ID
func (r *IdempotencyRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
