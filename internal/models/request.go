package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestStatus represents the workflow state of a secret request
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestFulfilled RequestStatus = "fulfilled"
	RequestRejected  RequestStatus = "rejected"
	RequestAbandoned RequestStatus = "abandoned"
)

// Terminal reports whether no further transitions are allowed from this status
func (s RequestStatus) Terminal() bool {
	return s == RequestFulfilled || s == RequestRejected || s == RequestAbandoned
}

// RequestType distinguishes what the requester is asking for
type RequestType string

const (
	// RequestTypeCreate asks an administrator to create a brand new secret
	RequestTypeCreate RequestType = "CREATE"
	// RequestTypeLease asks for access to an existing secret
	RequestTypeLease RequestType = "LEASE"
)

// MaxContextBytes caps the free-text context attached to a request
const MaxContextBytes = 8 * 1024

// SecretRequest is a workflow ticket raised by an agent (or admin) asking for
// a new secret or for access to an existing one. Lifecycle: pending -> one of
// {fulfilled, rejected, abandoned}; terminal states admit no transitions.
type SecretRequest struct {
	ID               uuid.UUID     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID         uuid.UUID     `gorm:"type:uuid;not null;index:idx_requests_tenant" json:"tenant_id"`
	RequesterID      uuid.UUID     `gorm:"type:uuid;not null;index:idx_requests_requester" json:"requester_id"`
	Status           RequestStatus `gorm:"type:varchar(20);not null;default:'pending';index:idx_requests_status" json:"status"`
	Type             RequestType   `gorm:"type:varchar(10);not null" json:"type"`
	Name             string        `gorm:"type:varchar(255);not null" json:"name"`
	Context          string        `gorm:"type:text" json:"context,omitempty"`
	RequiredMetadata JSONB         `gorm:"type:jsonb;default:'{}'" json:"required_metadata,omitempty"`
	RequiredFields   JSONB         `gorm:"type:jsonb;default:'[]'" json:"required_fields,omitempty"`
	TargetSecretID   *uuid.UUID    `gorm:"type:uuid" json:"target_secret_id,omitempty"`
	MappedSecretID   *uuid.UUID    `gorm:"type:uuid" json:"mapped_secret_id,omitempty"`
	RejectionReason  *string       `gorm:"type:text" json:"rejection_reason,omitempty"`
	FulfillmentURL   string        `gorm:"type:varchar(512)" json:"fulfillment_url,omitempty"`
	CreatedAt        time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM
func (SecretRequest) TableName() string {
	return "vault_secret_requests"
}

// BeforeCreate hook to set default ID
func (r *SecretRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
