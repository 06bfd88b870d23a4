package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxMetadataBytes caps the serialized size of a secret's metadata map
const MaxMetadataBytes = 8 * 1024

// Secret is a named, encrypted value plus arbitrary metadata.
// Ciphertext is the value encrypted under the tenant DEK; plaintext values
// never touch the database.
type Secret struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID   uuid.UUID `gorm:"type:uuid;not null;index:idx_secrets_tenant" json:"tenant_id"`
	Name       string    `gorm:"type:varchar(255);not null" json:"name"`
	Ciphertext []byte    `gorm:"type:bytea;not null" json:"-"`
	Metadata   JSONB     `gorm:"type:jsonb;default:'{}'" json:"metadata"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM
func (Secret) TableName() string {
	return "vault_secrets"
}

// BeforeCreate hook to set default ID
func (s *Secret) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
