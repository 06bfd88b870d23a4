package models

import (
	"time"

	"github.com/google/uuid"
)

// CreateTenantRequest is the request body for onboarding a tenant
type CreateTenantRequest struct {
	Name string `json:"name" binding:"required"`
}

// RegisterAgentRequest is the request body for registering an agent identity
type RegisterAgentRequest struct {
	Name      string `json:"name" binding:"required"`
	PublicKey string `json:"public_key" binding:"required"`
}

// RotateAgentKeyRequest is the request body for rotating an agent's public key
type RotateAgentKeyRequest struct {
	PublicKey string `json:"public_key" binding:"required"`
}

// CreateSecretRequest is the request body for creating a secret
type CreateSecretRequest struct {
	Name     string            `json:"name" binding:"required"`
	Value    string            `json:"value" binding:"required"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// UpdateSecretRequest is a partial update of a secret's name/metadata/value.
// Nil fields are left untouched; a non-nil Value rewrites the ciphertext and
// invalidates every lease on the secret.
type UpdateSecretRequest struct {
	Name     *string            `json:"name,omitempty"`
	Value    *string            `json:"value,omitempty"`
	Metadata *map[string]string `json:"metadata,omitempty"`
}

// SearchSecretsRequest is an exact-match conjunction over metadata keys
type SearchSecretsRequest struct {
	Metadata map[string]string `json:"metadata" binding:"required"`
}

// CreateLeaseRequest is the request body for granting an agent access to a secret
type CreateLeaseRequest struct {
	AgentID          uuid.UUID  `json:"agent_id" binding:"required"`
	PublicKey        string     `json:"public_key" binding:"required"`
	EncryptedPayload []byte     `json:"encrypted_payload" binding:"required"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
}

// CreateRequestRequest is the request body for raising a workflow ticket
type CreateRequestRequest struct {
	Type             RequestType       `json:"type" binding:"required"`
	Name             string            `json:"name" binding:"required"`
	Context          string            `json:"context,omitempty"`
	RequiredMetadata map[string]string `json:"required_metadata,omitempty"`
	RequiredFields   []string          `json:"required_fields,omitempty"`
	TargetSecretID   *uuid.UUID        `json:"target_secret_id,omitempty"`
}

// UpdateRequestStatusRequest transitions a pending request to a terminal state
type UpdateRequestStatusRequest struct {
	Status   RequestStatus `json:"status" binding:"required"`
	SecretID *uuid.UUID    `json:"secret_id,omitempty"`
	Reason   string        `json:"reason,omitempty"`
}
