package models

import (
	"time"

	"github.com/google/uuid"
)

// SecretResponse is the metadata-only view of a secret.
// NOTE: This NEVER contains the plaintext value.
type SecretResponse struct {
	ID        uuid.UUID         `json:"id"`
	TenantID  uuid.UUID         `json:"tenant_id"`
	Name      string            `json:"name"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// SecretView is the admin read view carrying the decrypted value
type SecretView struct {
	ID        uuid.UUID         `json:"id"`
	Name      string            `json:"name"`
	Value     string            `json:"value"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// LeasePayloadResponse carries the agent-bound encrypted payload resolved
// for the caller's currently registered public key
type LeasePayloadResponse struct {
	SecretID         uuid.UUID  `json:"secret_id"`
	EncryptedPayload []byte     `json:"encrypted_payload"`
	PublicKey        string     `json:"public_key"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
}

// AgentResponse is the public view of an agent; the token is only returned
// once, at registration time
type AgentResponse struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	PublicKey string      `json:"public_key"`
	Status    AgentStatus `json:"status"`
	Token     string      `json:"token,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// ErrorResponse is a standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// HealthResponse is the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
