package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Tesseract-Nexus/global-services/vault-service/internal/crypto"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/events"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/metrics"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/models"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SecretService handles secret lifecycle: values are encrypted under the
// tenant DEK before they reach the repository and decrypted only for
// administrator reads. Agents never read secrets here; they go through leases.
type SecretService struct {
	secretRepo repository.SecretRepository
	leaseRepo  repository.LeaseRepository
	tenantRepo repository.TenantRepository
	auditRepo  repository.AuditRepository
	keySvc     *crypto.KeyService
	publisher  *events.Publisher
	metrics    *metrics.Collector
	logger     *logrus.Entry
}

// NewSecretService creates a new secret service
func NewSecretService(
	secretRepo repository.SecretRepository,
	leaseRepo repository.LeaseRepository,
	tenantRepo repository.TenantRepository,
	auditRepo repository.AuditRepository,
	keySvc *crypto.KeyService,
	publisher *events.Publisher,
	collector *metrics.Collector,
	logger *logrus.Entry,
) *SecretService {
	return &SecretService{
		secretRepo: secretRepo,
		leaseRepo:  leaseRepo,
		tenantRepo: tenantRepo,
		auditRepo:  auditRepo,
		keySvc:     keySvc,
		publisher:  publisher,
		metrics:    collector,
		logger:     logger,
	}
}

// CreateSecret encrypts the value under the caller tenant's DEK and stores it
func (s *SecretService) CreateSecret(ctx context.Context, caller models.Caller, req *models.CreateSecretRequest) (*models.SecretResponse, error) {
	if !caller.IsAdmin() {
		return nil, fmt.Errorf("%w: only administrators may create secrets", ErrAccessDenied)
	}
	if req.Name == "" || req.Value == "" {
		return nil, fmt.Errorf("%w: name and value are required", ErrInvalidArgument)
	}

	metadata, err := encodeMetadata(req.Metadata)
	if err != nil {
		return nil, err
	}

	dek, err := s.tenantKey(ctx, caller)
	if err != nil {
		return nil, err
	}

	ciphertext, err := crypto.Encrypt([]byte(req.Value), dek)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt secret value: %w", err)
	}

	secret := &models.Secret{
		TenantID:   caller.TenantID,
		Name:       req.Name,
		Ciphertext: ciphertext,
		Metadata:   metadata,
	}

	if err := s.secretRepo.Create(ctx, secret); err != nil {
		return nil, fmt.Errorf("failed to create secret: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"tenant_id": caller.TenantID,
		"secret_id": secret.ID,
		"name":      secret.Name,
	}).Info("secret created")

	s.logAudit(ctx, caller, models.EntitySecret, secret.ID.String(), models.AuditActionCreated, models.AuditStatusSuccess, "")
	s.metrics.SecretsCreated.Inc()
	s.publisher.Publish(events.SubjectSecretCreated, events.Event{
		TenantID: caller.TenantID.String(),
		EntityID: secret.ID.String(),
		ActorID:  caller.ActorID.String(),
	})

	return secretToResponse(secret), nil
}

// GetSecret returns the decrypted value for an administrator. Agents must
// resolve their lease instead; direct reads are denied.
func (s *SecretService) GetSecret(ctx context.Context, caller models.Caller, id uuid.UUID) (*models.SecretView, error) {
	if !caller.IsAdmin() {
		return nil, fmt.Errorf("%w: agents read secrets through their leases", ErrAccessDenied)
	}

	secret, err := s.secretRepo.GetByIDAndTenant(ctx, caller.TenantID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get secret: %w", err)
	}

	dek, err := s.tenantKey(ctx, caller)
	if err != nil {
		return nil, err
	}

	plaintext, err := crypto.Decrypt(secret.Ciphertext, dek)
	if err != nil {
		if errors.Is(err, crypto.ErrAuthenticationFailed) {
			s.recordTamper(ctx, caller, models.EntitySecret, secret.ID)
		}
		return nil, err
	}

	s.logAudit(ctx, caller, models.EntitySecret, secret.ID.String(), models.AuditActionAccessed, models.AuditStatusSuccess, "")

	meta, err := decodeMetadata(secret.Metadata)
	if err != nil {
		return nil, err
	}

	return &models.SecretView{
		ID:        secret.ID,
		Name:      secret.Name,
		Value:     string(plaintext),
		Metadata:  meta,
		CreatedAt: secret.CreatedAt,
		UpdatedAt: secret.UpdatedAt,
	}, nil
}

// UpdateSecret applies a partial update. A new value is re-encrypted under
// the tenant DEK and every lease on the secret is dropped, since the
// agent-bound payloads were prepared for the old value.
func (s *SecretService) UpdateSecret(ctx context.Context, caller models.Caller, id uuid.UUID, req *models.UpdateSecretRequest) (*models.SecretResponse, error) {
	if !caller.IsAdmin() {
		return nil, fmt.Errorf("%w: only administrators may update secrets", ErrAccessDenied)
	}
	if req.Name == nil && req.Value == nil && req.Metadata == nil {
		return nil, fmt.Errorf("%w: no fields to update", ErrInvalidArgument)
	}

	secret, err := s.secretRepo.GetByIDAndTenant(ctx, caller.TenantID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get secret: %w", err)
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidArgument)
		}
		secret.Name = *req.Name
	}
	if req.Metadata != nil {
		metadata, err := encodeMetadata(*req.Metadata)
		if err != nil {
			return nil, err
		}
		secret.Metadata = metadata
	}

	valueChanged := false
	if req.Value != nil {
		if *req.Value == "" {
			return nil, fmt.Errorf("%w: value cannot be empty", ErrInvalidArgument)
		}
		dek, err := s.tenantKey(ctx, caller)
		if err != nil {
			return nil, err
		}
		ciphertext, err := crypto.Encrypt([]byte(*req.Value), dek)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt secret value: %w", err)
		}
		secret.Ciphertext = ciphertext
		valueChanged = true
	}

	if valueChanged {
		// The new ciphertext and the lease wipe must land together; a
		// partial write would leave stale payloads resolvable against a
		// value that was already replaced.
		dropped, err := s.secretRepo.UpdateAndInvalidateLeases(ctx, secret)
		if err != nil {
			return nil, fmt.Errorf("failed to update secret: %w", err)
		}
		if dropped > 0 {
			s.logger.WithFields(logrus.Fields{
				"tenant_id": caller.TenantID,
				"secret_id": secret.ID,
				"leases":    dropped,
			}).Info("leases invalidated after value update")
		}
	} else if err := s.secretRepo.Update(ctx, secret); err != nil {
		return nil, fmt.Errorf("failed to update secret: %w", err)
	}

	s.logAudit(ctx, caller, models.EntitySecret, secret.ID.String(), models.AuditActionUpdated, models.AuditStatusSuccess, "")
	s.publisher.Publish(events.SubjectSecretUpdated, events.Event{
		TenantID: caller.TenantID.String(),
		EntityID: secret.ID.String(),
		ActorID:  caller.ActorID.String(),
		Fields:   map[string]string{"value_changed": fmt.Sprintf("%t", valueChanged)},
	})

	return secretToResponse(secret), nil
}

// DeleteSecret removes a secret and every lease referencing it
func (s *SecretService) DeleteSecret(ctx context.Context, caller models.Caller, id uuid.UUID) error {
	if !caller.IsAdmin() {
		return fmt.Errorf("%w: only administrators may delete secrets", ErrAccessDenied)
	}

	if _, err := s.leaseRepo.DeleteBySecret(ctx, caller.TenantID, id); err != nil {
		return fmt.Errorf("failed to delete leases: %w", err)
	}

	if err := s.secretRepo.Delete(ctx, caller.TenantID, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete secret: %w", err)
	}

	s.logAudit(ctx, caller, models.EntitySecret, id.String(), models.AuditActionDeleted, models.AuditStatusSuccess, "")
	s.metrics.SecretsDeleted.Inc()
	s.publisher.Publish(events.SubjectSecretDeleted, events.Event{
		TenantID: caller.TenantID.String(),
		EntityID: id.String(),
		ActorID:  caller.ActorID.String(),
	})

	return nil
}

// SearchSecrets returns metadata-only views of the tenant's secrets whose
// metadata contains every given key/value pair
func (s *SecretService) SearchSecrets(ctx context.Context, caller models.Caller, req *models.SearchSecretsRequest) ([]*models.SecretResponse, error) {
	if len(req.Metadata) == 0 {
		return nil, fmt.Errorf("%w: at least one metadata predicate is required", ErrInvalidArgument)
	}

	secrets, err := s.secretRepo.SearchByMetadata(ctx, caller.TenantID, req.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to search secrets: %w", err)
	}

	responses := make([]*models.SecretResponse, 0, len(secrets))
	for _, secret := range secrets {
		responses = append(responses, secretToResponse(secret))
	}
	return responses, nil
}

// tenantKey unwraps the caller tenant's DEK
func (s *SecretService) tenantKey(ctx context.Context, caller models.Caller) ([]byte, error) {
	tenant, err := s.tenantRepo.GetByID(ctx, caller.TenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}

	dek, err := s.keySvc.UnwrapTenantKey(ctx, tenant.EncryptedTenantKey)
	if err != nil {
		if errors.Is(err, crypto.ErrAuthenticationFailed) {
			s.recordTamper(ctx, caller, models.EntityTenant, caller.TenantID)
		}
		return nil, err
	}
	return dek, nil
}

// recordTamper logs and counts a ciphertext authentication failure. This is
// never reported to the caller as a missing record; it is an integrity signal.
func (s *SecretService) recordTamper(ctx context.Context, caller models.Caller, entityType string, entityID uuid.UUID) {
	s.logger.WithFields(logrus.Fields{
		"tenant_id":   caller.TenantID,
		"entity_type": entityType,
		"entity_id":   entityID,
	}).Warn("ciphertext authentication failed, possible tamper")
	s.metrics.TamperDetected.Inc()
	s.logAudit(ctx, caller, entityType, entityID.String(), models.AuditActionTamper, models.AuditStatusFailure, "ciphertext authentication failed")
}

func (s *SecretService) logAudit(ctx context.Context, caller models.Caller, entityType, entityID, action, status, errMsg string) {
	actorID := caller.ActorID.String()
	role := string(caller.Role)
	entry := &models.VaultAuditLog{
		TenantID:   caller.TenantID,
		EntityType: entityType,
		EntityID:   &entityID,
		Action:     action,
		Status:     status,
		ActorID:    &actorID,
		ActorRole:  &role,
	}
	if errMsg != "" {
		entry.ErrorMessage = &errMsg
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.WithError(err).Error("failed to create audit log")
	}
}

// encodeMetadata validates the size cap and serializes the metadata map
func encodeMetadata(metadata map[string]string) (models.JSONB, error) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	encoded, err := models.NewJSONB(metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata is not serializable", ErrInvalidArgument)
	}
	if len(encoded) > models.MaxMetadataBytes {
		return nil, fmt.Errorf("%w: metadata exceeds %d bytes", ErrInvalidArgument, models.MaxMetadataBytes)
	}
	return encoded, nil
}

// decodeMetadata deserializes stored metadata back into a map
func decodeMetadata(raw models.JSONB) (map[string]string, error) {
	if len(raw) == 0 {
		return map[string]string{}, nil
	}
	var metadata map[string]string
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return metadata, nil
}

func secretToResponse(secret *models.Secret) *models.SecretResponse {
	meta, err := decodeMetadata(secret.Metadata)
	if err != nil {
		meta = map[string]string{}
	}
	return &models.SecretResponse{
		ID:        secret.ID,
		TenantID:  secret.TenantID,
		Name:      secret.Name,
		Metadata:  meta,
		CreatedAt: secret.CreatedAt,
		UpdatedAt: secret.UpdatedAt,
	}
}
