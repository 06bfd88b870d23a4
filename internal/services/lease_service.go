package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Tesseract-Nexus/global-services/vault-service/internal/events"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/metrics"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/models"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LeaseService grants, lists, revokes and resolves per-agent access to
// secrets. A lease binds (secret, agent, public key) to a payload the
// administrator encrypted for that key; the vault stores the payload opaquely.
type LeaseService struct {
	leaseRepo  repository.LeaseRepository
	secretRepo repository.SecretRepository
	agentRepo  repository.AgentRepository
	auditRepo  repository.AuditRepository
	publisher  *events.Publisher
	metrics    *metrics.Collector
	logger     *logrus.Entry
	now        func() time.Time
}

// NewLeaseService creates a new lease service
func NewLeaseService(
	leaseRepo repository.LeaseRepository,
	secretRepo repository.SecretRepository,
	agentRepo repository.AgentRepository,
	auditRepo repository.AuditRepository,
	publisher *events.Publisher,
	collector *metrics.Collector,
	logger *logrus.Entry,
) *LeaseService {
	return &LeaseService{
		leaseRepo:  leaseRepo,
		secretRepo: secretRepo,
		agentRepo:  agentRepo,
		auditRepo:  auditRepo,
		publisher:  publisher,
		metrics:    collector,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateLease grants an agent access to a secret. Issuing a second lease for
// the same (secret, agent, public key) triple replaces the payload and expiry
// in place rather than stacking grants.
func (s *LeaseService) CreateLease(ctx context.Context, caller models.Caller, secretID uuid.UUID, req *models.CreateLeaseRequest) (*models.Lease, error) {
	if !caller.IsAdmin() {
		return nil, fmt.Errorf("%w: only administrators may grant leases", ErrAccessDenied)
	}
	if req.PublicKey == "" || len(req.EncryptedPayload) == 0 {
		return nil, fmt.Errorf("%w: public_key and encrypted_payload are required", ErrInvalidArgument)
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(s.now()) {
		return nil, fmt.Errorf("%w: expires_at must be in the future", ErrInvalidArgument)
	}

	if _, err := s.secretRepo.GetByIDAndTenant(ctx, caller.TenantID, secretID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get secret: %w", err)
	}

	agent, err := s.agentRepo.GetByIDAndTenant(ctx, caller.TenantID, req.AgentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}

	lease := &models.Lease{
		TenantID:         caller.TenantID,
		SecretID:         secretID,
		AgentID:          agent.ID,
		PublicKey:        req.PublicKey,
		EncryptedPayload: req.EncryptedPayload,
		ExpiresAt:        req.ExpiresAt,
	}

	if err := s.leaseRepo.Upsert(ctx, lease); err != nil {
		return nil, fmt.Errorf("failed to create lease: %w", err)
	}

	// On the conflict path the row keeps its original id while the insert
	// struct carries a freshly stamped one. Re-read so the response, audit
	// entry and event all reference the persisted record.
	lease, err = s.leaseRepo.FindBySecretAgentKey(ctx, caller.TenantID, secretID, agent.ID, req.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to reload lease: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"tenant_id": caller.TenantID,
		"secret_id": secretID,
		"agent_id":  agent.ID,
	}).Info("lease granted")

	s.logAudit(ctx, caller, models.EntityLease, lease.ID.String(), models.AuditActionCreated, models.AuditStatusSuccess, "")
	s.metrics.LeasesIssued.Inc()
	s.publisher.Publish(events.SubjectLeaseCreated, events.Event{
		TenantID: caller.TenantID.String(),
		EntityID: lease.ID.String(),
		ActorID:  caller.ActorID.String(),
		Fields: map[string]string{
			"secret_id": secretID.String(),
			"agent_id":  agent.ID.String(),
		},
	})

	return lease, nil
}

// ListLeases lists leases on a secret, optionally filtered by agent
func (s *LeaseService) ListLeases(ctx context.Context, caller models.Caller, secretID uuid.UUID, agentID *uuid.UUID) ([]*models.Lease, error) {
	if !caller.IsAdmin() {
		return nil, fmt.Errorf("%w: only administrators may list leases", ErrAccessDenied)
	}

	if _, err := s.secretRepo.GetByIDAndTenant(ctx, caller.TenantID, secretID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get secret: %w", err)
	}

	leases, err := s.leaseRepo.ListBySecret(ctx, caller.TenantID, secretID, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list leases: %w", err)
	}
	return leases, nil
}

// RevokeLeases removes every lease an agent holds on a secret, across all of
// the agent's historical public keys
func (s *LeaseService) RevokeLeases(ctx context.Context, caller models.Caller, secretID, agentID uuid.UUID) error {
	if !caller.IsAdmin() {
		return fmt.Errorf("%w: only administrators may revoke leases", ErrAccessDenied)
	}

	removed, err := s.leaseRepo.DeleteBySecretAndAgent(ctx, caller.TenantID, secretID, agentID)
	if err != nil {
		return fmt.Errorf("failed to revoke leases: %w", err)
	}
	if removed == 0 {
		return ErrNotFound
	}

	s.logger.WithFields(logrus.Fields{
		"tenant_id": caller.TenantID,
		"secret_id": secretID,
		"agent_id":  agentID,
		"revoked":   removed,
	}).Info("leases revoked")

	s.logAudit(ctx, caller, models.EntityLease, secretID.String(), models.AuditActionRevoked, models.AuditStatusSuccess, "")
	s.metrics.LeasesRevoked.Add(float64(removed))
	s.publisher.Publish(events.SubjectLeaseRevoked, events.Event{
		TenantID: caller.TenantID.String(),
		EntityID: secretID.String(),
		ActorID:  caller.ActorID.String(),
		Fields:   map[string]string{"agent_id": agentID.String()},
	})

	return nil
}

// ResolveForAgent returns the encrypted payload leased to the calling agent
// under its currently registered public key. A lease issued for a previous
// key, an expired lease, or no lease at all are indistinguishable to the
// caller: all deny access.
func (s *LeaseService) ResolveForAgent(ctx context.Context, caller models.Caller, secretID uuid.UUID) (*models.LeasePayloadResponse, error) {
	agent, err := s.agentRepo.GetByIDAndTenant(ctx, caller.TenantID, caller.ActorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccessDenied
		}
		return nil, fmt.Errorf("failed to load agent: %w", err)
	}

	if _, err := s.secretRepo.GetByIDAndTenant(ctx, caller.TenantID, secretID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get secret: %w", err)
	}

	lease, err := s.leaseRepo.FindBySecretAgentKey(ctx, caller.TenantID, secretID, agent.ID, agent.PublicKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logAudit(ctx, caller, models.EntityLease, secretID.String(), models.AuditActionAccessed, models.AuditStatusFailure, "no lease for current key")
			return nil, ErrAccessDenied
		}
		return nil, fmt.Errorf("failed to resolve lease: %w", err)
	}

	if lease.Expired(s.now()) {
		s.logAudit(ctx, caller, models.EntityLease, lease.ID.String(), models.AuditActionAccessed, models.AuditStatusFailure, "lease expired")
		return nil, ErrAccessDenied
	}

	s.logAudit(ctx, caller, models.EntityLease, lease.ID.String(), models.AuditActionAccessed, models.AuditStatusSuccess, "")

	return &models.LeasePayloadResponse{
		SecretID:         secretID,
		EncryptedPayload: lease.EncryptedPayload,
		PublicKey:        lease.PublicKey,
		ExpiresAt:        lease.ExpiresAt,
	}, nil
}

func (s *LeaseService) logAudit(ctx context.Context, caller models.Caller, entityType, entityID, action, status, errMsg string) {
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
