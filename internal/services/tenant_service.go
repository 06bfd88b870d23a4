package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/Tesseract-Nexus/global-services/vault-service/internal/crypto"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/events"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/models"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TenantService handles tenant onboarding and agent identity management
type TenantService struct {
	tenantRepo repository.TenantRepository
	agentRepo  repository.AgentRepository
	auditRepo  repository.AuditRepository
	keySvc     *crypto.KeyService
	publisher  *events.Publisher
	logger     *logrus.Entry
}

// NewTenantService creates a new tenant service
func NewTenantService(
	tenantRepo repository.TenantRepository,
	agentRepo repository.AgentRepository,
	auditRepo repository.AuditRepository,
	keySvc *crypto.KeyService,
	publisher *events.Publisher,
	logger *logrus.Entry,
) *TenantService {
	return &TenantService{
		tenantRepo: tenantRepo,
		agentRepo:  agentRepo,
		auditRepo:  auditRepo,
		keySvc:     keySvc,
		publisher:  publisher,
		logger:     logger,
	}
}

// CreateTenant onboards a tenant: a fresh DEK is generated, wrapped under the
// system master key and persisted on the tenant record. The plaintext DEK
// never leaves this call.
func (s *TenantService) CreateTenant(ctx context.Context, req *models.CreateTenantRequest) (*models.Tenant, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}

	wrapped, err := s.keySvc.WrapNewTenantKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to provision tenant key: %w", err)
	}

	tenant := &models.Tenant{
		Name:               req.Name,
		Status:             models.TenantActive,
		EncryptedTenantKey: wrapped,
	}

	if err := s.tenantRepo.Create(ctx, tenant); err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"tenant_id": tenant.ID,
		"name":      tenant.Name,
	}).Info("tenant created")

	s.publisher.Publish(events.SubjectTenantCreated, events.Event{
		TenantID: tenant.ID.String(),
		EntityID: tenant.ID.String(),
	})

	return tenant, nil
}

// GetTenant retrieves a tenant by id
func (s *TenantService) GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	tenant, err := s.tenantRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return tenant, nil
}

// RegisterAgent creates an agent identity within the caller's tenant.
// The access token is generated here, returned exactly once in the response
// and stored only as a bcrypt hash.
func (s *TenantService) RegisterAgent(ctx context.Context, caller models.Caller, req *models.RegisterAgentRequest) (*models.AgentResponse, error) {
	if !caller.IsAdmin() {
		return nil, fmt.Errorf("%w: only administrators may register agents", ErrAccessDenied)
	}
	if req.Name == "" || req.PublicKey == "" {
		return nil, fmt.Errorf("%w: name and public_key are required", ErrInvalidArgument)
	}

	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate agent token: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash agent token: %w", err)
	}

	agent := &models.Agent{
		TenantID:  caller.TenantID,
		Name:      req.Name,
		PublicKey: req.PublicKey,
		TokenHash: string(hash),
		Status:    models.AgentActive,
	}

	if err := s.agentRepo.Create(ctx, agent); err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	s.logAudit(ctx, caller, models.EntityAgent, agent.ID.String(), models.AuditActionCreated, models.AuditStatusSuccess, "")

	return &models.AgentResponse{
		ID:        agent.ID,
		Name:      agent.Name,
		PublicKey: agent.PublicKey,
		Status:    agent.Status,
		Token:     token,
		CreatedAt: agent.CreatedAt,
	}, nil
}

// RotateAgentKey replaces the agent's registered public key. Allowed for an
// administrator or for the agent itself. Existing leases bound to the old key
// stay on record but can no longer be resolved.
func (s *TenantService) RotateAgentKey(ctx context.Context, caller models.Caller, agentID uuid.UUID, req *models.RotateAgentKeyRequest) (*models.Agent, error) {
	if !caller.IsAdmin() && caller.ActorID != agentID {
		return nil, fmt.Errorf("%w: agents may only rotate their own key", ErrAccessDenied)
	}
	if req.PublicKey == "" {
		return nil, fmt.Errorf("%w: public_key is required", ErrInvalidArgument)
	}

	if err := s.agentRepo.UpdatePublicKey(ctx, caller.TenantID, agentID, req.PublicKey); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to rotate agent key: %w", err)
	}

	agent, err := s.agentRepo.GetByIDAndTenant(ctx, caller.TenantID, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload agent: %w", err)
	}

	s.logAudit(ctx, caller, models.EntityAgent, agentID.String(), models.AuditActionUpdated, models.AuditStatusSuccess, "")
	s.logger.WithFields(logrus.Fields{
		"tenant_id": caller.TenantID,
		"agent_id":  agentID,
	}).Info("agent public key rotated")

	return agent, nil
}

// GetAgent retrieves an agent within the caller's tenant
func (s *TenantService) GetAgent(ctx context.Context, caller models.Caller, agentID uuid.UUID) (*models.Agent, error) {
	agent, err := s.agentRepo.GetByIDAndTenant(ctx, caller.TenantID, agentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return agent, nil
}

func (s *TenantService) logAudit(ctx context.Context, caller models.Caller, entityType, entityID, action, status, errMsg string) {
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

// generateToken returns a 256-bit random token, hex encoded
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
