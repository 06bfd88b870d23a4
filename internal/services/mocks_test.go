package services

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/Tesseract-Nexus/global-services/vault-service/internal/crypto"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/metrics"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// The prometheus default registry rejects duplicate registration, so the
// test collector is created once for the package.
var testCollector = metrics.NewCollector()

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger.WithField("service", "test")
}

func testKeyService(t *testing.T) *crypto.KeyService {
	t.Helper()
	smk, err := crypto.GenerateKey()
	require.NoError(t, err)
	return crypto.NewKeyService(&crypto.StaticMasterKeyProvider{Key: smk})
}

func adminCaller(tenantID uuid.UUID) models.Caller {
	return models.Caller{TenantID: tenantID, ActorID: uuid.New(), Role: models.RoleAdmin}
}

func agentCaller(tenantID, agentID uuid.UUID) models.Caller {
	return models.Caller{TenantID: tenantID, ActorID: agentID, Role: models.RoleAgent}
}

// MockTenantRepository is a mock implementation of TenantRepository
type MockTenantRepository struct {
	mock.Mock
}

func (m *MockTenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

func (m *MockTenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

// MockAgentRepository is a mock implementation of AgentRepository
type MockAgentRepository struct {
	mock.Mock
}

func (m *MockAgentRepository) Create(ctx context.Context, agent *models.Agent) error {
	args := m.Called(ctx, agent)
	return args.Error(0)
}

func (m *MockAgentRepository) GetByIDAndTenant(ctx context.Context, tenantID, id uuid.UUID) (*models.Agent, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Agent), args.Error(1)
}

func (m *MockAgentRepository) UpdatePublicKey(ctx context.Context, tenantID, id uuid.UUID, publicKey string) error {
	args := m.Called(ctx, tenantID, id, publicKey)
	return args.Error(0)
}

// MockSecretRepository is a mock implementation of SecretRepository
type MockSecretRepository struct {
	mock.Mock
}

func (m *MockSecretRepository) Create(ctx context.Context, secret *models.Secret) error {
	args := m.Called(ctx, secret)
	return args.Error(0)
}

func (m *MockSecretRepository) GetByIDAndTenant(ctx context.Context, tenantID, id uuid.UUID) (*models.Secret, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Secret), args.Error(1)
}

func (m *MockSecretRepository) Update(ctx context.Context, secret *models.Secret) error {
	args := m.Called(ctx, secret)
	return args.Error(0)
}

func (m *MockSecretRepository) UpdateAndInvalidateLeases(ctx context.Context, secret *models.Secret) (int64, error) {
	args := m.Called(ctx, secret)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSecretRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

func (m *MockSecretRepository) SearchByMetadata(ctx context.Context, tenantID uuid.UUID, metadata map[string]string) ([]*models.Secret, error) {
	args := m.Called(ctx, tenantID, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Secret), args.Error(1)
}

// MockLeaseRepository is a mock implementation of LeaseRepository
type MockLeaseRepository struct {
	mock.Mock
}

func (m *MockLeaseRepository) Upsert(ctx context.Context, lease *models.Lease) error {
	args := m.Called(ctx, lease)
	return args.Error(0)
}

func (m *MockLeaseRepository) ListBySecret(ctx context.Context, tenantID, secretID uuid.UUID, agentID *uuid.UUID) ([]*models.Lease, error) {
	args := m.Called(ctx, tenantID, secretID, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Lease), args.Error(1)
}

func (m *MockLeaseRepository) FindBySecretAgentKey(ctx context.Context, tenantID, secretID, agentID uuid.UUID, publicKey string) (*models.Lease, error) {
	args := m.Called(ctx, tenantID, secretID, agentID, publicKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lease), args.Error(1)
}

func (m *MockLeaseRepository) DeleteBySecretAndAgent(ctx context.Context, tenantID, secretID, agentID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID, secretID, agentID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLeaseRepository) DeleteBySecret(ctx context.Context, tenantID, secretID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID, secretID)
	return args.Get(0).(int64), args.Error(1)
}

// MockRequestRepository is a mock implementation of RequestRepository
type MockRequestRepository struct {
	mock.Mock
}

func (m *MockRequestRepository) Create(ctx context.Context, request *models.SecretRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockRequestRepository) GetByIDAndTenant(ctx context.Context, tenantID, id uuid.UUID) (*models.SecretRequest, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SecretRequest), args.Error(1)
}

func (m *MockRequestRepository) SetFulfillmentURL(ctx context.Context, tenantID, id uuid.UUID, url string) error {
	args := m.Called(ctx, tenantID, id, url)
	return args.Error(0)
}

func (m *MockRequestRepository) TransitionFromPending(ctx context.Context, tenantID, id uuid.UUID, updates map[string]interface{}) (bool, error) {
	args := m.Called(ctx, tenantID, id, updates)
	return args.Bool(0), args.Error(1)
}

func (m *MockRequestRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID, status *models.RequestStatus, limit, offset int) ([]*models.SecretRequest, error) {
	args := m.Called(ctx, tenantID, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SecretRequest), args.Error(1)
}

// MockAuditRepository is a mock implementation of AuditRepository
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Create(ctx context.Context, log *models.VaultAuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockAuditRepository) GetByEntity(ctx context.Context, tenantID uuid.UUID, entityType, entityID string, limit int) ([]*models.VaultAuditLog, error) {
	args := m.Called(ctx, tenantID, entityType, entityID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.VaultAuditLog), args.Error(1)
}

func (m *MockAuditRepository) GetByTenant(ctx context.Context, tenantID uuid.UUID, since time.Time, limit int) ([]*models.VaultAuditLog, error) {
	args := m.Called(ctx, tenantID, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.VaultAuditLog), args.Error(1)
}
