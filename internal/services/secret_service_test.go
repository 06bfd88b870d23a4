package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Tesseract-Nexus/global-services/vault-service/internal/crypto"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type secretServiceFixture struct {
	service    *SecretService
	secretRepo *MockSecretRepository
	leaseRepo  *MockLeaseRepository
	tenantRepo *MockTenantRepository
	auditRepo  *MockAuditRepository
	keySvc     *crypto.KeyService
	tenant     *models.Tenant
}

func newSecretServiceFixture(t *testing.T) *secretServiceFixture {
	t.Helper()

	keySvc := testKeyService(t)
	wrapped, err := keySvc.WrapNewTenantKey(context.Background())
	require.NoError(t, err)

	f := &secretServiceFixture{
		secretRepo: new(MockSecretRepository),
		leaseRepo:  new(MockLeaseRepository),
		tenantRepo: new(MockTenantRepository),
		auditRepo:  new(MockAuditRepository),
		keySvc:     keySvc,
		tenant: &models.Tenant{
			ID:                 uuid.New(),
			Name:               "acme",
			Status:             models.TenantActive,
			EncryptedTenantKey: wrapped,
		},
	}
	f.service = NewSecretService(
		f.secretRepo, f.leaseRepo, f.tenantRepo, f.auditRepo,
		keySvc, nil, testCollector, testLogger(),
	)
	return f
}

func (f *secretServiceFixture) dek(t *testing.T) []byte {
	t.Helper()
	dek, err := f.keySvc.UnwrapTenantKey(context.Background(), f.tenant.EncryptedTenantKey)
	require.NoError(t, err)
	return dek
}

func TestCreateSecretEncryptsValue(t *testing.T) {
	f := newSecretServiceFixture(t)
	caller := adminCaller(f.tenant.ID)

	f.tenantRepo.On("GetByID", mock.Anything, f.tenant.ID).Return(f.tenant, nil)
	f.auditRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	var stored *models.Secret
	f.secretRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.Secret")).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*models.Secret)
		}).Return(nil)

	resp, err := f.service.CreateSecret(context.Background(), caller, &models.CreateSecretRequest{
		Name:     "db-password",
		Value:    "hunter2",
		Metadata: map[string]string{"env": "prod"},
	})
	require.NoError(t, err)

	assert.Equal(t, "db-password", resp.Name)
	assert.Equal(t, "prod", resp.Metadata["env"])

	require.NotNil(t, stored)
	assert.Equal(t, caller.TenantID, stored.TenantID)
	assert.NotContains(t, string(stored.Ciphertext), "hunter2")

	plaintext, err := crypto.Decrypt(stored.Ciphertext, f.dek(t))
	require.NoError(t, err)
	assert.Equal(t, "hunter2", string(plaintext))
}

func TestCreateSecretDeniedForAgent(t *testing.T) {
	f := newSecretServiceFixture(t)
	caller := agentCaller(f.tenant.ID, uuid.New())

	_, err := f.service.CreateSecret(context.Background(), caller, &models.CreateSecretRequest{
		Name:  "db-password",
		Value: "hunter2",
	})
	assert.ErrorIs(t, err, ErrAccessDenied)
	f.secretRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateSecretMetadataTooLarge(t *testing.T) {
	f := newSecretServiceFixture(t)
	caller := adminCaller(f.tenant.ID)

	_, err := f.service.CreateSecret(context.Background(), caller, &models.CreateSecretRequest{
		Name:     "db-password",
		Value:    "hunter2",
		Metadata: map[string]string{"blob": strings.Repeat("x", models.MaxMetadataBytes)},
	})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestGetSecretDecryptsForAdmin(t *testing.T) {
	f := newSecretServiceFixture(t)
	caller := adminCaller(f.tenant.ID)

	ciphertext, err := crypto.Encrypt([]byte("hunter2"), f.dek(t))
	require.NoError(t, err)
	secret := &models.Secret{
		ID:         uuid.New(),
		TenantID:   f.tenant.ID,
		Name:       "db-password",
		Ciphertext: ciphertext,
		Metadata:   models.JSONB(`{"env":"prod"}`),
	}

	f.secretRepo.On("GetByIDAndTenant", mock.Anything, f.tenant.ID, secret.ID).Return(secret, nil)
	f.tenantRepo.On("GetByID", mock.Anything, f.tenant.ID).Return(f.tenant, nil)
	f.auditRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	view, err := f.service.GetSecret(context.Background(), caller, secret.ID)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", view.Value)
	assert.Equal(t, "prod", view.Metadata["env"])
}

func TestGetSecretDeniedForAgent(t *testing.T) {
	f := newSecretServiceFixture(t)
	caller := agentCaller(f.tenant.ID, uuid.New())

	_, err := f.service.GetSecret(context.Background(), caller, uuid.New())
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestGetSecretCrossTenantIsNotFound(t *testing.T) {
	f := newSecretServiceFixture(t)
	caller := adminCaller(f.tenant.ID)
	secretID := uuid.New()

	f.secretRepo.On("GetByIDAndTenant", mock.Anything, f.tenant.ID, secretID).
		Return(nil, gorm.ErrRecordNotFound)

	_, err := f.service.GetSecret(context.Background(), caller, secretID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetSecretTamperedCiphertext(t *testing.T) {
	f := newSecretServiceFixture(t)
	caller := adminCaller(f.tenant.ID)

	ciphertext, err := crypto.Encrypt([]byte("hunter2"), f.dek(t))
	require.NoError(t, err)
	ciphertext[len(ciphertext)-1] ^= 0x01

	secret := &models.Secret{
		ID:         uuid.New(),
		TenantID:   f.tenant.ID,
		Name:       "db-password",
		Ciphertext: ciphertext,
	}

	f.secretRepo.On("GetByIDAndTenant", mock.Anything, f.tenant.ID, secret.ID).Return(secret, nil)
	f.tenantRepo.On("GetByID", mock.Anything, f.tenant.ID).Return(f.tenant, nil)
	f.auditRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	_, err = f.service.GetSecret(context.Background(), caller, secret.ID)
	assert.ErrorIs(t, err, crypto.ErrAuthenticationFailed)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestUpdateSecretValueInvalidatesLeases(t *testing.T) {
	f := newSecretServiceFixture(t)
	caller := adminCaller(f.tenant.ID)

	ciphertext, err := crypto.Encrypt([]byte("old-value"), f.dek(t))
	require.NoError(t, err)
	secret := &models.Secret{
		ID:         uuid.New(),
		TenantID:   f.tenant.ID,
		Name:       "db-password",
		Ciphertext: ciphertext,
		Metadata:   models.JSONB(`{}`),
	}

	f.secretRepo.On("GetByIDAndTenant", mock.Anything, f.tenant.ID, secret.ID).Return(secret, nil)
	f.tenantRepo.On("GetByID", mock.Anything, f.tenant.ID).Return(f.tenant, nil)
	f.secretRepo.On("UpdateAndInvalidateLeases", mock.Anything, secret).Return(int64(2), nil)
	f.auditRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	newValue := "new-value"
	_, err = f.service.UpdateSecret(context.Background(), caller, secret.ID, &models.UpdateSecretRequest{
		Value: &newValue,
	})
	require.NoError(t, err)

	// The re-encrypt and the lease wipe go through the single transactional
	// repository call, never as two independent writes.
	f.secretRepo.AssertCalled(t, "UpdateAndInvalidateLeases", mock.Anything, secret)
	f.secretRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	f.leaseRepo.AssertNotCalled(t, "DeleteBySecret", mock.Anything, mock.Anything, mock.Anything)

	plaintext, err := crypto.Decrypt(secret.Ciphertext, f.dek(t))
	require.NoError(t, err)
	assert.Equal(t, "new-value", string(plaintext))
}

func TestUpdateSecretValueWriteFailureLeavesError(t *testing.T) {
	f := newSecretServiceFixture(t)
	caller := adminCaller(f.tenant.ID)

	ciphertext, err := crypto.Encrypt([]byte("old-value"), f.dek(t))
	require.NoError(t, err)
	secret := &models.Secret{
		ID:         uuid.New(),
		TenantID:   f.tenant.ID,
		Name:       "db-password",
		Ciphertext: ciphertext,
		Metadata:   models.JSONB(`{}`),
	}

	f.secretRepo.On("GetByIDAndTenant", mock.Anything, f.tenant.ID, secret.ID).Return(secret, nil)
	f.tenantRepo.On("GetByID", mock.Anything, f.tenant.ID).Return(f.tenant, nil)
	f.secretRepo.On("UpdateAndInvalidateLeases", mock.Anything, secret).
		Return(int64(0), errors.New("connection reset"))

	newValue := "new-value"
	_, err = f.service.UpdateSecret(context.Background(), caller, secret.ID, &models.UpdateSecretRequest{
		Value: &newValue,
	})
	require.Error(t, err)
	f.leaseRepo.AssertNotCalled(t, "DeleteBySecret", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateSecretMetadataOnlyKeepsLeases(t *testing.T) {
	f := newSecretServiceFixture(t)
	caller := adminCaller(f.tenant.ID)

	secret := &models.Secret{
		ID:       uuid.New(),
		TenantID: f.tenant.ID,
		Name:     "db-password",
		Metadata: models.JSONB(`{}`),
	}

	f.secretRepo.On("GetByIDAndTenant", mock.Anything, f.tenant.ID, secret.ID).Return(secret, nil)
	f.secretRepo.On("Update", mock.Anything, secret).Return(nil)
	f.auditRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	metadata := map[string]string{"env": "staging"}
	resp, err := f.service.UpdateSecret(context.Background(), caller, secret.ID, &models.UpdateSecretRequest{
		Metadata: &metadata,
	})
	require.NoError(t, err)
	assert.Equal(t, "staging", resp.Metadata["env"])

	f.leaseRepo.AssertNotCalled(t, "DeleteBySecret", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteSecretRemovesLeases(t *testing.T) {
	f := newSecretServiceFixture(t)
	caller := adminCaller(f.tenant.ID)
	secretID := uuid.New()

	f.leaseRepo.On("DeleteBySecret", mock.Anything, f.tenant.ID, secretID).Return(int64(1), nil)
	f.secretRepo.On("Delete", mock.Anything, f.tenant.ID, secretID).Return(nil)
	f.auditRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	err := f.service.DeleteSecret(context.Background(), caller, secretID)
	require.NoError(t, err)

	f.leaseRepo.AssertExpectations(t)
	f.secretRepo.AssertExpectations(t)
}

func TestSearchSecretsNeverReturnsValues(t *testing.T) {
	f := newSecretServiceFixture(t)
	caller := adminCaller(f.tenant.ID)

	ciphertext, err := crypto.Encrypt([]byte("hunter2"), f.dek(t))
	require.NoError(t, err)

	predicate := map[string]string{"env": "prod"}
	f.secretRepo.On("SearchByMetadata", mock.Anything, f.tenant.ID, predicate).
		Return([]*models.Secret{
			{
				ID:         uuid.New(),
				TenantID:   f.tenant.ID,
				Name:       "db-password",
				Ciphertext: ciphertext,
				Metadata:   models.JSONB(`{"env":"prod","team":"core"}`),
			},
		}, nil)

	results, err := f.service.SearchSecrets(context.Background(), caller, &models.SearchSecretsRequest{
		Metadata: predicate,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "db-password", results[0].Name)
	assert.Equal(t, "core", results[0].Metadata["team"])
}

func TestSearchSecretsNoMatches(t *testing.T) {
	f := newSecretServiceFixture(t)
	caller := adminCaller(f.tenant.ID)

	predicate := map[string]string{"env": "dev"}
	f.secretRepo.On("SearchByMetadata", mock.Anything, f.tenant.ID, predicate).
		Return([]*models.Secret{}, nil)

	results, err := f.service.SearchSecrets(context.Background(), caller, &models.SearchSecretsRequest{
		Metadata: predicate,
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchSecretsEmptyPredicate(t *testing.T) {
	f := newSecretServiceFixture(t)
	caller := adminCaller(f.tenant.ID)

	_, err := f.service.SearchSecrets(context.Background(), caller, &models.SearchSecretsRequest{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
