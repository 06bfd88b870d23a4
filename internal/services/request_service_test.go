package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/Tesseract-Nexus/global-services/vault-service/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type requestServiceFixture struct {
	service     *RequestService
	requestRepo *MockRequestRepository
	secretRepo  *MockSecretRepository
	auditRepo   *MockAuditRepository
	tenantID    uuid.UUID
}

func newRequestServiceFixture(t *testing.T) *requestServiceFixture {
	t.Helper()
	f := &requestServiceFixture{
		requestRepo: new(MockRequestRepository),
		secretRepo:  new(MockSecretRepository),
		auditRepo:   new(MockAuditRepository),
		tenantID:    uuid.New(),
	}
	f.service = NewRequestService(
		f.requestRepo, f.secretRepo, f.auditRepo,
		nil, testCollector, testLogger(),
		"https://vault.example.com/api/v1",
	)
	return f
}

func TestCreateRequestSetsFulfillmentURL(t *testing.T) {
	f := newRequestServiceFixture(t)
	caller := agentCaller(f.tenantID, uuid.New())

	f.requestRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.SecretRequest")).Return(nil)
	f.requestRepo.On("SetFulfillmentURL", mock.Anything, f.tenantID, mock.Anything, mock.Anything).Return(nil)
	f.auditRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	request, err := f.service.CreateRequest(context.Background(), caller, &models.CreateRequestRequest{
		Type:             models.RequestTypeCreate,
		Name:             "payments-api-key",
		Context:          "deploy pipeline needs the payments key",
		RequiredMetadata: map[string]string{"env": "prod"},
		RequiredFields:   []string{"username", "password"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.RequestPending, request.Status)
	assert.Equal(t, caller.ActorID, request.RequesterID)
	expected := fmt.Sprintf("https://vault.example.com/api/v1/requests/%s", request.ID)
	assert.Equal(t, expected, request.FulfillmentURL)

	f.requestRepo.AssertCalled(t, "SetFulfillmentURL", mock.Anything, f.tenantID, request.ID, expected)
}

func TestCreateRequestInvalidType(t *testing.T) {
	f := newRequestServiceFixture(t)
	caller := agentCaller(f.tenantID, uuid.New())

	_, err := f.service.CreateRequest(context.Background(), caller, &models.CreateRequestRequest{
		Type: "RENEW",
		Name: "key",
	})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCreateRequestContextTooLarge(t *testing.T) {
	f := newRequestServiceFixture(t)
	caller := agentCaller(f.tenantID, uuid.New())

	_, err := f.service.CreateRequest(context.Background(), caller, &models.CreateRequestRequest{
		Type:    models.RequestTypeCreate,
		Name:    "key",
		Context: strings.Repeat("x", models.MaxContextBytes+1),
	})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCreateRequestTargetOnlyForLease(t *testing.T) {
	f := newRequestServiceFixture(t)
	caller := agentCaller(f.tenantID, uuid.New())
	target := uuid.New()

	_, err := f.service.CreateRequest(context.Background(), caller, &models.CreateRequestRequest{
		Type:           models.RequestTypeCreate,
		Name:           "key",
		TargetSecretID: &target,
	})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDecideFulfill(t *testing.T) {
	f := newRequestServiceFixture(t)
	caller := adminCaller(f.tenantID)
	requestID, secretID := uuid.New(), uuid.New()

	f.secretRepo.On("GetByIDAndTenant", mock.Anything, f.tenantID, secretID).
		Return(&models.Secret{ID: secretID, TenantID: f.tenantID}, nil)
	f.requestRepo.On("TransitionFromPending", mock.Anything, f.tenantID, requestID,
		mock.MatchedBy(func(updates map[string]interface{}) bool {
			return updates["status"] == models.RequestFulfilled && updates["mapped_secret_id"] == secretID
		})).Return(true, nil)
	f.requestRepo.On("GetByIDAndTenant", mock.Anything, f.tenantID, requestID).
		Return(&models.SecretRequest{
			ID:             requestID,
			TenantID:       f.tenantID,
			Status:         models.RequestFulfilled,
			MappedSecretID: &secretID,
		}, nil)
	f.auditRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	request, err := f.service.Decide(context.Background(), caller, requestID, &models.UpdateRequestStatusRequest{
		Status:   models.RequestFulfilled,
		SecretID: &secretID,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RequestFulfilled, request.Status)
	require.NotNil(t, request.MappedSecretID)
	assert.Equal(t, secretID, *request.MappedSecretID)
}

func TestDecideFulfillRequiresSecretID(t *testing.T) {
	f := newRequestServiceFixture(t)
	caller := adminCaller(f.tenantID)

	_, err := f.service.Decide(context.Background(), caller, uuid.New(), &models.UpdateRequestStatusRequest{
		Status: models.RequestFulfilled,
	})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDecideRejectRequiresReason(t *testing.T) {
	f := newRequestServiceFixture(t)
	caller := adminCaller(f.tenantID)

	_, err := f.service.Decide(context.Background(), caller, uuid.New(), &models.UpdateRequestStatusRequest{
		Status: models.RequestRejected,
		Reason: "   ",
	})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDecideDeniedForAgent(t *testing.T) {
	f := newRequestServiceFixture(t)
	caller := agentCaller(f.tenantID, uuid.New())
	secretID := uuid.New()

	_, err := f.service.Decide(context.Background(), caller, uuid.New(), &models.UpdateRequestStatusRequest{
		Status:   models.RequestFulfilled,
		SecretID: &secretID,
	})
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestDecideLosesRace(t *testing.T) {
	f := newRequestServiceFixture(t)
	caller := adminCaller(f.tenantID)
	requestID := uuid.New()

	// The conditional write matches no row because a concurrent abandon won
	f.requestRepo.On("TransitionFromPending", mock.Anything, f.tenantID, requestID, mock.Anything).
		Return(false, nil)
	f.requestRepo.On("GetByIDAndTenant", mock.Anything, f.tenantID, requestID).
		Return(&models.SecretRequest{
			ID:       requestID,
			TenantID: f.tenantID,
			Status:   models.RequestAbandoned,
		}, nil)

	_, err := f.service.Decide(context.Background(), caller, requestID, &models.UpdateRequestStatusRequest{
		Status: models.RequestRejected,
		Reason: "not needed",
	})

	stateErr, ok := IsInvalidStateError(err)
	require.True(t, ok)
	assert.Equal(t, models.RequestAbandoned, stateErr.CurrentStatus)
}

func TestAbandonByRequester(t *testing.T) {
	f := newRequestServiceFixture(t)
	requesterID := uuid.New()
	caller := agentCaller(f.tenantID, requesterID)
	requestID := uuid.New()

	pending := &models.SecretRequest{
		ID:          requestID,
		TenantID:    f.tenantID,
		RequesterID: requesterID,
		Status:      models.RequestPending,
	}
	abandoned := &models.SecretRequest{
		ID:          requestID,
		TenantID:    f.tenantID,
		RequesterID: requesterID,
		Status:      models.RequestAbandoned,
	}

	f.requestRepo.On("GetByIDAndTenant", mock.Anything, f.tenantID, requestID).
		Return(pending, nil).Once()
	f.requestRepo.On("TransitionFromPending", mock.Anything, f.tenantID, requestID,
		mock.MatchedBy(func(updates map[string]interface{}) bool {
			return updates["status"] == models.RequestAbandoned
		})).Return(true, nil)
	f.requestRepo.On("GetByIDAndTenant", mock.Anything, f.tenantID, requestID).
		Return(abandoned, nil)
	f.auditRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	request, err := f.service.Abandon(context.Background(), caller, requestID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestAbandoned, request.Status)
}

func TestAbandonByOtherActor(t *testing.T) {
	f := newRequestServiceFixture(t)
	caller := agentCaller(f.tenantID, uuid.New())
	requestID := uuid.New()

	f.requestRepo.On("GetByIDAndTenant", mock.Anything, f.tenantID, requestID).
		Return(&models.SecretRequest{
			ID:          requestID,
			TenantID:    f.tenantID,
			RequesterID: uuid.New(),
			Status:      models.RequestPending,
		}, nil)

	_, err := f.service.Abandon(context.Background(), caller, requestID)
	assert.ErrorIs(t, err, ErrAccessDenied)
	f.requestRepo.AssertNotCalled(t, "TransitionFromPending", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTerminalStatuses(t *testing.T) {
	assert.False(t, models.RequestPending.Terminal())
	assert.True(t, models.RequestFulfilled.Terminal())
	assert.True(t, models.RequestRejected.Terminal())
	assert.True(t, models.RequestAbandoned.Terminal())
}
