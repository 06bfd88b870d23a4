package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Tesseract-Nexus/global-services/vault-service/internal/idempotency"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testEntry() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger.WithField("service", "test")
}

func TestRequestIDGenerated(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) {
		assert.NotEmpty(t, GetRequestID(c))
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	router.ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestIDPropagated(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "upstream-id")
	router.ServeHTTP(w, req)

	assert.Equal(t, "upstream-id", w.Header().Get("X-Request-ID"))
}

func TestCallerIdentity(t *testing.T) {
	tenantID, actorID := uuid.New(), uuid.New()

	router := gin.New()
	router.Use(CallerIdentity())
	router.GET("/", func(c *gin.Context) {
		caller, ok := GetCaller(c)
		require.True(t, ok)
		assert.Equal(t, tenantID, caller.TenantID)
		assert.Equal(t, actorID, caller.ActorID)
		assert.Equal(t, models.RoleAgent, caller.Role)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Tenant-ID", tenantID.String())
	req.Header.Set("X-Actor-ID", actorID.String())
	req.Header.Set("X-Actor-Role", "agent")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCallerIdentityMissingHeaders(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
	}{
		{name: "no headers", headers: map[string]string{}},
		{name: "missing actor", headers: map[string]string{
			"X-Tenant-ID": uuid.NewString(),
		}},
		{name: "bad role", headers: map[string]string{
			"X-Tenant-ID":  uuid.NewString(),
			"X-Actor-ID":   uuid.NewString(),
			"X-Actor-Role": "superuser",
		}},
		{name: "malformed tenant", headers: map[string]string{
			"X-Tenant-ID":  "not-a-uuid",
			"X-Actor-ID":   uuid.NewString(),
			"X-Actor-Role": "admin",
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()
			router.Use(CallerIdentity())
			router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestIdempotentPassThroughWithoutKey(t *testing.T) {
	router := gin.New()
	router.Use(Idempotent(nil, testEntry()))
	router.POST("/", func(c *gin.Context) { c.Status(http.StatusCreated) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
}

type commitCall struct {
	tenantID uuid.UUID
	key      string
	status   int
	body     []byte
}

// fakeDeduplicator records Commit calls and serves scripted Begin outcomes
type fakeDeduplicator struct {
	cached   *idempotency.CachedResponse
	beginErr error
	commits  []commitCall
}

func (f *fakeDeduplicator) Begin(_ context.Context, _ uuid.UUID, _ string) (*idempotency.CachedResponse, error) {
	return f.cached, f.beginErr
}

func (f *fakeDeduplicator) Commit(_ context.Context, tenantID uuid.UUID, key string, status int, body []byte) error {
	f.commits = append(f.commits, commitCall{tenantID: tenantID, key: key, status: status, body: body})
	return nil
}

func idempotentRouter(store Deduplicator, handler gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(CallerIdentity())
	router.Use(Idempotent(store, testEntry()))
	router.POST("/", handler)
	return router
}

func idempotentRequest(key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-Tenant-ID", uuid.NewString())
	req.Header.Set("X-Actor-ID", uuid.NewString())
	req.Header.Set("X-Actor-Role", "admin")
	req.Header.Set(HeaderIdempotencyKey, key)
	return req
}

func TestIdempotentCommitsResponse(t *testing.T) {
	store := &fakeDeduplicator{}
	router := idempotentRouter(store, func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"id": "s-1"})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, idempotentRequest("key-1"))

	assert.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, store.commits, 1)
	assert.Equal(t, "key-1", store.commits[0].key)
	assert.Equal(t, http.StatusCreated, store.commits[0].status)
	assert.Equal(t, w.Body.Bytes(), store.commits[0].body)
}

func TestIdempotentReplaysCachedResponse(t *testing.T) {
	store := &fakeDeduplicator{
		cached: &idempotency.CachedResponse{Status: http.StatusCreated, Body: []byte(`{"id":"s-1"}`)},
	}
	handlerRan := false
	router := idempotentRouter(store, func(c *gin.Context) {
		handlerRan = true
		c.Status(http.StatusCreated)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, idempotentRequest("key-1"))

	assert.False(t, handlerRan)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, `{"id":"s-1"}`, w.Body.String())
	assert.Equal(t, "true", w.Header().Get("X-Idempotent-Replay"))
	assert.Empty(t, store.commits)
}

func TestIdempotentConcurrentDuplicate(t *testing.T) {
	store := &fakeDeduplicator{beginErr: idempotency.ErrInProgress}
	router := idempotentRouter(store, func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, idempotentRequest("key-1"))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "IN_PROGRESS")
	assert.Empty(t, store.commits)
}

func TestIdempotentHandlerPanicReleasesReservation(t *testing.T) {
	store := &fakeDeduplicator{}
	router := idempotentRouter(store, func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, idempotentRequest("key-1"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	// A commit with a failure status ran during the unwind, so the reserved
	// slot is released and the key stays retryable.
	require.Len(t, store.commits, 1)
	assert.Equal(t, http.StatusInternalServerError, store.commits[0].status)
}
