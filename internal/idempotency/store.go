package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Tesseract-Nexus/global-services/vault-service/internal/metrics"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CachedResponse is the stored outcome of a completed mutating call
type CachedResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// ErrInProgress means a duplicate call arrived while the first execution of
// the same key is still running
var ErrInProgress = errors.New("a request with this idempotency key is already in progress")

// backend is the persistence surface behind the store. insert must fail on a
// duplicate (tenant, key) pair and find must return gorm.ErrRecordNotFound
// for a missing record.
type backend interface {
	insert(ctx context.Context, record *models.IdempotencyRecord) error
	find(ctx context.Context, tenantID uuid.UUID, key string) (*models.IdempotencyRecord, error)
	complete(ctx context.Context, tenantID uuid.UUID, key string, status int, body []byte) error
	discard(ctx context.Context, tenantID uuid.UUID, key string) error
	release(ctx context.Context, tenantID uuid.UUID, key string) error
	deleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store deduplicates mutating calls per (tenant, client key). Postgres holds
// the authoritative records behind a unique index; Redis, when configured,
// serves completed responses as a read-through cache.
type Store struct {
	backend backend
	cache   *redis.Client
	metrics *metrics.Collector
	logger  *logrus.Entry
	ttl     time.Duration
}

// NewStore creates a new idempotency store. cache may be nil.
func NewStore(db *gorm.DB, cache *redis.Client, collector *metrics.Collector, logger *logrus.Entry, ttl time.Duration) *Store {
	return &Store{
		backend: &gormBackend{db: db},
		cache:   cache,
		metrics: collector,
		logger:  logger,
		ttl:     ttl,
	}
}

// Begin reserves the (tenant, key) slot before the business logic runs.
// Returns the cached response when a completed record exists, ErrInProgress
// when a concurrent duplicate holds the slot, and (nil, nil) when the caller
// owns the slot and should execute.
func (s *Store) Begin(ctx context.Context, tenantID uuid.UUID, key string) (*CachedResponse, error) {
	if cached := s.fromCache(ctx, tenantID, key); cached != nil {
		s.metrics.IdempotencyHits.Inc()
		return cached, nil
	}

	reserve := &models.IdempotencyRecord{
		TenantID:  tenantID,
		ClientKey: key,
		State:     models.IdempotencyInProgress,
	}
	if err := s.backend.insert(ctx, reserve); err == nil {
		return nil, nil
	}

	// The insert lost to an existing row. Classify it.
	record, err := s.backend.find(ctx, tenantID, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read idempotency record: %w", err)
	}

	if record.State == models.IdempotencyInProgress {
		s.metrics.IdempotencyConflict.Inc()
		return nil, ErrInProgress
	}

	cached, ok := decodeRecord(record)
	if !ok {
		// Corrupt stored body counts as a miss: drop the record and let the
		// caller re-execute.
		s.logger.WithFields(logrus.Fields{
			"tenant_id":  tenantID,
			"client_key": key,
		}).Warn("discarding corrupt idempotency record")
		if delErr := s.backend.discard(ctx, tenantID, key); delErr != nil {
			return nil, fmt.Errorf("failed to discard idempotency record: %w", delErr)
		}
		return s.Begin(ctx, tenantID, key)
	}

	s.metrics.IdempotencyHits.Inc()
	return cached, nil
}

// Commit finalizes the reserved slot. Successful (2xx) responses are stored
// verbatim for replay; anything else releases the slot so the caller may
// retry with the same key.
func (s *Store) Commit(ctx context.Context, tenantID uuid.UUID, key string, status int, body []byte) error {
	if status < 200 || status > 299 {
		if err := s.backend.release(ctx, tenantID, key); err != nil {
			return fmt.Errorf("failed to release idempotency record: %w", err)
		}
		return nil
	}

	if err := s.backend.complete(ctx, tenantID, key, status, body); err != nil {
		return fmt.Errorf("failed to complete idempotency record: %w", err)
	}

	s.toCache(ctx, tenantID, key, &CachedResponse{Status: status, Body: body})
	return nil
}

// Sweep removes records older than the retention window and returns how many
// were dropped
func (s *Store) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	dropped, err := s.backend.deleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep idempotency records: %w", err)
	}
	return dropped, nil
}

func (s *Store) fromCache(ctx context.Context, tenantID uuid.UUID, key string) *CachedResponse {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.Get(ctx, cacheKey(tenantID, key)).Bytes()
	if err != nil {
		return nil
	}
	var cached CachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil
	}
	return &cached
}

func (s *Store) toCache(ctx context.Context, tenantID uuid.UUID, key string, cached *CachedResponse) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(cached)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(tenantID, key), data, s.ttl).Err(); err != nil {
		s.logger.WithError(err).Warn("failed to cache idempotent response")
	}
}

// decodeRecord validates a completed record; ok is false when the stored body
// cannot be replayed
func decodeRecord(record *models.IdempotencyRecord) (*CachedResponse, bool) {
	if record.ResponseStatus < 200 || record.ResponseStatus > 299 {
		return nil, false
	}
	if len(record.ResponseBody) > 0 && !json.Valid(record.ResponseBody) {
		return nil, false
	}
	return &CachedResponse{Status: record.ResponseStatus, Body: record.ResponseBody}, true
}

func cacheKey(tenantID uuid.UUID, key string) string {
	return fmt.Sprintf("vault:idem:%s:%s", tenantID, key)
}

// gormBackend is the Postgres-backed persistence for the store
type gormBackend struct {
	db *gorm.DB
}

func (b *gormBackend) insert(ctx context.Context, record *models.IdempotencyRecord) error {
	return b.db.WithContext(ctx).Create(record).Error
}

func (b *gormBackend) find(ctx context.Context, tenantID uuid.UUID, key string) (*models.IdempotencyRecord, error) {
	var record models.IdempotencyRecord
	err := b.db.WithContext(ctx).
		Where("tenant_id = ? AND client_key = ?", tenantID, key).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (b *gormBackend) complete(ctx context.Context, tenantID uuid.UUID, key string, status int, body []byte) error {
	return b.db.WithContext(ctx).
		Model(&models.IdempotencyRecord{}).
		Where("tenant_id = ? AND client_key = ?", tenantID, key).
		Updates(map[string]interface{}{
			"state":           models.IdempotencyCompleted,
			"response_status": status,
			"response_body":   body,
		}).Error
}

func (b *gormBackend) discard(ctx context.Context, tenantID uuid.UUID, key string) error {
	return b.db.WithContext(ctx).
		Where("tenant_id = ? AND client_key = ?", tenantID, key).
		Delete(&models.IdempotencyRecord{}).Error
}

func (b *gormBackend) release(ctx context.Context, tenantID uuid.UUID, key string) error {
	return b.db.WithContext(ctx).
		Where("tenant_id = ? AND client_key = ? AND state = ?", tenantID, key, models.IdempotencyInProgress).
		Delete(&models.IdempotencyRecord{}).Error
}

func (b *gormBackend) deleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := b.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.IdempotencyRecord{})
	return result.RowsAffected, result.Error
}
