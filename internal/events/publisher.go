package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Event subjects
const (
	SubjectTenantCreated    = "vault.tenant.created"
	SubjectSecretCreated    = "vault.secret.created"
	SubjectSecretUpdated    = "vault.secret.updated"
	SubjectSecretDeleted    = "vault.secret.deleted"
	SubjectLeaseCreated     = "vault.lease.created"
	SubjectLeaseRevoked     = "vault.lease.revoked"
	SubjectRequestCreated   = "vault.request.created"
	SubjectRequestFulfilled = "vault.request.fulfilled"
	SubjectRequestRejected  = "vault.request.rejected"
	SubjectRequestAbandoned = "vault.request.abandoned"
)

// Event is the envelope published on every subject.
// Payload carries identifiers only, never secret values or key material.
type Event struct {
	EventType string            `json:"event_type"`
	TenantID  string            `json:"tenant_id"`
	EntityID  string            `json:"entity_id"`
	ActorID   string            `json:"actor_id,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Publisher publishes vault events to NATS.
// A nil Publisher is safe to call; events are silently skipped so the service
// degrades to log-only operation when NATS is unavailable.
type Publisher struct {
	conn   *nats.Conn
	logger *logrus.Entry
}

// NewPublisher connects to NATS and returns a publisher
func NewPublisher(url string, logger *logrus.Entry) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name("vault-service"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Publisher{conn: conn, logger: logger}, nil
}

// Publish sends an event on the given subject. Failures are logged, not
// returned: event delivery is best-effort and never fails the operation.
func (p *Publisher) Publish(subject string, event Event) {
	if p == nil || p.conn == nil {
		return
	}

	event.EventType = subject
	event.Timestamp = time.Now().UTC()

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.WithError(err).WithField("subject", subject).Error("failed to marshal event")
		return
	}

	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.WithError(err).WithField("subject", subject).Warn("failed to publish event")
		return
	}

	p.logger.WithFields(logrus.Fields{
		"subject":   subject,
		"tenant_id": event.TenantID,
		"entity_id": event.EntityID,
	}).Debug("event published")
}

// Close drains and closes the NATS connection
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.conn.Close()
}
