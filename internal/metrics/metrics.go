package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the vault's business metrics
type Collector struct {
	SecretsCreated      prometheus.Counter
	SecretsDeleted      prometheus.Counter
	LeasesIssued        prometheus.Counter
	LeasesRevoked       prometheus.Counter
	RequestTransitions  *prometheus.CounterVec
	IdempotencyHits     prometheus.Counter
	IdempotencyConflict prometheus.Counter
	TamperDetected      prometheus.Counter
}

// NewCollector registers and returns the vault metrics
func NewCollector() *Collector {
	return &Collector{
		SecretsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "tesseract",
			Subsystem: "vault",
			Name:      "secrets_created_total",
			Help:      "Total number of secrets created",
		}),
		SecretsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "tesseract",
			Subsystem: "vault",
			Name:      "secrets_deleted_total",
			Help:      "Total number of secrets deleted",
		}),
		LeasesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "tesseract",
			Subsystem: "vault",
			Name:      "leases_issued_total",
			Help:      "Total number of leases issued or refreshed",
		}),
		LeasesRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "tesseract",
			Subsystem: "vault",
			Name:      "leases_revoked_total",
			Help:      "Total number of leases revoked",
		}),
		RequestTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tesseract",
			Subsystem: "vault",
			Name:      "request_transitions_total",
			Help:      "Total number of request workflow transitions",
		}, []string{"to_status"}),
		IdempotencyHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "tesseract",
			Subsystem: "vault",
			Name:      "idempotency_hits_total",
			Help:      "Total number of mutating calls answered from the idempotency cache",
		}),
		IdempotencyConflict: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "tesseract",
			Subsystem: "vault",
			Name:      "idempotency_conflicts_total",
			Help:      "Total number of concurrent duplicate calls rejected while in progress",
		}),
		TamperDetected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "tesseract",
			Subsystem: "vault",
			Name:      "tamper_detected_total",
			Help:      "Total number of ciphertext authentication failures observed",
		}),
	}
}
