package background

import (
	"context"
	"sync"
	"time"

	"github.com/Tesseract-Nexus/global-services/vault-service/internal/idempotency"
	"github.com/sirupsen/logrus"
)

// Runner periodically sweeps expired idempotency records
type Runner struct {
	store     *idempotency.Store
	interval  time.Duration
	retention time.Duration
	logger    *logrus.Entry

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewRunner creates a new background runner
func NewRunner(store *idempotency.Store, interval, retention time.Duration, logger *logrus.Entry) *Runner {
	return &Runner{
		store:     store,
		interval:  interval,
		retention: retention,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

// Start launches the sweep loop
func (r *Runner) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.logger.WithFields(logrus.Fields{
			"interval":  r.interval,
			"retention": r.retention,
		}).Info("idempotency sweeper started")

		for {
			select {
			case <-ticker.C:
				r.sweep()
			case <-r.stopCh:
				return
			}
		}
	}()
}

// Stop signals the loop to exit and waits for it
func (r *Runner) Stop() {
	close(r.stopCh)
	r.wg.Wait()
	r.logger.Info("idempotency sweeper stopped")
}

func (r *Runner) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	removed, err := r.store.Sweep(ctx, r.retention)
	if err != nil {
		r.logger.WithError(err).Error("idempotency sweep failed")
		return
	}
	if removed > 0 {
		r.logger.WithField("removed", removed).Info("idempotency records swept")
	}
}
