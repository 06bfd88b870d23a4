package services

import (
	"errors"
	"fmt"

	"github.com/Tesseract-Nexus/global-services/vault-service/internal/models"
)

var (
	// ErrNotFound covers both a genuinely absent entity and a cross-tenant
	// lookup; the two are deliberately indistinguishable to the caller so a
	// tenant cannot confirm another tenant's ids exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument covers malformed or missing required fields and
	// oversized metadata/context
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAccessDenied covers lease resolution failures and self-service
	// restriction violations
	ErrAccessDenied = errors.New("access denied")
)

// InvalidStateError is returned when a workflow transition is attempted from
// a non-eligible state. It carries the current status so the caller learns
// why the stale action failed instead of being silently ignored.
type InvalidStateError struct {
	CurrentStatus models.RequestStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state: request is %s", e.CurrentStatus)
}

// IsInvalidStateError checks if an error is an InvalidStateError
func IsInvalidStateError(err error) (*InvalidStateError, bool) {
	var stateErr *InvalidStateError
	if errors.As(err, &stateErr) {
		return stateErr, true
	}
	return nil, false
}
