// Package ledger implements the check-in ledger for paid event
// registrations: an append-only record of check-in batches, the capacity
// guard that blocks over-admission, the derived attendance rollup and the
// one-way batch revocation used to undo mistaken check-ins.
package ledger

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the ledger. Handlers translate these into
// HTTP statuses; nothing below this layer leaks raw driver errors except
// through ErrStorage.
var (
	// ErrUnknownRegistration is returned when the referenced registration
	// does not exist (or was deleted together with its batches).
	ErrUnknownRegistration = errors.New("unknown registration")

	// ErrInvalidCount is returned when a requested check-in or rewind
	// count is zero or negative.
	ErrInvalidCount = errors.New("count must be a positive integer")

	// ErrRegistrationRevoked is returned when new check-ins are submitted
	// against an administratively revoked registration.
	ErrRegistrationRevoked = errors.New("registration revoked")

	// ErrBatchNotFound is returned when a revoke targets an unknown batch.
	ErrBatchNotFound = errors.New("checkin batch not found")

	// ErrBatchAlreadyRevoked is returned when a revoke targets a batch
	// whose revoked flag is already set. Revocation is one-way and not
	// silently idempotent: callers can tell "nothing to do" from "bad
	// reference".
	ErrBatchAlreadyRevoked = errors.New("checkin batch already revoked")

	// ErrInsufficientCheckins is returned when a rewind asks to undo more
	// admissions than are currently on record.
	ErrInsufficientCheckins = errors.New("fewer attendees checked in than requested rewind")

	// ErrConcurrencyConflict is returned after the bounded internal retry
	// loop gives up on a transient race (deadlock or lock timeout in the
	// storage engine).
	ErrConcurrencyConflict = errors.New("concurrent check-in conflict")

	// ErrStorage wraps storage-layer faults (connectivity, corruption).
	// Always fatal to the current operation, never retried here.
	ErrStorage = errors.New("storage failure")
)

// CapacityError rejects an admission that would overflow the registration's
// paid capacity. It carries the full context numbers so callers can display
// a precise message.
type CapacityError struct {
	Planned   int // attendees the registration paid for
	Admitted  int // non-revoked check-ins already on record
	Requested int // size of the rejected batch
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity exceeded: %d requested with %d of %d already checked in",
		e.Requested, e.Admitted, e.Planned)
}

// IsCapacityExceeded reports whether err is a CapacityError and returns it.
func IsCapacityExceeded(err error) (*CapacityError, bool) {
	var ce *CapacityError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
