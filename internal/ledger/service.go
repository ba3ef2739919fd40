package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/event-checkin/internal/model"
)

// Store is the transactional storage the ledger runs on. WithTx runs fn
// inside one atomic unit; every row operation called from fn must observe
// and mutate the same isolated snapshot. GetRegistrationForUpdate must
// exclude other WithTx bodies touching the same registration until the
// transaction ends; that lock is the per-registration serialization point
// for guard-then-commit. Cross-registration transactions may interleave
// freely.
//
// Implementations signal a transient race (deadlock, lock timeout) by
// returning an error matching ErrConcurrencyConflict; the service retries
// those a bounded number of times.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	GetRegistration(ctx context.Context, registrationID uint64) (model.Registration, error)
	GetRegistrationForUpdate(ctx context.Context, registrationID uint64) (model.Registration, error)
	SumActiveCheckins(ctx context.Context, registrationID uint64) (int, error)
	InsertBatch(ctx context.Context, b *model.CheckinBatch) error
	GetBatch(ctx context.Context, batchID uint64) (model.CheckinBatch, error)
	MarkBatchRevoked(ctx context.Context, batchID uint64, at time.Time, by string) error
	ActiveBatchesNewestFirst(ctx context.Context, registrationID uint64) ([]model.CheckinBatch, error)
	TouchCheckin(ctx context.Context, registrationID uint64, at time.Time, by *string) error
	SetAllCheckedIn(ctx context.Context, registrationID uint64, done bool) error
	DeleteRegistration(ctx context.Context, registrationID uint64) error
}

// maxConflictRetries bounds the internal retry loop for transient races
// before ErrConcurrencyConflict surfaces to the caller.
const maxConflictRetries = 3

// Service is the check-in engine: it runs the capacity guard and the ledger
// append inside one transaction per registration, keeps the registration's
// cached rollup flag in sync and exposes the revocation and rollup reads.
type Service struct {
	store Store
	clock Clock
}

// NewService builds a Service on the given store. A nil clock defaults to
// the system clock.
func NewService(store Store, clock Clock) *Service {
	if store == nil {
		panic("nil store passed to ledger.NewService")
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &Service{store: store, clock: clock}
}

// SubmitInput is a candidate check-in batch. Count is required and must be
// positive; the audit fields are optional and immutable once committed.
type SubmitInput struct {
	RegistrationID uint64
	Count          int
	VerifierID     *string
	DeviceID       *string
	LocationNote   *string
	Notes          *string
}

// SubmitCheckin validates and commits one check-in batch. The guard and the
// insert execute in a single transaction with the registration row locked,
// so concurrent submissions against the same registration serialize and can
// never jointly overflow capacity. On success the registration's
// last-checked-in stamp and cached all-checked-in flag are updated in the
// same transaction.
func (s *Service) SubmitCheckin(ctx context.Context, in SubmitInput) (model.CheckinBatch, error) {
	if in.Count <= 0 {
		return model.CheckinBatch{}, ErrInvalidCount
	}

	var batch model.CheckinBatch
	err := s.retryOnConflict(ctx, func() error {
		return s.store.WithTx(ctx, func(ctx context.Context) error {
			reg, err := s.store.GetRegistrationForUpdate(ctx, in.RegistrationID)
			if err != nil {
				return err
			}
			if reg.Revoked {
				return ErrRegistrationRevoked
			}

			admitted, err := s.store.SumActiveCheckins(ctx, reg.ID)
			if err != nil {
				return err
			}
			if err := Guard(reg.AttendeesPlanned, admitted, in.Count); err != nil {
				return err
			}

			now := s.clock.Now()
			batch = model.CheckinBatch{
				RegistrationID: reg.ID,
				Count:          in.Count,
				VerifierID:     in.VerifierID,
				DeviceID:       in.DeviceID,
				LocationNote:   in.LocationNote,
				Notes:          in.Notes,
				CreatedAt:      now,
			}
			if err := s.store.InsertBatch(ctx, &batch); err != nil {
				return err
			}
			if err := s.store.TouchCheckin(ctx, reg.ID, now, in.VerifierID); err != nil {
				return err
			}
			done := Project(reg.AttendeesPlanned, admitted+in.Count).FullyCheckedIn
			return s.store.SetAllCheckedIn(ctx, reg.ID, done)
		})
	})
	if err != nil {
		return model.CheckinBatch{}, err
	}
	return batch, nil
}

// RevokeBatch voids one batch. The first revoke succeeds; any repeat fails
// with ErrBatchAlreadyRevoked. The batch's count is untouched and its
// capacity is freed for future admissions. The registration row is locked
// before the batch is re-read so a revoke and a concurrent commit on the
// same registration are totally ordered.
func (s *Service) RevokeBatch(ctx context.Context, batchID uint64, revokedBy string) (model.CheckinBatch, error) {
	var revoked model.CheckinBatch
	err := s.retryOnConflict(ctx, func() error {
		return s.store.WithTx(ctx, func(ctx context.Context) error {
			// Unlocked read to learn the owning registration; lock order is
			// registration first, everywhere.
			b, err := s.store.GetBatch(ctx, batchID)
			if err != nil {
				return err
			}
			reg, err := s.store.GetRegistrationForUpdate(ctx, b.RegistrationID)
			if err != nil {
				return err
			}
			b, err = s.store.GetBatch(ctx, batchID)
			if err != nil {
				return err
			}
			if b.Revoked {
				return ErrBatchAlreadyRevoked
			}

			now := s.clock.Now()
			if err := s.store.MarkBatchRevoked(ctx, b.ID, now, revokedBy); err != nil {
				return err
			}
			b.Revoked = true
			b.RevokedAt = &now
			b.RevokedBy = &revokedBy
			revoked = b

			admitted, err := s.store.SumActiveCheckins(ctx, reg.ID)
			if err != nil {
				return err
			}
			done := Project(reg.AttendeesPlanned, admitted).FullyCheckedIn
			return s.store.SetAllCheckedIn(ctx, reg.ID, done)
		})
	})
	if err != nil {
		return model.CheckinBatch{}, err
	}
	return revoked, nil
}

// RewindCheckins undoes count admissions, newest batch first. Batches whose
// whole count fits in the remaining rewind are revoked outright; a batch
// that only partially rewinds is revoked and replaced by a fresh batch
// carrying the residual count, so the ledger stays append-only and batch
// counts stay immutable. Returns the rollup after the rewind settles.
func (s *Service) RewindCheckins(ctx context.Context, registrationID uint64, count int, by string) (Rollup, error) {
	if count <= 0 {
		return Rollup{}, ErrInvalidCount
	}

	var result Rollup
	err := s.retryOnConflict(ctx, func() error {
		return s.store.WithTx(ctx, func(ctx context.Context) error {
			reg, err := s.store.GetRegistrationForUpdate(ctx, registrationID)
			if err != nil {
				return err
			}
			admitted, err := s.store.SumActiveCheckins(ctx, reg.ID)
			if err != nil {
				return err
			}
			if count > admitted {
				return fmt.Errorf("%w: %d checked in, %d requested", ErrInsufficientCheckins, admitted, count)
			}

			batches, err := s.store.ActiveBatchesNewestFirst(ctx, reg.ID)
			if err != nil {
				return err
			}

			now := s.clock.Now()
			toRewind := count
			for _, b := range batches {
				if toRewind <= 0 {
					break
				}
				if err := s.store.MarkBatchRevoked(ctx, b.ID, now, by); err != nil {
					return err
				}
				if b.Count > toRewind {
					// Residual re-admission keeps history append-only
					// instead of editing the revoked batch's count.
					note := fmt.Sprintf("residual of batch %d after partial rewind", b.ID)
					residual := model.CheckinBatch{
						RegistrationID: reg.ID,
						Count:          b.Count - toRewind,
						VerifierID:     b.VerifierID,
						DeviceID:       b.DeviceID,
						LocationNote:   b.LocationNote,
						Notes:          &note,
						CreatedAt:      now,
					}
					if err := s.store.InsertBatch(ctx, &residual); err != nil {
						return err
					}
					toRewind = 0
				} else {
					toRewind -= b.Count
				}
			}

			result = Project(reg.AttendeesPlanned, admitted-count)
			return s.store.SetAllCheckedIn(ctx, reg.ID, result.FullyCheckedIn)
		})
	})
	if err != nil {
		return Rollup{}, err
	}
	return result, nil
}

// Rollup derives the attendance summary for one registration from a
// consistent snapshot of the ledger.
func (s *Service) Rollup(ctx context.Context, registrationID uint64) (Rollup, error) {
	var result Rollup
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		reg, err := s.store.GetRegistration(ctx, registrationID)
		if err != nil {
			return err
		}
		checked, err := s.store.SumActiveCheckins(ctx, reg.ID)
		if err != nil {
			return err
		}
		result = Project(reg.AttendeesPlanned, checked)
		return nil
	})
	if err != nil {
		return Rollup{}, err
	}
	return result, nil
}

// DeleteRegistration removes a registration and, through the store's
// cascade, every batch referencing it.
func (s *Service) DeleteRegistration(ctx context.Context, registrationID uint64) error {
	return s.store.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.GetRegistrationForUpdate(ctx, registrationID); err != nil {
			return err
		}
		return s.store.DeleteRegistration(ctx, registrationID)
	})
}

// retryOnConflict runs op, retrying transient concurrency conflicts up to
// maxConflictRetries before letting the conflict surface.
func (s *Service) retryOnConflict(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt <= maxConflictRetries; attempt++ {
		if err = op(); !errors.Is(err, ErrConcurrencyConflict) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}
