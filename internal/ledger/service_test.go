package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/event-checkin/internal/model"
)

func newTestService(t *testing.T) (*Service, *MemStore) {
	t.Helper()
	store := NewMemStore()
	svc := NewService(store, FixedClock(time.Date(2026, 8, 27, 18, 0, 0, 0, time.UTC)))
	return svc, store
}

func seedRegistration(store *MemStore, planned int) uint64 {
	return store.AddRegistration(model.Registration{
		TransactionID:    "TXN-TEST",
		Username:         "ada",
		Email:            "ada@example.com",
		AttendeesPlanned: planned,
		PaidFor:          "event",
	})
}

func mustSubmit(t *testing.T, svc *Service, regID uint64, count int) model.CheckinBatch {
	t.Helper()
	b, err := svc.SubmitCheckin(context.Background(), SubmitInput{RegistrationID: regID, Count: count})
	if err != nil {
		t.Fatalf("SubmitCheckin(%d): %v", count, err)
	}
	return b
}

func mustRollup(t *testing.T, svc *Service, regID uint64) Rollup {
	t.Helper()
	roll, err := svc.Rollup(context.Background(), regID)
	if err != nil {
		t.Fatalf("Rollup: %v", err)
	}
	return roll
}

func TestSubmitCheckinAccumulates(t *testing.T) {
	svc, store := newTestService(t)
	regID := seedRegistration(store, 5)

	mustSubmit(t, svc, regID, 2)
	mustSubmit(t, svc, regID, 2)

	roll := mustRollup(t, svc, regID)
	want := Rollup{CheckedIn: 4, Remaining: 1}
	if roll != want {
		t.Fatalf("rollup = %+v, want %+v", roll, want)
	}

	reg, _ := store.Registration(regID)
	if reg.AllCheckedIn {
		t.Fatal("all_checked_in set before capacity reached")
	}
	if reg.LastCheckedInAt == nil {
		t.Fatal("last_checked_in_at not stamped")
	}
}

func TestSubmitCheckinFillsToCapacity(t *testing.T) {
	svc, store := newTestService(t)
	regID := seedRegistration(store, 3)

	mustSubmit(t, svc, regID, 3)

	roll := mustRollup(t, svc, regID)
	if !roll.FullyCheckedIn || roll.Remaining != 0 {
		t.Fatalf("rollup = %+v, want fully checked in with 0 remaining", roll)
	}
	reg, _ := store.Registration(regID)
	if !reg.AllCheckedIn {
		t.Fatal("cached all_checked_in flag not set at capacity")
	}
}

func TestSubmitCheckinRejectsOverflow(t *testing.T) {
	svc, store := newTestService(t)
	regID := seedRegistration(store, 5)
	mustSubmit(t, svc, regID, 4)

	_, err := svc.SubmitCheckin(context.Background(), SubmitInput{RegistrationID: regID, Count: 2})
	ce, ok := IsCapacityExceeded(err)
	if !ok {
		t.Fatalf("SubmitCheckin = %v, want CapacityError", err)
	}
	if ce.Planned != 5 || ce.Admitted != 4 || ce.Requested != 2 {
		t.Fatalf("CapacityError = %+v, want {5 4 2}", ce)
	}

	// The rejected batch must leave no trace in the ledger.
	if roll := mustRollup(t, svc, regID); roll.CheckedIn != 4 {
		t.Fatalf("checked in = %d after rejected submit, want 4", roll.CheckedIn)
	}
}

func TestSubmitCheckinInvalidCount(t *testing.T) {
	svc, store := newTestService(t)
	regID := seedRegistration(store, 5)

	for _, count := range []int{0, -1} {
		if _, err := svc.SubmitCheckin(context.Background(), SubmitInput{RegistrationID: regID, Count: count}); !errors.Is(err, ErrInvalidCount) {
			t.Fatalf("SubmitCheckin(count=%d) = %v, want ErrInvalidCount", count, err)
		}
	}
}

func TestSubmitCheckinUnknownRegistration(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.SubmitCheckin(context.Background(), SubmitInput{RegistrationID: 42, Count: 1}); !errors.Is(err, ErrUnknownRegistration) {
		t.Fatalf("SubmitCheckin = %v, want ErrUnknownRegistration", err)
	}
}

func TestSubmitCheckinZeroPlanned(t *testing.T) {
	svc, store := newTestService(t)
	regID := seedRegistration(store, 0)

	_, err := svc.SubmitCheckin(context.Background(), SubmitInput{RegistrationID: regID, Count: 1})
	if _, ok := IsCapacityExceeded(err); !ok {
		t.Fatalf("SubmitCheckin on zero-capacity registration = %v, want CapacityError", err)
	}
	if roll := mustRollup(t, svc, regID); roll.FullyCheckedIn {
		t.Fatal("zero-capacity registration reported fully checked in")
	}
}

func TestSubmitCheckinRevokedRegistration(t *testing.T) {
	svc, store := newTestService(t)
	regID := store.AddRegistration(model.Registration{
		TransactionID:    "TXN-REVOKED",
		Username:         "mallory",
		AttendeesPlanned: 5,
		Revoked:          true,
	})

	if _, err := svc.SubmitCheckin(context.Background(), SubmitInput{RegistrationID: regID, Count: 1}); !errors.Is(err, ErrRegistrationRevoked) {
		t.Fatalf("SubmitCheckin = %v, want ErrRegistrationRevoked", err)
	}
}

// Two batches of 2 race against a capacity of 3. Exactly one must commit:
// the guard and insert share a transaction serialized per registration, so
// the loser sees the winner's admission.
func TestConcurrentSubmitsCannotOverflow(t *testing.T) {
	svc, store := newTestService(t)
	regID := seedRegistration(store, 3)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.SubmitCheckin(context.Background(), SubmitInput{RegistrationID: regID, Count: 2})
		}(i)
	}
	wg.Wait()

	var ok, capacity int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		default:
			if _, isCap := IsCapacityExceeded(err); isCap {
				capacity++
			} else {
				t.Fatalf("unexpected error: %v", err)
			}
		}
	}
	if ok != 1 || capacity != 1 {
		t.Fatalf("got %d successes and %d capacity rejections, want 1 and 1", ok, capacity)
	}
	if roll := mustRollup(t, svc, regID); roll.CheckedIn != 2 {
		t.Fatalf("checked in = %d, want 2", roll.CheckedIn)
	}
}

func TestRevokeBatchFreesCapacity(t *testing.T) {
	svc, store := newTestService(t)
	regID := seedRegistration(store, 5)
	mustSubmit(t, svc, regID, 3)
	second := mustSubmit(t, svc, regID, 2)

	// Full: a further admission is rejected.
	if _, err := svc.SubmitCheckin(context.Background(), SubmitInput{RegistrationID: regID, Count: 1}); err == nil {
		t.Fatal("submit at capacity succeeded, want rejection")
	}

	if _, err := svc.RevokeBatch(context.Background(), second.ID, "admin"); err != nil {
		t.Fatalf("RevokeBatch: %v", err)
	}

	roll := mustRollup(t, svc, regID)
	if roll.CheckedIn != 3 || roll.Remaining != 2 || roll.FullyCheckedIn {
		t.Fatalf("rollup after revoke = %+v, want {3 2 false}", roll)
	}
	reg, _ := store.Registration(regID)
	if reg.AllCheckedIn {
		t.Fatal("all_checked_in flag still set after revoke dropped below capacity")
	}

	// The freed capacity is admittable again.
	mustSubmit(t, svc, regID, 2)
	if roll := mustRollup(t, svc, regID); !roll.FullyCheckedIn {
		t.Fatalf("rollup after re-admission = %+v, want fully checked in", roll)
	}
}

func TestRevokeFreedCapacityIsReusable(t *testing.T) {
	svc, store := newTestService(t)
	regID := seedRegistration(store, 2)
	first := mustSubmit(t, svc, regID, 2)

	_, err := svc.SubmitCheckin(context.Background(), SubmitInput{RegistrationID: regID, Count: 1})
	ce, ok := IsCapacityExceeded(err)
	if !ok || ce.Planned != 2 || ce.Admitted != 2 || ce.Requested != 1 {
		t.Fatalf("submit at capacity = %v, want CapacityError{2 2 1}", err)
	}

	if _, err := svc.RevokeBatch(context.Background(), first.ID, "admin"); err != nil {
		t.Fatalf("RevokeBatch: %v", err)
	}
	mustSubmit(t, svc, regID, 1)

	roll := mustRollup(t, svc, regID)
	if roll.CheckedIn != 1 || roll.Remaining != 1 {
		t.Fatalf("rollup = %+v, want {1 1 false}", roll)
	}
}

func TestRevokeBatchSecondAttemptFails(t *testing.T) {
	svc, store := newTestService(t)
	regID := seedRegistration(store, 5)
	batch := mustSubmit(t, svc, regID, 2)

	revoked, err := svc.RevokeBatch(context.Background(), batch.ID, "admin")
	if err != nil {
		t.Fatalf("first RevokeBatch: %v", err)
	}
	if !revoked.Revoked || revoked.RevokedAt == nil || revoked.RevokedBy == nil {
		t.Fatalf("revoked batch = %+v, want revocation stamps set", revoked)
	}
	if revoked.Count != 2 {
		t.Fatalf("revoked batch count = %d, want 2 (counts are immutable)", revoked.Count)
	}

	if _, err := svc.RevokeBatch(context.Background(), batch.ID, "admin"); !errors.Is(err, ErrBatchAlreadyRevoked) {
		t.Fatalf("second RevokeBatch = %v, want ErrBatchAlreadyRevoked", err)
	}

	// The failed repeat must not disturb the stored batch.
	stored, _ := store.Batch(batch.ID)
	if stored.Count != 2 || !stored.Revoked {
		t.Fatalf("stored batch = %+v, want count 2 and revoked", stored)
	}
}

func TestRevokeBatchNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.RevokeBatch(context.Background(), 99, "admin"); !errors.Is(err, ErrBatchNotFound) {
		t.Fatalf("RevokeBatch = %v, want ErrBatchNotFound", err)
	}
}

func TestRewindRevokesNewestFirst(t *testing.T) {
	svc, store := newTestService(t)
	regID := seedRegistration(store, 10)
	first := mustSubmit(t, svc, regID, 3)
	second := mustSubmit(t, svc, regID, 2)

	roll, err := svc.RewindCheckins(context.Background(), regID, 2, "admin")
	if err != nil {
		t.Fatalf("RewindCheckins: %v", err)
	}
	if roll.CheckedIn != 3 || roll.Remaining != 7 {
		t.Fatalf("rollup after rewind = %+v, want {3 7 false}", roll)
	}

	b1, _ := store.Batch(first.ID)
	b2, _ := store.Batch(second.ID)
	if b1.Revoked {
		t.Fatal("oldest batch revoked before newest was exhausted")
	}
	if !b2.Revoked {
		t.Fatal("newest batch not revoked by rewind")
	}
}

func TestRewindPartialBatchKeepsResidual(t *testing.T) {
	svc, store := newTestService(t)
	regID := seedRegistration(store, 10)
	batch := mustSubmit(t, svc, regID, 5)

	roll, err := svc.RewindCheckins(context.Background(), regID, 2, "admin")
	if err != nil {
		t.Fatalf("RewindCheckins: %v", err)
	}
	if roll.CheckedIn != 3 {
		t.Fatalf("checked in after partial rewind = %d, want 3", roll.CheckedIn)
	}

	// The original batch is revoked whole; its surviving admissions live in
	// a fresh batch so no committed count was ever edited.
	original, _ := store.Batch(batch.ID)
	if !original.Revoked || original.Count != 5 {
		t.Fatalf("original batch = %+v, want revoked with count 5", original)
	}
	residual, ok := store.Batch(batch.ID + 1)
	if !ok || residual.Revoked || residual.Count != 3 {
		t.Fatalf("residual batch = %+v (found=%v), want active with count 3", residual, ok)
	}
}

func TestRewindRejectsExcess(t *testing.T) {
	svc, store := newTestService(t)
	regID := seedRegistration(store, 10)
	mustSubmit(t, svc, regID, 3)

	if _, err := svc.RewindCheckins(context.Background(), regID, 4, "admin"); !errors.Is(err, ErrInsufficientCheckins) {
		t.Fatalf("RewindCheckins = %v, want ErrInsufficientCheckins", err)
	}
	// Rejected rewind leaves the ledger untouched.
	if roll := mustRollup(t, svc, regID); roll.CheckedIn != 3 {
		t.Fatalf("checked in = %d after rejected rewind, want 3", roll.CheckedIn)
	}

	if _, err := svc.RewindCheckins(context.Background(), regID, 0, "admin"); !errors.Is(err, ErrInvalidCount) {
		t.Fatalf("RewindCheckins(0) = %v, want ErrInvalidCount", err)
	}
}

func TestDeleteRegistrationCascades(t *testing.T) {
	svc, store := newTestService(t)
	regID := seedRegistration(store, 5)
	batch := mustSubmit(t, svc, regID, 2)

	if err := svc.DeleteRegistration(context.Background(), regID); err != nil {
		t.Fatalf("DeleteRegistration: %v", err)
	}

	if _, err := svc.Rollup(context.Background(), regID); !errors.Is(err, ErrUnknownRegistration) {
		t.Fatalf("Rollup after delete = %v, want ErrUnknownRegistration", err)
	}
	if _, ok := store.Batch(batch.ID); ok {
		t.Fatal("batch survived its registration's deletion")
	}
	if err := svc.DeleteRegistration(context.Background(), regID); !errors.Is(err, ErrUnknownRegistration) {
		t.Fatalf("second DeleteRegistration = %v, want ErrUnknownRegistration", err)
	}
}

// The rollup derived on demand must agree with the cached flag after any
// sequence of commits, revokes and rewinds.
func TestRollupAgreesWithCachedFlag(t *testing.T) {
	svc, store := newTestService(t)
	regID := seedRegistration(store, 4)

	check := func(step string) {
		t.Helper()
		roll := mustRollup(t, svc, regID)
		reg, _ := store.Registration(regID)
		if roll.FullyCheckedIn != reg.AllCheckedIn {
			t.Fatalf("%s: derived fully_checked_in=%v but cached flag=%v", step, roll.FullyCheckedIn, reg.AllCheckedIn)
		}
	}

	b1 := mustSubmit(t, svc, regID, 2)
	check("after first submit")
	mustSubmit(t, svc, regID, 2)
	check("at capacity")
	if _, err := svc.RevokeBatch(context.Background(), b1.ID, "admin"); err != nil {
		t.Fatalf("RevokeBatch: %v", err)
	}
	check("after revoke")
	mustSubmit(t, svc, regID, 1)
	check("after re-admission")
	if _, err := svc.RewindCheckins(context.Background(), regID, 1, "admin"); err != nil {
		t.Fatalf("RewindCheckins: %v", err)
	}
	check("after rewind")
}

// conflictStore forces a configurable number of concurrency conflicts
// before delegating to the MemStore, to exercise the retry loop.
type conflictStore struct {
	*MemStore
	remaining int
}

func (c *conflictStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if c.remaining > 0 {
		c.remaining--
		return ErrConcurrencyConflict
	}
	return c.MemStore.WithTx(ctx, fn)
}

func TestSubmitRetriesTransientConflicts(t *testing.T) {
	store := &conflictStore{MemStore: NewMemStore(), remaining: 2}
	regID := seedRegistration(store.MemStore, 5)
	svc := NewService(store, FixedClock(time.Date(2026, 8, 27, 18, 0, 0, 0, time.UTC)))

	if _, err := svc.SubmitCheckin(context.Background(), SubmitInput{RegistrationID: regID, Count: 1}); err != nil {
		t.Fatalf("SubmitCheckin after transient conflicts: %v", err)
	}
}

func TestSubmitGivesUpAfterRepeatedConflicts(t *testing.T) {
	store := &conflictStore{MemStore: NewMemStore(), remaining: 100}
	regID := seedRegistration(store.MemStore, 5)
	svc := NewService(store, SystemClock())

	if _, err := svc.SubmitCheckin(context.Background(), SubmitInput{RegistrationID: regID, Count: 1}); !errors.Is(err, ErrConcurrencyConflict) {
		t.Fatalf("SubmitCheckin = %v, want ErrConcurrencyConflict", err)
	}
}
