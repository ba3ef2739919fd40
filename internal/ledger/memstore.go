package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/event-checkin/internal/model"
)

// MemStore is an in-memory Store used by the test suite. It implements the
// strictest version of the concurrency contract (one transaction at a time
// across the whole store) and rolls mutations back when the transaction
// body fails, which makes it the reference model the MySQL store is judged
// against. Row operations must only be called from inside WithTx.
type MemStore struct {
	mu            sync.Mutex
	registrations map[uint64]model.Registration
	batches       []model.CheckinBatch
	nextRegID     uint64
	nextBatchID   uint64
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		registrations: make(map[uint64]model.Registration),
		nextRegID:     1,
		nextBatchID:   1,
	}
}

// AddRegistration seeds a registration and returns its assigned id. It is a
// stand-in for the out-of-scope payment workflow that owns row creation.
func (m *MemStore) AddRegistration(reg model.Registration) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg.ID = m.nextRegID
	m.nextRegID++
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = time.Now().UTC()
	}
	m.registrations[reg.ID] = reg
	return reg.ID
}

// Registration returns a copy of a stored registration, for assertions.
func (m *MemStore) Registration(id uint64) (model.Registration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.registrations[id]
	return reg, ok
}

// Batch returns a copy of a stored batch, for assertions.
func (m *MemStore) Batch(id uint64) (model.CheckinBatch, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.batches {
		if b.ID == id {
			return b, true
		}
	}
	return model.CheckinBatch{}, false
}

// WithTx serializes the transaction body under the store mutex and restores
// the pre-transaction state when fn returns an error, so a failed guard
// never leaves a partially-committed batch behind.
func (m *MemStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapRegs := make(map[uint64]model.Registration, len(m.registrations))
	for id, reg := range m.registrations {
		snapRegs[id] = reg
	}
	snapBatches := append([]model.CheckinBatch(nil), m.batches...)
	snapBatchID := m.nextBatchID

	if err := fn(ctx); err != nil {
		m.registrations = snapRegs
		m.batches = snapBatches
		m.nextBatchID = snapBatchID
		return err
	}
	return nil
}

func (m *MemStore) GetRegistration(_ context.Context, registrationID uint64) (model.Registration, error) {
	reg, ok := m.registrations[registrationID]
	if !ok {
		return model.Registration{}, ErrUnknownRegistration
	}
	return reg, nil
}

func (m *MemStore) GetRegistrationForUpdate(ctx context.Context, registrationID uint64) (model.Registration, error) {
	// The store mutex already excludes every other transaction.
	return m.GetRegistration(ctx, registrationID)
}

func (m *MemStore) SumActiveCheckins(_ context.Context, registrationID uint64) (int, error) {
	total := 0
	for _, b := range m.batches {
		if b.RegistrationID == registrationID && !b.Revoked {
			total += b.Count
		}
	}
	return total, nil
}

func (m *MemStore) InsertBatch(_ context.Context, b *model.CheckinBatch) error {
	if _, ok := m.registrations[b.RegistrationID]; !ok {
		return ErrUnknownRegistration
	}
	b.ID = m.nextBatchID
	m.nextBatchID++
	m.batches = append(m.batches, *b)
	return nil
}

func (m *MemStore) GetBatch(_ context.Context, batchID uint64) (model.CheckinBatch, error) {
	for _, b := range m.batches {
		if b.ID == batchID {
			return b, nil
		}
	}
	return model.CheckinBatch{}, ErrBatchNotFound
}

func (m *MemStore) MarkBatchRevoked(_ context.Context, batchID uint64, at time.Time, by string) error {
	for i := range m.batches {
		if m.batches[i].ID == batchID {
			m.batches[i].Revoked = true
			m.batches[i].RevokedAt = &at
			m.batches[i].RevokedBy = &by
			return nil
		}
	}
	return ErrBatchNotFound
}

func (m *MemStore) ActiveBatchesNewestFirst(_ context.Context, registrationID uint64) ([]model.CheckinBatch, error) {
	var out []model.CheckinBatch
	for i := len(m.batches) - 1; i >= 0; i-- {
		b := m.batches[i]
		if b.RegistrationID == registrationID && !b.Revoked {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *MemStore) TouchCheckin(_ context.Context, registrationID uint64, at time.Time, by *string) error {
	reg, ok := m.registrations[registrationID]
	if !ok {
		return ErrUnknownRegistration
	}
	reg.LastCheckedInAt = &at
	if by != nil && *by != "" {
		reg.LastCheckedInBy = by
	}
	m.registrations[registrationID] = reg
	return nil
}

func (m *MemStore) SetAllCheckedIn(_ context.Context, registrationID uint64, done bool) error {
	reg, ok := m.registrations[registrationID]
	if !ok {
		return ErrUnknownRegistration
	}
	reg.AllCheckedIn = done
	m.registrations[registrationID] = reg
	return nil
}

func (m *MemStore) DeleteRegistration(_ context.Context, registrationID uint64) error {
	if _, ok := m.registrations[registrationID]; !ok {
		return ErrUnknownRegistration
	}
	delete(m.registrations, registrationID)
	kept := m.batches[:0]
	for _, b := range m.batches {
		if b.RegistrationID != registrationID {
			kept = append(kept, b)
		}
	}
	m.batches = kept
	return nil
}
