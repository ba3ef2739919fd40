package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/event-checkin/internal/ledger"
	"github.com/iliyamo/event-checkin/internal/model"
)

// Store is the MySQL implementation of ledger.Store. The per-registration
// serialization the ledger engine requires comes from the row lock taken by
// GetRegistrationForUpdate (SELECT ... FOR UPDATE): every admission, revoke
// and rewind locks the registration row first, so guard-then-commit runs
// without another transaction on the same registration interleaving between
// the sum and the insert. Transactions on different registrations do not
// contend.
type Store struct {
	db *sql.DB
}

// NewStore returns a Store bound to the given database.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// DB exposes the underlying handle for the read-side repositories.
func (s *Store) DB() *sql.DB { return s.db }

// WithTx implements ledger.Store using the context-carried transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, s.db, fn)
}

func (s *Store) conn(ctx context.Context) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return s.db
}

const registrationColumns = `id, transaction_id, username, email, phone,
       attendees_planned, amount_cents, paid_for, membership_paid,
       qr_generated, qr_sent, revoked, all_checked_in,
       last_checked_in_at, last_checked_in_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row rowScanner) (model.Registration, error) {
	var reg model.Registration
	var lastAt sql.NullTime
	var lastBy sql.NullString
	err := row.Scan(
		&reg.ID, &reg.TransactionID, &reg.Username, &reg.Email, &reg.Phone,
		&reg.AttendeesPlanned, &reg.AmountCents, &reg.PaidFor, &reg.MembershipPaid,
		&reg.QRGenerated, &reg.QRSent, &reg.Revoked, &reg.AllCheckedIn,
		&lastAt, &lastBy, &reg.CreatedAt, &reg.UpdatedAt,
	)
	if err != nil {
		return model.Registration{}, err
	}
	if lastAt.Valid {
		t := lastAt.Time
		reg.LastCheckedInAt = &t
	}
	if lastBy.Valid {
		by := lastBy.String
		reg.LastCheckedInBy = &by
	}
	return reg, nil
}

func (s *Store) getRegistration(ctx context.Context, registrationID uint64, forUpdate bool) (model.Registration, error) {
	q := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = ?`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	reg, err := scanRegistration(s.conn(ctx).QueryRowContext(ctx, q, registrationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Registration{}, ledger.ErrUnknownRegistration
		}
		return model.Registration{}, mapError(err)
	}
	return reg, nil
}

func (s *Store) GetRegistration(ctx context.Context, registrationID uint64) (model.Registration, error) {
	return s.getRegistration(ctx, registrationID, false)
}

func (s *Store) GetRegistrationForUpdate(ctx context.Context, registrationID uint64) (model.Registration, error) {
	return s.getRegistration(ctx, registrationID, true)
}

func (s *Store) SumActiveCheckins(ctx context.Context, registrationID uint64) (int, error) {
	const q = `SELECT COALESCE(SUM(` + "`count`" + `), 0)
               FROM checkin_batches
               WHERE registration_id = ? AND revoked = FALSE`
	var total int
	if err := s.conn(ctx).QueryRowContext(ctx, q, registrationID).Scan(&total); err != nil {
		return 0, mapError(err)
	}
	return total, nil
}

func (s *Store) InsertBatch(ctx context.Context, b *model.CheckinBatch) error {
	const q = `INSERT INTO checkin_batches
               (registration_id, ` + "`count`" + `, verifier_id, device_id, location_note, notes, created_at)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := s.conn(ctx).ExecContext(ctx, q,
		b.RegistrationID, b.Count, b.VerifierID, b.DeviceID, b.LocationNote, b.Notes, b.CreatedAt)
	if err != nil {
		return mapError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return mapError(err)
	}
	b.ID = uint64(id)
	return nil
}

const batchColumns = "id, registration_id, `count`, verifier_id, device_id, location_note, notes, revoked, revoked_at, revoked_by, created_at"

func scanBatch(row rowScanner) (model.CheckinBatch, error) {
	var b model.CheckinBatch
	var verifier, device, location, notes, revokedBy sql.NullString
	var revokedAt sql.NullTime
	err := row.Scan(
		&b.ID, &b.RegistrationID, &b.Count,
		&verifier, &device, &location, &notes,
		&b.Revoked, &revokedAt, &revokedBy, &b.CreatedAt,
	)
	if err != nil {
		return model.CheckinBatch{}, err
	}
	assign := func(v sql.NullString, dst **string) {
		if v.Valid {
			s := v.String
			*dst = &s
		}
	}
	assign(verifier, &b.VerifierID)
	assign(device, &b.DeviceID)
	assign(location, &b.LocationNote)
	assign(notes, &b.Notes)
	assign(revokedBy, &b.RevokedBy)
	if revokedAt.Valid {
		t := revokedAt.Time
		b.RevokedAt = &t
	}
	return b, nil
}

func (s *Store) GetBatch(ctx context.Context, batchID uint64) (model.CheckinBatch, error) {
	q := `SELECT ` + batchColumns + ` FROM checkin_batches WHERE id = ?`
	b, err := scanBatch(s.conn(ctx).QueryRowContext(ctx, q, batchID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.CheckinBatch{}, ledger.ErrBatchNotFound
		}
		return model.CheckinBatch{}, mapError(err)
	}
	return b, nil
}

// MarkBatchRevoked flips the one-way revoked flag. The count column is
// deliberately untouched; revoked rows stay on record for audit.
func (s *Store) MarkBatchRevoked(ctx context.Context, batchID uint64, at time.Time, by string) error {
	const q = `UPDATE checkin_batches
               SET revoked = TRUE, revoked_at = ?, revoked_by = ?
               WHERE id = ? AND revoked = FALSE`
	res, err := s.conn(ctx).ExecContext(ctx, q, at, by, batchID)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if n == 0 {
		return ledger.ErrBatchNotFound
	}
	return nil
}

func (s *Store) ActiveBatchesNewestFirst(ctx context.Context, registrationID uint64) ([]model.CheckinBatch, error) {
	q := `SELECT ` + batchColumns + `
          FROM checkin_batches
          WHERE registration_id = ? AND revoked = FALSE
          ORDER BY created_at DESC, id DESC`
	rows, err := s.conn(ctx).QueryContext(ctx, q, registrationID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []model.CheckinBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, mapError(err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// TouchCheckin stamps the registration with the latest commit time. The
// verifier stamp keeps its previous value when none is supplied.
func (s *Store) TouchCheckin(ctx context.Context, registrationID uint64, at time.Time, by *string) error {
	const q = `UPDATE registrations
               SET last_checked_in_at = ?,
                   last_checked_in_by = COALESCE(?, last_checked_in_by)
               WHERE id = ?`
	if _, err := s.conn(ctx).ExecContext(ctx, q, at, by, registrationID); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *Store) SetAllCheckedIn(ctx context.Context, registrationID uint64, done bool) error {
	const q = `UPDATE registrations SET all_checked_in = ? WHERE id = ?`
	if _, err := s.conn(ctx).ExecContext(ctx, q, done, registrationID); err != nil {
		return mapError(err)
	}
	return nil
}

// DeleteRegistration removes the row; checkin_batches rows follow through
// the ON DELETE CASCADE foreign key, so no orphan batches survive.
func (s *Store) DeleteRegistration(ctx context.Context, registrationID uint64) error {
	const q = `DELETE FROM registrations WHERE id = ?`
	res, err := s.conn(ctx).ExecContext(ctx, q, registrationID)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if n == 0 {
		return ledger.ErrUnknownRegistration
	}
	return nil
}
