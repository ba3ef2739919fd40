package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/event-checkin/internal/ledger"
	"github.com/iliyamo/event-checkin/internal/model"
)

// RegistrationRepo provides the read side of the registration table:
// lookups by scanned transaction id and the attendance search used at the
// gate. Writes to registrations happen only through the ledger store.
type RegistrationRepo struct {
	db *sql.DB
}

// NewRegistrationRepo returns a RegistrationRepo bound to the database.
func NewRegistrationRepo(db *sql.DB) *RegistrationRepo { return &RegistrationRepo{db: db} }

// AttendanceRow is one registration with its derived attendance figures,
// shaped for the verifier and dashboard screens. The counts are computed
// from the ledger in the same query, never read from the cached flag.
type AttendanceRow struct {
	RegistrationID   uint64 `json:"registration_id"`
	TransactionID    string `json:"transaction_id"`
	Username         string `json:"username"`
	Email            string `json:"email"`
	AttendeesPlanned int    `json:"attendees_planned"`
	CheckedIn        int    `json:"checked_in_count"`
	Remaining        int    `json:"remaining_count"`
	AllCheckedIn     bool   `json:"fully_checked_in"`
	Revoked          bool   `json:"revoked"`
}

const attendanceSelect = `
    SELECT r.id, r.transaction_id, r.username, r.email, r.attendees_planned, r.revoked,
           COALESCE(SUM(CASE WHEN b.revoked = FALSE THEN b.` + "`count`" + ` END), 0) AS checked_in
    FROM registrations r
    LEFT JOIN checkin_batches b ON b.registration_id = r.id`

func scanAttendanceRow(row rowScanner) (AttendanceRow, error) {
	var a AttendanceRow
	err := row.Scan(&a.RegistrationID, &a.TransactionID, &a.Username, &a.Email,
		&a.AttendeesPlanned, &a.Revoked, &a.CheckedIn)
	if err != nil {
		return AttendanceRow{}, err
	}
	roll := ledger.Project(a.AttendeesPlanned, a.CheckedIn)
	a.Remaining = roll.Remaining
	a.AllCheckedIn = roll.FullyCheckedIn
	return a, nil
}

// GetByTransactionID resolves a scanned QR transaction id to its
// registration record.
func (r *RegistrationRepo) GetByTransactionID(ctx context.Context, txnID string) (model.Registration, error) {
	q := `SELECT ` + registrationColumns + ` FROM registrations WHERE transaction_id = ?`
	reg, err := scanRegistration(r.db.QueryRowContext(ctx, q, txnID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Registration{}, ledger.ErrUnknownRegistration
		}
		return model.Registration{}, mapError(err)
	}
	return reg, nil
}

// AttendanceByTransaction returns the attendance row for one scanned
// transaction id.
func (r *RegistrationRepo) AttendanceByTransaction(ctx context.Context, txnID string) (AttendanceRow, error) {
	q := attendanceSelect + `
        WHERE r.transaction_id = ?
        GROUP BY r.id`
	row, err := scanAttendanceRow(r.db.QueryRowContext(ctx, q, txnID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AttendanceRow{}, ledger.ErrUnknownRegistration
		}
		return AttendanceRow{}, mapError(err)
	}
	return row, nil
}

// SearchAttendance matches registrations by purchaser name or email
// (case-insensitive substring) and returns up to 25 rows with derived
// counts, ordered by name. Used when an attendee arrives without a QR code.
func (r *RegistrationRepo) SearchAttendance(ctx context.Context, query string) ([]AttendanceRow, error) {
	like := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	q := attendanceSelect + `
        WHERE LOWER(r.username) LIKE ? OR LOWER(r.email) LIKE ?
        GROUP BY r.id
        ORDER BY r.username ASC
        LIMIT 25`
	rows, err := r.db.QueryContext(ctx, q, like, like)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make([]AttendanceRow, 0)
	for rows.Next() {
		a, err := scanAttendanceRow(rows)
		if err != nil {
			return nil, mapError(err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return out, nil
}
