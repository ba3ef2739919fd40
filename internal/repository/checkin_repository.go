package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/event-checkin/internal/model"
)

// CheckinRepo provides the audit and reporting reads over the check-in
// ledger: per-registration batch listings, the activity feed and the
// event-wide dashboard totals.
type CheckinRepo struct {
	db *sql.DB
}

// NewCheckinRepo returns a CheckinRepo bound to the database.
func NewCheckinRepo(db *sql.DB) *CheckinRepo { return &CheckinRepo{db: db} }

// ListByRegistration returns every batch for a registration, oldest first.
// Revoked rows are included; the ledger is the audit trail.
func (r *CheckinRepo) ListByRegistration(ctx context.Context, registrationID uint64) ([]model.CheckinBatch, error) {
	q := `SELECT ` + batchColumns + `
          FROM checkin_batches
          WHERE registration_id = ?
          ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, registrationID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make([]model.CheckinBatch, 0)
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

// ActivityEntry is one line of the live attendance feed. Delta is positive
// for an admission and negative for a revocation, so a running sum of the
// feed reproduces the current headcount.
type ActivityEntry struct {
	At            time.Time `json:"at"`
	TransactionID string    `json:"transaction_id"`
	Username      string    `json:"username"`
	Delta         int       `json:"delta"`
	VerifierID    string    `json:"verifier_id"`
	Revoked       bool      `json:"revoked"`
}

// RecentActivity returns the latest ledger movements, newest first. A
// revoked batch appears once, as a negative delta at its revocation time.
func (r *CheckinRepo) RecentActivity(ctx context.Context, limit int) ([]ActivityEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	const q = `
        SELECT COALESCE(b.revoked_at, b.created_at) AS ts,
               r.transaction_id, r.username,
               CASE WHEN b.revoked = TRUE THEN -b.` + "`count`" + ` ELSE b.` + "`count`" + ` END AS delta,
               COALESCE(b.verifier_id, '') AS verifier_id,
               b.revoked
        FROM checkin_batches b
        JOIN registrations r ON r.id = b.registration_id
        ORDER BY ts DESC, b.id DESC
        LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make([]ActivityEntry, 0, limit)
	for rows.Next() {
		var e ActivityEntry
		if err := rows.Scan(&e.At, &e.TransactionID, &e.Username, &e.Delta, &e.VerifierID, &e.Revoked); err != nil {
			return nil, mapError(err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// Summary is the event-wide attendance rollup for the dashboard.
type Summary struct {
	Registrations    int `json:"registrations"`
	AttendeesPlanned int `json:"attendees_planned"`
	CheckedIn        int `json:"checked_in_count"`
	FullyCheckedIn   int `json:"fully_checked_in_registrations"`
	CheckedInToday   int `json:"checked_in_today"`
}

// Summarize aggregates the whole ledger. today is the start of the current
// day in the event's timezone; admits minus revokes since that instant feed
// the "today" figure.
func (r *CheckinRepo) Summarize(ctx context.Context, today time.Time) (Summary, error) {
	var s Summary

	const regs = `
        SELECT COUNT(*), COALESCE(SUM(attendees_planned), 0),
               COALESCE(SUM(CASE WHEN all_checked_in = TRUE THEN 1 ELSE 0 END), 0)
        FROM registrations`
	if err := r.db.QueryRowContext(ctx, regs).Scan(&s.Registrations, &s.AttendeesPlanned, &s.FullyCheckedIn); err != nil {
		return Summary{}, mapError(err)
	}

	const checked = `
        SELECT COALESCE(SUM(` + "`count`" + `), 0)
        FROM checkin_batches
        WHERE revoked = FALSE`
	if err := r.db.QueryRowContext(ctx, checked).Scan(&s.CheckedIn); err != nil {
		return Summary{}, mapError(err)
	}

	const todayQ = `
        SELECT COALESCE(SUM(CASE WHEN revoked = TRUE THEN -` + "`count`" + ` ELSE ` + "`count`" + ` END), 0)
        FROM checkin_batches
        WHERE COALESCE(revoked_at, created_at) >= ?`
	if err := r.db.QueryRowContext(ctx, todayQ, today).Scan(&s.CheckedInToday); err != nil {
		return Summary{}, mapError(err)
	}

	return s, nil
}
