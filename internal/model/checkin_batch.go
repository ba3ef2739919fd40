package model

import "time"

// CheckinBatch is one ledger entry: a single check-in event admitting some
// number of attendees under a registration. Rows are append-only; the only
// mutation ever applied is the one-way revoked transition, after which the
// batch's count is excluded from capacity and rollup arithmetic but the row
// is retained for audit.
//
// Fields:
//  ID             – surrogate primary key, monotonically increasing.
//  RegistrationID – owning registration; rows are removed with it (FK
//                   ON DELETE CASCADE, no orphan batches).
//  Count          – attendees admitted in this batch (> 0, immutable).
//  VerifierID     – identity of the verifying operator, if supplied.
//  DeviceID       – scanning device identifier, if supplied.
//  LocationNote   – free-text gate/door note, if supplied.
//  Notes          – free-text remarks, if supplied.
//  Revoked        – one-way revocation flag.
//  RevokedAt/By   – when and by whom the batch was revoked.
//  CreatedAt      – commit time.
type CheckinBatch struct {
	ID             uint64     // checkin_batches.id
	RegistrationID uint64     // checkin_batches.registration_id
	Count          int        // checkin_batches.count
	VerifierID     *string    // checkin_batches.verifier_id
	DeviceID       *string    // checkin_batches.device_id
	LocationNote   *string    // checkin_batches.location_note
	Notes          *string    // checkin_batches.notes
	Revoked        bool       // checkin_batches.revoked
	RevokedAt      *time.Time // checkin_batches.revoked_at
	RevokedBy      *string    // checkin_batches.revoked_by
	CreatedAt      time.Time  // checkin_batches.created_at
}
