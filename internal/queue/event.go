// Package queue defines message payloads exchanged over the message broker.
package queue

// CheckinRecordedEvent is published after a check-in batch commits. It
// carries enough for downstream consumers (attendance log, email/notify
// glue) to act without querying the primary database.
type CheckinRecordedEvent struct {
	BatchID        uint64 `json:"batch_id"`
	RegistrationID uint64 `json:"registration_id"`
	TransactionID  string `json:"transaction_id"`
	Username       string `json:"username"`
	Count          int    `json:"count"`
	CheckedIn      int    `json:"checked_in_count"`
	Remaining      int    `json:"remaining_count"`
	FullyCheckedIn bool   `json:"fully_checked_in"`
	VerifierID     string `json:"verifier_id,omitempty"`
	DeviceID       string `json:"device_id,omitempty"`
	RecordedAt     string `json:"recorded_at"`
}

// CheckinRevokedEvent is published after a batch is revoked (directly or by
// a rewind), so consumers can correct their running totals.
type CheckinRevokedEvent struct {
	BatchID        uint64 `json:"batch_id"`
	RegistrationID uint64 `json:"registration_id"`
	Count          int    `json:"count"`
	RevokedBy      string `json:"revoked_by"`
	RevokedAt      string `json:"revoked_at"`
}
