package model

import "time"

// Registration is one paid event entry covering one or more attendees.
// Rows are created by the payment/issuance workflow; this service owns only
// the check-in side: the last-checked-in stamps and the cached
// all_attendees_checked_in flag, which is a materialization of the rollup
// formula and is rewritten inside every transaction that touches the ledger.
//
// Fields:
//  ID                   – surrogate primary key.
//  TransactionID        – unique payment transaction identifier; this is the
//                         value encoded in the attendee's QR code.
//  Username             – purchaser name.
//  Email                – purchaser email.
//  Phone                – purchaser phone number.
//  AttendeesPlanned     – attendee capacity paid for (>= 0, immutable here).
//  AmountCents          – amount paid, in cents (pass-through).
//  PaidFor              – what the payment covers (pass-through).
//  MembershipPaid       – membership flag (pass-through).
//  QRGenerated/QRSent   – issuance state owned by the QR/email workflow.
//  Revoked              – registration voided by an admin workflow; new
//                         check-ins are refused while set.
//  AllCheckedIn         – cached: planned > 0 and non-revoked check-ins
//                         >= planned.
//  LastCheckedInAt/By   – stamp of the most recent committed batch.
//  CreatedAt/UpdatedAt  – row timestamps.
type Registration struct {
	ID               uint64     // registrations.id
	TransactionID    string     // registrations.transaction_id
	Username         string     // registrations.username
	Email            string     // registrations.email
	Phone            string     // registrations.phone
	AttendeesPlanned int        // registrations.attendees_planned
	AmountCents      uint32     // registrations.amount_cents
	PaidFor          string     // registrations.paid_for
	MembershipPaid   bool       // registrations.membership_paid
	QRGenerated      bool       // registrations.qr_generated
	QRSent           bool       // registrations.qr_sent
	Revoked          bool       // registrations.revoked
	AllCheckedIn     bool       // registrations.all_checked_in
	LastCheckedInAt  *time.Time // registrations.last_checked_in_at
	LastCheckedInBy  *string    // registrations.last_checked_in_by
	CreatedAt        time.Time  // registrations.created_at
	UpdatedAt        time.Time  // registrations.updated_at
}
