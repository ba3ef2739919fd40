package ledger

// Guard validates a candidate check-in batch against a registration's paid
// capacity. planned is the attendee count the registration is entitled to,
// admitted the sum of count over its non-revoked batches, requested the size
// of the candidate batch.
//
// Guard is pure; callers must invoke it inside the same atomic unit that
// inserts the batch, with the registration's admitted sum read under a
// per-registration lock, so that two admissions that individually fit but
// together overflow cannot both pass.
func Guard(planned, admitted, requested int) error {
	if requested <= 0 {
		return ErrInvalidCount
	}
	if admitted+requested > planned {
		return &CapacityError{Planned: planned, Admitted: admitted, Requested: requested}
	}
	return nil
}
