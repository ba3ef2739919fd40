package ledger

// Rollup is the derived per-registration attendance summary. It is
// recomputed on demand from the ledger and never trusted from a cache.
type Rollup struct {
	CheckedIn      int  `json:"checked_in_count"`
	Remaining      int  `json:"remaining_count"`
	FullyCheckedIn bool `json:"fully_checked_in"`
}

// Project computes the rollup for a registration. checkedIn is the sum of
// count over its non-revoked batches. A registration with zero planned
// attendees is never fully checked in.
func Project(planned, checkedIn int) Rollup {
	remaining := planned - checkedIn
	if remaining < 0 {
		remaining = 0
	}
	return Rollup{
		CheckedIn:      checkedIn,
		Remaining:      remaining,
		FullyCheckedIn: planned > 0 && checkedIn >= planned,
	}
}
