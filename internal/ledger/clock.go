package ledger

import "time"

// Clock abstracts time so tests can pin the commit and revocation
// timestamps the ledger stamps onto rows.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// SystemClock returns a Clock backed by time.Now in UTC.
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type fixedClock struct{ now time.Time }

// FixedClock returns a Clock frozen at t (UTC), for tests.
func FixedClock(t time.Time) Clock {
	return fixedClock{now: t.UTC()}
}

func (f fixedClock) Now() time.Time { return f.now }
