package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/event-checkin/internal/ledger"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{name: "deadlock becomes conflict", in: &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}, want: ledger.ErrConcurrencyConflict},
		{name: "lock wait timeout becomes conflict", in: &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}, want: ledger.ErrConcurrencyConflict},
		{name: "wrapped driver error still mapped", in: fmt.Errorf("exec: %w", &mysql.MySQLError{Number: 1213}), want: ledger.ErrConcurrencyConflict},
		{name: "other mysql error is storage failure", in: &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, want: ledger.ErrStorage},
		{name: "arbitrary error is storage failure", in: errors.New("connection refused"), want: ledger.ErrStorage},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapError(tc.in)
			if !errors.Is(got, tc.want) {
				t.Fatalf("mapError(%v) = %v, want errors.Is %v", tc.in, got, tc.want)
			}
		})
	}

	t.Run("nil passes through", func(t *testing.T) {
		if got := mapError(nil); got != nil {
			t.Fatalf("mapError(nil) = %v, want nil", got)
		}
	})

	// A conflict mapping must never double as a storage failure; the service
	// retries one and surfaces the other.
	t.Run("conflict is not a storage failure", func(t *testing.T) {
		got := mapError(&mysql.MySQLError{Number: 1213})
		if errors.Is(got, ledger.ErrStorage) {
			t.Fatalf("mapError(1213) = %v, also matches ErrStorage", got)
		}
	})
}
