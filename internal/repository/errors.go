// Package repository implements MySQL-backed storage for the check-in
// ledger: the transactional store the ledger engine runs on, plus the
// read-side queries behind attendance lookup, search and the dashboard.
package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/event-checkin/internal/ledger"
)

// MySQL/InnoDB error numbers that indicate a transient race between
// transactions rather than a real fault.
const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

// mapError translates driver errors into the ledger taxonomy: deadlocks and
// lock-wait timeouts become the retryable conflict error, everything else a
// storage failure.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlErrDeadlock, mysqlErrLockWaitTimeout:
			return fmt.Errorf("%w: %v", ledger.ErrConcurrencyConflict, err)
		}
	}
	return fmt.Errorf("%w: %v", ledger.ErrStorage, err)
}
