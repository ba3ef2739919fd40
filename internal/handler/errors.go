package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-checkin/internal/ledger"
)

// writeLedgerError maps the ledger error taxonomy onto HTTP responses.
// Capacity rejections carry the full context numbers so the gate UI can
// tell the verifier exactly how many seats are left.
func writeLedgerError(c echo.Context, err error) error {
	if ce, ok := ledger.IsCapacityExceeded(err); ok {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":     "capacity_exceeded",
			"planned":   ce.Planned,
			"already":   ce.Admitted,
			"requested": ce.Requested,
		})
	}
	switch {
	case errors.Is(err, ledger.ErrUnknownRegistration):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "registration not found"})
	case errors.Is(err, ledger.ErrBatchNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "checkin batch not found"})
	case errors.Is(err, ledger.ErrInvalidCount):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "count must be a positive integer"})
	case errors.Is(err, ledger.ErrRegistrationRevoked):
		return c.JSON(http.StatusConflict, echo.Map{"error": "registration_revoked"})
	case errors.Is(err, ledger.ErrBatchAlreadyRevoked):
		return c.JSON(http.StatusConflict, echo.Map{"error": "already_revoked"})
	case errors.Is(err, ledger.ErrInsufficientCheckins):
		return c.JSON(http.StatusConflict, echo.Map{"error": "rewind exceeds checked-in count"})
	case errors.Is(err, ledger.ErrConcurrencyConflict):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "busy, try again"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
}

// operatorID returns the authenticated operator's identity from the JWT
// claims, or "" when unauthenticated (e.g. in tests without middleware).
func operatorID(c echo.Context) string {
	if op, ok := c.Get("operator_id").(string); ok {
		return op
	}
	return ""
}
