package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-checkin/internal/repository"
)

// AttendanceHandler serves the verifier lookup screens: attendance by
// scanned transaction id, free-text search and the per-registration batch
// history. All reads; the ledger engine owns every write.
type AttendanceHandler struct {
	Registrations *repository.RegistrationRepo
	Checkins      *repository.CheckinRepo
}

// NewAttendanceHandler returns an AttendanceHandler over the read repos.
func NewAttendanceHandler(regs *repository.RegistrationRepo, checkins *repository.CheckinRepo) *AttendanceHandler {
	return &AttendanceHandler{Registrations: regs, Checkins: checkins}
}

// GetByTransaction handles GET /v1/attendance/:txn, the screen shown
// right after a QR scan, with the live counts for the registration.
func (h *AttendanceHandler) GetByTransaction(c echo.Context) error {
	txn := c.Param("txn")
	if txn == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid transaction id"})
	}
	row, err := h.Registrations.AttendanceByTransaction(c.Request().Context(), txn)
	if err != nil {
		return writeLedgerError(c, err)
	}
	return c.JSON(http.StatusOK, row)
}

// Search handles GET /v1/attendance?q= for attendees who arrive without a
// QR code. Matches purchaser name or email, case-insensitive.
func (h *AttendanceHandler) Search(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "query parameter q is required"})
	}
	rows, err := h.Registrations.SearchAttendance(c.Request().Context(), q)
	if err != nil {
		return writeLedgerError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"results": rows})
}

// ListBatches handles GET /v1/registrations/:id/checkins. The full batch
// history, revoked rows included, oldest first.
func (h *AttendanceHandler) ListBatches(c echo.Context) error {
	regID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || regID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid registration id"})
	}
	batches, err := h.Checkins.ListByRegistration(c.Request().Context(), regID)
	if err != nil {
		return writeLedgerError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"batches": batches})
}
