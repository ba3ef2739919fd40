package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-checkin/internal/ledger"
	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/queue"
	queue_publisher "github.com/iliyamo/event-checkin/internal/service"
)

// CheckinService is the slice of the ledger engine the HTTP layer uses.
// *ledger.Service satisfies it; tests substitute an engine over the
// in-memory store.
type CheckinService interface {
	SubmitCheckin(ctx context.Context, in ledger.SubmitInput) (model.CheckinBatch, error)
	RevokeBatch(ctx context.Context, batchID uint64, revokedBy string) (model.CheckinBatch, error)
	RewindCheckins(ctx context.Context, registrationID uint64, count int, by string) (ledger.Rollup, error)
	Rollup(ctx context.Context, registrationID uint64) (ledger.Rollup, error)
	DeleteRegistration(ctx context.Context, registrationID uint64) error
}

// RegistrationResolver resolves a scanned QR transaction id to its
// registration. Implemented by repository.RegistrationRepo.
type RegistrationResolver interface {
	GetByTransactionID(ctx context.Context, txnID string) (model.Registration, error)
}

// CheckinHandler exposes the verifier-facing ledger operations: submitting
// check-in batches, revoking and rewinding them, reading rollups and
// deleting registrations. All admission decisions happen inside the ledger
// engine; this layer only parses, maps errors and emits events.
type CheckinHandler struct {
	Ledger        CheckinService
	Registrations RegistrationResolver
	Events        *queue_publisher.Publisher // nil disables publishing
}

// NewCheckinHandler constructs a CheckinHandler. Events may be nil.
func NewCheckinHandler(svc CheckinService, regs RegistrationResolver, events *queue_publisher.Publisher) *CheckinHandler {
	if svc == nil {
		panic("nil service passed to NewCheckinHandler")
	}
	return &CheckinHandler{Ledger: svc, Registrations: regs, Events: events}
}

// checkinRequest is the JSON body for a check-in submission. Count is
// required; the audit fields are optional.
type checkinRequest struct {
	Count        int     `json:"count"`
	VerifierID   *string `json:"verifier_id"`
	DeviceID     *string `json:"device_id"`
	LocationNote *string `json:"location_note"`
	Notes        *string `json:"notes"`
}

// Submit handles POST /v1/registrations/:id/checkins. On success it
// responds 201 with the new batch id and the post-commit rollup; a batch
// that would overflow the registration's paid capacity is rejected with
// 409 and the exact numbers.
func (h *CheckinHandler) Submit(c echo.Context) error {
	regID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || regID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid registration id"})
	}
	return h.submit(c, regID, nil)
}

// SubmitByTransaction handles POST /v1/attendance/:txn/checkins, the path
// the verifier app takes straight from a QR scan.
func (h *CheckinHandler) SubmitByTransaction(c echo.Context) error {
	txn := c.Param("txn")
	if txn == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid transaction id"})
	}
	if h.Registrations == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "registration not found"})
	}
	reg, err := h.Registrations.GetByTransactionID(c.Request().Context(), txn)
	if err != nil {
		return writeLedgerError(c, err)
	}
	return h.submit(c, reg.ID, &reg)
}

func (h *CheckinHandler) submit(c echo.Context, regID uint64, reg *model.Registration) error {
	var body checkinRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	// The authenticated operator is the default verifier identity.
	verifier := body.VerifierID
	if verifier == nil {
		if op := operatorID(c); op != "" {
			verifier = &op
		}
	}

	ctx := c.Request().Context()
	batch, err := h.Ledger.SubmitCheckin(ctx, ledger.SubmitInput{
		RegistrationID: regID,
		Count:          body.Count,
		VerifierID:     verifier,
		DeviceID:       body.DeviceID,
		LocationNote:   body.LocationNote,
		Notes:          body.Notes,
	})
	if err != nil {
		return writeLedgerError(c, err)
	}

	roll, err := h.Ledger.Rollup(ctx, regID)
	if err != nil {
		return writeLedgerError(c, err)
	}

	h.publishRecorded(ctx, batch, roll, reg)

	return c.JSON(http.StatusCreated, echo.Map{
		"batch_id": batch.ID,
		"rollup":   roll,
	})
}

// revokeRequest optionally overrides the operator identity stamped onto
// the revocation.
type revokeRequest struct {
	RevokedBy string `json:"revoked_by"`
}

// Revoke handles POST /v1/checkins/:id/revoke. The first revoke returns
// 200; revoking an already-revoked batch returns 409 so the admin UI can
// tell "done" from "nothing to do".
func (h *CheckinHandler) Revoke(c echo.Context) error {
	batchID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || batchID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid batch id"})
	}
	var body revokeRequest
	_ = c.Bind(&body) // body is optional
	by := body.RevokedBy
	if by == "" {
		by = operatorID(c)
	}

	ctx := c.Request().Context()
	batch, err := h.Ledger.RevokeBatch(ctx, batchID, by)
	if err != nil {
		return writeLedgerError(c, err)
	}

	if h.Events != nil {
		revokedAt := ""
		if batch.RevokedAt != nil {
			revokedAt = batch.RevokedAt.Format(time.RFC3339)
		}
		_ = h.Events.Publish(ctx, queue_publisher.RevokedQueue, queue.CheckinRevokedEvent{
			BatchID:        batch.ID,
			RegistrationID: batch.RegistrationID,
			Count:          batch.Count,
			RevokedBy:      by,
			RevokedAt:      revokedAt,
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"batch_id": batch.ID,
		"revoked":  true,
	})
}

// rewindRequest asks to undo count admissions, newest first.
type rewindRequest struct {
	Count int `json:"count"`
}

// Rewind handles POST /v1/registrations/:id/rewind. It responds with the
// rollup after the rewind settles.
func (h *CheckinHandler) Rewind(c echo.Context) error {
	regID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || regID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid registration id"})
	}
	var body rewindRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	roll, err := h.Ledger.RewindCheckins(c.Request().Context(), regID, body.Count, operatorID(c))
	if err != nil {
		return writeLedgerError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"rollup": roll})
}

// GetRollup handles GET /v1/registrations/:id/rollup. Always computed
// fresh from the ledger, never served from a cache.
func (h *CheckinHandler) GetRollup(c echo.Context) error {
	regID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || regID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid registration id"})
	}
	roll, err := h.Ledger.Rollup(c.Request().Context(), regID)
	if err != nil {
		return writeLedgerError(c, err)
	}
	return c.JSON(http.StatusOK, roll)
}

// Delete handles DELETE /v1/registrations/:id. The registration's batches
// are removed with it; a later rollup read reports the registration as
// unknown.
func (h *CheckinHandler) Delete(c echo.Context) error {
	regID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || regID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid registration id"})
	}
	if err := h.Ledger.DeleteRegistration(c.Request().Context(), regID); err != nil {
		return writeLedgerError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CheckinHandler) publishRecorded(ctx context.Context, batch model.CheckinBatch, roll ledger.Rollup, reg *model.Registration) {
	if h.Events == nil {
		return
	}
	ev := queue.CheckinRecordedEvent{
		BatchID:        batch.ID,
		RegistrationID: batch.RegistrationID,
		Count:          batch.Count,
		CheckedIn:      roll.CheckedIn,
		Remaining:      roll.Remaining,
		FullyCheckedIn: roll.FullyCheckedIn,
		RecordedAt:     batch.CreatedAt.Format(time.RFC3339),
	}
	if batch.VerifierID != nil {
		ev.VerifierID = *batch.VerifierID
	}
	if batch.DeviceID != nil {
		ev.DeviceID = *batch.DeviceID
	}
	if reg != nil {
		ev.TransactionID = reg.TransactionID
		ev.Username = reg.Username
	}
	_ = h.Events.Publish(ctx, queue_publisher.RecordedQueue, ev)
}
