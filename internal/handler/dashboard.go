package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-checkin/internal/repository"
)

// DashboardHandler serves the admin overview: event-wide totals and the
// live activity feed. Responses here may be served from the short-lived
// response cache; per-registration rollups never go through it.
type DashboardHandler struct {
	Checkins *repository.CheckinRepo
}

// NewDashboardHandler returns a DashboardHandler over the reporting repo.
func NewDashboardHandler(checkins *repository.CheckinRepo) *DashboardHandler {
	return &DashboardHandler{Checkins: checkins}
}

// Summary handles GET /v1/dashboard/summary. "Today" starts at local
// midnight on the server.
func (h *DashboardHandler) Summary(c echo.Context) error {
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	s, err := h.Checkins.Summarize(c.Request().Context(), today)
	if err != nil {
		return writeLedgerError(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

// Activity handles GET /v1/dashboard/activity?limit=. Newest movements
// first; revocations appear as negative deltas.
func (h *DashboardHandler) Activity(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
		}
		limit = n
	}
	entries, err := h.Checkins.RecentActivity(c.Request().Context(), limit)
	if err != nil {
		return writeLedgerError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"activity": entries})
}
