// handlers_stats.go - Journal statistics
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/lanbox/backend/internal/models"
)

const maxRecent = 500

type statsResponse struct {
	Success bool          `json:"success"`
	Stats   *models.Stats `json:"stats"`
}

// StatsHandlerImpl implements the StatsHandler interface
type StatsHandlerImpl struct {
	journal Journal
}

// NewStatsHandler creates a stats handler. A nil journal answers 503.
func NewStatsHandler(journal Journal) StatsHandler {
	return &StatsHandlerImpl{journal: journal}
}

// HandleStats returns transfer totals and the most recent events.
func (h *StatsHandlerImpl) HandleStats(c echo.Context) error {
	if h.journal == nil {
		return NewServiceUnavailableError("journal is disabled")
	}

	recent := 0
	if s := c.QueryParam("recent"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return NewBadRequestError("recent must be a non-negative integer", err)
		}
		recent = min(n, maxRecent)
	}

	stats, err := h.journal.Stats(c.Request().Context(), recent)
	if err != nil {
		return NewInternalError("failed to read journal", err)
	}
	return c.JSON(http.StatusOK, statsResponse{Success: true, Stats: stats})
}
