package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/lanbox/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsHandler(t *testing.T) {
	t.Run("journal disabled", func(t *testing.T) {
		h := NewStatsHandler(nil)
		e := echo.New()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/stats", nil), httptest.NewRecorder())
		assertAPIError(t, h.HandleStats(c), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE")
	})

	t.Run("totals", func(t *testing.T) {
		j := &fakeJournal{events: []models.Event{
			{Kind: models.EventUpload, Size: 10},
			{Kind: models.EventUpload, Size: 5},
			{Kind: models.EventDownload, Size: 10},
		}}
		h := NewStatsHandler(j)

		e := echo.New()
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/stats?recent=5", nil), rec)
		require.NoError(t, h.HandleStats(c))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"uploads":2`)
		assert.Contains(t, rec.Body.String(), `"bytesUploaded":15`)
		assert.Contains(t, rec.Body.String(), `"downloads":1`)
	})

	t.Run("bad recent", func(t *testing.T) {
		h := NewStatsHandler(&fakeJournal{})
		e := echo.New()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/stats?recent=lots", nil), httptest.NewRecorder())
		assertAPIError(t, h.HandleStats(c), http.StatusBadRequest, "BAD_REQUEST")
	})

	t.Run("journal error", func(t *testing.T) {
		h := NewStatsHandler(&fakeJournal{err: errors.New("io error")})
		e := echo.New()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/stats", nil), httptest.NewRecorder())
		assertAPIError(t, h.HandleStats(c), http.StatusInternalServerError, "INTERNAL_ERROR")
	})
}
