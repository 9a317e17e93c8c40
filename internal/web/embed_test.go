package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStaticServer(t *testing.T) *echo.Echo {
	t.Helper()
	e := echo.New()
	e.GET("/files", func(c echo.Context) error { return c.String(http.StatusOK, "api") })
	require.NoError(t, RegisterStaticRoutes(e))
	return e
}

func get(e *echo.Echo, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRegisterStaticRoutes(t *testing.T) {
	e := newStaticServer(t)

	rec := get(e, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/html")
	assert.Contains(t, rec.Body.String(), `id="uploadArea"`)

	rec = get(e, "/app.js")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "uploadFiles")

	rec = get(e, "/style.css")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterStaticRoutes_APIWins(t *testing.T) {
	e := newStaticServer(t)

	rec := get(e, "/files")
	assert.Equal(t, "api", rec.Body.String())
}

func TestRegisterStaticRoutes_UnknownAsset(t *testing.T) {
	e := newStaticServer(t)

	rec := get(e, "/missing.js")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
