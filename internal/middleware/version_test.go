package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractVersionFromPath(t *testing.T) {
	tests := map[string]string{
		"/api/v1/businesses": "v1",
		"/api/v12":           "v12",
		"/api/vx/health":     "",
		"/api/latest":        "",
		"/health":            "",
	}
	for path, want := range tests {
		assert.Equal(t, want, extractVersionFromPath(path), path)
	}
}

func TestAPIVersionResolver(t *testing.T) {
	vm := NewVersionMiddleware()
	e := echo.New()
	next := func(c echo.Context) error { return c.String(http.StatusOK, c.Get("api_version").(string)) }

	rec := httptest.NewRecorder()
	require.NoError(t, vm.APIVersionResolver()(next)(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil), rec)))
	assert.Equal(t, "v1", rec.Body.String())

	rec = httptest.NewRecorder()
	require.NoError(t, vm.APIVersionResolver()(next)(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v3/health", nil), rec)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unsupported API version")
}

func TestVersionHeader_Deprecated(t *testing.T) {
	vm := NewVersionMiddleware()
	sunset := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	vm.AddVersion("v0", "deprecated", "Use v1", &sunset)

	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/api/v0/health", nil), rec)
	require.NoError(t, vm.VersionHeader("v0")(func(c echo.Context) error { return nil })(c))

	assert.Equal(t, "v0", rec.Header().Get("X-API-Version"))
	assert.Equal(t, "true", rec.Header().Get("X-API-Deprecated"))
	assert.Equal(t, "2027-01-01T00:00:00Z", rec.Header().Get("X-API-Sunset"))
	assert.Equal(t, []string{"v0", "v1"}, vm.SupportedVersions())
}
