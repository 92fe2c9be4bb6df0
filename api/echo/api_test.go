package echo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHealthChecker struct {
	err error
}

func (s stubHealthChecker) Ping(context.Context) error { return s.err }

func performHealthCheck(t *testing.T, health HealthChecker) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	api := &API{health: health}
	require.NoError(t, api.HealthHandler(c))
	return rec
}

func TestHealthHandler_StoreReachable(t *testing.T) {
	rec := performHealthCheck(t, stubHealthChecker{})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestHealthHandler_StoreUnreachable(t *testing.T) {
	rec := performHealthCheck(t, stubHealthChecker{err: assert.AnError})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")
}
