package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"price-alert-bot/internal/alert"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopCycler struct{}

func (noopCycler) RunCycle(context.Context) (alert.CycleReport, error) {
	return alert.CycleReport{NothingToDo: true}, nil
}

func TestCycleHandler(t *testing.T) {
	scheduler, err := alert.NewScheduler(noopCycler{}, "@every 1h", nil)
	require.NoError(t, err)
	server := newMetricsAndHealthServer(0, scheduler)

	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cycle", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cycle", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "cycle scheduled", rec.Body.String())

	// Not started, so the first request is still pending.
	rec = httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cycle", nil))
	assert.Equal(t, "cycle already pending", rec.Body.String())
}

func TestHealthCheck(t *testing.T) {
	scheduler, err := alert.NewScheduler(noopCycler{}, "@every 1h", nil)
	require.NoError(t, err)
	server := newMetricsAndHealthServer(0, scheduler)

	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
