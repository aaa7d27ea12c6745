package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coop-registration-api/internal/service"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func opsRouter(h *MetricsHandler) http.Handler {
	r := newTestRouter()
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/metrics", h.Prometheus)
	return r
}

func TestReadyReflectsDatabase(t *testing.T) {
	up := opsRouter(NewMetricsHandler(nil, pingerFunc(func(context.Context) error { return nil })))
	w := performRequest(up, newRequest(http.MethodGet, "/ready", "", ""))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"up"`)

	down := opsRouter(NewMetricsHandler(nil, pingerFunc(func(context.Context) error { return errors.New("refused") })))
	w = performRequest(down, newRequest(http.MethodGet, "/ready", "", ""))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestPrometheusEndpoint(t *testing.T) {
	w := performRequest(opsRouter(NewMetricsHandler(nil, nil)), newRequest(http.MethodGet, "/metrics", "", ""))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	metrics := service.NewMetricsService()
	metrics.RecordRegistrationOutcome(service.OutcomeCommitted)
	w = performRequest(opsRouter(NewMetricsHandler(metrics, nil)), newRequest(http.MethodGet, "/metrics", "", ""))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "registration_batches_total")
}

func TestHealth(t *testing.T) {
	w := performRequest(opsRouter(NewMetricsHandler(nil, nil)), newRequest(http.MethodGet, "/health", "", ""))
	assert.Equal(t, http.StatusOK, w.Code)
}
