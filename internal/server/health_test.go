package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getJSON(t *testing.T, h http.Handler, path string, v any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
	return rec.Code
}

func TestHealthChecker_Liveness(t *testing.T) {
	h := NewHealthChecker(nil)
	h.SetReady(false)

	var resp HealthResponse
	assert.Equal(t, http.StatusOK, getJSON(t, h.LivenessHandler(), "/healthz", &resp))
	assert.Equal(t, healthStatusOK, resp.Status)
}

func TestHealthChecker_Readiness(t *testing.T) {
	failing := func(context.Context) error { return errors.New("connection refused") }
	passing := func(context.Context) error { return nil }

	tests := []struct {
		name       string
		ready      bool
		shutdown   bool
		checks     map[string]CheckFunc
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "ready without checks",
			ready:      true,
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"ready": "ok", "shutdown": "ok"},
		},
		{
			name:       "not ready",
			ready:      false,
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"ready": "not ready", "shutdown": "ok"},
		},
		{
			name:       "shutting down",
			ready:      true,
			shutdown:   true,
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"ready": "ok", "shutdown": "shutting down"},
		},
		{
			name:       "dependency down",
			ready:      true,
			checks:     map[string]CheckFunc{"valkey": failing, "nats": passing},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"ready": "ok", "shutdown": "ok", "valkey": "connection refused", "nats": "ok"},
		},
		{
			name:       "dependencies up",
			ready:      true,
			checks:     map[string]CheckFunc{"valkey": passing},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"ready": "ok", "shutdown": "ok", "valkey": "ok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := NewServerContext(context.Background())
			if tt.shutdown {
				require.NoError(t, sc.Shutdown())
			}
			h := NewHealthChecker(sc)
			h.SetReady(tt.ready)
			for name, check := range tt.checks {
				h.AddCheck(name, check)
			}

			var resp HealthResponse
			assert.Equal(t, tt.wantStatus, getJSON(t, h.ReadinessHandler(), "/readyz", &resp))
			assert.Equal(t, tt.wantChecks, resp.Checks)
		})
	}
}

func TestHealthChecker_CheckHonoursTimeout(t *testing.T) {
	h := NewHealthChecker(nil)
	h.checkTimeout = 0
	h.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	var resp DetailedHealthResponse
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, h.DetailedHealthHandler(), "/healthz/detailed", &resp))
	assert.Equal(t, healthStatusNotReady, resp.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), resp.Checks["slow"])
	assert.NotEmpty(t, resp.Uptime)
}
