package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/meetassist/internal/instrumentation"
)

func TestNewMetricsServer(t *testing.T) {
	tests := []struct {
		name        string
		config      MetricsServerConfig
		wantAddr    string
		errContains string
	}{
		{
			name:     "explicit addr",
			config:   MetricsServerConfig{Addr: ":9191", Enabled: true, InstrumentationProvider: createTestProvider(t)},
			wantAddr: ":9191",
		},
		{
			name:     "default addr",
			config:   MetricsServerConfig{Enabled: true, InstrumentationProvider: createTestProvider(t)},
			wantAddr: DefaultMetricsAddr,
		},
		{
			name:        "nil provider",
			config:      MetricsServerConfig{Addr: ":9090", Enabled: true},
			errContains: "instrumentation provider is required",
		},
		{
			name:        "disabled provider",
			config:      MetricsServerConfig{Addr: ":9090", Enabled: true, InstrumentationProvider: createDisabledProvider(t)},
			errContains: "instrumentation provider is not enabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, err := NewMetricsServer(tt.config)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAddr, server.Addr())
		})
	}
}

func TestMetricsServer_ExposesDomainMetrics(t *testing.T) {
	provider := createTestProvider(t)
	server, err := NewMetricsServer(MetricsServerConfig{Enabled: true, InstrumentationProvider: provider})
	require.NoError(t, err)

	ctx := context.Background()
	provider.Metrics().RecordToolInvocation(ctx, "availability_find_slots", instrumentation.StatusSuccess, 5*time.Millisecond)
	provider.Metrics().RecordDeadLetter(ctx, "terminal_loss")

	rec := httptest.NewRecorder()
	server.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "mcp_tool_invocations")
	assert.Contains(t, body, `tool="availability_find_slots"`)
	assert.Contains(t, body, "terminal_loss")
}

func TestMetricsServer_StartAndShutdown(t *testing.T) {
	server, err := NewMetricsServer(MetricsServerConfig{
		Addr:                    "127.0.0.1:0",
		Enabled:                 true,
		InstrumentationProvider: createTestProvider(t),
	})
	require.NoError(t, err)

	ready := make(chan struct{})
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.StartWithReadySignal(ready)
	}()

	select {
	case <-ready:
	case err := <-serverErr:
		t.Fatalf("StartWithReadySignal() error = %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not become ready")
	}

	resp, err := http.Get("http://" + server.Addr() + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))
	assert.ErrorIs(t, <-serverErr, http.ErrServerClosed)
}

func TestMetricsServer_BindError(t *testing.T) {
	server, err := NewMetricsServer(MetricsServerConfig{
		Addr:                    "127.0.0.1:-1",
		Enabled:                 true,
		InstrumentationProvider: createTestProvider(t),
	})
	require.NoError(t, err)

	ready := make(chan struct{})
	require.Error(t, server.StartWithReadySignal(ready))
	select {
	case <-ready:
		t.Error("ready closed despite listen failure")
	default:
	}
}

func TestMetricsServer_ShutdownWithoutStart(t *testing.T) {
	server, err := NewMetricsServer(MetricsServerConfig{
		Enabled:                 true,
		InstrumentationProvider: createTestProvider(t),
	})
	require.NoError(t, err)
	assert.NoError(t, server.Shutdown(context.Background()))
}

func createTestProvider(t *testing.T) *instrumentation.Provider {
	t.Helper()
	ctx := context.Background()
	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: instrumentation.ExporterPrometheus,
		TracingExporter: instrumentation.ExporterNone,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = provider.Shutdown(ctx)
	})
	return provider
}

func createDisabledProvider(t *testing.T) *instrumentation.Provider {
	t.Helper()
	provider, err := instrumentation.NewProvider(context.Background(), instrumentation.Config{
		ServiceName: "test-service",
		Enabled:     false,
	})
	require.NoError(t, err)
	return provider
}

func TestMetricsServer_CustomPath(t *testing.T) {
	server, err := NewMetricsServer(MetricsServerConfig{
		Enabled:                 true,
		InstrumentationProvider: createTestProvider(t),
		Path:                    "/internal/metrics",
	})
	require.NoError(t, err)

	for path, want := range map[string]int{"/internal/metrics": http.StatusOK, "/metrics": http.StatusNotFound} {
		rec := httptest.NewRecorder()
		server.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rec.Code, path)
	}
}
