package common

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/teemow/meetassist/internal/instrumentation"
	"github.com/teemow/meetassist/internal/server"
)

func newTestContext(t *testing.T) (*server.ServerContext, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := instrumentation.NewMetrics(provider.Meter("test"), false)
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	sc := server.NewServerContext(context.Background(), server.WithMetrics(metrics))
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc, reader
}

// invocations returns the tool invocation count per status.
func invocations(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "mcp_tool_invocations_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("unexpected data type %T", m.Data)
			}
			for _, dp := range sum.DataPoints {
				status, _ := dp.Attributes.Value("status")
				out[status.AsString()] += dp.Value
			}
		}
	}
	return out
}

func TestInstrumentedToolHandler(t *testing.T) {
	errBoom := errors.New("boom")
	tests := []struct {
		name       string
		handler    ToolHandler
		wantErr    error
		wantStatus string
	}{
		{
			name: "success",
			handler: func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return mcp.NewToolResultText("success"), nil
			},
			wantStatus: instrumentation.StatusSuccess,
		},
		{
			name: "error result",
			handler: func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return mcp.NewToolResultError("windowStart is required"), nil
			},
			wantStatus: instrumentation.StatusError,
		},
		{
			name: "go error",
			handler: func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return nil, errBoom
			},
			wantErr:    errBoom,
			wantStatus: instrumentation.StatusError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, reader := newTestContext(t)

			called := false
			wrapped := InstrumentedToolHandler("test_tool", sc, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				called = true
				return tt.handler(ctx, req)
			})

			_, err := wrapped(context.Background(), mcp.CallToolRequest{})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if !called {
				t.Error("expected handler to be called")
			}
			got := invocations(t, reader)
			if got[tt.wantStatus] != 1 || len(got) != 1 {
				t.Errorf("invocations = %v, want one %q", got, tt.wantStatus)
			}
		})
	}
}

func TestInstrumentedToolHandler_WithoutMetrics(t *testing.T) {
	sc := server.NewServerContext(context.Background())
	defer func() { _ = sc.Shutdown() }()

	wrapped := InstrumentedToolHandler("test_tool", sc, func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("ok"), nil
	})

	result, err := wrapped(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result == nil || result.IsError {
		t.Errorf("unexpected result %+v", result)
	}
}
