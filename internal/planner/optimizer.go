package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Optimizer accepts planning requests. The answer arrives later on the
// request's callback URL.
type Optimizer interface {
	Solve(ctx context.Context, req *PlanningRequest) error
}

// SolvePath is the optimizer endpoint for a planning request.
const SolvePath = "/timeTable/admin/solve-day"

// HTTPOptimizerConfig configures HTTPOptimizer.
type HTTPOptimizerConfig struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// HTTPOptimizer submits planning requests over HTTP with basic auth.
type HTTPOptimizer struct {
	cfg    HTTPOptimizerConfig
	client *http.Client
}

// NewHTTPOptimizer returns a client whose transport is traced with otelhttp.
func NewHTTPOptimizer(cfg HTTPOptimizerConfig) *HTTPOptimizer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &HTTPOptimizer{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Solve implements Optimizer.
func (o *HTTPOptimizer) Solve(ctx context.Context, req *PlanningRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal planning request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+SolvePath, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if o.cfg.Username != "" {
		httpReq.SetBasicAuth(o.cfg.Username, o.cfg.Password)
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("submit planning request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("optimizer returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
