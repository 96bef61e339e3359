package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/teemow/meetassist/internal/instrumentation"
)

const (
	// DefaultHTTPAddr is the default address of the application server.
	DefaultHTTPAddr = ":8080"

	// CallbackPath receives optimizer results.
	CallbackPath = "/planner/callback"

	// MCPPath serves the streamable HTTP MCP transport.
	MCPPath = "/mcp"
)

var knownPaths = []string{CallbackPath, MCPPath, "/healthz", "/readyz", "/healthz/detailed"}

// HTTPServerConfig wires the handlers of the application server. Nil
// handlers are not mounted.
type HTTPServerConfig struct {
	Addr      string
	Health    *HealthChecker
	Callback  http.Handler
	MCPServer *mcpserver.MCPServer
	Metrics   *instrumentation.Metrics
	Logger    *slog.Logger
}

// HTTPServer is the application HTTP server.
type HTTPServer struct {
	mu         sync.Mutex
	httpServer *http.Server
	handler    http.Handler
	addr       string
	logger     *slog.Logger
}

// NewHTTPServer builds the routing table of the application server.
func NewHTTPServer(cfg HTTPServerConfig) *HTTPServer {
	if cfg.Addr == "" {
		cfg.Addr = DefaultHTTPAddr
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	mux := http.NewServeMux()
	if cfg.Health != nil {
		cfg.Health.RegisterHealthEndpoints(mux)
	}
	if cfg.Callback != nil {
		mux.Handle(CallbackPath, cfg.Callback)
	}
	if cfg.MCPServer != nil {
		mux.Handle(MCPPath, mcpserver.NewStreamableHTTPServer(cfg.MCPServer,
			mcpserver.WithEndpointPath(MCPPath),
		))
	}

	handler := otelhttp.NewHandler(recordRequests(cfg.Metrics, mux), "meetassist")
	return &HTTPServer{
		handler: handler,
		addr:    cfg.Addr,
		logger:  cfg.Logger,
	}
}

// Handler returns the instrumented routing table.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

// Start serves until Shutdown.
func (s *HTTPServer) Start() error {
	return s.StartWithReadySignal(nil)
}

// StartWithReadySignal binds the listener, closes ready (when non-nil) and
// serves until Shutdown.
func (s *HTTPServer) StartWithReadySignal(ready chan<- struct{}) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", "addr", ln.Addr().String())
	if ready != nil {
		close(ready)
	}
	return srv.Serve(ln)
}

// Shutdown gracefully shuts down the server
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

// Addr returns the configured address, or the bound one once started.
func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses of the MCP transport working.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func recordRequests(m *instrumentation.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		path := instrumentation.BoundedLabel(r.URL.Path, knownPaths...)
		m.RecordHTTPRequest(r.Context(), r.Method, path, rec.status, time.Since(start))
	})
}
