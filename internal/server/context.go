package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/teemow/meetassist/internal/deadletter"
	"github.com/teemow/meetassist/internal/instrumentation"
	"github.com/teemow/meetassist/internal/logging"
	"github.com/teemow/meetassist/internal/recurrence"
)

// ServerContext holds the dependencies shared by the MCP tool handlers.
type ServerContext struct {
	ctx         context.Context
	cancel      context.CancelFunc
	expander    *recurrence.Expander
	deadLetters deadletter.Store
	metrics     *instrumentation.Metrics
	logger      *slog.Logger
	mu          sync.RWMutex
	shutdown    bool
}

// Option configures a ServerContext.
type Option func(*ServerContext)

// WithExpander sets the recurrence expander. The default uses RRuleEngine.
func WithExpander(x *recurrence.Expander) Option {
	return func(sc *ServerContext) { sc.expander = x }
}

// WithDeadLetters exposes a dead-letter ledger to the tools.
func WithDeadLetters(store deadletter.Store) Option {
	return func(sc *ServerContext) { sc.deadLetters = store }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(sc *ServerContext) { sc.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(sc *ServerContext) { sc.logger = logger }
}

// NewServerContext creates a new server context
func NewServerContext(ctx context.Context, opts ...Option) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)
	sc := &ServerContext{
		ctx:    shutdownCtx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(sc)
	}
	if sc.expander == nil {
		sc.expander = recurrence.NewExpander(nil)
	}
	if sc.logger == nil {
		sc.logger = slog.Default()
	}
	sc.logger = logging.WithComponent(sc.logger, "server")
	return sc
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Expander returns the recurrence expander.
func (sc *ServerContext) Expander() *recurrence.Expander {
	return sc.expander
}

// DeadLetters returns the dead-letter ledger, nil when none is configured.
func (sc *ServerContext) DeadLetters() deadletter.Store {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.deadLetters
}

// SetMetrics replaces the metrics recorder once the provider is up.
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = m
}

// Metrics returns the metrics recorder. It may be nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
