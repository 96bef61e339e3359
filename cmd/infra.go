package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/valkey-io/valkey-go"

	"github.com/teemow/meetassist/internal/blob"
	"github.com/teemow/meetassist/internal/calendar"
	"github.com/teemow/meetassist/internal/config"
	"github.com/teemow/meetassist/internal/deadletter"
	"github.com/teemow/meetassist/internal/instrumentation"
	"github.com/teemow/meetassist/internal/logging"
	"github.com/teemow/meetassist/internal/queue"
	"github.com/teemow/meetassist/internal/server"
)

// infra holds the connections and stores shared by the commands.
type infra struct {
	cfg    config.Config
	logger *slog.Logger

	valkey   valkey.Client
	nc       *nats.Conn
	js       jetstream.JetStream
	memQueue *queue.MemoryQueue

	blobs     blob.Store
	publisher queue.Publisher

	closers []func() error
}

// openInfra connects to the transports the configuration selects and builds
// the blob store and publisher on top of them.
func openInfra(ctx context.Context, cfg config.Config, metrics *instrumentation.Metrics, logger *slog.Logger) (_ *infra, err error) {
	in := &infra{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = in.Close()
		}
	}()

	if cfg.Transport == config.TransportValkey || cfg.Blob.Backend == config.BlobValkey {
		opt, err := cfg.Valkey.ClientOption()
		if err != nil {
			return nil, err
		}
		client, err := valkey.NewClient(opt)
		if err != nil {
			return nil, fmt.Errorf("connect to valkey at %s: %w", cfg.Valkey.URL, err)
		}
		in.valkey = client
		in.closers = append(in.closers, func() error {
			client.Close()
			return nil
		})
	}

	if cfg.Transport == config.TransportJetStream || cfg.Blob.Backend == config.BlobObjectStore {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("meetassist"))
		if err != nil {
			return nil, fmt.Errorf("connect to nats at %s: %w", cfg.NATS.URL, err)
		}
		in.nc = nc
		in.closers = append(in.closers, nc.Drain)
		if in.js, err = jetstream.New(nc); err != nil {
			return nil, fmt.Errorf("jetstream: %w", err)
		}
	}

	var store blob.Store
	switch cfg.Blob.Backend {
	case config.BlobValkey:
		store = blob.NewValkeyStore(in.valkey, cfg.Valkey.KeyPrefix)
	case config.BlobObjectStore:
		if store, err = blob.NewObjectStore(ctx, in.js, cfg.NATS.ObjectBucket); err != nil {
			return nil, err
		}
	default:
		store = blob.NewMemoryStore()
	}
	if cfg.Blob.Compress {
		if store, err = blob.Compressed(store); err != nil {
			return nil, err
		}
	}
	in.blobs = blob.Instrumented(store, cfg.Blob.Backend, metrics)

	switch cfg.Transport {
	case config.TransportValkey:
		in.publisher = in.valkeyQueue()
	case config.TransportJetStream:
		jsCfg := cfg.NATS.JetStream()
		if err := queue.EnsureStream(ctx, in.js, jsCfg); err != nil {
			return nil, err
		}
		in.publisher = queue.NewJetStreamPublisher(in.js, jsCfg)
	default:
		in.memQueue = queue.NewMemoryQueue(time.Second)
		in.closers = append(in.closers, in.memQueue.Close)
		in.publisher = in.memQueue
	}
	return in, nil
}

func (in *infra) valkeyQueue() *queue.ValkeyQueue {
	return queue.NewValkeyQueue(in.valkey, in.cfg.Valkey.Queue(), logging.NewSlogAdapter(in.logger))
}

// consumers returns one consumer per partition of the configured transport.
func (in *infra) consumers(ctx context.Context) ([]queue.Consumer, error) {
	switch in.cfg.Transport {
	case config.TransportValkey:
		return []queue.Consumer{in.valkeyQueue()}, nil
	case config.TransportJetStream:
		jsCfg := in.cfg.NATS.JetStream()
		out := make([]queue.Consumer, 0, jsCfg.Partitions)
		for p := range max(jsCfg.Partitions, 1) {
			c, err := queue.NewJetStreamConsumer(ctx, in.js, jsCfg, p, logging.NewSlogAdapter(in.logger))
			if err != nil {
				for _, opened := range out {
					_ = opened.Close()
				}
				return nil, err
			}
			out = append(out, c)
		}
		return out, nil
	default:
		return []queue.Consumer{in.memQueue}, nil
	}
}

// registerChecks adds readiness checks for every open connection.
func (in *infra) registerChecks(h *server.HealthChecker) {
	if in.valkey != nil {
		client := in.valkey
		h.AddCheck("valkey", func(ctx context.Context) error {
			return client.Do(ctx, client.B().Ping().Build()).Error()
		})
	}
	if in.nc != nil {
		nc := in.nc
		h.AddCheck("nats", func(context.Context) error {
			if !nc.IsConnected() {
				return fmt.Errorf("connection %s", nc.Status())
			}
			return nil
		})
	}
}

// Close releases the connections in reverse order of opening.
func (in *infra) Close() error {
	var errs []error
	for _, closeFn := range slices.Backward(in.closers) {
		errs = append(errs, closeFn())
	}
	in.closers = nil
	return errors.Join(errs...)
}

// openStores opens the calendar store and the dead-letter ledger. An empty
// dead-letter path keeps the ledger in memory.
func openStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (*calendar.SQLiteStore, deadletter.Store, func() error, error) {
	cal, err := calendar.OpenSQLite(ctx, cfg.Calendar.SQLitePath)
	if err != nil {
		return nil, nil, nil, err
	}
	dls, closeDLS, err := openDeadLetters(ctx, cfg, logger)
	if err != nil {
		_ = cal.Close()
		return nil, nil, nil, err
	}
	return cal, dls, func() error { return errors.Join(closeDLS(), cal.Close()) }, nil
}

func openDeadLetters(ctx context.Context, cfg config.Config, logger *slog.Logger) (deadletter.Store, func() error, error) {
	if cfg.DeadLetters.SQLitePath == "" {
		logger.Warn("No dead-letter database configured, failed results are kept in memory only")
		return deadletter.NewMemoryStore(), func() error { return nil }, nil
	}
	store, err := deadletter.OpenSQLite(ctx, cfg.DeadLetters.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

// readyServer is implemented by the HTTP and metrics servers.
type readyServer interface {
	StartWithReadySignal(ready chan<- struct{}) error
	Addr() string
}

// startServer runs srv in the background and waits until it listens.
// The returned channel reports a later serve error.
func startServer(name string, srv readyServer, logger *slog.Logger) (<-chan error, error) {
	ready := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		if err := srv.StartWithReadySignal(ready); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ready:
		logger.Info("Server started", "server", name, "addr", srv.Addr())
		return errCh, nil
	case err := <-errCh:
		return nil, fmt.Errorf("%s server failed to start: %w", name, err)
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("%s server startup timed out", name)
	}
}

// newInstrumentation creates the telemetry provider and, when it exposes a
// Prometheus registry, the dedicated metrics server.
func newInstrumentation(ctx context.Context, cfg config.Config, logger *slog.Logger) (*instrumentation.Provider, *server.MetricsServer, error) {
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	if err := instrConfig.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid instrumentation configuration: %w", err)
	}

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	if !cfg.HTTP.MetricsEnabled || !provider.Enabled() || !provider.ServesPrometheus() {
		return provider, nil, nil
	}

	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    cfg.HTTP.MetricsAddr,
		Enabled:                 true,
		InstrumentationProvider: provider,
		Path:                    instrConfig.PrometheusEndpoint,
	})
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, nil, fmt.Errorf("failed to create metrics server: %w", err)
	}
	if _, err := startServer("metrics", metricsServer, logger); err != nil {
		_ = provider.Shutdown(ctx)
		return nil, nil, err
	}
	return provider, metricsServer, nil
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdownServers stops the given servers within DefaultShutdownTimeout.
func shutdownServers(logger *slog.Logger, servers ...shutdowner) {
	ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Error during server shutdown", logging.Err(err))
		}
	}
}
