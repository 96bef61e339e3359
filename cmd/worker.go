package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/meetassist/internal/config"
	"github.com/teemow/meetassist/internal/ingest"
	"github.com/teemow/meetassist/internal/logging"
	"github.com/teemow/meetassist/internal/planner"
	"github.com/teemow/meetassist/internal/reconcile"
	"github.com/teemow/meetassist/internal/server"
)

func newWorkerCmd() *cobra.Command {
	var (
		transport string
		ackPolicy string
		httpAddr  string
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Reconcile planning results from the queue into the calendar store",
		Long: `Start the queue worker. Every queue message names a stored planning
result; the worker fetches and deletes it, validates it and applies the
planned placements to the calendar store.

The worker also serves:
  - POST /planner/callback: optimizer answers, merged and queued for the worker
  - /healthz, /readyz: Kubernetes probes (valkey and NATS connectivity)
  - /metrics on the dedicated metrics address

Transports:
  - valkey: point-to-point list, one logical consumer (default)
  - jetstream: partitioned subjects, one ordered consumer per partition
  - memory: in-process queue for local testing

Ack policies:
  - ack-before-process: the message is acknowledged on receipt (default)
  - ack-after-success: acknowledged only after reconciliation succeeded`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if transport != "" {
				cfg.Transport = transport
			}
			if ackPolicy != "" {
				cfg.Worker.AckPolicy = ackPolicy
			}
			if httpAddr != "" {
				cfg.HTTP.Addr = httpAddr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runWorker(cfg)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "", "Queue transport: valkey, jetstream or memory. Can also use MEETASSIST_TRANSPORT env var.")
	cmd.Flags().StringVar(&ackPolicy, "ack-policy", "", "Acknowledgement policy: ack-before-process or ack-after-success. Can also use MEETASSIST_ACK_POLICY env var.")
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "Address of the callback and health server (default: :8080). Can also use MEETASSIST_HTTP_ADDR env var.")

	return cmd
}

func runWorker(cfg config.Config) error {
	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := newLogger(cfg)

	provider, metricsServer, err := newInstrumentation(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := provider.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Error("Error during instrumentation shutdown", logging.Err(err))
		}
	}()
	metrics := provider.Metrics()

	in, err := openInfra(ctx, cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := in.Close(); err != nil {
			logger.Error("Error closing connections", logging.Err(err))
		}
	}()

	cal, deadLetters, closeStores, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStores(); err != nil {
			logger.Error("Error closing stores", logging.Err(err))
		}
	}()

	reconciler := reconcile.New(cal, cfg.Reconcile.Reconciler(), metrics, logger)
	worker := ingest.NewWorker(in.blobs, reconciler, deadLetters, cfg.Worker.Ingest(), metrics, logger)

	health := server.NewHealthChecker(nil)
	health.SetReady(false)
	in.registerChecks(health)

	httpServer := server.NewHTTPServer(server.HTTPServerConfig{
		Addr:     cfg.HTTP.Addr,
		Health:   health,
		Callback: server.NewCallbackHandler(planner.NewFinalizer(in.blobs, in.publisher, logger), logger),
		Metrics:  metrics,
		Logger:   logger,
	})
	httpErr, err := startServer("http", httpServer, logger)
	if err != nil {
		return err
	}
	servers := []shutdowner{httpServer}
	if metricsServer != nil {
		servers = append(servers, metricsServer)
	}
	defer shutdownServers(logger, servers...)

	consumers, err := in.consumers(ctx)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range consumers {
			if err := c.Close(); err != nil {
				logger.Warn("Error closing consumer", logging.Err(err))
			}
		}
	}()

	logger.Info("Worker started",
		"transport", cfg.Transport,
		"partitions", len(consumers),
		"ack_policy", string(worker.Policy()),
		"blob_backend", cfg.Blob.Backend)
	health.SetReady(true)

	runErr := make(chan error, 1)
	go func() {
		if cfg.Transport == config.TransportJetStream {
			runErr <- worker.RunPartitions(ctx, consumers)
			return
		}
		runErr <- worker.Run(ctx, consumers[0])
	}()

	select {
	case err := <-runErr:
		health.SetReady(false)
		if err != nil {
			return fmt.Errorf("worker stopped: %w", err)
		}
	case err, ok := <-httpErr:
		health.SetReady(false)
		cancel()
		<-runErr
		if ok && err != nil {
			return fmt.Errorf("http server stopped: %w", err)
		}
	}
	logger.Info("Worker stopped")
	return nil
}
