package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/meetassist/internal/config"
	"github.com/teemow/meetassist/internal/logging"
	"github.com/teemow/meetassist/internal/server"
	"github.com/teemow/meetassist/internal/tools/scheduling_tools"
)

func newServeCmd() *cobra.Command {
	var (
		transport string
		httpAddr  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server to provide scheduling
tools for AI assistants: slot finding, recurrence expansion and the
dead-letter listing.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport on /mcp`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if httpAddr != "" {
				cfg.HTTP.Addr = httpAddr
			}
			return runServe(cfg, transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP server address (for streamable-http transport, default: :8080)")

	return cmd
}

func runServe(cfg config.Config, transport string) error {
	if transport != "stdio" && transport != "streamable-http" {
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", transport)
	}

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := newLogger(cfg)

	// The stdio transport owns stdout, so it gets no metrics listener.
	if transport == "stdio" {
		cfg.HTTP.MetricsEnabled = false
	}
	provider, metricsServer, err := newInstrumentation(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := provider.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Error("Error during instrumentation shutdown", logging.Err(err))
		}
	}()

	deadLetters, closeDeadLetters, err := openDeadLetters(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeDeadLetters() }()

	serverContext := server.NewServerContext(ctx,
		server.WithDeadLetters(deadLetters),
		server.WithLogger(logger),
	)
	if provider.Enabled() {
		serverContext.SetMetrics(provider.Metrics())
	}
	defer func() { _ = serverContext.Shutdown() }()

	mcpSrv, err := newMCPServer(serverContext)
	if err != nil {
		return err
	}

	if transport == "stdio" {
		return runStdioServer(mcpSrv)
	}

	servers := []shutdowner{}
	if metricsServer != nil {
		servers = append(servers, metricsServer)
	}
	return runStreamableHTTPServer(ctx, cfg, mcpSrv, serverContext, logger, servers)
}

// newMCPServer creates the MCP server with every scheduling tool registered.
func newMCPServer(sc *server.ServerContext) (*mcpserver.MCPServer, error) {
	mcpSrv := mcpserver.NewMCPServer("meetassist", version,
		mcpserver.WithToolCapabilities(true),
	)
	if err := scheduling_tools.RegisterSchedulingTools(mcpSrv, sc); err != nil {
		return nil, fmt.Errorf("failed to register scheduling tools: %w", err)
	}
	return mcpSrv, nil
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runStreamableHTTPServer(ctx context.Context, cfg config.Config, mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, logger *slog.Logger, servers []shutdowner) error {
	httpServer := server.NewHTTPServer(server.HTTPServerConfig{
		Addr:      cfg.HTTP.Addr,
		Health:    server.NewHealthChecker(sc),
		MCPServer: mcpSrv,
		Metrics:   sc.Metrics(),
		Logger:    logger,
	})
	serverErr, err := startServer("mcp", httpServer, logger)
	if err != nil {
		return err
	}
	servers = append([]shutdowner{httpServer}, servers...)

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping HTTP server")
		shutdownServers(logger, servers...)
		return nil
	case err, ok := <-serverErr:
		shutdownServers(logger, servers...)
		if ok && err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	}
}
