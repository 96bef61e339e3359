// Package server hosts the HTTP surface of meetassist.
//
// # Key Components
//
// ServerContext carries the shared dependencies of the MCP tools: the
// recurrence expander, the dead-letter ledger, metrics and the logger.
//
// HTTPServer mounts the planner callback (POST /planner/callback), the
// health endpoints and, when an MCP server is supplied, the streamable
// HTTP transport on /mcp. Every request is traced with otelhttp and
// counted in the HTTP request metrics.
//
// HealthChecker answers Kubernetes probes. Readiness runs the named
// dependency checks registered with AddCheck (valkey ping, NATS
// connection state) in addition to the ready flag and shutdown state.
//
// MetricsServer exposes the Prometheus registry on a dedicated port.
package server
