// Package instrumentation provides OpenTelemetry instrumentation for the
// meetassist worker, planner callback and tool server.
//
// # Metrics
//
// Ingest worker:
//   - ingest_messages_total: queue messages by transport, partition, final state and error class
//   - ingest_message_duration_seconds: receipt to final state
//   - ingest_inflight_messages: messages currently in the state machine
//   - ingest_dead_letters_total: planning results written to the dead-letter ledger
//
// Storage and reconciliation:
//   - blob_operations_total / blob_operation_duration_seconds: by backend, operation, status
//   - reconcile_events_total: logical events by result (applied, skipped, failed, invalid)
//   - reconcile_duration_seconds: one planning result end to end
//
// Availability and tools:
//   - availability_computations_total / availability_slots_returned
//   - mcp_tool_invocations_total / mcp_tool_duration_seconds
//   - http_requests_total / http_request_duration_seconds: planner callback endpoint
//
// # Tracing
//
// Spans are created per queue message (ingest.<transport>.handle) with one
// event per state transition, per reconciliation, and per MCP tool call.
//
// # Configuration
//
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp, stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout, none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: meetassist)
//   - METRICS_DETAILED_LABELS: attach host ids to reconciliation metrics
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	provider.Metrics().RecordMessage(ctx, "valkey", -1, "succeeded", "", time.Since(start))
package instrumentation
