package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrMethod     = "method"
	attrPath       = "path"
	attrStatus     = "status"
	attrOperation  = "operation"
	attrBackend    = "backend"
	attrTransport  = "transport"
	attrPartition  = "partition"
	attrState      = "state"
	attrErrorClass = "error_class"
	attrResult     = "result"
	attrTool       = "tool"
	attrHost       = "host"
)

// Metrics provides methods for recording observability metrics.
type Metrics struct {
	// Planner callback HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Ingest worker metrics
	messagesTotal    metric.Int64Counter
	messageDuration  metric.Float64Histogram
	inflightMessages metric.Int64UpDownCounter
	deadLettersTotal metric.Int64Counter

	// Blob storage metrics
	blobOperationsTotal   metric.Int64Counter
	blobOperationDuration metric.Float64Histogram

	// Reconciliation metrics
	reconciledEventsTotal metric.Int64Counter
	reconcileDuration     metric.Float64Histogram

	// Availability metrics
	slotComputationsTotal metric.Int64Counter
	slotsReturned         metric.Int64Histogram

	// MCP Tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The detailedLabels parameter controls whether high-cardinality labels are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.messagesTotal, err = meter.Int64Counter(
		"ingest_messages_total",
		metric.WithDescription("Total number of queue messages handled, by final state"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest_messages_total counter: %w", err)
	}

	m.messageDuration, err = meter.Float64Histogram(
		"ingest_message_duration_seconds",
		metric.WithDescription("Time from receipt to final state of a queue message"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest_message_duration_seconds histogram: %w", err)
	}

	m.inflightMessages, err = meter.Int64UpDownCounter(
		"ingest_inflight_messages",
		metric.WithDescription("Number of queue messages currently being processed"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest_inflight_messages gauge: %w", err)
	}

	m.deadLettersTotal, err = meter.Int64Counter(
		"ingest_dead_letters_total",
		metric.WithDescription("Total number of planning results written to the dead-letter ledger"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest_dead_letters_total counter: %w", err)
	}

	m.blobOperationsTotal, err = meter.Int64Counter(
		"blob_operations_total",
		metric.WithDescription("Total number of blob storage operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob_operations_total counter: %w", err)
	}

	m.blobOperationDuration, err = meter.Float64Histogram(
		"blob_operation_duration_seconds",
		metric.WithDescription("Blob storage operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob_operation_duration_seconds histogram: %w", err)
	}

	m.reconciledEventsTotal, err = meter.Int64Counter(
		"reconcile_events_total",
		metric.WithDescription("Total number of logical events reconciled, by result"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reconcile_events_total counter: %w", err)
	}

	m.reconcileDuration, err = meter.Float64Histogram(
		"reconcile_duration_seconds",
		metric.WithDescription("Duration of reconciling one planning result"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reconcile_duration_seconds histogram: %w", err)
	}

	m.slotComputationsTotal, err = meter.Int64Counter(
		"availability_computations_total",
		metric.WithDescription("Total number of slot window computations"),
		metric.WithUnit("{computation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create availability_computations_total counter: %w", err)
	}

	m.slotsReturned, err = meter.Int64Histogram(
		"availability_slots_returned",
		metric.WithDescription("Number of slots returned per window computation"),
		metric.WithUnit("{slot}"),
		metric.WithExplicitBucketBoundaries(0, 1, 5, 10, 25, 50, 100, 250, 500, 1000),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create availability_slots_returned histogram: %w", err)
	}

	m.toolInvocationsTotal, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordMessage records one queue message reaching a final state.
//
// Parameters:
//   - transport: transport kind ("valkey", "jetstream", "memory")
//   - partition: partition index, or -1 for unpartitioned transports
//   - state: final state ("succeeded" or "failed")
//   - errorClass: error class for failures ("validation", "transient_fetch", ...), empty on success
//   - duration: time from receipt to the final state
func (m *Metrics) RecordMessage(ctx context.Context, transport string, partition int, state, errorClass string, duration time.Duration) {
	if m == nil || m.messagesTotal == nil || m.messageDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTransport, transport),
		attribute.String(attrPartition, PartitionLabel(partition)),
		attribute.String(attrState, state),
	}
	if errorClass != "" {
		attrs = append(attrs, attribute.String(attrErrorClass, errorClass))
	}

	m.messagesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.messageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// IncrementInflight increments the in-flight message gauge.
func (m *Metrics) IncrementInflight(ctx context.Context, transport string) {
	if m == nil || m.inflightMessages == nil {
		return // Instrumentation not initialized
	}
	m.inflightMessages.Add(ctx, 1, metric.WithAttributes(attribute.String(attrTransport, transport)))
}

// DecrementInflight decrements the in-flight message gauge.
func (m *Metrics) DecrementInflight(ctx context.Context, transport string) {
	if m == nil || m.inflightMessages == nil {
		return // Instrumentation not initialized
	}
	m.inflightMessages.Add(ctx, -1, metric.WithAttributes(attribute.String(attrTransport, transport)))
}

// RecordDeadLetter records a planning result written to the dead-letter ledger.
func (m *Metrics) RecordDeadLetter(ctx context.Context, errorClass string) {
	if m == nil || m.deadLettersTotal == nil {
		return // Instrumentation not initialized
	}
	m.deadLettersTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrErrorClass, errorClass)))
}

// RecordBlobOperation records a blob storage operation.
//
// Parameters:
//   - backend: storage backend ("valkey", "objectstore", "memory")
//   - operation: OperationGet, OperationPut or OperationDelete
//   - status: StatusSuccess or StatusError
//   - duration: time taken for the operation
func (m *Metrics) RecordBlobOperation(ctx context.Context, backend, operation, status string, duration time.Duration) {
	if m == nil || m.blobOperationsTotal == nil || m.blobOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrBackend, backend),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.blobOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.blobOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordReconciledEvents records per-event reconciliation results for one
// planning result. The host id is only attached when detailed labels are on.
func (m *Metrics) RecordReconciledEvents(ctx context.Context, hostID string, applied, skipped, failed, invalid int, duration time.Duration) {
	if m == nil || m.reconciledEventsTotal == nil || m.reconcileDuration == nil {
		return // Instrumentation not initialized
	}

	base := []attribute.KeyValue{}
	if m.detailedLabels && hostID != "" {
		base = append(base, attribute.String(attrHost, hostID))
	}

	add := func(result string, n int) {
		if n == 0 {
			return
		}
		attrs := append([]attribute.KeyValue{attribute.String(attrResult, result)}, base...)
		m.reconciledEventsTotal.Add(ctx, int64(n), metric.WithAttributes(attrs...))
	}
	add(ResultApplied, applied)
	add(ResultSkipped, skipped)
	add(ResultFailed, failed)
	add(ResultInvalid, invalid)

	status := StatusSuccess
	if failed > 0 {
		status = StatusError
	}
	m.reconcileDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(attrStatus, status)))
}

// RecordSlotComputation records one availability window computation.
func (m *Metrics) RecordSlotComputation(ctx context.Context, status string, slots int) {
	if m == nil || m.slotComputationsTotal == nil || m.slotsReturned == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{attribute.String(attrStatus, status)}
	m.slotComputationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	if status == StatusSuccess {
		m.slotsReturned.Record(ctx, int64(slots))
	}
}

// RecordToolInvocation records an MCP tool invocation with tool name, status, and duration.
//
// Parameters:
//   - toolName: Name of the MCP tool (e.g., "availability_find_slots")
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the tool execution
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
