// Package queue carries planning-result notifications between the planner
// callback and the ingest worker.
//
// A notification body is only a blob reference, {"fileKey": "..."}. Two
// transports are supported:
//
//   - point-to-point: a Valkey list. Popping a message deletes it; the
//     reliable mode moves it to a processing list until it is acked.
//   - partitioned log: NATS JetStream, one subject per partition, one
//     durable consumer per partition.
//
// MemoryQueue implements both Consumer and Publisher for tests.
package queue
