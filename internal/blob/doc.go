// Package blob stores the single-use planning payloads referenced by queue
// messages.
//
// A payload is written once under its file key, read once by the ingest
// worker and then deleted. Reading a key that was deleted, or never
// written, fails with ErrNotFound; a store never returns empty data in its
// place.
//
// Backends:
//
//   - MemoryStore for tests and single-process runs
//   - ValkeyStore on a Valkey (Redis protocol) server
//   - ObjectStore on a NATS JetStream object store bucket
//
// Compressed and Instrumented wrap any backend.
package blob
