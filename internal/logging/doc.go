// Package logging provides structured logging utilities for meetassist.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Structured logging with slog (text or JSON handlers)
//   - Consistent attribute naming for blob keys, event ids and group ids
//   - PII sanitization (attendee email anonymization)
//   - Logger adapter interface for flexibility
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "ingest.handle")
//	logger.Info("payload fetched",
//	    logging.FileKey(key),
//	    logging.Status(logging.StatusSuccess))
//
// Every failure that may need a manual replay is logged with the blob key and,
// where known, the event and group ids.
package logging
