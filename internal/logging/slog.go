package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"strings"
)

// Common log attribute keys for consistent naming across the codebase.
const (
	KeyOperation = "operation"
	KeyComponent = "component"
	KeyUserHash  = "user_hash"
	KeyDuration  = "duration"
	KeyStatus    = "status"
	KeyError     = "error"
	KeyTool      = "tool"
	KeyFileKey   = "file_key"
	KeyEventID   = "event_id"
	KeyGroupID   = "group_id"
	KeyHostID    = "host_id"
	KeyTransport = "transport"
	KeyPartition = "partition"
	KeyStage     = "stage"
)

// Status values. instrumentation imports this package, so they are
// declared here too.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Output formats accepted by New.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// New builds a slog.Logger writing to w in the given format.
// Unknown formats fall back to text.
func New(w io.Writer, format string, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, FormatJSON) {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// WithOperation returns a logger with the operation attribute set.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

// WithComponent returns a logger with the component attribute set.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String(KeyComponent, component))
}

// WithTool returns a logger with the tool attribute set.
func WithTool(logger *slog.Logger, tool string) *slog.Logger {
	return logger.With(slog.String(KeyTool, tool))
}

// Status returns a slog attribute for the status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// FileKey returns a slog attribute for a blob key.
func FileKey(key string) slog.Attr {
	return slog.String(KeyFileKey, key)
}

// EventID returns a slog attribute for a logical event id.
func EventID(id string) slog.Attr {
	return slog.String(KeyEventID, id)
}

// GroupID returns a slog attribute for a conflict group id.
func GroupID(id string) slog.Attr {
	return slog.String(KeyGroupID, id)
}

// HostID returns a slog attribute for the host user id.
func HostID(id string) slog.Attr {
	return slog.String(KeyHostID, id)
}

// Stage returns a slog attribute for a worker state machine stage.
func Stage(stage string) slog.Attr {
	return slog.String(KeyStage, stage)
}

// Err returns a slog attribute for an error. A nil err yields an empty
// group, which handlers omit.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeEmail returns a hashed representation of an email for logging purposes.
// This allows correlation of log entries without exposing attendee addresses.
func AnonymizeEmail(email string) string {
	if email == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return "user:" + hex.EncodeToString(hash[:8])
}

// UserHash returns a slog attribute with the anonymized user email.
//
// Usage:
//
//	logger.Info("attendee expanded", logging.UserHash(attendee.PrimaryEmail()))
func UserHash(email string) slog.Attr {
	return slog.String(KeyUserHash, AnonymizeEmail(email))
}
