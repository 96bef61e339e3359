package ingest

import (
	"errors"

	"github.com/teemow/meetassist/internal/blob"
	"github.com/teemow/meetassist/internal/planner"
	"github.com/teemow/meetassist/internal/reconcile"
)

var (
	// ErrTransientFetch is an I/O failure while the blob still exists.
	// The transport may redeliver the message.
	ErrTransientFetch = errors.New("transient fetch failure")

	// ErrTerminalLoss is a failure after the message and blob were
	// released. The pipeline cannot recover it; the payload goes to the
	// dead-letter ledger.
	ErrTerminalLoss = errors.New("terminal loss")
)

// Error classes used for metrics, logs and dead letters.
const (
	ClassValidation   = "validation"
	ClassTransient    = "transient_fetch"
	ClassTerminalLoss = "terminal_loss"
	ClassMissing      = "missing_payload"
	ClassReconcile    = "reconcile"
	ClassAck          = "ack"
	ClassInternal     = "internal"
)

// Classify maps an error to its class. A nil error has no class.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTerminalLoss):
		return ClassTerminalLoss
	case errors.Is(err, planner.ErrValidation):
		return ClassValidation
	case errors.Is(err, blob.ErrNotFound):
		return ClassMissing
	case errors.Is(err, ErrTransientFetch):
		return ClassTransient
	}
	var rErr *reconcile.ReconciliationError
	if errors.As(err, &rErr) {
		return ClassReconcile
	}
	return ClassInternal
}
