package reconcile

import "fmt"

// ReconciliationError is a failed write for one logical event. The event
// is left unchanged; siblings are not affected.
type ReconciliationError struct {
	EventID string
	Err     error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconcile event %s: %v", e.EventID, e.Err)
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}
