package planner

import (
	"errors"
	"fmt"
	"time"
)

// ErrValidation matches every *ValidationError with errors.Is.
var ErrValidation = errors.New("invalid planning payload")

// Reasons a payload is rejected.
var (
	ErrNoEventParts    = errors.New("event part list is empty")
	ErrNoLiveEvents    = errors.New("live event list is empty")
	ErrNoUsers         = errors.New("planner response has no users")
	ErrNoHostTimezone  = errors.New("host timezone is missing")
	ErrBadHostTimezone = errors.New("host timezone is unknown")
)

// ValidationError rejects a payload. It is never retried.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Validate checks the fields the reconciler cannot work without.
func (b *PostProcessQueueBody) Validate() error {
	switch {
	case len(b.EventPartList) == 0:
		return &ValidationError{Field: "eventPartList", Err: ErrNoEventParts}
	case len(b.AllEvents) == 0:
		return &ValidationError{Field: "allEvents", Err: ErrNoLiveEvents}
	case len(b.UserList) == 0:
		return &ValidationError{Field: "userList", Err: ErrNoUsers}
	case b.HostTimezone == "":
		return &ValidationError{Field: "hostTimezone", Err: ErrNoHostTimezone}
	}
	if _, err := time.LoadLocation(b.HostTimezone); err != nil {
		return &ValidationError{Field: "hostTimezone", Err: fmt.Errorf("%w: %s", ErrBadHostTimezone, b.HostTimezone)}
	}
	return nil
}
