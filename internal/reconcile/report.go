package reconcile

import (
	"errors"

	"github.com/teemow/meetassist/internal/instrumentation"
)

// Outcome is the result for one logical event. Result is one of the
// instrumentation.Result* values.
type Outcome struct {
	EventID string
	Result  string
	Err     error
	// Placement is set for applied and skipped events.
	Placement Placement
}

// Conflict is a placed meeting that overlaps an external attendee's
// existing event. Conflicts are reported, never blocking.
type Conflict struct {
	EventID         string
	AttendeeEventID string
	UserID          string
}

// Report summarizes one reconciliation unit.
type Report struct {
	Outcomes      []Outcome
	BreaksCreated int
	Conflicts     []Conflict
}

// Count returns the number of outcomes with result.
func (r Report) Count(result string) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Result == result {
			n++
		}
	}
	return n
}

// Outcome returns the outcome for eventID.
func (r Report) Outcome(eventID string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.EventID == eventID {
			return o, true
		}
	}
	return Outcome{}, false
}

// Err joins the errors of failed events.
func (r Report) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Result == instrumentation.ResultFailed && o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}
