package calendar

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when an event does not exist in the store.
var ErrNotFound = errors.New("calendar: event not found")

// Store is the calendar store the reconciler writes through.
type Store interface {
	// GetEvent reads one event by id.
	GetEvent(ctx context.Context, id string) (*Event, error)
	// ApplyEventChange writes every part of one logical event's change in a
	// single unit. On error nothing is written.
	ApplyEventChange(ctx context.Context, change EventChange) error
	// CreateEvent writes a standalone event (buffer or break), replacing an
	// event with the same id.
	CreateEvent(ctx context.Context, ev Event) error
}

// EventLister is implemented by stores that can list a user's events.
type EventLister interface {
	ListEvents(ctx context.Context, userID string, start, end time.Time) ([]Event, error)
}

// ExternalRef identifies an event already published to an external calendar.
type ExternalRef struct {
	ExternalEventID string
	CalendarID      string
}

// EventPatch is a field-level update. Nil fields are left untouched.
type EventPatch struct {
	StartDate        *time.Time
	EndDate          *time.Time
	Timezone         *string
	RecurringEventID *string
	PreEventID       *string
	PostEventID      *string
}

// Empty reports whether the patch changes nothing.
func (p EventPatch) Empty() bool {
	return p.StartDate == nil && p.EndDate == nil && p.Timezone == nil &&
		p.RecurringEventID == nil && p.PreEventID == nil && p.PostEventID == nil
}

// ApplyTo returns ev with the patch applied.
func (p EventPatch) ApplyTo(ev Event) Event {
	if p.StartDate != nil {
		ev.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		ev.EndDate = *p.EndDate
	}
	if p.Timezone != nil {
		ev.Timezone = *p.Timezone
	}
	if p.RecurringEventID != nil {
		ev.RecurringEventID = *p.RecurringEventID
	}
	if p.PreEventID != nil {
		ev.PreEventID = *p.PreEventID
	}
	if p.PostEventID != nil {
		ev.PostEventID = *p.PostEventID
	}
	return ev
}

// EventChange is everything the reconciler writes for one logical event.
//
// Exactly one of three targets is used: Create inserts a new event, Target
// patches the event published under an external id (replan), otherwise the
// patch is applied to EventID.
type EventChange struct {
	EventID string
	Patch   EventPatch
	Target  *ExternalRef
	Create  *Event

	// Buffers are upserted alongside the event.
	Buffers []Event

	// ReplaceReminders drops the event's reminders and writes Reminders.
	ReplaceReminders bool
	Reminders        []Reminder
}

// Empty reports whether applying the change would write nothing.
func (c EventChange) Empty() bool {
	return c.Create == nil && c.Patch.Empty() && len(c.Buffers) == 0 && !c.ReplaceReminders
}

func (c EventChange) validate() error {
	if c.Create == nil && c.Target == nil && c.EventID == "" {
		return errors.New("calendar: change has no target event")
	}
	if c.Create != nil && c.Create.ID == "" {
		return errors.New("calendar: created event has no id")
	}
	if c.Target != nil && c.Target.ExternalEventID == "" {
		return errors.New("calendar: external target has no event id")
	}
	return nil
}
