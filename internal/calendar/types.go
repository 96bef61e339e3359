package calendar

import (
	"time"
)

// Transparency is the busy status of an event.
type Transparency string

const (
	// Opaque events block availability.
	Opaque Transparency = "opaque"
	// Transparent events never block availability.
	Transparent Transparency = "transparent"
)

// MethodCreate marks an event that exists only in the planning payload and
// has not been written to the store yet.
const MethodCreate = "create"

// Event is a calendar event as seen by the planner and the reconciler.
// Times are absolute instants; Timezone carries the zone id the event was
// authored in.
type Event struct {
	ID                string       `json:"id"`
	UserID            string       `json:"userId"`
	CalendarID        string       `json:"calendarId,omitempty"`
	ExternalEventID   string       `json:"externalEventId,omitempty"`
	Title             string       `json:"title,omitempty"`
	StartDate         time.Time    `json:"startDate"`
	EndDate           time.Time    `json:"endDate"`
	Timezone          string       `json:"timezone,omitempty"`
	AllDay            bool         `json:"allDay,omitempty"`
	Transparency      Transparency `json:"transparency,omitempty"`
	RecurringEventID  string       `json:"recurringEventId,omitempty"`
	MeetingID         string       `json:"meetingId,omitempty"`
	IsMeeting         bool         `json:"isMeeting,omitempty"`
	IsExternalMeeting bool         `json:"isExternalMeeting,omitempty"`
	IsPreEvent        bool         `json:"isPreEvent,omitempty"`
	IsPostEvent       bool         `json:"isPostEvent,omitempty"`
	IsBreak           bool         `json:"isBreak,omitempty"`
	ForEventID        string       `json:"forEventId,omitempty"`
	PreEventID        string       `json:"preEventId,omitempty"`
	PostEventID       string       `json:"postEventId,omitempty"`
	Modifiable        bool         `json:"modifiable,omitempty"`
	Priority          int          `json:"priority,omitempty"`
	Method            string       `json:"method,omitempty"`
	Deleted           bool         `json:"deleted,omitempty"`
	UpdatedAt         time.Time    `json:"updatedAt,omitempty"`
}

// Blocks reports whether the event makes its owner unavailable.
// Transparent, deleted and all-day events do not block.
func (e Event) Blocks() bool {
	return !e.Deleted && !e.AllDay && e.Transparency != Transparent
}

// Overlaps reports whether the event intersects [start, end).
func (e Event) Overlaps(start, end time.Time) bool {
	return e.StartDate.Before(end) && start.Before(e.EndDate)
}

// Reminder is a notification attached to an event, Minutes before its start.
type Reminder struct {
	ID           string    `json:"id"`
	EventID      string    `json:"eventId"`
	UserID       string    `json:"userId"`
	Minutes      int       `json:"minutes"`
	ReminderDate time.Time `json:"reminderDate,omitempty"`
	Timezone     string    `json:"timezone,omitempty"`
	UseDefault   bool      `json:"useDefault,omitempty"`
}

// RemindersForEvent is the reminder set that replaces an event's reminders.
type RemindersForEvent struct {
	EventID   string     `json:"eventId"`
	Reminders []Reminder `json:"reminders"`
}

// BufferTimes holds the blocks reserved before and after an event.
type BufferTimes struct {
	ForEventID  string `json:"forEventId,omitempty"`
	BeforeEvent *Event `json:"beforeEvent,omitempty"`
	AfterEvent  *Event `json:"afterEvent,omitempty"`
}

// EventID returns the id of the event the buffers belong to.
func (b BufferTimes) EventID() string {
	switch {
	case b.ForEventID != "":
		return b.ForEventID
	case b.BeforeEvent != nil && b.BeforeEvent.ForEventID != "":
		return b.BeforeEvent.ForEventID
	case b.AfterEvent != nil:
		return b.AfterEvent.ForEventID
	}
	return ""
}
