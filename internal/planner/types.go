package planner

import (
	"encoding/json"
	"time"

	"github.com/teemow/meetassist/internal/calendar"
)

// Timeslot is one schedulable slot offered to the optimizer, in the host's
// wall clock.
type Timeslot struct {
	DayOfWeek string `json:"dayOfWeek"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	HostID    string `json:"hostId"`
	// MonthDay is "--MM-DD".
	MonthDay string `json:"monthDay"`
}

// WorkTime is a user's working hours on one weekday.
type WorkTime struct {
	DayOfWeek string `json:"dayOfWeek"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	UserID    string `json:"userId"`
	HostID    string `json:"hostId"`
}

// User is a participant as described to the optimizer.
type User struct {
	ID                  string     `json:"id"`
	HostID              string     `json:"hostId"`
	MaxWorkLoadPercent  int        `json:"maxWorkLoadPercent"`
	BackToBackMeetings  bool       `json:"backToBackMeetings"`
	MaxNumberOfMeetings int        `json:"maxNumberOfMeetings"`
	MinNumberOfBreaks   int        `json:"minNumberOfBreaks"`
	WorkTimes           []WorkTime `json:"workTimes,omitempty"`
}

// EventPart is a fragment of a logical event. EventID names the logical
// event, GroupID the set of placements that competed for the same
// resource.
type EventPart struct {
	ID                string    `json:"id,omitempty"`
	GroupID           string    `json:"groupId"`
	EventID           string    `json:"eventId"`
	Part              int       `json:"part"`
	LastPart          int       `json:"lastPart"`
	StartDate         time.Time `json:"startDate"`
	EndDate           time.Time `json:"endDate"`
	UserID            string    `json:"userId"`
	HostID            string    `json:"hostId"`
	MeetingID         string    `json:"meetingId,omitempty"`
	Priority          int       `json:"priority,omitempty"`
	IsPreEvent        bool      `json:"isPreEvent,omitempty"`
	IsPostEvent       bool      `json:"isPostEvent,omitempty"`
	ForEventID        string    `json:"forEventId,omitempty"`
	Modifiable        bool      `json:"modifiable,omitempty"`
	IsMeeting         bool      `json:"isMeeting,omitempty"`
	IsExternalMeeting bool      `json:"isExternalMeeting,omitempty"`
	Timeslot          *Timeslot `json:"timeslot,omitempty"`

	// RecurringEventID is filled in from the live or old event snapshot;
	// the optimizer does not echo it.
	RecurringEventID string `json:"recurringEventId,omitempty"`
}

// PlannerBodyResponse is the optimizer's answer.
type PlannerBodyResponse struct {
	TimeslotList  []Timeslot  `json:"timeslotList,omitempty"`
	UserList      []User      `json:"userList"`
	EventPartList []EventPart `json:"eventPartList"`
}

// PlanningRequest is sent to the optimizer.
type PlanningRequest struct {
	SingletonID string      `json:"singletonId"`
	HostID      string      `json:"hostId"`
	Timeslots   []Timeslot  `json:"timeslots"`
	UserList    []User      `json:"userList"`
	EventParts  []EventPart `json:"eventParts"`
	// FileKey references the stored context payload.
	FileKey string `json:"fileKey"`
	// Delay is how long the optimizer may spend, in milliseconds.
	Delay       int64  `json:"delay"`
	CallbackURL string `json:"callBackUrl"`
}

// PostProcessQueueBody is the full payload of one reconciliation unit.
type PostProcessQueueBody struct {
	FileKey      string `json:"fileKey,omitempty"`
	HostID       string `json:"hostId"`
	SingletonID  string `json:"singletonId,omitempty"`
	Score        string `json:"score,omitempty"`
	HostTimezone string `json:"hostTimezone"`

	PlannerBodyResponse

	AllEvents          []calendar.Event             `json:"allEvents"`
	OldEvents          []calendar.Event             `json:"oldEvents,omitempty"`
	OldAttendeeEvents  []calendar.Event             `json:"oldAttendeeEvents,omitempty"`
	NewHostBufferTimes []calendar.BufferTimes       `json:"newHostBufferTimes,omitempty"`
	NewHostReminders   []calendar.RemindersForEvent `json:"newHostReminders,omitempty"`
	Breaks             []calendar.Event             `json:"breaks,omitempty"`

	IsReplan                bool   `json:"isReplan,omitempty"`
	OriginalExternalEventID string `json:"originalExternalEventId,omitempty"`
	OriginalCalendarID      string `json:"originalCalendarId,omitempty"`
}

// UnmarshalJSON accepts originalGoogleEventId as an alias of
// originalExternalEventId.
func (b *PostProcessQueueBody) UnmarshalJSON(data []byte) error {
	type plain PostProcessQueueBody
	aux := struct {
		*plain
		OriginalGoogleEventID string `json:"originalGoogleEventId"`
	}{plain: (*plain)(b)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if b.OriginalExternalEventID == "" {
		b.OriginalExternalEventID = aux.OriginalGoogleEventID
	}
	return nil
}

// Replan returns the external event a replan must update in place, or nil.
func (b *PostProcessQueueBody) Replan() *calendar.ExternalRef {
	if !b.IsReplan || b.OriginalExternalEventID == "" {
		return nil
	}
	return &calendar.ExternalRef{
		ExternalEventID: b.OriginalExternalEventID,
		CalendarID:      b.OriginalCalendarID,
	}
}

// DecodePostProcessQueueBody parses and validates a stored payload.
func DecodePostProcessQueueBody(data []byte) (*PostProcessQueueBody, error) {
	var body PostProcessQueueBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, &ValidationError{Field: "body", Err: err}
	}
	if err := body.Validate(); err != nil {
		return nil, err
	}
	return &body, nil
}
