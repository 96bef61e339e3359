// Package meeting holds the meeting-assist data model: a schedulable
// multi-attendee request, its attendees and their preferred time ranges.
package meeting

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Frequency is the recurrence frequency of a meeting assist.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

// Status of a meeting assist.
type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusCancelled Status = "cancelled"
)

// Recurrence describes how a meeting assist repeats.
type Recurrence struct {
	Frequency Frequency `json:"frequency"`
	Interval  int       `json:"interval"`
	Until     time.Time `json:"until"`
}

// SeriesLink ties an occurrence back to the meeting assist it was expanded from.
type SeriesLink struct {
	OriginalMeetingID string `json:"originalMeetingId"`
	// Occurrence is the index in the series, the template being 0.
	Occurrence int `json:"occurrence"`
	// DayShift is the number of civil days between the template window start
	// and this occurrence's window start, in the meeting's zone.
	DayShift int `json:"dayShift"`
}

// MeetingAssist is a meeting request prior to final placement.
type MeetingAssist struct {
	ID          string        `json:"id"`
	HostID      string        `json:"hostId"`
	UserID      string        `json:"userId"`
	Summary     string        `json:"summary,omitempty"`
	WindowStart time.Time     `json:"windowStartDate"`
	WindowEnd   time.Time     `json:"windowEndDate"`
	Timezone    string        `json:"timezone"`
	Duration    time.Duration `json:"duration"`
	Status      Status        `json:"status,omitempty"`
	Recurrence  *Recurrence   `json:"recurrence,omitempty"`
	Series      *SeriesLink   `json:"series,omitempty"`
}

// Recurring reports whether the assist carries a recurrence rule.
func (m MeetingAssist) Recurring() bool {
	return m.Recurrence != nil
}

// AccessToken gates a single external attendee's preference submission.
type AccessToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Valid reports whether the token can still be used at now.
func (t *AccessToken) Valid(now time.Time) bool {
	return t != nil && t.Token != "" && now.Before(t.ExpiresAt)
}

// Attendee is an invitee of a meeting assist.
type Attendee struct {
	ID          string       `json:"id"`
	MeetingID   string       `json:"meetingId"`
	HostID      string       `json:"hostId"`
	UserID      string       `json:"userId"`
	Name        string       `json:"name,omitempty"`
	Emails      []string     `json:"emails,omitempty"`
	Timezone    string       `json:"timezone,omitempty"`
	External    bool         `json:"externalAttendee,omitempty"`
	AccessToken *AccessToken `json:"accessToken,omitempty"`
}

// PrimaryEmail returns the first email address, or "".
func (a Attendee) PrimaryEmail() string {
	if len(a.Emails) == 0 {
		return ""
	}
	return a.Emails[0]
}

// PreferredTimeRange is an attendee's preferred slot inside the meeting
// window. It is either day-of-week relative (StartTime/EndTime wall clock,
// DayOfWeek 1..7 or 0 for any day) or absolute (StartAt/EndAt).
type PreferredTimeRange struct {
	ID         string     `json:"id"`
	MeetingID  string     `json:"meetingId"`
	AttendeeID string     `json:"attendeeId"`
	HostID     string     `json:"hostId"`
	DayOfWeek  int        `json:"dayOfWeek,omitempty"`
	StartTime  string     `json:"startTime,omitempty"`
	EndTime    string     `json:"endTime,omitempty"`
	StartAt    *time.Time `json:"startAt,omitempty"`
	EndAt      *time.Time `json:"endAt,omitempty"`
}

// Absolute reports whether the range is pinned to instants.
func (r PreferredTimeRange) Absolute() bool {
	return r.StartAt != nil && r.EndAt != nil
}

// ClockTime is a wall-clock time of day.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM" (24h). "24:00" is accepted as end of day.
func ParseClock(s string) (ClockTime, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return ClockTime{}, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	minute, err := strconv.Atoi(m)
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	if hour < 0 || hour > 24 || minute < 0 || minute > 59 || (hour == 24 && minute != 0) {
		return ClockTime{}, fmt.Errorf("time of day %q out of range", s)
	}
	return ClockTime{Hour: hour, Minute: minute}, nil
}

// String formats the time as "HH:MM".
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Minutes returns minutes since midnight.
func (c ClockTime) Minutes() int {
	return c.Hour*60 + c.Minute
}

// ISOWeekday converts a time.Weekday to ISO numbering (Monday=1 .. Sunday=7).
func ISOWeekday(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}
