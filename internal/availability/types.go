package availability

import (
	"sort"
	"time"

	"github.com/teemow/meetassist/internal/calendar"
	"github.com/teemow/meetassist/internal/meeting"
)

// Default working hours when a host has no preference for a weekday.
var (
	DefaultWorkStart = meeting.ClockTime{Hour: 8}
	DefaultWorkEnd   = meeting.ClockTime{Hour: 20}
)

// WorkTime is a time of day on an ISO weekday (1 = Monday .. 7 = Sunday).
type WorkTime struct {
	Day     int `json:"day" yaml:"day"`
	Hour    int `json:"hour" yaml:"hour"`
	Minutes int `json:"minutes" yaml:"minutes"`
}

// HostPreferences are the host's working hours per weekday.
type HostPreferences struct {
	StartTimes []WorkTime `json:"startTimes" yaml:"startTimes"`
	EndTimes   []WorkTime `json:"endTimes" yaml:"endTimes"`
}

// UniformHours returns preferences with the same hours on every weekday.
func UniformHours(start, end meeting.ClockTime) HostPreferences {
	var p HostPreferences
	for day := 1; day <= 7; day++ {
		p.StartTimes = append(p.StartTimes, WorkTime{Day: day, Hour: start.Hour, Minutes: start.Minute})
		p.EndTimes = append(p.EndTimes, WorkTime{Day: day, Hour: end.Hour, Minutes: end.Minute})
	}
	return p
}

// WorkHours returns the working hours for an ISO weekday.
func (p HostPreferences) WorkHours(isoDay int) (start, end meeting.ClockTime) {
	start, end = DefaultWorkStart, DefaultWorkEnd
	for _, w := range p.StartTimes {
		if w.Day == isoDay {
			start = meeting.ClockTime{Hour: w.Hour, Minute: w.Minutes}
			break
		}
	}
	for _, w := range p.EndTimes {
		if w.Day == isoDay {
			end = meeting.ClockTime{Hour: w.Hour, Minute: w.Minutes}
			break
		}
	}
	return start, end
}

// BusyInterval is a pre-existing commitment. Only opaque intervals block.
type BusyInterval struct {
	Start        time.Time             `json:"startDate"`
	End          time.Time             `json:"endDate"`
	Transparency calendar.Transparency `json:"transparency,omitempty"`
}

// Blocks reports whether the interval excludes overlapping slots.
func (b BusyInterval) Blocks() bool {
	return b.Transparency != calendar.Transparent
}

// BusyFromEvents converts calendar events into busy intervals.
func BusyFromEvents(events []calendar.Event) []BusyInterval {
	out := make([]BusyInterval, 0, len(events))
	for _, ev := range events {
		t := calendar.Opaque
		if !ev.Blocks() {
			t = calendar.Transparent
		}
		out = append(out, BusyInterval{Start: ev.StartDate, End: ev.EndDate, Transparency: t})
	}
	return out
}

// Slot is one candidate placement of exactly the requested duration.
// Date is the host calendar day the slot belongs to.
type Slot struct {
	Date  string    `json:"date"`
	Start time.Time `json:"startDate"`
	End   time.Time `json:"endDate"`
}

// Result is the output handed to the optimizer.
type Result struct {
	AvailableSlots       []Slot            `json:"availableSlots"`
	AvailableSlotsByDate map[string][]Slot `json:"availableSlotsByDate"`
}

// Dates returns the keys of AvailableSlotsByDate in ascending order.
func (r Result) Dates() []string {
	dates := make([]string, 0, len(r.AvailableSlotsByDate))
	for d := range r.AvailableSlotsByDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// Flatten concatenates AvailableSlotsByDate in date order.
func (r Result) Flatten() []Slot {
	out := make([]Slot, 0, len(r.AvailableSlots))
	for _, d := range r.Dates() {
		out = append(out, r.AvailableSlotsByDate[d]...)
	}
	return out
}
