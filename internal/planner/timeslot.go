package planner

import (
	"fmt"
	"strings"
	"time"

	"github.com/teemow/meetassist/internal/availability"
	"github.com/teemow/meetassist/internal/meeting"
)

var dayNames = [...]string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY"}

// DayOfWeekName returns the optimizer's name for d, e.g. "MONDAY".
func DayOfWeekName(d time.Weekday) string {
	return dayNames[meeting.ISOWeekday(d)-1]
}

// MonthDay formats t as "--MM-DD".
func MonthDay(t time.Time) string {
	return fmt.Sprintf("--%02d-%02d", int(t.Month()), t.Day())
}

// TimeslotsFromSlots expresses availability slots on the host wall clock.
func TimeslotsFromSlots(hostID string, slots []availability.Slot, hostZone *time.Location) []Timeslot {
	out := make([]Timeslot, 0, len(slots))
	for _, s := range slots {
		start := s.Start.In(hostZone)
		end := s.End.In(hostZone)
		out = append(out, Timeslot{
			DayOfWeek: DayOfWeekName(start.Weekday()),
			StartTime: start.Format("15:04"),
			EndTime:   end.Format("15:04"),
			HostID:    hostID,
			MonthDay:  MonthDay(start),
		})
	}
	return out
}

// Date parses MonthDay.
func (t Timeslot) Date() (time.Month, int, error) {
	rest, ok := strings.CutPrefix(t.MonthDay, "--")
	if !ok {
		return 0, 0, fmt.Errorf("invalid monthDay %q: want --MM-DD", t.MonthDay)
	}
	d, err := time.Parse("01-02", rest)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid monthDay %q: %w", t.MonthDay, err)
	}
	return d.Month(), d.Day(), nil
}

// Start returns the slot start in year, on loc's wall clock.
func (t Timeslot) Start(year int, loc *time.Location) (time.Time, error) {
	return t.at(year, t.StartTime, loc)
}

// End returns the slot end in year, on loc's wall clock.
func (t Timeslot) End(year int, loc *time.Location) (time.Time, error) {
	return t.at(year, t.EndTime, loc)
}

func (t Timeslot) at(year int, clock string, loc *time.Location) (time.Time, error) {
	month, day, err := t.Date()
	if err != nil {
		return time.Time{}, err
	}
	c, err := meeting.ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(year, month, day, c.Hour, c.Minute, 0, 0, loc), nil
}
