package recurrence

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/meetassist/internal/meeting"
)

// Expander turns a recurring meeting assist into per-occurrence clones.
// It holds no mutable state and is safe for concurrent use.
type Expander struct {
	engine Engine
	newID  func() string
}

// NewExpander returns an Expander on engine. A nil engine selects RRuleEngine.
func NewExpander(engine Engine) *Expander {
	if engine == nil {
		engine = RRuleEngine{}
	}
	return &Expander{engine: engine, newID: uuid.NewString}
}

// OccurrenceDates returns the ordered occurrence starts of a window
// repeating every interval units of freq, strictly before until. The first
// element is windowStart itself.
func (x *Expander) OccurrenceDates(windowStart, windowEnd time.Time, freq meeting.Frequency, interval int, until time.Time) ([]time.Time, error) {
	if windowEnd.Before(windowStart) {
		return nil, &ConfigError{Field: "window", Value: windowEnd.Format(time.RFC3339), Reason: "ends before it starts"}
	}
	return x.engine.Expand(Rule{
		Frequency: freq,
		Interval:  interval,
		Start:     windowStart,
		Until:     until,
	})
}

// ExpandMeetingAssist clones template once per occurrence after the first.
// Each clone gets a fresh id, a window shifted by the occurrence's civil day
// delta in the meeting zone and a Series link back to template. A template
// that does not recur, or is itself an occurrence, yields nil.
func (x *Expander) ExpandMeetingAssist(template meeting.MeetingAssist) ([]meeting.MeetingAssist, error) {
	if template.Recurrence == nil || template.Series != nil {
		return nil, nil
	}
	loc, err := zoneOf(template.Timezone, template.WindowStart)
	if err != nil {
		return nil, err
	}

	start := template.WindowStart.In(loc)
	end := template.WindowEnd.In(loc)
	rec := template.Recurrence

	starts, err := x.OccurrenceDates(start, end, rec.Frequency, rec.Interval, rec.Until)
	if err != nil {
		return nil, err
	}
	if len(starts) < 2 {
		return nil, nil
	}

	out := make([]meeting.MeetingAssist, 0, len(starts)-1)
	for i, s := range starts[1:] {
		shift := civilDays(start, s)
		clone := template
		clone.ID = x.newID()
		clone.WindowStart = s
		clone.WindowEnd = end.AddDate(0, 0, shift)
		clone.Recurrence = nil
		clone.Series = &meeting.SeriesLink{
			OriginalMeetingID: template.ID,
			Occurrence:        i + 1,
			DayShift:          shift,
		}
		out = append(out, clone)
	}
	return out, nil
}

// ShiftPreferredTimes copies ranges onto an expanded assist and attendee.
// Day-of-week relative ranges keep their wall-clock bounds; absolute ranges
// move by the assist's day shift in the meeting zone.
func (x *Expander) ShiftPreferredTimes(ranges []meeting.PreferredTimeRange, assist meeting.MeetingAssist, attendee meeting.Attendee) ([]meeting.PreferredTimeRange, error) {
	shift := 0
	if assist.Series != nil {
		shift = assist.Series.DayShift
	}

	out := make([]meeting.PreferredTimeRange, 0, len(ranges))
	for _, r := range ranges {
		shifted := meeting.PreferredTimeRange{
			ID:         x.newID(),
			MeetingID:  assist.ID,
			AttendeeID: attendee.ID,
			HostID:     assist.HostID,
			StartTime:  r.StartTime,
			EndTime:    r.EndTime,
		}
		if r.DayOfWeek > 0 {
			shifted.DayOfWeek = r.DayOfWeek
		}
		if r.Absolute() {
			loc, err := zoneOf(assist.Timezone, *r.StartAt)
			if err != nil {
				return nil, err
			}
			s := r.StartAt.In(loc).AddDate(0, 0, shift)
			e := r.EndAt.In(loc).AddDate(0, 0, shift)
			shifted.StartAt, shifted.EndAt = &s, &e
		}
		out = append(out, shifted)
	}
	return out, nil
}

// ExpandAttendeesAndPreferences clones every original attendee, and the
// preferred ranges that belong to it, onto each expanded assist. The result
// is flat and ordered by assist, then attendee.
func (x *Expander) ExpandAttendeesAndPreferences(attendees []meeting.Attendee, assists []meeting.MeetingAssist, ranges []meeting.PreferredTimeRange) ([]meeting.Attendee, []meeting.PreferredTimeRange, error) {
	byAttendee := make(map[string][]meeting.PreferredTimeRange, len(attendees))
	for _, r := range ranges {
		byAttendee[r.AttendeeID] = append(byAttendee[r.AttendeeID], r)
	}

	outAttendees := make([]meeting.Attendee, 0, len(attendees)*len(assists))
	var outRanges []meeting.PreferredTimeRange
	for _, assist := range assists {
		for _, original := range attendees {
			clone := meeting.Attendee{
				ID:        x.newID(),
				MeetingID: assist.ID,
				HostID:    original.HostID,
				UserID:    original.UserID,
				Name:      original.Name,
				Emails:    append([]string(nil), original.Emails...),
				Timezone:  original.Timezone,
				External:  original.External,
			}
			if clone.Timezone == "" {
				clone.Timezone = assist.Timezone
			}
			outAttendees = append(outAttendees, clone)

			own := byAttendee[original.ID]
			if len(own) == 0 {
				continue
			}
			shifted, err := x.ShiftPreferredTimes(own, assist, clone)
			if err != nil {
				return nil, nil, fmt.Errorf("shift preferred times for attendee %s: %w", original.ID, err)
			}
			outRanges = append(outRanges, shifted...)
		}
	}
	return outAttendees, outRanges, nil
}

func zoneOf(name string, fallback time.Time) (*time.Location, error) {
	if name == "" {
		return fallback.Location(), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &ConfigError{Field: "timezone", Value: name, Reason: err.Error()}
	}
	return loc, nil
}

// civilDays counts calendar days from a to b on a's wall clock.
func civilDays(a, b time.Time) int {
	b = b.In(a.Location())
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
