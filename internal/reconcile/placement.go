package reconcile

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/teemow/meetassist/internal/planner"
)

// Placement is where the optimizer put a logical event.
type Placement struct {
	Start time.Time
	End   time.Time
}

// resolveParts fills in StartDate/EndDate of parts that carry a timeslot.
// Timeslots have no year; it is taken from ref and rolled over when the
// slot lands more than six months away from it.
func resolveParts(parts []planner.EventPart, ref time.Time, loc *time.Location) ([]planner.EventPart, error) {
	out := make([]planner.EventPart, len(parts))
	for i, p := range parts {
		if p.Timeslot != nil {
			start, end, err := slotBounds(*p.Timeslot, ref, loc)
			if err != nil {
				return nil, fmt.Errorf("part %d of %s: %w", p.Part, p.EventID, err)
			}
			p.StartDate, p.EndDate = start, end
		}
		out[i] = p
	}
	return out, nil
}

func slotBounds(ts planner.Timeslot, ref time.Time, loc *time.Location) (time.Time, time.Time, error) {
	ref = ref.In(loc)
	year := ref.Year()

	start, err := ts.Start(year, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	switch {
	case start.Before(ref.AddDate(0, -6, 0)):
		year++
	case start.After(ref.AddDate(0, 6, 0)):
		year--
	}
	if year != ref.Year() {
		if start, err = ts.Start(year, loc); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	end, err := ts.End(year, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// placementOf spans the first part's start to the last part's end.
func placementOf(parts []planner.EventPart) (Placement, error) {
	if len(parts) == 0 {
		return Placement{}, errors.New("no parts")
	}
	sorted := append([]planner.EventPart(nil), parts...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Part < sorted[j].Part })

	p := Placement{Start: sorted[0].StartDate, End: sorted[len(sorted)-1].EndDate}
	if p.Start.IsZero() || p.End.IsZero() {
		return Placement{}, errors.New("part has no placement")
	}
	if !p.Start.Before(p.End) {
		return Placement{}, fmt.Errorf("placement ends at %s before it starts at %s",
			p.End.Format(time.RFC3339), p.Start.Format(time.RFC3339))
	}
	return p, nil
}
