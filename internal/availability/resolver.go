package availability

import (
	"errors"
	"fmt"
	"time"

	"github.com/teemow/meetassist/internal/meeting"
)

// DayRequest asks for the slots of one host calendar day.
type DayRequest struct {
	SlotDuration time.Duration
	// DayStart selects the host calendar day. On the first day of a window
	// it is also the earliest allowed slot start.
	DayStart time.Time
	// DayEnd is the window end, the latest allowed slot end on the last day.
	DayEnd          time.Time
	IsFirstDay      bool
	IsLastDay       bool
	HostPreferences HostPreferences
	HostZone        *time.Location
	UserZone        *time.Location
	Busy            []BusyInterval
}

func (r DayRequest) validate() error {
	if err := validateDuration(r.SlotDuration); err != nil {
		return err
	}
	if r.HostZone == nil || r.UserZone == nil {
		return errors.New("availability: host and user zones are required")
	}
	if r.IsLastDay && r.DayEnd.IsZero() {
		return errors.New("availability: last day requires a window end")
	}
	return nil
}

func validateDuration(d time.Duration) error {
	if d < time.Minute || d%time.Minute != 0 {
		return fmt.Errorf("availability: slot duration must be a positive whole number of minutes, got %s", d)
	}
	return nil
}

// SlotsForDate returns the ascending, non-overlapping slots of one day.
func SlotsForDate(req DayRequest) ([]Slot, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	day := req.DayStart.In(req.HostZone)
	y, m, d := day.Date()
	startClock, endClock := req.HostPreferences.WorkHours(meeting.ISOWeekday(day.Weekday()))

	from := time.Date(y, m, d, startClock.Hour, startClock.Minute, 0, 0, req.HostZone)
	to := time.Date(y, m, d, endClock.Hour, endClock.Minute, 0, 0, req.HostZone)
	if req.IsFirstDay && req.DayStart.After(from) {
		from = req.DayStart
	}
	if req.IsLastDay && req.DayEnd.Before(to) {
		to = req.DayEnd
	}

	busy := blocking(req.Busy)
	date := fmt.Sprintf("%04d-%02d-%02d", y, m, d)

	var slots []Slot
	for start := alignUp(from.In(req.UserZone), req.SlotDuration); ; start = start.Add(req.SlotDuration) {
		end := start.Add(req.SlotDuration)
		if end.After(to) {
			break
		}
		if overlapsAny(start, end, busy) {
			continue
		}
		slots = append(slots, Slot{Date: date, Start: start, End: end})
	}
	return slots, nil
}

// WindowRequest asks for every slot between WindowStart and WindowEnd.
type WindowRequest struct {
	WindowStart     time.Time
	WindowEnd       time.Time
	SlotDuration    time.Duration
	HostPreferences HostPreferences
	HostTimezone    string
	// UserTimezone defaults to HostTimezone.
	UserTimezone string
	Busy         []BusyInterval
}

// SlotsForWindow walks every host calendar day of the window.
// AvailableSlots is always the date-ordered concatenation of
// AvailableSlotsByDate.
func SlotsForWindow(req WindowRequest) (Result, error) {
	res := Result{
		AvailableSlots:       []Slot{},
		AvailableSlotsByDate: map[string][]Slot{},
	}
	if err := validateDuration(req.SlotDuration); err != nil {
		return res, err
	}
	hostZone, err := time.LoadLocation(req.HostTimezone)
	if err != nil || req.HostTimezone == "" {
		return res, fmt.Errorf("availability: invalid host timezone %q", req.HostTimezone)
	}
	userZone := hostZone
	if req.UserTimezone != "" {
		if userZone, err = time.LoadLocation(req.UserTimezone); err != nil {
			return res, fmt.Errorf("availability: invalid user timezone %q: %w", req.UserTimezone, err)
		}
	}
	if req.WindowEnd.Before(req.WindowStart) {
		return res, fmt.Errorf("availability: window end %s before start %s",
			req.WindowEnd.Format(time.RFC3339), req.WindowStart.Format(time.RFC3339))
	}

	busy := dedupe(req.Busy)
	start := req.WindowStart.In(hostZone)
	end := req.WindowEnd.In(hostZone)
	y, m, d := start.Date()
	ly, lm, ld := end.Date()
	last := time.Date(ly, lm, ld, 12, 0, 0, 0, hostZone)

	for i := 0; ; i++ {
		// Noon always exists, midnight does not in every zone.
		day := time.Date(y, m, d+i, 12, 0, 0, 0, hostZone)
		if day.After(last) {
			break
		}
		isFirst := i == 0
		dayStart := day
		if isFirst {
			dayStart = start
		}
		slots, err := SlotsForDate(DayRequest{
			SlotDuration:    req.SlotDuration,
			DayStart:        dayStart,
			DayEnd:          end,
			IsFirstDay:      isFirst,
			IsLastDay:       sameDay(day, last),
			HostPreferences: req.HostPreferences,
			HostZone:        hostZone,
			UserZone:        userZone,
			Busy:            busy,
		})
		if err != nil {
			return res, err
		}
		if len(slots) == 0 {
			continue
		}
		res.AvailableSlotsByDate[slots[0].Date] = slots
		res.AvailableSlots = append(res.AvailableSlots, slots...)
	}
	return res, nil
}

// alignUp moves t forward to the next boundary of the slot grid on t's
// wall clock. The grid step is the slot duration, capped at one hour.
func alignUp(t time.Time, slot time.Duration) time.Time {
	if t.Second() != 0 || t.Nanosecond() != 0 {
		t = t.Truncate(time.Minute).Add(time.Minute)
	}
	step := slot
	if step > time.Hour {
		step = time.Hour
	}
	stepMin := int(step / time.Minute)
	if r := (t.Hour()*60 + t.Minute()) % stepMin; r != 0 {
		t = t.Add(time.Duration(stepMin-r) * time.Minute)
	}
	return t
}

func blocking(busy []BusyInterval) []BusyInterval {
	out := make([]BusyInterval, 0, len(busy))
	for _, b := range busy {
		if b.Blocks() && b.End.After(b.Start) {
			out = append(out, b)
		}
	}
	return out
}

func overlapsAny(start, end time.Time, busy []BusyInterval) bool {
	for _, b := range busy {
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}

func dedupe(busy []BusyInterval) []BusyInterval {
	type key struct {
		start, end int64
		blocks     bool
	}
	seen := make(map[key]struct{}, len(busy))
	out := make([]BusyInterval, 0, len(busy))
	for _, b := range busy {
		k := key{b.Start.UnixNano(), b.End.UnixNano(), b.Blocks()}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, b)
	}
	return out
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
