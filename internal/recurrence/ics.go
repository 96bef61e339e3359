package recurrence

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"

	"github.com/teemow/meetassist/internal/meeting"
)

const icsProductID = "-//teemow//meetassist//EN"

// EncodeICS writes assists as a VCALENDAR, one VEVENT per meeting window.
// Occurrences carry a RELATED-TO property pointing at their template.
func EncodeICS(w io.Writer, assists []meeting.MeetingAssist) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, icsProductID)

	stamp := time.Now().UTC()
	for _, a := range assists {
		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, a.ID)
		event.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
		event.Props.SetDateTime(ical.PropDateTimeStart, a.WindowStart.UTC())
		event.Props.SetDateTime(ical.PropDateTimeEnd, a.WindowEnd.UTC())
		if a.Summary != "" {
			event.Props.SetText(ical.PropSummary, a.Summary)
		}
		if a.Series != nil {
			event.Props.SetText("RELATED-TO", a.Series.OriginalMeetingID)
		}
		cal.Children = append(cal.Children, event.Component)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}
