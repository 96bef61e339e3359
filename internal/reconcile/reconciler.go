package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/teemow/meetassist/internal/batch"
	"github.com/teemow/meetassist/internal/calendar"
	"github.com/teemow/meetassist/internal/instrumentation"
	"github.com/teemow/meetassist/internal/logging"
	"github.com/teemow/meetassist/internal/planner"
)

// Config tunes a Reconciler.
type Config struct {
	// Concurrency bounds how many logical events are written at once.
	Concurrency int
	// WritesPerSecond paces store writes. Zero disables pacing.
	WritesPerSecond float64
	// Burst is the pacing burst size.
	Burst int
}

// Reconciler writes optimizer placements to a calendar store.
type Reconciler struct {
	store   calendar.Store
	cfg     Config
	limiter *rate.Limiter
	metrics *instrumentation.Metrics
	logger  *slog.Logger
	newID   func() string
}

// New returns a Reconciler. metrics may be nil.
func New(store calendar.Store, cfg Config, metrics *instrumentation.Metrics, logger *slog.Logger) *Reconciler {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 4
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	limiter := rate.NewLimiter(rate.Inf, cfg.Burst)
	if cfg.WritesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.WritesPerSecond), cfg.Burst)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:   store,
		cfg:     cfg,
		limiter: limiter,
		metrics: metrics,
		logger:  logging.WithComponent(logger, "reconciler"),
		newID:   uuid.NewString,
	}
}

// unit is the per-payload state shared by the event writers. It is read
// only once the writers start.
type unit struct {
	body      *planner.PostProcessQueueBody
	loc       *time.Location
	live      map[string]calendar.Event
	parts     map[string][]planner.EventPart
	invalid   map[string]error
	buffers   map[string]calendar.BufferTimes
	bufferIDs map[string]bool
	reminders map[string][]calendar.Reminder
	breaks    map[string]bool
	keys      []string
}

// Reconcile applies one planning result. The returned error joins the
// failures of individual events; the report lists every event's outcome.
func (r *Reconciler) Reconcile(ctx context.Context, body *planner.PostProcessQueueBody) (Report, error) {
	if err := body.Validate(); err != nil {
		return Report{}, err
	}
	loc, err := time.LoadLocation(body.HostTimezone)
	if err != nil {
		return Report{}, &planner.ValidationError{Field: "hostTimezone", Err: err}
	}

	started := time.Now()
	ctx, span := instrumentation.StartSpan(ctx, "reconcile.apply",
		instrumentation.NewSpanAttributeBuilder().
			WithHost(body.HostID).
			WithFileKey(body.FileKey).
			WithReplan(body.IsReplan).
			Build()...)
	defer span.End()

	logger := r.logger.With(logging.HostID(body.HostID), logging.FileKey(body.FileKey))
	u := prepare(body, loc)

	report := Report{
		Outcomes: batch.Run(ctx, u.keys, r.cfg.Concurrency, func(ctx context.Context, id string) Outcome {
			return r.applyEvent(ctx, u, id)
		}),
	}
	for _, brk := range body.Breaks {
		o := r.createBreak(ctx, u, brk)
		if o.Result == instrumentation.ResultApplied {
			report.BreaksCreated++
		}
		report.Outcomes = append(report.Outcomes, o)
	}
	report.Conflicts = conflicts(u, report.Outcomes)

	for _, o := range report.Outcomes {
		switch o.Result {
		case instrumentation.ResultFailed:
			logger.Error("Failed to apply event", logging.EventID(o.EventID), logging.Err(o.Err))
		case instrumentation.ResultInvalid:
			logger.Warn("Skipping invalid placement", logging.EventID(o.EventID), logging.GroupID(groupOf(u, o.EventID)), logging.Err(o.Err))
		}
	}
	for _, c := range report.Conflicts {
		logger.Warn("Meeting overlaps an attendee event",
			logging.EventID(c.EventID), slog.String("attendee_event_id", c.AttendeeEventID))
	}

	applied := report.Count(instrumentation.ResultApplied)
	skipped := report.Count(instrumentation.ResultSkipped)
	failed := report.Count(instrumentation.ResultFailed)
	invalid := report.Count(instrumentation.ResultInvalid)
	r.metrics.RecordReconciledEvents(ctx, body.HostID, applied, skipped, failed, invalid, time.Since(started))

	logger.Info("Reconciled planning result",
		slog.Int("applied", applied),
		slog.Int("skipped", skipped),
		slog.Int("failed", failed),
		slog.Int("invalid", invalid),
		slog.Int("breaks", report.BreaksCreated),
		slog.Duration(logging.KeyDuration, time.Since(started)))

	if err := report.Err(); err != nil {
		instrumentation.SetSpanError(span, err)
		return report, err
	}
	instrumentation.SetSpanSuccess(span)
	return report, nil
}

func prepare(body *planner.PostProcessQueueBody, loc *time.Location) *unit {
	u := &unit{
		body:      body,
		loc:       loc,
		live:      make(map[string]calendar.Event, len(body.AllEvents)),
		parts:     make(map[string][]planner.EventPart),
		invalid:   make(map[string]error),
		buffers:   make(map[string]calendar.BufferTimes),
		bufferIDs: make(map[string]bool),
		reminders: make(map[string][]calendar.Reminder),
		breaks:    make(map[string]bool),
	}
	for _, ev := range body.AllEvents {
		u.live[ev.ID] = ev
	}
	for _, b := range body.NewHostBufferTimes {
		u.buffers[b.EventID()] = b
		if b.BeforeEvent != nil {
			u.bufferIDs[b.BeforeEvent.ID] = true
		}
		if b.AfterEvent != nil {
			u.bufferIDs[b.AfterEvent.ID] = true
		}
	}
	for _, rs := range body.NewHostReminders {
		u.reminders[rs.EventID] = append(u.reminders[rs.EventID], rs.Reminders...)
	}
	for _, brk := range body.Breaks {
		u.breaks[brk.ID] = true
	}

	var resolved []planner.EventPart
	for id, parts := range GroupByEventID(body.EventPartList, body.AllEvents, body.OldEvents).All() {
		if !u.breaks[id] {
			u.keys = append(u.keys, id)
		}
		ref := parts[0].StartDate
		if ev, ok := u.live[id]; ok {
			ref = ev.StartDate
		}
		rp, err := resolveParts(parts, ref, loc)
		if err == nil {
			err = ValidateEvent(rp)
		}
		if err != nil {
			u.invalid[id] = err
			continue
		}
		u.parts[id] = rp
		resolved = append(resolved, rp...)
	}
	for _, parts := range GroupByGroupID(resolved, nil, nil).All() {
		for id, err := range ValidateGroup(parts) {
			if _, seen := u.invalid[id]; !seen {
				u.invalid[id] = err
			}
		}
	}
	return u
}

func (r *Reconciler) applyEvent(ctx context.Context, u *unit, id string) Outcome {
	if err := u.invalid[id]; err != nil {
		return Outcome{EventID: id, Result: instrumentation.ResultInvalid, Err: err}
	}
	if u.bufferIDs[id] {
		// buffers move with the event they belong to
		return Outcome{EventID: id, Result: instrumentation.ResultSkipped}
	}

	ev, ok := u.live[id]
	if !ok {
		return failed(id, fmt.Errorf("%w: %s is not in the live snapshot", calendar.ErrNotFound, id))
	}
	placement, err := placementOf(u.parts[id])
	if err != nil {
		return Outcome{EventID: id, Result: instrumentation.ResultInvalid, Err: err}
	}

	change := r.buildChange(u, ev, u.parts[id], placement)
	if change.Empty() {
		return Outcome{EventID: id, Result: instrumentation.ResultSkipped, Placement: placement}
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return failed(id, err)
	}
	if err := r.store.ApplyEventChange(ctx, change); err != nil {
		return failed(id, err)
	}
	return Outcome{EventID: id, Result: instrumentation.ResultApplied, Placement: placement}
}

func (r *Reconciler) buildChange(u *unit, ev calendar.Event, parts []planner.EventPart, p Placement) calendar.EventChange {
	change := calendar.EventChange{EventID: ev.ID}

	if !p.Start.Equal(ev.StartDate) {
		change.Patch.StartDate = &p.Start
	}
	if !p.End.Equal(ev.EndDate) {
		change.Patch.EndDate = &p.End
	}
	if ev.Timezone == "" {
		tz := u.body.HostTimezone
		change.Patch.Timezone = &tz
	}
	if link := parts[0].RecurringEventID; link != "" && ev.RecurringEventID == "" {
		change.Patch.RecurringEventID = &link
	}

	if b, ok := u.buffers[ev.ID]; ok {
		if before := anchorBefore(b.BeforeEvent, ev.ID, p); before != nil {
			change.Buffers = append(change.Buffers, *before)
			if before.ID != ev.PreEventID {
				change.Patch.PreEventID = &before.ID
			}
		}
		if after := anchorAfter(b.AfterEvent, ev.ID, p); after != nil {
			change.Buffers = append(change.Buffers, *after)
			if after.ID != ev.PostEventID {
				change.Patch.PostEventID = &after.ID
			}
		}
	}

	if rs, ok := u.reminders[ev.ID]; ok {
		change.ReplaceReminders = true
		change.Reminders = r.reanchorReminders(rs, ev.ID, u.body.HostTimezone, p)
	}

	if ev.Method == calendar.MethodCreate {
		if ref := u.body.Replan(); ref != nil && (ev.IsMeeting || ev.MeetingID != "") {
			// the external event's current time is unknown here
			change.EventID = ""
			change.Target = ref
			change.Patch.StartDate, change.Patch.EndDate = &p.Start, &p.End
		} else {
			created := ev
			created.Method = ""
			change.Create = &created
		}
	}
	return change
}

func anchorBefore(b *calendar.Event, eventID string, p Placement) *calendar.Event {
	if b == nil || b.ID == "" {
		return nil
	}
	d := b.EndDate.Sub(b.StartDate)
	if d <= 0 {
		return nil
	}
	out := *b
	out.StartDate, out.EndDate = p.Start.Add(-d), p.Start
	out.IsPreEvent, out.ForEventID = true, eventID
	return &out
}

func anchorAfter(b *calendar.Event, eventID string, p Placement) *calendar.Event {
	if b == nil || b.ID == "" {
		return nil
	}
	d := b.EndDate.Sub(b.StartDate)
	if d <= 0 {
		return nil
	}
	out := *b
	out.StartDate, out.EndDate = p.End, p.End.Add(d)
	out.IsPostEvent, out.ForEventID = true, eventID
	return &out
}

func (r *Reconciler) reanchorReminders(rs []calendar.Reminder, eventID, tz string, p Placement) []calendar.Reminder {
	out := make([]calendar.Reminder, 0, len(rs))
	for _, rm := range rs {
		if rm.ID == "" {
			rm.ID = r.newID()
		}
		rm.EventID = eventID
		rm.ReminderDate = p.Start.Add(-time.Duration(rm.Minutes) * time.Minute)
		if rm.Timezone == "" {
			rm.Timezone = tz
		}
		out = append(out, rm)
	}
	return out
}

func (r *Reconciler) createBreak(ctx context.Context, u *unit, brk calendar.Event) Outcome {
	if err := u.invalid[brk.ID]; err != nil {
		return Outcome{EventID: brk.ID, Result: instrumentation.ResultInvalid, Err: err}
	}
	if parts, ok := u.parts[brk.ID]; ok {
		p, err := placementOf(parts)
		if err != nil {
			return Outcome{EventID: brk.ID, Result: instrumentation.ResultInvalid, Err: err}
		}
		brk.StartDate, brk.EndDate = p.Start, p.End
	}
	if !brk.StartDate.Before(brk.EndDate) {
		return Outcome{EventID: brk.ID, Result: instrumentation.ResultInvalid, Err: fmt.Errorf("%w: break has no duration", ErrInvalidPlacement)}
	}
	brk.IsBreak = true
	brk.Method = ""
	if brk.Timezone == "" {
		brk.Timezone = u.body.HostTimezone
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return failed(brk.ID, err)
	}
	if err := r.store.CreateEvent(ctx, brk); err != nil {
		return failed(brk.ID, err)
	}
	return Outcome{EventID: brk.ID, Result: instrumentation.ResultApplied, Placement: Placement{Start: brk.StartDate, End: brk.EndDate}}
}

func conflicts(u *unit, outcomes []Outcome) []Conflict {
	var out []Conflict
	for _, o := range outcomes {
		if o.Result != instrumentation.ResultApplied && o.Result != instrumentation.ResultSkipped {
			continue
		}
		ev, ok := u.live[o.EventID]
		if !ok || !(ev.IsMeeting || ev.IsExternalMeeting) || o.Placement.Start.IsZero() {
			continue
		}
		for _, ae := range u.body.OldAttendeeEvents {
			if !ae.Blocks() || (ev.MeetingID != "" && ae.MeetingID == ev.MeetingID) {
				continue
			}
			if ae.Overlaps(o.Placement.Start, o.Placement.End) {
				out = append(out, Conflict{EventID: o.EventID, AttendeeEventID: ae.ID, UserID: ae.UserID})
			}
		}
	}
	return out
}

func groupOf(u *unit, eventID string) string {
	for _, p := range u.body.EventPartList {
		if p.EventID == eventID {
			return p.GroupID
		}
	}
	return ""
}

func failed(id string, err error) Outcome {
	return Outcome{
		EventID: id,
		Result:  instrumentation.ResultFailed,
		Err:     &ReconciliationError{EventID: id, Err: err},
	}
}

// Dispatch reconciles body and drops the report. It lets the Reconciler
// serve as the ingest worker's dispatcher.
func (r *Reconciler) Dispatch(ctx context.Context, body *planner.PostProcessQueueBody) error {
	_, err := r.Reconcile(ctx, body)
	return err
}
