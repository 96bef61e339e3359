package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/meetassist/internal/availability"
	"github.com/teemow/meetassist/internal/blob"
	"github.com/teemow/meetassist/internal/calendar"
	"github.com/teemow/meetassist/internal/logging"
)

// AssemblerConfig configures an Assembler.
type AssemblerConfig struct {
	// CallbackURL is where the optimizer posts its answer.
	CallbackURL string
	// Delay is the solving time granted to the optimizer.
	Delay time.Duration
}

// Assembler builds planning requests and hands them to the optimizer.
type Assembler struct {
	blobs     blob.Store
	optimizer Optimizer
	cfg       AssemblerConfig
	logger    *slog.Logger
	newID     func() string
}

// NewAssembler returns an Assembler.
func NewAssembler(blobs blob.Store, optimizer Optimizer, cfg AssemblerConfig, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		blobs:     blobs,
		optimizer: optimizer,
		cfg:       cfg,
		logger:    logging.WithComponent(logger, "assembler"),
		newID:     uuid.NewString,
	}
}

// Input is everything known about one host's planning run.
type Input struct {
	HostID       string
	SingletonID  string
	HostTimezone string

	WindowStart     time.Time
	WindowEnd       time.Time
	SlotDuration    time.Duration
	HostPreferences availability.HostPreferences

	Users      []User
	EventParts []EventPart

	AllEvents         []calendar.Event
	OldEvents         []calendar.Event
	OldAttendeeEvents []calendar.Event
	BufferTimes       []calendar.BufferTimes
	Reminders         []calendar.RemindersForEvent
	Breaks            []calendar.Event

	Replan *calendar.ExternalRef
}

func (in Input) validate() error {
	switch {
	case in.HostID == "":
		return &ValidationError{Field: "hostId", Err: errors.New("host id is missing")}
	case len(in.EventParts) == 0:
		return &ValidationError{Field: "eventParts", Err: ErrNoEventParts}
	case len(in.Users) == 0:
		return &ValidationError{Field: "userList", Err: ErrNoUsers}
	case in.HostTimezone == "":
		return &ValidationError{Field: "hostTimezone", Err: ErrNoHostTimezone}
	}
	return nil
}

// Submit stores the planning context and sends the request to the
// optimizer. If the optimizer rejects the request the context is removed
// again.
func (a *Assembler) Submit(ctx context.Context, in Input) (*PlanningRequest, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	hostZone, err := time.LoadLocation(in.HostTimezone)
	if err != nil {
		return nil, &ValidationError{Field: "hostTimezone", Err: fmt.Errorf("%w: %s", ErrBadHostTimezone, in.HostTimezone)}
	}
	if in.SingletonID == "" {
		in.SingletonID = a.newID()
	}

	slots, err := availability.SlotsForWindow(availability.WindowRequest{
		WindowStart:     in.WindowStart,
		WindowEnd:       in.WindowEnd,
		SlotDuration:    in.SlotDuration,
		HostPreferences: in.HostPreferences,
		HostTimezone:    in.HostTimezone,
		Busy:            fixedBusy(in.AllEvents, in.EventParts),
	})
	if err != nil {
		return nil, fmt.Errorf("compute timeslots: %w", err)
	}

	payload := PostProcessQueueBody{
		HostID:             in.HostID,
		SingletonID:        in.SingletonID,
		HostTimezone:       in.HostTimezone,
		AllEvents:          in.AllEvents,
		OldEvents:          in.OldEvents,
		OldAttendeeEvents:  in.OldAttendeeEvents,
		NewHostBufferTimes: in.BufferTimes,
		NewHostReminders:   in.Reminders,
		Breaks:             in.Breaks,
	}
	if in.Replan != nil {
		payload.IsReplan = true
		payload.OriginalExternalEventID = in.Replan.ExternalEventID
		payload.OriginalCalendarID = in.Replan.CalendarID
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal planning context: %w", err)
	}

	fileKey := blob.ContextKey(in.HostID, in.SingletonID)
	if err := a.blobs.Put(ctx, fileKey, data); err != nil {
		return nil, fmt.Errorf("store planning context: %w", err)
	}

	req := &PlanningRequest{
		SingletonID: in.SingletonID,
		HostID:      in.HostID,
		Timeslots:   TimeslotsFromSlots(in.HostID, slots.AvailableSlots, hostZone),
		UserList:    in.Users,
		EventParts:  in.EventParts,
		FileKey:     fileKey,
		Delay:       a.cfg.Delay.Milliseconds(),
		CallbackURL: a.cfg.CallbackURL,
	}

	if err := a.optimizer.Solve(ctx, req); err != nil {
		if delErr := a.blobs.Delete(ctx, fileKey); delErr != nil {
			a.logger.Warn("Failed to remove planning context",
				logging.FileKey(fileKey), logging.Err(delErr))
		}
		return nil, fmt.Errorf("submit to optimizer: %w", err)
	}

	a.logger.Info("Planning request submitted",
		logging.HostID(in.HostID),
		logging.FileKey(fileKey),
		slog.Int("timeslots", len(req.Timeslots)),
		slog.Int("event_parts", len(req.EventParts)))
	return req, nil
}

// fixedBusy returns the events that stay where they are during planning.
func fixedBusy(events []calendar.Event, parts []EventPart) []availability.BusyInterval {
	planned := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		planned[p.EventID] = struct{}{}
	}
	fixed := make([]calendar.Event, 0, len(events))
	for _, ev := range events {
		if _, ok := planned[ev.ID]; !ok {
			fixed = append(fixed, ev)
		}
	}
	return availability.BusyFromEvents(fixed)
}
