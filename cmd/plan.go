package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/meetassist/internal/availability"
	"github.com/teemow/meetassist/internal/calendar"
	"github.com/teemow/meetassist/internal/config"
	"github.com/teemow/meetassist/internal/logging"
	"github.com/teemow/meetassist/internal/planner"
)

// planFile is the on-disk form of a planning submission.
type planFile struct {
	HostID              string                       `json:"hostId"`
	SingletonID         string                       `json:"singletonId,omitempty"`
	HostTimezone        string                       `json:"hostTimezone"`
	WindowStart         time.Time                    `json:"windowStartDate"`
	WindowEnd           time.Time                    `json:"windowEndDate"`
	SlotDurationMinutes int                          `json:"slotDurationMinutes,omitempty"`
	HostPreferences     availability.HostPreferences `json:"hostPreferences"`
	Users               []planner.User               `json:"userList"`
	EventParts          []planner.EventPart          `json:"eventParts"`
	AllEvents           []calendar.Event             `json:"allEvents,omitempty"`
	OldEvents           []calendar.Event             `json:"oldEvents,omitempty"`
	OldAttendeeEvents   []calendar.Event             `json:"oldAttendeeEvents,omitempty"`
	BufferTimes         []calendar.BufferTimes       `json:"newHostBufferTimes,omitempty"`
	Reminders           []calendar.RemindersForEvent `json:"newHostReminders,omitempty"`
	Breaks              []calendar.Event             `json:"breaks,omitempty"`
	Replan              *planReplan                  `json:"replan,omitempty"`
}

type planReplan struct {
	ExternalEventID string `json:"externalEventId"`
	CalendarID      string `json:"calendarId"`
}

func (f planFile) input() planner.Input {
	in := planner.Input{
		HostID:            f.HostID,
		SingletonID:       f.SingletonID,
		HostTimezone:      f.HostTimezone,
		WindowStart:       f.WindowStart,
		WindowEnd:         f.WindowEnd,
		SlotDuration:      time.Duration(f.SlotDurationMinutes) * time.Minute,
		HostPreferences:   f.HostPreferences,
		Users:             f.Users,
		EventParts:        f.EventParts,
		AllEvents:         f.AllEvents,
		OldEvents:         f.OldEvents,
		OldAttendeeEvents: f.OldAttendeeEvents,
		BufferTimes:       f.BufferTimes,
		Reminders:         f.Reminders,
		Breaks:            f.Breaks,
	}
	if f.Replan != nil {
		in.Replan = &calendar.ExternalRef{ExternalEventID: f.Replan.ExternalEventID, CalendarID: f.Replan.CalendarID}
	}
	return in
}

func readPlanFile(r io.Reader) (planner.Input, error) {
	var f planFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return planner.Input{}, fmt.Errorf("decode planning input: %w", err)
	}
	return f.input(), nil
}

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <input.json>",
		Short: "Submit a planning request to the optimizer",
		Long: `Read a planning input, compute the timeslots of its window, store the
planning context and submit the request to the optimizer.

The optimizer posts its answer to the configured callback URL, which the
worker command serves. Use "-" to read the input from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			in, err := readPlanFile(r)
			if err != nil {
				return err
			}
			return runPlan(cmd, cfg, in)
		},
	}
	return cmd
}

func runPlan(cmd *cobra.Command, cfg config.Config, in planner.Input) error {
	if cfg.Optimizer.BaseURL == "" {
		return errors.New("optimizer base URL is not configured (optimizer.baseURL or MEETASSIST_OPTIMIZER_URL)")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := newLogger(cfg)
	if cfg.Blob.Backend == config.BlobMemory {
		logger.Warn("Planning context is kept in memory and will be lost when this command exits")
	}

	conns, err := openInfra(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := conns.Close(); err != nil {
			logger.Error("Error closing connections", logging.Err(err))
		}
	}()

	optimizer := planner.NewHTTPOptimizer(planner.HTTPOptimizerConfig{
		BaseURL:  cfg.Optimizer.BaseURL,
		Username: cfg.Optimizer.Username,
		Password: cfg.Optimizer.Password,
		Timeout:  cfg.Optimizer.Timeout,
	})
	assembler := planner.NewAssembler(conns.blobs, optimizer, planner.AssemblerConfig{
		CallbackURL: cfg.Optimizer.CallbackURL,
		Delay:       cfg.Optimizer.Delay,
	}, logger)

	req, err := assembler.Submit(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Submitted %s (%d timeslots, context %s)\n", req.SingletonID, len(req.Timeslots), req.FileKey)
	return nil
}
