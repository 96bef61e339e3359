package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/teemow/meetassist/internal/meeting"
	"github.com/teemow/meetassist/internal/recurrence"
)

type expandOptions struct {
	start, end string
	tz         string
	frequency  string
	interval   int
	until      string
	summary    string
	id         string
	format     string
}

func newExpandCmd() *cobra.Command {
	var opts expandOptions

	cmd := &cobra.Command{
		Use:   "expand",
		Short: "Expand a recurring meeting window into its occurrences",
		Long: `Expand the scheduling window of a recurring meeting request into one window
per occurrence. The template comes first; every occurrence links back to it.

Occurrences keep the wall-clock time of the template in --tz across daylight
saving changes. --until is exclusive.

Example:
  meetassist expand --start 2025-03-03T09:00:00+01:00 --end 2025-03-03T17:00:00+01:00 \
    --tz Europe/Berlin --frequency weekly --until 2025-04-01T00:00:00Z --format ics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExpand(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.start, "start", "", "Window start of the first occurrence (RFC3339)")
	cmd.Flags().StringVar(&opts.end, "end", "", "Window end of the first occurrence (RFC3339)")
	cmd.Flags().StringVar(&opts.tz, "tz", "", "IANA zone the series repeats in")
	cmd.Flags().StringVar(&opts.frequency, "frequency", "weekly", "daily, weekly, monthly or yearly")
	cmd.Flags().IntVar(&opts.interval, "interval", 1, "Repeat every N frequency units")
	cmd.Flags().StringVar(&opts.until, "until", "", "Exclusive end of the series (RFC3339)")
	cmd.Flags().StringVar(&opts.summary, "summary", "", "Meeting summary")
	cmd.Flags().StringVar(&opts.id, "id", "", "Template meeting id (default: a new UUID)")
	cmd.Flags().StringVar(&opts.format, "format", "json", "Output format: json or ics")
	for _, name := range []string{"start", "end", "tz", "until"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func (o expandOptions) template() (meeting.MeetingAssist, error) {
	m := meeting.MeetingAssist{
		ID:       o.id,
		Summary:  o.summary,
		Timezone: o.tz,
		Status:   meeting.StatusPending,
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	var err error
	if m.WindowStart, err = time.Parse(time.RFC3339, o.start); err != nil {
		return m, fmt.Errorf("invalid --start: %w", err)
	}
	if m.WindowEnd, err = time.Parse(time.RFC3339, o.end); err != nil {
		return m, fmt.Errorf("invalid --end: %w", err)
	}
	until, err := time.Parse(time.RFC3339, o.until)
	if err != nil {
		return m, fmt.Errorf("invalid --until: %w", err)
	}
	m.Recurrence = &meeting.Recurrence{
		Frequency: meeting.Frequency(o.frequency),
		Interval:  o.interval,
		Until:     until,
	}
	return m, nil
}

func runExpand(w io.Writer, opts expandOptions) error {
	if opts.format != "json" && opts.format != "ics" {
		return fmt.Errorf("unsupported format: %s (supported: json, ics)", opts.format)
	}
	template, err := opts.template()
	if err != nil {
		return err
	}
	occurrences, err := recurrence.NewExpander(nil).ExpandMeetingAssist(template)
	if err != nil {
		return err
	}
	all := append([]meeting.MeetingAssist{template}, occurrences...)

	if opts.format == "ics" {
		return recurrence.EncodeICS(w, all)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(all)
}
