package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/meetassist/internal/availability"
	"github.com/teemow/meetassist/internal/meeting"
)

type slotsOptions struct {
	start, end     string
	duration       time.Duration
	hostTZ, userTZ string
	workStart      string
	workEnd        string
	busyFile       string
	output         string
}

func newSlotsCmd() *cobra.Command {
	var opts slotsOptions

	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Compute the candidate slots of a scheduling window",
		Long: `Compute the candidate meeting slots of a window from uniform working hours
and an optional list of busy intervals.

The busy file is a JSON array of {"startDate", "endDate", "transparency"}
objects. Transparent intervals do not block slots.

Example:
  meetassist slots --start 2025-01-06T00:00:00Z --end 2025-01-08T00:00:00Z \
    --duration 30m --host-tz Europe/Berlin --busy-file busy.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSlots(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.start, "start", "", "Window start (RFC3339)")
	cmd.Flags().StringVar(&opts.end, "end", "", "Window end (RFC3339)")
	cmd.Flags().DurationVar(&opts.duration, "duration", 30*time.Minute, "Slot length")
	cmd.Flags().StringVar(&opts.hostTZ, "host-tz", "", "IANA zone of the host")
	cmd.Flags().StringVar(&opts.userTZ, "user-tz", "", "IANA zone the slot grid is aligned in (default: host zone)")
	cmd.Flags().StringVar(&opts.workStart, "work-start", "08:00", "Start of working hours (HH:MM)")
	cmd.Flags().StringVar(&opts.workEnd, "work-end", "20:00", "End of working hours (HH:MM)")
	cmd.Flags().StringVar(&opts.busyFile, "busy-file", "", "JSON file with busy intervals")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "Output format: text or json")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	_ = cmd.MarkFlagRequired("host-tz")

	return cmd
}

func (o slotsOptions) request() (availability.WindowRequest, error) {
	req := availability.WindowRequest{
		SlotDuration: o.duration,
		HostTimezone: o.hostTZ,
		UserTimezone: o.userTZ,
	}
	var err error
	if req.WindowStart, err = time.Parse(time.RFC3339, o.start); err != nil {
		return req, fmt.Errorf("invalid --start: %w", err)
	}
	if req.WindowEnd, err = time.Parse(time.RFC3339, o.end); err != nil {
		return req, fmt.Errorf("invalid --end: %w", err)
	}
	start, err := meeting.ParseClock(o.workStart)
	if err != nil {
		return req, fmt.Errorf("invalid --work-start: %w", err)
	}
	end, err := meeting.ParseClock(o.workEnd)
	if err != nil {
		return req, fmt.Errorf("invalid --work-end: %w", err)
	}
	req.HostPreferences = availability.UniformHours(start, end)

	if o.busyFile != "" {
		data, err := os.ReadFile(o.busyFile)
		if err != nil {
			return req, err
		}
		if err := json.Unmarshal(data, &req.Busy); err != nil {
			return req, fmt.Errorf("invalid busy file %s: %w", o.busyFile, err)
		}
	}
	return req, nil
}

func runSlots(w io.Writer, opts slotsOptions) error {
	if opts.output != "text" && opts.output != "json" {
		return fmt.Errorf("unsupported output format: %s (supported: text, json)", opts.output)
	}
	req, err := opts.request()
	if err != nil {
		return err
	}
	res, err := availability.SlotsForWindow(req)
	if err != nil {
		return err
	}

	if opts.output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	host, err := time.LoadLocation(req.HostTimezone)
	if err != nil {
		return err
	}
	for _, date := range res.Dates() {
		slots := res.AvailableSlotsByDate[date]
		fmt.Fprintf(w, "%s (%d slots)\n", date, len(slots))
		for _, s := range slots {
			fmt.Fprintf(w, "  %s - %s\n", s.Start.In(host).Format("15:04"), s.End.In(host).Format("15:04"))
		}
	}
	if len(res.AvailableSlots) == 0 {
		fmt.Fprintln(w, "No free slots in window")
	}
	return nil
}
