package scheduling_tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/meetassist/internal/availability"
	"github.com/teemow/meetassist/internal/instrumentation"
	"github.com/teemow/meetassist/internal/meeting"
	"github.com/teemow/meetassist/internal/server"
	"github.com/teemow/meetassist/internal/tools/common"
)

// RegisterAvailabilityTools registers the slot finder.
func RegisterAvailabilityTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	findSlotsTool := mcp.NewTool("availability_find_slots",
		mcp.WithDescription("Compute the candidate meeting slots of a scheduling window from the host's working hours and busy intervals"),
		mcp.WithString("windowStart",
			mcp.Required(),
			mcp.Description("Window start (RFC3339 format, e.g., '2025-01-06T08:00:00+01:00')"),
		),
		mcp.WithString("windowEnd",
			mcp.Required(),
			mcp.Description("Window end (RFC3339 format)"),
		),
		mcp.WithNumber("durationMinutes",
			mcp.Required(),
			mcp.Description("Slot length in minutes"),
		),
		mcp.WithString("hostTimezone",
			mcp.Required(),
			mcp.Description("IANA zone of the host, e.g. 'Europe/Berlin'. Working hours and slot dates use this zone."),
		),
		mcp.WithString("userTimezone",
			mcp.Description("IANA zone the slot grid is aligned in (default: hostTimezone)"),
		),
		mcp.WithString("workStart",
			mcp.Description("Start of working hours as HH:MM on every weekday (default: 08:00)"),
		),
		mcp.WithString("workEnd",
			mcp.Description("End of working hours as HH:MM on every weekday (default: 20:00)"),
		),
		mcp.WithString("busy",
			mcp.Description(`JSON array of busy intervals, e.g. [{"startDate":"2025-01-06T10:00:00Z","endDate":"2025-01-06T11:00:00Z","transparency":"opaque"}]`),
		),
	)

	s.AddTool(findSlotsTool, common.InstrumentedToolHandler("availability_find_slots", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleFindSlots(ctx, request, sc)
		}))

	return nil
}

func handleFindSlots(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	req, err := windowRequestFromArgs(request.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := availability.SlotsForWindow(req)
	if err != nil {
		sc.Metrics().RecordSlotComputation(ctx, instrumentation.StatusError, 0)
		return mcp.NewToolResultError(fmt.Sprintf("Failed to compute slots: %v", err)), nil
	}
	sc.Metrics().RecordSlotComputation(ctx, instrumentation.StatusSuccess, len(res.AvailableSlots))

	return jsonResult(res)
}

func windowRequestFromArgs(args map[string]interface{}) (availability.WindowRequest, error) {
	var req availability.WindowRequest
	var err error

	if req.WindowStart, err = common.RequiredTime(args, "windowStart"); err != nil {
		return req, err
	}
	if req.WindowEnd, err = common.RequiredTime(args, "windowEnd"); err != nil {
		return req, err
	}
	if req.SlotDuration, err = common.MinutesArg(args, "durationMinutes"); err != nil {
		return req, err
	}
	if req.HostTimezone, err = common.RequiredString(args, "hostTimezone"); err != nil {
		return req, err
	}
	req.UserTimezone = common.StringArg(args, "userTimezone")

	start, end := availability.DefaultWorkStart, availability.DefaultWorkEnd
	if s := common.StringArg(args, "workStart"); s != "" {
		if start, err = meeting.ParseClock(s); err != nil {
			return req, fmt.Errorf("invalid workStart: %w", err)
		}
	}
	if s := common.StringArg(args, "workEnd"); s != "" {
		if end, err = meeting.ParseClock(s); err != nil {
			return req, fmt.Errorf("invalid workEnd: %w", err)
		}
	}
	req.HostPreferences = availability.UniformHours(start, end)

	if s := common.StringArg(args, "busy"); s != "" {
		if err := json.Unmarshal([]byte(s), &req.Busy); err != nil {
			return req, fmt.Errorf("invalid busy intervals: %w", err)
		}
	}
	return req, nil
}
