package scheduling_tools

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/meetassist/internal/meeting"
	"github.com/teemow/meetassist/internal/recurrence"
	"github.com/teemow/meetassist/internal/server"
	"github.com/teemow/meetassist/internal/tools/common"
)

// RegisterRecurrenceTools registers the occurrence expander.
func RegisterRecurrenceTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	expandTool := mcp.NewTool("recurrence_expand",
		mcp.WithDescription("Expand a recurring meeting window into one scheduling window per occurrence"),
		mcp.WithString("windowStart",
			mcp.Required(),
			mcp.Description("Window start of the first occurrence (RFC3339 format)"),
		),
		mcp.WithString("windowEnd",
			mcp.Required(),
			mcp.Description("Window end of the first occurrence (RFC3339 format)"),
		),
		mcp.WithString("timezone",
			mcp.Required(),
			mcp.Description("IANA zone the series repeats in; occurrences keep their wall-clock time across DST"),
		),
		mcp.WithString("frequency",
			mcp.Required(),
			mcp.Description("One of daily, weekly, monthly, yearly"),
		),
		mcp.WithNumber("interval",
			mcp.Description("Repeat every N frequency units (default: 1)"),
		),
		mcp.WithString("until",
			mcp.Required(),
			mcp.Description("Exclusive end of the series (RFC3339 format)"),
		),
		mcp.WithString("meetingId",
			mcp.Description("Id of the template meeting (default: a new UUID)"),
		),
		mcp.WithString("summary",
			mcp.Description("Meeting summary copied onto every occurrence"),
		),
		mcp.WithString("format",
			mcp.Description("Output format: json (default) or ics"),
		),
	)

	s.AddTool(expandTool, common.InstrumentedToolHandler("recurrence_expand", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleExpand(ctx, request, sc)
		}))

	return nil
}

func handleExpand(_ context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	format := common.StringArg(args, "format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "ics" {
		return mcp.NewToolResultError(fmt.Sprintf("unsupported format %q: want json or ics", format)), nil
	}

	template, err := templateFromArgs(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	occurrences, err := sc.Expander().ExpandMeetingAssist(template)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to expand recurrence: %v", err)), nil
	}
	all := append([]meeting.MeetingAssist{template}, occurrences...)

	if format == "ics" {
		var buf bytes.Buffer
		if err := recurrence.EncodeICS(&buf, all); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to encode calendar: %v", err)), nil
		}
		return mcp.NewToolResultText(buf.String()), nil
	}
	return jsonResult(all)
}

func templateFromArgs(args map[string]interface{}) (meeting.MeetingAssist, error) {
	m := meeting.MeetingAssist{
		ID:      common.StringArg(args, "meetingId"),
		Summary: common.StringArg(args, "summary"),
		Status:  meeting.StatusPending,
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	var err error
	if m.WindowStart, err = common.RequiredTime(args, "windowStart"); err != nil {
		return m, err
	}
	if m.WindowEnd, err = common.RequiredTime(args, "windowEnd"); err != nil {
		return m, err
	}
	if m.Timezone, err = common.RequiredString(args, "timezone"); err != nil {
		return m, err
	}
	freq, err := common.RequiredString(args, "frequency")
	if err != nil {
		return m, err
	}
	until, err := common.RequiredTime(args, "until")
	if err != nil {
		return m, err
	}
	m.Recurrence = &meeting.Recurrence{
		Frequency: meeting.Frequency(freq),
		Interval:  common.IntArg(args, "interval", 1),
		Until:     until,
	}
	return m, nil
}
