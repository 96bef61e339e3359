package scheduling_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/meetassist/internal/server"
	"github.com/teemow/meetassist/internal/tools/common"
)

const defaultDeadLetterLimit = 20

// RegisterDeadLetterTools registers the read-only dead-letter listing.
func RegisterDeadLetterTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	listTool := mcp.NewTool("deadletters_list",
		mcp.WithDescription("List the most recent planning results the worker could not reconcile"),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of entries to return (default: 20)"),
		),
	)

	s.AddTool(listTool, common.InstrumentedToolHandler("deadletters_list", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListDeadLetters(ctx, request, sc)
		}))

	return nil
}

func handleListDeadLetters(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	limit := common.IntArg(request.GetArguments(), "limit", defaultDeadLetterLimit)
	if limit <= 0 {
		limit = defaultDeadLetterLimit
	}

	entries, err := sc.DeadLetters().List(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list dead letters: %v", err)), nil
	}
	// Payloads can be large; deadletters show returns them.
	for i := range entries {
		entries[i].Payload = nil
	}
	return jsonResult(entries)
}
