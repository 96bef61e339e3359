package scheduling_tools

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/meetassist/internal/server"
)

// RegisterSchedulingTools registers all scheduling tools with the MCP server
func RegisterSchedulingTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if err := RegisterAvailabilityTools(s, sc); err != nil {
		return fmt.Errorf("failed to register availability tools: %w", err)
	}
	if err := RegisterRecurrenceTools(s, sc); err != nil {
		return fmt.Errorf("failed to register recurrence tools: %w", err)
	}
	if sc.DeadLetters() != nil {
		if err := RegisterDeadLetterTools(s, sc); err != nil {
			return fmt.Errorf("failed to register dead-letter tools: %w", err)
		}
	}
	return nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
