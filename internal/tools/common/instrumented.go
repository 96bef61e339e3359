package common

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/meetassist/internal/instrumentation"
	"github.com/teemow/meetassist/internal/logging"
	"github.com/teemow/meetassist/internal/server"
)

// ToolHandler is the mcp-go tool handler signature.
type ToolHandler = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// InstrumentedToolHandler wraps a tool handler with a span, invocation
// metrics and a log line per call.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", sc, handler))
func InstrumentedToolHandler(toolName string, sc *server.ServerContext, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, span := instrumentation.StartToolSpan(ctx, toolName)
		defer span.End()

		start := time.Now()
		result, err := handler(ctx, request)
		duration := time.Since(start)

		status := instrumentation.StatusSuccess
		if err != nil || (result != nil && result.IsError) {
			status = instrumentation.StatusError
		}
		sc.Metrics().RecordToolInvocation(ctx, toolName, status, duration)

		logger := logging.WithTool(sc.Logger(), toolName)
		switch {
		case err != nil:
			instrumentation.SetSpanError(span, err)
			logger.Error("Tool invocation failed", logging.Err(err), "duration", duration)
		case status == instrumentation.StatusError:
			instrumentation.SetSpanError(span, errors.New(resultText(result)))
			logger.Warn("Tool returned an error result", "duration", duration)
		default:
			instrumentation.SetSpanSuccess(span)
			logger.Debug("Tool invocation succeeded", "duration", duration)
		}
		return result, err
	}
}

func resultText(result *mcp.CallToolResult) string {
	for _, c := range result.Content {
		if text, ok := c.(mcp.TextContent); ok {
			return text.Text
		}
	}
	return "tool error"
}
