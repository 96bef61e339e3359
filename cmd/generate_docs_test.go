package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCategoryFromToolName(t *testing.T) {
	tests := []struct {
		name     string
		toolName string
		want     string
	}{
		{name: "availability", toolName: "availability_find_slots", want: "Availability Tools"},
		{name: "recurrence", toolName: "recurrence_expand", want: "Recurrence Tools"},
		{name: "dead letters", toolName: "deadletters_list", want: "Dead Letter Tools"},
		{name: "unknown prefix", toolName: "gmail_list_threads", want: "Other"},
		{name: "no underscore", toolName: "ping", want: "Other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, getCategoryFromToolName(tt.toolName))
		})
	}
}

func TestRegisteredTools(t *testing.T) {
	tools, err := registeredTools()
	require.NoError(t, err)

	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"availability_find_slots", "recurrence_expand", "deadletters_list"}, names)
}

func TestGenerateToolMarkdown(t *testing.T) {
	tool := mcp.NewTool("recurrence_expand",
		mcp.WithDescription("Expand a series"),
		mcp.WithString("until", mcp.Required(), mcp.Description("Exclusive end")),
		mcp.WithNumber("interval"),
	)

	md := generateToolMarkdown(tool)
	assert.Contains(t, md, "### recurrence_expand\n\nExpand a series\n\n")
	assert.Contains(t, md, "- `interval` (number, optional): number parameter\n")
	assert.Contains(t, md, "- `until` (string, required): Exclusive end\n")
	assert.Less(t, strings.Index(md, "`interval`"), strings.Index(md, "`until`"))
}

func TestRunGenerateDocs(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runGenerateDocs(&buf, ""))

	md := buf.String()
	assert.True(t, strings.HasPrefix(md, "# MCP Tools Reference"))
	for _, heading := range []string{"## Availability Tools", "## Dead Letter Tools", "## Recurrence Tools"} {
		assert.Contains(t, md, heading)
	}
	assert.NotContains(t, md, "## Other")

	out := filepath.Join(t.TempDir(), "tools.md")
	require.NoError(t, runGenerateDocs(&bytes.Buffer{}, out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, md, string(data))
}
