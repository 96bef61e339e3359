// Package common provides shared utilities for MCP tool implementations:
// the instrumented handler wrapper and typed readers for tool arguments.
package common
