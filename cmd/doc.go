// Package cmd implements the command-line interface for meetassist.
//
// This package provides the following commands:
//   - worker: consume planning results and reconcile them into the calendar store,
//     serving the planner callback, health and metrics endpoints
//   - serve: start the MCP server exposing the scheduling tools
//   - plan: submit a planning run to the optimizer
//   - slots: compute the candidate slots of a scheduling window
//   - expand: expand a recurring meeting into per-occurrence windows
//   - deadletters: inspect, replay and drop failed planning results
//   - generate-docs: generate markdown documentation for all MCP tools
//   - version: display version information
package cmd
