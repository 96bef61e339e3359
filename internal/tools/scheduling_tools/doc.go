// Package scheduling_tools exposes the availability resolver, the
// recurrence expander and the dead-letter ledger as MCP tools.
//
// Tools:
//   - availability_find_slots: candidate slots of a scheduling window
//   - recurrence_expand: per-occurrence meeting windows as JSON or ICS
//   - deadletters_list: recent failed planning results (only when a
//     ledger is configured)
package scheduling_tools
