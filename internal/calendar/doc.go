// Package calendar defines the calendar event model shared by the planner
// and the reconciler, and the store contract the reconciler writes through.
//
// Two stores are provided: MemoryStore for tests and dry runs, and
// SQLiteStore, a durable store on modernc.org/sqlite. Both apply an
// EventChange atomically: either every field, buffer and reminder of the
// logical event is written or none is.
package calendar
