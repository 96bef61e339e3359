// Package availability computes the candidate slots of a meeting window.
//
// Host working hours are expressed per ISO weekday in the host's zone; slots
// are laid out on the requester's wall-clock grid and returned as instants in
// the requester's zone. All arithmetic goes through *time.Location, so
// daylight-saving transitions inside a window are handled by the zone rules
// rather than by fixed offsets.
//
// Everything in this package is pure and safe for concurrent use.
package availability
