// Package recurrence expands recurring meeting assists into dated
// occurrences.
//
// The RRULE arithmetic sits behind the Engine interface; RRuleEngine is the
// default implementation on github.com/teambition/rrule-go. Occurrences keep
// their wall-clock time in the meeting's zone, so a weekly 09:00 meeting
// stays at 09:00 across a daylight-saving change.
//
// Invalid frequencies, intervals or end dates fail with a *ConfigError
// before anything is returned for persistence.
package recurrence
