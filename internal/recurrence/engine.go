package recurrence

import (
	"fmt"
	"strconv"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/teemow/meetassist/internal/meeting"
)

// DefaultMaxOccurrences bounds a single expansion.
const DefaultMaxOccurrences = 1000

// Rule is a recurrence rule anchored at Start. Occurrences are strictly
// before Until.
type Rule struct {
	Frequency meeting.Frequency
	Interval  int
	Start     time.Time
	Until     time.Time
}

// Validate checks the rule and returns a *ConfigError on failure.
func (r Rule) Validate() error {
	if _, err := FrequencyOf(r.Frequency); err != nil {
		return err
	}
	if r.Interval < 1 {
		return &ConfigError{Field: "interval", Value: strconv.Itoa(r.Interval), Reason: "must be at least 1"}
	}
	if r.Until.IsZero() {
		return &ConfigError{Field: "until", Value: "", Reason: "an end date is required"}
	}
	if !r.Until.After(r.Start) {
		return &ConfigError{Field: "until", Value: r.Until.Format(time.RFC3339), Reason: "must be after the first occurrence"}
	}
	return nil
}

// Engine expands a rule into ordered occurrence starts.
type Engine interface {
	Expand(rule Rule) ([]time.Time, error)
}

// FrequencyOf maps a meeting frequency to the RRULE frequency.
func FrequencyOf(f meeting.Frequency) (rrule.Frequency, error) {
	switch f {
	case meeting.Daily:
		return rrule.DAILY, nil
	case meeting.Weekly:
		return rrule.WEEKLY, nil
	case meeting.Monthly:
		return rrule.MONTHLY, nil
	case meeting.Yearly:
		return rrule.YEARLY, nil
	}
	return 0, &ConfigError{Field: "frequency", Value: string(f), Reason: "must be daily, weekly, monthly or yearly"}
}

// RRuleEngine implements Engine with rrule-go.
type RRuleEngine struct {
	// MaxOccurrences caps the expansion; zero means DefaultMaxOccurrences.
	MaxOccurrences int
}

// Expand implements Engine.
func (e RRuleEngine) Expand(rule Rule) ([]time.Time, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	freq, _ := FrequencyOf(rule.Frequency)

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:     freq,
		Interval: rule.Interval,
		Dtstart:  rule.Start,
		Until:    rule.Until,
	})
	if err != nil {
		return nil, fmt.Errorf("recurrence: build rule: %w", err)
	}

	max := e.MaxOccurrences
	if max <= 0 {
		max = DefaultMaxOccurrences
	}

	var out []time.Time
	next := r.Iterator()
	for t, ok := next(); ok; t, ok = next() {
		if !t.Before(rule.Until) {
			break
		}
		if len(out) == max {
			return nil, &ConfigError{
				Field:  "until",
				Value:  rule.Until.Format(time.RFC3339),
				Reason: fmt.Sprintf("expands to more than %d occurrences", max),
			}
		}
		out = append(out, t)
	}
	return out, nil
}
