package reconcile

import (
	"iter"

	"github.com/teemow/meetassist/internal/calendar"
	"github.com/teemow/meetassist/internal/planner"
)

// Groups is an insertion-ordered partition of event parts.
type Groups struct {
	keys  []string
	parts map[string][]planner.EventPart
}

func newGroups() *Groups {
	return &Groups{parts: make(map[string][]planner.EventPart)}
}

func (g *Groups) add(key string, p planner.EventPart) {
	if _, ok := g.parts[key]; !ok {
		g.keys = append(g.keys, key)
	}
	g.parts[key] = append(g.parts[key], p)
}

// Keys returns the group keys in first-seen order.
func (g *Groups) Keys() []string {
	return append([]string(nil), g.keys...)
}

// Get returns the parts of one group in input order.
func (g *Groups) Get(key string) []planner.EventPart {
	return g.parts[key]
}

// Len returns the number of groups.
func (g *Groups) Len() int {
	return len(g.keys)
}

// All iterates the groups in first-seen order.
func (g *Groups) All() iter.Seq2[string, []planner.EventPart] {
	return func(yield func(string, []planner.EventPart) bool) {
		for _, k := range g.keys {
			if !yield(k, g.parts[k]) {
				return
			}
		}
	}
}

// Parts returns every part, group by group.
func (g *Groups) Parts() []planner.EventPart {
	var out []planner.EventPart
	for _, k := range g.keys {
		out = append(out, g.parts[k]...)
	}
	return out
}

// GroupByEventID partitions parts into update groups, one per logical event.
func GroupByEventID(parts []planner.EventPart, allEvents, oldEvents []calendar.Event) *Groups {
	return groupBy(parts, allEvents, oldEvents, func(p planner.EventPart) string { return p.EventID })
}

// GroupByGroupID partitions parts into validate groups.
func GroupByGroupID(parts []planner.EventPart, allEvents, oldEvents []calendar.Event) *Groups {
	return groupBy(parts, allEvents, oldEvents, func(p planner.EventPart) string { return p.GroupID })
}

func groupBy(parts []planner.EventPart, allEvents, oldEvents []calendar.Event, key func(planner.EventPart) string) *Groups {
	links := recurringLinks(allEvents, oldEvents)
	g := newGroups()
	for _, p := range parts {
		if p.RecurringEventID == "" {
			p.RecurringEventID = links[p.EventID]
		}
		g.add(key(p), p)
	}
	return g
}

// recurringLinks maps event ids to their series id. The live snapshot wins
// over the pre-planning one.
func recurringLinks(allEvents, oldEvents []calendar.Event) map[string]string {
	links := make(map[string]string)
	for _, ev := range oldEvents {
		if ev.RecurringEventID != "" {
			links[ev.ID] = ev.RecurringEventID
		}
	}
	for _, ev := range allEvents {
		if ev.RecurringEventID != "" {
			links[ev.ID] = ev.RecurringEventID
		}
	}
	return links
}
