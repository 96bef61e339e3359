package calendar

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. Changes are staged on copies and
// committed under one lock, so a failing change leaves no trace.
type MemoryStore struct {
	mu        sync.RWMutex
	events    map[string]Event
	reminders map[string][]Reminder
	now       func() time.Time
}

// NewMemoryStore creates an empty MemoryStore seeded with events.
func NewMemoryStore(events ...Event) *MemoryStore {
	s := &MemoryStore{
		events:    make(map[string]Event, len(events)),
		reminders: make(map[string][]Reminder),
		now:       time.Now,
	}
	for _, ev := range events {
		s.events[ev.ID] = ev
	}
	return s
}

// GetEvent implements Store.
func (s *MemoryStore) GetEvent(_ context.Context, id string) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &ev, nil
}

// CreateEvent implements Store.
func (s *MemoryStore) CreateEvent(_ context.Context, ev Event) error {
	if ev.ID == "" {
		return fmt.Errorf("calendar: event has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ev.Method = ""
	ev.UpdatedAt = s.now()
	s.events[ev.ID] = ev
	return nil
}

// ApplyEventChange implements Store.
func (s *MemoryStore) ApplyEventChange(_ context.Context, change EventChange) error {
	if err := change.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	staged := make(map[string]Event, 1+len(change.Buffers))

	var target Event
	switch {
	case change.Create != nil:
		target = change.Patch.ApplyTo(*change.Create)
		target.Method = ""
	case change.Target != nil:
		found := false
		for _, ev := range s.events {
			if ev.ExternalEventID != change.Target.ExternalEventID ||
				(change.Target.CalendarID != "" && ev.CalendarID != change.Target.CalendarID) {
				continue
			}
			// lowest id wins, as in SQLiteStore
			if !found || ev.ID < target.ID {
				target, found = ev, true
			}
		}
		if !found {
			return fmt.Errorf("%w: external event %s", ErrNotFound, change.Target.ExternalEventID)
		}
		target = change.Patch.ApplyTo(target)
	default:
		ev, ok := s.events[change.EventID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, change.EventID)
		}
		target = change.Patch.ApplyTo(ev)
	}
	target.UpdatedAt = now
	staged[target.ID] = target

	for _, b := range change.Buffers {
		if b.ID == "" {
			return fmt.Errorf("calendar: buffer for %s has no id", target.ID)
		}
		b.Method = ""
		b.UpdatedAt = now
		staged[b.ID] = b
	}

	for id, ev := range staged {
		s.events[id] = ev
	}
	if change.ReplaceReminders {
		rs := make([]Reminder, len(change.Reminders))
		for i, r := range change.Reminders {
			r.EventID = target.ID
			rs[i] = r
		}
		s.reminders[target.ID] = rs
	}
	return nil
}

// ListEvents implements EventLister.
func (s *MemoryStore) ListEvents(_ context.Context, userID string, start, end time.Time) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for _, ev := range s.events {
		if ev.UserID == userID && !ev.Deleted && ev.Overlaps(start, end) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out, nil
}

// Reminders returns the reminders stored for an event.
func (s *MemoryStore) Reminders(eventID string) []Reminder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Reminder(nil), s.reminders[eventID]...)
}

// Len returns the number of stored events.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
