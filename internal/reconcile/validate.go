package reconcile

import (
	"errors"
	"fmt"
	"sort"

	"github.com/teemow/meetassist/internal/planner"
)

// ErrInvalidPlacement marks events the optimizer placed inconsistently.
var ErrInvalidPlacement = errors.New("invalid placement")

// ValidateEvent checks the parts of one logical event: every part placed
// with start before end, one LastPart and part numbers 1..LastPart without
// gaps or duplicates.
func ValidateEvent(parts []planner.EventPart) error {
	if len(parts) == 0 {
		return fmt.Errorf("%w: no parts", ErrInvalidPlacement)
	}
	last := parts[0].LastPart
	nums := make([]int, 0, len(parts))
	for _, p := range parts {
		if p.StartDate.IsZero() || !p.StartDate.Before(p.EndDate) {
			return fmt.Errorf("%w: part %d does not start before it ends", ErrInvalidPlacement, p.Part)
		}
		if p.LastPart != last {
			return fmt.Errorf("%w: parts disagree on lastPart (%d, %d)", ErrInvalidPlacement, last, p.LastPart)
		}
		nums = append(nums, p.Part)
	}
	sort.Ints(nums)
	if len(nums) != last {
		return fmt.Errorf("%w: %d parts for lastPart %d", ErrInvalidPlacement, len(nums), last)
	}
	for i, n := range nums {
		if n != i+1 {
			return fmt.Errorf("%w: part numbers are not 1..%d", ErrInvalidPlacement, last)
		}
	}
	return nil
}

// ValidateGroup checks one validate group and returns the event ids it
// invalidates: distinct events of the same user must not overlap.
func ValidateGroup(parts []planner.EventPart) map[string]error {
	invalid := make(map[string]error)
	for i := range parts {
		for j := i + 1; j < len(parts); j++ {
			a, b := parts[i], parts[j]
			if a.EventID == b.EventID || a.UserID != b.UserID {
				continue
			}
			if a.StartDate.Before(b.EndDate) && b.StartDate.Before(a.EndDate) {
				err := fmt.Errorf("%w: %s overlaps %s for user %s", ErrInvalidPlacement, a.EventID, b.EventID, a.UserID)
				invalid[a.EventID] = err
				invalid[b.EventID] = err
			}
		}
	}
	return invalid
}
