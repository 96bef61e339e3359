package planner

import (
	"fmt"
	"regexp"
	"strconv"
)

var scorePattern = regexp.MustCompile(`^(-?\d+)hard/(-?\d+)medium/(-?\d+)soft$`)

// Score is the optimizer's hard/medium/soft score. A negative hard score
// means a hard constraint was broken.
type Score struct {
	Hard   int
	Medium int
	Soft   int
}

// ParseScore parses "Xhard/Ymedium/Zsoft".
func ParseScore(s string) (Score, error) {
	m := scorePattern.FindStringSubmatch(s)
	if m == nil {
		return Score{}, fmt.Errorf("unrecognised score %q", s)
	}
	var sc Score
	for i, dst := range []*int{&sc.Hard, &sc.Medium, &sc.Soft} {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return Score{}, fmt.Errorf("score %q: %w", s, err)
		}
		*dst = n
	}
	return sc, nil
}

// Feasible reports whether no hard constraint is broken.
func (s Score) Feasible() bool {
	return s.Hard >= 0
}

func (s Score) String() string {
	return fmt.Sprintf("%dhard/%dmedium/%dsoft", s.Hard, s.Medium, s.Soft)
}
