package timewindow

import (
	"fmt"
	"sort"
	"time"
)

// Direction selects which side of the anchor a window covers.
type Direction int

const (
	// Before covers [anchor-duration, anchor): the anchor itself is excluded.
	Before Direction = iota
	// After covers [anchor, anchor+duration).
	After
)

func (d Direction) String() string {
	switch d {
	case Before:
		return "before"
	case After:
		return "after"
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// Bounds is the resolved half-open interval [Start, End) of a window.
type Bounds struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the half-open interval.
func (b Bounds) Contains(t time.Time) bool {
	return !t.Before(b.Start) && t.Before(b.End)
}

// Resolve turns an anchor, duration and direction into concrete bounds.
// The duration must be positive.
func Resolve(anchor time.Time, duration time.Duration, dir Direction) (Bounds, error) {
	if duration <= 0 {
		return Bounds{}, fmt.Errorf("window duration must be positive, got %s", duration)
	}
	switch dir {
	case Before:
		return Bounds{Start: anchor.Add(-duration), End: anchor}, nil
	case After:
		return Bounds{Start: anchor, End: anchor.Add(duration)}, nil
	}
	return Bounds{}, fmt.Errorf("unknown window direction %d", int(dir))
}

// Select returns the entries whose timestamp falls in the window, ordered by
// timestamp. The input need not be sorted; a stable sort keeps the original
// order of entries sharing a timestamp. An empty selection is not an error.
func Select[T any](entries []T, at func(T) time.Time, anchor time.Time, duration time.Duration, dir Direction) ([]T, Bounds, error) {
	bounds, err := Resolve(anchor, duration, dir)
	if err != nil {
		return nil, Bounds{}, err
	}

	sorted := make([]T, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return at(sorted[i]).Before(at(sorted[j]))
	})

	selected := make([]T, 0, len(sorted))
	for _, e := range sorted {
		if bounds.Contains(at(e)) {
			selected = append(selected, e)
		}
	}
	return selected, bounds, nil
}
