package availability

import (
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End). Two intervals touch
// without conflict when one ends exactly where the other starts.
type Interval struct {
	Start time.Time
	End   time.Time
}

func (iv Interval) Valid() bool {
	return !iv.Start.IsZero() && !iv.End.IsZero() && iv.End.After(iv.Start)
}

// Overlaps reports whether [iv.Start,iv.End) and [o.Start,o.End) intersect:
// a < d && c < b. Equal boundaries are adjacency, not overlap.
func (iv Interval) Overlaps(o Interval) bool {
	return iv.Start.Before(o.End) && o.Start.Before(iv.End)
}

// Contains reports whether o lies fully within iv.
func (iv Interval) Contains(o Interval) bool {
	return !o.Start.Before(iv.Start) && !o.End.After(iv.End)
}

// Merge sorts intervals by start and unions any that overlap or touch.
// Invalid intervals are dropped. The input slice is not modified.
func Merge(ivs []Interval) []Interval {
	valid := make([]Interval, 0, len(ivs))
	for _, iv := range ivs {
		if iv.Valid() {
			valid = append(valid, iv)
		}
	}
	if len(valid) == 0 {
		return nil
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i].Start.Before(valid[j].Start) })

	merged := []Interval{valid[0]}
	for _, iv := range valid[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// Subtract removes every busy interval from the windows, returning the
// remaining free regions in ascending order. Both inputs may be unsorted;
// windows overlapping each other are treated as their union.
func Subtract(windows, busy []Interval) []Interval {
	free := Merge(windows)
	if len(free) == 0 {
		return nil
	}
	for _, b := range Merge(busy) {
		var next []Interval
		for _, f := range free {
			if !f.Overlaps(b) {
				next = append(next, f)
				continue
			}
			if b.Start.After(f.Start) {
				next = append(next, Interval{Start: f.Start, End: b.Start})
			}
			if b.End.Before(f.End) {
				next = append(next, Interval{Start: b.End, End: f.End})
			}
		}
		free = next
		if len(free) == 0 {
			return nil
		}
	}
	return free
}

func anyOverlaps(start, end time.Time, busy []Interval) bool {
	candidate := Interval{Start: start, End: end}
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}
