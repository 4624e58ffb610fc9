package availability

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInvalidSchedule marks malformed working-hours input: out-of-range
// minutes, inverted ranges, or overlapping ranges on the same weekday.
// Schedule writes are rejected with it at the API boundary.
var ErrInvalidSchedule = errors.New("invalid schedule")

const minutesPerDay = 24 * 60

// ClockRange is a recurring within-day range in minutes from midnight,
// half-open: [StartMinute, EndMinute). Overnight ranges (end <= start)
// are not supported; a professional working past midnight needs a range
// on each weekday.
type ClockRange struct {
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

// WeeklyHours maps a weekday to its ordered list of working ranges.
// Weekdays follow time.Weekday numbering (Sunday = 0).
type WeeklyHours map[time.Weekday][]ClockRange

// Validate enforces the invariant required of stored working hours:
// every range well-formed and no two ranges on the same weekday overlap.
func (wh WeeklyHours) Validate() error {
	for weekday, ranges := range wh {
		if weekday < time.Sunday || weekday > time.Saturday {
			return fmt.Errorf("%w: unknown weekday %d", ErrInvalidSchedule, weekday)
		}
		sorted := append([]ClockRange(nil), ranges...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartMinute < sorted[j].StartMinute })
		prevEnd := -1
		for _, r := range sorted {
			if r.StartMinute < 0 || r.EndMinute > minutesPerDay || r.EndMinute <= r.StartMinute {
				return fmt.Errorf("%w: range %02d:%02d-%02d:%02d on %s",
					ErrInvalidSchedule, r.StartMinute/60, r.StartMinute%60, r.EndMinute/60, r.EndMinute%60, weekday)
			}
			if r.StartMinute < prevEnd {
				return fmt.Errorf("%w: overlapping ranges on %s", ErrInvalidSchedule, weekday)
			}
			prevEnd = r.EndMinute
		}
	}
	return nil
}

// Windows materializes the ranges for day's weekday as absolute intervals
// in day's location. Malformed rows are skipped and overlapping rows are
// merged rather than rejected: the write path validates, the read path
// tolerates whatever is already stored.
func (wh WeeklyHours) Windows(day time.Time) []Interval {
	ranges := wh[day.Weekday()]
	if len(ranges) == 0 {
		return nil
	}
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	out := make([]Interval, 0, len(ranges))
	for _, r := range ranges {
		if r.StartMinute < 0 || r.EndMinute > minutesPerDay || r.EndMinute <= r.StartMinute {
			continue
		}
		out = append(out, Interval{
			Start: midnight.Add(time.Duration(r.StartMinute) * time.Minute),
			End:   midnight.Add(time.Duration(r.EndMinute) * time.Minute),
		})
	}
	return Merge(out)
}
