package availability

import "time"

// FreeSlots returns the bookable slots of length duration inside the
// working windows, excluding every busy interval (blocked slots plus
// non-cancelled appointments). Candidates advance by step within each
// free region; step <= 0 means step == duration, producing back-to-back
// non-overlapping slots. Slots starting before now are skipped.
//
// All times are expected to be in the same location (timezone).
func FreeSlots(windows, busy []Interval, duration, step time.Duration, now time.Time) []Interval {
	if duration <= 0 {
		return nil
	}
	if step <= 0 {
		step = duration
	}

	var slots []Interval
	for _, region := range Subtract(windows, busy) {
		for t := region.Start; !t.Add(duration).After(region.End); t = t.Add(step) {
			if t.Before(now) {
				continue
			}
			slots = append(slots, Interval{Start: t, End: t.Add(duration)})
		}
	}
	return slots
}
