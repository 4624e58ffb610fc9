package availability

import "time"

// Reason says why a requested interval cannot be booked. Reported in
// priority order: outside working hours beats a blocked interval beats a
// collision with another appointment.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonOutsideWorkingHours Reason = "outside_working_hours"
	ReasonBlockedInterval     Reason = "blocked_interval"
	ReasonDoubleBooking       Reason = "double_booking"
)

// Check decides whether [start,end) is bookable given the professional's
// working windows, blocked slots, and existing non-cancelled appointment
// intervals. It is the single authority consulted by both the slot
// calculator and the reservation path; the database exclusion constraint
// remains the backstop for races between concurrent reservations.
func Check(windows, blocked, booked []Interval, start, end time.Time) Reason {
	requested := Interval{Start: start, End: end}
	if !requested.Valid() {
		return ReasonOutsideWorkingHours
	}

	contained := false
	for _, w := range Merge(windows) {
		if w.Contains(requested) {
			contained = true
			break
		}
	}
	if !contained {
		return ReasonOutsideWorkingHours
	}

	if anyOverlaps(start, end, blocked) {
		return ReasonBlockedInterval
	}
	if anyOverlaps(start, end, booked) {
		return ReasonDoubleBooking
	}
	return ReasonNone
}
