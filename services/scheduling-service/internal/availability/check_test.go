package availability

import (
	"testing"
	"time"
)

func TestCheck_ReasonPriority(t *testing.T) {
	d := day(t)
	windows := []Interval{{Start: at(d, 9, 0), End: at(d, 17, 0)}}
	blocked := []Interval{{Start: at(d, 12, 0), End: at(d, 13, 0)}}
	booked := []Interval{{Start: at(d, 10, 0), End: at(d, 10, 30)}}

	cases := []struct {
		name       string
		start, end time.Time
		want       Reason
	}{
		{"fits", at(d, 14, 0), at(d, 14, 30), ReasonNone},
		{"before opening", at(d, 8, 0), at(d, 8, 30), ReasonOutsideWorkingHours},
		{"spills past closing", at(d, 16, 45), at(d, 17, 15), ReasonOutsideWorkingHours},
		{"inside blocked slot", at(d, 12, 15), at(d, 12, 45), ReasonBlockedInterval},
		{"overlaps existing booking", at(d, 10, 15), at(d, 10, 45), ReasonDoubleBooking},
		{"adjacent to existing booking", at(d, 10, 30), at(d, 11, 0), ReasonNone},
		{"ends where blocked starts", at(d, 11, 30), at(d, 12, 0), ReasonNone},
		{"inverted interval", at(d, 14, 30), at(d, 14, 0), ReasonOutsideWorkingHours},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Check(windows, blocked, booked, tc.start, tc.end)
			if got != tc.want {
				t.Fatalf("Check(%s-%s) = %q, want %q", tc.start.Format("15:04"), tc.end.Format("15:04"), got, tc.want)
			}
		})
	}
}

func TestCheck_OutsideBeatsBlocked(t *testing.T) {
	d := day(t)
	// A request both outside hours and inside a blocked slot reports the
	// working-hours violation first.
	windows := []Interval{{Start: at(d, 9, 0), End: at(d, 12, 0)}}
	blocked := []Interval{{Start: at(d, 13, 0), End: at(d, 14, 0)}}

	got := Check(windows, blocked, nil, at(d, 13, 15), at(d, 13, 45))
	if got != ReasonOutsideWorkingHours {
		t.Fatalf("expected outside_working_hours, got %q", got)
	}
}

func TestCheck_SpansTwoWindows(t *testing.T) {
	d := day(t)
	windows := []Interval{
		{Start: at(d, 9, 0), End: at(d, 12, 0)},
		{Start: at(d, 12, 0), End: at(d, 14, 0)},
	}
	// Adjacent windows merge, so a request across the seam is containable.
	if got := Check(windows, nil, nil, at(d, 11, 30), at(d, 12, 30)); got != ReasonNone {
		t.Fatalf("expected none, got %q", got)
	}

	gapped := []Interval{
		{Start: at(d, 9, 0), End: at(d, 12, 0)},
		{Start: at(d, 13, 0), End: at(d, 14, 0)},
	}
	if got := Check(gapped, nil, nil, at(d, 11, 30), at(d, 13, 30)); got != ReasonOutsideWorkingHours {
		t.Fatalf("expected outside_working_hours, got %q", got)
	}
}
