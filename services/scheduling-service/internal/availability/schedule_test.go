package availability

import (
	"errors"
	"testing"
	"time"
)

func TestWeeklyHoursValidate(t *testing.T) {
	cases := []struct {
		name    string
		hours   WeeklyHours
		wantErr bool
	}{
		{
			"well formed",
			WeeklyHours{
				time.Monday: {{StartMinute: 540, EndMinute: 720}, {StartMinute: 780, EndMinute: 1080}},
				time.Friday: {{StartMinute: 540, EndMinute: 1020}},
			},
			false,
		},
		{"empty", WeeklyHours{}, false},
		{
			"overlapping ranges same weekday",
			WeeklyHours{time.Monday: {{StartMinute: 540, EndMinute: 720}, {StartMinute: 700, EndMinute: 800}}},
			true,
		},
		{
			"overnight range rejected",
			WeeklyHours{time.Saturday: {{StartMinute: 1320, EndMinute: 120}}},
			true,
		},
		{
			"end beyond midnight",
			WeeklyHours{time.Sunday: {{StartMinute: 1380, EndMinute: 1500}}},
			true,
		},
		{
			"negative start",
			WeeklyHours{time.Tuesday: {{StartMinute: -10, EndMinute: 60}}},
			true,
		},
		{
			"unsorted but disjoint",
			WeeklyHours{time.Monday: {{StartMinute: 780, EndMinute: 1080}, {StartMinute: 540, EndMinute: 720}}},
			false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.hours.Validate()
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidSchedule) {
					t.Fatalf("expected ErrInvalidSchedule, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestWeeklyHoursWindows(t *testing.T) {
	d := day(t) // Monday
	hours := WeeklyHours{
		time.Monday: {{StartMinute: 540, EndMinute: 720}, {StartMinute: 780, EndMinute: 1080}},
	}

	windows := hours.Windows(d)
	if len(windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(windows))
	}
	if !windows[0].Start.Equal(at(d, 9, 0)) || !windows[0].End.Equal(at(d, 12, 0)) {
		t.Fatalf("unexpected first window: %+v", windows[0])
	}
	if !windows[1].Start.Equal(at(d, 13, 0)) || !windows[1].End.Equal(at(d, 18, 0)) {
		t.Fatalf("unexpected second window: %+v", windows[1])
	}

	if got := hours.Windows(d.AddDate(0, 0, 1)); got != nil {
		t.Fatalf("expected no windows on Tuesday, got %d", len(got))
	}
}

func TestWeeklyHoursWindows_MergesMalformedOverlap(t *testing.T) {
	d := day(t)
	// Stored rows that violate the no-overlap invariant are read as their union.
	hours := WeeklyHours{
		time.Monday: {{StartMinute: 540, EndMinute: 660}, {StartMinute: 600, EndMinute: 720}},
	}
	windows := hours.Windows(d)
	if len(windows) != 1 {
		t.Fatalf("expected 1 merged window, got %d", len(windows))
	}
	if !windows[0].Start.Equal(at(d, 9, 0)) || !windows[0].End.Equal(at(d, 12, 0)) {
		t.Fatalf("unexpected merged window: %+v", windows[0])
	}
}
