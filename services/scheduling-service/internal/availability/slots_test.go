package availability

import (
	"testing"
	"time"
)

func day(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC) // a Monday
}

func at(d time.Time, hour, min int) time.Time {
	return d.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

func TestFreeSlots_FullMorning(t *testing.T) {
	d := day(t)
	windows := []Interval{{Start: at(d, 9, 0), End: at(d, 12, 0)}}

	slots := FreeSlots(windows, nil, 30*time.Minute, 0, d)
	if len(slots) != 6 {
		t.Fatalf("expected 6 slots, got %d", len(slots))
	}
	for i, s := range slots {
		wantStart := at(d, 9, 0).Add(time.Duration(i) * 30 * time.Minute)
		if !s.Start.Equal(wantStart) || !s.End.Equal(wantStart.Add(30*time.Minute)) {
			t.Fatalf("slot %d: got [%s,%s)", i, s.Start.Format("15:04"), s.End.Format("15:04"))
		}
	}
}

func TestFreeSlots_ExcludesBusyIntervals(t *testing.T) {
	d := day(t)
	windows := []Interval{{Start: at(d, 9, 0), End: at(d, 12, 0)}}
	busy := []Interval{
		{Start: at(d, 10, 0), End: at(d, 10, 30)},
		{Start: at(d, 11, 0), End: at(d, 11, 45)},
	}

	slots := FreeSlots(windows, busy, 30*time.Minute, 0, d)
	for _, s := range slots {
		for _, b := range busy {
			if s.Overlaps(b) {
				t.Fatalf("slot [%s,%s) overlaps busy [%s,%s)",
					s.Start.Format("15:04"), s.End.Format("15:04"),
					b.Start.Format("15:04"), b.End.Format("15:04"))
			}
		}
	}
	// 09:00, 09:30, 10:30. The 11:45-12:00 remainder is too short.
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	if !slots[2].Start.Equal(at(d, 10, 30)) {
		t.Fatalf("expected third slot 10:30, got %s", slots[2].Start.Format("15:04"))
	}
}

func TestFreeSlots_RegionShorterThanDuration(t *testing.T) {
	d := day(t)
	windows := []Interval{{Start: at(d, 9, 0), End: at(d, 9, 20)}}
	if slots := FreeSlots(windows, nil, 30*time.Minute, 0, d); len(slots) != 0 {
		t.Fatalf("expected no slots, got %d", len(slots))
	}
}

func TestFreeSlots_StepOverride(t *testing.T) {
	d := day(t)
	windows := []Interval{{Start: at(d, 9, 0), End: at(d, 10, 0)}}

	slots := FreeSlots(windows, nil, 30*time.Minute, 15*time.Minute, d)
	// 09:00, 09:15, 09:30 — 09:45+30m would spill past the window.
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
}

func TestFreeSlots_SkipsPast(t *testing.T) {
	d := day(t)
	windows := []Interval{{Start: at(d, 9, 0), End: at(d, 10, 0)}}

	now := at(d, 9, 31)
	slots := FreeSlots(windows, nil, 15*time.Minute, 15*time.Minute, now)
	// 09:00, 09:15, 09:30 are in the past (start < now). 09:45 remains.
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(slots))
	}
	if !slots[0].Start.Equal(at(d, 9, 45)) {
		t.Fatalf("expected slot 09:45, got %s", slots[0].Start.Format("15:04"))
	}
}

func TestFreeSlots_Deterministic(t *testing.T) {
	d := day(t)
	windows := []Interval{
		{Start: at(d, 9, 0), End: at(d, 12, 0)},
		{Start: at(d, 14, 0), End: at(d, 17, 0)},
	}
	busy := []Interval{{Start: at(d, 15, 0), End: at(d, 15, 30)}}

	first := FreeSlots(windows, busy, 45*time.Minute, 0, d)
	second := FreeSlots(windows, busy, 45*time.Minute, 0, d)
	if len(first) != len(second) {
		t.Fatalf("slot count changed between identical calls: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Start.Equal(second[i].Start) || !first[i].End.Equal(second[i].End) {
			t.Fatalf("slot %d differs between identical calls", i)
		}
	}
}

func TestSubtract_MergesOverlappingWindows(t *testing.T) {
	d := day(t)
	// Malformed stored hours with overlapping ranges are treated as their union.
	windows := []Interval{
		{Start: at(d, 9, 0), End: at(d, 11, 0)},
		{Start: at(d, 10, 0), End: at(d, 12, 0)},
	}
	free := Subtract(windows, nil)
	if len(free) != 1 {
		t.Fatalf("expected 1 merged region, got %d", len(free))
	}
	if !free[0].Start.Equal(at(d, 9, 0)) || !free[0].End.Equal(at(d, 12, 0)) {
		t.Fatalf("expected [09:00,12:00), got [%s,%s)", free[0].Start.Format("15:04"), free[0].End.Format("15:04"))
	}
}

func TestSubtract_SplitsAroundBusy(t *testing.T) {
	d := day(t)
	windows := []Interval{{Start: at(d, 9, 0), End: at(d, 17, 0)}}
	busy := []Interval{{Start: at(d, 12, 0), End: at(d, 13, 0)}}

	free := Subtract(windows, busy)
	if len(free) != 2 {
		t.Fatalf("expected 2 free regions, got %d", len(free))
	}
	if !free[0].End.Equal(at(d, 12, 0)) || !free[1].Start.Equal(at(d, 13, 0)) {
		t.Fatalf("unexpected regions: %+v", free)
	}
}
