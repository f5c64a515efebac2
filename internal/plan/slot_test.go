package plan

import (
	"errors"
	"testing"
)

func TestFindSlotEarliestFit(t *testing.T) {
	t.Parallel()
	window := Window{StartHour: 6, EndHour: 23}

	// One busy hour mid-morning; the earliest fit is the window start.
	busy := []Interval{{Start: 9 * 60, End: 10 * 60}}
	slot, ok, err := FindSlot(1, nil, busy, window, 0)
	if err != nil {
		t.Fatalf("FindSlot error: %v", err)
	}
	if !ok {
		t.Fatal("expected a slot")
	}
	if slot.Start != 6*60 || slot.End != 7*60 {
		t.Fatalf("slot = %s-%s, want 06:00-07:00", FormatClock(slot.Start), FormatClock(slot.End))
	}
}

func TestFindSlotSkipsTightGaps(t *testing.T) {
	t.Parallel()
	window := Window{StartHour: 6, EndHour: 23}
	// 06:00-06:30 is free but too small for 1h; next fit is after 07:30.
	busy := []Interval{{Start: 6*60 + 30, End: 7*60 + 30}}
	slot, ok, err := FindSlot(1, nil, busy, window, 0)
	if err != nil || !ok {
		t.Fatalf("FindSlot = (%v, %v)", ok, err)
	}
	if slot.Start != 7*60+30 {
		t.Fatalf("slot start = %s, want 07:30", FormatClock(slot.Start))
	}
}

func TestFindSlotBufferAfterSessions(t *testing.T) {
	t.Parallel()
	window := Window{StartHour: 6, EndHour: 23}
	sessions := []Session{{Start: "06:00", End: "08:00", Status: SessionScheduled}}
	slot, ok, err := FindSlot(1, sessions, nil, window, 30)
	if err != nil || !ok {
		t.Fatalf("FindSlot = (%v, %v)", ok, err)
	}
	if slot.Start != 8*60+30 {
		t.Fatalf("slot start = %s, want 08:30 (30m buffer)", FormatClock(slot.Start))
	}
}

func TestFindSlotSkippedSessionsFreeTheirTime(t *testing.T) {
	t.Parallel()
	window := Window{StartHour: 6, EndHour: 23}
	sessions := []Session{{Start: "06:00", End: "08:00", Status: SessionSkippedUser}}
	slot, ok, err := FindSlot(1, sessions, nil, window, 0)
	if err != nil || !ok {
		t.Fatalf("FindSlot = (%v, %v)", ok, err)
	}
	if slot.Start != 6*60 {
		t.Fatalf("slot start = %s, want 06:00", FormatClock(slot.Start))
	}
}

func TestFindSlotMidnightEnd(t *testing.T) {
	t.Parallel()
	window := Window{StartHour: 22, EndHour: 24}
	sessions := []Session{{Start: "22:00", End: "23:00", Status: SessionScheduled}}
	slot, ok, err := FindSlot(1, sessions, nil, window, 0)
	if err != nil || !ok {
		t.Fatalf("FindSlot = (%v, %v)", ok, err)
	}
	if FormatClock(slot.End) != "24:00" {
		t.Fatalf("slot end = %s, want 24:00", FormatClock(slot.End))
	}
}

func TestFindSlotNoRoom(t *testing.T) {
	t.Parallel()
	window := Window{StartHour: 9, EndHour: 10}
	_, ok, err := FindSlot(2, nil, nil, window, 0)
	if err != nil {
		t.Fatalf("FindSlot error: %v", err)
	}
	if ok {
		t.Fatal("expected no slot in a 1h window for 2h")
	}
}

func TestFindSlotRejectsNonPositiveDuration(t *testing.T) {
	t.Parallel()
	window := Window{StartHour: 6, EndHour: 23}
	for _, d := range []float64{0, -1} {
		if _, _, err := FindSlot(d, nil, nil, window, 0); !errors.Is(err, ErrBadDuration) {
			t.Fatalf("FindSlot(%v) = %v, want ErrBadDuration", d, err)
		}
	}
}

func TestIntervalOverlaps(t *testing.T) {
	t.Parallel()
	a := Interval{Start: 60, End: 120}
	if !a.Overlaps(Interval{Start: 90, End: 150}) {
		t.Fatal("expected overlap")
	}
	// Half-open: touching intervals do not overlap.
	if a.Overlaps(Interval{Start: 120, End: 180}) {
		t.Fatal("touching intervals must not overlap")
	}
}
