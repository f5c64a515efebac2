package plan

import "testing"

func capacitySettings() Settings {
	return Settings{
		DailyAvailableHours: 6,
		DateDailyHours:      map[string]float64{"2026-09-05": 2},
	}
}

func TestCapacityTrackerLedger(t *testing.T) {
	t.Parallel()
	ct := NewCapacityTracker(capacitySettings(), map[string]float64{"2026-09-01": 2})

	if got := ct.Available("2026-09-01"); got != 4 {
		t.Fatalf("Available = %v, want 4", got)
	}
	if got := ct.Remaining("2026-09-01"); got != 4 {
		t.Fatalf("Remaining = %v, want 4", got)
	}
	if got := ct.Available("2026-09-05"); got != 2 {
		t.Fatalf("date override Available = %v, want 2", got)
	}

	if !ct.CanPlace("2026-09-01", 4) {
		t.Fatal("CanPlace(4) on a 4h day must succeed")
	}
	if ct.CanPlace("2026-09-01", 4.5) {
		t.Fatal("CanPlace(4.5) on a 4h day must fail")
	}
	if ct.CanPlace("2026-09-01", 0) {
		t.Fatal("CanPlace(0) must fail")
	}

	ct.Debit("2026-09-01", 3)
	if got := ct.Remaining("2026-09-01"); got != 1 {
		t.Fatalf("Remaining after debit = %v, want 1", got)
	}
	ct.Credit("2026-09-01", 3)
	if got := ct.Remaining("2026-09-01"); got != 4 {
		t.Fatalf("Remaining after credit = %v, want 4", got)
	}

	// Overcommitted days floor at zero rather than going negative.
	ct.Debit("2026-09-05", 5)
	if got := ct.Remaining("2026-09-05"); got != 0 {
		t.Fatalf("Remaining on overcommitted day = %v, want 0", got)
	}
}

func TestCapacityTrackerSeed(t *testing.T) {
	t.Parallel()
	ct := NewCapacityTracker(capacitySettings(), nil)
	ct.Seed(PlanSet{
		"2026-09-02": {Date: "2026-09-02", Sessions: []Session{
			{TaskID: "a", AllocatedHours: 2, Status: SessionScheduled},
			{TaskID: "b", AllocatedHours: 1, Status: SessionCompleted},
			{TaskID: "c", AllocatedHours: 1, Status: SessionSkippedUser},
		}},
	})
	// Completed and skipped sessions no longer hold capacity.
	if got := ct.Remaining("2026-09-02"); got != 4 {
		t.Fatalf("Remaining after seed = %v, want 4", got)
	}
}
