package plan

import (
	"strings"
	"testing"
)

func TestFindOverlapsDetectsContainedBlocks(t *testing.T) {
	t.Parallel()
	// The long commitment sorts first and is never adjacent to the session,
	// so the collision only shows up when every open block is checked.
	date := "2026-09-03"
	commitments := []Commitment{
		{ID: "c1", Title: "conference", Dates: []string{date}, Start: "06:00", End: "20:00"},
		{ID: "c2", Title: "standup", Dates: []string{date}, Start: "06:30", End: "07:00"},
	}
	plans := PlanSet{
		date: DayPlan{Date: date, Sessions: []Session{
			{ID: "s1", TaskID: "t1", Date: date, Start: "10:00", End: "11:00", AllocatedHours: 1, Status: SessionScheduled},
		}},
	}

	violations, err := FindOverlaps(plans, commitments)
	if err != nil {
		t.Fatalf("FindOverlaps error: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("violations = %v, want exactly one", violations)
	}
	v := violations[0].String()
	if !strings.Contains(v, "task t1") || !strings.Contains(v, "commitment 06:00-20:00") {
		t.Fatalf("violation %q does not name the session and the containing commitment", v)
	}
}

func TestFindOverlapsSessionAgainstEarlierSession(t *testing.T) {
	t.Parallel()
	date := "2026-09-03"
	plans := PlanSet{
		date: DayPlan{Date: date, Sessions: []Session{
			{ID: "s1", TaskID: "t1", Date: date, Start: "06:00", End: "12:00", AllocatedHours: 6, Status: SessionScheduled},
			{ID: "s2", TaskID: "t2", Date: date, Start: "07:00", End: "08:00", AllocatedHours: 1, Status: SessionScheduled},
			{ID: "s3", TaskID: "t3", Date: date, Start: "09:00", End: "10:00", AllocatedHours: 1, Status: SessionScheduled},
		}},
	}
	violations, err := FindOverlaps(plans, nil)
	if err != nil {
		t.Fatalf("FindOverlaps error: %v", err)
	}
	// s2 and s3 each collide with s1 but not with each other.
	if len(violations) != 2 {
		t.Fatalf("violations = %v, want two", violations)
	}
}

func TestFindOverlapsIgnoresSkippedAndCommitmentPairs(t *testing.T) {
	t.Parallel()
	date := "2026-09-03"
	commitments := []Commitment{
		{ID: "c1", Title: "gym", Dates: []string{date}, Start: "06:00", End: "08:00"},
		{ID: "c2", Title: "call", Dates: []string{date}, Start: "07:00", End: "07:30"},
	}
	plans := PlanSet{
		date: DayPlan{Date: date, Sessions: []Session{
			{ID: "s1", TaskID: "t1", Date: date, Start: "06:30", End: "07:30", AllocatedHours: 1, Status: SessionSkippedUser},
			{ID: "s2", TaskID: "t2", Date: date, Start: "09:00", End: "10:00", AllocatedHours: 1, Status: SessionScheduled},
		}},
	}
	violations, err := FindOverlaps(plans, commitments)
	if err != nil {
		t.Fatalf("FindOverlaps error: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("violations = %v, want none", violations)
	}
}
