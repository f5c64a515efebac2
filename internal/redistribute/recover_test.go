package redistribute

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"planweave/internal/plan"
)

const testToday = "2026-09-01"

func testSettings() plan.Settings {
	return plan.Settings{
		DailyAvailableHours: 8,
		WindowStartHour:     6,
		WindowEndHour:       23,
		MinSessionMinutes:   15,
		MaxSessionHours:     4,
	}
}

func missedPlan(date string, sessions ...plan.Session) plan.PlanSet {
	dp := plan.DayPlan{Date: date, Sessions: sessions, AvailableHours: 8}
	for _, s := range sessions {
		dp.TotalHours = plan.RoundHours(dp.TotalHours + s.AllocatedHours)
	}
	return plan.PlanSet{date: dp}
}

func TestMissedSessionsRecoversToEarliestSlot(t *testing.T) {
	t.Parallel()
	tasks := []plan.Task{{ID: "t1", Title: "Read", EstimatedHours: 4, Status: plan.TaskPending}}
	plans := missedPlan("2026-08-30", plan.Session{
		ID: "t1#1", TaskID: "t1", Date: "2026-08-30",
		Start: "10:00", End: "12:00", AllocatedHours: 2, Number: 1,
		Status: plan.SessionScheduled,
	})

	res, err := MissedSessions(plans, tasks, testSettings(), nil, Options{Today: testToday})
	if err != nil {
		t.Fatalf("MissedSessions: %v", err)
	}
	if res.RollbackPerformed {
		t.Fatalf("unexpected rollback: %v", res.Reasons)
	}
	if len(res.Moved) != 1 || len(res.Failed) != 0 {
		t.Fatalf("moved=%d failed=%d, want 1/0", len(res.Moved), len(res.Failed))
	}
	m := res.Moved[0]
	if m.FromDate != "2026-08-30" || m.ToDate != testToday {
		t.Errorf("moved %s -> %s, want 2026-08-30 -> %s", m.FromDate, m.ToDate, testToday)
	}
	if m.NewStart != "06:00" || m.NewEnd != "08:00" {
		t.Errorf("new slot %s-%s, want 06:00-08:00", m.NewStart, m.NewEnd)
	}

	dp, ok := res.Plans[testToday]
	if !ok || len(dp.Sessions) != 1 {
		t.Fatalf("expected one session on %s, got %+v", testToday, dp)
	}
	s := dp.Sessions[0]
	if s.Status != plan.SessionRedistributed {
		t.Errorf("status = %s, want %s", s.Status, plan.SessionRedistributed)
	}
	if s.OriginalDate != "2026-08-30" || s.OriginalStart != "10:00" {
		t.Errorf("original slot not recorded: %+v", s)
	}
	if len(s.History) != 1 || s.History[0].Reason != "missed session recovery" {
		t.Errorf("history = %+v", s.History)
	}
	if len(res.Plans["2026-08-30"].Sessions) != 0 {
		t.Errorf("session still present on old date")
	}

	// The caller's set must come back untouched.
	if got := plans["2026-08-30"].Sessions[0].Status; got != plan.SessionScheduled {
		t.Errorf("input mutated: status = %s", got)
	}
}

func TestMissedSessionsDeadlinePassedFails(t *testing.T) {
	t.Parallel()
	tasks := []plan.Task{{
		ID: "t1", Title: "Late", EstimatedHours: 2,
		Deadline: "2026-08-20", DeadlineType: plan.DeadlineHard,
		Status: plan.TaskPending,
	}}
	plans := missedPlan("2026-08-15", plan.Session{
		ID: "t1#1", TaskID: "t1", Date: "2026-08-15",
		Start: "09:00", End: "11:00", AllocatedHours: 2, Number: 1,
		Status: plan.SessionScheduled,
	})

	res, err := MissedSessions(plans, tasks, testSettings(), nil, Options{Today: testToday})
	if err != nil {
		t.Fatalf("MissedSessions: %v", err)
	}
	if len(res.Failed) != 1 || len(res.Moved) != 0 {
		t.Fatalf("moved=%d failed=%d, want 0/1", len(res.Moved), len(res.Failed))
	}
	if res.Failed[0].Reason != "deadline already passed" {
		t.Errorf("reason = %q", res.Failed[0].Reason)
	}
	if got := res.Plans["2026-08-15"].Sessions[0].Status; got != plan.SessionFailed {
		t.Errorf("status = %s, want %s", got, plan.SessionFailed)
	}
}

func TestMissedSessionsProcessesByPriority(t *testing.T) {
	t.Parallel()
	tasks := []plan.Task{
		{ID: "a", Title: "Urgent", EstimatedHours: 4, Important: true, Status: plan.TaskPending},
		{ID: "b", Title: "Casual", EstimatedHours: 4, Status: plan.TaskPending},
	}
	plans := missedPlan("2026-08-31",
		plan.Session{ID: "b#1", TaskID: "b", Date: "2026-08-31", Start: "06:00", End: "08:00", AllocatedHours: 2, Status: plan.SessionScheduled},
		plan.Session{ID: "a#1", TaskID: "a", Date: "2026-08-31", Start: "09:00", End: "11:00", AllocatedHours: 2, Status: plan.SessionScheduled},
	)

	res, err := MissedSessions(plans, tasks, testSettings(), nil, Options{Today: testToday})
	if err != nil {
		t.Fatalf("MissedSessions: %v", err)
	}
	if len(res.Moved) != 2 {
		t.Fatalf("moved = %d, want 2", len(res.Moved))
	}
	// The important task wins the earlier slot.
	if res.Moved[0].TaskID != "a" || res.Moved[0].NewStart != "06:00" {
		t.Errorf("first move = %+v, want task a at 06:00", res.Moved[0])
	}
	if res.Moved[1].TaskID != "b" || res.Moved[1].NewStart != "08:00" {
		t.Errorf("second move = %+v, want task b at 08:00", res.Moved[1])
	}
}

func TestMissedSessionsSkipsManualAndTerminal(t *testing.T) {
	t.Parallel()
	tasks := []plan.Task{{ID: "t1", Title: "Read", EstimatedHours: 4, Status: plan.TaskPending}}
	plans := missedPlan("2026-08-30",
		plan.Session{ID: "t1#1", TaskID: "t1", Date: "2026-08-30", Start: "06:00", End: "07:00", AllocatedHours: 1, Status: plan.SessionCompleted},
		plan.Session{ID: "t1#2", TaskID: "t1", Date: "2026-08-30", Start: "08:00", End: "09:00", AllocatedHours: 1, Status: plan.SessionScheduled, ManualOverride: true},
	)

	res, err := MissedSessions(plans, tasks, testSettings(), nil, Options{Today: testToday})
	if err != nil {
		t.Fatalf("MissedSessions: %v", err)
	}
	if len(res.Moved) != 0 || len(res.Failed) != 0 {
		t.Fatalf("moved=%d failed=%d, want 0/0", len(res.Moved), len(res.Failed))
	}
	if res.Message != "no missed sessions" {
		t.Errorf("message = %q", res.Message)
	}
	for i, s := range res.Plans["2026-08-30"].Sessions {
		if s.Status == plan.SessionMissed && s.ManualOverride {
			t.Errorf("session %d: manual session flagged missed", i)
		}
	}
}

func TestMissedSessionsRollsBackOnOverlap(t *testing.T) {
	t.Parallel()
	tasks := []plan.Task{
		{ID: "t1", Title: "Read", EstimatedHours: 4, Status: plan.TaskPending},
		{ID: "t2", Title: "Math", EstimatedHours: 4, Status: plan.TaskPending},
	}
	// A pre-existing collision on a future date survives any run, so the
	// post-check must trip and the batch must be discarded.
	broken := plan.DayPlan{Date: "2026-09-05", Sessions: []plan.Session{
		{ID: "t1#9", TaskID: "t1", Date: "2026-09-05", Start: "06:00", End: "08:00", AllocatedHours: 2, Status: plan.SessionScheduled},
		{ID: "t2#9", TaskID: "t2", Date: "2026-09-05", Start: "07:00", End: "09:00", AllocatedHours: 2, Status: plan.SessionScheduled},
	}, TotalHours: 4}
	plans := missedPlan("2026-08-30", plan.Session{
		ID: "t1#1", TaskID: "t1", Date: "2026-08-30",
		Start: "10:00", End: "11:00", AllocatedHours: 1, Status: plan.SessionScheduled,
	})
	plans["2026-09-05"] = broken

	res, err := MissedSessions(plans, tasks, testSettings(), nil, Options{Today: testToday})
	if err != nil {
		t.Fatalf("MissedSessions: %v", err)
	}
	if !res.RollbackPerformed {
		t.Fatal("expected rollback")
	}
	if len(res.Reasons) == 0 {
		t.Error("rollback without reasons")
	}
	if !strings.Contains(res.Message, "discarded") {
		t.Errorf("message = %q", res.Message)
	}
	if !reflect.DeepEqual(res.Plans, plans) {
		t.Error("rollback did not return the original set")
	}

	opts := Options{Today: testToday, DisableRollback: true}
	res, err = MissedSessions(plans, tasks, testSettings(), nil, opts)
	if err != nil {
		t.Fatalf("MissedSessions (no rollback): %v", err)
	}
	if res.RollbackPerformed {
		t.Error("rollback despite DisableRollback")
	}
	if len(res.Moved) != 1 {
		t.Errorf("moved = %d, want 1", len(res.Moved))
	}
	if len(res.Reasons) == 0 {
		t.Error("violations not reported")
	}
}

func TestMissedSessionsRequiresToday(t *testing.T) {
	t.Parallel()
	if _, err := MissedSessions(plan.PlanSet{}, nil, testSettings(), nil, Options{}); err == nil {
		t.Fatal("expected error for missing today")
	}
}

func TestMarkMissed(t *testing.T) {
	t.Parallel()
	plans := plan.PlanSet{
		"2026-08-30": {Date: "2026-08-30", Sessions: []plan.Session{
			{ID: "s1", Status: plan.SessionScheduled},
			{ID: "s2", Status: plan.SessionCompleted},
			{ID: "s3", Status: plan.SessionScheduled, ManualOverride: true},
			{ID: "s4", Status: plan.SessionInProgress},
		}},
		testToday: {Date: testToday, Sessions: []plan.Session{
			{ID: "s5", Status: plan.SessionScheduled},
		}},
	}

	out := MarkMissed(plans, testToday)
	want := map[string]plan.SessionStatus{
		"s1": plan.SessionMissed,
		"s2": plan.SessionCompleted,
		"s3": plan.SessionScheduled,
		"s4": plan.SessionMissed,
		"s5": plan.SessionScheduled,
	}
	for _, dp := range out {
		for _, s := range dp.Sessions {
			if s.Status != want[s.ID] {
				t.Errorf("%s: status = %s, want %s", s.ID, s.Status, want[s.ID])
			}
		}
	}
	if plans["2026-08-30"].Sessions[0].Status != plan.SessionScheduled {
		t.Error("input mutated")
	}
}

func TestCanTransition(t *testing.T) {
	t.Parallel()
	tests := []struct {
		from, to plan.SessionStatus
		want     bool
	}{
		{plan.SessionScheduled, plan.SessionInProgress, true},
		{plan.SessionScheduled, plan.SessionCompleted, true},
		{plan.SessionScheduled, plan.SessionSkippedUser, true},
		{plan.SessionScheduled, plan.SessionMissed, true},
		{plan.SessionScheduled, plan.SessionRedistributed, false},
		{plan.SessionScheduled, plan.SessionFailed, false},
		{plan.SessionInProgress, plan.SessionCompleted, true},
		{plan.SessionInProgress, plan.SessionScheduled, false},
		{plan.SessionMissed, plan.SessionRedistributed, true},
		{plan.SessionMissed, plan.SessionFailed, true},
		{plan.SessionMissed, plan.SessionCompleted, false},
		{plan.SessionRedistributed, plan.SessionMissed, true},
		{plan.SessionRedistributed, plan.SessionInProgress, true},
		{plan.SessionCompleted, plan.SessionScheduled, false},
		{plan.SessionSkippedUser, plan.SessionScheduled, false},
		{plan.SessionFailed, plan.SessionRedistributed, false},
		{plan.SessionScheduled, plan.SessionScheduled, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestCanTransitionAt(t *testing.T) {
	t.Parallel()
	sess := plan.Session{
		Date: "2026-09-01", Start: "09:00", End: "10:00",
		Status: plan.SessionScheduled,
	}
	at := func(date string, hour, min int) time.Time {
		d, err := plan.ParseDate(date)
		if err != nil {
			t.Fatalf("ParseDate(%q): %v", date, err)
		}
		return d.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
	}

	if !CanTransitionAt(sess, plan.SessionInProgress, at("2026-09-01", 9, 30)) {
		t.Error("start inside the block rejected")
	}
	if !CanTransitionAt(sess, plan.SessionInProgress, at("2026-09-01", 9, 0)) {
		t.Error("start at block open rejected")
	}
	if CanTransitionAt(sess, plan.SessionInProgress, at("2026-09-01", 10, 0)) {
		t.Error("start at block close accepted")
	}
	if CanTransitionAt(sess, plan.SessionInProgress, at("2026-09-01", 8, 59)) {
		t.Error("start before the block accepted")
	}
	if CanTransitionAt(sess, plan.SessionInProgress, at("2026-09-02", 9, 30)) {
		t.Error("start on the wrong date accepted")
	}

	// Only the in_progress edge consults the clock.
	if !CanTransitionAt(sess, plan.SessionSkippedUser, at("2026-09-05", 3, 0)) {
		t.Error("clock applied to a skip edge")
	}
	done := sess
	done.Status = plan.SessionCompleted
	if CanTransitionAt(done, plan.SessionInProgress, at("2026-09-01", 9, 30)) {
		t.Error("state machine bypassed")
	}

	// A session ending at midnight stays startable until the day rolls over.
	late := plan.Session{Date: "2026-09-01", Start: "22:00", End: "24:00", Status: plan.SessionScheduled}
	if !CanTransitionAt(late, plan.SessionInProgress, at("2026-09-01", 23, 59)) {
		t.Error("late-night start rejected")
	}
}

func TestScoreBands(t *testing.T) {
	t.Parallel()
	opts, err := Options{Today: testToday}.withDefaults()
	if err != nil {
		t.Fatalf("withDefaults: %v", err)
	}
	sess := plan.Session{Date: "2026-08-30", AllocatedHours: 2}

	plain := score(sess, plan.Task{ID: "a"}, testToday, opts)
	important := score(sess, plan.Task{ID: "b", Important: true}, testToday, opts)
	overdue := score(sess, plan.Task{ID: "c", Deadline: "2026-08-25", DeadlineType: plan.DeadlineHard}, testToday, opts)
	soon := score(sess, plan.Task{ID: "d", Deadline: "2026-09-03", DeadlineType: plan.DeadlineHard}, testToday, opts)
	far := score(sess, plan.Task{ID: "e", Deadline: "2026-10-20", DeadlineType: plan.DeadlineHard}, testToday, opts)

	// Importance dominates any deadline urgency.
	if important <= overdue {
		t.Errorf("important %d <= overdue %d", important, overdue)
	}
	if overdue-plain != opts.UrgencyMax {
		t.Errorf("overdue urgency = %d, want %d", overdue-plain, opts.UrgencyMax)
	}
	if soon <= far {
		t.Errorf("soon %d <= far %d", soon, far)
	}
	if far != plain {
		t.Errorf("distant deadline contributed %d", far-plain)
	}
}
