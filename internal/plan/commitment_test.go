package plan

import (
	"testing"
	"time"
)

// 2026-09-07 is a Monday.
const monday = "2026-09-07"

func TestExpandCommitmentsWeekdayAndCronAgree(t *testing.T) {
	t.Parallel()
	weekday := Commitment{
		ID: "gym", Title: "gym",
		Recurring:  true,
		DaysOfWeek: []time.Weekday{time.Monday},
		Start:      "18:00", End: "19:00",
	}
	cronSpec := Commitment{
		ID: "gym-cron", Title: "gym",
		Recurring: true,
		CronSpec:  "0 0 * * MON",
		Start:     "18:00", End: "19:00",
	}

	week, err := DateRange(monday, "2026-09-13")
	if err != nil {
		t.Fatal(err)
	}
	for _, date := range week {
		a, err := ExpandCommitments([]Commitment{weekday}, date)
		if err != nil {
			t.Fatalf("weekday expand %s: %v", date, err)
		}
		b, err := ExpandCommitments([]Commitment{cronSpec}, date)
		if err != nil {
			t.Fatalf("cron expand %s: %v", date, err)
		}
		if len(a.Busy) != len(b.Busy) {
			t.Fatalf("%s: weekday and cron disagree (%d vs %d intervals)", date, len(a.Busy), len(b.Busy))
		}
		wantBusy := date == monday
		if (len(a.Busy) == 1) != wantBusy {
			t.Fatalf("%s: busy = %v, want occurrence = %v", date, a.Busy, wantBusy)
		}
	}
}

func TestExpandCommitmentsOneOffAndRange(t *testing.T) {
	t.Parallel()
	oneOff := Commitment{
		ID: "dentist", Title: "dentist",
		Dates: []string{"2026-09-10"},
		Start: "10:00", End: "11:30",
	}
	day, err := ExpandCommitments([]Commitment{oneOff}, "2026-09-10")
	if err != nil {
		t.Fatal(err)
	}
	if len(day.Busy) != 1 || day.Busy[0].Start != 600 || day.Busy[0].End != 690 {
		t.Fatalf("one-off busy = %v", day.Busy)
	}
	if day, _ := ExpandCommitments([]Commitment{oneOff}, "2026-09-11"); len(day.Busy) != 0 {
		t.Fatal("one-off must not occur on other dates")
	}

	bounded := Commitment{
		ID: "course", Title: "course",
		Recurring:  true,
		DaysOfWeek: []time.Weekday{time.Monday},
		StartDate:  "2026-09-14",
		EndDate:    "2026-09-28",
		Start:      "09:00", End: "10:00",
	}
	if day, _ := ExpandCommitments([]Commitment{bounded}, monday); len(day.Busy) != 0 {
		t.Fatal("recurrence before start_date must not occur")
	}
	if day, _ := ExpandCommitments([]Commitment{bounded}, "2026-09-14"); len(day.Busy) != 1 {
		t.Fatal("recurrence inside range must occur")
	}
	if day, _ := ExpandCommitments([]Commitment{bounded}, "2026-10-05"); len(day.Busy) != 0 {
		t.Fatal("recurrence after end_date must not occur")
	}
}

func TestExpandCommitmentsOverrides(t *testing.T) {
	t.Parallel()
	c := Commitment{
		ID: "standup", Title: "standup",
		Recurring:  true,
		DaysOfWeek: []time.Weekday{time.Monday},
		Start:      "09:00", End: "09:30",
		Overrides: map[string]CommitmentOverride{
			monday:       {Deleted: true},
			"2026-09-14": {Start: "14:00", End: "15:00"},
		},
	}
	if day, _ := ExpandCommitments([]Commitment{c}, monday); len(day.Busy) != 0 {
		t.Fatal("deleted override must remove the occurrence")
	}
	day, err := ExpandCommitments([]Commitment{c}, "2026-09-14")
	if err != nil {
		t.Fatal(err)
	}
	if len(day.Busy) != 1 || day.Busy[0].Start != 14*60 || day.Busy[0].End != 15*60 {
		t.Fatalf("moved override busy = %v, want 14:00-15:00", day.Busy)
	}
}

func TestExpandCommitmentsAllDay(t *testing.T) {
	t.Parallel()
	c := Commitment{ID: "trip", Title: "trip", Dates: []string{"2026-09-10"}, AllDay: true}
	day, err := ExpandCommitments([]Commitment{c}, "2026-09-10")
	if err != nil {
		t.Fatal(err)
	}
	if !day.AllDay {
		t.Fatal("expected an all-day block")
	}
}

func TestExpandCommitmentsRejectsInvertedInterval(t *testing.T) {
	t.Parallel()
	c := Commitment{ID: "x", Title: "x", Dates: []string{"2026-09-10"}, Start: "12:00", End: "11:00"}
	if _, err := ExpandCommitments([]Commitment{c}, "2026-09-10"); err == nil {
		t.Fatal("expected error for end before start")
	}
}

func TestCommittedHours(t *testing.T) {
	t.Parallel()
	settings := Settings{DailyAvailableHours: 6, WindowStartHour: 6, WindowEndHour: 23}

	// Commitment partly outside the window: only the in-window part counts.
	early := Commitment{ID: "e", Title: "e", Dates: []string{"2026-09-10"}, Start: "05:00", End: "07:00"}
	h, err := CommittedHours([]Commitment{early}, "2026-09-10", settings)
	if err != nil {
		t.Fatal(err)
	}
	if h != 1 {
		t.Fatalf("CommittedHours = %v, want 1 (window-clipped)", h)
	}

	// All-day occurrences consume the whole capacity.
	trip := Commitment{ID: "t", Title: "t", Dates: []string{"2026-09-10"}, AllDay: true}
	h, err = CommittedHours([]Commitment{trip}, "2026-09-10", settings)
	if err != nil {
		t.Fatal(err)
	}
	if h != 6 {
		t.Fatalf("CommittedHours all-day = %v, want 6", h)
	}

	// Hours never exceed the day's capacity.
	long := Commitment{ID: "l", Title: "l", Dates: []string{"2026-09-10"}, Start: "06:00", End: "22:00"}
	h, err = CommittedHours([]Commitment{long}, "2026-09-10", settings)
	if err != nil {
		t.Fatal(err)
	}
	if h != 6 {
		t.Fatalf("CommittedHours capped = %v, want 6", h)
	}
}
