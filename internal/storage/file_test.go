package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"planweave/internal/plan"
	logx "planweave/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	cfg := Config{Driver: "file", Path: filepath.Join(t.TempDir(), "planner.json")}
	st, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none", " None "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Errorf("Open(%q): %v", driver, err)
		}
		if st != nil {
			t.Errorf("Open(%q) returned a store", driver)
		}
	}
	if _, err := Open(Config{Driver: "bolt"}, logx.Nop()); err == nil {
		t.Error("unknown driver accepted")
	}
}

func TestFilePlansRoundTrip(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	set, found, err := st.LoadPlans(ctx)
	if err != nil || found || set != nil {
		t.Fatalf("LoadPlans on empty store = (%v, %v, %v)", set, found, err)
	}

	want := plan.PlanSet{
		"2026-09-01": {
			Date: "2026-09-01",
			Sessions: []plan.Session{{
				ID: "t1#1", TaskID: "t1", Date: "2026-09-01",
				Start: "06:00", End: "08:00", AllocatedHours: 2, Number: 1,
				Status: plan.SessionScheduled,
			}},
			TotalHours:     2,
			AvailableHours: 8,
		},
	}
	if err := st.SavePlans(ctx, want); err != nil {
		t.Fatalf("SavePlans: %v", err)
	}
	got, found, err := st.LoadPlans(ctx)
	if err != nil {
		t.Fatalf("LoadPlans: %v", err)
	}
	if !found {
		t.Fatal("saved plans not found")
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}

	// A second save replaces the snapshot wholesale.
	if err := st.SavePlans(ctx, plan.PlanSet{}); err != nil {
		t.Fatalf("SavePlans (empty): %v", err)
	}
	got, _, err = st.LoadPlans(ctx)
	if err != nil {
		t.Fatalf("LoadPlans: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("stale dates survived the replace: %v", got.Dates())
	}
}

func TestFileRedistributionHistory(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	got, err := st.RecentRedistributions(ctx, 10)
	if err != nil || got != nil {
		t.Fatalf("RecentRedistributions on empty store = (%v, %v)", got, err)
	}

	for i := 0; i < 5; i++ {
		e := RedistributionAudit{Moved: i, Message: "run"}
		if err := st.AppendRedistribution(ctx, e); err != nil {
			t.Fatalf("AppendRedistribution %d: %v", i, err)
		}
	}

	got, err = st.RecentRedistributions(ctx, 3)
	if err != nil {
		t.Fatalf("RecentRedistributions: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	// The newest entries win.
	for i, e := range got {
		if e.Moved != i+2 {
			t.Errorf("entry %d: moved = %d, want %d", i, e.Moved, i+2)
		}
		if e.ID == "" {
			t.Errorf("entry %d: no ID assigned", i)
		}
		if e.At.IsZero() {
			t.Errorf("entry %d: no timestamp assigned", i)
		}
	}

	all, err := st.RecentRedistributions(ctx, 0)
	if err != nil {
		t.Fatalf("RecentRedistributions (no limit): %v", err)
	}
	if len(all) != 5 {
		t.Errorf("len = %d, want 5", len(all))
	}
}
