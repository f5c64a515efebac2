package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"planweave/internal/plan"
)

const sampleYAML = `
logging:
  level: debug
  console: true
planner:
  mode: even
  horizon_days: 14
settings:
  daily_available_hours: 6
  work_days: [mon, tue, wed, thu, fri]
  window_start_hour: 6
  window_end_hour: 23
  buffer_days: 1
tasks:
  - id: read
    title: Read chapters
    estimated_hours: 4
    deadline: "2026-09-15"
commitments:
  - title: Lecture
    recurring: true
    days_of_week: [mon, wed]
    start: "09:00"
    end: "11:00"
`

const sampleJSON = `{
  "logging": {"level": "debug", "console": true},
  "planner": {"mode": "even", "horizon_days": 14},
  "settings": {
    "daily_available_hours": 6,
    "work_days": ["mon", "tue", "wed", "thu", "fri"],
    "window_start_hour": 6,
    "window_end_hour": 23,
    "buffer_days": 1
  },
  "tasks": [
    {"id": "read", "title": "Read chapters", "estimated_hours": 4, "deadline": "2026-09-15"}
  ],
  "commitments": [
    {"title": "Lecture", "recurring": true, "days_of_week": ["mon", "wed"], "start": "09:00", "end": "11:00"}
  ]
}`

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadYAMLAndJSONAgree(t *testing.T) {
	t.Parallel()
	fromYAML, err := NewManager(writeConfig(t, "c.yaml", sampleYAML)).Load()
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	fromJSON, err := NewManager(writeConfig(t, "c.json", sampleJSON)).Load()
	if err != nil {
		t.Fatalf("load json: %v", err)
	}
	if !reflect.DeepEqual(fromYAML, fromJSON) {
		t.Errorf("formats disagree:\nyaml %+v\njson %+v", fromYAML, fromJSON)
	}
	if err := fromYAML.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "c.yaml", "settings:\n  daily_available_hours: 6\n  dayly_hours: 4\n")
	if _, err := ReadFile(path); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "c.json", `{"settings": {"daily_available_hours": 6}} {"extra": 1}`)
	if _, err := ReadFile(path); err == nil {
		t.Fatal("trailing data accepted")
	}
}

func TestPlanSettingsConversion(t *testing.T) {
	t.Parallel()
	cfg := &Config{
		Planner: PlannerConfig{Mode: "even"},
		Settings: SettingsConfig{
			DailyAvailableHours: 6,
			WorkDays:            []string{"Friday", "mon", "MON"},
			WindowStartHour:     6,
			WindowEndHour:       23,
			WeekdayWindows:      map[string]WindowConfig{"sat": {StartHour: 10, EndHour: 14}},
			DateDailyHours:      map[string]float64{"2026-09-05": 2},
		},
	}
	s, err := cfg.PlanSettings()
	if err != nil {
		t.Fatalf("PlanSettings: %v", err)
	}
	if s.Mode != plan.ModeEven {
		t.Errorf("mode = %s", s.Mode)
	}
	// Deduped and sorted.
	want := []time.Weekday{time.Monday, time.Friday}
	if !reflect.DeepEqual(s.WorkDays, want) {
		t.Errorf("work days = %v, want %v", s.WorkDays, want)
	}
	if w := s.WeekdayWindows[time.Saturday]; w.StartHour != 10 || w.EndHour != 14 {
		t.Errorf("saturday window = %+v", w)
	}
	if s.DateDailyHours["2026-09-05"] != 2 {
		t.Errorf("date override = %v", s.DateDailyHours)
	}

	cfg.Settings.WorkDays = []string{"moonday"}
	if _, err := cfg.PlanSettings(); err == nil {
		t.Error("unknown weekday accepted")
	}
	cfg.Settings.WorkDays = nil
	cfg.Planner.Mode = "chaotic"
	if _, err := cfg.PlanSettings(); err == nil {
		t.Error("unknown mode accepted")
	}
}

func TestPlanTasksDefaultsAndValidation(t *testing.T) {
	t.Parallel()
	cfg := &Config{Tasks: []TaskConfig{
		{Title: "With deadline", EstimatedHours: 2, Deadline: "2026-09-15"},
		{Title: "Without deadline", EstimatedHours: 1},
	}}
	tasks, err := cfg.PlanTasks()
	if err != nil {
		t.Fatalf("PlanTasks: %v", err)
	}
	if tasks[0].DeadlineType != plan.DeadlineSoft {
		t.Errorf("deadline type = %s, want soft when deadline set", tasks[0].DeadlineType)
	}
	if tasks[1].DeadlineType != plan.DeadlineNone {
		t.Errorf("deadline type = %s, want none", tasks[1].DeadlineType)
	}
	for i, tk := range tasks {
		if tk.ID == "" {
			t.Errorf("task %d: no generated id", i)
		}
		if tk.TargetFrequency != plan.FreqFlexible || tk.Status != plan.TaskPending {
			t.Errorf("task %d: defaults = %s/%s", i, tk.TargetFrequency, tk.Status)
		}
	}

	bad := []struct {
		name  string
		tasks []TaskConfig
	}{
		{"duplicate id", []TaskConfig{
			{ID: "x", Title: "a", EstimatedHours: 1},
			{ID: "x", Title: "b", EstimatedHours: 1},
		}},
		{"missing title", []TaskConfig{{EstimatedHours: 1}}},
		{"zero estimate", []TaskConfig{{Title: "a"}}},
		{"bad frequency", []TaskConfig{{Title: "a", EstimatedHours: 1, Frequency: "hourly"}}},
		{"bad deadline type", []TaskConfig{{Title: "a", EstimatedHours: 1, Deadline: "2026-09-15", DeadlineType: "firm"}}},
		{"bad status", []TaskConfig{{Title: "a", EstimatedHours: 1, Status: "paused"}}},
		{"bad deadline date", []TaskConfig{{Title: "a", EstimatedHours: 1, Deadline: "15/09/2026"}}},
	}
	for _, tt := range bad {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &Config{Tasks: tt.tasks}
			if _, err := cfg.PlanTasks(); err == nil {
				t.Error("accepted")
			}
		})
	}
}

func TestPlanCommitmentsValidation(t *testing.T) {
	t.Parallel()
	cfg := &Config{Commitments: []CommitmentConfig{{
		Title: "Gym", Recurring: true, DaysOfWeek: []string{"tue"},
		Start: "18:00", End: "19:30",
		Overrides: map[string]OverrideConfig{"2026-09-08": {Deleted: true}},
	}}}
	cms, err := cfg.PlanCommitments()
	if err != nil {
		t.Fatalf("PlanCommitments: %v", err)
	}
	if cms[0].ID == "" {
		t.Error("no generated id")
	}
	if !cms[0].Overrides["2026-09-08"].Deleted {
		t.Error("override lost")
	}

	// An evening block running to midnight uses the same exclusive "24:00"
	// end bound the scheduling core accepts.
	cfg.Commitments[0].End = "24:00"
	if _, err := cfg.PlanCommitments(); err != nil {
		t.Errorf("end 24:00 rejected: %v", err)
	}
	cfg.Commitments[0].Start = "24:00"
	if _, err := cfg.PlanCommitments(); err == nil {
		t.Error("start 24:00 accepted")
	}
	cfg.Commitments[0].Start = "18:00"

	cfg.Commitments[0].End = "25:00"
	if _, err := cfg.PlanCommitments(); err == nil {
		t.Error("bad clock accepted")
	}
	cfg.Commitments[0].End = "19:30"
	cfg.Commitments[0].Dates = []string{"soon"}
	if _, err := cfg.PlanCommitments(); err == nil {
		t.Error("bad date accepted")
	}
}

func TestValidateCrossChecks(t *testing.T) {
	t.Parallel()
	base := func() *Config {
		return &Config{Settings: SettingsConfig{
			DailyAvailableHours: 6, WindowStartHour: 6, WindowEndHour: 23,
		}}
	}
	if err := base().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	c := base()
	c.Settings.DailyAvailableHours = 0
	if err := c.Validate(); err == nil {
		t.Error("zero daily hours accepted")
	}
	c = base()
	c.Settings.WindowEndHour = c.Settings.WindowStartHour
	if err := c.Validate(); err == nil {
		t.Error("empty window accepted")
	}
	c = base()
	c.Planner.HorizonDays = -1
	if err := c.Validate(); err == nil {
		t.Error("negative horizon accepted")
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	base := func() *Config {
		return &Config{
			Logging: LoggingConfig{Level: "info"},
			Planner: PlannerConfig{Mode: "balanced"},
			Settings: SettingsConfig{
				DailyAvailableHours: 6, WindowStartHour: 6, WindowEndHour: 23,
			},
			Tasks: []TaskConfig{{ID: "read", Title: "Read", EstimatedHours: 4}},
		}
	}

	oldCfg, newCfg := base(), base()
	sections, _, planChanged := SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) != 0 || planChanged {
		t.Errorf("no-op diff = %v, planChanged=%v", sections, planChanged)
	}

	newCfg = base()
	newCfg.Logging.Level = "debug"
	sections, _, planChanged = SummarizeConfigChange(oldCfg, newCfg)
	if planChanged {
		t.Error("logging change flagged as plan change")
	}
	if !containsSection(sections, "logging") {
		t.Errorf("sections = %v", sections)
	}

	newCfg = base()
	newCfg.Planner.Mode = "even"
	if _, _, planChanged = SummarizeConfigChange(oldCfg, newCfg); !planChanged {
		t.Error("planner change did not flag plan change")
	}

	newCfg = base()
	newCfg.Tasks[0].EstimatedHours = 6
	sections, _, planChanged = SummarizeConfigChange(oldCfg, newCfg)
	if !planChanged || !containsSection(sections, "tasks") {
		t.Errorf("task edit: sections=%v planChanged=%v", sections, planChanged)
	}
}

func containsSection(sections []string, name string) bool {
	for _, s := range sections {
		if s == name || strings.HasPrefix(s, name) {
			return true
		}
	}
	return false
}
