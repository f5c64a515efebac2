package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"planweave/internal/plan"
)

// Config is the whole on-disk document: app sections plus the planning
// inputs (settings, tasks, commitments). Keeping everything in one file
// means one watcher covers both "logging level changed" and "task added".
type Config struct {
	Logging LoggingConfig  `json:"logging"`
	Planner PlannerConfig  `json:"planner"`
	Serve   *ServeConfig   `json:"serve,omitempty"`
	Storage *StorageConfig `json:"storage,omitempty"`

	Settings    SettingsConfig     `json:"settings"`
	Tasks       []TaskConfig       `json:"tasks"`
	Commitments []CommitmentConfig `json:"commitments,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Throttle LoggingThrottle `json:"throttle"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingThrottle rate-limits a secondary high-severity sink so a
// misbehaving reload loop cannot flood it.
type LoggingThrottle struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// PlannerConfig controls generation defaults.
//
// Defaults (when fields are omitted/zero):
//   - mode: "balanced"
//   - horizon_days: 30
//   - timezone: local
type PlannerConfig struct {
	Mode        string `json:"mode,omitempty"`
	HorizonDays int    `json:"horizon_days,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
}

// ServeConfig controls the long-running mode. Cron expressions use the
// standard 5-field form.
//
// Defaults (when fields are omitted/zero):
//   - regenerate_cron: "0 4 * * *" (nightly regenerate)
//   - sweep_cron: "30 4 * * *" (missed-session sweep after regenerate)
//
// PprofAddr, when set, enables a loopback-only profiling endpoint.
type ServeConfig struct {
	Enabled        bool   `json:"enabled"`
	RegenerateCron string `json:"regenerate_cron,omitempty"`
	SweepCron      string `json:"sweep_cron,omitempty"`
	PprofAddr      string `json:"pprof_addr,omitempty"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./planweave_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// SettingsConfig is the on-disk shape of scheduling preferences.
// Weekdays are names ("mon", "monday"); windows are whole hours.
type SettingsConfig struct {
	DailyAvailableHours float64  `json:"daily_available_hours"`
	WorkDays            []string `json:"work_days,omitempty"`

	WindowStartHour int `json:"window_start_hour"`
	WindowEndHour   int `json:"window_end_hour"`

	DateWindows    map[string]WindowConfig `json:"date_windows,omitempty"`
	WeekdayWindows map[string]WindowConfig `json:"weekday_windows,omitempty"`
	DateDailyHours map[string]float64      `json:"date_daily_hours,omitempty"`

	BufferDays           int     `json:"buffer_days,omitempty"`
	SessionBufferMinutes int     `json:"session_buffer_minutes,omitempty"`
	MinSessionMinutes    int     `json:"min_session_minutes,omitempty"`
	MaxSessionHours      float64 `json:"max_session_hours,omitempty"`
}

type WindowConfig struct {
	StartHour int `json:"start_hour"`
	EndHour   int `json:"end_hour"`
}

type TaskConfig struct {
	ID             string  `json:"id,omitempty"`
	Title          string  `json:"title"`
	Category       string  `json:"category,omitempty"`
	EstimatedHours float64 `json:"estimated_hours"`

	Deadline     string `json:"deadline,omitempty"`
	DeadlineType string `json:"deadline_type,omitempty"`
	StartDate    string `json:"start_date,omitempty"`

	Important   bool    `json:"important,omitempty"`
	Frequency   string  `json:"frequency,omitempty"`
	OneSitting  bool    `json:"one_sitting,omitempty"`
	MinBlockMin int     `json:"min_block_minutes,omitempty"`
	MaxSession  float64 `json:"max_session_hours,omitempty"`

	Status string `json:"status,omitempty"`
}

type CommitmentConfig struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title"`

	Recurring  bool     `json:"recurring,omitempty"`
	DaysOfWeek []string `json:"days_of_week,omitempty"`
	CronSpec   string   `json:"cron,omitempty"`
	StartDate  string   `json:"start_date,omitempty"`
	EndDate    string   `json:"end_date,omitempty"`
	Dates      []string `json:"dates,omitempty"`

	AllDay bool   `json:"all_day,omitempty"`
	Start  string `json:"start,omitempty"`
	End    string `json:"end,omitempty"`

	Overrides map[string]OverrideConfig `json:"overrides,omitempty"`
}

type OverrideConfig struct {
	Deleted bool   `json:"deleted,omitempty"`
	AllDay  bool   `json:"all_day,omitempty"`
	Start   string `json:"start,omitempty"`
	End     string `json:"end,omitempty"`
}

// weekday name -> time.Weekday; accepts short and long English names.
var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

func parseWeekday(s string) (time.Weekday, error) {
	d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", s)
	}
	return d, nil
}

func parseWeekdays(in []string) ([]time.Weekday, error) {
	if len(in) == 0 {
		return nil, nil
	}
	seen := map[time.Weekday]bool{}
	out := make([]time.Weekday, 0, len(in))
	for _, s := range in {
		d, err := parseWeekday(s)
		if err != nil {
			return nil, err
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// PlanSettings converts the on-disk settings into the engine's form.
func (c *Config) PlanSettings() (plan.Settings, error) {
	sc := c.Settings
	workDays, err := parseWeekdays(sc.WorkDays)
	if err != nil {
		return plan.Settings{}, fmt.Errorf("settings.work_days: %w", err)
	}

	s := plan.Settings{
		DailyAvailableHours:  sc.DailyAvailableHours,
		WorkDays:             workDays,
		WindowStartHour:      sc.WindowStartHour,
		WindowEndHour:        sc.WindowEndHour,
		BufferDays:           sc.BufferDays,
		SessionBufferMinutes: sc.SessionBufferMinutes,
		MinSessionMinutes:    sc.MinSessionMinutes,
		MaxSessionHours:      sc.MaxSessionHours,
		Mode:                 plan.ModeBalanced,
	}
	if m := strings.TrimSpace(c.Planner.Mode); m != "" {
		mode := plan.Mode(m)
		if !mode.Valid() {
			return plan.Settings{}, fmt.Errorf("planner.mode: unknown mode %q", m)
		}
		s.Mode = mode
	}

	if len(sc.DateWindows) > 0 {
		s.DateWindows = make(map[string]plan.Window, len(sc.DateWindows))
		for date, w := range sc.DateWindows {
			if _, err := plan.ParseDate(date); err != nil {
				return plan.Settings{}, fmt.Errorf("settings.date_windows[%s]: %w", date, err)
			}
			s.DateWindows[date] = plan.Window{StartHour: w.StartHour, EndHour: w.EndHour}
		}
	}
	if len(sc.WeekdayWindows) > 0 {
		s.WeekdayWindows = make(map[time.Weekday]plan.Window, len(sc.WeekdayWindows))
		for name, w := range sc.WeekdayWindows {
			d, err := parseWeekday(name)
			if err != nil {
				return plan.Settings{}, fmt.Errorf("settings.weekday_windows: %w", err)
			}
			s.WeekdayWindows[d] = plan.Window{StartHour: w.StartHour, EndHour: w.EndHour}
		}
	}
	if len(sc.DateDailyHours) > 0 {
		s.DateDailyHours = make(map[string]float64, len(sc.DateDailyHours))
		for date, h := range sc.DateDailyHours {
			if _, err := plan.ParseDate(date); err != nil {
				return plan.Settings{}, fmt.Errorf("settings.date_daily_hours[%s]: %w", date, err)
			}
			s.DateDailyHours[date] = h
		}
	}
	return s, nil
}

// PlanTasks converts and validates the task list. Tasks without an ID
// get a generated one; IDs must be unique.
func (c *Config) PlanTasks() ([]plan.Task, error) {
	out := make([]plan.Task, 0, len(c.Tasks))
	seen := map[string]bool{}
	for i, tc := range c.Tasks {
		t := plan.Task{
			ID:                  strings.TrimSpace(tc.ID),
			Title:               strings.TrimSpace(tc.Title),
			Category:            strings.TrimSpace(tc.Category),
			EstimatedHours:      tc.EstimatedHours,
			Deadline:            strings.TrimSpace(tc.Deadline),
			StartDate:           strings.TrimSpace(tc.StartDate),
			Important:           tc.Important,
			OneSitting:          tc.OneSitting,
			MinWorkBlockMinutes: tc.MinBlockMin,
			MaxSessionHours:     tc.MaxSession,
			DeadlineType:        plan.DeadlineNone,
			TargetFrequency:     plan.FreqFlexible,
			Status:              plan.TaskPending,
		}
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("tasks[%d]: duplicate id %q", i, t.ID)
		}
		seen[t.ID] = true
		if t.Title == "" {
			return nil, fmt.Errorf("tasks[%d]: title is required", i)
		}

		if v := strings.TrimSpace(tc.DeadlineType); v != "" {
			dt := plan.DeadlineType(v)
			if !dt.Valid() {
				return nil, fmt.Errorf("tasks[%d] (%s): unknown deadline_type %q", i, t.Title, v)
			}
			t.DeadlineType = dt
		} else if t.Deadline != "" {
			t.DeadlineType = plan.DeadlineSoft
		}
		if v := strings.TrimSpace(tc.Frequency); v != "" {
			f := plan.Frequency(v)
			if !f.Valid() {
				return nil, fmt.Errorf("tasks[%d] (%s): unknown frequency %q", i, t.Title, v)
			}
			t.TargetFrequency = f
		}
		if v := strings.TrimSpace(tc.Status); v != "" {
			switch plan.TaskStatus(v) {
			case plan.TaskPending, plan.TaskCompleted:
				t.Status = plan.TaskStatus(v)
			default:
				return nil, fmt.Errorf("tasks[%d] (%s): unknown status %q", i, t.Title, v)
			}
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("tasks[%d]: %w", i, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// PlanCommitments converts and validates the commitment list.
func (c *Config) PlanCommitments() ([]plan.Commitment, error) {
	out := make([]plan.Commitment, 0, len(c.Commitments))
	for i, cc := range c.Commitments {
		cm := plan.Commitment{
			ID:        strings.TrimSpace(cc.ID),
			Title:     strings.TrimSpace(cc.Title),
			Recurring: cc.Recurring,
			CronSpec:  strings.TrimSpace(cc.CronSpec),
			StartDate: strings.TrimSpace(cc.StartDate),
			EndDate:   strings.TrimSpace(cc.EndDate),
			Dates:     cc.Dates,
			AllDay:    cc.AllDay,
			Start:     strings.TrimSpace(cc.Start),
			End:       strings.TrimSpace(cc.End),
		}
		if cm.ID == "" {
			cm.ID = uuid.NewString()
		}
		days, err := parseWeekdays(cc.DaysOfWeek)
		if err != nil {
			return nil, fmt.Errorf("commitments[%d] (%s): %w", i, cm.Title, err)
		}
		cm.DaysOfWeek = days

		for _, date := range cm.Dates {
			if _, err := plan.ParseDate(date); err != nil {
				return nil, fmt.Errorf("commitments[%d] (%s): date %q: %w", i, cm.Title, date, err)
			}
		}
		for _, date := range []string{cm.StartDate, cm.EndDate} {
			if date == "" {
				continue
			}
			if _, err := plan.ParseDate(date); err != nil {
				return nil, fmt.Errorf("commitments[%d] (%s): %w", i, cm.Title, err)
			}
		}
		if !cm.AllDay {
			if _, err := plan.ParseClock(cm.Start); err != nil {
				return nil, fmt.Errorf("commitments[%d] (%s): time %q: %w", i, cm.Title, cm.Start, err)
			}
			// "24:00" is a valid end bound, same as the scheduling core.
			if _, err := plan.ParseClockEnd(cm.End); err != nil {
				return nil, fmt.Errorf("commitments[%d] (%s): time %q: %w", i, cm.Title, cm.End, err)
			}
		}

		if len(cc.Overrides) > 0 {
			cm.Overrides = make(map[string]plan.CommitmentOverride, len(cc.Overrides))
			for date, ov := range cc.Overrides {
				if _, err := plan.ParseDate(date); err != nil {
					return nil, fmt.Errorf("commitments[%d] (%s): override date %q: %w", i, cm.Title, date, err)
				}
				cm.Overrides[date] = plan.CommitmentOverride{
					Deleted: ov.Deleted,
					AllDay:  ov.AllDay,
					Start:   strings.TrimSpace(ov.Start),
					End:     strings.TrimSpace(ov.End),
				}
			}
		}
		out = append(out, cm)
	}
	return out, nil
}

// Validate runs the cross-section checks used by the reload path.
func (c *Config) Validate() error {
	if c.Settings.DailyAvailableHours <= 0 {
		return fmt.Errorf("settings.daily_available_hours must be > 0")
	}
	if c.Settings.WindowEndHour <= c.Settings.WindowStartHour {
		return fmt.Errorf("settings window: end hour must be after start hour")
	}
	if c.Planner.HorizonDays < 0 {
		return fmt.Errorf("planner.horizon_days must be >= 0")
	}
	if _, err := c.PlanSettings(); err != nil {
		return err
	}
	if _, err := c.PlanTasks(); err != nil {
		return err
	}
	if _, err := c.PlanCommitments(); err != nil {
		return err
	}
	return nil
}
