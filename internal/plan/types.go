package plan

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	ErrBadDate     = errors.New("invalid date (want YYYY-MM-DD)")
	ErrBadClock    = errors.New("invalid time of day (want HH:MM)")
	ErrBadDuration = errors.New("duration must be positive")
	ErrBadEstimate = errors.New("estimated hours must be positive")
)

// DeadlineType classifies how binding a task deadline is.
type DeadlineType string

const (
	DeadlineHard DeadlineType = "hard"
	DeadlineSoft DeadlineType = "soft"
	DeadlineNone DeadlineType = "none"
)

func (d DeadlineType) Valid() bool {
	switch d {
	case DeadlineHard, DeadlineSoft, DeadlineNone:
		return true
	}
	return false
}

// Frequency is the preferred cadence of a task's sessions.
type Frequency string

const (
	FreqDaily    Frequency = "daily"
	Freq3xWeek   Frequency = "3x-week"
	FreqWeekly   Frequency = "weekly"
	FreqFlexible Frequency = "flexible"
)

func (f Frequency) Valid() bool {
	switch f {
	case FreqDaily, Freq3xWeek, FreqWeekly, FreqFlexible:
		return true
	}
	return false
}

// DayGap returns the preferred number of days between sessions for
// no-deadline scheduling.
func (f Frequency) DayGap() int {
	switch f {
	case FreqDaily:
		return 1
	case Freq3xWeek:
		return 2
	case FreqWeekly:
		return 7
	default:
		return 3
	}
}

// SessionsPerWeek returns how many sessions the cadence implies per week.
func (f Frequency) SessionsPerWeek() int {
	switch f {
	case FreqDaily:
		return 7
	case Freq3xWeek:
		return 3
	case FreqWeekly:
		return 1
	default:
		return 4
	}
}

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
)

// SessionStatus is the study-session state machine.
//
// Transitions:
//
//	scheduled -> in_progress          (only while "now" is inside the window)
//	scheduled|in_progress -> completed | skipped_user | skipped_system
//	scheduled|in_progress -> missed_original   (date passed incomplete)
//	missed_original -> redistributed | failed_redistribution
//
// completed, skipped_*, failed_redistribution are terminal.
type SessionStatus string

const (
	SessionScheduled     SessionStatus = "scheduled"
	SessionInProgress    SessionStatus = "in_progress"
	SessionCompleted     SessionStatus = "completed"
	SessionSkippedUser   SessionStatus = "skipped_user"
	SessionSkippedSystem SessionStatus = "skipped_system"
	SessionMissed        SessionStatus = "missed_original"
	SessionRedistributed SessionStatus = "redistributed"
	SessionFailed        SessionStatus = "failed_redistribution"
)

// Terminal reports whether the status admits no further transitions.
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionCompleted, SessionSkippedUser, SessionSkippedSystem, SessionFailed:
		return true
	}
	return false
}

// Skipped reports whether the session's hours no longer count toward the task.
func (s SessionStatus) Skipped() bool {
	return s == SessionSkippedUser || s == SessionSkippedSystem
}

// Mode selects the plan-generation strategy.
type Mode string

const (
	ModeEisenhower Mode = "eisenhower"
	ModeBalanced   Mode = "balanced"
	ModeEven       Mode = "even"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeEisenhower, ModeBalanced, ModeEven:
		return true
	}
	return false
}

// Task is a unit of work to be split into sessions. Tasks are created by the
// caller; the core only reads them.
type Task struct {
	ID             string
	Title          string
	Category       string
	EstimatedHours float64

	Deadline     string // "YYYY-MM-DD"; empty means no deadline
	DeadlineType DeadlineType
	StartDate    string // earliest allowed session date; empty means today

	Important       bool
	TargetFrequency Frequency
	OneSitting      bool

	// Session shaping. Zero values fall back to Settings.
	MinWorkBlockMinutes int
	MaxSessionHours     float64

	Status TaskStatus
}

// HasDeadline reports whether the task carries a usable deadline.
func (t Task) HasDeadline() bool {
	return t.Deadline != "" && t.DeadlineType != DeadlineNone
}

// Validate checks structural invariants the scheduler relies on.
func (t Task) Validate() error {
	if t.EstimatedHours <= 0 {
		return fmt.Errorf("task %q: %w", t.Title, ErrBadEstimate)
	}
	if t.Deadline != "" {
		if _, err := ParseDate(t.Deadline); err != nil {
			return fmt.Errorf("task %q deadline: %w", t.Title, err)
		}
	}
	if t.StartDate != "" {
		if _, err := ParseDate(t.StartDate); err != nil {
			return fmt.Errorf("task %q start date: %w", t.Title, err)
		}
	}
	return nil
}

// CommitmentOverride modifies or deletes a single occurrence of a recurring
// commitment on one date.
type CommitmentOverride struct {
	Deleted bool
	AllDay  bool
	Start   string // "HH:MM"; used when not Deleted and not AllDay
	End     string
}

// Commitment is an immovable busy interval the scheduler must never violate.
//
// Recurring commitments repeat on a weekday set (optionally bounded by
// StartDate/EndDate) or, alternatively, on a cron day spec. One-off
// commitments list their dates explicitly.
type Commitment struct {
	ID    string
	Title string

	Recurring  bool
	DaysOfWeek []time.Weekday // recurring: which weekdays
	CronSpec   string         // recurring alternative: cron day spec, e.g. "0 0 * * MON,WED"
	StartDate  string         // optional recurrence range, inclusive
	EndDate    string
	Dates      []string // one-off: specific dates

	AllDay bool
	Start  string // "HH:MM"; ignored when AllDay
	End    string

	Overrides map[string]CommitmentOverride // keyed by date
}

// RescheduleMove records one redistribution hop for a session.
type RescheduleMove struct {
	MovedAt   string // "YYYY-MM-DD" of the run that moved it
	FromDate  string
	ToDate    string
	FromStart string
	ToStart   string
	Reason    string
}

// Session is a contiguous scheduled block of work for one task on one date.
type Session struct {
	ID     string
	TaskID string
	Date   string
	Start  string // "HH:MM"
	End    string

	AllocatedHours float64
	Number         int // ordinal within its task
	Status         SessionStatus

	// Reschedule metadata.
	ManualOverride bool
	OriginalDate   string
	OriginalStart  string
	OriginalEnd    string
	History        []RescheduleMove
}

// Countable reports whether the session's hours count toward its task's total.
func (s Session) Countable() bool { return !s.Status.Skipped() && s.Status != SessionFailed }

// DayPlan holds one date's ordered sessions plus that date's hour budget.
type DayPlan struct {
	Date           string
	Sessions       []Session
	TotalHours     float64
	AvailableHours float64 // daily capacity minus committed hours
}

// PlanSet maps "YYYY-MM-DD" dates to day plans.
type PlanSet map[string]DayPlan

// Clone deep-copies the plan set so callers can hand it to mutating passes
// without losing the original.
func (p PlanSet) Clone() PlanSet {
	out := make(PlanSet, len(p))
	for d, dp := range p {
		cp := dp
		cp.Sessions = make([]Session, len(dp.Sessions))
		for i, s := range dp.Sessions {
			cs := s
			cs.History = append([]RescheduleMove(nil), s.History...)
			cp.Sessions[i] = cs
		}
		out[d] = cp
	}
	return out
}

// Dates returns the plan set's dates in ascending order.
func (p PlanSet) Dates() []string {
	out := make([]string, 0, len(p))
	for d := range p {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// ScheduledHours sums countable session hours for one task across the set.
func (p PlanSet) ScheduledHours(taskID string) float64 {
	var sum float64
	for _, dp := range p {
		for _, s := range dp.Sessions {
			if s.TaskID == taskID && s.Countable() {
				sum += s.AllocatedHours
			}
		}
	}
	return RoundHours(sum)
}

// Window is a study window in whole hours of the day.
type Window struct {
	StartHour int
	EndHour   int
}

// Settings carries the user's scheduling preferences.
type Settings struct {
	DailyAvailableHours float64
	WorkDays            []time.Weekday

	WindowStartHour int
	WindowEndHour   int
	// Window overrides; precedence: date > weekday > global.
	DateWindows    map[string]Window
	WeekdayWindows map[time.Weekday]Window

	// Day-specific capacity overrides ("YYYY-MM-DD" -> hours).
	DateDailyHours map[string]float64

	BufferDays           int
	SessionBufferMinutes int
	MinSessionMinutes    int
	MaxSessionHours      float64
	Mode                 Mode
}

// WindowFor resolves the study window for a date.
func (s Settings) WindowFor(date string) Window {
	if w, ok := s.DateWindows[date]; ok {
		return w
	}
	if d, err := ParseDate(date); err == nil {
		if w, ok := s.WeekdayWindows[d.Weekday()]; ok {
			return w
		}
	}
	return Window{StartHour: s.WindowStartHour, EndHour: s.WindowEndHour}
}

// DailyHoursFor resolves the capacity for a date.
func (s Settings) DailyHoursFor(date string) float64 {
	if h, ok := s.DateDailyHours[date]; ok {
		return h
	}
	return s.DailyAvailableHours
}

// IsWorkDay reports whether the date falls on a configured work weekday.
// An empty WorkDays set means every day is a work day.
func (s Settings) IsWorkDay(date string) bool {
	if len(s.WorkDays) == 0 {
		return true
	}
	d, err := ParseDate(date)
	if err != nil {
		return false
	}
	for _, wd := range s.WorkDays {
		if d.Weekday() == wd {
			return true
		}
	}
	return false
}

// MaxSessionFor resolves the session-length ceiling for a task.
func (s Settings) MaxSessionFor(t Task) float64 {
	if t.MaxSessionHours > 0 {
		return t.MaxSessionHours
	}
	if s.MaxSessionHours > 0 {
		return s.MaxSessionHours
	}
	return 4
}

// MinBlockMinutesFor resolves the minimum block length for a task.
func (s Settings) MinBlockMinutesFor(t Task) int {
	if t.MinWorkBlockMinutes > 0 {
		return t.MinWorkBlockMinutes
	}
	if s.MinSessionMinutes > 0 {
		return s.MinSessionMinutes
	}
	return 15
}

// Suggestion reports hours that could not be placed for a task.
type Suggestion struct {
	TaskID             string
	TaskTitle          string
	UnscheduledMinutes int
}

// Result is the outcome of a plan generation run.
type Result struct {
	Plans       PlanSet
	Suggestions []Suggestion
}
