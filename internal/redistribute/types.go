package redistribute

import (
	"fmt"
	"time"

	"planweave/internal/plan"
	logx "planweave/pkg/logx"
)

// Options tunes a redistribution run.
//
// The priority bands and the compromised-session thresholds are deliberately
// configuration, not constants: their relative ordering matters, the exact
// values are tunable.
type Options struct {
	Today string // required
	Log   logx.Logger

	// MaxRedistributionDays bounds the forward search for a recovery slot
	// (default 14).
	MaxRedistributionDays int

	// DisableRollback keeps a partially-consistent result instead of
	// discarding the batch when the overlap post-check fails. Off by
	// default: redistribution is all-or-nothing per run.
	DisableRollback bool

	// Priority bands for missed-session ordering.
	ImportancePoints int // default 1000
	UrgencyMax       int // default 500; overdue deadlines saturate here
	UrgencyPerDay    int // default 25 points lost per day of slack
	AgePerDay        int // default 10 points per day late
	AgeMax           int // default 200
	SizePerHour      int // default 20
	SizeMax          int // default 100

	// Compromised-session thresholds.
	UtilizationLimit float64 // default 0.8 of daily capacity
	AvgLengthShare   float64 // default 0.5 of the task's average session
	MinAbsorption    float64 // default 0.9 of dissolved hours must land
}

func (o Options) withDefaults() (Options, error) {
	if o.Today == "" {
		return o, fmt.Errorf("options: today is required")
	}
	if _, err := plan.ParseDate(o.Today); err != nil {
		return o, err
	}
	if o.MaxRedistributionDays <= 0 {
		o.MaxRedistributionDays = 14
	}
	if o.ImportancePoints <= 0 {
		o.ImportancePoints = 1000
	}
	if o.UrgencyMax <= 0 {
		o.UrgencyMax = 500
	}
	if o.UrgencyPerDay <= 0 {
		o.UrgencyPerDay = 25
	}
	if o.AgePerDay <= 0 {
		o.AgePerDay = 10
	}
	if o.AgeMax <= 0 {
		o.AgeMax = 200
	}
	if o.SizePerHour <= 0 {
		o.SizePerHour = 20
	}
	if o.SizeMax <= 0 {
		o.SizeMax = 100
	}
	if o.UtilizationLimit <= 0 {
		o.UtilizationLimit = 0.8
	}
	if o.AvgLengthShare <= 0 {
		o.AvgLengthShare = 0.5
	}
	if o.MinAbsorption <= 0 {
		o.MinAbsorption = 0.9
	}
	if o.Log.IsZero() {
		o.Log = logx.Nop()
	}
	return o, nil
}

// Moved records one successful recovery.
type Moved struct {
	SessionID string
	TaskID    string
	FromDate  string
	ToDate    string
	NewStart  string
	NewEnd    string
	Priority  int
}

// Failed records one session that found no valid slot.
type Failed struct {
	SessionID string
	TaskID    string
	Date      string
	Reason    string
}

// Result is the outcome of a missed-session run.
//
// When RollbackPerformed is true, Plans is the caller's original set,
// untouched, and Reasons explains what went wrong.
type Result struct {
	Plans             plan.PlanSet
	Moved             []Moved
	Failed            []Failed
	RollbackPerformed bool
	Message           string
	Reasons           []string
}

// RepairedSession records one compromised session dissolved into siblings.
type RepairedSession struct {
	SessionID     string
	TaskID        string
	Date          string
	Hours         float64
	AbsorbedHours float64
	Reason        string
}

// RepairResult is the outcome of a compromised-session pass. Abandoned lists
// sessions that were detected but left intact because their hours could not
// be absorbed.
type RepairResult struct {
	Plans     plan.PlanSet
	Repaired  []RepairedSession
	Abandoned []RepairedSession
}

// CanTransition validates a single session state-machine edge. Starting a
// session additionally depends on the wall clock; use CanTransitionAt when
// "now" is available.
func CanTransition(from, to plan.SessionStatus) bool {
	if from == to {
		return false
	}
	switch from {
	case plan.SessionScheduled:
		switch to {
		case plan.SessionInProgress, plan.SessionCompleted,
			plan.SessionSkippedUser, plan.SessionSkippedSystem, plan.SessionMissed:
			return true
		}
	case plan.SessionInProgress:
		switch to {
		case plan.SessionCompleted, plan.SessionSkippedUser,
			plan.SessionSkippedSystem, plan.SessionMissed:
			return true
		}
	case plan.SessionMissed:
		return to == plan.SessionRedistributed || to == plan.SessionFailed
	case plan.SessionRedistributed:
		// A redistributed session lives on as a normal scheduled block.
		switch to {
		case plan.SessionInProgress, plan.SessionCompleted,
			plan.SessionSkippedUser, plan.SessionSkippedSystem, plan.SessionMissed:
			return true
		}
	}
	return false
}

// CanTransitionAt layers the clock-dependent rule on top of CanTransition:
// a session may only move to in_progress while now sits inside its block on
// its scheduled date. Every other edge ignores the clock.
func CanTransitionAt(s plan.Session, to plan.SessionStatus, now time.Time) bool {
	if !CanTransition(s.Status, to) {
		return false
	}
	if to != plan.SessionInProgress {
		return true
	}
	if plan.FormatDate(now) != s.Date {
		return false
	}
	start, err := plan.ParseClock(s.Start)
	if err != nil {
		return false
	}
	end, err := plan.ParseClockEnd(s.End)
	if err != nil {
		return false
	}
	min := now.Hour()*60 + now.Minute()
	return min >= start && min < end
}

// MarkMissed returns a copy of the plan set where every past-dated,
// non-terminal, non-manual session is flagged missed_original.
func MarkMissed(plans plan.PlanSet, today string) plan.PlanSet {
	out := plans.Clone()
	for date, dp := range out {
		if date >= today {
			continue
		}
		for i, s := range dp.Sessions {
			if s.ManualOverride || s.Status.Terminal() {
				continue
			}
			if s.Status == plan.SessionScheduled || s.Status == plan.SessionInProgress ||
				s.Status == plan.SessionRedistributed {
				dp.Sessions[i].Status = plan.SessionMissed
			}
		}
		out[date] = dp
	}
	return out
}
