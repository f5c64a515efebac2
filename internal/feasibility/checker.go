package feasibility

import (
	"fmt"
	"math"

	"planweave/internal/plan"
	logx "planweave/pkg/logx"
)

// Check validates a proposed task against current settings, tasks, plans and
// commitments before it is accepted. It is a pure pre-flight validator: no
// side effects, no mutation of inputs.
func Check(draft plan.Task, settings plan.Settings, tasks []plan.Task, plans plan.PlanSet, commitments []plan.Commitment, opts Options) (Report, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return Report{}, err
	}

	c, err := newChecker(draft, settings, tasks, plans, commitments, opts)
	if err != nil {
		return Report{}, err
	}

	checks := []func() []Warning{
		c.completionSanity,
		c.dailyCeiling,
		c.frequencyVsDeadline,
		c.sessionLengthViability,
		c.scheduleAvailability,
		c.aggregateWorkload,
		c.modeCompatibility,
		c.estimateDrift,
		c.bufferConflict,
		c.categoryHeuristics,
		c.distributionArithmetic,
		c.deadlineRealism,
		c.workdayGaps,
	}
	var warnings []Warning
	for _, check := range checks {
		warnings = append(warnings, check()...)
	}

	report := Report{
		IsValid:      true,
		Warnings:     warnings,
		Alternatives: c.alternatives(warnings),
	}
	for _, w := range warnings {
		if w.Severity == SeverityCritical {
			report.IsValid = false
			break
		}
	}
	// Taskless drafts have no ID yet; title is the stable handle.
	opts.Log.Debug("feasibility checked",
		logx.String("task", draft.Title),
		logx.Int("warnings", len(warnings)),
		logx.Bool("valid", report.IsValid),
	)
	return report, nil
}

// checker carries the derived figures every check shares.
type checker struct {
	draft       plan.Task
	settings    plan.Settings
	tasks       []plan.Task
	plans       plan.PlanSet
	commitments []plan.Commitment
	opts        Options

	hasDeadline   bool
	daysAvailable int      // work days in [today, deadline − buffer]
	windowDays    []string // those same dates
	freeHours     float64  // capacity minus commitments across the window
	minDaysNeeded int      // ceil(estimate / dailyAvailableHours)
}

func newChecker(draft plan.Task, settings plan.Settings, tasks []plan.Task, plans plan.PlanSet, commitments []plan.Commitment, opts Options) (*checker, error) {
	c := &checker{
		draft:       draft,
		settings:    settings,
		tasks:       tasks,
		plans:       plans,
		commitments: commitments,
		opts:        opts,
		hasDeadline: draft.HasDeadline(),
	}

	from := opts.Today
	if draft.StartDate != "" {
		from = plan.MaxDate(from, draft.StartDate)
	}
	to := ""
	if c.hasDeadline {
		var err error
		to, err = plan.AddDays(draft.Deadline, -settings.BufferDays)
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		to, err = plan.AddDays(opts.Today, 30)
		if err != nil {
			return nil, err
		}
	}
	dates, err := plan.DateRange(from, to)
	if err != nil {
		return nil, err
	}
	for _, d := range dates {
		if !settings.IsWorkDay(d) {
			continue
		}
		committed, err := plan.CommittedHours(commitments, d, settings)
		if err != nil {
			return nil, err
		}
		free := settings.DailyHoursFor(d) - committed
		if free <= 0 {
			continue
		}
		c.windowDays = append(c.windowDays, d)
		c.freeHours += free
	}
	c.freeHours = plan.RoundHours(c.freeHours)
	c.daysAvailable = len(c.windowDays)
	if settings.DailyAvailableHours > 0 {
		c.minDaysNeeded = int(math.Ceil(draft.EstimatedHours / settings.DailyAvailableHours))
	}
	return c, nil
}

func warn(kind Kind, category string, sev Severity, format string, args ...any) Warning {
	return Warning{Type: kind, Category: category, Severity: sev, Message: fmt.Sprintf(format, args...)}
}
