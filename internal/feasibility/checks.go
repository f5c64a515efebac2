package feasibility

import (
	"math"

	"planweave/internal/plan"
)

// completionSanity rejects zero/negative estimates and flags one-sitting
// tasks no single day could ever hold.
func (c *checker) completionSanity() []Warning {
	var out []Warning
	if c.draft.EstimatedHours <= 0 {
		out = append(out, warn(KindError, CategoryEstimation, SeverityCritical,
			"estimated hours must be positive (got %.2f)", c.draft.EstimatedHours))
		return out
	}
	if c.draft.OneSitting && c.draft.EstimatedHours > 12 {
		out = append(out, warn(KindError, CategoryEstimation, SeverityCritical,
			"a %.1fh one-sitting block is not realistic; split the task or reduce the estimate",
			c.draft.EstimatedHours))
	}
	if c.draft.OneSitting && c.draft.EstimatedHours > c.settings.DailyAvailableHours {
		out = append(out, warn(KindError, CategorySession, SeverityCritical,
			"one-sitting task needs %.1fh but daily capacity is %.1fh",
			c.draft.EstimatedHours, c.settings.DailyAvailableHours))
	}
	return out
}

// dailyCeiling compares the minimum days the estimate needs against the days
// actually available before the deadline.
func (c *checker) dailyCeiling() []Warning {
	if !c.hasDeadline || c.minDaysNeeded == 0 {
		return nil
	}
	if c.minDaysNeeded > c.daysAvailable {
		return []Warning{warn(KindError, CategoryEstimation, SeverityCritical,
			"%.1fh needs at least %d work days at %.1fh/day, but only %d remain before the deadline",
			c.draft.EstimatedHours, c.minDaysNeeded, c.settings.DailyAvailableHours, c.daysAvailable)}
	}
	if c.minDaysNeeded == c.daysAvailable {
		return []Warning{warn(KindWarning, CategoryEstimation, SeverityMajor,
			"the estimate fills every remaining day with zero slack")}
	}
	return nil
}

// frequencyVsDeadline checks whether the cadence can produce enough sessions
// in time.
func (c *checker) frequencyVsDeadline() []Warning {
	if !c.hasDeadline || c.draft.OneSitting {
		return nil
	}
	maxLen := c.settings.MaxSessionFor(c.draft)
	sessionsNeeded := int(math.Ceil(c.draft.EstimatedHours / maxLen))
	perWeek := c.draft.TargetFrequency.SessionsPerWeek()
	possible := int(math.Ceil(float64(c.daysAvailable) / 7.0 * float64(perWeek)))
	if possible < 1 && c.daysAvailable > 0 {
		possible = 1
	}
	if sessionsNeeded > possible {
		return []Warning{warn(KindWarning, CategoryFrequency, SeverityMajor,
			"%q cadence yields about %d sessions before the deadline but %d are needed",
			c.draft.TargetFrequency, possible, sessionsNeeded)}
	}
	return nil
}

// sessionLengthViability checks min/max block settings against the estimate.
func (c *checker) sessionLengthViability() []Warning {
	var out []Warning
	minBlock := plan.MinutesToHours(c.settings.MinBlockMinutesFor(c.draft))
	maxLen := c.settings.MaxSessionFor(c.draft)
	if maxLen < minBlock {
		out = append(out, warn(KindError, CategorySession, SeverityCritical,
			"max session length (%.2fh) is below the minimum work block (%.2fh)", maxLen, minBlock))
	}
	if c.draft.EstimatedHours < minBlock {
		out = append(out, warn(KindInfo, CategorySession, SeverityMinor,
			"the whole task (%.2fh) is shorter than one minimum block (%.2fh)",
			c.draft.EstimatedHours, minBlock))
	}
	return out
}

// scheduleAvailability compares the estimate against the free hours left in
// the window after commitments.
func (c *checker) scheduleAvailability() []Warning {
	if c.daysAvailable == 0 {
		return []Warning{warn(KindError, CategoryAvailability, SeverityCritical,
			"no work days with free time remain in the task's window")}
	}
	if c.freeHours < c.draft.EstimatedHours {
		return []Warning{warn(KindError, CategoryAvailability, SeverityCritical,
			"only %.1fh remain free in the window after commitments; the task needs %.1fh",
			c.freeHours, c.draft.EstimatedHours)}
	}
	if c.freeHours < c.draft.EstimatedHours*1.2 {
		return []Warning{warn(KindWarning, CategoryAvailability, SeverityMajor,
			"commitments leave little headroom: %.1fh free vs %.1fh needed",
			c.freeHours, c.draft.EstimatedHours)}
	}
	return nil
}

// aggregateWorkload sums all pending estimates (plus the draft) against free
// hours up to the latest relevant deadline.
func (c *checker) aggregateWorkload() []Warning {
	var pending float64
	for _, t := range c.tasks {
		if t.Status != plan.TaskPending {
			continue
		}
		scheduled := c.plans.ScheduledHours(t.ID)
		left := t.EstimatedHours - scheduled
		if left > 0 {
			pending += left
		}
	}
	total := plan.RoundHours(pending + c.draft.EstimatedHours)
	if total > c.freeHours && c.freeHours > 0 {
		sev := SeverityMajor
		kind := KindWarning
		if total > c.freeHours*1.5 {
			sev = SeverityCritical
			kind = KindError
		}
		return []Warning{warn(kind, CategoryWorkload, sev,
			"all pending work (%.1fh) exceeds the %.1fh free in this task's window", total, c.freeHours)}
	}
	return nil
}

// modeCompatibility flags task shapes that fight the selected plan mode.
func (c *checker) modeCompatibility() []Warning {
	if c.draft.OneSitting && c.settings.Mode == plan.ModeEven {
		return []Warning{warn(KindInfo, CategoryMode, SeverityMinor,
			"even mode spreads work across days; a one-sitting task will occupy a single full block instead")}
	}
	if c.draft.TargetFrequency == plan.FreqWeekly && c.settings.Mode == plan.ModeEisenhower && c.draft.Important {
		return []Warning{warn(KindInfo, CategoryMode, SeverityMinor,
			"eisenhower mode schedules important tasks as early as possible and may ignore the weekly cadence")}
	}
	return nil
}

// estimateDrift compares the draft against how similar finished tasks
// actually consumed time.
func (c *checker) estimateDrift() []Warning {
	var ratioSum float64
	var n int
	for _, t := range c.tasks {
		if t.Status != plan.TaskCompleted || t.EstimatedHours <= 0 {
			continue
		}
		if c.draft.Category != "" && t.Category != c.draft.Category {
			continue
		}
		scheduled := c.plans.ScheduledHours(t.ID)
		if scheduled <= 0 {
			continue
		}
		ratioSum += scheduled / t.EstimatedHours
		n++
	}
	if n < 2 {
		return nil
	}
	avg := ratioSum / float64(n)
	if avg > 1.25 {
		return []Warning{warn(KindInfo, CategoryEstimation, SeverityMinor,
			"similar tasks ran about %.0f%% over their estimates; consider padding this one", (avg-1)*100)}
	}
	return nil
}

// bufferConflict checks whether buffer days leave any schedulable window.
func (c *checker) bufferConflict() []Warning {
	if !c.hasDeadline || c.settings.BufferDays == 0 {
		return nil
	}
	days, err := plan.DaysBetween(c.opts.Today, c.draft.Deadline)
	if err != nil {
		return nil
	}
	if c.settings.BufferDays >= days {
		return []Warning{warn(KindError, CategoryDeadline, SeverityCritical,
			"%d buffer days consume the entire %d-day window before the deadline",
			c.settings.BufferDays, days)}
	}
	if c.settings.BufferDays >= days/2 {
		return []Warning{warn(KindWarning, CategoryDeadline, SeverityMajor,
			"buffer days consume more than half the window before the deadline")}
	}
	return nil
}

// categoryHeuristics applies small per-category sanity hints.
func (c *checker) categoryHeuristics() []Warning {
	switch c.draft.Category {
	case "exam", "exam-prep":
		if c.draft.EstimatedHours < 2 {
			return []Warning{warn(KindInfo, CategoryCategory, SeverityMinor,
				"exam preparation under 2h is unusually short")}
		}
	case "project":
		if c.draft.OneSitting {
			return []Warning{warn(KindInfo, CategoryCategory, SeverityMinor,
				"projects usually benefit from being split across days")}
		}
	}
	return nil
}

// distributionArithmetic checks the per-session length the cadence implies.
func (c *checker) distributionArithmetic() []Warning {
	if c.draft.OneSitting || !c.hasDeadline || c.daysAvailable == 0 {
		return nil
	}
	perWeek := c.draft.TargetFrequency.SessionsPerWeek()
	sessions := int(math.Ceil(float64(c.daysAvailable) / 7.0 * float64(perWeek)))
	if sessions < 1 {
		sessions = 1
	}
	perSession := c.draft.EstimatedHours / float64(sessions)
	minBlock := plan.MinutesToHours(c.settings.MinBlockMinutesFor(c.draft))
	maxLen := c.settings.MaxSessionFor(c.draft)
	if perSession < minBlock {
		return []Warning{warn(KindInfo, CategoryFrequency, SeverityMinor,
			"the cadence would produce %.2fh sessions, below the %.2fh minimum block", perSession, minBlock)}
	}
	if perSession > maxLen {
		return []Warning{warn(KindWarning, CategoryFrequency, SeverityMajor,
			"the cadence would need %.1fh sessions, above the %.1fh ceiling", perSession, maxLen)}
	}
	return nil
}

// deadlineRealism flags deadlines on rest days and very tight large tasks.
func (c *checker) deadlineRealism() []Warning {
	if !c.hasDeadline {
		return nil
	}
	var out []Warning
	if !c.settings.IsWorkDay(c.draft.Deadline) {
		out = append(out, warn(KindInfo, CategoryDeadline, SeverityMinor,
			"the deadline falls on a rest day; the last working session lands earlier"))
	}
	if days, err := plan.DaysBetween(c.opts.Today, c.draft.Deadline); err == nil {
		if days <= 2 && c.draft.EstimatedHours > 6 {
			out = append(out, warn(KindWarning, CategoryDeadline, SeverityMajor,
				"%.1fh due within %d days is very tight", c.draft.EstimatedHours, days))
		}
	}
	return out
}

// workdayGaps looks for stretches of rest days that fight a daily cadence.
func (c *checker) workdayGaps() []Warning {
	if c.draft.TargetFrequency != plan.FreqDaily || len(c.windowDays) < 2 {
		return nil
	}
	maxGap := 0
	for i := 1; i < len(c.windowDays); i++ {
		g, err := plan.DaysBetween(c.windowDays[i-1], c.windowDays[i])
		if err == nil && g > maxGap {
			maxGap = g
		}
	}
	if maxGap > 2 {
		return []Warning{warn(KindInfo, CategoryFrequency, SeverityMinor,
			"a %d-day stretch without work days interrupts the daily cadence", maxGap)}
	}
	return nil
}
