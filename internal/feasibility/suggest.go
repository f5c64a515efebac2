package feasibility

import (
	"math"

	"planweave/internal/plan"
)

// alternatives inverts the arithmetic of the checks that fired and proposes
// concrete parameter changes that would make them pass.
func (c *checker) alternatives(warnings []Warning) Alternatives {
	var alt Alternatives
	fired := map[string]Severity{}
	for _, w := range warnings {
		if cur, ok := fired[w.Category]; !ok || rank(w.Severity) > rank(cur) {
			fired[w.Category] = w.Severity
		}
	}

	if sev, ok := fired[CategoryEstimation]; ok && sev == SeverityCritical && c.hasDeadline {
		alt.Deadline = c.suggestDeadline()
		alt.EstimatedHours = c.suggestEstimate()
		alt.MinDailyHours = c.suggestDailyHours()
	}
	if _, ok := fired[CategoryFrequency]; ok {
		alt.Frequency = c.suggestFrequency()
		if alt.Frequency == nil && !c.draft.OneSitting &&
			c.draft.EstimatedHours <= c.settings.MaxSessionFor(c.draft) &&
			c.draft.EstimatedHours <= c.settings.DailyAvailableHours {
			alt.MarkOneSitting = true
		}
	}
	if sev, ok := fired[CategoryAvailability]; ok && sev == SeverityCritical && c.hasDeadline && alt.Deadline == "" {
		alt.Deadline = c.suggestDeadline()
	}
	if sevD, ok := fired[CategoryDeadline]; ok && sevD == SeverityCritical && c.hasDeadline && alt.Deadline == "" {
		alt.Deadline = c.suggestDeadline()
	}
	if _, ok := fired[CategorySession]; ok && !c.draft.OneSitting &&
		c.draft.EstimatedHours <= c.settings.MaxSessionFor(c.draft) &&
		c.draft.EstimatedHours <= c.settings.DailyAvailableHours {
		alt.MarkOneSitting = true
	}
	return alt
}

// suggestDeadline pushes the deadline out to cover the minimum days the
// estimate actually needs, plus one spare day and the configured buffer.
func (c *checker) suggestDeadline() string {
	if !c.hasDeadline || c.minDaysNeeded == 0 {
		return ""
	}
	daysAvailable, err := plan.DaysBetween(c.opts.Today, c.draft.Deadline)
	if err != nil {
		return ""
	}
	extra := c.minDaysNeeded - daysAvailable + 1 + c.settings.BufferDays
	if extra < 1 {
		extra = 1
	}
	d, err := plan.AddDays(c.draft.Deadline, extra)
	if err != nil {
		return ""
	}
	return d
}

// suggestEstimate shrinks the estimate to what the remaining window can hold.
func (c *checker) suggestEstimate() *float64 {
	fit := plan.RoundHours(float64(c.daysAvailable) * c.settings.DailyAvailableHours)
	if fit <= 0 || fit >= c.draft.EstimatedHours {
		return nil
	}
	return &fit
}

// suggestDailyHours raises daily capacity just enough for the window to fit.
func (c *checker) suggestDailyHours() *float64 {
	if c.daysAvailable == 0 {
		return nil
	}
	need := c.draft.EstimatedHours / float64(c.daysAvailable)
	need = math.Ceil(need*2) / 2 // round up to the half hour
	if need <= c.settings.DailyAvailableHours {
		return nil
	}
	return &need
}

// suggestFrequency proposes the next-denser cadence that covers the needed
// session count.
func (c *checker) suggestFrequency() *plan.Frequency {
	if c.draft.OneSitting || !c.hasDeadline || c.daysAvailable == 0 {
		return nil
	}
	maxLen := c.settings.MaxSessionFor(c.draft)
	needed := int(math.Ceil(c.draft.EstimatedHours / maxLen))
	weeks := float64(c.daysAvailable) / 7.0
	for _, f := range []plan.Frequency{plan.FreqWeekly, plan.Freq3xWeek, plan.FreqFlexible, plan.FreqDaily} {
		if f == c.draft.TargetFrequency {
			continue
		}
		if denser(f, c.draft.TargetFrequency) && int(math.Ceil(weeks*float64(f.SessionsPerWeek()))) >= needed {
			out := f
			return &out
		}
	}
	return nil
}

func denser(a, b plan.Frequency) bool {
	return a.SessionsPerWeek() > b.SessionsPerWeek()
}

func rank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityMajor:
		return 2
	default:
		return 1
	}
}
