package plan

import (
	"fmt"
	"sort"
)

// strategy is one interchangeable plan-generation policy. All three share
// the per-task pipeline in scheduleContext (valid day range -> session
// distribution -> slot search -> capacity debit).
type strategy interface {
	name() Mode
	schedule(sc *scheduleContext, tasks []Task)
}

func strategyFor(m Mode) (strategy, error) {
	switch m {
	case ModeEisenhower:
		return eisenhowerStrategy{}, nil
	case ModeBalanced:
		return balancedStrategy{}, nil
	case ModeEven:
		return evenStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown study plan mode %q", m)
	}
}

// eisenhowerStrategy fills each date in order, iterating tasks in a strict
// (importance desc, deadline asc) global order and granting each as much of
// its remaining need as capacity and slot search permit.
type eisenhowerStrategy struct{}

func (eisenhowerStrategy) name() Mode { return ModeEisenhower }

func (eisenhowerStrategy) schedule(sc *scheduleContext, tasks []Task) {
	ordered := append([]Task(nil), tasks...)
	sortTasks(ordered)

	// One-sitting tasks first: they need a whole block, which gets rarer as
	// days fill up.
	for _, t := range ordered {
		if t.OneSitting {
			sc.scheduleOneSitting(t, sc.validDays(t))
		}
	}

	latest := sc.opts.Today
	rangeByID := make(map[string][]string, len(ordered))
	for _, t := range ordered {
		days := sc.validDays(t)
		rangeByID[t.ID] = days
		if len(days) > 0 && days[len(days)-1] > latest {
			latest = days[len(days)-1]
		}
	}
	dates, err := DateRange(sc.opts.Today, latest)
	if err != nil {
		if sc.err == nil {
			sc.err = err
		}
		return
	}

	inRange := func(t Task, date string) bool {
		for _, d := range rangeByID[t.ID] {
			if d == date {
				return true
			}
		}
		return false
	}

	for _, date := range dates {
		for _, t := range ordered {
			if t.OneSitting || sc.need[t.ID] <= 0 || !inRange(t, date) {
				continue
			}
			chunk := sc.greedyChunk(t, date)
			if chunk <= 0 {
				continue
			}
			sc.place(t, date, chunk)
		}
	}
}

// balancedStrategy partitions tasks into four Eisenhower-style tiers and
// fully even-distributes each tier before the next one consumes remaining
// capacity. Urgent means the deadline lands within three days.
type balancedStrategy struct{}

func (balancedStrategy) name() Mode { return ModeBalanced }

const urgentWithinDays = 3

func (balancedStrategy) schedule(sc *scheduleContext, tasks []Task) {
	var tiers [4][]Task
	for _, t := range tasks {
		urgent := false
		if t.HasDeadline() {
			if d, err := DaysBetween(sc.opts.Today, t.Deadline); err == nil && d <= urgentWithinDays {
				urgent = true
			}
		}
		switch {
		case urgent && t.Important:
			tiers[0] = append(tiers[0], t)
		case t.Important:
			tiers[1] = append(tiers[1], t)
		case urgent:
			tiers[2] = append(tiers[2], t)
		default:
			tiers[3] = append(tiers[3], t)
		}
	}
	for _, tier := range tiers {
		sortTasks(tier)
		for _, t := range tier {
			sc.distributePass(t)
		}
		// Within a tier leftovers may still fit on other members' days.
		sc.retryWithin(tier, 1)
	}
}

// evenStrategy spreads each task independently across its own valid range,
// then runs a bounded redistribution pass for hours that failed to place.
type evenStrategy struct{}

func (evenStrategy) name() Mode { return ModeEven }

func (evenStrategy) schedule(sc *scheduleContext, tasks []Task) {
	ordered := append([]Task(nil), tasks...)
	// Even mode ignores priority between tasks; order only for determinism.
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
	for _, t := range ordered {
		sc.distributePass(t)
	}
	sc.retryUnplaced(ordered)
}

// retryWithin is retryUnplaced bounded to the given rounds.
func (sc *scheduleContext) retryWithin(tasks []Task, rounds int) {
	saved := sc.opts.RetryRounds
	sc.opts.RetryRounds = rounds
	sc.retryUnplaced(tasks)
	sc.opts.RetryRounds = saved
}
