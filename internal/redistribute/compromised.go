package redistribute

import (
	"sort"

	"planweave/internal/plan"
	logx "planweave/pkg/logx"
)

// RepairCompromised dissolves compromised sessions and folds their hours
// into the task's healthy sessions, in descending order of spare capacity.
//
// A session is compromised when its hours fall below the minimum block, its
// day runs above the utilization limit, or it is under half the task's
// average session length. A repair that cannot absorb at least MinAbsorption
// of the dissolved hours is abandoned outright: the original session stays,
// no partial state.
func RepairCompromised(plans plan.PlanSet, tasks []plan.Task, settings plan.Settings, commitments []plan.Commitment, opts Options) (RepairResult, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return RepairResult{}, err
	}
	taskByID := make(map[string]plan.Task, len(tasks))
	for _, t := range tasks {
		taskByID[t.ID] = t
	}

	work := plans.Clone()
	res := RepairResult{}

	avg := averageSessionHours(work)

	var victims []plan.Session
	for _, date := range work.Dates() {
		if date < opts.Today {
			continue
		}
		dp := work[date]
		util := dayUtilization(dp, settings)
		for _, s := range dp.Sessions {
			if s.Status != plan.SessionScheduled || s.ManualOverride {
				continue
			}
			t, ok := taskByID[s.TaskID]
			if !ok {
				continue
			}
			if compromiseReason(s, t, util, avg[s.TaskID], settings, opts) != "" {
				victims = append(victims, s)
			}
		}
	}

	// Conditions are re-derived at repair time: each dissolution shifts day
	// loads, which can clear (or cause) a later victim's diagnosis.
	for _, victim := range victims {
		t, ok := taskByID[victim.TaskID]
		if !ok {
			continue
		}
		cur, found := findSession(work, victim)
		if !found || cur.Status != plan.SessionScheduled {
			continue
		}
		util := dayUtilization(work[cur.Date], settings)
		reason := compromiseReason(cur, t, util, avg[cur.TaskID], settings, opts)
		if reason == "" {
			continue
		}

		absorbed, applied, err := planAbsorption(work, cur, t, settings, commitments, opts)
		if err != nil {
			return RepairResult{}, err
		}
		rec := RepairedSession{
			SessionID:     cur.ID,
			TaskID:        cur.TaskID,
			Date:          cur.Date,
			Hours:         cur.AllocatedHours,
			AbsorbedHours: absorbed,
			Reason:        reason,
		}
		if absorbed+1e-9 < opts.MinAbsorption*cur.AllocatedHours {
			res.Abandoned = append(res.Abandoned, rec)
			opts.Log.Debug("compromised session left intact",
				logx.String("task", cur.TaskID),
				logx.String("date", cur.Date),
				logx.Float64("absorbed", absorbed),
			)
			continue
		}
		applied()
		removeSession(work, cur)
		res.Repaired = append(res.Repaired, rec)
	}

	res.Plans = work
	return res, nil
}

func compromiseReason(s plan.Session, t plan.Task, dayUtil float64, avgHours float64, settings plan.Settings, opts Options) string {
	if plan.HoursToMinutes(s.AllocatedHours) < settings.MinBlockMinutesFor(t) {
		return "below minimum session length"
	}
	if dayUtil > opts.UtilizationLimit {
		return "day overloaded"
	}
	if avgHours > 0 && s.AllocatedHours < opts.AvgLengthShare*avgHours {
		return "well below task average length"
	}
	return ""
}

// planAbsorption computes how much of the victim's hours the task's other
// sessions can take, without committing anything. The returned closure
// applies the extensions; call it only when the absorption clears the bar.
func planAbsorption(work plan.PlanSet, victim plan.Session, t plan.Task, settings plan.Settings, commitments []plan.Commitment, opts Options) (float64, func(), error) {
	type slot struct {
		date  string
		idx   int
		spare float64 // hours this sibling can still grow
	}
	var slots []slot
	maxLen := settings.MaxSessionFor(t)

	for _, date := range work.Dates() {
		if date < opts.Today {
			continue
		}
		dp := work[date]
		remaining := plan.RoundHours(settings.DailyHoursFor(date) - dayLoadHours(dp))
		for i, sib := range dp.Sessions {
			if sib.TaskID != t.ID || sib.Status != plan.SessionScheduled || sib.ManualOverride {
				continue
			}
			if sameSession(sib, victim) {
				continue
			}
			spare := plan.RoundHours(maxLen - sib.AllocatedHours)
			if spare <= 0 {
				continue
			}
			gap, err := trailingGapHours(dp, sib, commitments, settings)
			if err != nil {
				return 0, nil, err
			}
			if gap < spare {
				spare = gap
			}
			dayRoom := remaining
			if sib.Date == victim.Date {
				// The victim's own hours free up when it dissolves.
				dayRoom = plan.RoundHours(dayRoom + victim.AllocatedHours)
			}
			if dayRoom < spare {
				spare = dayRoom
			}
			if spare <= 0 {
				continue
			}
			slots = append(slots, slot{date: date, idx: i, spare: spare})
		}
	}
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].spare != slots[j].spare {
			return slots[i].spare > slots[j].spare
		}
		return slots[i].date < slots[j].date
	})

	left := victim.AllocatedHours
	type grant struct {
		date  string
		idx   int
		hours float64
	}
	var grants []grant
	for _, sl := range slots {
		if left <= 0 {
			break
		}
		take := sl.spare
		if take > left {
			take = left
		}
		take = plan.RoundHours(take)
		if take <= 0 {
			continue
		}
		grants = append(grants, grant{date: sl.date, idx: sl.idx, hours: take})
		left = plan.RoundHours(left - take)
	}
	absorbed := plan.RoundHours(victim.AllocatedHours - left)

	apply := func() {
		for _, g := range grants {
			dp := work[g.date]
			s := dp.Sessions[g.idx]
			endMin, err := plan.ParseClockEnd(s.End)
			if err != nil {
				continue
			}
			s.AllocatedHours = plan.RoundHours(s.AllocatedHours + g.hours)
			s.End = plan.FormatClock(endMin + plan.HoursToMinutes(g.hours))
			dp.Sessions[g.idx] = s
			dp.TotalHours = plan.RoundHours(dp.TotalHours + g.hours)
			work[g.date] = dp
		}
	}
	return absorbed, apply, nil
}

// trailingGapHours is the free time directly after a session before the next
// busy block (or the window end), minus the inter-session buffer.
func trailingGapHours(dp plan.DayPlan, s plan.Session, commitments []plan.Commitment, settings plan.Settings) (float64, error) {
	day, err := plan.ExpandCommitments(commitments, dp.Date)
	if err != nil {
		return 0, err
	}
	if day.AllDay {
		return 0, nil
	}
	endMin, err := plan.ParseClockEnd(s.End)
	if err != nil {
		return 0, err
	}
	w := settings.WindowFor(dp.Date)
	limit := w.EndHour * 60

	nextStart := limit
	consider := func(start int) {
		if start >= endMin && start < nextStart {
			nextStart = start
		}
	}
	for _, other := range dp.Sessions {
		if sameSession(other, s) || other.Status.Skipped() {
			continue
		}
		os, err := plan.ParseClock(other.Start)
		if err != nil {
			return 0, err
		}
		consider(os)
	}
	for _, iv := range day.Busy {
		consider(iv.Start)
	}

	gap := nextStart - endMin
	if nextStart < limit {
		gap -= settings.SessionBufferMinutes
	}
	if gap < 0 {
		gap = 0
	}
	return plan.MinutesToHours(gap), nil
}

func dayUtilization(dp plan.DayPlan, settings plan.Settings) float64 {
	capHours := settings.DailyHoursFor(dp.Date)
	if capHours <= 0 {
		return 0
	}
	return dayLoadHours(dp) / capHours
}

func dayLoadHours(dp plan.DayPlan) float64 {
	var sum float64
	for _, s := range dp.Sessions {
		if s.Status.Skipped() || s.Status == plan.SessionFailed {
			continue
		}
		sum += s.AllocatedHours
	}
	return plan.RoundHours(sum)
}

func averageSessionHours(plans plan.PlanSet) map[string]float64 {
	sum := map[string]float64{}
	count := map[string]int{}
	for _, dp := range plans {
		for _, s := range dp.Sessions {
			if !s.Countable() {
				continue
			}
			sum[s.TaskID] += s.AllocatedHours
			count[s.TaskID]++
		}
	}
	out := make(map[string]float64, len(sum))
	for id, total := range sum {
		out[id] = total / float64(count[id])
	}
	return out
}

func findSession(plans plan.PlanSet, s plan.Session) (plan.Session, bool) {
	dp, ok := plans[s.Date]
	if !ok {
		return plan.Session{}, false
	}
	for _, cur := range dp.Sessions {
		if sameSession(cur, s) {
			return cur, true
		}
	}
	return plan.Session{}, false
}
