package redistribute

import (
	"fmt"

	"planweave/internal/plan"
	logx "planweave/pkg/logx"
)

// MissedSessions recovers past-dated, non-terminal sessions by moving them
// to the earliest valid future slot, processed in priority order.
//
// The input plan set is never mutated. If any overlap survives the run and
// rollback is enabled (the default), the batch is discarded and the original
// set is returned with RollbackPerformed set.
func MissedSessions(plans plan.PlanSet, tasks []plan.Task, settings plan.Settings, commitments []plan.Commitment, opts Options) (Result, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return Result{}, err
	}
	taskByID := make(map[string]plan.Task, len(tasks))
	for _, t := range tasks {
		taskByID[t.ID] = t
	}

	work := MarkMissed(plans, opts.Today)

	var items []candidate
	for _, date := range work.Dates() {
		if date >= opts.Today {
			break
		}
		for _, s := range work[date].Sessions {
			if s.Status != plan.SessionMissed || s.ManualOverride {
				continue
			}
			t, ok := taskByID[s.TaskID]
			if !ok || t.Status != plan.TaskPending {
				continue
			}
			items = append(items, candidate{session: s, task: t, priority: score(s, t, opts.Today, opts)})
		}
	}
	if len(items) == 0 {
		return Result{Plans: work, Message: "no missed sessions"}, nil
	}

	horizon, err := plan.AddDays(opts.Today, opts.MaxRedistributionDays)
	if err != nil {
		return Result{}, err
	}
	committed := map[string]float64{}
	dates, err := plan.DateRange(opts.Today, horizon)
	if err != nil {
		return Result{}, err
	}
	for _, d := range dates {
		h, err := plan.CommittedHours(commitments, d, settings)
		if err != nil {
			return Result{}, err
		}
		if h > 0 {
			committed[d] = h
		}
	}
	capacity := plan.NewCapacityTracker(settings, committed)
	capacity.Seed(futureOnly(work, opts.Today))

	res := Result{}
	q := newCandidateHeap(items)
	for {
		c, ok := q.next()
		if !ok {
			break
		}
		moved, reason := recoverOne(work, c, settings, commitments, capacity, opts)
		if moved != nil {
			res.Moved = append(res.Moved, *moved)
			opts.Log.Debug("session redistributed",
				logx.String("task", c.task.ID),
				logx.String("from", moved.FromDate),
				logx.String("to", moved.ToDate),
				logx.Int("priority", c.priority),
			)
			continue
		}
		markFailed(work, c.session, reason)
		res.Failed = append(res.Failed, Failed{
			SessionID: c.session.ID,
			TaskID:    c.session.TaskID,
			Date:      c.session.Date,
			Reason:    reason,
		})
	}

	violations, err := plan.FindOverlaps(work, commitments)
	if err != nil {
		return Result{}, err
	}
	if len(violations) > 0 {
		for _, v := range violations {
			res.Reasons = append(res.Reasons, v.String())
		}
		if !opts.DisableRollback {
			opts.Log.Warn("redistribution rolled back",
				logx.Int("violations", len(violations)),
			)
			return Result{
				Plans:             plans,
				RollbackPerformed: true,
				Message:           "overlap detected after redistribution; batch discarded",
				Reasons:           res.Reasons,
			}, nil
		}
	}

	res.Plans = work
	res.Message = fmt.Sprintf("moved %d, failed %d", len(res.Moved), len(res.Failed))
	return res, nil
}

// recoverOne searches forward for a valid slot and moves the session there.
// Returns (nil, reason) when nothing within the horizon accepts it.
func recoverOne(work plan.PlanSet, c candidate, settings plan.Settings, commitments []plan.Commitment, capacity *plan.CapacityTracker, opts Options) (*Moved, string) {
	s := c.session
	t := c.task

	limit, err := plan.AddDays(opts.Today, opts.MaxRedistributionDays)
	if err != nil {
		return nil, err.Error()
	}
	if t.HasDeadline() {
		dl, err := plan.AddDays(t.Deadline, -settings.BufferDays)
		if err != nil {
			return nil, err.Error()
		}
		if dl < opts.Today {
			return nil, "deadline already passed"
		}
		limit = plan.MinDate(limit, dl)
	}

	for date := opts.Today; date <= limit; {
		next, err := plan.AddDays(date, 1)
		if err != nil {
			return nil, err.Error()
		}
		if !settings.IsWorkDay(date) {
			date = next
			continue
		}
		day, err := plan.ExpandCommitments(commitments, date)
		if err != nil {
			return nil, err.Error()
		}
		if day.AllDay || !capacity.CanPlace(date, s.AllocatedHours) {
			date = next
			continue
		}
		dp := work[date]
		slot, ok, err := plan.FindSlot(s.AllocatedHours, dp.Sessions, day.Busy, settings.WindowFor(date), settings.SessionBufferMinutes)
		if err != nil {
			return nil, err.Error()
		}
		if !ok {
			date = next
			continue
		}

		removeSession(work, s)
		moved := s
		if moved.OriginalDate == "" {
			moved.OriginalDate = s.Date
			moved.OriginalStart = s.Start
			moved.OriginalEnd = s.End
		}
		moved.History = append(moved.History, plan.RescheduleMove{
			MovedAt:   opts.Today,
			FromDate:  s.Date,
			ToDate:    date,
			FromStart: s.Start,
			ToStart:   plan.FormatClock(slot.Start),
			Reason:    "missed session recovery",
		})
		moved.Date = date
		moved.Start = plan.FormatClock(slot.Start)
		moved.End = plan.FormatClock(slot.End)
		moved.Status = plan.SessionRedistributed

		if dp.Date == "" {
			dp.Date = date
			dp.AvailableHours = capacity.Available(date)
		}
		dp.Sessions = append(dp.Sessions, moved)
		dp.TotalHours = plan.RoundHours(dp.TotalHours + moved.AllocatedHours)
		work[date] = dp
		capacity.Debit(date, moved.AllocatedHours)

		return &Moved{
			SessionID: moved.ID,
			TaskID:    moved.TaskID,
			FromDate:  s.Date,
			ToDate:    date,
			NewStart:  moved.Start,
			NewEnd:    moved.End,
			Priority:  c.priority,
		}, ""
	}
	return nil, fmt.Sprintf("no valid slot within %d days", opts.MaxRedistributionDays)
}

func markFailed(work plan.PlanSet, s plan.Session, reason string) {
	dp := work[s.Date]
	for i, cur := range dp.Sessions {
		if sameSession(cur, s) {
			dp.Sessions[i].Status = plan.SessionFailed
			dp.Sessions[i].History = append(dp.Sessions[i].History, plan.RescheduleMove{
				FromDate: s.Date,
				Reason:   reason,
			})
			break
		}
	}
	work[s.Date] = dp
}

func removeSession(work plan.PlanSet, s plan.Session) {
	dp := work[s.Date]
	for i, cur := range dp.Sessions {
		if sameSession(cur, s) {
			dp.Sessions = append(dp.Sessions[:i], dp.Sessions[i+1:]...)
			dp.TotalHours = plan.RoundHours(dp.TotalHours - s.AllocatedHours)
			break
		}
	}
	work[s.Date] = dp
}

func sameSession(a, b plan.Session) bool {
	if a.ID != "" && b.ID != "" {
		return a.ID == b.ID
	}
	return a.TaskID == b.TaskID && a.Date == b.Date && a.Start == b.Start
}

func futureOnly(plans plan.PlanSet, today string) plan.PlanSet {
	out := plan.PlanSet{}
	for date, dp := range plans {
		if date >= today {
			out[date] = dp
		}
	}
	return out
}
