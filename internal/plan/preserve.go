package plan

// preserveManual carries forward manually-rescheduled sessions from the
// prior plan set. They keep their dates, times, and IDs, consume capacity
// before anything else is placed, and reduce their task's remaining need.
func (sc *scheduleContext) preserveManual(existing PlanSet) error {
	for _, date := range existing.Dates() {
		if date < sc.opts.Today {
			continue
		}
		for _, s := range existing[date].Sessions {
			if !s.ManualOverride || s.Status.Terminal() {
				continue
			}
			if _, ok := sc.taskByID[s.TaskID]; !ok {
				continue // task was deleted since the last run
			}
			dp := sc.ensureDay(date)
			dp.Sessions = append(dp.Sessions, s)
			dp.TotalHours = RoundHours(dp.TotalHours + s.AllocatedHours)
			sc.plans[date] = dp
			sc.capacity.Debit(date, s.AllocatedHours)
			sc.need[s.TaskID] = RoundHours(sc.need[s.TaskID] - s.AllocatedHours)
			if sc.need[s.TaskID] < 0 {
				sc.need[s.TaskID] = 0
			}
			if n := s.Number; n > sc.seq[s.TaskID] {
				sc.seq[s.TaskID] = n
			}
		}
	}
	return nil
}

// smoothWorkload is the preservation-mode post pass: preserved manual
// sessions can overload a day beyond its capacity, so non-manual sessions
// are pushed to later days with room. Bounded, best-effort; hours that
// cannot move stay where they are.
func (sc *scheduleContext) smoothWorkload() {
	const lookahead = 7
	for _, date := range sc.plans.Dates() {
		dp := sc.plans[date]
		capHours := sc.settings.DailyHoursFor(date) - sc.capacity.committed[date]
		overload := RoundHours(dayLoad(dp) - capHours)
		if overload <= 0 {
			continue
		}
		// Move smallest movable sessions first; they relocate most easily.
		for i := len(dp.Sessions) - 1; i >= 0 && overload > 0; i-- {
			dp = sc.plans[date]
			if i >= len(dp.Sessions) {
				continue
			}
			s := dp.Sessions[i]
			if s.ManualOverride || s.Status != SessionScheduled {
				continue
			}
			t, ok := sc.taskByID[s.TaskID]
			if !ok {
				continue
			}
			if moved := sc.relocate(t, s, date, lookahead); moved {
				dp = sc.plans[date]
				overload = RoundHours(overload - s.AllocatedHours)
			}
		}
	}
}

func dayLoad(dp DayPlan) float64 {
	var sum float64
	for _, s := range dp.Sessions {
		if s.Status == SessionCompleted || s.Status.Skipped() {
			continue
		}
		sum += s.AllocatedHours
	}
	return RoundHours(sum)
}

// relocate moves one session to a later day with spare capacity, staying
// inside the task's valid range. Returns false when no day accepts it.
func (sc *scheduleContext) relocate(t Task, s Session, fromDate string, lookahead int) bool {
	limit := sc.horizonEnd
	if t.HasDeadline() {
		d, err := AddDays(t.Deadline, -sc.settings.BufferDays)
		if err != nil {
			return false
		}
		limit = d
	}
	for i := 1; i <= lookahead; i++ {
		date, err := AddDays(fromDate, i)
		if err != nil || date > limit {
			return false
		}
		if !sc.settings.IsWorkDay(date) || sc.commitmentDay(date).AllDay {
			continue
		}
		if !sc.capacity.CanPlace(date, s.AllocatedHours) {
			continue
		}
		dp := sc.ensureDay(date)
		day := sc.commitmentDay(date)
		slot, ok, err := FindSlot(s.AllocatedHours, dp.Sessions, day.Busy, sc.settings.WindowFor(date), sc.settings.SessionBufferMinutes)
		if err != nil || !ok {
			continue
		}

		// Remove from the source day.
		src := sc.plans[fromDate]
		for j, cur := range src.Sessions {
			if (s.ID != "" && cur.ID == s.ID) || (cur.TaskID == s.TaskID && cur.Start == s.Start && cur.Date == s.Date) {
				src.Sessions = append(src.Sessions[:j], src.Sessions[j+1:]...)
				break
			}
		}
		src.TotalHours = RoundHours(src.TotalHours - s.AllocatedHours)
		sc.plans[fromDate] = src
		sc.capacity.Credit(fromDate, s.AllocatedHours)

		s.Date = date
		s.Start = FormatClock(slot.Start)
		s.End = FormatClock(slot.End)
		dp.Sessions = append(dp.Sessions, s)
		dp.TotalHours = RoundHours(dp.TotalHours + s.AllocatedHours)
		sc.plans[date] = dp
		sc.capacity.Debit(date, s.AllocatedHours)
		return true
	}
	return false
}
