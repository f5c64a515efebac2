package plan

import "sort"

// mergeAdjacent collapses same-task sessions on the same day whose time
// ranges touch exactly (prev.End == next.Start) into one block.
func (sc *scheduleContext) mergeAdjacent() {
	for _, date := range sc.plans.Dates() {
		dp := sc.plans[date]
		if len(dp.Sessions) < 2 {
			continue
		}
		sort.SliceStable(dp.Sessions, func(i, j int) bool { return dp.Sessions[i].Start < dp.Sessions[j].Start })
		merged := dp.Sessions[:1]
		for _, s := range dp.Sessions[1:] {
			last := &merged[len(merged)-1]
			if s.TaskID == last.TaskID &&
				s.Start == last.End &&
				s.Status == SessionScheduled && last.Status == SessionScheduled &&
				!s.ManualOverride && !last.ManualOverride {
				last.End = s.End
				last.AllocatedHours = RoundHours(last.AllocatedHours + s.AllocatedHours)
				continue
			}
			merged = append(merged, s)
		}
		dp.Sessions = merged
		sc.plans[date] = dp
	}
}

// prioritizeDaySlots re-sorts each day's sessions by (importance desc,
// deadline asc) and re-assigns time slots in that order, so higher-priority
// tasks claim the earlier part of the study window. Manual-override sessions
// keep their times and act as fixed busy blocks.
func (sc *scheduleContext) prioritizeDaySlots() {
	for _, date := range sc.plans.Dates() {
		dp := sc.plans[date]
		if len(dp.Sessions) < 2 {
			continue
		}

		var fixed, movable []Session
		for _, s := range dp.Sessions {
			if s.ManualOverride || s.Status != SessionScheduled {
				fixed = append(fixed, s)
			} else {
				movable = append(movable, s)
			}
		}
		if len(movable) < 2 {
			continue
		}

		sort.SliceStable(movable, func(i, j int) bool {
			a, b := sc.taskByID[movable[i].TaskID], sc.taskByID[movable[j].TaskID]
			if a.Important != b.Important {
				return a.Important
			}
			ad, bd := a.HasDeadline(), b.HasDeadline()
			if ad != bd {
				return ad
			}
			if ad && a.Deadline != b.Deadline {
				return a.Deadline < b.Deadline
			}
			return movable[i].TaskID < movable[j].TaskID
		})

		day := sc.commitmentDay(date)
		window := sc.settings.WindowFor(date)
		placed := append([]Session(nil), fixed...)
		ok := true
		for i := range movable {
			slot, found, err := FindSlot(movable[i].AllocatedHours, placed, day.Busy, window, sc.settings.SessionBufferMinutes)
			if err != nil || !found {
				ok = false
				break
			}
			movable[i].Start = FormatClock(slot.Start)
			movable[i].End = FormatClock(slot.End)
			placed = append(placed, movable[i])
		}
		if !ok {
			// Couldn't repack cleanly; keep the original assignment.
			continue
		}
		dp.Sessions = placed
		sort.SliceStable(dp.Sessions, func(i, j int) bool { return dp.Sessions[i].Start < dp.Sessions[j].Start })
		sc.plans[date] = dp
	}
}
