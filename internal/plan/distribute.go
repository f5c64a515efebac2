package plan

import "math"

// DistributeSessions turns a task's remaining hours into an ordered list of
// session lengths, one length intended per successive candidate day.
//
// Policy:
//   - One-sitting task: a single session carrying the full remaining hours.
//   - Task with an explicit preferred duration (MaxSessionHours) and enough
//     days: ceil(hours/duration) sessions of that size, last one partial.
//   - Otherwise: min(#days, hours/minBlock) sessions capped at
//     min(4h, dailyAvailableHours), remainder folded into the first session.
//
// All lengths are rounded to the nearest minute.
func DistributeSessions(remainingHours float64, days []string, t Task, settings Settings) []float64 {
	remainingHours = RoundHours(remainingHours)
	if remainingHours <= 0 || len(days) == 0 {
		return nil
	}

	if t.OneSitting {
		return []float64{remainingHours}
	}

	if t.MaxSessionHours > 0 {
		count := int(math.Ceil(remainingHours / t.MaxSessionHours))
		if count <= len(days) {
			lengths := make([]float64, 0, count)
			left := remainingHours
			for i := 0; i < count; i++ {
				l := t.MaxSessionHours
				if l > left {
					l = left
				}
				l = RoundHours(l)
				lengths = append(lengths, l)
				left = RoundHours(left - l)
			}
			return lengths
		}
	}

	minBlock := MinutesToHours(settings.MinBlockMinutesFor(t))
	n := len(days)
	if minBlock > 0 {
		if byMin := int(remainingHours / minBlock); byMin < n {
			n = byMin
		}
	}
	if n < 1 {
		n = 1
	}

	capHours := settings.DailyAvailableHours
	if capHours <= 0 || capHours > 4 {
		capHours = 4
	}

	per := RoundHours(remainingHours / float64(n))
	if per > capHours {
		per = capHours
	}
	lengths := make([]float64, n)
	for i := range lengths {
		lengths[i] = per
	}
	// Rounding drift and capped overflow land on the first session.
	remainder := RoundHours(remainingHours - per*float64(n))
	if remainder > 0 {
		lengths[0] = RoundHours(lengths[0] + remainder)
	}
	return lengths
}
