package plan

// CapacityTracker is a per-date remaining-hours ledger, debited as sessions
// are placed. It is recomputed from its inputs on construction; placements
// that would drive a date negative are rejected upstream and reported as
// unscheduled hours.
type CapacityTracker struct {
	settings  Settings
	committed map[string]float64 // commitment hours per date
	placed    map[string]float64 // non-completed session hours per date
}

// NewCapacityTracker builds a ledger for the given dates. committedHours maps
// each date to the hours its commitments consume (all-day commitments should
// map to the full daily capacity).
func NewCapacityTracker(settings Settings, committedHours map[string]float64) *CapacityTracker {
	ct := &CapacityTracker{
		settings:  settings,
		committed: make(map[string]float64, len(committedHours)),
		placed:    make(map[string]float64),
	}
	for d, h := range committedHours {
		ct.committed[d] = h
	}
	return ct
}

// Seed records already-placed sessions (e.g. preserved manual overrides).
func (ct *CapacityTracker) Seed(plans PlanSet) {
	for date, dp := range plans {
		for _, s := range dp.Sessions {
			if s.Status == SessionCompleted || s.Status.Skipped() {
				continue
			}
			ct.placed[date] = RoundHours(ct.placed[date] + s.AllocatedHours)
		}
	}
}

// Remaining returns the hours still available on a date, floored at zero.
func (ct *CapacityTracker) Remaining(date string) float64 {
	r := ct.settings.DailyHoursFor(date) - ct.committed[date] - ct.placed[date]
	if r < 0 {
		return 0
	}
	return RoundHours(r)
}

// Available returns the date's capacity minus committed hours, before any
// session placement. This is the day plan's AvailableHours figure.
func (ct *CapacityTracker) Available(date string) float64 {
	a := ct.settings.DailyHoursFor(date) - ct.committed[date]
	if a < 0 {
		return 0
	}
	return RoundHours(a)
}

// CanPlace reports whether hours fit on the date without going negative.
func (ct *CapacityTracker) CanPlace(date string, hours float64) bool {
	return hours > 0 && ct.Remaining(date)+1e-9 >= hours
}

// Debit records a placement. Callers must have checked CanPlace.
func (ct *CapacityTracker) Debit(date string, hours float64) {
	ct.placed[date] = RoundHours(ct.placed[date] + hours)
}

// Credit reverses a placement (session removed or dissolved).
func (ct *CapacityTracker) Credit(date string, hours float64) {
	v := RoundHours(ct.placed[date] - hours)
	if v <= 0 {
		delete(ct.placed, date)
		return
	}
	ct.placed[date] = v
}
