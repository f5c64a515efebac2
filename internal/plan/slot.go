package plan

import (
	"fmt"
	"sort"
)

// Interval is a half-open [Start, End) minute-of-day range.
type Interval struct {
	Start int
	End   int
}

func (iv Interval) Minutes() int { return iv.End - iv.Start }

func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start < other.End && other.Start < iv.End
}

// FindSlot returns the earliest interval inside the day's study window that
// fits the requested duration, given the day's already-placed sessions and
// busy commitment intervals.
//
// The sweep is earliest-fit, not best-fit: it tests the gap before each busy
// interval in start order and finally the trailing gap to the window end.
// Deterministic and replayable by construction.
//
// ok=false means "no slot today" and is expected data, not a failure.
// Zero or negative durations are rejected with an error.
func FindSlot(durationHours float64, sessions []Session, busy []Interval, window Window, bufferMinutes int) (Interval, bool, error) {
	need := HoursToMinutes(durationHours)
	if need <= 0 {
		return Interval{}, false, fmt.Errorf("%w: %.2fh", ErrBadDuration, durationHours)
	}

	winStart := window.StartHour * 60
	winEnd := window.EndHour * 60
	if winEnd > minutesPerDay {
		winEnd = minutesPerDay
	}
	if winEnd-winStart < need {
		return Interval{}, false, nil
	}

	taken, err := busyIntervals(sessions, busy)
	if err != nil {
		return Interval{}, false, err
	}

	cursor := winStart
	for _, iv := range taken {
		if iv.End <= winStart || iv.Start >= winEnd {
			continue
		}
		if iv.Start-cursor >= need {
			return Interval{Start: cursor, End: cursor + need}, true, nil
		}
		if end := iv.End + bufferMinutes; end > cursor {
			cursor = end
		}
	}
	if winEnd-cursor >= need {
		return Interval{Start: cursor, End: cursor + need}, true, nil
	}
	return Interval{}, false, nil
}

// busyIntervals converts sessions plus commitment intervals into a single
// start-sorted minute-of-day list. Skipped sessions don't block time.
func busyIntervals(sessions []Session, busy []Interval) ([]Interval, error) {
	out := make([]Interval, 0, len(sessions)+len(busy))
	for _, s := range sessions {
		if s.Status.Skipped() {
			continue
		}
		start, err := ParseClock(s.Start)
		if err != nil {
			return nil, err
		}
		end, err := ParseClockEnd(s.End)
		if err != nil {
			return nil, err
		}
		out = append(out, Interval{Start: start, End: end})
	}
	out = append(out, busy...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].End < out[j].End
	})
	return out, nil
}
