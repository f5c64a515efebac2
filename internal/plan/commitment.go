package plan

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronDayParser accepts standard 5-field specs plus descriptors ("@weekly").
// Only the day-of-week/day-of-month fields matter for commitments; the
// time-of-day still comes from the commitment's Start/End.
var cronDayParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// CommitmentDay is the expansion of the commitments applicable to one date.
type CommitmentDay struct {
	AllDay bool
	Busy   []Interval
}

// ExpandCommitments resolves which commitments occur on the given date and
// returns their busy intervals, honoring per-date overrides. An all-day
// occurrence blocks the entire date.
func ExpandCommitments(commitments []Commitment, date string) (CommitmentDay, error) {
	var day CommitmentDay
	for _, c := range commitments {
		occurs, err := occursOn(c, date)
		if err != nil {
			return CommitmentDay{}, err
		}
		if !occurs {
			continue
		}

		allDay := c.AllDay
		start, end := c.Start, c.End
		if ov, ok := c.Overrides[date]; ok {
			if ov.Deleted {
				continue
			}
			allDay = ov.AllDay
			if ov.Start != "" {
				start, end = ov.Start, ov.End
			}
		}

		if allDay {
			return CommitmentDay{AllDay: true, Busy: []Interval{{Start: 0, End: minutesPerDay}}}, nil
		}
		sm, err := ParseClock(start)
		if err != nil {
			return CommitmentDay{}, fmt.Errorf("commitment %q: %w", c.Title, err)
		}
		em, err := ParseClockEnd(end)
		if err != nil {
			return CommitmentDay{}, fmt.Errorf("commitment %q: %w", c.Title, err)
		}
		if em <= sm {
			return CommitmentDay{}, fmt.Errorf("commitment %q: %w (%s-%s)", c.Title, ErrBadDuration, start, end)
		}
		day.Busy = append(day.Busy, Interval{Start: sm, End: em})
	}
	return day, nil
}

// CommittedHours returns the study-window hours a date's commitments consume,
// capped at the date's daily capacity. All-day occurrences consume the full
// capacity.
func CommittedHours(commitments []Commitment, date string, settings Settings) (float64, error) {
	day, err := ExpandCommitments(commitments, date)
	if err != nil {
		return 0, err
	}
	capHours := settings.DailyHoursFor(date)
	if day.AllDay {
		return capHours, nil
	}
	w := settings.WindowFor(date)
	win := Interval{Start: w.StartHour * 60, End: w.EndHour * 60}
	var mins int
	for _, iv := range day.Busy {
		s := iv.Start
		if s < win.Start {
			s = win.Start
		}
		e := iv.End
		if e > win.End {
			e = win.End
		}
		if e > s {
			mins += e - s
		}
	}
	h := MinutesToHours(mins)
	if h > capHours {
		h = capHours
	}
	return RoundHours(h), nil
}

func occursOn(c Commitment, date string) (bool, error) {
	d, err := ParseDate(date)
	if err != nil {
		return false, err
	}

	if !c.Recurring {
		for _, od := range c.Dates {
			if od == date {
				return true, nil
			}
		}
		return false, nil
	}

	if c.StartDate != "" && date < c.StartDate {
		return false, nil
	}
	if c.EndDate != "" && date > c.EndDate {
		return false, nil
	}

	if c.CronSpec != "" {
		return cronFiresOn(c.CronSpec, d)
	}
	for _, wd := range c.DaysOfWeek {
		if d.Weekday() == wd {
			return true, nil
		}
	}
	return false, nil
}

// cronFiresOn reports whether the spec fires at any point during the date's
// calendar day.
func cronFiresOn(spec string, day time.Time) (bool, error) {
	sched, err := cronDayParser.Parse(spec)
	if err != nil {
		return false, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	next := sched.Next(dayStart.Add(-time.Second))
	return !next.Before(dayStart) && next.Before(dayStart.AddDate(0, 0, 1)), nil
}
