package plan

import (
	"fmt"
	"math"
	"time"
)

// Date and time-of-day formats used across the core. Dates are local-time
// calendar days; no timezone math happens inside the core.
const (
	DateLayout = "2006-01-02"
)

const minutesPerDay = 24 * 60

// ParseDate parses a "YYYY-MM-DD" string. Dates are parsed in UTC so that
// day arithmetic never picks up DST offsets from the host timezone.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, s)
	}
	return t, nil
}

// FormatDate renders a time as "YYYY-MM-DD".
func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// AddDays shifts a date string by n calendar days.
func AddDays(date string, n int) (string, error) {
	d, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return FormatDate(d.AddDate(0, 0, n)), nil
}

// DaysBetween returns b - a in whole days (negative if b precedes a).
func DaysBetween(a, b string) (int, error) {
	da, err := ParseDate(a)
	if err != nil {
		return 0, err
	}
	db, err := ParseDate(b)
	if err != nil {
		return 0, err
	}
	// Both midnights are UTC, so the difference is an exact multiple of a day.
	return int(db.Sub(da) / (24 * time.Hour)), nil
}

// MaxDate returns the later of two date strings (lexicographic order is
// chronological for this layout).
func MaxDate(a, b string) string {
	if a > b {
		return a
	}
	return b
}

// MinDate returns the earlier of two date strings.
func MinDate(a, b string) string {
	if a < b {
		return a
	}
	return b
}

// ParseClock parses "HH:MM" into minutes of day. The format is strict:
// exactly two digits on each side of the colon, no trailing characters.
func ParseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	for _, i := range [...]int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
		}
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if h > 23 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	return h*60 + m, nil
}

// ParseClockEnd is ParseClock for interval ends, where "24:00" is a valid
// exclusive bound meaning end of day.
func ParseClockEnd(s string) (int, error) {
	if s == "24:00" {
		return minutesPerDay, nil
	}
	return ParseClock(s)
}

// FormatClock renders minutes of day as "HH:MM". Values are clamped to the
// day so a slot ending at midnight renders as "24:00" rather than wrapping.
func FormatClock(min int) string {
	if min < 0 {
		min = 0
	}
	if min > minutesPerDay {
		min = minutesPerDay
	}
	return fmt.Sprintf("%02d:%02d", min/60, min%60)
}

// RoundHours rounds to the nearest 1/60 hour (whole minutes) to avoid
// floating-point drift when hours are repeatedly split and summed.
func RoundHours(h float64) float64 {
	return math.Round(h*60) / 60
}

// HoursToMinutes converts hours to whole minutes.
func HoursToMinutes(h float64) int {
	return int(math.Round(h * 60))
}

// MinutesToHours converts whole minutes to (already rounded) hours.
func MinutesToHours(m int) float64 {
	return float64(m) / 60
}

// DateRange lists every date from 'from' to 'to' inclusive.
// An inverted range yields nil.
func DateRange(from, to string) ([]string, error) {
	df, err := ParseDate(from)
	if err != nil {
		return nil, err
	}
	dt, err := ParseDate(to)
	if err != nil {
		return nil, err
	}
	if dt.Before(df) {
		return nil, nil
	}
	var out []string
	for d := df; !d.After(dt); d = d.AddDate(0, 0, 1) {
		out = append(out, FormatDate(d))
	}
	return out, nil
}
