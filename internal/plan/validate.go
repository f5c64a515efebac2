package plan

import (
	"fmt"
	"sort"
)

// OverlapViolation describes two blocks colliding on one date.
type OverlapViolation struct {
	Date   string
	First  string // "task <id> HH:MM-HH:MM" or "commitment <title>"
	Second string
}

func (v OverlapViolation) String() string {
	return fmt.Sprintf("%s: %s overlaps %s", v.Date, v.First, v.Second)
}

// FindOverlaps scans a plan set for same-date collisions between sessions and
// between sessions and commitments. A clean result is the post-condition of
// both generation and redistribution.
func FindOverlaps(plans PlanSet, commitments []Commitment) ([]OverlapViolation, error) {
	var out []OverlapViolation
	for _, date := range plans.Dates() {
		dp := plans[date]
		day, err := ExpandCommitments(commitments, date)
		if err != nil {
			return nil, err
		}

		type block struct {
			iv   Interval
			desc string
			sess bool
		}
		var blocks []block
		for _, s := range dp.Sessions {
			if s.Status.Skipped() {
				continue
			}
			iv, err := sessionInterval(s)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, block{
				iv:   iv,
				desc: fmt.Sprintf("task %s %s-%s", s.TaskID, s.Start, s.End),
				sess: true,
			})
		}
		if day.AllDay && len(blocks) > 0 {
			for _, b := range blocks {
				out = append(out, OverlapViolation{Date: date, First: b.desc, Second: "all-day commitment"})
			}
			continue
		}
		for _, iv := range day.Busy {
			blocks = append(blocks, block{iv: iv, desc: fmt.Sprintf("commitment %s-%s", FormatClock(iv.Start), FormatClock(iv.End))})
		}

		sort.Slice(blocks, func(i, j int) bool { return blocks[i].iv.Start < blocks[j].iv.Start })
		// Each block must be checked against every earlier block still open at
		// its start, not just its sorted neighbor: a long commitment can
		// contain later blocks that never sit adjacent to it.
		for i := 1; i < len(blocks); i++ {
			cur := blocks[i]
			for j := 0; j < i; j++ {
				prev := blocks[j]
				if !prev.sess && !cur.sess {
					continue // commitments may overlap each other
				}
				if prev.iv.Overlaps(cur.iv) {
					out = append(out, OverlapViolation{Date: date, First: prev.desc, Second: cur.desc})
				}
			}
		}
	}
	return out, nil
}

func sessionInterval(s Session) (Interval, error) {
	start, err := ParseClock(s.Start)
	if err != nil {
		return Interval{}, err
	}
	end, err := ParseClockEnd(s.End)
	if err != nil {
		return Interval{}, err
	}
	return Interval{Start: start, End: end}, nil
}
