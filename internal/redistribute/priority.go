package redistribute

import (
	"container/heap"

	"planweave/internal/plan"
)

// candidate is one missed session waiting for recovery.
type candidate struct {
	session  plan.Session
	task     plan.Task
	priority int
}

// score computes the recovery priority:
// importance + deadline urgency + session age + session size.
func score(s plan.Session, t plan.Task, today string, opts Options) int {
	p := 0
	if t.Important {
		p += opts.ImportancePoints
	}
	if t.HasDeadline() {
		daysLeft, err := plan.DaysBetween(today, t.Deadline)
		switch {
		case err != nil:
			// unparseable deadline contributes nothing
		case daysLeft <= 0:
			p += opts.UrgencyMax // overdue saturates
		default:
			u := opts.UrgencyMax - daysLeft*opts.UrgencyPerDay
			if u < 0 {
				u = 0
			}
			p += u
		}
	}
	if late, err := plan.DaysBetween(s.Date, today); err == nil && late > 0 {
		a := late * opts.AgePerDay
		if a > opts.AgeMax {
			a = opts.AgeMax
		}
		p += a
	}
	size := int(s.AllocatedHours * float64(opts.SizePerHour))
	if size > opts.SizeMax {
		size = opts.SizeMax
	}
	p += size
	return p
}

// candidateHeap is a max-heap over priority, with (date, session ID) as the
// tiebreaker so runs are replayable.
type candidateHeap []candidate

func (h candidateHeap) Len() int { return len(h) }
func (h candidateHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	if h[i].session.Date != h[j].session.Date {
		return h[i].session.Date < h[j].session.Date
	}
	return h[i].session.ID < h[j].session.ID
}
func (h candidateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x any)   { *h = append(*h, x.(candidate)) }
func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

func newCandidateHeap(items []candidate) *candidateHeap {
	h := candidateHeap(items)
	heap.Init(&h)
	return &h
}

func (h *candidateHeap) next() (candidate, bool) {
	if h.Len() == 0 {
		return candidate{}, false
	}
	return heap.Pop(h).(candidate), true
}
