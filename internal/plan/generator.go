package plan

import (
	"fmt"
	"sort"

	logx "planweave/pkg/logx"
)

// Options tunes a generation run. Today is required; everything else has a
// usable default.
type Options struct {
	Today string // "YYYY-MM-DD"; the run's notion of "now"
	Log   logx.Logger

	// HorizonDays is the rolling window used for tasks without a deadline
	// (default 30). No-deadline tasks may spill into an extended window of
	// twice this size.
	HorizonDays int

	// RetryRounds bounds the even strategy's redistribution pass (default 10).
	RetryRounds int
}

func (o Options) withDefaults() (Options, error) {
	if o.Today == "" {
		return o, fmt.Errorf("options: today is required")
	}
	if _, err := ParseDate(o.Today); err != nil {
		return o, err
	}
	if o.HorizonDays <= 0 {
		o.HorizonDays = 30
	}
	if o.RetryRounds <= 0 {
		o.RetryRounds = 10
	}
	if o.Log.IsZero() {
		o.Log = logx.Nop()
	}
	return o, nil
}

// Generate builds a fresh plan set for the given tasks. Completed tasks are
// ignored; hours that cannot be placed surface as suggestions, never errors.
func Generate(tasks []Task, settings Settings, commitments []Commitment, opts Options) (Result, error) {
	return generate(tasks, settings, commitments, nil, opts)
}

// GenerateWithPreservation behaves like Generate but carries forward
// manually-rescheduled sessions from the existing plan set (they keep their
// dates and times and consume capacity first) and smooths day loads
// afterwards.
func GenerateWithPreservation(tasks []Task, settings Settings, commitments []Commitment, existing PlanSet, opts Options) (Result, error) {
	return generate(tasks, settings, commitments, existing, opts)
}

func generate(tasks []Task, settings Settings, commitments []Commitment, existing PlanSet, opts Options) (Result, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return Result{}, err
	}
	for _, t := range tasks {
		if err := t.Validate(); err != nil {
			return Result{}, err
		}
	}
	mode := settings.Mode
	if mode == "" {
		mode = ModeEven
	}
	strat, err := strategyFor(mode)
	if err != nil {
		return Result{}, err
	}

	sc, err := newScheduleContext(tasks, settings, commitments, opts)
	if err != nil {
		return Result{}, err
	}
	if existing != nil {
		if err := sc.preserveManual(existing); err != nil {
			return Result{}, err
		}
	}

	pending := sc.pendingTasks()
	var withDeadline, withoutDeadline []Task
	for _, t := range pending {
		if t.HasDeadline() {
			withDeadline = append(withDeadline, t)
		} else {
			withoutDeadline = append(withoutDeadline, t)
		}
	}

	strat.schedule(sc, withDeadline)
	sc.scheduleNoDeadline(withoutDeadline)
	if sc.err != nil {
		return Result{}, sc.err
	}

	sc.mergeAdjacent()
	sc.prioritizeDaySlots()
	if existing != nil {
		sc.smoothWorkload()
	}
	sc.finalize()
	if sc.err != nil {
		return Result{}, sc.err
	}

	res := Result{Plans: sc.plans, Suggestions: sc.suggestions(pending)}
	opts.Log.Debug("plan generated",
		logx.String("mode", string(mode)),
		logx.Int("days", len(res.Plans)),
		logx.Int("unscheduled_tasks", len(res.Suggestions)),
	)
	return res, nil
}

// scheduleContext carries the in-progress plan set plus the memoized
// commitment expansion and the per-task remaining-need ledger.
type scheduleContext struct {
	tasks       []Task
	taskByID    map[string]Task
	settings    Settings
	commitments []Commitment
	opts        Options

	plans    PlanSet
	capacity *CapacityTracker
	days     map[string]CommitmentDay
	need     map[string]float64 // task ID -> hours still to place
	seq      map[string]int

	horizonEnd string // last date the run will consider
	err        error
}

func newScheduleContext(tasks []Task, settings Settings, commitments []Commitment, opts Options) (*scheduleContext, error) {
	sc := &scheduleContext{
		tasks:       tasks,
		taskByID:    make(map[string]Task, len(tasks)),
		settings:    settings,
		commitments: commitments,
		opts:        opts,
		plans:       PlanSet{},
		days:        map[string]CommitmentDay{},
		need:        map[string]float64{},
		seq:         map[string]int{},
	}

	end, err := AddDays(opts.Today, 2*opts.HorizonDays)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		sc.taskByID[t.ID] = t
		if t.Status == TaskPending {
			sc.need[t.ID] = RoundHours(t.EstimatedHours)
		}
		if t.HasDeadline() && t.Deadline > end {
			end = t.Deadline
		}
	}
	sc.horizonEnd = end

	committed := map[string]float64{}
	dates, err := DateRange(opts.Today, end)
	if err != nil {
		return nil, err
	}
	for _, d := range dates {
		h, err := CommittedHours(commitments, d, settings)
		if err != nil {
			return nil, err
		}
		if h > 0 {
			committed[d] = h
		}
	}
	sc.capacity = NewCapacityTracker(settings, committed)
	return sc, nil
}

func (sc *scheduleContext) pendingTasks() []Task {
	var out []Task
	for _, t := range sc.tasks {
		if t.Status == TaskPending {
			out = append(out, t)
		}
	}
	sortTasks(out)
	return out
}

// sortTasks orders by importance desc, deadline asc (no deadline last),
// then ID for a stable, replayable order.
func sortTasks(ts []Task) {
	sort.SliceStable(ts, func(i, j int) bool {
		a, b := ts[i], ts[j]
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
		return a.ID < b.ID
	})
}

func (sc *scheduleContext) commitmentDay(date string) CommitmentDay {
	if d, ok := sc.days[date]; ok {
		return d
	}
	d, err := ExpandCommitments(sc.commitments, date)
	if err != nil && sc.err == nil {
		sc.err = err
	}
	sc.days[date] = d
	return d
}

func (sc *scheduleContext) ensureDay(date string) DayPlan {
	if dp, ok := sc.plans[date]; ok {
		return dp
	}
	dp := DayPlan{Date: date, AvailableHours: sc.capacity.Available(date)}
	sc.plans[date] = dp
	return dp
}

// validDays lists the schedulable dates for a task:
// [max(today, startDate), deadline − bufferDays] for deadline tasks, a
// rolling HorizonDays window otherwise, restricted to work days and days
// not fully blocked by an all-day commitment.
func (sc *scheduleContext) validDays(t Task) []string {
	from := sc.opts.Today
	if t.StartDate != "" {
		from = MaxDate(from, t.StartDate)
	}
	var to string
	if t.HasDeadline() {
		var err error
		to, err = AddDays(t.Deadline, -sc.settings.BufferDays)
		if err != nil {
			if sc.err == nil {
				sc.err = err
			}
			return nil
		}
	} else {
		var err error
		to, err = AddDays(sc.opts.Today, sc.opts.HorizonDays)
		if err != nil {
			if sc.err == nil {
				sc.err = err
			}
			return nil
		}
	}
	all, err := DateRange(from, to)
	if err != nil {
		if sc.err == nil {
			sc.err = err
		}
		return nil
	}
	var out []string
	for _, d := range all {
		if !sc.settings.IsWorkDay(d) {
			continue
		}
		if sc.commitmentDay(d).AllDay {
			continue
		}
		out = append(out, d)
	}
	return out
}

// largestGapHours returns the biggest free block on a date, in hours.
func (sc *scheduleContext) largestGapHours(date string) float64 {
	day := sc.commitmentDay(date)
	if day.AllDay {
		return 0
	}
	dp := sc.plans[date]
	w := sc.settings.WindowFor(date)
	taken, err := busyIntervals(dp.Sessions, day.Busy)
	if err != nil {
		if sc.err == nil {
			sc.err = err
		}
		return 0
	}
	winStart, winEnd := w.StartHour*60, w.EndHour*60
	if winEnd > minutesPerDay {
		winEnd = minutesPerDay
	}
	best := 0
	cursor := winStart
	buf := sc.settings.SessionBufferMinutes
	for _, iv := range taken {
		if iv.End <= winStart || iv.Start >= winEnd {
			continue
		}
		if g := iv.Start - cursor; g > best {
			best = g
		}
		if end := iv.End + buf; end > cursor {
			cursor = end
		}
	}
	if g := winEnd - cursor; g > best {
		best = g
	}
	if best < 0 {
		best = 0
	}
	return MinutesToHours(best)
}

// place books one session for the task on the date. Returns false when
// capacity or slot search rejects the placement; the hours stay in the
// task's need ledger.
func (sc *scheduleContext) place(t Task, date string, hours float64) bool {
	hours = RoundHours(hours)
	if hours <= 0 || sc.need[t.ID] < hours-1e-9 {
		return false
	}
	if !sc.capacity.CanPlace(date, hours) {
		return false
	}
	day := sc.commitmentDay(date)
	if day.AllDay {
		return false
	}
	dp := sc.ensureDay(date)
	slot, ok, err := FindSlot(hours, dp.Sessions, day.Busy, sc.settings.WindowFor(date), sc.settings.SessionBufferMinutes)
	if err != nil {
		if sc.err == nil {
			sc.err = err
		}
		return false
	}
	if !ok {
		return false
	}

	sc.seq[t.ID]++
	dp.Sessions = append(dp.Sessions, Session{
		TaskID:         t.ID,
		Date:           date,
		Start:          FormatClock(slot.Start),
		End:            FormatClock(slot.End),
		AllocatedHours: hours,
		Number:         sc.seq[t.ID],
		Status:         SessionScheduled,
	})
	dp.TotalHours = RoundHours(dp.TotalHours + hours)
	sc.plans[date] = dp
	sc.capacity.Debit(date, hours)
	sc.need[t.ID] = RoundHours(sc.need[t.ID] - hours)
	return true
}

// greedyChunk returns how much of the task's need could plausibly land on
// the date in a single session.
func (sc *scheduleContext) greedyChunk(t Task, date string) float64 {
	chunk := sc.need[t.ID]
	if r := sc.capacity.Remaining(date); r < chunk {
		chunk = r
	}
	if m := sc.settings.MaxSessionFor(t); m < chunk {
		chunk = m
	}
	if g := sc.largestGapHours(date); g < chunk {
		chunk = g
	}
	chunk = RoundHours(chunk)
	if HoursToMinutes(chunk) < sc.settings.MinBlockMinutesFor(t) {
		return 0
	}
	return chunk
}

// scheduleOneSitting places a task's whole remaining need as one session.
// Preference: deadline day first (earliest day for important tasks), then a
// fallback search across the valid range. Never split.
func (sc *scheduleContext) scheduleOneSitting(t Task, days []string) {
	need := sc.need[t.ID]
	if need <= 0 || len(days) == 0 {
		return
	}
	ordered := append([]string(nil), days...)
	if t.HasDeadline() && !t.Important {
		// Latest (deadline-side) day first.
		for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		}
	}
	for _, d := range ordered {
		if sc.place(t, d, need) {
			return
		}
	}
}

// distributePass runs the shared per-task pipeline: distribute lengths, then
// walk candidate days placing each length, sliding forward past days that
// reject it.
func (sc *scheduleContext) distributePass(t Task) {
	days := sc.validDays(t)
	if t.OneSitting {
		sc.scheduleOneSitting(t, days)
		return
	}
	need := sc.need[t.ID]
	lengths := DistributeSessions(need, days, t, sc.settings)
	di := 0
	for _, l := range lengths {
		placed := false
		for di < len(days) {
			d := days[di]
			di++
			if sc.place(t, d, l) {
				placed = true
				break
			}
		}
		if !placed {
			break
		}
	}
}

// retryUnplaced is the even strategy's bounded redistribution pass: up to
// RetryRounds sweeps re-offering leftover hours to any day with room.
func (sc *scheduleContext) retryUnplaced(tasks []Task) {
	for round := 0; round < sc.opts.RetryRounds; round++ {
		progressed := false
		for _, t := range tasks {
			if sc.need[t.ID] <= 0 || t.OneSitting {
				continue
			}
			for _, d := range sc.validDays(t) {
				if sc.need[t.ID] <= 0 {
					break
				}
				chunk := sc.greedyChunk(t, d)
				if chunk <= 0 {
					continue
				}
				if sc.place(t, d, chunk) {
					progressed = true
				}
			}
		}
		if !progressed {
			return
		}
	}
}

// scheduleNoDeadline handles tasks without deadlines: scheduled after
// everything else, in an extended window, using the frequency preference to
// pick a day gap between sessions.
func (sc *scheduleContext) scheduleNoDeadline(tasks []Task) {
	sortTasks(tasks)
	endExt, err := AddDays(sc.opts.Today, 2*sc.opts.HorizonDays)
	if err != nil {
		if sc.err == nil {
			sc.err = err
		}
		return
	}
	all, err := DateRange(sc.opts.Today, endExt)
	if err != nil {
		if sc.err == nil {
			sc.err = err
		}
		return
	}

	for _, t := range tasks {
		gap := t.TargetFrequency.DayGap()
		var days []string
		last := -gap
		for i, d := range all {
			if !sc.settings.IsWorkDay(d) || sc.commitmentDay(d).AllDay {
				continue
			}
			if i-last < gap {
				continue
			}
			days = append(days, d)
			last = i
		}
		if t.OneSitting {
			sc.scheduleOneSitting(t, days)
			continue
		}
		lengths := DistributeSessions(sc.need[t.ID], days, t, sc.settings)
		di := 0
		for _, l := range lengths {
			for di < len(days) {
				d := days[di]
				di++
				if sc.place(t, d, l) {
					break
				}
			}
		}
	}
}

func (sc *scheduleContext) suggestions(pending []Task) []Suggestion {
	var out []Suggestion
	for _, t := range pending {
		scheduled := sc.plans.ScheduledHours(t.ID)
		shortMin := HoursToMinutes(t.EstimatedHours) - HoursToMinutes(scheduled)
		if shortMin > 0 {
			out = append(out, Suggestion{TaskID: t.ID, TaskTitle: t.Title, UnscheduledMinutes: shortMin})
		}
	}
	return out
}

// finalize renumbers sessions per task in chronological order, assigns
// deterministic IDs, recomputes day totals, and drops empty days.
func (sc *scheduleContext) finalize() {
	type ref struct {
		date string
		idx  int
	}
	byTask := map[string][]ref{}
	for _, date := range sc.plans.Dates() {
		dp := sc.plans[date]
		sort.SliceStable(dp.Sessions, func(i, j int) bool { return dp.Sessions[i].Start < dp.Sessions[j].Start })
		sc.plans[date] = dp
		for i, s := range dp.Sessions {
			byTask[s.TaskID] = append(byTask[s.TaskID], ref{date: date, idx: i})
		}
	}
	for taskID, refs := range byTask {
		sort.SliceStable(refs, func(i, j int) bool {
			if refs[i].date != refs[j].date {
				return refs[i].date < refs[j].date
			}
			return sc.plans[refs[i].date].Sessions[refs[i].idx].Start < sc.plans[refs[j].date].Sessions[refs[j].idx].Start
		})
		for n, r := range refs {
			dp := sc.plans[r.date]
			s := dp.Sessions[r.idx]
			s.Number = n + 1
			if s.ID == "" {
				s.ID = fmt.Sprintf("%s#%d", taskID, s.Number)
			}
			dp.Sessions[r.idx] = s
			sc.plans[r.date] = dp
		}
	}
	for date, dp := range sc.plans {
		if len(dp.Sessions) == 0 {
			delete(sc.plans, date)
			continue
		}
		var total float64
		for _, s := range dp.Sessions {
			if s.Countable() {
				total += s.AllocatedHours
			}
		}
		dp.TotalHours = RoundHours(total)
		sc.plans[date] = dp
	}
}
