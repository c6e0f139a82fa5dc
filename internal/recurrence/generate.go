package recurrence

import (
	"sort"
	"time"

	"github.com/dukerupert/sitecal/internal/datemath"
)

// Window is the half-open range [Start, End). A zero End means open ended.
type Window struct {
	Start time.Time
	End   time.Time
}

type Input struct {
	Rule         Rule
	Anchor       time.Time // start of the base event; fixes clock time, location and phase
	Duration     time.Duration
	LastMeeting  *time.Time
	Materialized DaySet

	// IncludeOngoing also emits an occurrence that starts before the window
	// but is still running at Start.
	IncludeOngoing bool
}

type Result struct {
	Dates []time.Time

	// Exhausted means the rule can produce nothing at or after this window.
	Exhausted bool

	// Deferred means no month inside the window is in phase with the rule.
	// Scanning may resume at ResumeAt.
	Deferred bool
	ResumeAt time.Time
}

// bounds is the resolved day-granularity range a cadence scans.
type bounds struct {
	from    time.Time // first candidate day (midnight)
	through time.Time // last candidate day (midnight), inclusive
}

// Generate returns the occurrences of in.Rule inside w in ascending order.
// It never looks outside w and keeps no state between calls.
func Generate(in Input, w Window) Result {
	loc := in.Anchor.Location()
	anchorDay := datemath.TruncateToDay(in.Anchor)
	start := w.Start.In(loc)
	startDay := datemath.TruncateToDay(start)

	end := w.End
	if end.IsZero() {
		end = datemath.Max(startDay, anchorDay).AddDate(1, 0, 0)
	}
	end = end.In(loc)

	from := datemath.Max(startDay, anchorDay)
	if in.IncludeOngoing && in.Duration > 0 {
		from = datemath.Max(anchorDay, datemath.TruncateToDay(start.Add(-in.Duration)))
	}

	last := lastMeeting(in)
	var lastDay time.Time
	if last != nil {
		lastDay = datemath.TruncateToDay(last.In(loc))
		if lastDay.Before(from) {
			return Result{Exhausted: true}
		}
	}
	if !in.Anchor.Before(end) {
		return Result{Exhausted: true}
	}

	through := datemath.TruncateToDay(end)
	if through.Equal(end) {
		through = datemath.AddDays(through, -1)
	}
	if last != nil && lastDay.Before(through) {
		through = lastDay
	}
	if through.Before(from) {
		return Result{}
	}
	b := bounds{from: from, through: through}

	var days []time.Time
	switch in.Rule.Freq {
	case Daily:
		days = dailyDays(in.Rule, anchorDay, b)
	case Weekly:
		days = weeklyDays(in.Rule, in.Anchor, anchorDay, b)
	case Monthly:
		var resume time.Time
		var deferred bool
		days, deferred, resume = monthlyDays(in.Rule, in.Anchor, b)
		if deferred {
			return Result{Deferred: true, ResumeAt: resume}
		}
	}

	var res Result
	for _, day := range days {
		occ := datemath.AtClock(day, in.Anchor)
		if !occ.Before(end) {
			continue
		}
		if day.Before(startDay) && !occ.Add(in.Duration).After(start) {
			continue
		}
		if in.Materialized.Has(day) {
			continue
		}
		res.Dates = append(res.Dates, occ)
	}
	return res
}

// lastMeeting is the earlier of the event's last meeting and the rule's UNTIL.
func lastMeeting(in Input) *time.Time {
	switch {
	case in.LastMeeting == nil:
		return in.Rule.Until
	case in.Rule.Until == nil:
		return in.LastMeeting
	case in.Rule.Until.Before(*in.LastMeeting):
		return in.Rule.Until
	}
	return in.LastMeeting
}

func interval(r Rule) int {
	if r.Interval < 1 || r.Interval > MaxInterval {
		return 1
	}
	return r.Interval
}

func dailyDays(r Rule, anchorDay time.Time, b bounds) []time.Time {
	step := interval(r)

	// Jump straight to the first step on or after b.from. Integer division
	// can land one step short, so hop once more if needed.
	n := 0
	if elapsed := datemath.DaysBetween(anchorDay, b.from); elapsed > 0 {
		n = elapsed / step
		if datemath.AddDays(anchorDay, n*step).Before(b.from) {
			n++
		}
	}

	var days []time.Time
	for d := datemath.AddDays(anchorDay, n*step); !d.After(b.through); d = datemath.AddDays(anchorDay, n*step) {
		if len(days) > 0 && !d.After(days[len(days)-1]) {
			break
		}
		days = append(days, d)
		n++
	}
	return days
}

func weeklyDays(r Rule, anchor, anchorDay time.Time, b bounds) []time.Time {
	period := 7 * interval(r)
	anchorWeek := datemath.StartOfWeek(anchorDay)

	k := 0
	if elapsed := datemath.DaysBetween(anchorWeek, b.from); elapsed > 0 {
		k = elapsed / period
	}
	week := datemath.AddDays(anchorWeek, k*period)

	weekdays := r.ByDay
	if len(weekdays) == 0 {
		weekdays = []time.Weekday{anchor.Weekday()}
	}

	var days []time.Time
	for _, wd := range weekdays {
		offset := int(wd)
		var prev time.Time
		for n := 0; ; n++ {
			d := datemath.AddDays(week, n*period+offset)
			if d.After(b.through) || (n > 0 && !d.After(prev)) {
				break
			}
			prev = d
			if d.Before(b.from) || d.Before(anchorDay) {
				continue
			}
			days = append(days, d)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// monthlyDays walks the months touched by b. When none of them is in phase
// with the anchor month it reports deferred along with the first day of the
// next qualifying month.
func monthlyDays(r Rule, anchor time.Time, b bounds) ([]time.Time, bool, time.Time) {
	step := interval(r)
	anchorMonth := datemath.StartOfMonth(anchor)
	first := datemath.StartOfMonth(b.from)
	last := datemath.StartOfMonth(b.through)

	var days []time.Time
	qualified := false
	for m := first; !m.After(last); m = datemath.AddMonths(m, 1) {
		offset := datemath.MonthsBetween(anchorMonth, m)
		if offset < 0 || offset%step != 0 {
			continue
		}
		qualified = true
		for _, d := range monthDays(r, anchor, m) {
			if d.Before(b.from) || d.After(b.through) {
				continue
			}
			days = append(days, d)
		}
	}
	if qualified {
		return days, false, time.Time{}
	}

	next := datemath.MonthsBetween(anchorMonth, first)
	if next < 0 {
		next = 0
	} else if rem := next % step; rem != 0 {
		next += step - rem
	}
	return nil, true, datemath.AddMonths(anchorMonth, next)
}

// monthDays returns the candidate days of month m (midnight of its 1st).
func monthDays(r Rule, anchor, m time.Time) []time.Time {
	year, month := m.Year(), m.Month()
	size := datemath.DaysInMonth(year, month)
	loc := m.Location()

	if len(r.ByDay) == 0 {
		dom := r.ByMonthDay
		if dom == 0 {
			dom = anchor.Day()
		}
		if dom > size {
			dom = size
		}
		return []time.Time{time.Date(year, month, dom, 0, 0, 0, 0, loc)}
	}

	switch {
	case r.BySetPos > 0:
		count := 0
		for dom := 1; dom <= size; dom++ {
			d := time.Date(year, month, dom, 0, 0, 0, 0, loc)
			if r.HasDay(d.Weekday()) {
				count++
				if count == r.BySetPos {
					return []time.Time{d}
				}
			}
		}
		return nil

	case r.BySetPos < 0:
		// Count down from the last day: -1 is the last match, -2 the one before.
		count := 0
		for dom := size; dom >= 1; dom-- {
			d := time.Date(year, month, dom, 0, 0, 0, 0, loc)
			if r.HasDay(d.Weekday()) {
				count--
				if count == r.BySetPos {
					return []time.Time{d}
				}
			}
		}
		return nil
	}

	var days []time.Time
	for dom := 1; dom <= size; dom++ {
		d := time.Date(year, month, dom, 0, 0, 0, 0, loc)
		if r.HasDay(d.Weekday()) {
			days = append(days, d)
		}
	}
	return days
}
