package recurrence

import (
	"sort"
	"time"

	"github.com/dukerupert/sitecal/internal/datemath"
)

// DefaultMaxCycles bounds an expansion to roughly a century of monthly cycles.
const DefaultMaxCycles = 1200

// Event is the recurring base event an expansion runs over.
type Event struct {
	Anchor       time.Time
	Duration     time.Duration
	Rule         string
	LastMeeting  *time.Time
	Materialized DaySet
}

type Options struct {
	// Limit stops the expansion once this many dates are collected.
	// Limit 1 is the next-occurrence lookup. Zero means no limit.
	Limit          int
	MaxCycles      int
	IncludeOngoing bool
}

type Expansion struct {
	Dates     []time.Time
	Cycles    int
	Exhausted bool
	Truncated bool // MaxCycles was reached before the window was covered
}

// Expand parses ev.Rule and walks w one calendar month at a time, collecting
// the generated occurrence starts in ascending order. A zero w.End expands
// until Limit, exhaustion or MaxCycles.
func Expand(ev Event, w Window, opts Options) (Expansion, error) {
	rule, err := Parse(ev.Rule)
	if err != nil {
		return Expansion{}, err
	}
	return ExpandRule(rule, ev, w, opts), nil
}

// ExpandRule is Expand for an already parsed rule.
func ExpandRule(rule Rule, ev Event, w Window, opts Options) Expansion {
	maxCycles := opts.MaxCycles
	if maxCycles <= 0 {
		maxCycles = DefaultMaxCycles
	}

	in := Input{
		Rule:           rule,
		Anchor:         ev.Anchor,
		Duration:       ev.Duration,
		LastMeeting:    ev.LastMeeting,
		Materialized:   ev.Materialized,
		IncludeOngoing: opts.IncludeOngoing,
	}

	loc := ev.Anchor.Location()
	end := w.End
	if !end.IsZero() {
		end = end.In(loc)
	}

	var exp Expansion
	cur := w.Start.In(loc)
	if anchorDay := datemath.TruncateToDay(ev.Anchor); cur.Before(anchorDay) {
		cur = anchorDay
	}

	seen := make(map[int64]struct{})
	for {
		if !end.IsZero() && !cur.Before(end) {
			break
		}
		if exp.Cycles >= maxCycles {
			exp.Truncated = true
			break
		}
		exp.Cycles++

		sliceEnd := datemath.AddMonths(cur, 1)
		if !end.IsZero() && end.Before(sliceEnd) {
			sliceEnd = end
		}

		res := Generate(in, Window{Start: cur, End: sliceEnd})
		// Ongoing occurrences only make sense at the head of the window.
		in.IncludeOngoing = false

		for _, d := range res.Dates {
			key := d.UnixNano()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			exp.Dates = append(exp.Dates, d)
		}
		if opts.Limit > 0 && len(exp.Dates) >= opts.Limit {
			break
		}
		if res.Exhausted {
			exp.Exhausted = true
			break
		}
		if res.Deferred && res.ResumeAt.After(sliceEnd) {
			cur = res.ResumeAt
			continue
		}
		cur = sliceEnd
	}

	sort.Slice(exp.Dates, func(i, j int) bool { return exp.Dates[i].Before(exp.Dates[j]) })
	if opts.Limit > 0 && len(exp.Dates) > opts.Limit {
		exp.Dates = exp.Dates[:opts.Limit]
	}
	return exp
}
