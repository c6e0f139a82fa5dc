package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dukerupert/sitecal/internal/datemath"
	"github.com/dukerupert/sitecal/internal/recurrence"
)

// runExpand prints the occurrences of one rule, one RFC3339 start per line,
// followed by a summary line.
func runExpand(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("expand", flag.ContinueOnError)
	fs.SetOutput(out)
	rule := fs.String("rule", "", "recurrence rule, e.g. FREQ=WEEKLY;BYDAY=MO,TH")
	start := fs.String("start", "", "first occurrence (RFC3339)")
	end := fs.String("end", "", "end of the first occurrence (RFC3339, default start+1h)")
	from := fs.String("from", "", "window start (YYYY-MM-DD or RFC3339, default start)")
	to := fs.String("to", "", "window end, exclusive (YYYY-MM-DD or RFC3339, default open)")
	limit := fs.Int("limit", 20, "maximum occurrences to print, 0 for no limit")
	last := fs.String("last", "", "last meeting day (YYYY-MM-DD)")
	skip := fs.String("skip", "", "comma separated days already materialized (YYYY-MM-DD)")
	ongoing := fs.Bool("ongoing", false, "include an occurrence that started before the window and is still running")
	tz := fs.String("tz", "", "zone the series repeats in (default the zone of -start)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *rule == "" || *start == "" {
		return fmt.Errorf("-rule and -start are required")
	}

	loc := time.UTC
	if *tz != "" {
		l, err := time.LoadLocation(*tz)
		if err != nil {
			return fmt.Errorf("-tz: %w", err)
		}
		loc = l
	}

	anchor, err := time.Parse(time.RFC3339, *start)
	if err != nil {
		return fmt.Errorf("-start: %w", err)
	}
	if *tz != "" {
		anchor = anchor.In(loc)
	} else {
		loc = anchor.Location()
	}

	duration := time.Hour
	if *end != "" {
		e, err := time.Parse(time.RFC3339, *end)
		if err != nil {
			return fmt.Errorf("-end: %w", err)
		}
		if !e.After(anchor) {
			return fmt.Errorf("-end must be after -start")
		}
		duration = e.Sub(anchor)
	}

	w := recurrence.Window{Start: anchor}
	if *from != "" {
		if w.Start, err = parseDay(*from, loc); err != nil {
			return fmt.Errorf("-from: %w", err)
		}
	}
	if *to != "" {
		if w.End, err = parseDay(*to, loc); err != nil {
			return fmt.Errorf("-to: %w", err)
		}
	}

	parsed, err := recurrence.Parse(*rule)
	if err != nil {
		return err
	}

	ev := recurrence.Event{Anchor: anchor, Duration: duration, Rule: *rule}
	if *last != "" {
		d, err := parseDay(*last, loc)
		if err != nil {
			return fmt.Errorf("-last: %w", err)
		}
		ev.LastMeeting = &d
	}
	if *skip != "" {
		ev.Materialized = recurrence.DaySet{}
		for _, s := range strings.Split(*skip, ",") {
			d, err := datemath.ParseDate(strings.TrimSpace(s))
			if err != nil {
				return fmt.Errorf("-skip: %w", err)
			}
			ev.Materialized.AddDate(d)
		}
	}

	exp := recurrence.ExpandRule(parsed, ev, w, recurrence.Options{Limit: *limit, IncludeOngoing: *ongoing})

	for _, d := range exp.Dates {
		fmt.Fprintln(out, d.Format(time.RFC3339))
	}

	status := "more may follow"
	switch {
	case exp.Truncated:
		status = "truncated"
	case exp.Exhausted:
		status = "series ended"
	}
	fmt.Fprintf(out, "# %s: %d occurrences, %d cycles, %s\n", parsed.Describe(), len(exp.Dates), exp.Cycles, status)
	return nil
}

func parseDay(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", s, loc)
}
