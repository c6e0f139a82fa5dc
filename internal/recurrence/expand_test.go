package recurrence

import (
	"errors"
	"math"
	"testing"
	"time"
)

const twoDays = 48 * time.Hour

func d(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func day(year int, month time.Month, dom int) time.Time {
	return d(year, month, dom, 0, 0)
}

func ptr(t time.Time) *time.Time { return &t }

func formatDays(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, t := range dates {
		out[i] = t.Format("2006-01-02")
	}
	return out
}

func assertDays(t *testing.T, name string, got []time.Time, want ...string) {
	t.Helper()
	gotDays := formatDays(got)
	if len(gotDays) != len(want) {
		t.Fatalf("%s: got %d dates %v, want %d %v", name, len(gotDays), gotDays, len(want), want)
	}
	for i := range want {
		if gotDays[i] != want[i] {
			t.Errorf("%s: date[%d] = %s, want %s", name, i, gotDays[i], want[i])
		}
	}
}

func mustExpand(t *testing.T, ev Event, w Window, opts Options) Expansion {
	t.Helper()
	exp, err := Expand(ev, w, opts)
	if err != nil {
		t.Fatalf("Expand(%q) error: %v", ev.Rule, err)
	}
	return exp
}

func TestGenerateDailyInterval(t *testing.T) {
	r, _ := Parse("FREQ=DAILY;INTERVAL=3")
	anchor := d(2011, 7, 1, 10, 30)
	res := Generate(Input{Rule: r, Anchor: anchor}, Window{Start: day(2011, 7, 11), End: day(2011, 7, 21)})
	assertDays(t, "daily/3", res.Dates, "2011-07-13", "2011-07-16", "2011-07-19")
	if res.Exhausted || res.Deferred {
		t.Errorf("unexpected flags %+v", res)
	}
}

func TestGenerateKeepsAnchorClock(t *testing.T) {
	r, _ := Parse("FREQ=WEEKLY;BYDAY=MO,WE,FR")
	anchor := d(2011, 7, 18, 9, 15) // Monday
	res := Generate(Input{Rule: r, Anchor: anchor}, Window{Start: day(2011, 7, 18), End: day(2011, 7, 25)})
	assertDays(t, "weekly fan-out", res.Dates, "2011-07-18", "2011-07-20", "2011-07-22")
	seen := map[time.Weekday]bool{}
	for _, occ := range res.Dates {
		if occ.Hour() != 9 || occ.Minute() != 15 {
			t.Errorf("occurrence %v lost the anchor clock", occ)
		}
		seen[occ.Weekday()] = true
	}
	if len(seen) != 3 {
		t.Errorf("weekdays = %v, want 3 distinct", seen)
	}
}

func TestGenerateExhausted(t *testing.T) {
	r, _ := Parse("FREQ=DAILY")
	anchor := d(2011, 7, 19, 10, 30)

	res := Generate(Input{Rule: r, Anchor: anchor, LastMeeting: ptr(day(2011, 7, 1))},
		Window{Start: day(2011, 7, 10), End: day(2011, 8, 1)})
	if !res.Exhausted || len(res.Dates) != 0 {
		t.Errorf("last meeting before window: got %+v, want exhausted", res)
	}

	res = Generate(Input{Rule: r, Anchor: anchor}, Window{Start: day(2011, 7, 10), End: day(2011, 7, 15)})
	if !res.Exhausted || len(res.Dates) != 0 {
		t.Errorf("anchor after window: got %+v, want exhausted", res)
	}
}

func TestGenerateMonthlyDeferred(t *testing.T) {
	r, _ := Parse("FREQ=MONTHLY;INTERVAL=3;BYDAY=FR;BYSETPOS=3")
	anchor := d(2011, 7, 14, 10, 30)
	res := Generate(Input{Rule: r, Anchor: anchor}, Window{Start: day(2011, 8, 1), End: day(2011, 9, 1)})
	if !res.Deferred {
		t.Fatalf("got %+v, want deferred", res)
	}
	if want := day(2011, 10, 1); !res.ResumeAt.Equal(want) {
		t.Errorf("ResumeAt = %v, want %v", res.ResumeAt, want)
	}
}

func TestGenerateMonthlyImpossibleSetPos(t *testing.T) {
	r, _ := Parse("FREQ=MONTHLY;BYDAY=MO;BYSETPOS=5")
	anchor := d(2011, 7, 1, 10, 30)
	// July 2011 has four Mondays.
	res := Generate(Input{Rule: r, Anchor: anchor}, Window{Start: day(2011, 7, 1), End: day(2011, 8, 1)})
	if len(res.Dates) != 0 || res.Exhausted || res.Deferred {
		t.Errorf("got %+v, want plain empty", res)
	}
	// August 2011 has five.
	res = Generate(Input{Rule: r, Anchor: anchor}, Window{Start: day(2011, 8, 1), End: day(2011, 9, 1)})
	assertDays(t, "fifth monday", res.Dates, "2011-08-29")
}

func TestExpandDailyWindows(t *testing.T) {
	ev := Event{Anchor: d(2011, 7, 19, 10, 30), Rule: "FREQ=DAILY"}

	exp := mustExpand(t, ev, Window{Start: day(2011, 7, 10), End: day(2011, 7, 15)}, Options{})
	assertDays(t, "past window", exp.Dates)

	exp = mustExpand(t, ev, Window{Start: day(2011, 7, 19), End: day(2011, 7, 25)}, Options{})
	assertDays(t, "first week", exp.Dates,
		"2011-07-19", "2011-07-20", "2011-07-21", "2011-07-22", "2011-07-23", "2011-07-24")

	exp = mustExpand(t, ev, Window{Start: day(2011, 7, 20), End: day(2011, 7, 30)}, Options{})
	if len(exp.Dates) != 10 {
		t.Errorf("got %d dates, want 10", len(exp.Dates))
	}

	ev = Event{Anchor: d(2011, 11, 24, 10, 30), Rule: "FREQ=DAILY"}
	w := Window{Start: d(2011, 11, 22, 12, 30), End: d(2011, 11, 27, 12, 30)}
	exp = mustExpand(t, ev, w, Options{})
	assertDays(t, "partial days", exp.Dates, "2011-11-24", "2011-11-25", "2011-11-26", "2011-11-27")

	ev.Rule = "FREQ=DAILY;INTERVAL=3"
	exp = mustExpand(t, ev, w, Options{})
	assertDays(t, "every third day", exp.Dates, "2011-11-24", "2011-11-27")
}

func TestExpandDailyOngoing(t *testing.T) {
	ev := Event{Anchor: d(2011, 7, 19, 10, 30), Duration: twoDays, Rule: "FREQ=DAILY"}
	exp := mustExpand(t, ev, Window{Start: day(2011, 7, 20)}, Options{Limit: 1, IncludeOngoing: true})
	assertDays(t, "ongoing", exp.Dates, "2011-07-19")

	exp = mustExpand(t, ev, Window{Start: day(2011, 7, 20)}, Options{Limit: 1})
	assertDays(t, "not ongoing", exp.Dates, "2011-07-20")
}

func TestExpandWeeklyByDay(t *testing.T) {
	ev := Event{Anchor: d(2011, 7, 19, 10, 30), Rule: "FREQ=WEEKLY;BYDAY=MO,TH"}

	exp := mustExpand(t, ev, Window{Start: day(2011, 7, 19), End: day(2011, 7, 26)}, Options{})
	assertDays(t, "one week", exp.Dates, "2011-07-21", "2011-07-25")

	exp = mustExpand(t, ev, Window{Start: day(2011, 7, 20), End: day(2011, 7, 30)}, Options{})
	assertDays(t, "ten days", exp.Dates, "2011-07-21", "2011-07-25", "2011-07-28")

	exp = mustExpand(t, ev, Window{Start: day(2011, 7, 22)}, Options{Limit: 1})
	assertDays(t, "next", exp.Dates, "2011-07-25")

	ev.Rule = "FREQ=WEEKLY;INTERVAL=3;BYDAY=MO,TH"
	exp = mustExpand(t, ev, Window{Start: day(2011, 7, 20), End: day(2011, 8, 30)}, Options{})
	assertDays(t, "every third week", exp.Dates, "2011-07-21", "2011-08-08", "2011-08-11", "2011-08-29")
}

func TestExpandWeeklyDefaultsToAnchorDay(t *testing.T) {
	ev := Event{Anchor: d(2011, 7, 19, 10, 30), Rule: "FREQ=WEEKLY;INTERVAL=2"}
	exp := mustExpand(t, ev, Window{Start: day(2011, 7, 1), End: day(2011, 8, 20)}, Options{})
	assertDays(t, "biweekly", exp.Dates, "2011-07-19", "2011-08-02", "2011-08-16")
}

func TestExpandMonthlyByMonthDay(t *testing.T) {
	ev := Event{Anchor: d(2011, 7, 19, 10, 30), Rule: "FREQ=MONTHLY;BYMONTHDAY=2"}
	w := Window{Start: day(2011, 7, 20), End: day(2011, 9, 20)}

	exp := mustExpand(t, ev, w, Options{})
	assertDays(t, "monthly", exp.Dates, "2011-08-02", "2011-09-02")

	ev.Rule = "FREQ=MONTHLY;INTERVAL=2;BYMONTHDAY=2"
	exp = mustExpand(t, ev, w, Options{})
	assertDays(t, "every other month", exp.Dates, "2011-09-02")
}

func TestExpandMonthlyClampsToMonthEnd(t *testing.T) {
	ev := Event{Anchor: d(2011, 1, 31, 9, 0), Rule: "FREQ=MONTHLY"}
	exp := mustExpand(t, ev, Window{Start: day(2011, 1, 1), End: day(2011, 5, 1)}, Options{})
	assertDays(t, "clamp", exp.Dates, "2011-01-31", "2011-02-28", "2011-03-31", "2011-04-30")
}

func TestExpandMonthlyLastMonday(t *testing.T) {
	ev := Event{Anchor: d(2012, 7, 15, 10, 30), Rule: "FREQ=MONTHLY;INTERVAL=1;BYDAY=MO;BYSETPOS=-1"}
	exp := mustExpand(t, ev, Window{Start: day(2012, 7, 1), End: day(2012, 9, 30)}, Options{})
	assertDays(t, "last monday", exp.Dates, "2012-07-30", "2012-08-27", "2012-09-24")

	ev.Duration = twoDays
	exp = mustExpand(t, ev, Window{Start: day(2012, 7, 31)}, Options{Limit: 1, IncludeOngoing: true})
	assertDays(t, "ongoing last monday", exp.Dates, "2012-07-30")
}

func TestExpandMonthlyLegacyWeekdaySetPos(t *testing.T) {
	ev := Event{Anchor: d(2011, 7, 19, 10, 30), Rule: "FREQ=MONTHLY;BYSETPOS=TU"}

	exp := mustExpand(t, ev, Window{Start: day(2011, 7, 10), End: day(2011, 7, 15)}, Options{})
	assertDays(t, "past", exp.Dates)

	exp = mustExpand(t, ev, Window{Start: day(2011, 7, 20), End: day(2011, 9, 20)}, Options{})
	assertDays(t, "first tuesday", exp.Dates, "2011-08-02", "2011-09-06")

	ev.Anchor = d(2011, 7, 1, 10, 30)
	exp = mustExpand(t, ev, Window{Start: day(2011, 7, 1), End: day(2011, 7, 26)}, Options{Limit: 1})
	assertDays(t, "this month", exp.Dates, "2011-07-05")
}

func TestExpandMonthlyFirstMonday(t *testing.T) {
	ev := Event{Anchor: d(2011, 7, 19, 10, 30), Rule: "FREQ=MONTHLY;BYDAY=MO;BYSETPOS=1"}
	exp := mustExpand(t, ev, Window{Start: day(2011, 7, 19), End: day(2012, 1, 5)}, Options{})
	assertDays(t, "first monday", exp.Dates,
		"2011-08-01", "2011-09-05", "2011-10-03", "2011-11-07", "2011-12-05", "2012-01-02")
}

func TestExpandMonthlySecondMonday(t *testing.T) {
	ev := Event{Anchor: d(2011, 6, 1, 18, 0), Rule: "FREQ=MONTHLY;INTERVAL=1;BYDAY=MO;BYSETPOS=2"}
	// August 2011 starts on a Monday.
	exp := mustExpand(t, ev, Window{Start: day(2011, 8, 1), End: day(2011, 11, 1)}, Options{})
	assertDays(t, "second monday", exp.Dates, "2011-08-08", "2011-09-12", "2011-10-10")
}

func TestExpandMonthlyThirdFriday(t *testing.T) {
	ev := Event{Anchor: d(2011, 7, 19, 10, 30), Rule: "FREQ=MONTHLY;BYDAY=FR;BYSETPOS=3"}
	w := Window{Start: day(2011, 7, 19), End: day(2012, 1, 25)}

	exp := mustExpand(t, ev, w, Options{})
	assertDays(t, "third friday", exp.Dates,
		"2011-08-19", "2011-09-16", "2011-10-21", "2011-11-18", "2011-12-16", "2012-01-20")

	ev.Rule = "FREQ=MONTHLY;INTERVAL=3;BYDAY=FR;BYSETPOS=3"
	exp = mustExpand(t, ev, w, Options{})
	assertDays(t, "quarterly third friday", exp.Dates, "2011-10-21", "2012-01-20")

	ev.Anchor = d(2011, 7, 14, 10, 30)
	w.Start = day(2011, 7, 14)
	exp = mustExpand(t, ev, w, Options{})
	assertDays(t, "quarterly from july", exp.Dates, "2011-07-15", "2011-10-21", "2012-01-20")

	ev.Rule = "FREQ=MONTHLY;BYDAY=FR;BYSETPOS=3"
	exp = mustExpand(t, ev, w, Options{})
	if len(exp.Dates) != 7 {
		t.Errorf("got %d dates %v, want 7", len(exp.Dates), formatDays(exp.Dates))
	}
}

func TestExpandMaterializedExclusion(t *testing.T) {
	ev := Event{Anchor: d(2011, 7, 19, 10, 30), Rule: "FREQ=DAILY"}
	w := Window{Start: day(2011, 7, 19), End: day(2011, 7, 25)}
	all := mustExpand(t, ev, w, Options{})

	ev.Materialized = NewDaySet(d(2011, 7, 21, 23, 59))
	exp := mustExpand(t, ev, w, Options{})
	if len(exp.Dates) != len(all.Dates)-1 {
		t.Fatalf("got %d dates, want %d", len(exp.Dates), len(all.Dates)-1)
	}
	j := 0
	for _, occ := range all.Dates {
		if occ.Day() == 21 {
			continue
		}
		if !exp.Dates[j].Equal(occ) {
			t.Errorf("date[%d] = %v, want %v", j, exp.Dates[j], occ)
		}
		j++
	}
}

func TestExpandLastMeetingTerminates(t *testing.T) {
	ev := Event{
		Anchor:      d(2011, 7, 19, 10, 30),
		Rule:        "FREQ=DAILY",
		LastMeeting: ptr(day(2011, 7, 1)),
	}
	exp := mustExpand(t, ev, Window{Start: day(2011, 7, 1)}, Options{})
	if len(exp.Dates) != 0 {
		t.Errorf("got %v, want none", formatDays(exp.Dates))
	}
	if !exp.Exhausted || exp.Cycles != 1 {
		t.Errorf("Exhausted = %v Cycles = %d, want true 1", exp.Exhausted, exp.Cycles)
	}
}

func TestExpandLastMeetingBound(t *testing.T) {
	ev := Event{
		Anchor:      d(2011, 7, 19, 10, 30),
		Rule:        "FREQ=WEEKLY;BYDAY=TU",
		LastMeeting: ptr(d(2011, 8, 9, 10, 30)),
	}
	exp := mustExpand(t, ev, Window{Start: day(2011, 7, 1)}, Options{})
	assertDays(t, "bounded", exp.Dates, "2011-07-19", "2011-07-26", "2011-08-02", "2011-08-09")
	if !exp.Exhausted || exp.Truncated {
		t.Errorf("Exhausted = %v Truncated = %v, want true false", exp.Exhausted, exp.Truncated)
	}
}

func TestExpandUntilCombinesWithLastMeeting(t *testing.T) {
	ev := Event{
		Anchor:      d(2011, 7, 19, 10, 30),
		Rule:        "FREQ=DAILY;UNTIL=20110721T235959Z",
		LastMeeting: ptr(day(2011, 12, 1)),
	}
	exp := mustExpand(t, ev, Window{Start: day(2011, 7, 1)}, Options{})
	assertDays(t, "until", exp.Dates, "2011-07-19", "2011-07-20", "2011-07-21")
}

func TestExpandTruncatesAtMaxCycles(t *testing.T) {
	ev := Event{Anchor: d(2011, 7, 19, 10, 30), Rule: "FREQ=DAILY;INTERVAL=400"}
	exp := mustExpand(t, ev, Window{Start: day(2011, 7, 19)}, Options{MaxCycles: 5})
	if !exp.Truncated {
		t.Error("expected truncation")
	}
	if exp.Cycles != 5 {
		t.Errorf("Cycles = %d, want 5", exp.Cycles)
	}
	assertDays(t, "truncated", exp.Dates, "2011-07-19")
}

func TestExpandHugeIntervalTerminates(t *testing.T) {
	w := Window{Start: day(2011, 7, 1), End: day(2011, 9, 1)}
	tests := []struct {
		rule  string
		count int
	}{
		{"FREQ=DAILY;INTERVAL=4611686018427387904", 44},
		{"FREQ=WEEKLY;INTERVAL=4611686018427387904", 7},
		{"FREQ=MONTHLY;INTERVAL=4611686018427387904", 2},
	}
	for _, tt := range tests {
		done := make(chan Expansion, 1)
		go func() {
			exp, _ := Expand(Event{Anchor: d(2011, 7, 19, 10, 30), Rule: tt.rule}, w, Options{})
			done <- exp
		}()
		select {
		case exp := <-done:
			if len(exp.Dates) != tt.count {
				t.Errorf("%s: got %d dates, want %d", tt.rule, len(exp.Dates), tt.count)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("%s: Expand did not return", tt.rule)
		}
	}
}

func TestGenerateOutOfRangeIntervalTerminates(t *testing.T) {
	// Rules built without Parse fall back to an interval of 1.
	for _, freq := range []Freq{Daily, Weekly, Monthly} {
		r := Rule{Freq: freq, Interval: math.MaxInt}
		res := Generate(Input{Rule: r, Anchor: d(2011, 7, 19, 10, 30)}, Window{Start: day(2011, 7, 19), End: day(2011, 7, 20)})
		assertDays(t, freq.String(), res.Dates, "2011-07-19")
	}
}

func TestExpandOpenWindowUsesDefaultCap(t *testing.T) {
	ev := Event{Anchor: d(2011, 7, 19, 10, 30), Rule: "FREQ=MONTHLY;INTERVAL=12"}
	exp := mustExpand(t, ev, Window{Start: day(2011, 7, 19)}, Options{})
	if !exp.Truncated {
		t.Fatal("expected truncation")
	}
	if exp.Cycles > DefaultMaxCycles {
		t.Errorf("Cycles = %d, exceeds %d", exp.Cycles, DefaultMaxCycles)
	}
	if len(exp.Dates) == 0 || formatDays(exp.Dates)[1] != "2012-07-19" {
		t.Errorf("unexpected dates %v", formatDays(exp.Dates[:2]))
	}
}

func TestExpandIdempotent(t *testing.T) {
	ev := Event{
		Anchor:       d(2011, 7, 19, 10, 30),
		Rule:         "FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE,FR",
		Materialized: NewDaySet(d(2011, 8, 3, 0, 0)),
	}
	w := Window{Start: day(2011, 7, 1), End: day(2011, 12, 1)}
	a := mustExpand(t, ev, w, Options{})
	b := mustExpand(t, ev, w, Options{})
	if len(a.Dates) != len(b.Dates) {
		t.Fatalf("len %d != %d", len(a.Dates), len(b.Dates))
	}
	for i := range a.Dates {
		if !a.Dates[i].Equal(b.Dates[i]) {
			t.Errorf("date[%d] differs: %v vs %v", i, a.Dates[i], b.Dates[i])
		}
		if i > 0 && !a.Dates[i-1].Before(a.Dates[i]) {
			t.Errorf("dates not ascending at %d", i)
		}
	}
}

func TestExpandParseError(t *testing.T) {
	ev := Event{Anchor: d(2011, 7, 19, 10, 30), Rule: "INTERVAL=2"}
	_, err := Expand(ev, Window{Start: day(2011, 7, 1)}, Options{})
	if !errors.Is(err, ErrMissingFreq) {
		t.Errorf("err = %v, want ErrMissingFreq", err)
	}
}

func TestDaySet(t *testing.T) {
	var empty DaySet
	if empty.Has(day(2011, 7, 19)) || empty.Len() != 0 {
		t.Error("nil DaySet should be empty")
	}
	s := NewDaySet(d(2011, 7, 19, 10, 30), d(2011, 7, 19, 22, 0))
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
	if !s.Has(day(2011, 7, 19)) || s.Has(day(2011, 7, 20)) {
		t.Error("membership should be by calendar day")
	}
}
