package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Freq int

const (
	Daily Freq = iota
	Weekly
	Monthly
)

// LastSetPos selects the last matching weekday of a month.
const LastSetPos = -1

// MaxInterval is the largest INTERVAL a rule may carry. Larger values are
// treated as malformed.
const MaxInterval = 1000

var (
	ErrMissingFreq     = errors.New("FREQ is required")
	ErrUnsupportedFreq = errors.New("unsupported frequency")
)

// ParseError reports a rule string that cannot drive an expansion. Callers
// treat the event as non-recurring.
type ParseError struct {
	Rule string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse recurrence rule %q: %v", e.Rule, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var freqNames = map[Freq]string{
	Daily:   "DAILY",
	Weekly:  "WEEKLY",
	Monthly: "MONTHLY",
}

var freqFromName = map[string]Freq{
	"DAILY":   Daily,
	"WEEKLY":  Weekly,
	"MONTHLY": Monthly,
}

var dayNames = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

var dayAbbrev = map[time.Weekday]string{
	time.Sunday:    "SU",
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
}

func (f Freq) String() string {
	if name, ok := freqNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Freq(%d)", int(f))
}

type Rule struct {
	Freq       Freq
	Interval   int            // 1..MaxInterval
	ByDay      []time.Weekday // WEEKLY: which days; MONTHLY: days eligible for the BYSETPOS scan
	BySetPos   int            // MONTHLY: k>0 k-th match from the 1st, k<0 |k|-th from month end, 0 unset
	ByMonthDay int            // MONTHLY without BYDAY: day of month (0 = anchor's day)
	Until      *time.Time     // inclusive bound carried in the rule itself
}

// Parse parses a rule string like "FREQ=MONTHLY;INTERVAL=1;BYDAY=MO;BYSETPOS=2".
// Only a missing or unsupported FREQ is an error; every other malformed part
// falls back to its default and unknown keys are ignored.
func Parse(rule string) (Rule, error) {
	raw := strings.TrimSpace(rule)
	if len(raw) >= 6 && strings.EqualFold(raw[:6], "RRULE:") {
		raw = raw[6:]
	}

	r := Rule{Interval: 1}
	var hasFreq bool
	var legacyDay *time.Weekday
	ordinal := 0

	for _, part := range strings.Split(raw, ";") {
		key, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		val = strings.TrimSpace(val)

		switch key {
		case "FREQ":
			f, ok := freqFromName[strings.ToUpper(val)]
			if !ok {
				return Rule{}, &ParseError{Rule: rule, Err: fmt.Errorf("%w: %q", ErrUnsupportedFreq, val)}
			}
			r.Freq = f
			hasFreq = true

		case "INTERVAL":
			if n, err := strconv.Atoi(val); err == nil && n >= 1 && n <= MaxInterval {
				r.Interval = n
			}

		case "BYDAY":
			for _, token := range strings.Split(val, ",") {
				wd, n, ok := parseDayToken(token)
				if !ok {
					continue
				}
				if n != 0 && ordinal == 0 {
					ordinal = n
				}
				r.ByDay = appendDay(r.ByDay, wd)
			}

		case "BYSETPOS":
			if n, err := strconv.Atoi(val); err == nil {
				r.BySetPos = n
			} else if wd, ok := dayNames[strings.ToUpper(val)]; ok {
				legacyDay = &wd
			}

		case "BYMONTHDAY":
			if n, err := strconv.Atoi(val); err == nil && n >= 1 && n <= 31 {
				r.ByMonthDay = n
			}

		case "UNTIL":
			if t, ok := parseUntil(val); ok {
				r.Until = &t
			}
		}
	}

	if !hasFreq {
		return Rule{}, &ParseError{Rule: rule, Err: ErrMissingFreq}
	}

	// BYSETPOS=TU is how older editors wrote "the first Tuesday".
	if legacyDay != nil && len(r.ByDay) == 0 {
		r.ByDay = []time.Weekday{*legacyDay}
		r.BySetPos = 1
	}
	if r.BySetPos == 0 && ordinal != 0 {
		r.BySetPos = ordinal
	}

	return r, nil
}

// parseDayToken accepts "MO" or an ordinal form such as "2MO" or "-1FR".
func parseDayToken(token string) (time.Weekday, int, bool) {
	token = strings.ToUpper(strings.TrimSpace(token))
	if len(token) < 2 {
		return 0, 0, false
	}
	wd, ok := dayNames[token[len(token)-2:]]
	if !ok {
		return 0, 0, false
	}
	prefix := token[:len(token)-2]
	if prefix == "" {
		return wd, 0, true
	}
	n, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, 0, false
	}
	return wd, n, true
}

func appendDay(days []time.Weekday, wd time.Weekday) []time.Weekday {
	for _, d := range days {
		if d == wd {
			return days
		}
	}
	return append(days, wd)
}

func parseUntil(val string) (time.Time, bool) {
	for _, layout := range []string{"20060102T150405Z", "20060102T150405", "20060102"} {
		if t, err := time.Parse(layout, val); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// HasDay reports whether wd is part of BYDAY.
func (r Rule) HasDay(wd time.Weekday) bool {
	for _, d := range r.ByDay {
		if d == wd {
			return true
		}
	}
	return false
}

// String serializes the rule back to its canonical rule string.
func (r Rule) String() string {
	var parts []string
	parts = append(parts, "FREQ="+r.Freq.String())

	if r.Interval > 1 {
		parts = append(parts, fmt.Sprintf("INTERVAL=%d", r.Interval))
	}

	if len(r.ByDay) > 0 {
		var days []string
		for _, d := range r.ByDay {
			days = append(days, dayAbbrev[d])
		}
		parts = append(parts, "BYDAY="+strings.Join(days, ","))
	}

	if r.BySetPos != 0 {
		parts = append(parts, fmt.Sprintf("BYSETPOS=%d", r.BySetPos))
	}

	if r.ByMonthDay > 0 {
		parts = append(parts, fmt.Sprintf("BYMONTHDAY=%d", r.ByMonthDay))
	}

	if r.Until != nil {
		parts = append(parts, "UNTIL="+r.Until.UTC().Format("20060102T150405Z"))
	}

	return strings.Join(parts, ";")
}

var ordinalNames = map[int]string{
	1:  "first",
	2:  "second",
	3:  "third",
	4:  "fourth",
	5:  "fifth",
	-1: "last",
	-2: "second to last",
}

// Describe returns a human-readable description of the rule.
func (r Rule) Describe() string {
	switch r.Freq {
	case Daily:
		if r.Interval > 1 {
			return fmt.Sprintf("Repeats every %d days", r.Interval)
		}
		return "Repeats daily"
	case Weekly:
		prefix := "Repeats weekly"
		if r.Interval > 1 {
			prefix = fmt.Sprintf("Repeats every %d weeks", r.Interval)
		}
		if len(r.ByDay) > 0 {
			return prefix + " on " + strings.Join(shortDayNames(r.ByDay), ", ")
		}
		return prefix
	case Monthly:
		prefix := "Repeats monthly"
		if r.Interval > 1 {
			prefix = fmt.Sprintf("Repeats every %d months", r.Interval)
		}
		switch {
		case len(r.ByDay) > 0 && r.BySetPos != 0:
			pos, ok := ordinalNames[r.BySetPos]
			if !ok {
				pos = fmt.Sprintf("#%d", r.BySetPos)
			}
			return fmt.Sprintf("%s on the %s %s", prefix, pos, strings.Join(longDayNames(r.ByDay), "/"))
		case len(r.ByDay) > 0:
			return prefix + " on every " + strings.Join(longDayNames(r.ByDay), ", ")
		case r.ByMonthDay > 0:
			return fmt.Sprintf("%s on day %d", prefix, r.ByMonthDay)
		}
		return prefix
	}
	return ""
}

func shortDayNames(days []time.Weekday) []string {
	names := make([]string, 0, len(days))
	for _, d := range days {
		names = append(names, d.String()[:3])
	}
	return names
}

func longDayNames(days []time.Weekday) []string {
	names := make([]string, 0, len(days))
	for _, d := range days {
		names = append(names, d.String())
	}
	return names
}
