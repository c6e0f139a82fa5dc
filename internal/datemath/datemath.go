// Package datemath holds the day-granularity date helpers used by the
// recurrence engine. Every function works in the location of its argument.
package datemath

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a civil calendar day with no clock or location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// In returns midnight of the day in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// TruncateToDay zeroes the clock part of t.
func TruncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddDays returns t moved by n calendar days. Month and year rollover are
// left to time.AddDate.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// SameDay reports whether a and b fall on the same year, month and day.
func SameDay(a, b time.Time) bool {
	return DateOf(a) == DateOf(b)
}

// DayOfWeekIndex returns 0 for Sunday through 6 for Saturday.
func DayOfWeekIndex(t time.Time) int {
	return int(t.Weekday())
}

// DaysBetween returns the number of calendar days from a's day to b's day.
// The result is negative when b is earlier. DST shifts do not affect it.
func DaysBetween(a, b time.Time) int {
	ad := DateOf(a).In(time.UTC)
	bd := DateOf(b).In(time.UTC)
	return int(bd.Sub(ad) / (24 * time.Hour))
}

// StartOfWeek returns midnight of the Sunday on or before t.
func StartOfWeek(t time.Time) time.Time {
	day := TruncateToDay(t)
	return AddDays(day, -DayOfWeekIndex(day))
}

// StartOfMonth returns midnight of the first day of t's month.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// AddMonths returns the first day of the month n months after t's month.
func AddMonths(t time.Time, n int) time.Time {
	return time.Date(t.Year(), t.Month()+time.Month(n), 1, 0, 0, 0, 0, t.Location())
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthsBetween returns the signed number of calendar months from a's month
// to b's month.
func MonthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// AtClock places day's calendar date at clock's time of day, in clock's
// location.
func AtClock(day, clock time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, clock.Hour(), clock.Minute(), clock.Second(), clock.Nanosecond(), clock.Location())
}

// Max returns the later of a and b.
func Max(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
