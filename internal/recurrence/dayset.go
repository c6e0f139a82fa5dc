package recurrence

import (
	"time"

	"github.com/dukerupert/sitecal/internal/datemath"
)

// DaySet holds calendar days that already have a materialized occurrence.
// Membership is by year, month and day only. A nil DaySet is empty.
type DaySet map[datemath.Date]struct{}

func NewDaySet(times ...time.Time) DaySet {
	s := make(DaySet, len(times))
	for _, t := range times {
		s.Add(t)
	}
	return s
}

func (s DaySet) Add(t time.Time) {
	s[datemath.DateOf(t)] = struct{}{}
}

// AddDate adds a civil day directly.
func (s DaySet) AddDate(d datemath.Date) {
	s[d] = struct{}{}
}

func (s DaySet) Has(t time.Time) bool {
	if s == nil {
		return false
	}
	_, ok := s[datemath.DateOf(t)]
	return ok
}

func (s DaySet) Len() int {
	return len(s)
}
