// Package calendar turns stored events into the ordered list of entries a
// calendar view shows, expanding recurring events over the requested window.
package calendar

import (
	"time"

	"github.com/dukerupert/sitecal/internal/model"
	"github.com/dukerupert/sitecal/internal/recurrence"
)

const recurringSuffix = " (Recurring)"

// Summarize builds the display record of the base event itself.
func Summarize(ev model.CalendarEvent, siteTitle string) model.EventSummary {
	s := model.EventSummary{
		EventID:        ev.ID,
		Site:           ev.Site,
		SiteTitle:      siteTitle,
		Title:          ev.Title,
		Description:    ev.Description,
		Location:       ev.Location,
		Tags:           ev.Tags,
		Start:          ev.StartTime,
		End:            ev.EndTime,
		AllDay:         ev.AllDay,
		Recurring:      ev.IsRecurring(),
		RecurrenceRule: ev.RecurrenceRule,
	}
	if s.Tags == nil {
		s.Tags = []string{}
	}
	if ev.IsRecurring() {
		if r, err := recurrence.Parse(ev.RecurrenceRule); err == nil {
			s.RecurrenceText = r.Describe()
		}
	}
	return s
}

// ToOccurrenceRecord places base at one generated occurrence. markRecurring
// tags the title for the first-occurrence-only listing.
func ToOccurrenceRecord(base model.EventSummary, occurrence time.Time, duration time.Duration, markRecurring bool) model.EventSummary {
	s := base
	s.Start = occurrence
	s.End = occurrence.Add(duration)
	if markRecurring {
		s.Title += recurringSuffix
	}
	return s
}

// FromOccurrence builds the record of a materialized occurrence. Fields the
// occurrence leaves empty fall back to the base event.
func FromOccurrence(base model.EventSummary, occ model.Occurrence) model.EventSummary {
	s := base
	id := occ.ID
	s.OccurrenceID = &id
	s.Start = occ.StartTime
	s.End = occ.EndTime
	if occ.Title != "" {
		s.Title = occ.Title
	}
	if occ.Location != "" {
		s.Location = occ.Location
	}
	return s
}
