package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dukerupert/sitecal/internal/model"
)

func TestSummarize(t *testing.T) {
	ev := model.CalendarEvent{
		ID: 7, Site: "eng", Title: "Planning", Description: "Quarterly",
		Location: "HQ", StartTime: at(2011, 7, 19, 10, 30), EndTime: at(2011, 7, 19, 12, 0),
		RecurrenceRule: "FREQ=MONTHLY;BYDAY=FR;BYSETPOS=3",
	}
	s := Summarize(ev, "Engineering")
	assert.Equal(t, int64(7), s.EventID)
	assert.Equal(t, "Engineering", s.SiteTitle)
	assert.Equal(t, "Repeats monthly on the third Friday", s.RecurrenceText)
	assert.True(t, s.Recurring)
	assert.NotNil(t, s.Tags)

	ev.RecurrenceRule = "FREQ=SECONDLY"
	s = Summarize(ev, "Engineering")
	assert.Empty(t, s.RecurrenceText)
}

func TestToOccurrenceRecord(t *testing.T) {
	base := model.EventSummary{EventID: 1, Title: "Standup", Location: "Room 1", Tags: []string{"daily"}}
	occ := at(2011, 8, 2, 10, 30)

	s := ToOccurrenceRecord(base, occ, 45*time.Minute, false)
	assert.Equal(t, "Standup", s.Title)
	assert.Equal(t, occ, s.Start)
	assert.Equal(t, occ.Add(45*time.Minute), s.End)
	assert.Equal(t, "Room 1", s.Location)
	assert.Equal(t, []string{"daily"}, s.Tags)

	s = ToOccurrenceRecord(base, occ, 45*time.Minute, true)
	assert.Equal(t, "Standup (Recurring)", s.Title)
	assert.Equal(t, "Standup", base.Title)
}

func TestFromOccurrence(t *testing.T) {
	base := model.EventSummary{EventID: 1, Title: "Standup", Location: "Room 1"}
	start := at(2011, 8, 2, 15, 0)

	s := FromOccurrence(base, model.Occurrence{ID: 3, StartTime: start, EndTime: start.Add(time.Hour)})
	assert.Equal(t, "Standup", s.Title)
	assert.Equal(t, "Room 1", s.Location)
	if assert.NotNil(t, s.OccurrenceID) {
		assert.Equal(t, int64(3), *s.OccurrenceID)
	}

	s = FromOccurrence(base, model.Occurrence{ID: 4, Title: "Moved", Location: "Room 9", StartTime: start, EndTime: start})
	assert.Equal(t, "Moved", s.Title)
	assert.Equal(t, "Room 9", s.Location)
}
