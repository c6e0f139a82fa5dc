package model

import "time"

type CalendarEvent struct {
	ID                    int64      `json:"id"`
	SiteID                int64      `json:"site_id"`
	Site                  string     `json:"site"`
	Title                 string     `json:"title"`
	Description           string     `json:"description"`
	Location              string     `json:"location"`
	StartTime             time.Time  `json:"start_time"`
	EndTime               time.Time  `json:"end_time"`
	AllDay                bool       `json:"all_day"`
	Tags                  []string   `json:"tags"`
	RecurrenceRule        string     `json:"recurrence_rule"`
	RecurrenceLastMeeting *time.Time `json:"recurrence_last_meeting"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// Duration is the length every generated occurrence inherits.
func (e CalendarEvent) Duration() time.Duration {
	return e.EndTime.Sub(e.StartTime)
}

func (e CalendarEvent) IsRecurring() bool {
	return e.RecurrenceRule != ""
}
