package model

import "time"

// EventSummary is the display record for one calendar entry, either a plain
// event or one occurrence of a recurring one.
type EventSummary struct {
	EventID        int64     `json:"event_id"`
	OccurrenceID   *int64    `json:"occurrence_id,omitempty"`
	Site           string    `json:"site"`
	SiteTitle      string    `json:"site_title"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Location       string    `json:"location"`
	Tags           []string  `json:"tags"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	AllDay         bool      `json:"all_day"`
	Recurring      bool      `json:"recurring"`
	RecurrenceRule string    `json:"recurrence_rule,omitempty"`
	RecurrenceText string    `json:"recurrence_text,omitempty"`
}
