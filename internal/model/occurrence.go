package model

import "time"

// Occurrence is one instance of a recurring event that was edited on its own.
// OriginalDate (YYYY-MM-DD) is the generated day it replaces.
type Occurrence struct {
	ID           int64     `json:"id"`
	EventID      int64     `json:"event_id"`
	OriginalDate string    `json:"original_date"`
	Title        string    `json:"title"`
	Location     string    `json:"location"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	CreatedAt    time.Time `json:"created_at"`
}
