package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/sitecal/internal/model"
)

const occurrenceCols = `id, event_id, original_date, title, location, start_time, end_time, created_at`

func scanOccurrence(scanner interface{ Scan(...any) error }) (*model.Occurrence, error) {
	var o model.Occurrence
	err := scanner.Scan(&o.ID, &o.EventID, &o.OriginalDate, &o.Title, &o.Location, &o.StartTime, &o.EndTime, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateOccurrence materializes one instance of a recurring event. originalDate
// (YYYY-MM-DD) is the generated day it replaces; there can be at most one per
// event and day.
func (s *EventStore) CreateOccurrence(eventID int64, originalDate, title, location string, startTime, endTime time.Time) (*model.Occurrence, error) {
	result, err := s.db.Exec(
		`INSERT INTO event_occurrences (event_id, original_date, title, location, start_time, end_time)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		eventID, originalDate, title, location, startTime.UTC(), endTime.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert occurrence: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetOccurrence(id)
}

func (s *EventStore) GetOccurrence(id int64) (*model.Occurrence, error) {
	row := s.db.QueryRow(`SELECT `+occurrenceCols+` FROM event_occurrences WHERE id = ?`, id)
	o, err := scanOccurrence(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get occurrence: %w", err)
	}
	return o, nil
}

// ListOccurrences returns the materialized occurrences of the given events
// keyed by event id, each list ordered by original date.
func (s *EventStore) ListOccurrences(eventIDs ...int64) (map[int64][]model.Occurrence, error) {
	out := make(map[int64][]model.Occurrence)
	if len(eventIDs) == 0 {
		return out, nil
	}

	args := make([]any, len(eventIDs))
	for i, id := range eventIDs {
		args[i] = id
	}

	rows, err := s.db.Query(
		`SELECT `+occurrenceCols+` FROM event_occurrences
		 WHERE event_id IN (`+placeholders(len(eventIDs))+`)
		 ORDER BY event_id, original_date`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query occurrences: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan occurrence: %w", err)
		}
		out[o.EventID] = append(out[o.EventID], *o)
	}
	return out, rows.Err()
}

func (s *EventStore) DeleteOccurrence(eventID, id int64) error {
	_, err := s.db.Exec(`DELETE FROM event_occurrences WHERE id = ? AND event_id = ?`, id, eventID)
	if err != nil {
		return fmt.Errorf("delete occurrence: %w", err)
	}
	return nil
}
