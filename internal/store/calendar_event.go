package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/sitecal/internal/model"
)

// farFuture stands in for an open upper bound in range queries.
var farFuture = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

// EventParams carries the writable columns of a calendar event.
type EventParams struct {
	SiteID                int64
	Title                 string
	Description           string
	Location              string
	StartTime             time.Time
	EndTime               time.Time
	AllDay                bool
	Tags                  []string
	RecurrenceRule        string
	RecurrenceLastMeeting *time.Time
}

const eventCols = `e.id, e.site_id, s.short_name, e.title, e.description, e.location, e.start_time, e.end_time,
	e.all_day, e.tags, e.recurrence_rule, e.recurrence_last_meeting, e.created_at, e.updated_at`

const eventFrom = ` FROM calendar_events e JOIN sites s ON s.id = e.site_id`

func scanEvent(scanner interface{ Scan(...any) error }) (*model.CalendarEvent, error) {
	var e model.CalendarEvent
	var allDayInt int
	var tags string
	var lastMeeting sql.NullTime

	err := scanner.Scan(&e.ID, &e.SiteID, &e.Site, &e.Title, &e.Description, &e.Location, &e.StartTime, &e.EndTime,
		&allDayInt, &tags, &e.RecurrenceRule, &lastMeeting, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	e.AllDay = allDayInt != 0
	e.Tags = splitTags(tags)
	if lastMeeting.Valid {
		t := lastMeeting.Time
		e.RecurrenceLastMeeting = &t
	}
	return &e, nil
}

func joinTags(tags []string) string {
	clean := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(strings.ReplaceAll(t, ",", " "))
		if t != "" {
			clean = append(clean, t)
		}
	}
	return strings.Join(clean, ",")
}

func splitTags(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

func eventArgs(p EventParams) []any {
	var allDayInt int
	if p.AllDay {
		allDayInt = 1
	}

	var lastMeeting sql.NullTime
	if p.RecurrenceLastMeeting != nil {
		lastMeeting = sql.NullTime{Time: p.RecurrenceLastMeeting.UTC(), Valid: true}
	}

	return []any{
		p.SiteID, p.Title, p.Description, p.Location, p.StartTime.UTC(), p.EndTime.UTC(),
		allDayInt, joinTags(p.Tags), p.RecurrenceRule, lastMeeting,
	}
}

func (s *EventStore) Create(p EventParams) (*model.CalendarEvent, error) {
	result, err := s.db.Exec(
		`INSERT INTO calendar_events (site_id, title, description, location, start_time, end_time,
		 all_day, tags, recurrence_rule, recurrence_last_meeting)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		eventArgs(p)...,
	)
	if err != nil {
		return nil, fmt.Errorf("insert calendar event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(id)
}

func (s *EventStore) GetByID(id int64) (*model.CalendarEvent, error) {
	row := s.db.QueryRow(`SELECT `+eventCols+eventFrom+` WHERE e.id = ?`, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query calendar event: %w", err)
	}
	return e, nil
}

// ListForWindow returns the events of the given sites that can contribute to
// [from, to): plain events overlapping the range and recurring events whose
// series has started before to and not ended before from. No sites means all
// sites. A zero to is open ended.
func (s *EventStore) ListForWindow(sites []string, from, to time.Time) ([]model.CalendarEvent, error) {
	if to.IsZero() {
		to = farFuture
	}

	query := `SELECT ` + eventCols + eventFrom + `
		 WHERE ((e.recurrence_rule = '' AND e.start_time < ? AND e.end_time > ?)
		    OR (e.recurrence_rule != '' AND e.start_time < ?
		        AND (e.recurrence_last_meeting IS NULL OR e.recurrence_last_meeting >= ?)))`
	args := []any{to.UTC(), from.UTC(), to.UTC(), startOfDayUTC(from)}

	if len(sites) > 0 {
		query += ` AND s.short_name IN (` + placeholders(len(sites)) + `)`
		for _, site := range sites {
			args = append(args, site)
		}
	}
	query += ` ORDER BY e.all_day DESC, e.start_time ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query calendar events: %w", err)
	}
	defer rows.Close()

	var events []model.CalendarEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan calendar event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func startOfDayUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func (s *EventStore) Update(id int64, p EventParams) (*model.CalendarEvent, error) {
	args := append(eventArgs(p), id)
	_, err := s.db.Exec(
		`UPDATE calendar_events
		 SET site_id = ?, title = ?, description = ?, location = ?, start_time = ?, end_time = ?,
		     all_day = ?, tags = ?, recurrence_rule = ?, recurrence_last_meeting = ?
		 WHERE id = ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("update calendar event: %w", err)
	}

	return s.GetByID(id)
}

func (s *EventStore) Delete(id int64) error {
	_, err := s.db.Exec("DELETE FROM calendar_events WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete calendar event: %w", err)
	}
	return nil
}
