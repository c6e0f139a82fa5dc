package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/sitecal/internal/calendar"
	"github.com/dukerupert/sitecal/internal/datemath"
	"github.com/dukerupert/sitecal/internal/model"
	"github.com/dukerupert/sitecal/internal/recurrence"
	"github.com/dukerupert/sitecal/internal/store"
	"github.com/dukerupert/sitecal/internal/websocket"
)

// openWindowLimit caps a listing without an end date.
const openWindowLimit = 200

type CalendarEventHandler struct {
	broadcaster
	eventStore *store.EventStore
	siteStore  *store.SiteStore
	calendar   *calendar.Service
	loc        *time.Location
	logger     *slog.Logger
	now        func() time.Time
}

func NewCalendarEventHandler(es *store.EventStore, ss *store.SiteStore, cal *calendar.Service, hub *websocket.Hub, loc *time.Location, logger *slog.Logger) *CalendarEventHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &CalendarEventHandler{
		broadcaster: broadcaster{hub: hub},
		eventStore:  es,
		siteStore:   ss,
		calendar:    cal,
		loc:         loc,
		logger:      logger.With("component", "events"),
		now:         time.Now,
	}
}

type eventRequest struct {
	Site                  string   `json:"site"`
	Title                 string   `json:"title"`
	Description           string   `json:"description"`
	Location              string   `json:"location"`
	StartTime             string   `json:"start_time"`
	EndTime               string   `json:"end_time"`
	AllDay                bool     `json:"all_day"`
	Tags                  []string `json:"tags"`
	RecurrenceRule        string   `json:"recurrence_rule"`
	RecurrenceLastMeeting string   `json:"recurrence_last_meeting"`
}

// parseAndValidate decodes the body into store params. On failure it has
// already written the response.
func (h *CalendarEventHandler) parseAndValidate(r *http.Request, w http.ResponseWriter) (store.EventParams, bool) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return store.EventParams{}, false
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return store.EventParams{}, false
	}

	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_time must be RFC3339 format")
		return store.EventParams{}, false
	}
	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end_time must be RFC3339 format")
		return store.EventParams{}, false
	}
	if !startTime.Before(endTime) {
		writeError(w, http.StatusBadRequest, "start_time must be before end_time")
		return store.EventParams{}, false
	}

	site, err := h.siteStore.GetByShortName(strings.TrimSpace(req.Site))
	if err != nil {
		h.logger.Error("lookup site", "site", req.Site, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check site")
		return store.EventParams{}, false
	}
	if site == nil {
		writeError(w, http.StatusBadRequest, "site not found")
		return store.EventParams{}, false
	}

	p := store.EventParams{
		SiteID:      site.ID,
		Title:       req.Title,
		Description: req.Description,
		Location:    strings.TrimSpace(req.Location),
		StartTime:   startTime,
		EndTime:     endTime,
		AllDay:      req.AllDay,
		Tags:        req.Tags,
	}

	if rule := strings.TrimSpace(req.RecurrenceRule); rule != "" {
		parsed, err := recurrence.Parse(rule)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid recurrence_rule: "+err.Error())
			return store.EventParams{}, false
		}
		p.RecurrenceRule = parsed.String()
	}

	if req.RecurrenceLastMeeting != "" {
		if p.RecurrenceRule == "" {
			writeError(w, http.StatusBadRequest, "recurrence_last_meeting requires recurrence_rule")
			return store.EventParams{}, false
		}
		last, err := parseFlexibleTime(req.RecurrenceLastMeeting, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "recurrence_last_meeting must be RFC3339 or YYYY-MM-DD format")
			return store.EventParams{}, false
		}
		p.RecurrenceLastMeeting = &last
	}

	return p, true
}

func (h *CalendarEventHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := h.parseAndValidate(r, w)
	if !ok {
		return
	}

	event, err := h.eventStore.Create(p)
	if err != nil {
		h.logger.Error("create calendar event", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create event")
		return
	}

	h.broadcast(websocket.NewMessage(websocket.EntityEvent, websocket.ActionCreated, event.Site, event.ID, nil))
	writeJSON(w, http.StatusCreated, event)
}

// List runs the user events query: plain events overlapping [from, to) plus
// the expanded occurrences of recurring ones.
func (h *CalendarEventHandler) List(w http.ResponseWriter, r *http.Request) {
	q, msg := h.parseQuery(r)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	events, err := h.calendar.UserEvents(q)
	if err != nil {
		h.logger.Error("user events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	writeJSON(w, http.StatusOK, events)
}

func (h *CalendarEventHandler) parseQuery(r *http.Request) (calendar.Query, string) {
	params := r.URL.Query()
	q := calendar.Query{Sites: splitList(params["site"])}

	fromStr := params.Get("from")
	if fromStr == "" {
		return q, "from query parameter is required"
	}
	from, err := parseFlexibleTime(fromStr, h.loc)
	if err != nil {
		return q, "from must be RFC3339 or YYYY-MM-DD format"
	}
	q.From = from

	if toStr := params.Get("to"); toStr != "" {
		to, err := parseFlexibleTime(toStr, h.loc)
		if err != nil {
			return q, "to must be RFC3339 or YYYY-MM-DD format"
		}
		if !from.Before(to) {
			return q, "from must be before to"
		}
		q.To = to
	}

	switch params.Get("repeat") {
	case "", "all":
		q.Repeat = calendar.RepeatAll
	case "first":
		q.Repeat = calendar.RepeatFirst
	default:
		return q, "repeat must be all or first"
	}

	q.IncludeOngoing = params.Get("ongoing") == "true"

	if limitStr := params.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			return q, "limit must be a non-negative integer"
		}
		q.Limit = limit
	}
	if q.To.IsZero() && (q.Limit == 0 || q.Limit > openWindowLimit) {
		q.Limit = openWindowLimit
	}

	return q, ""
}

func (h *CalendarEventHandler) Get(w http.ResponseWriter, r *http.Request) {
	event, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// lookup loads the {id} event. On failure it has already written the response.
func (h *CalendarEventHandler) lookup(w http.ResponseWriter, r *http.Request) (*model.CalendarEvent, bool) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil, false
	}

	event, err := h.eventStore.GetByID(id)
	if err != nil {
		h.logger.Error("get calendar event", "event_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return nil, false
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return nil, false
	}
	return event, true
}

func (h *CalendarEventHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.lookup(w, r)
	if !ok {
		return
	}

	p, ok := h.parseAndValidate(r, w)
	if !ok {
		return
	}

	event, err := h.eventStore.Update(existing.ID, p)
	if err != nil {
		h.logger.Error("update calendar event", "event_id", existing.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update event")
		return
	}

	h.broadcast(websocket.NewMessage(websocket.EntityEvent, websocket.ActionUpdated, event.Site, event.ID, nil))
	writeJSON(w, http.StatusOK, event)
}

func (h *CalendarEventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if err := h.eventStore.Delete(existing.ID); err != nil {
		h.logger.Error("delete calendar event", "event_id", existing.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete event")
		return
	}

	h.broadcast(websocket.NewMessage(websocket.EntityEvent, websocket.ActionDeleted, existing.Site, existing.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}

// Next returns the first entry of the event at or after ?after (default now),
// or 204 when the series has ended.
func (h *CalendarEventHandler) Next(w http.ResponseWriter, r *http.Request) {
	event, ok := h.lookup(w, r)
	if !ok {
		return
	}

	after := h.now()
	if s := r.URL.Query().Get("after"); s != "" {
		var err error
		if after, err = parseFlexibleTime(s, h.loc); err != nil {
			writeError(w, http.StatusBadRequest, "after must be RFC3339 or YYYY-MM-DD format")
			return
		}
	}

	next, err := h.calendar.NextOccurrence(event.ID, after)
	if err != nil {
		h.logger.Error("next occurrence", "event_id", event.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute next occurrence")
		return
	}
	if next == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, next)
}

type occurrenceRequest struct {
	OriginalDate string `json:"original_date"`
	Title        string `json:"title"`
	Location     string `json:"location"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
}

func (h *CalendarEventHandler) ListOccurrences(w http.ResponseWriter, r *http.Request) {
	event, ok := h.lookup(w, r)
	if !ok {
		return
	}

	byEvent, err := h.eventStore.ListOccurrences(event.ID)
	if err != nil {
		h.logger.Error("list occurrences", "event_id", event.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list occurrences")
		return
	}
	occurrences := byEvent[event.ID]
	if occurrences == nil {
		occurrences = []model.Occurrence{}
	}
	writeJSON(w, http.StatusOK, occurrences)
}

// CreateOccurrence materializes one generated day of a recurring event. The
// generated instance on original_date is replaced by the stored one.
func (h *CalendarEventHandler) CreateOccurrence(w http.ResponseWriter, r *http.Request) {
	event, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if !event.IsRecurring() {
		writeError(w, http.StatusBadRequest, "event is not recurring")
		return
	}

	var req occurrenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	day, err := datemath.ParseDate(req.OriginalDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "original_date must be YYYY-MM-DD format")
		return
	}

	start := datemath.AtClock(day.In(h.loc), event.StartTime.In(h.loc))
	end := start.Add(event.Duration())
	if req.StartTime != "" {
		if start, err = time.Parse(time.RFC3339, req.StartTime); err != nil {
			writeError(w, http.StatusBadRequest, "start_time must be RFC3339 format")
			return
		}
		end = start.Add(event.Duration())
	}
	if req.EndTime != "" {
		if end, err = time.Parse(time.RFC3339, req.EndTime); err != nil {
			writeError(w, http.StatusBadRequest, "end_time must be RFC3339 format")
			return
		}
	}
	if !start.Before(end) {
		writeError(w, http.StatusBadRequest, "start_time must be before end_time")
		return
	}

	existing, err := h.eventStore.ListOccurrences(event.ID)
	if err != nil {
		h.logger.Error("list occurrences", "event_id", event.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check occurrences")
		return
	}
	for _, occ := range existing[event.ID] {
		if occ.OriginalDate == day.String() {
			writeError(w, http.StatusConflict, "occurrence already exists for original_date")
			return
		}
	}

	occ, err := h.eventStore.CreateOccurrence(event.ID, day.String(),
		strings.TrimSpace(req.Title), strings.TrimSpace(req.Location), start, end)
	if err != nil {
		h.logger.Error("create occurrence", "event_id", event.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create occurrence")
		return
	}

	h.broadcast(websocket.NewMessage(websocket.EntityOccurrence, websocket.ActionCreated, event.Site, occ.ID,
		map[string]any{"event_id": event.ID}))
	writeJSON(w, http.StatusCreated, occ)
}

func (h *CalendarEventHandler) DeleteOccurrence(w http.ResponseWriter, r *http.Request) {
	event, ok := h.lookup(w, r)
	if !ok {
		return
	}
	occID, err := parseIDParam(r, "occID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid occurrence id")
		return
	}

	occ, err := h.eventStore.GetOccurrence(occID)
	if err != nil {
		h.logger.Error("get occurrence", "occurrence_id", occID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get occurrence")
		return
	}
	if occ == nil || occ.EventID != event.ID {
		writeError(w, http.StatusNotFound, "occurrence not found")
		return
	}

	if err := h.eventStore.DeleteOccurrence(event.ID, occID); err != nil {
		h.logger.Error("delete occurrence", "occurrence_id", occID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete occurrence")
		return
	}

	h.broadcast(websocket.NewMessage(websocket.EntityOccurrence, websocket.ActionDeleted, event.Site, occID,
		map[string]any{"event_id": event.ID}))
	w.WriteHeader(http.StatusNoContent)
}
