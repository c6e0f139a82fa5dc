package calendar

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dukerupert/sitecal/internal/datemath"
	"github.com/dukerupert/sitecal/internal/model"
	"github.com/dukerupert/sitecal/internal/recurrence"
)

type EventSource interface {
	ListForWindow(sites []string, from, to time.Time) ([]model.CalendarEvent, error)
	ListOccurrences(eventIDs ...int64) (map[int64][]model.Occurrence, error)
	GetByID(id int64) (*model.CalendarEvent, error)
}

type SiteSource interface {
	GetByShortName(shortName string) (*model.Site, error)
}

type Repeat int

const (
	// RepeatAll lists every occurrence inside the window.
	RepeatAll Repeat = iota
	// RepeatFirst lists only the first occurrence of each series, titled
	// with a " (Recurring)" suffix.
	RepeatFirst
)

type Query struct {
	Sites          []string // empty means every site
	From           time.Time
	To             time.Time // zero is open ended
	Repeat         Repeat
	IncludeOngoing bool
	Limit          int
}

type Config struct {
	MaxCycles int
	Location  *time.Location // zone recurring events repeat in; UTC when nil
	Logger    *slog.Logger
}

type Service struct {
	events    EventSource
	sites     SiteSource
	maxCycles int
	loc       *time.Location
	logger    *slog.Logger
}

func NewService(events EventSource, sites SiteSource, cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxCycles <= 0 {
		cfg.MaxCycles = recurrence.DefaultMaxCycles
	}
	return &Service{
		events:    events,
		sites:     sites,
		maxCycles: cfg.MaxCycles,
		loc:       cfg.Location,
		logger:    cfg.Logger.With("component", "calendar"),
	}
}

// siteCache memoizes site titles for the lifetime of one request.
type siteCache struct {
	src    SiteSource
	titles map[string]string
}

func newSiteCache(src SiteSource) *siteCache {
	return &siteCache{src: src, titles: make(map[string]string)}
}

func (c *siteCache) title(shortName string) (string, error) {
	if t, ok := c.titles[shortName]; ok {
		return t, nil
	}
	site, err := c.src.GetByShortName(shortName)
	if err != nil {
		return "", fmt.Errorf("lookup site %q: %w", shortName, err)
	}
	t := shortName
	if site != nil {
		t = site.Title
	}
	c.titles[shortName] = t
	return t, nil
}

// UserEvents lists the calendar entries of q.Sites inside [q.From, q.To),
// ordered by start time then title.
func (s *Service) UserEvents(q Query) ([]model.EventSummary, error) {
	events, err := s.events.ListForWindow(q.Sites, q.From, q.To)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	var recurringIDs []int64
	for _, ev := range events {
		if ev.IsRecurring() {
			recurringIDs = append(recurringIDs, ev.ID)
		}
	}
	children, err := s.events.ListOccurrences(recurringIDs...)
	if err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}

	cache := newSiteCache(s.sites)
	out := []model.EventSummary{}
	for _, ev := range events {
		siteTitle, err := cache.title(ev.Site)
		if err != nil {
			return nil, err
		}
		base := Summarize(ev, siteTitle)

		if !ev.IsRecurring() {
			out = append(out, base)
			continue
		}
		out = append(out, s.expandSeries(ev, base, children[ev.ID], q)...)
	}

	sortSummaries(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Service) expandSeries(ev model.CalendarEvent, base model.EventSummary, children []model.Occurrence, q Query) []model.EventSummary {
	rule, err := recurrence.Parse(ev.RecurrenceRule)
	if err != nil {
		s.logger.Warn("unparseable recurrence rule, showing base event only",
			"event_id", ev.ID, "rule", ev.RecurrenceRule, "error", err)
		if overlaps(ev.StartTime, ev.EndTime, q.From, q.To) {
			return []model.EventSummary{base}
		}
		return nil
	}

	var out []model.EventSummary
	materialized := recurrence.DaySet{}
	for _, occ := range children {
		if d, err := datemath.ParseDate(occ.OriginalDate); err == nil {
			materialized.AddDate(d)
		} else {
			s.logger.Warn("bad occurrence date", "event_id", ev.ID, "occurrence_id", occ.ID, "error", err)
		}
		if overlaps(occ.StartTime, occ.EndTime, q.From, q.To) {
			out = append(out, FromOccurrence(base, occ))
		}
	}

	opts := recurrence.Options{MaxCycles: s.maxCycles, IncludeOngoing: q.IncludeOngoing}
	if q.Repeat == RepeatFirst {
		opts.Limit = 1
	} else if q.Limit > 0 {
		// No series can place more than Limit entries in the trimmed result.
		opts.Limit = q.Limit
	}
	exp := recurrence.ExpandRule(rule, s.seriesEvent(ev, materialized),
		recurrence.Window{Start: q.From, End: q.To}, opts)
	if exp.Truncated {
		s.logger.Warn("recurrence expansion truncated",
			"event_id", ev.ID, "rule", ev.RecurrenceRule, "cycles", exp.Cycles)
	}

	for _, occ := range exp.Dates {
		out = append(out, ToOccurrenceRecord(base, occ, ev.Duration(), q.Repeat == RepeatFirst))
	}
	return out
}

func (s *Service) seriesEvent(ev model.CalendarEvent, materialized recurrence.DaySet) recurrence.Event {
	return recurrence.Event{
		Anchor:       ev.StartTime.In(s.loc),
		Duration:     ev.Duration(),
		LastMeeting:  ev.RecurrenceLastMeeting,
		Materialized: materialized,
	}
}

// NextOccurrence returns the first entry of the event starting at or after
// after, or nil when the series has nothing left.
func (s *Service) NextOccurrence(eventID int64, after time.Time) (*model.EventSummary, error) {
	ev, err := s.events.GetByID(eventID)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if ev == nil {
		return nil, nil
	}

	siteTitle, err := newSiteCache(s.sites).title(ev.Site)
	if err != nil {
		return nil, err
	}
	base := Summarize(*ev, siteTitle)

	rule, err := recurrence.Parse(ev.RecurrenceRule)
	if !ev.IsRecurring() || err != nil {
		if ev.IsRecurring() {
			s.logger.Warn("unparseable recurrence rule, showing base event only",
				"event_id", ev.ID, "rule", ev.RecurrenceRule, "error", err)
		}
		if ev.StartTime.Before(after) {
			return nil, nil
		}
		return &base, nil
	}

	children, err := s.events.ListOccurrences(ev.ID)
	if err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}

	var candidates []model.EventSummary
	materialized := recurrence.DaySet{}
	for _, occ := range children[ev.ID] {
		if d, err := datemath.ParseDate(occ.OriginalDate); err == nil {
			materialized.AddDate(d)
		}
		if !occ.StartTime.Before(after) {
			candidates = append(candidates, FromOccurrence(base, occ))
		}
	}

	// Two dates cover an occurrence earlier on after's own day.
	exp := recurrence.ExpandRule(rule, s.seriesEvent(*ev, materialized),
		recurrence.Window{Start: after}, recurrence.Options{Limit: 2, MaxCycles: s.maxCycles})
	for _, occ := range exp.Dates {
		if !occ.Before(after) {
			candidates = append(candidates, ToOccurrenceRecord(base, occ, ev.Duration(), false))
			break
		}
	}

	if len(candidates) == 0 {
		return nil, nil
	}
	sortSummaries(candidates)
	return &candidates[0], nil
}

func overlaps(start, end, from, to time.Time) bool {
	if !to.IsZero() && !start.Before(to) {
		return false
	}
	return end.After(from)
}

func sortSummaries(list []model.EventSummary) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].Start.Equal(list[j].Start) {
			return list[i].Start.Before(list[j].Start)
		}
		return list[i].Title < list[j].Title
	})
}
