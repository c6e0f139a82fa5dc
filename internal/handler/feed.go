package handler

import (
	"bytes"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/sitecal/internal/calendar"
	"github.com/dukerupert/sitecal/internal/datemath"
	"github.com/dukerupert/sitecal/internal/ical"
	"github.com/dukerupert/sitecal/internal/store"
)

// FeedHandler serves a site's calendar as a subscribable iCalendar feed.
type FeedHandler struct {
	siteStore *store.SiteStore
	calendar  *calendar.Service
	horizon   time.Duration
	loc       *time.Location
	logger    *slog.Logger
	now       func() time.Time
}

func NewFeedHandler(ss *store.SiteStore, cal *calendar.Service, horizon time.Duration, loc *time.Location, logger *slog.Logger) *FeedHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &FeedHandler{
		siteStore: ss,
		calendar:  cal,
		horizon:   horizon,
		loc:       loc,
		logger:    logger.With("component", "feed"),
		now:       time.Now,
	}
}

// Serve handles GET /sites/{site}/calendar.ics?pin=&from=&to=. The window
// defaults to today through today plus the configured horizon.
func (h *FeedHandler) Serve(w http.ResponseWriter, r *http.Request) {
	shortName := r.PathValue("site")
	site, err := h.siteStore.GetByShortName(shortName)
	if err != nil {
		h.logger.Error("lookup site", "site", shortName, "error", err)
		http.Error(w, "failed to load site", http.StatusInternalServerError)
		return
	}
	if site == nil {
		http.Error(w, "site not found", http.StatusNotFound)
		return
	}

	params := r.URL.Query()
	if site.FeedPINHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(site.FeedPINHash), []byte(params.Get("pin"))); err != nil {
			http.Error(w, "incorrect PIN", http.StatusUnauthorized)
			return
		}
	}

	now := h.now().In(h.loc)
	from := datemath.TruncateToDay(now)
	if s := params.Get("from"); s != "" {
		if from, err = parseFlexibleTime(s, h.loc); err != nil {
			http.Error(w, "from must be RFC3339 or YYYY-MM-DD format", http.StatusBadRequest)
			return
		}
	}
	to := from.Add(h.horizon)
	if s := params.Get("to"); s != "" {
		if to, err = parseFlexibleTime(s, h.loc); err != nil {
			http.Error(w, "to must be RFC3339 or YYYY-MM-DD format", http.StatusBadRequest)
			return
		}
	}
	if !from.Before(to) {
		http.Error(w, "from must be before to", http.StatusBadRequest)
		return
	}

	events, err := h.calendar.UserEvents(calendar.Query{
		Sites: []string{site.ShortName},
		From:  from,
		To:    to,
	})
	if err != nil {
		h.logger.Error("user events", "site", site.ShortName, "error", err)
		http.Error(w, "failed to list events", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := ical.Encode(&buf, site.Title, events, now); err != nil {
		h.logger.Error("encode feed", "site", site.ShortName, "error", err)
		http.Error(w, "failed to encode calendar", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="`+site.ShortName+`.ics"`)
	w.Write(buf.Bytes())
}
