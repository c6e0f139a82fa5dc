package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/sitecal/internal/calendar"
	"github.com/dukerupert/sitecal/internal/config"
	"github.com/dukerupert/sitecal/internal/handler"
	"github.com/dukerupert/sitecal/internal/middleware"
	"github.com/dukerupert/sitecal/internal/store"
	ws "github.com/dukerupert/sitecal/internal/websocket"
)

type Server struct {
	db             *sql.DB
	hub            *ws.Hub
	siteH          *handler.SiteHandler
	calendarEventH *handler.CalendarEventHandler
	feedH          *handler.FeedHandler
	rateLimiter    *middleware.RateLimiter
	feedRateLimit  int
	logger         *slog.Logger
}

func New(db *sql.DB, cfg config.Runtime, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger)

	siteStore := store.NewSiteStore(db)
	eventStore := store.NewEventStore(db)

	cal := calendar.NewService(eventStore, siteStore, calendar.Config{
		MaxCycles: cfg.MaxExpansionCycles,
		Location:  cfg.Location,
		Logger:    logger,
	})

	return &Server{
		db:             db,
		hub:            hub,
		siteH:          handler.NewSiteHandler(siteStore, hub, logger),
		calendarEventH: handler.NewCalendarEventHandler(eventStore, siteStore, cal, hub, cfg.Location, logger),
		feedH:          handler.NewFeedHandler(siteStore, cal, cfg.FeedHorizon, cfg.Location, logger),
		rateLimiter:    middleware.NewRateLimiter(),
		feedRateLimit:  cfg.FeedRateLimit,
		logger:         logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	mux.HandleFunc("POST /api/sites", s.siteH.Create)
	mux.HandleFunc("GET /api/sites", s.siteH.List)
	mux.HandleFunc("PUT /api/sites/{site}/feed-pin", s.siteH.SetFeedPIN)

	mux.HandleFunc("POST /api/events", s.calendarEventH.Create)
	mux.HandleFunc("GET /api/events", s.calendarEventH.List)
	mux.HandleFunc("GET /api/events/{id}", s.calendarEventH.Get)
	mux.HandleFunc("PUT /api/events/{id}", s.calendarEventH.Update)
	mux.HandleFunc("DELETE /api/events/{id}", s.calendarEventH.Delete)
	mux.HandleFunc("GET /api/events/{id}/next", s.calendarEventH.Next)
	mux.HandleFunc("GET /api/events/{id}/occurrences", s.calendarEventH.ListOccurrences)
	mux.HandleFunc("POST /api/events/{id}/occurrences", s.calendarEventH.CreateOccurrence)
	mux.HandleFunc("DELETE /api/events/{id}/occurrences/{occID}", s.calendarEventH.DeleteOccurrence)

	feedLimit := middleware.RateLimit(s.rateLimiter, middleware.FeedKey, s.feedRateLimit, time.Minute)
	mux.Handle("GET /sites/{site}/calendar.ics", feedLimit(http.HandlerFunc(s.feedH.Serve)))

	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, nil))

	httpLogger := s.logger.With("component", "http")
	return middleware.RequestLogger(httpLogger)(middleware.Recoverer(httpLogger)(mux))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}` + "\n"))
		return
	}
	w.Write([]byte(`{"status":"ok"}` + "\n"))
}
