package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/sitecal/internal/model"
	"github.com/dukerupert/sitecal/internal/store"
	"github.com/dukerupert/sitecal/internal/websocket"
)

var shortNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,31}$`)

type SiteHandler struct {
	broadcaster
	store   *store.SiteStore
	logger  *slog.Logger
	pinCost int
}

func NewSiteHandler(s *store.SiteStore, hub *websocket.Hub, logger *slog.Logger) *SiteHandler {
	return &SiteHandler{
		broadcaster: broadcaster{hub: hub},
		store:       s,
		logger:      logger.With("component", "sites"),
		pinCost:     bcrypt.DefaultCost,
	}
}

func (h *SiteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShortName string `json:"short_name"`
		Title     string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.ShortName = strings.ToLower(strings.TrimSpace(req.ShortName))
	req.Title = strings.TrimSpace(req.Title)
	if !shortNamePattern.MatchString(req.ShortName) {
		writeError(w, http.StatusBadRequest, "short_name must be 1-32 lowercase letters, digits or dashes")
		return
	}
	if req.Title == "" {
		req.Title = req.ShortName
	}

	existing, err := h.store.GetByShortName(req.ShortName)
	if err != nil {
		h.logger.Error("lookup site", "site", req.ShortName, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check site")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "site already exists")
		return
	}

	site, err := h.store.Create(req.ShortName, req.Title)
	if err != nil {
		h.logger.Error("create site", "site", req.ShortName, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create site")
		return
	}

	h.broadcast(websocket.NewMessage(websocket.EntitySite, websocket.ActionCreated, site.ShortName, site.ID, nil))
	writeJSON(w, http.StatusCreated, site)
}

func (h *SiteHandler) List(w http.ResponseWriter, r *http.Request) {
	sites, err := h.store.List()
	if err != nil {
		h.logger.Error("list sites", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list sites")
		return
	}
	if sites == nil {
		sites = []model.Site{}
	}
	writeJSON(w, http.StatusOK, sites)
}

// SetFeedPIN guards the site's calendar feed with a 4 to 8 digit PIN. An
// empty PIN removes the guard.
func (h *SiteHandler) SetFeedPIN(w http.ResponseWriter, r *http.Request) {
	shortName := r.PathValue("site")
	site, err := h.store.GetByShortName(shortName)
	if err != nil {
		h.logger.Error("lookup site", "site", shortName, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get site")
		return
	}
	if site == nil {
		writeError(w, http.StatusNotFound, "site not found")
		return
	}

	var req struct {
		PIN string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	var hash string
	if req.PIN != "" {
		if len(req.PIN) < 4 || len(req.PIN) > 8 || !isDigits(req.PIN) {
			writeError(w, http.StatusBadRequest, "PIN must be 4 to 8 digits")
			return
		}
		b, err := bcrypt.GenerateFromPassword([]byte(req.PIN), h.pinCost)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to hash PIN")
			return
		}
		hash = string(b)
	}

	if err := h.store.SetFeedPIN(site.ShortName, hash); err != nil {
		h.logger.Error("set feed pin", "site", site.ShortName, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to set PIN")
		return
	}

	status := "pin set"
	if hash == "" {
		status = "pin cleared"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}
