// Package handlers provides HTTP request handlers for the portward API.
// This file implements read access to stored scan sessions.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/anstrom/portward/internal/db"
	"github.com/anstrom/portward/internal/errors"
	"github.com/anstrom/portward/internal/scanning"
)

// SessionStore is the read side of the session repository.
type SessionStore interface {
	SearchSessions(ctx context.Context, filters db.SessionFilters) ([]*db.Session, int64, error)
	GetSession(ctx context.Context, id uuid.UUID) (*db.Session, error)
	GetSessionResults(ctx context.Context, sessionID uuid.UUID) ([]*db.ScanResult, error)
	GetStatistics(ctx context.Context) (*db.Statistics, error)
}

// SessionHandler serves stored sessions. Without a store every endpoint
// answers 503.
type SessionHandler struct {
	store  SessionStore
	logger *slog.Logger
}

// NewSessionHandler creates a new session handler. store may be nil.
func NewSessionHandler(store SessionStore, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		store:  store,
		logger: logger.With("handler", "session"),
	}
}

// SessionDetail is a session together with its recorded open ports.
type SessionDetail struct {
	Session *db.Session      `json:"session"`
	Results []*db.ScanResult `json:"results"`
}

var errNoDatabase = errors.NewScanError(errors.CodeServiceUnavailable, "database is not configured")

func (h *SessionHandler) available(w http.ResponseWriter, r *http.Request) bool {
	if h.store == nil {
		writeError(w, r, http.StatusServiceUnavailable, errNoDatabase)
		return false
	}
	return true
}

// ListSessions godoc
// @Summary List sessions
// @Description Searches stored scan sessions, newest first.
// @Tags Sessions
// @Produce json
// @Param type query string false "Session type" Enums(red_team, blue_team)
// @Param target query string false "Target substring"
// @Param since query string false "Earliest start time (RFC 3339)"
// @Param until query string false "Latest start time (RFC 3339)"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(50)
// @Success 200 {object} PaginatedResponse
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /sessions [get]
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}

	params, err := getPaginationParams(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	filters, err := sessionFilters(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	filters.Limit = params.PageSize
	filters.Offset = params.Offset

	sessions, total, err := h.store.SearchSessions(r.Context(), filters)
	if err != nil {
		handleError(w, r, err, "list sessions", h.logger)
		return
	}
	if sessions == nil {
		sessions = []*db.Session{}
	}
	writePaginatedResponse(w, r, sessions, params, total)
}

func sessionFilters(r *http.Request) (db.SessionFilters, error) {
	q := r.URL.Query()
	filters := db.SessionFilters{
		Type:   scanning.SessionType(q.Get("type")),
		Target: q.Get("target"),
	}

	var err error
	if filters.Since, err = getQueryParamTime(r, "since"); err != nil {
		return filters, err
	}
	if filters.Until, err = getQueryParamTime(r, "until"); err != nil {
		return filters, err
	}
	return filters, nil
}

// GetSession godoc
// @Summary Get session
// @Description Returns a stored session and its open ports.
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID (UUID)"
// @Success 200 {object} SessionDetail
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}

	id, err := extractUUIDFromPath(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	session, err := h.store.GetSession(r.Context(), id)
	if err != nil {
		handleError(w, r, err, "get session", h.logger)
		return
	}

	results, err := h.store.GetSessionResults(r.Context(), id)
	if err != nil {
		handleError(w, r, err, "get session results", h.logger)
		return
	}
	if results == nil {
		results = []*db.ScanResult{}
	}

	writeJSON(w, r, http.StatusOK, SessionDetail{Session: session, Results: results})
}

// GetStatistics godoc
// @Summary Session statistics
// @Description Returns totals over all stored sessions.
// @Tags Sessions
// @Produce json
// @Success 200 {object} db.Statistics
// @Failure 503 {object} ErrorResponse
// @Router /stats [get]
func (h *SessionHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}

	stats, err := h.store.GetStatistics(r.Context())
	if err != nil {
		handleError(w, r, err, "get statistics", h.logger)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}
