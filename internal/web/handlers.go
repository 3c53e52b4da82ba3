// Package web provides the analyst front end: an HTMX search page, a JSON
// API and a live audit feed.
package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/a-h/templ"

	"github.com/siemql/siemql/internal/format"
	"github.com/siemql/siemql/internal/logstore"
	apperrors "github.com/siemql/siemql/internal/pkg/errors"
	"github.com/siemql/siemql/internal/pkg/logger"
	"github.com/siemql/siemql/internal/pkg/security"
	"github.com/siemql/siemql/internal/pipeline"
	"github.com/siemql/siemql/internal/session"
	"github.com/siemql/siemql/internal/web/components"
)

const (
	// SessionCookie carries the analyst's session id.
	SessionCookie = "siemql_session"
	// SessionHeader lets API clients pass the session id without cookies.
	SessionHeader = "X-Session-ID"

	maxBodyBytes = 1 << 20
)

// SessionGauge receives the live session count after each request.
type SessionGauge interface {
	SetActiveSessions(n int)
}

// Handler handles all web requests.
type Handler struct {
	orch     *pipeline.Orchestrator
	sessions *session.Manager
	hub      *EventHub
	gauge    SessionGauge
	log      *logger.Logger
	now      func() time.Time
}

// NewHandler creates a new web handler. hub may be nil to disable the
// audit feed.
func NewHandler(orch *pipeline.Orchestrator, sessions *session.Manager, hub *EventHub, log *logger.Logger) *Handler {
	return &Handler{
		orch:     orch,
		sessions: sessions,
		hub:      hub,
		log:      log,
		now:      time.Now,
	}
}

// SetSessionGauge sets where the session count is reported. g may be nil.
func (h *Handler) SetSessionGauge(g SessionGauge) {
	h.gauge = g
}

// RegisterRoutes registers all web routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Pages
	mux.HandleFunc("GET /{$}", h.handleSearchPage)
	mux.HandleFunc("POST /search", h.handleSearch)
	mux.HandleFunc("GET /events", h.handleEvents)

	// JSON API
	mux.HandleFunc("POST /v1/query", h.handleQuery)
	mux.HandleFunc("POST /v1/insert", h.handleInsert)
	mux.HandleFunc("DELETE /v1/session", h.handleEndSession)
}

// handleSearchPage renders the search page with the session's history.
func (h *Handler) handleSearchPage(w http.ResponseWriter, r *http.Request) {
	id, sess, release := h.sessions.Acquire(requestSessionID(r))
	var history []components.HistoryItem
	for _, t := range sess.Turns() {
		item := components.HistoryItem{Text: t.RawText, At: t.At}
		if t.Response != nil {
			item.Total = t.Response.Total
			item.Failed = t.Response.Failed()
		}
		history = append(history, item)
	}
	release()
	h.setSessionCookie(w, id)

	h.render(w, r, http.StatusOK, components.SearchPage(components.SearchPageData{
		Query:   r.URL.Query().Get("q"),
		Index:   h.orch.Index(),
		History: history,
		Now:     h.now(),
	}))
}

// handleSearch runs the form query and renders the result fragment.
func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, components.ErrorMessage("Invalid form"))
		return
	}
	text := security.SanitizeQuery(r.FormValue("q"))
	if err := security.ValidateQuery(text); err != nil {
		h.render(w, r, http.StatusBadRequest, components.ErrorMessage(err.Error()))
		return
	}

	id, res := h.runQuery(r, text, requestSessionID(r))
	h.setSessionCookie(w, id)

	h.render(w, r, http.StatusOK, components.Results(components.ResultsData{
		TurnID: res.TurnID,
		Kind:   string(res.Kind),
		Report: report(res),
	}))
}

// QueryRequest is the body of POST /v1/query.
type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
	// JQ optionally filters the report before it is returned.
	JQ string `json:"jq,omitempty"`
}

// QueryResponse is the body returned by POST /v1/query.
type QueryResponse struct {
	SessionID string         `json:"session_id"`
	TurnID    string         `json:"turn_id"`
	Kind      string         `json:"kind"`
	Report    *format.Report `json:"report"`
	Filtered  []any          `json:"filtered,omitempty"`
}

// handleQuery runs a query for API clients.
func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apperrors.WriteError(w, err)
		return
	}
	req.Query = security.SanitizeQuery(req.Query)
	if err := security.ValidateQuery(req.Query); err != nil {
		apperrors.WriteError(w, apperrors.ValidationError(err.Error()))
		return
	}

	sid := req.SessionID
	if sid == "" {
		sid = requestSessionID(r)
	}
	id, res := h.runQuery(r, req.Query, sid)

	resp := QueryResponse{
		SessionID: id,
		TurnID:    res.TurnID,
		Kind:      string(res.Kind),
		Report:    report(res),
	}
	if req.JQ != "" {
		out, err := format.Filter(resp.Report, req.JQ)
		if err != nil {
			apperrors.WriteError(w, err)
			return
		}
		resp.Filtered = out
	}

	h.setSessionCookie(w, id)
	writeJSON(w, http.StatusOK, resp)
}

// handleInsert stores one document given as a flat JSON object.
func (h *Handler) handleInsert(w http.ResponseWriter, r *http.Request) {
	var doc logstore.Document
	if err := decodeJSON(w, r, &doc); err != nil {
		apperrors.WriteError(w, err)
		return
	}

	ctx := r.Context()
	if id := requestSessionID(r); id != "" {
		ctx = pipeline.WithSessionID(ctx, id)
	}
	res, err := h.orch.Insert(ctx, doc)
	if err != nil {
		h.log.WithContext(ctx).Warn("Insert failed", "error", err)
		apperrors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// handleEndSession forgets the caller's session.
func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	removed := h.sessions.Remove(requestSessionID(r))
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	h.reportSessions()
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

// runQuery handles text within the session named by sid and returns the
// session id actually used.
func (h *Handler) runQuery(r *http.Request, text, sid string) (string, *pipeline.Result) {
	id, sess, release := h.sessions.Acquire(sid)
	defer release()
	defer h.reportSessions()

	ctx := pipeline.WithSessionID(r.Context(), id)
	return id, h.orch.HandleQuery(ctx, text, sess)
}

func (h *Handler) reportSessions() {
	if h.gauge != nil {
		h.gauge.SetActiveSessions(h.sessions.Len())
	}
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		h.log.WithContext(r.Context()).Error("Failed to render", "error", err)
	}
}

// report turns a pipeline result into its display form.
func report(res *pipeline.Result) *format.Report {
	return format.NewReport(res.Effective, logstore.EncodeRequest(res.Request), res.Response)
}

// requestSessionID reads the session id from the header, then the cookie.
func requestSessionID(r *http.Request) string {
	if id := r.Header.Get(SessionHeader); id != "" {
		return id
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidRequest, "invalid JSON body", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
