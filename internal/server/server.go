package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazz-dev/readycheck/internal/dashboard"
	"github.com/hazz-dev/readycheck/internal/readiness"
	"github.com/hazz-dev/readycheck/internal/storage"
)

// HistoryStore defines the storage queries the server needs.
type HistoryStore interface {
	History(ctx context.Context, limit, offset int) ([]storage.Check, int, error)
	ConnectedPercent(ctx context.Context, last int) (float64, error)
}

// PageFactory builds a fresh, unmounted readiness page.
type PageFactory func() *readiness.Page

// Server serves the readiness page and its JSON API.
type Server struct {
	newPage PageFactory
	store   HistoryStore
	router  chi.Router
	logger  *slog.Logger
}

// New creates a new Server and registers all routes. A nil store disables
// the history endpoint.
func New(newPage PageFactory, store HistoryStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		newPage: newPage,
		store:   store,
		router:  chi.NewRouter(),
		logger:  logger,
	}
	s.registerRoutes()
	return s
}

// Router returns the chi router (for mounting or testing).
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(requestLogger(s.logger))

	r.Get("/", s.handlePage)
	r.Handle("/static/*", http.StripPrefix("/static/", dashboard.Static()))
	r.Get("/api/health", s.handleHealth)
	r.Get("/api/status", s.handleStatus)
	r.Get("/api/history", s.handleHistory)
}

// --- Response helpers ---

type envelope struct {
	Data  interface{} `json:"data"`
	Error string      `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Error: msg})
}

// runCycle mounts a fresh page for the lifetime of the request and waits for
// its check to settle. ok is false when the client went away first.
func (s *Server) runCycle(r *http.Request) (page *readiness.Page, v readiness.View, ok bool) {
	page = s.newPage()
	// Unmount discards the health call's result but never cancels it.
	c := page.Mount(context.WithoutCancel(r.Context()))
	defer c.Unmount()

	v = page.Wait(r.Context(), c)
	if r.Context().Err() != nil {
		return page, v, false
	}
	return page, v, true
}

// --- Handlers ---

// handlePage renders the page in the checking state right away; its script
// settles it through /api/status. With ?wait it runs the check first and
// renders the settled view.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	var (
		baseURL string
		v       readiness.View
	)
	if r.URL.Query().Has("wait") {
		page, settled, ok := s.runCycle(r)
		if !ok {
			return
		}
		baseURL, v = page.BaseURL(), settled
	} else {
		baseURL, v = s.newPage().BaseURL(), readiness.Checking()
	}

	var buf bytes.Buffer
	if err := dashboard.Render(&buf, baseURL, v); err != nil {
		s.logger.Error("rendering page", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type statusResponse struct {
	BackendURL string                    `json:"backend_url"`
	State      readiness.ConnectionState `json:"state"`
	StatusText string                    `json:"status_text"`
	DetailText string                    `json:"detail_text,omitempty"`
	Service    string                    `json:"service,omitempty"`
	Timestamp  string                    `json:"timestamp,omitempty"`
	Error      string                    `json:"error,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	page, v, ok := s.runCycle(r)
	if !ok {
		return
	}

	resp := statusResponse{
		BackendURL: page.BaseURL(),
		State:      v.State(),
		StatusText: v.StatusText(),
		DetailText: v.DetailText(),
	}
	if h, ok := v.Health(); ok {
		resp.Service = h.Service
		resp.Timestamp = h.Timestamp
	}
	if msg, ok := v.ErrorMessage(); ok {
		resp.Error = msg
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}

type historyResponse struct {
	Checks           []storage.Check `json:"checks"`
	Total            int             `json:"total"`
	ConnectedPercent float64         `json:"connected_percent"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}

	const maxLimit = 1000

	limit := 50
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		if n > maxLimit {
			n = maxLimit
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset parameter")
			return
		}
		offset = n
	}

	checks, total, err := s.store.History(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("History", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if checks == nil {
		checks = []storage.Check{}
	}

	pct, err := s.store.ConnectedPercent(r.Context(), 100)
	if err != nil {
		s.logger.Warn("ConnectedPercent", "error", err)
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Checks:           checks,
		Total:            total,
		ConnectedPercent: pct,
	})
}
