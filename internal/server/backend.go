package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hazz-dev/readycheck/internal/apiclient"
)

// HealthAPI is a minimal backend that only answers the health route. It
// lets the readiness page be exercised without the real backend.
type HealthAPI struct {
	service string
	now     func() time.Time
	router  chi.Router
	logger  *slog.Logger
}

// NewHealthAPI returns a HealthAPI reporting service as its name. Browsers
// on any of origins may call it cross-origin.
func NewHealthAPI(service string, origins []string, logger *slog.Logger) *HealthAPI {
	if logger == nil {
		logger = slog.Default()
	}
	h := &HealthAPI{
		service: service,
		now:     time.Now,
		router:  chi.NewRouter(),
		logger:  logger,
	}

	r := h.router
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(requestLogger(logger))
	if len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", RequestIDHeader},
			ExposedHeaders: []string{RequestIDHeader},
			MaxAge:         300,
		}))
	}
	r.Get(apiclient.HealthPath, h.handleHealth)
	return h
}

// Router returns the chi router.
func (h *HealthAPI) Router() chi.Router {
	return h.router
}

func (h *HealthAPI) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(apiclient.BackendHealth{
		Status:    "ok",
		Service:   h.service,
		Timestamp: h.now().UTC().Format(time.RFC3339Nano),
	})
}
