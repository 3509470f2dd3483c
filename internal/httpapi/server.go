// Package httpapi serves the pipeline over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vorn/vorn/internal/config"
	"github.com/vorn/vorn/internal/explain"
	"github.com/vorn/vorn/internal/observability"
	"github.com/vorn/vorn/internal/observability/logging"
	"github.com/vorn/vorn/internal/pipeline"
	"github.com/vorn/vorn/internal/store"
)

// bodySlack is the JSON envelope allowance on top of the content limit.
const bodySlack = 1 << 20

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	cfg       config.Config
	processor *pipeline.Processor
	store     store.Store
	explainer explain.Explainer
	metrics   *observability.Metrics
	logger    logging.Logger
}

// New wires a server. A nil explainer answers with the deterministic fallback;
// a nil logger discards events.
func New(cfg config.Config, processor *pipeline.Processor, st store.Store, explainer explain.Explainer, metrics *observability.Metrics, logger logging.Logger) *Server {
	if explainer == nil {
		explainer = explain.FallbackExplainer{}
	}
	if logger == nil {
		logger = logging.From(context.Background())
	}
	return &Server{
		cfg:       cfg,
		processor: processor,
		store:     st,
		explainer: explainer,
		metrics:   metrics,
		logger:    logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/process", s.handleProcess)
		r.Get("/files", s.handleListFiles)
		r.Get("/files/{id}", s.handleGetFile)
		r.Post("/explain", s.handleExplain)
		r.Get("/rules", s.handleRules)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"store_mode": s.storeMode(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.store.(Pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			s.logger.Warn("http", "store not ready", "error", err.Error())
			respondJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status":     "unavailable",
				"store_mode": s.storeMode(),
			})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ready",
		"store_mode": s.storeMode(),
	})
}

func (s *Server) storeMode() string {
	switch s.store.(type) {
	case nil:
		return "disabled"
	case *store.InMemoryStore:
		return "in-memory"
	case *store.PostgresStore:
		return "postgres"
	default:
		return "custom"
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func isJSON(r *http.Request) bool {
	return strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json")
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
