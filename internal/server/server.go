// Package server exposes the runtime lookup surface over HTTP.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/utility-cli/internal/correction"
	"github.com/sells-group/utility-cli/internal/market"
	"github.com/sells-group/utility-cli/internal/model"
	"github.com/sells-group/utility-cli/internal/registry"
)

// Server wires the registry, market classifier, and correction workflow into
// an HTTP handler.
type Server struct {
	registry *registry.Registry
	market   *market.Classifier
	workflow *correction.Workflow
}

// New creates a Server.
func New(reg *registry.Registry, mk *market.Classifier, wf *correction.Workflow) *Server {
	return &Server{registry: reg, market: mk, workflow: wf}
}

// Router builds the chi router with middleware and all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/v1/override", s.handleOverride)
	r.Get("/v1/context", s.handleContext)
	r.Get("/v1/consensus", s.handleConsensus)
	r.Get("/v1/classify", s.handleClassify)
	r.Post("/v1/corrections", s.handleSubmitCorrection)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleOverride answers the hard-override check. A miss is a 404: the caller
// falls through to its own attribution logic.
func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	zip := r.URL.Query().Get("zip")
	street := r.URL.Query().Get("street")
	category := model.Category(r.URL.Query().Get("category"))

	if zip == "" || street == "" || !category.Valid() {
		writeError(w, http.StatusBadRequest, "zip, street, and a valid category are required")
		return
	}

	match := s.registry.CheckOverride(zip, street, category)
	if match == nil {
		writeError(w, http.StatusNotFound, "no override")
		return
	}
	writeJSON(w, http.StatusOK, match)
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	zip := r.URL.Query().Get("zip")
	category := model.Category(r.URL.Query().Get("category"))

	if zip == "" || !category.Valid() {
		writeError(w, http.StatusBadRequest, "zip and a valid category are required")
		return
	}

	zc := s.registry.Context(zip, category)
	if zc == nil {
		writeError(w, http.StatusNotFound, "no context")
		return
	}
	writeJSON(w, http.StatusOK, zc)
}

// handleConsensus votes among geocoded observations near a coordinate. Like
// the override check it fails closed: too few neighbors or too weak a
// majority is a 404.
func (s *Server) handleConsensus(w http.ResponseWriter, r *http.Request) {
	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	category := model.Category(r.URL.Query().Get("category"))

	if latErr != nil || lonErr != nil || !category.Valid() {
		writeError(w, http.StatusBadRequest, "lat, lon, and a valid category are required")
		return
	}

	c := s.registry.NeighborConsensus(lat, lon, category)
	if c == nil {
		writeError(w, http.StatusNotFound, "no consensus")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	providerName := r.URL.Query().Get("provider")
	state := r.URL.Query().Get("state")

	if providerName == "" || state == "" {
		writeError(w, http.StatusBadRequest, "provider and state are required")
		return
	}

	writeJSON(w, http.StatusOK, s.market.Classify(providerName, state))
}

func (s *Server) handleSubmitCorrection(w http.ResponseWriter, r *http.Request) {
	var req correction.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Source == "" {
		req.Source = "api"
	}

	res, err := s.workflow.Submit(r.Context(), req)
	if err != nil {
		zap.L().Warn("correction submit rejected", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"status":             res.Correction.Status,
		"confirmation_count": res.Correction.ConfirmationCount,
		"created":            res.Created,
		"newly_verified":     res.NewlyVerified,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
