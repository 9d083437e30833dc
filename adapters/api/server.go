// Package api exposes the analysis engine over HTTP. One POST carries a unit
// table plus parameters and returns the full decomposition as a single JSON
// document; nothing is persisted server-side.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"mlid/app"
	"mlid/domain/core"
	"mlid/domain/geo"
	"mlid/internal/logging"
)

// Server wires the analysis service into a chi router.
type Server struct {
	svc *app.AnalysisService
	log *logging.Logger
}

// NewServer creates the HTTP surface over an analysis service.
func NewServer(svc *app.AnalysisService, log *logging.Logger) *Server {
	if log == nil {
		log = logging.NewDefaultLogger()
	}
	return &Server{svc: svc, log: log}
}

// AnalysisRequest is the wire form of one analysis call: the table columns
// inline plus the run parameters.
type AnalysisRequest struct {
	Units  []string             `json:"units"`
	Counts map[string][]float64 `json:"counts"`
	Keys   map[string][]string  `json:"keys,omitempty"`

	app.Request
}

// Router builds the route table.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/v1/analyses", s.handleAnalyze)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON: "+err.Error())
		return
	}

	table, err := geo.NewTable(req.Units, req.Counts, req.Keys)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	result, err := s.svc.Run(r.Context(), table, req.Request)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// writeDomainError maps the domain error taxonomy onto HTTP statuses:
// structural input problems are the caller's to fix, fit failures are
// unprocessable, anything else is a server fault.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case core.IsInvalidInputError(err), core.IsHierarchyError(err), core.IsConfigurationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case core.IsModelFitError(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.log.Error("analysis failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
