package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	msgQueryNotFound = "query not found"
	msgFetchFailed   = "Failed to fetch data"
)

type healthResponse struct {
	Status        string `json:"status"`
	Mode          string `json:"mode,omitempty"`
	State         string `json:"state"`
	HandleID      string `json:"handle_id,omitempty"`
	Constructions int64  `json:"constructions"`
	Invalidations int64  `json:"invalidations"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.stats.Stats()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		Mode:          stats.Mode,
		State:         stats.StateName,
		HandleID:      stats.HandleID,
		Constructions: stats.Constructions,
		Invalidations: stats.Invalidations,
	})
}

func (s *Server) handleListQueries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.queries.Catalog().Names())
}

func (s *Server) handleRunQuery(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, err := s.queries.Catalog().Lookup(name); err != nil {
		jsonError(w, msgQueryNotFound, http.StatusNotFound)
		return
	}

	records, err := s.queries.Run(r.Context(), name)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		s.logger.Error("Query %q failed (request_id=%s): %v", name, middleware.GetReqID(r.Context()), err)
		jsonError(w, msgFetchFailed, status)
		return
	}

	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
