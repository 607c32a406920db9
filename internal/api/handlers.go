package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"github.com/wesm/regcat/internal/query"
	"github.com/wesm/regcat/internal/server"
	"github.com/wesm/regcat/internal/store"
)

// StatsResponse combines server counters and catalog sizes.
type StatsResponse struct {
	Server  *server.Stats `json:"server,omitempty"`
	Catalog *store.Stats  `json:"catalog,omitempty"`
}

// SearchResponse is the body of GET /api/v1/classes.
type SearchResponse struct {
	Criteria query.SearchCriteria `json:"criteria"`
	Count    int                  `json:"count"`
	Classes  []query.ClassSummary `json:"classes"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err string, message string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil && s.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "stats_unavailable", "No statistics available")
		return
	}

	var resp StatsResponse
	if s.stats != nil {
		st := s.stats.Stats()
		resp.Server = &st
	}
	if s.catalog != nil {
		cs, err := s.catalog()
		if err != nil {
			s.logger.Error("failed to get catalog stats", "error", eris.ToString(err, true))
			writeError(w, http.StatusInternalServerError, "internal_error", "Failed to retrieve statistics")
			return
		}
		resp.Catalog = cs
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.open == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog_unavailable", "Catalog not available")
		return
	}

	q := r.URL.Query()
	criteria := query.NewSearchCriteria(q.Get("dept"), q.Get("number"), q.Get("area"), q.Get("title"))

	engine, err := s.open(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	defer engine.Close()

	rows, err := engine.Summaries(r.Context(), query.BuildCondition(criteria))
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Criteria: criteria, Count: len(rows), Classes: rows})
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	if s.open == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog_unavailable", "Catalog not available")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "Class id must be an integer")
		return
	}

	engine, err := s.open(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	defer engine.Close()

	detail, err := engine.Detail(r.Context(), id)
	if err != nil {
		var nf *query.NotFoundError
		if errors.As(err, &nf) {
			writeError(w, http.StatusNotFound, "not_found", nf.Error())
			return
		}
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.logger.Error("catalog query failed", "error", eris.ToString(err, true))
	writeError(w, http.StatusInternalServerError, "internal_error", "A server error occurred")
}
