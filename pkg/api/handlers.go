package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ethpandaops/gatewaybench/pkg/runindex"
	"github.com/go-chi/chi/v5"
)

const (
	defaultRunsLimit = 50
	maxRunsLimit     = 500
)

// errorResponse is a standard error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// runResponse is a run together with its unit results.
type runResponse struct {
	*runindex.Run
	Units []runindex.UnitResult `json:"units"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListRuns returns the most recent runs, newest first.
func (s *server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{"limit must be a positive integer"})

			return
		}

		limit = min(n, maxRunsLimit)
	}

	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{"listing runs: " + err.Error()})

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// handleGetRun returns a run and its unit results in execution order.
func (s *server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	units, err := s.store.ListUnitResults(r.Context(), runID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{"listing units: " + err.Error()})

		return
	}

	writeJSON(w, http.StatusOK, runResponse{Run: run, Units: units})
}

// handleUnitLog serves the captured output of one unit.
func (s *server) handleUnitLog(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	name := chi.URLParam(r, "*")

	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{"unit name is required"})

		return
	}

	unit, err := s.store.GetUnitResult(r.Context(), runID, name)
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	if !filepath.IsAbs(unit.LogPath) {
		writeJSON(w, http.StatusNotFound, errorResponse{"log not available"})

		return
	}

	if _, err := os.Stat(unit.LogPath); err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{"log file no longer exists"})

		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	http.ServeFile(w, r, unit.LogPath)
}

func (s *server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, runindex.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{err.Error()})

		return
	}

	s.log.WithError(err).Error("Run index query failed")
	writeJSON(w, http.StatusInternalServerError, errorResponse{"internal error"})
}
