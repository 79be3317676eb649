package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gramseva/mgnrega-tracker/internal/model"
	"github.com/gramseva/mgnrega-tracker/internal/query"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "OK",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"uptime":      time.Since(s.startedAt).Seconds(),
		"environment": s.cfg.Environment,
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"name":        "MGNREGA Performance Tracker API",
		"version":     "1.0.0",
		"description": "District-level MGNREGA employment-program performance statistics",
		"endpoints": map[string]string{
			"districts":    "/api/districts",
			"performance":  "/api/performance/{districtCode}",
			"summary":      "/api/district/{districtCode}/summary",
			"compare":      "/api/compare",
			"stateSummary": "/api/state-summary",
			"refresh":      "/api/refresh-data",
		},
	})
}

func (s *Server) handleDistricts(w http.ResponseWriter, r *http.Request) {
	districts, err := s.service.ListDistricts(r.Context())
	if err != nil {
		s.respondStoreError(w, "list districts", err)
		return
	}
	if districts == nil {
		districts = []model.District{}
	}
	respondJSON(w, http.StatusOK, districts)
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "districtCode")
	year, ok := yearParam(w, r)
	if !ok {
		return
	}

	records, err := s.service.MonthlySeries(r.Context(), code, year)
	if err != nil {
		s.respondStoreError(w, "monthly series", err)
		return
	}
	if records == nil {
		records = []model.PerformanceRecord{}
	}
	respondJSON(w, http.StatusOK, records)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "districtCode")
	year, ok := yearParam(w, r)
	if !ok {
		return
	}

	summary, err := s.service.DistrictSummary(r.Context(), code, year)
	if errors.Is(err, query.ErrDistrictNotFound) {
		respondError(w, http.StatusNotFound, "district not found")
		return
	}
	if err != nil {
		s.respondStoreError(w, "district summary", err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("districts")
	if raw == "" {
		respondError(w, http.StatusBadRequest, "districts parameter is required")
		return
	}
	var codes []string
	for _, c := range strings.Split(raw, ",") {
		if c = strings.TrimSpace(c); c != "" {
			codes = append(codes, c)
		}
	}
	year, ok := yearParam(w, r)
	if !ok {
		return
	}

	rows, err := s.service.Compare(r.Context(), codes, year)
	if errors.Is(err, query.ErrNoDistricts) {
		respondError(w, http.StatusBadRequest, "districts parameter is required")
		return
	}
	if err != nil {
		s.respondStoreError(w, "compare districts", err)
		return
	}
	if rows == nil {
		rows = []model.ComparisonRow{}
	}
	respondJSON(w, http.StatusOK, rows)
}

func (s *Server) handleStateSummary(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(w, r)
	if !ok {
		return
	}

	rows, err := s.service.StateSummary(r.Context(), year)
	if err != nil {
		s.respondStoreError(w, "state summary", err)
		return
	}
	if rows == nil {
		rows = []model.StateSummaryRow{}
	}
	respondJSON(w, http.StatusOK, rows)
}

// handleRefresh triggers an ingestion run and responds immediately without
// waiting for completion. The run serializes against itself inside the
// pipeline, so repeated triggers are safe.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	go func() {
		// Detached from the request context: the run outlives the response.
		if err := s.refresher.RefreshAll(context.Background()); err != nil {
			zap.L().Error("manual refresh failed", zap.Error(err))
		}
	}()
	respondJSON(w, http.StatusAccepted, map[string]string{
		"message": "data refresh initiated",
	})
}

// helpers

func yearParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return query.DefaultYear, true
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 2000 || year > 2100 {
		respondError(w, http.StatusBadRequest, "invalid year parameter")
		return 0, false
	}
	return year, true
}

func (s *Server) respondStoreError(w http.ResponseWriter, op string, err error) {
	zap.L().Error("store query failed", zap.String("operation", op), zap.Error(err))
	respondError(w, http.StatusInternalServerError, "internal server error")
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
