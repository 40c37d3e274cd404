package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/backyonatan-alt/petitionwatch/internal/model"
	"github.com/backyonatan-alt/petitionwatch/internal/pipeline"
	"github.com/backyonatan-alt/petitionwatch/internal/store"
	"github.com/backyonatan-alt/petitionwatch/internal/trend"
)

type healthResponse struct {
	Status     string           `json:"status"`
	LastUpdate string           `json:"last_update,omitempty"`
	LastCycle  *pipeline.Report `json:"last_cycle,omitempty"`
}

type petitionResponse struct {
	model.Petition
	ObservedMinutesAgo  float64          `json:"observed_minutes_ago"`
	Snapshots           []model.Snapshot `json:"snapshots"`
	SignaturesPerMinute float64          `json:"signatures_per_minute"`
}

type partiesResponse struct {
	PetitionID int64              `json:"petition_id"`
	Parties    []model.PartyTotal `json:"parties"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if report, ok := s.reports.Get(); ok {
		resp.LastCycle = &report
		resp.LastUpdate = s.reports.UpdatedAt().Format(time.RFC3339)
		if report.Error != "" {
			resp.Status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePetition(w http.ResponseWriter, r *http.Request) {
	id, ok := petitionID(w, r)
	if !ok {
		return
	}

	p, err := s.store.Petition(r.Context(), id)
	if err != nil {
		s.storeError(w, id, err)
		return
	}
	snaps, err := s.store.Snapshots(r.Context(), id, s.snapshotLimit)
	if err != nil {
		s.storeError(w, id, err)
		return
	}

	if snaps == nil {
		snaps = []model.Snapshot{}
	}
	series := make([]model.Observation, len(snaps))
	for i, snap := range snaps {
		series[i] = snap.Observation
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	writeJSON(w, http.StatusOK, petitionResponse{
		Petition:            p,
		ObservedMinutesAgo:  trend.MinutesSince(p.Observation, s.now()),
		Snapshots:           snaps,
		SignaturesPerMinute: trend.Latest(series),
	})
}

func (s *Server) handleParties(w http.ResponseWriter, r *http.Request) {
	id, ok := petitionID(w, r)
	if !ok {
		return
	}

	if _, err := s.store.Petition(r.Context(), id); err != nil {
		s.storeError(w, id, err)
		return
	}
	totals, err := s.store.LatestPartyTotals(r.Context(), id)
	if err != nil {
		s.storeError(w, id, err)
		return
	}
	if totals == nil {
		totals = []model.PartyTotal{}
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	writeJSON(w, http.StatusOK, partiesResponse{PetitionID: id, Parties: totals})
}

func petitionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid petition id")
		return 0, false
	}
	return id, true
}

func (s *Server) storeError(w http.ResponseWriter, id int64, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "petition not found")
		return
	}
	slog.Error("failed to load petition", "id", id, "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
