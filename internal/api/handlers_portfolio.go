package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// windowDays parses the ?days= query, defaulting to 30 and capping at 365
func windowDays(r *http.Request) (int, bool) {
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return 0, false
		}
		days = parsed
	}
	if days > 365 {
		days = 365
	}
	return days, true
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := externalID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid user id")
		return
	}

	snapshot, err := s.analytics.Snapshot(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleDiversification(w http.ResponseWriter, r *http.Request) {
	id, ok := externalID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid user id")
		return
	}

	pct, err := s.analytics.Diversification(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, pct)
}

func (s *Server) handleROI(w http.ResponseWriter, r *http.Request) {
	id, ok := externalID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid user id")
		return
	}
	days, ok := windowDays(r)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid days")
		return
	}

	roi, err := s.analytics.ROI(r.Context(), id, days)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"windowDays": days,
		"roi":        roi,
	})
}

func (s *Server) handleRebalance(w http.ResponseWriter, r *http.Request) {
	id, ok := externalID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid user id")
		return
	}

	var req struct {
		Target map[string]decimal.Decimal `json:"target"`
	}
	if r.ContentLength > 0 {
		if err := parseJSONBody(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid request body: "+err.Error())
			return
		}
	}

	trades, err := s.analytics.SuggestRebalance(r.Context(), id, req.Target)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"trades":   trades,
		"balanced": len(trades) == 0,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := externalID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid user id")
		return
	}
	if s.history == nil {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "valuation history is not enabled")
		return
	}
	days, ok := windowDays(r)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid days")
		return
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	points, err := s.history.Series(r.Context(), id, since)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, points)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	id, ok := externalID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid user id")
		return
	}

	if ok := s.syncer.Sync(r.Context(), id); !ok {
		respondError(w, http.StatusBadGateway, ErrCodeUpstreamError, "synchronization failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "synced"})
}
