package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"nifty-advisor/internal/analysis"
	"nifty-advisor/internal/chain"
	apperrors "nifty-advisor/internal/errors"
	"nifty-advisor/internal/logging"
	"nifty-advisor/internal/store"
)

// AnalysisRequest is the optional body of POST /analyze/nifty-options.
type AnalysisRequest struct {
	BlockWeeklyExpiry *bool `json:"block_weekly_expiry"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "NIFTY Options Advisor API",
		"version": s.cfg.Version,
		"endpoints": map[string]string{
			"analyze": "/analyze/nifty-options",
			"health":  "/health",
			"ready":   "/health/ready",
			"journal": "/journal",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	health := s.cfg.Health.Check(r.Context())
	writeJSON(w, http.StatusOK, health)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.WithSymbol(logging.FromContext(ctx), s.cfg.Symbol)

	opts := analysis.DefaultOptions()
	var req AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusUnprocessableEntity, "Invalid request body: "+err.Error())
		return
	}
	if req.BlockWeeklyExpiry != nil {
		opts.BlockWeeklyExpiry = *req.BlockWeeklyExpiry
	}

	doc, err := s.cfg.Fetcher.FetchOptionChain(ctx, s.cfg.Symbol)
	if err != nil {
		logger.Error().Err(err).Msg("Option chain fetch failed")
		if ctx.Err() != nil {
			writeError(w, http.StatusServiceUnavailable, "Request cancelled while fetching data from NSE")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "Failed to fetch data from NSE: "+err.Error())
		return
	}

	if s.cfg.StrictValidation {
		if err := chain.Validate(doc); err != nil {
			logger.Warn().Err(err).Msg("Option chain failed validation")
			writeError(w, http.StatusUnprocessableEntity, "Data validation failed: "+err.Error())
			return
		}
	}

	report, err := s.cfg.Pipeline.Run(doc, opts)
	switch {
	case apperrors.Is(err, apperrors.ErrStructural):
		writeError(w, http.StatusUnprocessableEntity, "Data validation failed: "+err.Error())
		return
	case err != nil:
		logger.Error().Err(err).Msg("Analysis failed")
		writeError(w, http.StatusInternalServerError, "Internal server error: "+err.Error())
		return
	}

	if err := analysis.RequireRows(report); err != nil {
		logger.Warn().Err(err).Msg("Option chain had no usable rows")
		writeError(w, http.StatusServiceUnavailable, "No option chain data available. Please try again later.")
		return
	}

	entry := store.NewEntry(report, s.cfg.Symbol, s.cfg.Now())
	if err := s.cfg.Journal.SaveAnalysis(ctx, entry); err != nil {
		logger.Warn().Err(err).Msg("Failed to journal analysis")
	} else {
		w.Header().Set("X-Analysis-Id", entry.ID)
	}

	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleJournalList(w http.ResponseWriter, r *http.Request) {
	limit := store.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusUnprocessableEntity, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.cfg.Journal.ListAnalyses(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error: "+err.Error())
		return
	}
	if entries == nil {
		entries = []store.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleJournalGet(w http.ResponseWriter, r *http.Request) {
	entry, err := s.cfg.Journal.GetAnalysis(r.Context(), chi.URLParam(r, "id"))
	switch {
	case apperrors.Is(err, apperrors.ErrDataNotFound):
		writeError(w, http.StatusNotFound, "Analysis not found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Internal server error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
