package handlers

import (
	"net/http"
	"strconv"

	"github.com/ignitex/engine/internal/contracts"
	"github.com/ignitex/engine/pkg/logger"
)

const maxHistoryLimit = 500

// SignalHandler serves released signals.
type SignalHandler struct {
	repo   contracts.SignalRepository
	logger *logger.Logger
}

// NewSignalHandler creates a signal handler.
func NewSignalHandler(repo contracts.SignalRepository, log *logger.Logger) *SignalHandler {
	return &SignalHandler{
		repo:   repo,
		logger: log,
	}
}

// Active returns currently monitored signals.
// GET /api/signals/active?tier=premium
func (h *SignalHandler) Active(w http.ResponseWriter, r *http.Request) {
	tier := r.URL.Query().Get("tier")

	signals, err := h.repo.LoadActive(r.Context(), tier)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load active signals")
		respondError(w, http.StatusInternalServerError, "Failed to load active signals")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(signals),
		"signals": signals,
	})
}

// History returns recent signals including closed ones, newest first.
// GET /api/signals/history?tier=premium&limit=50
func (h *SignalHandler) History(w http.ResponseWriter, r *http.Request) {
	tier := r.URL.Query().Get("tier")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			respondError(w, http.StatusBadRequest, "limit must be 1-500")
			return
		}
		limit = n
	}

	signals, err := h.repo.History(r.Context(), tier, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load signal history")
		respondError(w, http.StatusInternalServerError, "Failed to load signal history")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(signals),
		"signals": signals,
	})
}
