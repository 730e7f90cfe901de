package handlers

import (
	"net/http"
	"strconv"

	"github.com/ignitex/engine/internal/contracts"
	"github.com/ignitex/engine/pkg/logger"
)

var validStages = map[string]bool{
	"consensus": true,
	"gate":      true,
	"quality":   true,
	"assembler": true,
}

// RejectionHandler serves the pipeline audit log.
type RejectionHandler struct {
	repo   contracts.RejectionRepository
	logger *logger.Logger
}

// NewRejectionHandler creates a rejection handler.
func NewRejectionHandler(repo contracts.RejectionRepository, log *logger.Logger) *RejectionHandler {
	return &RejectionHandler{
		repo:   repo,
		logger: log,
	}
}

// List returns recent rejections, newest first.
// GET /api/rejections?stage=quality&limit=100
func (h *RejectionHandler) List(w http.ResponseWriter, r *http.Request) {
	stage := r.URL.Query().Get("stage")
	if stage != "" && !validStages[stage] {
		respondError(w, http.StatusBadRequest, "unknown stage "+stage)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			respondError(w, http.StatusBadRequest, "limit must be 1-500")
			return
		}
		limit = n
	}

	rejections, err := h.repo.List(r.Context(), stage, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list rejections")
		respondError(w, http.StatusInternalServerError, "Failed to list rejections")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":      len(rejections),
		"rejections": rejections,
	})
}
