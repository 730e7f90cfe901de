package handlers

import (
	"net/http"

	"github.com/ignitex/engine/internal/contracts"
	"github.com/ignitex/engine/pkg/logger"
)

// CalibrationSource exposes the current calibration table.
type CalibrationSource interface {
	Table() *contracts.CalibrationTable
}

// PerformanceHandler serves the learning loop's view of the detectors.
type PerformanceHandler struct {
	perf   contracts.PerformanceRepository
	calib  CalibrationSource
	logger *logger.Logger
}

// NewPerformanceHandler creates a performance handler. calib may be nil in
// api-only processes where the learning loop is not running.
func NewPerformanceHandler(perf contracts.PerformanceRepository, calib CalibrationSource, log *logger.Logger) *PerformanceHandler {
	return &PerformanceHandler{
		perf:   perf,
		calib:  calib,
		logger: log,
	}
}

// Get returns per-(strategy, regime) records plus the calibration table.
// GET /api/performance
func (h *PerformanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	records, err := h.perf.All(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load performance records")
		respondError(w, http.StatusInternalServerError, "Failed to load performance records")
		return
	}

	resp := map[string]interface{}{
		"count":   len(records),
		"records": records,
	}
	if h.calib != nil {
		resp["calibration"] = h.calib.Table()
	}

	respondJSON(w, http.StatusOK, resp)
}
