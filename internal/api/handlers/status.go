package handlers

import (
	"net/http"

	"github.com/ignitex/engine/internal/engine"
	"github.com/ignitex/engine/internal/scheduler"
	"github.com/ignitex/engine/internal/tiers"
	"github.com/ignitex/engine/pkg/logger"
)

// ActiveCounter reports how many signals are currently monitored.
type ActiveCounter interface {
	ActiveCount() int
}

// StatusHandler serves the engine status snapshot and the manual tick
// trigger for deployments driven by an external cron.
type StatusHandler struct {
	engine  *engine.Engine
	tiers   *tiers.Scheduler
	tracker ActiveCounter
	cron    *scheduler.Scheduler
	logger  *logger.Logger
}

// NewStatusHandler creates a status handler.
func NewStatusHandler(eng *engine.Engine, sched *tiers.Scheduler, tracker ActiveCounter, cron *scheduler.Scheduler, log *logger.Logger) *StatusHandler {
	return &StatusHandler{
		engine:  eng,
		tiers:   sched,
		tracker: tracker,
		cron:    cron,
		logger:  log,
	}
}

// Get returns the full engine status snapshot.
// GET /api/status
func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"tiers":           h.tiers.Statuses(),
		"active_monitors": h.tracker.ActiveCount(),
		"last_run":        h.engine.LastRun(),
	}
	if h.cron != nil {
		status["jobs"] = h.cron.Stats()
	}
	respondJSON(w, http.StatusOK, status)
}

// Tick triggers one evaluation cycle plus a tier tick, for deployments
// where an external cron drives the engine instead of the internal one.
// POST /api/tick
func (h *StatusHandler) Tick(w http.ResponseWriter, r *http.Request) {
	if h.cron == nil {
		respondError(w, http.StatusConflict, "internal scheduler not running")
		return
	}

	for _, job := range []string{"evaluate", "tier_tick"} {
		if err := h.cron.RunNow(job); err != nil {
			h.logger.WithError(err).WithField("job", job).Error("Manual tick failed")
			respondError(w, http.StatusInternalServerError, "Failed to trigger "+job)
			return
		}
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "tick scheduled"})
}
