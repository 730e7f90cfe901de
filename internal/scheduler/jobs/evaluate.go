package jobs

import (
	"context"

	"github.com/ignitex/engine/internal/engine"
	"github.com/ignitex/engine/pkg/logger"
)

// EvaluateJob runs one full evaluation cycle over the symbol universe.
type EvaluateJob struct {
	engine   *engine.Engine
	schedule string
	logger   *logger.Logger
}

// NewEvaluateJob creates the evaluation job on the given cron schedule.
func NewEvaluateJob(eng *engine.Engine, schedule string, log *logger.Logger) *EvaluateJob {
	return &EvaluateJob{
		engine:   eng,
		schedule: schedule,
		logger:   log,
	}
}

func (j *EvaluateJob) Name() string { return "evaluate" }

func (j *EvaluateJob) Schedule() string { return j.schedule }

// Run never returns an error: a failing symbol is skipped inside the cycle
// and the next run starts clean.
func (j *EvaluateJob) Run(ctx context.Context) error {
	stats := j.engine.EvaluateAll(ctx)
	j.logger.WithFields(map[string]interface{}{
		"candidates": stats.Candidates,
		"rejected":   stats.Rejected,
		"skipped":    stats.Skipped,
	}).Debug("Evaluation job finished")
	return nil
}
