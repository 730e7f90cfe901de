package jobs

import (
	"context"
	"fmt"

	"github.com/ignitex/engine/internal/contracts"
	"github.com/ignitex/engine/internal/learning"
	"github.com/ignitex/engine/pkg/logger"
)

// rejectionKeep caps the audit log; older entries are discarded.
const rejectionKeep = 10000

// RejectionPruneJob trims the rejection audit log to its cap.
type RejectionPruneJob struct {
	repo   contracts.RejectionRepository
	logger *logger.Logger
}

// NewRejectionPruneJob creates the nightly prune job.
func NewRejectionPruneJob(repo contracts.RejectionRepository, log *logger.Logger) *RejectionPruneJob {
	return &RejectionPruneJob{repo: repo, logger: log}
}

func (j *RejectionPruneJob) Name() string { return "rejection_prune" }

// Schedule runs daily at 03:10 UTC, off the busy boundaries.
func (j *RejectionPruneJob) Schedule() string { return "0 10 3 * * *" }

func (j *RejectionPruneJob) MaxRetries() int { return 2 }

func (j *RejectionPruneJob) Run(ctx context.Context) error {
	if err := j.repo.Prune(ctx, rejectionKeep); err != nil {
		return fmt.Errorf("prune rejections: %w", err)
	}
	j.logger.WithField("keep", rejectionKeep).Debug("Rejection log pruned")
	return nil
}

// CalibrationSnapshotJob persists the in-memory calibration table on a slow
// cadence, independent of the outcome-count trigger.
type CalibrationSnapshotJob struct {
	loop *learning.Loop
}

// NewCalibrationSnapshotJob creates the hourly snapshot job.
func NewCalibrationSnapshotJob(loop *learning.Loop) *CalibrationSnapshotJob {
	return &CalibrationSnapshotJob{loop: loop}
}

func (j *CalibrationSnapshotJob) Name() string { return "calibration_snapshot" }

func (j *CalibrationSnapshotJob) Schedule() string { return "0 0 * * * *" }

func (j *CalibrationSnapshotJob) MaxRetries() int { return 2 }

func (j *CalibrationSnapshotJob) Run(ctx context.Context) error {
	return j.loop.Recalibrate(ctx)
}
