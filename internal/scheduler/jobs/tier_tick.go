package jobs

import (
	"context"
	"time"

	"github.com/ignitex/engine/internal/tiers"
)

// TierTickJob advances the tier scheduler. It fires frequently and carries
// no retry; a failed release stays buffered for the next tick.
type TierTickJob struct {
	scheduler *tiers.Scheduler
	schedule  string
}

// NewTierTickJob creates the tick job on the given cron schedule.
func NewTierTickJob(sched *tiers.Scheduler, schedule string) *TierTickJob {
	return &TierTickJob{
		scheduler: sched,
		schedule:  schedule,
	}
}

func (j *TierTickJob) Name() string { return "tier_tick" }

func (j *TierTickJob) Schedule() string { return j.schedule }

func (j *TierTickJob) Run(ctx context.Context) error {
	j.scheduler.Tick(ctx, time.Now())
	return nil
}
