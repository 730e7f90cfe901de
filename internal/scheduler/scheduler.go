package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ignitex/engine/pkg/logger"
)

// Scheduler drives the engine's periodic work off one cron instance: the
// evaluation cycle, the tier tick and the maintenance jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger *logger.Logger

	mu      sync.RWMutex
	jobs    map[string]Job
	entries map[string]cron.EntryID
	history map[string]*JobHistory

	retryDelay time.Duration

	// baseCtx is the lifetime of the whole scheduler; jobs inherit it so
	// shutdown cancels in-flight runs.
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// New creates an idle scheduler.
func New(log *logger.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		logger:     log.Component("scheduler"),
		jobs:       make(map[string]Job),
		entries:    make(map[string]cron.EntryID),
		history:    make(map[string]*JobHistory),
		retryDelay: 15 * time.Second,
	}
}

// AddJob registers a job under its schedule. Duplicate names are an error.
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already exists", name)
	}

	id, err := s.cron.AddFunc(job.Schedule(), func() {
		s.runJob(job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.jobs[name] = job
	s.entries[name] = id
	s.history[name] = &JobHistory{}

	s.logger.WithFields(map[string]interface{}{
		"job":      name,
		"schedule": job.Schedule(),
	}).Info("Job registered")

	return nil
}

// RemoveJob unregisters a job and its cron entry.
func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, exists := s.entries[name]
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}

	s.cron.Remove(id)
	delete(s.jobs, name)
	delete(s.entries, name)

	s.logger.WithField("job", name).Info("Job removed")
	return nil
}

// Start begins firing schedules. ctx bounds every job run.
func (s *Scheduler) Start(ctx context.Context) {
	s.baseCtx, s.cancelBase = context.WithCancel(ctx)
	s.logger.Info("Starting scheduler")
	s.cron.Start()
}

// Stop cancels in-flight jobs and waits for the cron runner to drain.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	if s.cancelBase != nil {
		s.cancelBase()
	}
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// RunNow fires a job immediately, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	job, exists := s.jobs[name]
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("job %s not found", name)
	}

	go s.runJob(job)
	return nil
}

func (s *Scheduler) runJob(job Job) {
	name := job.Name()
	start := time.Now()

	ctx := s.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}

	retries := 0
	if r, ok := job.(Retryable); ok {
		retries = r.MaxRetries()
	}

	var lastErr error
	success := false
	for attempt := 0; attempt <= retries; attempt++ {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		if lastErr = job.Run(ctx); lastErr == nil {
			success = true
			break
		}

		s.logger.WithError(lastErr).WithFields(map[string]interface{}{
			"job":     name,
			"attempt": attempt + 1,
		}).Warn("Job run failed")

		if attempt < retries {
			select {
			case <-time.After(s.retryDelay):
			case <-ctx.Done():
			}
		}
	}

	end := time.Now()
	result := JobResult{
		JobName:   name,
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start),
		Success:   success,
	}
	if !success && lastErr != nil {
		result.Error = lastErr.Error()
	}

	s.mu.Lock()
	if h, ok := s.history[name]; ok {
		h.AddResult(result)
	}
	s.mu.Unlock()

	if success {
		s.logger.WithFields(map[string]interface{}{
			"job":      name,
			"duration": result.Duration.Seconds(),
		}).Debug("Job completed")
	} else {
		s.logger.WithFields(map[string]interface{}{
			"job":      name,
			"duration": result.Duration.Seconds(),
			"error":    result.Error,
		}).Error("Job failed")
	}
}

// Stats summarizes every registered job for the status API.
func (s *Scheduler) Stats() map[string]JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]JobStats, len(s.jobs))
	for name, h := range s.history {
		job, ok := s.jobs[name]
		if !ok {
			continue
		}

		var lastRun *time.Time
		latest := h.Latest(1)
		if len(latest) == 1 {
			t := latest[0].StartTime
			lastRun = &t
		}

		failures := 0
		for _, r := range h.Results {
			if !r.Success {
				failures++
			}
		}

		stats[name] = JobStats{
			JobName:      name,
			Schedule:     job.Schedule(),
			TotalRuns:    len(h.Results),
			FailureCount: failures,
			SuccessRate:  h.SuccessRate(),
			LastRun:      lastRun,
		}
	}
	return stats
}

// JobStats is one job's aggregate execution record.
type JobStats struct {
	JobName      string     `json:"job_name"`
	Schedule     string     `json:"schedule"`
	TotalRuns    int        `json:"total_runs"`
	FailureCount int        `json:"failure_count"`
	SuccessRate  float64    `json:"success_rate"`
	LastRun      *time.Time `json:"last_run,omitempty"`
}
