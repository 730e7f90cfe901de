package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ignitex/engine/pkg/logger"
)

type countJob struct {
	name     string
	schedule string
	runs     atomic.Int32
	failures int32 // fail this many runs before succeeding
	retries  int
}

func (j *countJob) Name() string     { return j.name }
func (j *countJob) Schedule() string { return j.schedule }

func (j *countJob) Run(ctx context.Context) error {
	n := j.runs.Add(1)
	if n <= j.failures {
		return errors.New("transient failure")
	}
	return nil
}

type retryJob struct {
	countJob
}

func (j *retryJob) MaxRetries() int { return j.retries }

func TestAddJob_DuplicateName(t *testing.T) {
	s := New(logger.NewNop())

	a := &countJob{name: "dup", schedule: "@hourly"}
	if err := s.AddJob(a); err != nil {
		t.Fatalf("first AddJob: %v", err)
	}
	if err := s.AddJob(&countJob{name: "dup", schedule: "@hourly"}); err == nil {
		t.Error("expected error for duplicate job name")
	}
}

func TestAddJob_BadSchedule(t *testing.T) {
	s := New(logger.NewNop())
	if err := s.AddJob(&countJob{name: "bad", schedule: "not a cron"}); err == nil {
		t.Error("expected error for invalid schedule")
	}
}

func TestRunNow_ExecutesAndRecordsHistory(t *testing.T) {
	s := New(logger.NewNop())
	job := &countJob{name: "once", schedule: "@hourly"}
	if err := s.AddJob(job); err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	if err := s.RunNow("once"); err != nil {
		t.Fatalf("RunNow: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for job.runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if job.runs.Load() != 1 {
		t.Fatalf("runs = %d, want 1", job.runs.Load())
	}

	// History is written after the run returns.
	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if st, ok := s.Stats()["once"]; ok && st.TotalRuns == 1 {
			if st.SuccessRate != 1.0 {
				t.Errorf("success rate = %.2f, want 1.0", st.SuccessRate)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job run never recorded in history")
}

func TestRunNow_UnknownJob(t *testing.T) {
	s := New(logger.NewNop())
	if err := s.RunNow("ghost"); err == nil {
		t.Error("expected error for unknown job")
	}
}

func TestRetryableJob_RetriesUntilSuccess(t *testing.T) {
	s := New(logger.NewNop())
	s.retryDelay = 10 * time.Millisecond

	job := &retryJob{countJob: countJob{name: "flaky", schedule: "@hourly", failures: 2, retries: 3}}
	if err := s.AddJob(job); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if err := s.RunNow("flaky"); err != nil {
		t.Fatalf("RunNow: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st, ok := s.Stats()["flaky"]; ok && st.TotalRuns == 1 {
			if st.FailureCount != 0 {
				t.Errorf("failure count = %d, want 0 after retries succeed", st.FailureCount)
			}
			if job.runs.Load() != 3 {
				t.Errorf("attempts = %d, want 3", job.runs.Load())
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("retried job never completed")
}

func TestNonRetryableJob_FailsOnce(t *testing.T) {
	s := New(logger.NewNop())
	s.retryDelay = 10 * time.Millisecond

	job := &countJob{name: "fragile", schedule: "@hourly", failures: 10}
	if err := s.AddJob(job); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if err := s.RunNow("fragile"); err != nil {
		t.Fatalf("RunNow: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st, ok := s.Stats()["fragile"]; ok && st.TotalRuns == 1 {
			if job.runs.Load() != 1 {
				t.Errorf("attempts = %d, want 1 without Retryable", job.runs.Load())
			}
			if st.FailureCount != 1 {
				t.Errorf("failure count = %d, want 1", st.FailureCount)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job result never recorded")
}

func TestRemoveJob(t *testing.T) {
	s := New(logger.NewNop())
	if err := s.AddJob(&countJob{name: "temp", schedule: "@hourly"}); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if err := s.RemoveJob("temp"); err != nil {
		t.Fatalf("RemoveJob: %v", err)
	}
	if err := s.RunNow("temp"); err == nil {
		t.Error("removed job should not be runnable")
	}
}
