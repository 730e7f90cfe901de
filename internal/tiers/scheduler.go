package tiers

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignitex/engine/internal/contracts"
	"github.com/ignitex/engine/internal/metrics"
	"github.com/ignitex/engine/internal/strategyconfig"
	"github.com/ignitex/engine/pkg/logger"
)

// maxBuffer bounds each tier's candidate buffer. When full, the lowest
// quality score is evicted; the best candidate is always retained.
const maxBuffer = 16

// ReleaseFunc receives each released signal exactly once per tier. The
// scheduler has already persisted the signal when this runs.
type ReleaseFunc func(ctx context.Context, signal *contracts.Signal) error

// Scheduler buffers assembled signals per subscription tier and releases at
// most one per tier per interval. Per-tier state survives restarts by
// reconstruction from the signal store; tiers release independently of each
// other but strictly serialized within themselves.
type Scheduler struct {
	repo      contracts.SignalRepository
	onRelease ReleaseFunc
	logger    *logger.Logger

	tiers []*tierState
}

// tierState is the per-tier machine: WAITING while the interval runs, READY
// once it elapses, back to WAITING on release.
type tierState struct {
	def strategyconfig.Tier

	mu        sync.Mutex
	releasing bool // reentrancy guard, held across the release I/O

	lastRelease   time.Time
	quotaDay      time.Time // UTC midnight of the day releasedToday counts
	releasedToday int

	buffer []*contracts.Signal
}

func New(cfg *strategyconfig.Config, repo contracts.SignalRepository, onRelease ReleaseFunc, log *logger.Logger) *Scheduler {
	s := &Scheduler{
		repo:      repo,
		onRelease: onRelease,
		logger:    log.Component("tiers"),
	}
	for _, def := range cfg.Tiers {
		s.tiers = append(s.tiers, &tierState{def: def})
	}
	return s
}

// Resume reconstructs each tier's release clock from the store. A tier with
// a persisted release keeps its cadence across the restart; a tier with no
// history gets its configured stagger offset so cold starts do not fire
// every tier at once. The daily quota counter is rebuilt from the store too.
func (s *Scheduler) Resume(ctx context.Context, now time.Time) error {
	for _, t := range s.tiers {
		last, err := s.repo.LastReleaseTime(ctx, t.def.ID)
		if err != nil {
			return fmt.Errorf("resume tier %s: %w", t.def.ID, err)
		}

		t.mu.Lock()
		if last != nil {
			t.lastRelease = *last
		} else {
			// No history: run a full interval first, offset by the
			// tier's stagger so cold starts do not fire in unison.
			t.lastRelease = now.Add(t.def.Stagger.Std())
		}
		t.quotaDay = dayOf(now)
		t.mu.Unlock()

		count, err := s.repo.CountReleasedSince(ctx, t.def.ID, dayOf(now))
		if err != nil {
			return fmt.Errorf("resume tier %s quota: %w", t.def.ID, err)
		}
		t.mu.Lock()
		t.releasedToday = count
		t.mu.Unlock()

		s.logger.WithFields(map[string]interface{}{
			"tier":           t.def.ID,
			"last_release":   t.lastRelease,
			"released_today": count,
			"had_history":    last != nil,
		}).Info("Tier schedule reconstructed")
	}
	return nil
}

// Offer hands an assembled signal to every tier's buffer. Each tier holds
// its own copy; release into one tier never consumes another's.
func (s *Scheduler) Offer(signal *contracts.Signal) {
	for _, t := range s.tiers {
		t.mu.Lock()
		t.offerLocked(signal)
		metrics.TierBufferSize.WithLabelValues(t.def.ID).Set(float64(len(t.buffer)))
		t.mu.Unlock()
	}
	s.logger.WithFields(map[string]interface{}{
		"signal_id": signal.ID,
		"symbol":    signal.Symbol,
		"score":     signal.QualityScore,
	}).Debug("Signal buffered for all tiers")
}

func (t *tierState) offerLocked(signal *contracts.Signal) {
	copied := *signal
	t.buffer = append(t.buffer, &copied)
	if len(t.buffer) <= maxBuffer {
		return
	}
	// Evict the lowest score.
	sort.Slice(t.buffer, func(i, j int) bool {
		return t.buffer[i].QualityScore > t.buffer[j].QualityScore
	})
	t.buffer = t.buffer[:maxBuffer]
}

// Tick drives every tier once. Tiers that are not due, over quota, or empty
// no-op; a tier mid-release from a near-simultaneous tick is skipped rather
// than double-released. Safe to call from a timer or an external trigger.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	for _, t := range s.tiers {
		if released, err := s.maybeRelease(ctx, t, now); err != nil {
			s.logger.WithError(err).WithField("tier", t.def.ID).Error("Tier release failed")
		} else if released != nil {
			s.logger.WithFields(map[string]interface{}{
				"tier":      t.def.ID,
				"signal_id": released.ID,
				"symbol":    released.Symbol,
				"score":     released.QualityScore,
			}).Info("Signal released")
		}
	}
}

func (s *Scheduler) maybeRelease(ctx context.Context, t *tierState, now time.Time) (*contracts.Signal, error) {
	t.mu.Lock()
	if t.releasing {
		t.mu.Unlock()
		return nil, nil
	}

	day := dayOf(now)
	if !t.quotaDay.Equal(day) {
		t.quotaDay = day
		t.releasedToday = 0
	}

	due := now.Sub(t.lastRelease) >= t.def.Interval.Std()
	overQuota := t.def.DailyQuota > 0 && t.releasedToday >= t.def.DailyQuota

	// Expired candidates can never be released; drop them while here.
	live := t.buffer[:0]
	for _, sig := range t.buffer {
		if sig.ExpiresAt.After(now) {
			live = append(live, sig)
		}
	}
	t.buffer = live
	metrics.TierBufferSize.WithLabelValues(t.def.ID).Set(float64(len(t.buffer)))

	if !due || overQuota || len(t.buffer) == 0 {
		t.mu.Unlock()
		return nil, nil
	}

	best := t.buffer[0]
	for _, sig := range t.buffer[1:] {
		if sig.QualityScore > best.QualityScore {
			best = sig
		}
	}

	// The released signal is this tier's own: fresh id, tier stamped.
	released := *best
	released.ID = uuid.NewString()
	released.Tier = t.def.ID

	t.releasing = true
	t.mu.Unlock()

	// Persist and publish outside the lock; other tiers keep ticking.
	err := s.repo.Save(ctx, &released)
	if err == nil && s.onRelease != nil {
		err = s.onRelease(ctx, &released)
	}

	t.mu.Lock()
	t.releasing = false
	if err != nil {
		// Keep the buffer; the next tick retries.
		t.mu.Unlock()
		return nil, err
	}
	// Reschedule from the release time, not the scheduled time, so slow
	// ticks cannot accumulate drift into a burst.
	t.lastRelease = now
	t.releasedToday++
	t.buffer = nil
	metrics.TierBufferSize.WithLabelValues(t.def.ID).Set(0)
	t.mu.Unlock()

	return &released, nil
}

// Status reports each tier's current schedule for the API surface.
type Status struct {
	Tier          string    `json:"tier"`
	Interval      string    `json:"interval"`
	LastRelease   time.Time `json:"last_release"`
	NextRelease   time.Time `json:"next_release"`
	Buffered      int       `json:"buffered"`
	ReleasedToday int       `json:"released_today"`
	DailyQuota    int       `json:"daily_quota"`
}

// Statuses snapshots every tier.
func (s *Scheduler) Statuses() []Status {
	out := make([]Status, 0, len(s.tiers))
	for _, t := range s.tiers {
		t.mu.Lock()
		out = append(out, Status{
			Tier:          t.def.ID,
			Interval:      t.def.Interval.Std().String(),
			LastRelease:   t.lastRelease,
			NextRelease:   t.lastRelease.Add(t.def.Interval.Std()),
			Buffered:      len(t.buffer),
			ReleasedToday: t.releasedToday,
			DailyQuota:    t.def.DailyQuota,
		})
		t.mu.Unlock()
	}
	return out
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 0, 0, 0, 0, time.UTC)
}
