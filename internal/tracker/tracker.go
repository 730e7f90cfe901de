package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/ignitex/engine/internal/contracts"
	"github.com/ignitex/engine/internal/metrics"
	"github.com/ignitex/engine/internal/strategyconfig"
	"github.com/ignitex/engine/pkg/logger"
)

// Tracker runs one monitoring loop per ACTIVE signal, polling price against
// the triple barriers (targets, stop, expiry). Each signal's lifecycle is
// mutated only by its own loop; barriers exit at the barrier price, not the
// polled price, so realized returns match the published levels.
type Tracker struct {
	gateway   contracts.MarketGateway
	repo      contracts.SignalRepository
	sink      contracts.OutcomeSink
	publisher contracts.Publisher
	cfg       *strategyconfig.Config
	poll      time.Duration
	logger    *logger.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
}

func New(gateway contracts.MarketGateway, repo contracts.SignalRepository, sink contracts.OutcomeSink,
	publisher contracts.Publisher, cfg *strategyconfig.Config, poll time.Duration, log *logger.Logger) *Tracker {
	return &Tracker{
		gateway:   gateway,
		repo:      repo,
		sink:      sink,
		publisher: publisher,
		cfg:       cfg,
		poll:      poll,
		logger:    log.Component("tracker"),
		active:    map[string]context.CancelFunc{},
	}
}

// Track starts monitoring a released signal. A signal id already being
// monitored is left alone; there is never more than one writer per signal.
func (t *Tracker) Track(ctx context.Context, signal *contracts.Signal) {
	t.mu.Lock()
	if _, exists := t.active[signal.ID]; exists {
		t.mu.Unlock()
		return
	}
	monitorCtx, cancel := context.WithCancel(ctx)
	t.active[signal.ID] = cancel
	t.wg.Add(1)
	t.mu.Unlock()
	metrics.ActiveMonitors.Inc()

	sig := *signal
	go t.monitor(monitorCtx, &sig)
}

// Resume picks up every ACTIVE signal in the store after a restart. Signals
// already past expiry are force-classified on discovery; the rest resume
// monitoring against their stored expiry timestamps.
func (t *Tracker) Resume(ctx context.Context, now time.Time) error {
	signals, err := t.repo.LoadActive(ctx, "")
	if err != nil {
		return err
	}
	resumed, forced := 0, 0
	for i := range signals {
		sig := signals[i]
		if !sig.ExpiresAt.After(now) {
			t.forceTimeout(ctx, &sig, now)
			forced++
			continue
		}
		t.Track(ctx, &sig)
		resumed++
	}
	t.logger.WithFields(map[string]interface{}{
		"resumed": resumed,
		"forced":  forced,
	}).Info("Active signal monitoring reconstructed")
	return nil
}

// ActiveCount reports how many signals are currently monitored.
func (t *Tracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

// Stop cancels every monitor loop and waits for them to drain.
func (t *Tracker) Stop() {
	t.mu.Lock()
	for _, cancel := range t.active {
		cancel()
	}
	t.mu.Unlock()
	t.wg.Wait()
}

// path accumulates the extremes a signal's price visited, in signed
// favorable-direction percent.
type path struct {
	favorable float64 // best move in the signal's direction, %
	adverse   float64 // worst move against it, %, positive
	lastPrice float64
}

func (p *path) observe(sig *contracts.Signal, price float64) {
	p.lastPrice = price
	r := sig.Return(price)
	if r > p.favorable {
		p.favorable = r
	}
	if -r > p.adverse {
		p.adverse = -r
	}
}

func (t *Tracker) monitor(ctx context.Context, sig *contracts.Signal) {
	defer t.wg.Done()
	defer t.untrack(sig.ID)

	log := t.logger.WithFields(map[string]interface{}{
		"signal_id": sig.ID,
		"symbol":    sig.Symbol,
		"tier":      sig.Tier,
	})
	log.Info("Monitoring started")

	ticker := time.NewTicker(t.poll)
	defer ticker.Stop()

	expiry := time.NewTimer(time.Until(sig.ExpiresAt))
	defer expiry.Stop()

	var seen path
	seen.lastPrice = sig.Entry

	for {
		select {
		case <-ctx.Done():
			log.Info("Monitoring cancelled")
			return

		case <-expiry.C:
			t.classifyTimeout(ctx, sig, seen, time.Now())
			return

		case <-ticker.C:
			quote, err := t.gateway.GetTicker(ctx, sig.Symbol)
			if err != nil {
				// A data gap never terminates monitoring; the expiry
				// timer still bounds the loop.
				log.WithError(err).Warn("Price poll failed")
				continue
			}
			seen.observe(sig, quote.Price)

			if outcome := t.checkBarriers(sig, quote.Price); outcome != nil {
				t.finish(ctx, sig, outcome)
				return
			}
		}
	}
}

// checkBarriers returns a terminal outcome when price has crossed a target
// or the stop, nil otherwise.
func (t *Tracker) checkBarriers(sig *contracts.Signal, price float64) *contracts.Outcome {
	crossedStop := (sig.Direction == contracts.Long && price <= sig.StopLoss) ||
		(sig.Direction == contracts.Short && price >= sig.StopLoss)
	if crossedStop {
		return t.outcome(sig, contracts.StateLoss, sig.StopLoss, -1, time.Now())
	}

	// A fast move may jump several targets in one poll; attribute the
	// farthest one crossed and exit there.
	hit := -1
	for i, target := range sig.Targets {
		if (sig.Direction == contracts.Long && price >= target) ||
			(sig.Direction == contracts.Short && price <= target) {
			hit = i
		}
	}
	if hit >= 0 {
		return t.outcome(sig, contracts.StateWin, sig.Targets[hit], hit, time.Now())
	}
	return nil
}

// classifyTimeout sub-types an expiry by what the price path did: barely
// moved, moved favorably but not enough, moved against without the stop, or
// oscillated to nowhere.
func (t *Tracker) classifyTimeout(ctx context.Context, sig *contracts.Signal, seen path, now time.Time) {
	finalReturn := sig.Return(seen.lastPrice)
	band := t.cfg.Tracker.LowVolBandPct
	favorableMin := t.cfg.Tracker.FavorableMovePct

	var state contracts.SignalState
	switch {
	case seen.favorable < band && seen.adverse < band:
		state = contracts.StateTimeoutLowVol
	case finalReturn > 0 && seen.favorable >= favorableMin:
		state = contracts.StateTimeoutValid
	case finalReturn <= -band:
		state = contracts.StateTimeoutWrong
	default:
		state = contracts.StateTimeoutStagnation
	}

	t.finish(ctx, sig, t.outcome(sig, state, seen.lastPrice, -1, now))
}

// forceTimeout classifies a signal discovered already past expiry, using the
// current price when the feed answers and the entry (flat) when it does not.
func (t *Tracker) forceTimeout(ctx context.Context, sig *contracts.Signal, now time.Time) {
	var seen path
	seen.lastPrice = sig.Entry
	if ticker, err := t.gateway.GetTicker(ctx, sig.Symbol); err == nil {
		seen.observe(sig, ticker.Price)
	}
	t.logger.WithFields(map[string]interface{}{
		"signal_id": sig.ID,
		"symbol":    sig.Symbol,
	}).Warn("Signal expired while untracked, force-classifying")
	t.classifyTimeout(ctx, sig, seen, now)
}

func (t *Tracker) outcome(sig *contracts.Signal, state contracts.SignalState, exitPrice float64, targetHit int, at time.Time) *contracts.Outcome {
	return &contracts.Outcome{
		SignalID:   sig.ID,
		Symbol:     sig.Symbol,
		State:      state,
		ExitPrice:  exitPrice,
		ReturnPct:  sig.Return(exitPrice),
		TargetHit:  targetHit,
		Strategy:   sig.Strategy,
		Regime:     sig.Regime,
		Confidence: sig.Confidence,
		ClosedAt:   at,
	}
}

// finish persists the terminal state, publishes the lifecycle change and
// hands the outcome to the learning loop.
func (t *Tracker) finish(ctx context.Context, sig *contracts.Signal, outcome *contracts.Outcome) {
	log := t.logger.WithFields(map[string]interface{}{
		"signal_id": sig.ID,
		"symbol":    sig.Symbol,
		"state":     outcome.State,
		"return":    outcome.ReturnPct,
	})

	if err := t.repo.UpdateOutcome(ctx, outcome); err != nil {
		log.WithError(err).Error("Outcome persist failed")
		// Fall through: the learning loop's exactly-once guard keys on
		// the store, so skip feedback when the store did not record it.
		return
	}

	metrics.OutcomesTotal.WithLabelValues(string(outcome.State)).Inc()

	sig.State = outcome.State
	sig.ExitPrice = outcome.ExitPrice
	sig.ReturnPct = outcome.ReturnPct
	sig.TargetHit = outcome.TargetHit
	closed := outcome.ClosedAt
	sig.ClosedAt = &closed

	if t.publisher != nil {
		if err := t.publisher.PublishLifecycle(ctx, sig); err != nil {
			log.WithError(err).Warn("Lifecycle publish failed")
		}
	}
	if err := t.sink.Apply(ctx, outcome); err != nil {
		log.WithError(err).Error("Outcome feedback failed")
	}

	log.Info("Signal classified")
}

func (t *Tracker) untrack(id string) {
	t.mu.Lock()
	cancel, ok := t.active[id]
	if ok {
		cancel()
		delete(t.active, id)
	}
	t.mu.Unlock()
	if ok {
		metrics.ActiveMonitors.Dec()
	}
}
