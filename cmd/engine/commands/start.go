package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ignitex/engine/internal/api"
	"github.com/ignitex/engine/internal/api/handlers"
	"github.com/ignitex/engine/internal/assembler"
	"github.com/ignitex/engine/internal/consensus"
	"github.com/ignitex/engine/internal/contracts"
	"github.com/ignitex/engine/internal/detectors"
	"github.com/ignitex/engine/internal/engine"
	"github.com/ignitex/engine/internal/enrich"
	"github.com/ignitex/engine/internal/feed"
	"github.com/ignitex/engine/internal/gate"
	"github.com/ignitex/engine/internal/learning"
	"github.com/ignitex/engine/internal/marketdata"
	"github.com/ignitex/engine/internal/metrics"
	"github.com/ignitex/engine/internal/quality"
	"github.com/ignitex/engine/internal/regime"
	"github.com/ignitex/engine/internal/scheduler"
	"github.com/ignitex/engine/internal/scheduler/jobs"
	"github.com/ignitex/engine/internal/tiers"
	"github.com/ignitex/engine/internal/tracker"
	"github.com/ignitex/engine/pkg/httputil"
	"github.com/ignitex/engine/pkg/redis"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the full engine: evaluation loop, tier releases, tracking, API",
	Long: `Starts everything in one process:

- cron-driven evaluation cycle over the symbol universe
- tier scheduler ticks and releases
- outcome tracker (resumes ACTIVE signals from the store)
- learning feedback loop
- HTTP API with websocket feed and metrics

Stop with Ctrl+C; active signals are picked up again on the next start.`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	cfg, strategy, log, st := app.cfg, app.strategy, app.log, app.store

	// Data plane.
	httpClient := httputil.New(log, cfg.MarketData.RequestTimeout)
	cache := redis.NewCache(app.redis, "ignitex")
	gateway := marketdata.NewClient(cfg, log, httpClient, cache)

	sentiment := enrich.NewSentimentClient(cfg.Sentiment, httpClient, cache, log)
	enricher := enrich.New(sentiment, log)

	// Feed and learning.
	hub := feed.NewHub(log)
	publisher := feed.NewPublisher(app.redis, hub, log)

	loop := learning.New(st.Performance, st.Calibration, strategy, log)
	if err := loop.Start(ctx); err != nil {
		return fmt.Errorf("start learning loop: %w", err)
	}

	trk := tracker.New(gateway, st.Signals, loop, publisher, strategy, cfg.Engine.PollInterval, log)

	// Releases publish first, then enter monitoring.
	tierSched := tiers.New(strategy, st.Signals, func(rctx context.Context, sig *contracts.Signal) error {
		metrics.SignalsReleasedTotal.WithLabelValues(sig.Tier).Inc()
		if err := publisher.PublishSignal(rctx, sig); err != nil {
			log.WithError(err).WithField("signal_id", sig.ID).Error("Signal publish failed")
		}
		trk.Track(ctx, sig)
		return nil
	}, log)

	eng := engine.New(strategy, engine.Deps{
		Snapshots:  gateway,
		Classifier: regime.New(),
		Detectors:  detectors.Default(log),
		Enricher:   enricher,
		Consensus:  consensus.New(strategy, st.Performance, log),
		Gate:       gate.New(strategy, log),
		Quality:    quality.New(strategy, st.Performance, loop, log),
		Assembler:  assembler.New(strategy, log),
		Tiers:      tierSched,
		Rejections: st.Rejections,
	}, 2*cfg.MarketData.RequestTimeout, log)

	// Restart reconstruction before anything releases or tracks.
	now := time.Now()
	if err := tierSched.Resume(ctx, now); err != nil {
		return fmt.Errorf("resume tier scheduler: %w", err)
	}
	if cfg.Engine.ResumeOnStart {
		if err := trk.Resume(ctx, now); err != nil {
			return fmt.Errorf("resume tracker: %w", err)
		}
	}

	// Cron.
	cron := scheduler.New(log)
	for _, job := range []scheduler.Job{
		jobs.NewEvaluateJob(eng, cfg.Engine.EvalSchedule, log),
		jobs.NewTierTickJob(tierSched, cfg.Engine.TierSchedule),
		jobs.NewRejectionPruneJob(st.Rejections, log),
		jobs.NewCalibrationSnapshotJob(loop),
	} {
		if err := cron.AddJob(job); err != nil {
			return fmt.Errorf("register job %s: %w", job.Name(), err)
		}
	}
	cron.Start(ctx)

	// API.
	router := api.NewRouter(api.Handlers{
		Signals:     handlers.NewSignalHandler(st.Signals, log),
		Rejections:  handlers.NewRejectionHandler(st.Rejections, log),
		Status:      handlers.NewStatusHandler(eng, tierSched, trk, cron, log),
		Performance: handlers.NewPerformanceHandler(st.Performance, loop, log),
		Hub:         hub,
	}, log)
	server := api.New(cfg, log, router)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	fmt.Println("Engine running. Press Ctrl+C to stop.")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("Shutdown requested")
	case err := <-serverErr:
		if err != nil {
			log.WithError(err).Error("API server failed")
		}
	}

	// Orderly teardown: stop producing, stop monitors, close the feed,
	// drain HTTP. ACTIVE rows resume on the next start.
	cron.Stop()
	cancel()
	trk.Stop()
	hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("API shutdown incomplete")
	}

	log.Info("Engine stopped")
	return nil
}
