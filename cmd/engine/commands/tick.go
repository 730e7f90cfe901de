package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

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
	"github.com/ignitex/engine/internal/quality"
	"github.com/ignitex/engine/internal/regime"
	"github.com/ignitex/engine/internal/tiers"
	"github.com/ignitex/engine/pkg/httputil"
	"github.com/ignitex/engine/pkg/redis"
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one evaluation cycle plus a tier tick, then exit",
	Long: `One-shot pass for deployments driven by an external cron:
evaluates the universe, buffers candidates, ticks every tier once (releasing
whatever is due) and exits. Outcome tracking is left to the long-running
process; released signals are resumed from the store there.`,
	RunE: runTick,
}

func init() {
	rootCmd.AddCommand(tickCmd)
}

func runTick(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	cfg, strategy, log, st := app.cfg, app.strategy, app.log, app.store

	httpClient := httputil.New(log, cfg.MarketData.RequestTimeout)
	cache := redis.NewCache(app.redis, "ignitex")
	gateway := marketdata.NewClient(cfg, log, httpClient, cache)
	enricher := enrich.New(enrich.NewSentimentClient(cfg.Sentiment, httpClient, cache, log), log)

	loop := learning.New(st.Performance, st.Calibration, strategy, log)
	if err := loop.Start(ctx); err != nil {
		return fmt.Errorf("start learning loop: %w", err)
	}

	publisher := feed.NewPublisher(app.redis, feed.NewHub(log), log)

	released := 0
	tierSched := tiers.New(strategy, st.Signals, func(rctx context.Context, sig *contracts.Signal) error {
		released++
		return publisher.PublishSignal(rctx, sig)
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

	now := time.Now()
	if err := tierSched.Resume(ctx, now); err != nil {
		return fmt.Errorf("resume tier scheduler: %w", err)
	}

	stats := eng.EvaluateAll(ctx)
	tierSched.Tick(ctx, time.Now())

	fmt.Printf("Tick done in %.1fs: %d candidates, %d rejected, %d skipped, %d released\n",
		stats.Duration.Seconds(), stats.Candidates, stats.Rejected, stats.Skipped, released)
	return nil
}
