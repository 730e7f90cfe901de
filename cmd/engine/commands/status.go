package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ignitex/engine/internal/strategyconfig"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show active signal counts and detector performance from the store",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	fmt.Printf("Strategy: %s\n", strategyBanner(app.strategy, app.hash))
	fmt.Println()

	fmt.Println("Active signals per tier:")
	for _, tier := range app.strategy.Tiers {
		signals, err := app.store.Signals.LoadActive(ctx, tier.ID)
		if err != nil {
			return fmt.Errorf("load active %s: %w", tier.ID, err)
		}
		last, err := app.store.Signals.LastReleaseTime(ctx, tier.ID)
		if err != nil {
			return fmt.Errorf("last release %s: %w", tier.ID, err)
		}
		lastStr := "never"
		if last != nil {
			lastStr = last.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("  %-10s %3d active, last release %s\n", tier.ID, len(signals), lastStr)
	}
	fmt.Println()

	records, err := app.store.Performance.All(ctx)
	if err != nil {
		return fmt.Errorf("load performance: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No detector performance recorded yet.")
		return nil
	}

	fmt.Println("Detector performance:")
	for _, rec := range records {
		fmt.Printf("  %-16s %-18s win rate %.1f%% (%d samples)\n",
			rec.Strategy, rec.Regime, rec.WinRate()*100, rec.Samples)
	}
	return nil
}

// strategyBanner renders the strategy identity line shown by CLI commands:
// the id from the tuning file plus a short prefix of its content hash.
func strategyBanner(cfg *strategyconfig.Config, hash string) string {
	if len(hash) > 12 {
		hash = hash[:12]
	}
	return fmt.Sprintf("%s (%s)", cfg.Meta.StrategyID, hash)
}
