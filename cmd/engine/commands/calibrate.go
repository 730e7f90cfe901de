package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ignitex/engine/internal/learning"
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Print the calibration table and force a persist",
	RunE:  runCalibrate,
}

func init() {
	rootCmd.AddCommand(calibrateCmd)
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	loop := learning.New(app.store.Performance, app.store.Calibration, app.strategy, app.log)
	if err := loop.Start(ctx); err != nil {
		return fmt.Errorf("load calibration: %w", err)
	}

	table := loop.Table()
	fmt.Println("Confidence calibration (observed win rate per decile):")
	for i, bucket := range table.Buckets {
		lo, hi := i*10, (i+1)*10
		if bucket.Total <= 0 {
			fmt.Printf("  %3d-%3d%%  (no samples)\n", lo, hi)
			continue
		}
		fmt.Printf("  %3d-%3d%%  %.1f%% over %.1f weighted samples\n",
			lo, hi, bucket.WinRate(i)*100, bucket.Total)
	}
	if !table.UpdatedAt.IsZero() {
		fmt.Printf("\nLast updated %s\n", table.UpdatedAt.Format("2006-01-02 15:04:05"))
	}

	if err := loop.Recalibrate(ctx); err != nil {
		return fmt.Errorf("persist calibration: %w", err)
	}
	fmt.Println("Calibration table persisted.")
	return nil
}
