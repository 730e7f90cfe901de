package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ignitex/engine/internal/contracts"
)

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "List signals from the store",
}

var (
	signalsTier  string
	signalsLimit int

	signalsActiveCmd = &cobra.Command{
		Use:   "active",
		Short: "List signals currently being tracked",
		RunE:  runSignalsActive,
	}

	signalsHistoryCmd = &cobra.Command{
		Use:   "history",
		Short: "List recent signals including closed ones",
		RunE:  runSignalsHistory,
	}
)

func init() {
	rootCmd.AddCommand(signalsCmd)
	signalsCmd.AddCommand(signalsActiveCmd)
	signalsCmd.AddCommand(signalsHistoryCmd)

	signalsCmd.PersistentFlags().StringVar(&signalsTier, "tier", "", "filter by tier id")
	signalsHistoryCmd.Flags().IntVar(&signalsLimit, "limit", 20, "max rows")
}

func runSignalsActive(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	signals, err := app.store.Signals.LoadActive(ctx, signalsTier)
	if err != nil {
		return fmt.Errorf("load active signals: %w", err)
	}

	printSignals(signals)
	return nil
}

func runSignalsHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	signals, err := app.store.Signals.History(ctx, signalsTier, signalsLimit)
	if err != nil {
		return fmt.Errorf("load signal history: %w", err)
	}

	printSignals(signals)
	return nil
}

func printSignals(signals []contracts.Signal) {
	if len(signals) == 0 {
		fmt.Println("No signals.")
		return
	}

	fmt.Printf("%-36s %-10s %-5s %-8s %10s %10s %8s %s\n",
		"ID", "SYMBOL", "SIDE", "TIER", "ENTRY", "STOP", "CONF", "STATE")
	for _, s := range signals {
		state := string(s.State)
		if s.State.Terminal() {
			state = fmt.Sprintf("%s (%.2f%%)", s.State, s.ReturnPct)
		}
		fmt.Printf("%-36s %-10s %-5s %-8s %10.4f %10.4f %7.1f%% %s\n",
			s.ID, s.Symbol, s.Direction, s.Tier, s.Entry, s.StopLoss, s.Confidence, state)
	}
	fmt.Printf("\n%d signals\n", len(signals))
}
