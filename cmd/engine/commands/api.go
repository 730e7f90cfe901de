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
	"github.com/ignitex/engine/internal/contracts"
	"github.com/ignitex/engine/internal/engine"
	"github.com/ignitex/engine/internal/tiers"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Serve the HTTP API without the evaluation loop",
	Long: `Starts only the read API against the shared store. Useful as a
separate deployment in front of an engine process driven elsewhere.

Endpoints:
  GET  /health
  GET  /api/signals/active
  GET  /api/signals/history
  GET  /api/rejections
  GET  /api/status
  GET  /api/performance
  GET  /metrics`,
	RunE: runAPI,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)
	apiCmd.Flags().StringVar(&apiPort, "port", "", "listen port (overrides PORT)")
}

// noMonitors satisfies the status handler in a process with no tracker.
type noMonitors struct{}

func (noMonitors) ActiveCount() int { return 0 }

func runAPI(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	if apiPort != "" {
		app.cfg.Port = apiPort
	}

	log, st := app.log, app.store

	// The status snapshot still shows tier definitions, just with empty
	// runtime state.
	tierSched := tiers.New(app.strategy, st.Signals, func(context.Context, *contracts.Signal) error {
		return nil
	}, log)
	eng := engine.New(app.strategy, engine.Deps{Tiers: tierSched}, time.Second, log)

	router := api.NewRouter(api.Handlers{
		Signals:     handlers.NewSignalHandler(st.Signals, log),
		Rejections:  handlers.NewRejectionHandler(st.Rejections, log),
		Status:      handlers.NewStatusHandler(eng, tierSched, noMonitors{}, nil, log),
		Performance: handlers.NewPerformanceHandler(st.Performance, nil, log),
	}, log)
	server := api.New(app.cfg, log, router)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	fmt.Printf("API listening on :%s. Press Ctrl+C to stop.\n", app.cfg.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}
