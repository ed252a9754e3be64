// Package cli implements the shelfctl command tree: planning and applying
// redistribution runs, simulating and committing intake, and seeding stock
// fixtures.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/shelfbalance/stock-rebalancer-go/internal/config"
	"github.com/shelfbalance/stock-rebalancer-go/rebalance/oteladapters"
	"github.com/shelfbalance/stock-rebalancer-go/rebalance/postgresengine"
)

const otelInstrumentationName = "shelfctl"

// app carries the state shared by all subcommands, initialized once in the
// root command's PersistentPreRunE.
type app struct {
	cfg        config.Config
	logger     *slog.Logger
	jsonOutput bool
}

// NewRootCommand builds the shelfctl command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "shelfctl",
		Short:         "Balance book stock across library branches",
		Long:          "shelfctl plans and applies book redistribution across library branches,\nsimulates bulk intake, and seeds stock fixtures for demos and testing.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, cfgErr := config.Load()
			if cfgErr != nil {
				return cfgErr
			}

			logger, loggerErr := cfg.NewLogger()
			if loggerErr != nil {
				return loggerErr
			}

			a.cfg = cfg
			a.logger = logger

			return nil
		},
	}

	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false,
		"emit machine-readable JSON instead of text")

	root.AddCommand(
		newRebalanceCommand(a),
		newIntakeCommand(a),
		newSeedCommand(a),
	)

	return root
}

// Execute runs the shelfctl command tree and returns the process exit code.
// SIGINT/SIGTERM cancel the context, so a running plan execution stops after
// the transfer in flight and still prints its partial report.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand()

	if err := root.ExecuteContext(ctx); err != nil {
		printError(os.Stderr, err)
		return 1
	}

	return 0
}

// openStore opens the configured database connection wrapped in a stock
// store, wiring observability according to the config.
func (a *app) openStore(ctx context.Context) (postgresengine.Store, func(), error) {
	options := []postgresengine.Option{
		postgresengine.WithLogger(a.logger),
	}

	if a.cfg.TracingOn {
		options = append(options,
			postgresengine.WithContextualLogger(oteladapters.NewSlogBridgeLogger(otelInstrumentationName)),
			postgresengine.WithMetrics(oteladapters.NewMetricsCollector(otel.Meter(otelInstrumentationName))),
			postgresengine.WithTracing(oteladapters.NewTracingCollector(otel.Tracer(otelInstrumentationName))),
		)
	}

	return a.cfg.OpenStore(ctx, options...)
}
