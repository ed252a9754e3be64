package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shelfbalance/stock-rebalancer-go/internal/seed"
	"github.com/shelfbalance/stock-rebalancer-go/rebalance"
)

func newSeedCommand(a *app) *cobra.Command {
	var (
		flush    bool
		scenario string
		rngSeed  int64
	)

	cmd := &cobra.Command{
		Use:   "seed <fixture.json>",
		Short: "Load a stock fixture into the database",
		Long: "Loads a JSON stock fixture, optionally reshapes it into a demo scenario,\n" +
			"and writes it to the stock table. Refuses to overwrite existing stock\n" +
			"unless --flush is given. The table is created when missing.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			libraries, loadErr := seed.LoadFixture(args[0])
			if loadErr != nil {
				return loadErr
			}

			libraries, scenarioErr := seed.ApplyScenario(libraries, scenario, rngSeed)
			if scenarioErr != nil {
				return scenarioErr
			}

			store, closeStore, openErr := a.openStore(ctx)
			if openErr != nil {
				return openErr
			}
			defer closeStore()

			if schemaErr := store.EnsureSchema(ctx); schemaErr != nil {
				return schemaErr
			}

			existing, snapshotErr := store.LoadSnapshot(ctx)
			if snapshotErr != nil {
				return snapshotErr
			}

			if existing.Size() > 0 && !flush {
				return fmt.Errorf("stock table already holds %d libraries, use --flush to replace them",
					existing.Size())
			}

			if replaceErr := store.ReplaceAll(ctx, libraries); replaceErr != nil {
				return replaceErr
			}

			seeded, buildErr := rebalance.BuildSnapshot(libraries...)
			if buildErr != nil {
				return buildErr
			}

			if a.jsonOutput {
				doc, renderErr := seeded.RenderJSON()
				if renderErr != nil {
					return renderErr
				}

				fmt.Fprintln(out, doc)

				return nil
			}

			printHeading(out, "seeded %d libraries (scenario %s)", seeded.Size(), scenario)
			fmt.Fprint(out, seeded.Render())

			return nil
		},
	}

	cmd.Flags().BoolVar(&flush, "flush", false,
		"replace existing stock instead of refusing to overwrite it")
	cmd.Flags().StringVar(&scenario, "scenario", seed.ScenarioAsIs,
		"reshape the fixture: as-is, all-to-first, or random")
	cmd.Flags().Int64Var(&rngSeed, "rng-seed", 1,
		"seed for the random scenario, same seed gives the same distribution")

	return cmd
}
