package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shelfbalance/stock-rebalancer-go/rebalance"
)

func newRebalanceCommand(a *app) *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "rebalance",
		Short: "Compute a redistribution plan and optionally apply it",
		Long: "Loads the current stock of every library branch, computes the greedy\n" +
			"redistribution plan towards proportional fill, and prints it. The plan is\n" +
			"a dry run unless --apply is given, in which case every transfer is applied\n" +
			"against the live stock with per-transfer re-validation.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			store, closeStore, openErr := a.openStore(ctx)
			if openErr != nil {
				return openErr
			}
			defer closeStore()

			snapshot, loadErr := store.LoadSnapshot(ctx)
			if loadErr != nil {
				return loadErr
			}

			plan := rebalance.BuildPlan(snapshot)

			if !apply {
				if a.jsonOutput {
					doc, renderErr := plan.RenderJSON()
					if renderErr != nil {
						return renderErr
					}

					fmt.Fprintln(out, doc)

					return nil
				}

				printHeading(out, "redistribution plan %s (dry run)", plan.ID())
				fmt.Fprint(out, plan.Render())

				return nil
			}

			report, execErr := rebalance.Execute(ctx, plan, store, rebalance.WithLogger(a.logger))

			// the partial report is still worth printing when execution
			// was interrupted or aborted
			if a.jsonOutput {
				doc, renderErr := report.RenderJSON()
				if renderErr == nil {
					fmt.Fprintln(out, doc)
				}
			} else {
				printHeading(out, "redistribution plan %s (applied)", plan.ID())
				fmt.Fprint(out, report.Render())
			}

			if execErr != nil {
				return execErr
			}

			if !a.jsonOutput {
				if report.SkippedCount() > 0 {
					printWarning(out, "%d transfers were skipped, run rebalance again to converge further",
						report.SkippedCount())
				} else {
					printSuccess(out, "all transfers applied")
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false,
		"apply the plan against the live stock instead of a dry run")

	return cmd
}
