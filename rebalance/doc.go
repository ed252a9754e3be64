// Package rebalance implements proportional-fill redistribution of book stock
// across libraries with bounded capacity.
//
// The package is split along a pure/effectful boundary:
//   - Snapshot is an immutable point-in-time capacity model of all libraries.
//   - BuildPlan is a pure, deterministic function from a Snapshot to a Plan,
//     an ordered list of capacity-safe transfers.
//   - Execute applies a Plan against a live TransferStore one transfer at a
//     time, producing an ExecutionReport that accounts for every transfer.
//   - SimulateIntake derives a new Snapshot from a bulk donation into one
//     library, clamping to capacity and reporting the overflow.
//
// Usage example:
//
//	snapshot, _ := rebalance.BuildSnapshot(
//		rebalance.Library{ID: "central", CurrentCount: 100, Capacity: 100},
//		rebalance.Library{ID: "east", CurrentCount: 0, Capacity: 100},
//	)
//	plan := rebalance.BuildPlan(snapshot)
//	fmt.Print(plan.Render())            // dry-run
//	report, err := rebalance.Execute(ctx, plan, store)
//	fmt.Print(report.Render())          // apply
//
// Planning never mutates anything; all storage effects are confined to the
// TransferStore implementation passed to Execute.
package rebalance
