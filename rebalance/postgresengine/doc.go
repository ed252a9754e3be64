// Package postgresengine provides the PostgreSQL implementation of the
// library stock store consumed by the rebalance planner and executor.
//
// This package persists one row per library (id, current_count, capacity),
// supporting multiple database adapters (pgx, sql.DB, sqlx) with atomic
// conditional writes for optimistic concurrency control.
//
// Key features:
//   - Multiple database adapter support (PGX, SQL, SQLX)
//   - Atomic pairwise transfer application: source decrement and destination
//     increment land in a single conditional statement, so no intermediate
//     state is ever visible and concurrent writers cannot violate the
//     capacity invariant
//   - Live-state re-validation with classified failures (missing library,
//     insufficient stock, insufficient slack, concurrency conflict)
//   - Clamped bulk intake with overflow reporting
//   - Configurable table name and pluggable logging/metrics/tracing
//
// Usage example:
//
//	db, _ := pgxpool.New(context.Background(), dsn)
//	store, _ := postgresengine.NewStoreFromPGXPool(db)
//
//	snapshot, _ := store.LoadSnapshot(ctx)
//	plan := rebalance.BuildPlan(snapshot)
//	report, _ := rebalance.Execute(ctx, plan, store)
package postgresengine
