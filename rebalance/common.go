package rebalance

import (
	"errors"
)

var (
	// ErrEmptyLibraryID is returned when a library is built with an empty identifier.
	ErrEmptyLibraryID = errors.New("empty library id supplied")

	// ErrInvalidCapacity is returned when a library record violates the capacity
	// invariant: 0 <= current count <= capacity, capacity > 0.
	ErrInvalidCapacity = errors.New("invalid library capacity state")

	// ErrDuplicateLibraryID is returned when a snapshot is built from records
	// sharing the same library identifier.
	ErrDuplicateLibraryID = errors.New("duplicate library id in snapshot")

	// ErrInvalidTransfer is returned when a transfer is built with a non-positive
	// quantity, an empty endpoint, or identical source and destination.
	ErrInvalidTransfer = errors.New("invalid transfer")

	// ErrLibraryNotFound is returned when an operation references a library
	// identifier that does not exist (anymore) in the snapshot or the store.
	ErrLibraryNotFound = errors.New("library not found")

	// ErrSourceInsufficient is returned by a store when the live source library
	// no longer holds enough books to cover the transfer quantity.
	ErrSourceInsufficient = errors.New("source library has insufficient books")

	// ErrDestinationFull is returned by a store when the live destination library
	// no longer has enough slack to accept the transfer quantity.
	ErrDestinationFull = errors.New("destination library has insufficient slack")

	// ErrTransferConflict is returned by a store when a transfer failed its
	// conditional write but the live rows would permit it, i.e. a concurrent
	// writer raced the re-validation. Conflicts are retryable.
	ErrTransferConflict = errors.New("concurrency conflict, transfer was not applied")

	// ErrInvalidIntakeQuantity is returned when an intake simulation is requested
	// with a non-positive quantity.
	ErrInvalidIntakeQuantity = errors.New("intake quantity must be positive")

	// ErrNilTransferStore is returned when Execute is called without a store.
	ErrNilTransferStore = errors.New("nil transfer store supplied")

	// ErrExecutingPlanFailed wraps unexpected store failures that abort plan
	// execution; the partial report is still returned alongside it.
	ErrExecutingPlanFailed = errors.New("executing plan failed")
)

// Storage sentinels shared by the storage engines.
var (
	// ErrNilDatabaseConnection is returned when a store is constructed without a database handle.
	ErrNilDatabaseConnection = errors.New("nil database connection supplied")

	// ErrEmptyTableNameSupplied is returned when a store is configured with an empty table name.
	ErrEmptyTableNameSupplied = errors.New("empty table name supplied")

	// ErrBuildingQueryFailed wraps SQL builder failures.
	ErrBuildingQueryFailed = errors.New("building query failed")

	// ErrQueryingLibrariesFailed wraps database read failures.
	ErrQueryingLibrariesFailed = errors.New("querying libraries failed")

	// ErrScanningDBRowFailed wraps row scan failures.
	ErrScanningDBRowFailed = errors.New("scanning database row failed")

	// ErrApplyingTransferFailed wraps database write failures during transfer application.
	ErrApplyingTransferFailed = errors.New("applying transfer failed")

	// ErrGettingRowsAffectedFailed wraps failures to read the affected row count.
	ErrGettingRowsAffectedFailed = errors.New("getting rows affected count failed")
)
