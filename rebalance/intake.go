package rebalance

import (
	"errors"
	"fmt"
)

// SimulateIntake derives a new Snapshot from a bulk donation of quantity
// books into the given library, e.g. to exercise the planner under stress.
//
// Intake that would exceed the library's capacity is clamped: the library is
// filled to capacity and the excess is returned as overflow rather than
// silently dropped. The input snapshot is never mutated.
//
// It fails with ErrInvalidIntakeQuantity when quantity is not positive and
// with ErrLibraryNotFound when the library does not exist in the snapshot.
func SimulateIntake(snapshot Snapshot, libraryID string, quantity int) (Snapshot, int, error) {
	if quantity <= 0 {
		return Snapshot{}, 0, errors.Join(
			ErrInvalidIntakeQuantity,
			fmt.Errorf("quantity %d supplied", quantity))
	}

	lib, found := snapshot.Library(libraryID)
	if !found {
		return Snapshot{}, 0, errors.Join(
			ErrLibraryNotFound,
			fmt.Errorf("library %q is not part of the snapshot", libraryID))
	}

	accepted := quantity
	overflow := 0

	if lib.CurrentCount+quantity > lib.Capacity {
		accepted = lib.Capacity - lib.CurrentCount
		overflow = quantity - accepted
	}

	return snapshot.withAdjustedCount(libraryID, lib.CurrentCount+accepted), overflow, nil
}
