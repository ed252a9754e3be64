package rebalance

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Snapshot is an immutable point-in-time view of all libraries' stock levels
// and capacities. Libraries are held sorted by ascending identifier, which
// gives planning a stable iteration order and full determinism.
type Snapshot struct {
	libraries     []Library
	totalBooks    int
	totalCapacity int
}

// BuildSnapshot creates a validated Snapshot from the given library records.
// Every record must satisfy the capacity invariant and identifiers must be
// unique; violations fail with ErrInvalidCapacity, ErrEmptyLibraryID or
// ErrDuplicateLibraryID before any planning can happen.
func BuildSnapshot(libraries ...Library) (Snapshot, error) {
	libs := make([]Library, len(libraries))
	copy(libs, libraries)

	sort.Slice(libs, func(i, j int) bool {
		return libs[i].ID < libs[j].ID
	})

	totalBooks := 0
	totalCapacity := 0

	for i, lib := range libs {
		if validateErr := lib.validate(); validateErr != nil {
			return Snapshot{}, validateErr
		}

		if i > 0 && libs[i-1].ID == lib.ID {
			return Snapshot{}, errors.Join(
				ErrDuplicateLibraryID,
				fmt.Errorf("library id %q appears more than once", lib.ID))
		}

		totalBooks += lib.CurrentCount
		totalCapacity += lib.Capacity
	}

	return Snapshot{
		libraries:     libs,
		totalBooks:    totalBooks,
		totalCapacity: totalCapacity,
	}, nil
}

// Libraries returns the snapshot's library records in ascending ID order.
// The returned slice is a copy; mutating it does not affect the snapshot.
func (s Snapshot) Libraries() []Library {
	libs := make([]Library, len(s.libraries))
	copy(libs, s.libraries)

	return libs
}

// Library returns the record for the given identifier and whether it exists.
func (s Snapshot) Library(id string) (Library, bool) {
	idx := sort.Search(len(s.libraries), func(i int) bool {
		return s.libraries[i].ID >= id
	})

	if idx < len(s.libraries) && s.libraries[idx].ID == id {
		return s.libraries[idx], true
	}

	return Library{}, false
}

// Size returns the number of libraries in the snapshot.
func (s Snapshot) Size() int {
	return len(s.libraries)
}

// TotalBooks returns the book count summed across all libraries.
// Rebalancing conserves this total: no plan creates or destroys books.
func (s Snapshot) TotalBooks() int {
	return s.totalBooks
}

// TotalCapacity returns the capacity summed across all libraries.
func (s Snapshot) TotalCapacity() int {
	return s.totalCapacity
}

// TargetOccupancy returns the proportional-fill target for the given library:
// round(totalBooks * capacity / totalCapacity), clamped to [0, capacity].
// Rounding is arithmetic (round half away from zero via math.Round).
// The second return value reports whether the library exists.
func (s Snapshot) TargetOccupancy(id string) (int, bool) {
	lib, found := s.Library(id)
	if !found {
		return 0, false
	}

	return s.targetFor(lib), true
}

// targetFor computes the proportional-fill target for a library that is known
// to be part of the snapshot.
func (s Snapshot) targetFor(lib Library) int {
	if s.totalCapacity == 0 {
		return 0
	}

	target := int(math.Round(float64(s.totalBooks) * float64(lib.Capacity) / float64(s.totalCapacity)))

	if target < 0 {
		target = 0
	}

	if target > lib.Capacity {
		target = lib.Capacity
	}

	return target
}

// withAdjustedCount returns a copy of the snapshot with one library's current
// count replaced. The caller guarantees the new count respects the invariant.
func (s Snapshot) withAdjustedCount(id string, newCount int) Snapshot {
	libs := s.Libraries()
	totalBooks := 0

	for i := range libs {
		if libs[i].ID == id {
			libs[i].CurrentCount = newCount
		}
		totalBooks += libs[i].CurrentCount
	}

	return Snapshot{
		libraries:     libs,
		totalBooks:    totalBooks,
		totalCapacity: s.totalCapacity,
	}
}
