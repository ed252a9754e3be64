package rebalance

import (
	"errors"
	"fmt"
)

// Library describes one library's stock level and capacity bound at a point
// in time. It is pure data; the invariant 0 <= CurrentCount <= Capacity must
// hold before and after every committed transfer.
type Library struct {
	ID           string
	CurrentCount int
	Capacity     int
}

// BuildLibrary creates a validated Library record.
// It fails with ErrEmptyLibraryID or ErrInvalidCapacity (joined with a
// detailed cause) when the record violates the capacity invariant.
func BuildLibrary(id string, currentCount int, capacity int) (Library, error) {
	if id == "" {
		return Library{}, ErrEmptyLibraryID
	}

	if currentCount < 0 {
		return Library{}, errors.Join(
			ErrInvalidCapacity,
			fmt.Errorf("library %q: current count %d is negative", id, currentCount))
	}

	if capacity <= 0 {
		return Library{}, errors.Join(
			ErrInvalidCapacity,
			fmt.Errorf("library %q: capacity %d is not positive", id, capacity))
	}

	if currentCount > capacity {
		return Library{}, errors.Join(
			ErrInvalidCapacity,
			fmt.Errorf("library %q: current count %d exceeds capacity %d", id, currentCount, capacity))
	}

	return Library{ID: id, CurrentCount: currentCount, Capacity: capacity}, nil
}

// Slack returns the free space left in the library: capacity minus current count.
func (l Library) Slack() int {
	return l.Capacity - l.CurrentCount
}

// validate re-checks the capacity invariant; callers may construct Library
// values directly, so BuildSnapshot validates every record it is given.
func (l Library) validate() error {
	_, err := BuildLibrary(l.ID, l.CurrentCount, l.Capacity)
	return err
}
