package rebalance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfbalance/stock-rebalancer-go/rebalance"
)

func givenLibrary(t *testing.T, id string, currentCount int, capacity int) rebalance.Library {
	t.Helper()

	library, err := rebalance.BuildLibrary(id, currentCount, capacity)
	require.NoError(t, err)

	return library
}

func givenSnapshot(t *testing.T, libraries ...rebalance.Library) rebalance.Snapshot {
	t.Helper()

	snapshot, err := rebalance.BuildSnapshot(libraries...)
	require.NoError(t, err)

	return snapshot
}

func Test_BuildSnapshot_SortsLibrariesByID(t *testing.T) {
	// arrange
	libraries := []rebalance.Library{
		givenLibrary(t, "west", 10, 50),
		givenLibrary(t, "central", 30, 100),
		givenLibrary(t, "east", 20, 80),
	}

	// act
	snapshot, err := rebalance.BuildSnapshot(libraries...)

	// assert
	assert.NoError(t, err)

	sorted := snapshot.Libraries()
	require.Len(t, sorted, 3)
	assert.Equal(t, "central", sorted[0].ID)
	assert.Equal(t, "east", sorted[1].ID)
	assert.Equal(t, "west", sorted[2].ID)
}

func Test_BuildSnapshot_ComputesTotals(t *testing.T) {
	snapshot := givenSnapshot(t,
		givenLibrary(t, "a", 10, 50),
		givenLibrary(t, "b", 20, 70),
	)

	assert.Equal(t, 2, snapshot.Size())
	assert.Equal(t, 30, snapshot.TotalBooks())
	assert.Equal(t, 120, snapshot.TotalCapacity())
}

func Test_BuildSnapshot_Success_WhenEmpty(t *testing.T) {
	snapshot, err := rebalance.BuildSnapshot()

	assert.NoError(t, err)
	assert.Equal(t, 0, snapshot.Size())
	assert.Equal(t, 0, snapshot.TotalBooks())
}

func Test_BuildSnapshot_Fails_WhenDuplicateID(t *testing.T) {
	_, err := rebalance.BuildSnapshot(
		givenLibrary(t, "central", 10, 50),
		givenLibrary(t, "central", 20, 70),
	)

	assert.ErrorIs(t, err, rebalance.ErrDuplicateLibraryID)
}

func Test_BuildSnapshot_Fails_WhenRecordViolatesInvariant(t *testing.T) {
	// Library values can be constructed directly, bypassing BuildLibrary
	invalid := rebalance.Library{ID: "central", CurrentCount: 20, Capacity: 10}

	_, err := rebalance.BuildSnapshot(invalid)

	assert.ErrorIs(t, err, rebalance.ErrInvalidCapacity)
}

func Test_Snapshot_Library_FindsExistingAndRejectsUnknown(t *testing.T) {
	snapshot := givenSnapshot(t,
		givenLibrary(t, "a", 10, 50),
		givenLibrary(t, "b", 20, 70),
		givenLibrary(t, "c", 30, 90),
	)

	found, ok := snapshot.Library("b")
	assert.True(t, ok)
	assert.Equal(t, 20, found.CurrentCount)

	_, ok = snapshot.Library("nope")
	assert.False(t, ok)
}

func Test_Snapshot_Libraries_ReturnsACopy(t *testing.T) {
	snapshot := givenSnapshot(t, givenLibrary(t, "a", 10, 50))

	libs := snapshot.Libraries()
	libs[0].CurrentCount = 999

	again, _ := snapshot.Library("a")
	assert.Equal(t, 10, again.CurrentCount)
}

func Test_Snapshot_TargetOccupancy_ProportionalToCapacity(t *testing.T) {
	// 25 books over capacities 10/20/30: shares are 4.17, 8.33, 12.5
	snapshot := givenSnapshot(t,
		givenLibrary(t, "small", 10, 10),
		givenLibrary(t, "medium", 15, 20),
		givenLibrary(t, "large", 0, 30),
	)

	small, _ := snapshot.TargetOccupancy("small")
	medium, _ := snapshot.TargetOccupancy("medium")
	large, _ := snapshot.TargetOccupancy("large")

	assert.Equal(t, 4, small)
	assert.Equal(t, 8, medium)
	// arithmetic rounding: 12.5 rounds away from zero
	assert.Equal(t, 13, large)
}

func Test_Snapshot_TargetOccupancy_ClampedToCapacity(t *testing.T) {
	// near-full system: proportional shares would exceed the small library
	snapshot := givenSnapshot(t,
		givenLibrary(t, "tiny", 2, 2),
		givenLibrary(t, "big", 97, 98),
	)

	tiny, _ := snapshot.TargetOccupancy("tiny")

	assert.LessOrEqual(t, tiny, 2)
}

func Test_Snapshot_TargetOccupancy_ReportsUnknownLibrary(t *testing.T) {
	snapshot := givenSnapshot(t, givenLibrary(t, "a", 10, 50))

	_, ok := snapshot.TargetOccupancy("nope")

	assert.False(t, ok)
}
