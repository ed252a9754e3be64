package rebalance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfbalance/stock-rebalancer-go/rebalance"
)

// applyTransfers replays a plan's transfers onto library records so tests can
// inspect the stock levels the plan would produce.
func applyTransfers(t *testing.T, snapshot rebalance.Snapshot, transfers []rebalance.Transfer) []rebalance.Library {
	t.Helper()

	byID := make(map[string]*rebalance.Library)
	libraries := snapshot.Libraries()
	for i := range libraries {
		byID[libraries[i].ID] = &libraries[i]
	}

	for _, transfer := range transfers {
		source, sourceOK := byID[transfer.From]
		destination, destinationOK := byID[transfer.To]
		require.True(t, sourceOK)
		require.True(t, destinationOK)

		source.CurrentCount -= transfer.Quantity
		destination.CurrentCount += transfer.Quantity

		// the invariant must hold after every single transfer, not just at the end
		require.GreaterOrEqual(t, source.CurrentCount, 0)
		require.LessOrEqual(t, destination.CurrentCount, destination.Capacity)
	}

	return libraries
}

func Test_BuildPlan_TwoLibraries_MovesSurplusToDeficit(t *testing.T) {
	// arrange
	snapshot := givenSnapshot(t,
		givenLibrary(t, "central", 90, 100),
		givenLibrary(t, "east", 10, 100),
	)

	// act
	plan := rebalance.BuildPlan(snapshot)

	// assert
	transfers := plan.Transfers()
	require.Len(t, transfers, 1)
	assert.Equal(t, rebalance.Transfer{From: "central", To: "east", Quantity: 40}, transfers[0])
	assert.Equal(t, 40, plan.BooksToMove())
	assert.Empty(t, plan.ResidualSurplus())
	assert.Empty(t, plan.ResidualDeficit())
}

func Test_BuildPlan_HalvesStock_WhenOneLibraryFullAndOneEmpty(t *testing.T) {
	// arrange
	snapshot := givenSnapshot(t,
		givenLibrary(t, "a", 0, 100),
		givenLibrary(t, "b", 100, 100),
	)

	// act
	plan := rebalance.BuildPlan(snapshot)

	// assert
	transfers := plan.Transfers()
	require.Len(t, transfers, 1)
	assert.Equal(t, rebalance.Transfer{From: "b", To: "a", Quantity: 50}, transfers[0])
}

func Test_BuildPlan_DrainsFullDonorsIntoEmptyReceiver(t *testing.T) {
	// arrange: a and b at capacity, c empty; targets round to 7 each
	snapshot := givenSnapshot(t,
		givenLibrary(t, "a", 10, 10),
		givenLibrary(t, "b", 10, 10),
		givenLibrary(t, "c", 0, 10),
	)

	// act
	plan := rebalance.BuildPlan(snapshot)

	// assert: equal surpluses tie-break by ascending id, donors bound the move
	transfers := plan.Transfers()
	require.Len(t, transfers, 2)
	assert.Equal(t, rebalance.Transfer{From: "a", To: "c", Quantity: 3}, transfers[0])
	assert.Equal(t, rebalance.Transfer{From: "b", To: "c", Quantity: 3}, transfers[1])

	// targets sum to 21 against 20 books, the gap stays visible
	deficits := plan.ResidualDeficit()
	require.Len(t, deficits, 1)
	assert.Equal(t, rebalance.Residual{LibraryID: "c", Books: 1}, deficits[0])
}

func Test_BuildPlan_OneDonorFeedsMultipleReceivers(t *testing.T) {
	// arrange: equal capacities, target is 50 each
	snapshot := givenSnapshot(t,
		givenLibrary(t, "a", 90, 100),
		givenLibrary(t, "b", 30, 100),
		givenLibrary(t, "c", 30, 100),
	)

	// act
	plan := rebalance.BuildPlan(snapshot)

	// assert: equal deficits tie-break by ascending id
	transfers := plan.Transfers()
	require.Len(t, transfers, 2)
	assert.Equal(t, rebalance.Transfer{From: "a", To: "b", Quantity: 20}, transfers[0])
	assert.Equal(t, rebalance.Transfer{From: "a", To: "c", Quantity: 20}, transfers[1])
}

func Test_BuildPlan_EmptyPlan_WhenAlreadyBalanced(t *testing.T) {
	snapshot := givenSnapshot(t,
		givenLibrary(t, "a", 50, 100),
		givenLibrary(t, "b", 50, 100),
	)

	plan := rebalance.BuildPlan(snapshot)

	assert.True(t, plan.IsEmpty())
	assert.Equal(t, 0, plan.BooksToMove())
}

func Test_BuildPlan_EmptyPlan_WhenSingleLibrary(t *testing.T) {
	snapshot := givenSnapshot(t, givenLibrary(t, "only", 70, 100))

	plan := rebalance.BuildPlan(snapshot)

	assert.True(t, plan.IsEmpty())
}

func Test_BuildPlan_EmptyPlan_WhenNoBooks(t *testing.T) {
	snapshot := givenSnapshot(t,
		givenLibrary(t, "a", 0, 100),
		givenLibrary(t, "b", 0, 50),
	)

	plan := rebalance.BuildPlan(snapshot)

	assert.True(t, plan.IsEmpty())
}

func Test_BuildPlan_ConservesTotalBooks(t *testing.T) {
	snapshot := givenSnapshot(t,
		givenLibrary(t, "a", 77, 120),
		givenLibrary(t, "b", 3, 60),
		givenLibrary(t, "c", 41, 90),
		givenLibrary(t, "d", 0, 30),
	)

	plan := rebalance.BuildPlan(snapshot)
	libraries := applyTransfers(t, snapshot, plan.Transfers())

	total := 0
	for _, library := range libraries {
		total += library.CurrentCount
	}

	assert.Equal(t, snapshot.TotalBooks(), total)
}

func Test_BuildPlan_NeverViolatesCapacity_MidSequence(t *testing.T) {
	// heavily skewed stock against small capacities stresses intermediate states
	snapshot := givenSnapshot(t,
		givenLibrary(t, "hoarder", 100, 100),
		givenLibrary(t, "s1", 0, 10),
		givenLibrary(t, "s2", 0, 10),
		givenLibrary(t, "s3", 2, 15),
	)

	plan := rebalance.BuildPlan(snapshot)

	// applyTransfers asserts the invariant after every transfer
	applyTransfers(t, snapshot, plan.Transfers())
}

func Test_BuildPlan_Deterministic_ForSameSnapshot(t *testing.T) {
	snapshot := givenSnapshot(t,
		givenLibrary(t, "a", 77, 120),
		givenLibrary(t, "b", 3, 60),
		givenLibrary(t, "c", 41, 90),
	)

	first := rebalance.BuildPlan(snapshot)
	second := rebalance.BuildPlan(snapshot)

	assert.Equal(t, first.Transfers(), second.Transfers())
	assert.Equal(t, first.ResidualSurplus(), second.ResidualSurplus())
	assert.Equal(t, first.ResidualDeficit(), second.ResidualDeficit())
	// each plan still gets its own identity for log correlation
	assert.NotEqual(t, first.ID(), second.ID())
}

func Test_BuildPlan_Idempotent_ReplanningAfterApplyIsEmpty(t *testing.T) {
	// arrange
	snapshot := givenSnapshot(t,
		givenLibrary(t, "a", 90, 100),
		givenLibrary(t, "b", 30, 100),
		givenLibrary(t, "c", 30, 100),
	)

	// act: apply the first plan, then plan again from the resulting state
	plan := rebalance.BuildPlan(snapshot)
	rebalanced := givenSnapshot(t, applyTransfers(t, snapshot, plan.Transfers())...)
	second := rebalance.BuildPlan(rebalanced)

	// assert
	assert.True(t, second.IsEmpty())
}

func Test_BuildPlan_ReportsResidualDeficit_WhenRoundingLeavesGap(t *testing.T) {
	// targets round to 98+98=196 against 195 actual books: one book of
	// deficit cannot be served and must be reported, not dropped
	snapshot := givenSnapshot(t,
		givenLibrary(t, "full", 100, 100),
		givenLibrary(t, "nearly", 95, 100),
	)

	plan := rebalance.BuildPlan(snapshot)

	transfers := plan.Transfers()
	require.Len(t, transfers, 1)
	assert.Equal(t, rebalance.Transfer{From: "full", To: "nearly", Quantity: 2}, transfers[0])

	deficits := plan.ResidualDeficit()
	require.Len(t, deficits, 1)
	assert.Equal(t, rebalance.Residual{LibraryID: "nearly", Books: 1}, deficits[0])
	assert.Empty(t, plan.ResidualSurplus())
}

func Test_BuildPlan_KeepsSnapshotItWasComputedAgainst(t *testing.T) {
	snapshot := givenSnapshot(t,
		givenLibrary(t, "a", 90, 100),
		givenLibrary(t, "b", 10, 100),
	)

	plan := rebalance.BuildPlan(snapshot)

	assert.Equal(t, snapshot.TotalBooks(), plan.Snapshot().TotalBooks())
	assert.Equal(t, snapshot.Size(), plan.Snapshot().Size())
}

func Test_BuildTransfer_Success(t *testing.T) {
	transfer, err := rebalance.BuildTransfer("a", "b", 5)

	assert.NoError(t, err)
	assert.Equal(t, rebalance.Transfer{From: "a", To: "b", Quantity: 5}, transfer)
}

func Test_BuildTransfer_Fails_WhenInvalid(t *testing.T) {
	_, emptyErr := rebalance.BuildTransfer("", "b", 5)
	_, selfErr := rebalance.BuildTransfer("a", "a", 5)
	_, zeroErr := rebalance.BuildTransfer("a", "b", 0)
	_, negativeErr := rebalance.BuildTransfer("a", "b", -3)

	assert.ErrorIs(t, emptyErr, rebalance.ErrInvalidTransfer)
	assert.ErrorIs(t, selfErr, rebalance.ErrInvalidTransfer)
	assert.ErrorIs(t, zeroErr, rebalance.ErrInvalidTransfer)
	assert.ErrorIs(t, negativeErr, rebalance.ErrInvalidTransfer)
}
