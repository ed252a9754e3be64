package rebalance_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/shelfbalance/stock-rebalancer-go/rebalance"
)

func Test_Snapshot_Render_ListsLibrariesAndTotals(t *testing.T) {
	snapshot := givenSnapshot(t,
		givenLibrary(t, "central", 90, 100),
		givenLibrary(t, "east", 10, 50),
	)

	rendered := snapshot.Render()

	assert.Contains(t, rendered, "central: 90/100\n")
	assert.Contains(t, rendered, "east: 10/50\n")
	assert.Contains(t, rendered, "total: 100 books across 2 libraries (capacity 150)\n")
}

func Test_Plan_Render_OneLinePerTransfer(t *testing.T) {
	snapshot := givenSnapshot(t,
		givenLibrary(t, "a", 90, 100),
		givenLibrary(t, "b", 30, 100),
		givenLibrary(t, "c", 30, 100),
	)

	rendered := rebalance.BuildPlan(snapshot).Render()

	lines := strings.Split(strings.TrimSuffix(rendered, "\n"), "\n")
	assert.Equal(t, []string{
		"a -> b: 20",
		"a -> c: 20",
		"planned: 2 transfers, 40 books to move",
	}, lines)
}

func Test_Plan_Render_ReportsResiduals(t *testing.T) {
	snapshot := givenSnapshot(t,
		givenLibrary(t, "full", 100, 100),
		givenLibrary(t, "nearly", 95, 100),
	)

	rendered := rebalance.BuildPlan(snapshot).Render()

	assert.Contains(t, rendered, "full -> nearly: 2\n")
	assert.Contains(t, rendered, "residual deficit left at nearly: 1 books\n")
}

func Test_Plan_Render_SaysSo_WhenNothingToDo(t *testing.T) {
	snapshot := givenSnapshot(t,
		givenLibrary(t, "a", 50, 100),
		givenLibrary(t, "b", 50, 100),
	)

	rendered := rebalance.BuildPlan(snapshot).Render()

	assert.Contains(t, rendered, "no transfers required")
	assert.Contains(t, rendered, "planned: 0 transfers, 0 books to move\n")
}

func Test_ExecutionReport_Render_TagsOutcomes(t *testing.T) {
	report := rebalance.ExecutionReport{
		PlanID: uuid.New(),
		Results: []rebalance.TransferResult{
			{
				Transfer: rebalance.Transfer{From: "a", To: "b", Quantity: 20},
				Outcome:  rebalance.OutcomeApplied,
			},
			{
				Transfer: rebalance.Transfer{From: "a", To: "c", Quantity: 20},
				Outcome:  rebalance.OutcomeSkipped,
				Reason:   "destination has too little slack",
			},
		},
	}

	rendered := report.Render()

	assert.Contains(t, rendered, "a -> b: 20 [applied]\n")
	assert.Contains(t, rendered, "a -> c: 20 [skipped: destination has too little slack]\n")
	assert.Contains(t, rendered, "applied: 20 books moved, 1 of 2 transfers skipped\n")
}

func Test_Snapshot_RenderJSON_CarriesTotals(t *testing.T) {
	snapshot := givenSnapshot(t,
		givenLibrary(t, "central", 90, 100),
		givenLibrary(t, "east", 10, 50),
	)

	doc, err := snapshot.RenderJSON()

	assert.NoError(t, err)
	assert.Contains(t, doc, `"total_books":100`)
	assert.Contains(t, doc, `"total_capacity":150`)
	assert.Contains(t, doc, `"id":"central"`)
}

func Test_Plan_RenderJSON_CarriesTransfersAndResiduals(t *testing.T) {
	snapshot := givenSnapshot(t,
		givenLibrary(t, "full", 100, 100),
		givenLibrary(t, "nearly", 95, 100),
	)
	plan := rebalance.BuildPlan(snapshot)

	doc, err := plan.RenderJSON()

	assert.NoError(t, err)
	assert.Contains(t, doc, plan.ID().String())
	assert.Contains(t, doc, `"from":"full"`)
	assert.Contains(t, doc, `"to":"nearly"`)
	assert.Contains(t, doc, `"quantity":2`)
	assert.Contains(t, doc, `"residual_deficit"`)
	assert.Contains(t, doc, `"books_to_move":2`)
}

func Test_ExecutionReport_RenderJSON_CarriesOutcomes(t *testing.T) {
	report := rebalance.ExecutionReport{
		PlanID: uuid.New(),
		Results: []rebalance.TransferResult{
			{
				Transfer: rebalance.Transfer{From: "a", To: "b", Quantity: 20},
				Outcome:  rebalance.OutcomeApplied,
			},
			{
				Transfer: rebalance.Transfer{From: "a", To: "c", Quantity: 5},
				Outcome:  rebalance.OutcomeSkipped,
				Reason:   "library no longer exists",
			},
		},
	}

	doc, err := report.RenderJSON()

	assert.NoError(t, err)
	assert.Contains(t, doc, `"outcome":"applied"`)
	assert.Contains(t, doc, `"outcome":"skipped"`)
	assert.Contains(t, doc, `"reason":"library no longer exists"`)
	assert.Contains(t, doc, `"books_moved":20`)
	assert.Contains(t, doc, `"applied":1`)
	assert.Contains(t, doc, `"skipped":1`)
}
