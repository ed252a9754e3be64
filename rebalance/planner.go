package rebalance

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Transfer moves Quantity books from the source library to the destination
// library. Quantity is always positive; applying a transfer must not reduce
// the source below zero or push the destination above its capacity.
type Transfer struct {
	From     string
	To       string
	Quantity int
}

// BuildTransfer creates a validated Transfer.
// It fails with ErrInvalidTransfer (joined with a detailed cause) when the
// quantity is not positive, an endpoint is empty, or source equals destination.
func BuildTransfer(from string, to string, quantity int) (Transfer, error) {
	if from == "" || to == "" {
		return Transfer{}, errors.Join(ErrInvalidTransfer, errors.New("source and destination must not be empty"))
	}

	if from == to {
		return Transfer{}, errors.Join(ErrInvalidTransfer, fmt.Errorf("source and destination are both %q", from))
	}

	if quantity <= 0 {
		return Transfer{}, errors.Join(ErrInvalidTransfer, fmt.Errorf("quantity %d is not positive", quantity))
	}

	return Transfer{From: from, To: to, Quantity: quantity}, nil
}

// Residual is surplus or deficit the planner could not place because the
// other side was exhausted, e.g. a donor stranded above target when all
// receivers saturated. Residuals are reported, never silently dropped.
type Residual struct {
	LibraryID string
	Books     int
}

// Plan is an immutable, ordered sequence of transfers computed from one
// Snapshot. It carries the snapshot it was computed against; re-applying a
// plan to a store that has since diverged is handled by per-transfer
// re-validation in Execute, not by the plan itself.
type Plan struct {
	id              uuid.UUID
	snapshot        Snapshot
	transfers       []Transfer
	residualSurplus []Residual
	residualDeficit []Residual
}

// party is a donor or receiver with its remaining surplus or deficit.
type party struct {
	id    string
	books int
}

// BuildPlan computes a redistribution plan that moves every library toward
// its proportional-fill target occupancy using pairwise transfers.
//
// The algorithm is greedy and fully deterministic:
//  1. Compute the target occupancy for every library.
//  2. Partition libraries into donors (above target) and receivers (below
//     target); libraries at target are inert.
//  3. Sort donors by descending surplus and receivers by descending deficit,
//     ties broken by ascending library identifier.
//  4. Repeatedly pair the largest-surplus donor with the largest-deficit
//     receiver and transfer min(surplus, deficit) books.
//  5. Stop when either side is exhausted; whatever remains on the other side
//     is recorded as residual.
//
// Capacity safety holds at every intermediate step: a receiver's deficit is
// bounded by its slack, and every quantity is bounded by that deficit.
func BuildPlan(snapshot Snapshot) Plan {
	donors := make([]party, 0)
	receivers := make([]party, 0)

	for _, lib := range snapshot.Libraries() {
		target := snapshot.targetFor(lib)

		switch {
		case lib.CurrentCount > target:
			donors = append(donors, party{id: lib.ID, books: lib.CurrentCount - target})

		case lib.CurrentCount < target:
			receivers = append(receivers, party{id: lib.ID, books: target - lib.CurrentCount})
		}
	}

	sortPartiesByBooksDescending(donors)
	sortPartiesByBooksDescending(receivers)

	transfers := make([]Transfer, 0)

	di, ri := 0, 0
	for di < len(donors) && ri < len(receivers) {
		quantity := min(donors[di].books, receivers[ri].books)

		if quantity > 0 {
			transfers = append(transfers, Transfer{
				From:     donors[di].id,
				To:       receivers[ri].id,
				Quantity: quantity,
			})
		}

		donors[di].books -= quantity
		receivers[ri].books -= quantity

		if donors[di].books == 0 {
			di++
		}

		if receivers[ri].books == 0 {
			ri++
		}
	}

	return Plan{
		id:              uuid.New(),
		snapshot:        snapshot,
		transfers:       transfers,
		residualSurplus: residualsFrom(donors[di:]),
		residualDeficit: residualsFrom(receivers[ri:]),
	}
}

// sortPartiesByBooksDescending orders by descending surplus/deficit with
// ascending library identifier as the tie-break, for full determinism.
func sortPartiesByBooksDescending(parties []party) {
	sort.Slice(parties, func(i, j int) bool {
		if parties[i].books != parties[j].books {
			return parties[i].books > parties[j].books
		}

		return parties[i].id < parties[j].id
	})
}

// residualsFrom converts leftover parties into reported residuals, reordered
// by ascending library identifier for stable rendering.
func residualsFrom(leftover []party) []Residual {
	residuals := make([]Residual, 0, len(leftover))

	for _, p := range leftover {
		if p.books > 0 {
			residuals = append(residuals, Residual{LibraryID: p.id, Books: p.books})
		}
	}

	sort.Slice(residuals, func(i, j int) bool {
		return residuals[i].LibraryID < residuals[j].LibraryID
	})

	return residuals
}

// ID returns the plan's unique identifier, used to correlate logs and
// execution reports with the plan they belong to.
func (p Plan) ID() uuid.UUID {
	return p.id
}

// Snapshot returns the snapshot the plan was computed against.
func (p Plan) Snapshot() Snapshot {
	return p.snapshot
}

// Transfers returns the planned transfers in emission order.
// The returned slice is a copy; mutating it does not affect the plan.
func (p Plan) Transfers() []Transfer {
	transfers := make([]Transfer, len(p.transfers))
	copy(transfers, p.transfers)

	return transfers
}

// ResidualSurplus returns surplus stranded at donors because all receivers
// saturated, in ascending library identifier order.
func (p Plan) ResidualSurplus() []Residual {
	residuals := make([]Residual, len(p.residualSurplus))
	copy(residuals, p.residualSurplus)

	return residuals
}

// ResidualDeficit returns deficit left at receivers because all donors were
// drained, in ascending library identifier order.
func (p Plan) ResidualDeficit() []Residual {
	residuals := make([]Residual, len(p.residualDeficit))
	copy(residuals, p.residualDeficit)

	return residuals
}

// IsEmpty reports whether the plan contains no transfers.
func (p Plan) IsEmpty() bool {
	return len(p.transfers) == 0
}

// BooksToMove returns the total quantity across all planned transfers.
func (p Plan) BooksToMove() int {
	total := 0
	for _, t := range p.transfers {
		total += t.Quantity
	}

	return total
}
