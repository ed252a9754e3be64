package rebalance

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// Render returns a human-readable listing of the snapshot, one library per
// line as "<id>: <current>/<capacity>", plus a totals summary line.
func (s Snapshot) Render() string {
	var b strings.Builder

	for _, lib := range s.libraries {
		fmt.Fprintf(&b, "%s: %d/%d\n", lib.ID, lib.CurrentCount, lib.Capacity)
	}

	fmt.Fprintf(&b, "total: %d books across %d libraries (capacity %d)\n",
		s.totalBooks, len(s.libraries), s.totalCapacity)

	return b.String()
}

// Render returns a human-readable listing of the plan: one line per transfer
// as "<source> -> <destination>: <quantity>", residuals the greedy pairing
// could not place, and a summary line with the total books to move.
func (p Plan) Render() string {
	var b strings.Builder

	if p.IsEmpty() {
		b.WriteString("no transfers required, all libraries are at their target occupancy\n")
	}

	for _, t := range p.transfers {
		fmt.Fprintf(&b, "%s -> %s: %d\n", t.From, t.To, t.Quantity)
	}

	for _, r := range p.residualSurplus {
		fmt.Fprintf(&b, "residual surplus stranded at %s: %d books\n", r.LibraryID, r.Books)
	}

	for _, r := range p.residualDeficit {
		fmt.Fprintf(&b, "residual deficit left at %s: %d books\n", r.LibraryID, r.Books)
	}

	fmt.Fprintf(&b, "planned: %d transfers, %d books to move\n", len(p.transfers), p.BooksToMove())

	return b.String()
}

// Render returns a human-readable listing of the execution report: one line
// per transfer as "<source> -> <destination>: <quantity>" tagged with its
// outcome, plus a summary line with books moved and skipped count.
func (r ExecutionReport) Render() string {
	var b strings.Builder

	for _, result := range r.Results {
		switch result.Outcome {
		case OutcomeApplied:
			fmt.Fprintf(&b, "%s -> %s: %d [applied]\n",
				result.Transfer.From, result.Transfer.To, result.Transfer.Quantity)

		case OutcomeSkipped:
			fmt.Fprintf(&b, "%s -> %s: %d [skipped: %s]\n",
				result.Transfer.From, result.Transfer.To, result.Transfer.Quantity, result.Reason)
		}
	}

	fmt.Fprintf(&b, "applied: %d books moved, %d of %d transfers skipped\n",
		r.BooksMoved(), r.SkippedCount(), len(r.Results))

	return b.String()
}

// JSON transport shapes for the machine-readable renderings.
type (
	libraryJSON struct {
		ID           string `json:"id"`
		CurrentCount int    `json:"current_count"`
		Capacity     int    `json:"capacity"`
	}

	snapshotJSON struct {
		Libraries     []libraryJSON `json:"libraries"`
		TotalBooks    int           `json:"total_books"`
		TotalCapacity int           `json:"total_capacity"`
	}

	transferJSON struct {
		From     string `json:"from"`
		To       string `json:"to"`
		Quantity int    `json:"quantity"`
	}

	residualJSON struct {
		LibraryID string `json:"library_id"`
		Books     int    `json:"books"`
	}

	planJSON struct {
		PlanID          string         `json:"plan_id"`
		Transfers       []transferJSON `json:"transfers"`
		ResidualSurplus []residualJSON `json:"residual_surplus,omitempty"`
		ResidualDeficit []residualJSON `json:"residual_deficit,omitempty"`
		BooksToMove     int            `json:"books_to_move"`
	}

	resultJSON struct {
		From     string `json:"from"`
		To       string `json:"to"`
		Quantity int    `json:"quantity"`
		Outcome  string `json:"outcome"`
		Reason   string `json:"reason,omitempty"`
	}

	reportJSON struct {
		PlanID     string       `json:"plan_id"`
		Results    []resultJSON `json:"results"`
		BooksMoved int          `json:"books_moved"`
		Applied    int          `json:"applied"`
		Skipped    int          `json:"skipped"`
	}
)

// RenderJSON returns the snapshot as a JSON document for machine consumption.
func (s Snapshot) RenderJSON() (string, error) {
	doc := snapshotJSON{
		Libraries:     make([]libraryJSON, 0, len(s.libraries)),
		TotalBooks:    s.totalBooks,
		TotalCapacity: s.totalCapacity,
	}

	for _, lib := range s.libraries {
		doc.Libraries = append(doc.Libraries, libraryJSON{
			ID:           lib.ID,
			CurrentCount: lib.CurrentCount,
			Capacity:     lib.Capacity,
		})
	}

	return jsoniter.ConfigFastest.MarshalToString(doc)
}

// RenderJSON returns the plan as a JSON document for machine consumption.
func (p Plan) RenderJSON() (string, error) {
	doc := planJSON{
		PlanID:      p.id.String(),
		Transfers:   make([]transferJSON, 0, len(p.transfers)),
		BooksToMove: p.BooksToMove(),
	}

	for _, t := range p.transfers {
		doc.Transfers = append(doc.Transfers, transferJSON{From: t.From, To: t.To, Quantity: t.Quantity})
	}

	for _, r := range p.residualSurplus {
		doc.ResidualSurplus = append(doc.ResidualSurplus, residualJSON{LibraryID: r.LibraryID, Books: r.Books})
	}

	for _, r := range p.residualDeficit {
		doc.ResidualDeficit = append(doc.ResidualDeficit, residualJSON{LibraryID: r.LibraryID, Books: r.Books})
	}

	return jsoniter.ConfigFastest.MarshalToString(doc)
}

// RenderJSON returns the execution report as a JSON document for machine consumption.
func (r ExecutionReport) RenderJSON() (string, error) {
	doc := reportJSON{
		PlanID:     r.PlanID.String(),
		Results:    make([]resultJSON, 0, len(r.Results)),
		BooksMoved: r.BooksMoved(),
		Applied:    r.AppliedCount(),
		Skipped:    r.SkippedCount(),
	}

	for _, result := range r.Results {
		doc.Results = append(doc.Results, resultJSON{
			From:     result.Transfer.From,
			To:       result.Transfer.To,
			Quantity: result.Transfer.Quantity,
			Outcome:  string(result.Outcome),
			Reason:   result.Reason,
		})
	}

	return jsoniter.ConfigFastest.MarshalToString(doc)
}
