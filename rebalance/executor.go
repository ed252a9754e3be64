package rebalance

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

const (
	logMsgTransferApplied  = "transfer applied"
	logMsgTransferSkipped  = "transfer skipped"
	logMsgPlanExecuted     = "plan executed"
	logAttrPlanID          = "plan_id"
	logAttrFrom            = "from"
	logAttrTo              = "to"
	logAttrQuantity        = "quantity"
	logAttrReason          = "reason"
	logAttrApplied         = "applied"
	logAttrSkipped         = "skipped"
	logAttrBooksMoved      = "books_moved"
	metricTransfersApplied = "rebalance_transfers_applied_total"
	metricTransfersSkipped = "rebalance_transfers_skipped_total"
	metricBooksMoved       = "rebalance_books_moved_total"
	labelReason            = "reason"
)

// TransferStore is the live store the executor applies transfers against.
// ApplyTransfer must re-validate against live state and mutate both libraries
// atomically as a pair, returning ErrSourceInsufficient, ErrDestinationFull,
// ErrLibraryNotFound when the live state rejects the transfer, or
// ErrTransferConflict when a concurrent writer raced the conditional write.
type TransferStore interface {
	ApplyTransfer(ctx context.Context, transfer Transfer) error
}

// Outcome classifies the result of one attempted transfer.
type Outcome string

const (
	// OutcomeApplied means both libraries were mutated as an atomic pair.
	OutcomeApplied Outcome = "applied"

	// OutcomeSkipped means live-state re-validation rejected the transfer;
	// execution continued with the remaining transfers.
	OutcomeSkipped Outcome = "skipped"
)

// TransferResult records the outcome of one transfer of a plan.
// Reason is empty for applied transfers.
type TransferResult struct {
	Transfer Transfer
	Outcome  Outcome
	Reason   string
}

// ExecutionReport accounts for every transfer attempted while executing a
// plan, in emission order. If execution was interrupted it contains exactly
// the transfers attempted before the interruption, supporting safe resumption
// or rollback decisions by the caller.
type ExecutionReport struct {
	PlanID  uuid.UUID
	Results []TransferResult
}

// AppliedCount returns the number of transfers that were applied.
func (r ExecutionReport) AppliedCount() int {
	count := 0
	for _, result := range r.Results {
		if result.Outcome == OutcomeApplied {
			count++
		}
	}

	return count
}

// SkippedCount returns the number of transfers that were skipped.
func (r ExecutionReport) SkippedCount() int {
	count := 0
	for _, result := range r.Results {
		if result.Outcome == OutcomeSkipped {
			count++
		}
	}

	return count
}

// BooksMoved returns the total quantity across applied transfers.
func (r ExecutionReport) BooksMoved() int {
	total := 0
	for _, result := range r.Results {
		if result.Outcome == OutcomeApplied {
			total += result.Transfer.Quantity
		}
	}

	return total
}

// executor holds the optional collaborators configured for one Execute call.
type executor struct {
	logger           Logger
	metricsCollector MetricsCollector
	retryOptions     []RetryOption
}

// ExecuteOption defines a functional option for configuring plan execution.
type ExecuteOption func(*executor) error

// WithLogger sets the logger for plan execution.
// Info level: applied transfers and the final summary.
// Warn level: skipped transfers with their reason.
func WithLogger(logger Logger) ExecuteOption {
	return func(e *executor) error {
		e.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for plan execution. The collector
// receives counters for applied/skipped transfers and total books moved.
func WithMetrics(collector MetricsCollector) ExecuteOption {
	return func(e *executor) error {
		e.metricsCollector = collector
		return nil
	}
}

// WithRetryOptions sets a custom retry configuration for conflict retries.
func WithRetryOptions(opts ...RetryOption) ExecuteOption {
	return func(e *executor) error {
		e.retryOptions = opts
		return nil
	}
}

// Execute applies a previously computed Plan against the live store, one
// transfer at a time, in the plan's emitted order.
//
// Each transfer is an atomic unit: the store re-validates against live state
// and mutates both libraries as a pair. Transfers rejected by live-state
// validation are recorded as skipped with a reason and execution continues;
// partial application is surfaced in the report, never swallowed. Transient
// conflicts are retried with exponential backoff before being skipped.
//
// Cancelling the context stops execution after the transfer in flight; the
// returned report reflects exactly the transfers attempted so far. Unexpected
// store failures abort execution with the partial report and an error joined
// with ErrExecutingPlanFailed.
func Execute(ctx context.Context, plan Plan, store TransferStore, options ...ExecuteOption) (ExecutionReport, error) {
	exec := executor{}

	for _, option := range options {
		if optionErr := option(&exec); optionErr != nil {
			return ExecutionReport{PlanID: plan.ID()}, optionErr
		}
	}

	if store == nil {
		return ExecutionReport{PlanID: plan.ID()}, ErrNilTransferStore
	}

	results := make([]TransferResult, 0, len(plan.transfers))

	for _, transfer := range plan.transfers {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ExecutionReport{PlanID: plan.ID(), Results: results}, ctxErr
		}

		applyErr := RetryWithExponentialBackoff(ctx, func(retryCtx context.Context) error {
			return store.ApplyTransfer(retryCtx, transfer)
		}, exec.retryOptions...)

		if applyErr == nil {
			results = append(results, TransferResult{Transfer: transfer, Outcome: OutcomeApplied})
			exec.logTransferApplied(plan.ID(), transfer)
			exec.recordApplied(transfer)

			continue
		}

		if errors.Is(applyErr, context.Canceled) || errors.Is(applyErr, context.DeadlineExceeded) {
			return ExecutionReport{PlanID: plan.ID(), Results: results}, applyErr
		}

		if reason, skippable := skipReasonFor(applyErr); skippable {
			results = append(results, TransferResult{Transfer: transfer, Outcome: OutcomeSkipped, Reason: reason})
			exec.logTransferSkipped(plan.ID(), transfer, reason)
			exec.recordSkipped(reason)

			continue
		}

		return ExecutionReport{PlanID: plan.ID(), Results: results},
			errors.Join(ErrExecutingPlanFailed, applyErr)
	}

	report := ExecutionReport{PlanID: plan.ID(), Results: results}
	exec.logPlanExecuted(report)

	return report, nil
}

// skipReasonFor maps store validation and conflict errors to the reason
// recorded in the execution report. Unknown errors are not skippable.
func skipReasonFor(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrSourceInsufficient):
		return "source has too few books", true

	case errors.Is(err, ErrDestinationFull):
		return "destination has too little slack", true

	case errors.Is(err, ErrLibraryNotFound):
		return "library no longer exists", true

	case errors.Is(err, ErrTransferConflict):
		return "concurrency conflict persisted across retries", true
	}

	return "", false
}

func (e executor) logTransferApplied(planID uuid.UUID, transfer Transfer) {
	if e.logger != nil {
		e.logger.Info(logMsgTransferApplied,
			logAttrPlanID, planID.String(),
			logAttrFrom, transfer.From,
			logAttrTo, transfer.To,
			logAttrQuantity, transfer.Quantity)
	}
}

func (e executor) logTransferSkipped(planID uuid.UUID, transfer Transfer, reason string) {
	if e.logger != nil {
		e.logger.Warn(logMsgTransferSkipped,
			logAttrPlanID, planID.String(),
			logAttrFrom, transfer.From,
			logAttrTo, transfer.To,
			logAttrQuantity, transfer.Quantity,
			logAttrReason, reason)
	}
}

func (e executor) logPlanExecuted(report ExecutionReport) {
	if e.logger != nil {
		e.logger.Info(logMsgPlanExecuted,
			logAttrPlanID, report.PlanID.String(),
			logAttrApplied, report.AppliedCount(),
			logAttrSkipped, report.SkippedCount(),
			logAttrBooksMoved, report.BooksMoved())
	}
}

func (e executor) recordApplied(transfer Transfer) {
	if e.metricsCollector != nil {
		e.metricsCollector.IncrementCounter(metricTransfersApplied, nil)
		e.metricsCollector.RecordValue(metricBooksMoved, float64(transfer.Quantity), nil)
	}
}

func (e executor) recordSkipped(reason string) {
	if e.metricsCollector != nil {
		e.metricsCollector.IncrementCounter(metricTransfersSkipped, map[string]string{labelReason: reason})
	}
}
