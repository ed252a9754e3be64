package postgresengine

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/shelfbalance/stock-rebalancer-go/rebalance"
)

func Test_IsCheckViolation_Detected_ForBothDriverErrorTypes(t *testing.T) {
	pgxViolation := &pgconn.PgError{Code: sqlStateCheckViolation}
	pqViolation := &pq.Error{Code: pq.ErrorCode(sqlStateCheckViolation)}

	assert.True(t, isCheckViolation(pgxViolation))
	assert.True(t, isCheckViolation(pqViolation))
}

func Test_IsCheckViolation_Detected_WhenWrappedLikeAFailedExec(t *testing.T) {
	// the exec path joins driver errors with the store sentinel before they
	// reach the transfer classification
	wrapped := errors.Join(
		rebalance.ErrApplyingTransferFailed,
		&pgconn.PgError{Code: sqlStateCheckViolation})

	assert.True(t, isCheckViolation(wrapped))
}

func Test_IsCheckViolation_NotDetected_ForOtherFailures(t *testing.T) {
	uniqueViolation := &pgconn.PgError{Code: "23505"}

	assert.False(t, isCheckViolation(uniqueViolation))
	assert.False(t, isCheckViolation(errors.New("connection reset")))
	assert.False(t, isCheckViolation(rebalance.ErrTransferConflict))
}
