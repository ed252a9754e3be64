package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // driver import
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/shelfbalance/stock-rebalancer-go/rebalance"
	"github.com/shelfbalance/stock-rebalancer-go/rebalance/postgresengine/internal/adapters"
)

const (
	defaultTableName = "libraries"

	logMsgBuildSelectQueryFailed = "failed to build select query"
	logMsgBuildUpdateQueryFailed = "failed to build update query"
	logMsgBuildInsertQueryFailed = "failed to build insert query"
	logMsgBuildDeleteQueryFailed = "failed to build delete query"
	logMsgDBQueryFailed          = "database query execution failed"
	logMsgDBExecFailed           = "database execution failed"
	logMsgCloseRowsFailed        = "failed to close database rows"
	logMsgScanRowFailed          = "failed to scan database row"
	logMsgBuildLibraryFailed     = "failed to build library from database row"
	logMsgRowsAffectedFailed     = "failed to get rows affected count"
	logMsgSnapshotLoaded         = "snapshot loaded"
	logMsgTransferApplied        = "transfer applied"
	logMsgTransferRejected       = "transfer rejected by live-state validation"
	logMsgIntakeApplied          = "intake applied"
	logMsgStockReplaced          = "library stock replaced"
	logMsgSQLExecuted            = "executed sql for: "
	logMsgOperation              = "stock store operation: "

	logAttrError        = "error"
	logAttrQuery        = "query"
	logAttrLibraryID    = "library_id"
	logAttrLibraryCount = "library_count"
	logAttrDurationMS   = "duration_ms"
	logAttrFrom         = "from"
	logAttrTo           = "to"
	logAttrQuantity     = "quantity"
	logAttrRowsAffected = "rows_affected"
	logAttrOverflow     = "overflow"
	logAttrReason       = "reason"

	logActionLoadSnapshot  = "load snapshot"
	logActionFindLibrary   = "find library"
	logActionApplyTransfer = "apply transfer"
	logActionAddBooks      = "add books"
	logActionReplaceAll    = "replace all"

	colID           = "id"
	colCurrentCount = "current_count"
	colCapacity     = "capacity"

	ctePrev            = "prev"
	aliasPreviousCount = "previous_count"
	dialectPostgres    = "postgres"

	// both endpoint rows must change for a transfer to count as applied
	transferRowsExpected = 2

	// PostgreSQL SQLSTATE for check_violation
	sqlStateCheckViolation = "23514"
)

type (
	sqlQueryString    = string
	rowsAffectedInt64 = int64
	queryDuration     = time.Duration
)

// Store persists library stock levels in PostgreSQL: one row per library with
// its identifier, current book count and capacity. It leverages a database
// adapter and supports customizable logging, metrics, tracing, and table
// configuration.
//
// All writes are conditional single statements that re-validate against the
// live rows, so each transfer and intake is an atomic unit even with
// concurrent writers (optimistic concurrency, no explicit locking).
type Store struct {
	db               adapters.DBAdapter
	tableName        string
	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector
}

// libraryRow mirrors one row of the stock table during scanning.
type libraryRow struct {
	id           string
	currentCount int
	capacity     int
}

// NewStoreFromPGXPool creates a new Store using a pgx Pool with optional configuration.
func NewStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, rebalance.ErrNilDatabaseConnection
	}

	return applyOptions(Store{
		db:        adapters.NewPGXAdapter(db),
		tableName: defaultTableName,
	}, options)
}

// NewStoreFromSQLDB creates a new Store using a sql.DB with optional configuration.
func NewStoreFromSQLDB(db *sql.DB, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, rebalance.ErrNilDatabaseConnection
	}

	return applyOptions(Store{
		db:        adapters.NewSQLAdapter(db),
		tableName: defaultTableName,
	}, options)
}

// NewStoreFromSQLX creates a new Store using a sqlx.DB with optional configuration.
func NewStoreFromSQLX(db *sqlx.DB, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, rebalance.ErrNilDatabaseConnection
	}

	return applyOptions(Store{
		db:        adapters.NewSQLXAdapter(db),
		tableName: defaultTableName,
	}, options)
}

func applyOptions(store Store, options []Option) (Store, error) {
	for _, option := range options {
		if err := option(&store); err != nil {
			return Store{}, err
		}
	}

	return store, nil
}

// EnsureSchema creates the stock table if it does not exist yet. The checks
// mirror the capacity invariant so that no writer, not even a buggy one, can
// persist a state the planner would reject.
func (s Store) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
			%s TEXT PRIMARY KEY,
			%s INTEGER NOT NULL CHECK (%s >= 0),
			%s INTEGER NOT NULL CHECK (%s > 0),
			CHECK (%s <= %s)
		)`,
		s.tableName,
		colID,
		colCurrentCount, colCurrentCount,
		colCapacity, colCapacity,
		colCurrentCount, colCapacity,
	)

	if _, execErr := s.db.Exec(ctx, ddl); execErr != nil {
		s.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, ddl)
		return errors.Join(rebalance.ErrApplyingTransferFailed, execErr)
	}

	return nil
}

// LoadSnapshot reads all library rows, ordered by ascending identifier, and
// returns them as a validated rebalance.Snapshot.
func (s Store) LoadSnapshot(ctx context.Context) (rebalance.Snapshot, error) {
	ctx, span := s.startSpan(ctx, spanLoadSnapshot, nil)

	sqlQuery, buildErr := s.buildSelectQuery(nil)
	if buildErr != nil {
		s.finishSpan(span, statusError)
		return rebalance.Snapshot{}, buildErr
	}

	rows, duration, queryErr := s.executeQuery(ctx, sqlQuery, logActionLoadSnapshot)
	if queryErr != nil {
		s.finishSpan(span, statusError)
		return rebalance.Snapshot{}, queryErr
	}
	defer s.closeRows(rows)

	libraries, scanErr := s.processLibraryRows(ctx, rows)
	if scanErr != nil {
		s.finishSpan(span, statusError)
		return rebalance.Snapshot{}, scanErr
	}

	snapshot, buildSnapshotErr := rebalance.BuildSnapshot(libraries...)
	if buildSnapshotErr != nil {
		s.logError(ctx, logMsgBuildLibraryFailed, buildSnapshotErr)
		s.finishSpan(span, statusError)

		return rebalance.Snapshot{}, buildSnapshotErr
	}

	s.logOperation(ctx, logMsgSnapshotLoaded,
		logAttrLibraryCount, snapshot.Size(),
		logAttrDurationMS, toMilliseconds(duration))
	s.recordDuration(ctx, metricLoadSnapshotDuration, duration, statusSuccess)
	s.finishSpan(span, statusSuccess)

	return snapshot, nil
}

// FindLibrary reads a single library row by identifier.
// It fails with rebalance.ErrLibraryNotFound when no such row exists.
func (s Store) FindLibrary(ctx context.Context, id string) (rebalance.Library, error) {
	sqlQuery, buildErr := s.buildSelectQuery(goqu.C(colID).Eq(id))
	if buildErr != nil {
		return rebalance.Library{}, buildErr
	}

	rows, _, queryErr := s.executeQuery(ctx, sqlQuery, logActionFindLibrary)
	if queryErr != nil {
		return rebalance.Library{}, queryErr
	}
	defer s.closeRows(rows)

	if !rows.Next() {
		return rebalance.Library{}, errors.Join(
			rebalance.ErrLibraryNotFound,
			fmt.Errorf("library %q has no row in %s", id, s.tableName))
	}

	var row libraryRow
	if scanErr := rows.Scan(&row.id, &row.currentCount, &row.capacity); scanErr != nil {
		s.logError(ctx, logMsgScanRowFailed, scanErr)
		return rebalance.Library{}, errors.Join(rebalance.ErrScanningDBRowFailed, scanErr)
	}

	return rebalance.BuildLibrary(row.id, row.currentCount, row.capacity)
}

// ApplyTransfer applies one transfer as a single conditional UPDATE: the
// source decrement and destination increment land in the same statement,
// guarded by re-validation of the live rows. If the guards do not hold, no
// row changes and the failure is classified against the current state:
// rebalance.ErrLibraryNotFound, rebalance.ErrSourceInsufficient,
// rebalance.ErrDestinationFull, or rebalance.ErrTransferConflict when the
// live rows would permit the transfer, meaning a concurrent writer raced the
// conditional write and a retry is worthwhile.
func (s Store) ApplyTransfer(ctx context.Context, transfer rebalance.Transfer) error {
	if _, validateErr := rebalance.BuildTransfer(transfer.From, transfer.To, transfer.Quantity); validateErr != nil {
		return validateErr
	}

	ctx, span := s.startSpan(ctx, spanApplyTransfer, map[string]string{
		logAttrFrom: transfer.From,
		logAttrTo:   transfer.To,
	})

	sqlQuery, buildErr := s.buildTransferQuery(transfer)
	if buildErr != nil {
		s.finishSpan(span, statusError)
		return buildErr
	}

	rowsAffected, duration, execErr := s.executeExec(ctx, sqlQuery, logActionApplyTransfer)
	if execErr != nil {
		// under READ COMMITTED a concurrent writer can slip past the EXISTS
		// guards and trip the table CHECK constraints instead; that is still
		// a conflict, not an infrastructure failure, and stays retryable
		if isCheckViolation(execErr) {
			s.recordCounter(ctx, metricTransferConflicts, statusConflict)
			s.finishSpan(span, statusConflict)

			return errors.Join(rebalance.ErrTransferConflict, execErr)
		}

		s.recordCounter(ctx, metricDatabaseErrors, statusError)
		s.finishSpan(span, statusError)

		return execErr
	}

	if rowsAffected != transferRowsExpected {
		classified := s.classifyTransferFailure(ctx, transfer)

		s.logOperation(ctx, logMsgTransferRejected,
			logAttrFrom, transfer.From,
			logAttrTo, transfer.To,
			logAttrQuantity, transfer.Quantity,
			logAttrRowsAffected, rowsAffected,
			logAttrReason, classified.Error())
		s.recordCounter(ctx, metricTransferConflicts, statusConflict)
		s.finishSpan(span, statusConflict)

		return classified
	}

	s.logOperation(ctx, logMsgTransferApplied,
		logAttrFrom, transfer.From,
		logAttrTo, transfer.To,
		logAttrQuantity, transfer.Quantity,
		logAttrDurationMS, toMilliseconds(duration))
	s.recordDuration(ctx, metricApplyTransferDuration, duration, statusSuccess)
	s.finishSpan(span, statusSuccess)

	return nil
}

// AddBooks commits a bulk intake of quantity books into one library, clamped
// to its capacity, and returns the overflow that did not fit. This is the
// committed counterpart of rebalance.SimulateIntake and uses the same
// clamp-with-report policy. The clamp happens inside a single conditional
// UPDATE, so concurrent writers cannot push the row above capacity.
func (s Store) AddBooks(ctx context.Context, id string, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, errors.Join(
			rebalance.ErrInvalidIntakeQuantity,
			fmt.Errorf("quantity %d supplied", quantity))
	}

	ctx, span := s.startSpan(ctx, spanAddBooks, map[string]string{logAttrLibraryID: id})

	sqlQuery, buildErr := s.buildIntakeQuery(id, quantity)
	if buildErr != nil {
		s.finishSpan(span, statusError)
		return 0, buildErr
	}

	start := time.Now()
	rows, queryErr := s.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	s.logQueryWithDuration(ctx, sqlQuery, logActionAddBooks, duration)

	if queryErr != nil {
		s.logError(ctx, logMsgDBExecFailed, queryErr, logAttrQuery, sqlQuery)
		s.recordCounter(ctx, metricDatabaseErrors, statusError)
		s.finishSpan(span, statusError)

		return 0, errors.Join(rebalance.ErrApplyingTransferFailed, queryErr)
	}
	defer s.closeRows(rows)

	if !rows.Next() {
		s.finishSpan(span, statusError)

		return 0, errors.Join(
			rebalance.ErrLibraryNotFound,
			fmt.Errorf("library %q has no row in %s", id, s.tableName))
	}

	var previousCount, newCount, capacity int
	if scanErr := rows.Scan(&previousCount, &newCount, &capacity); scanErr != nil {
		s.logError(ctx, logMsgScanRowFailed, scanErr)
		s.finishSpan(span, statusError)

		return 0, errors.Join(rebalance.ErrScanningDBRowFailed, scanErr)
	}

	overflow := previousCount + quantity - newCount

	s.logOperation(ctx, logMsgIntakeApplied,
		logAttrLibraryID, id,
		logAttrQuantity, quantity,
		logAttrOverflow, overflow,
		logAttrDurationMS, toMilliseconds(duration))
	s.finishSpan(span, statusSuccess)

	return overflow, nil
}

// ReplaceAll wipes the stock table and inserts the given libraries. It is
// meant for seeding fixtures and demo scenarios; the delete and insert are
// separate statements, so it must not run concurrently with an executor.
func (s Store) ReplaceAll(ctx context.Context, libraries []rebalance.Library) error {
	deleteQuery, _, deleteBuildErr := goqu.Dialect(dialectPostgres).Delete(s.tableName).ToSQL()
	if deleteBuildErr != nil {
		s.logError(ctx, logMsgBuildDeleteQueryFailed, deleteBuildErr)
		return errors.Join(rebalance.ErrBuildingQueryFailed, deleteBuildErr)
	}

	if _, _, execErr := s.executeExec(ctx, deleteQuery, logActionReplaceAll); execErr != nil {
		return execErr
	}

	if len(libraries) == 0 {
		return nil
	}

	insertRows := make([]any, 0, len(libraries))
	for _, lib := range libraries {
		insertRows = append(insertRows, goqu.Record{
			colID:           lib.ID,
			colCurrentCount: lib.CurrentCount,
			colCapacity:     lib.Capacity,
		})
	}

	insertQuery, _, insertBuildErr := goqu.Dialect(dialectPostgres).
		Insert(s.tableName).
		Rows(insertRows...).
		ToSQL()
	if insertBuildErr != nil {
		s.logError(ctx, logMsgBuildInsertQueryFailed, insertBuildErr)
		return errors.Join(rebalance.ErrBuildingQueryFailed, insertBuildErr)
	}

	rowsAffected, _, execErr := s.executeExec(ctx, insertQuery, logActionReplaceAll)
	if execErr != nil {
		return execErr
	}

	s.logOperation(ctx, logMsgStockReplaced, logAttrLibraryCount, rowsAffected)

	return nil
}

// executeQuery executes the SQL query and returns rows with timing information.
func (s Store) executeQuery(ctx context.Context, sqlQuery string, action string) (
	adapters.DBRows,
	queryDuration,
	error,
) {

	start := time.Now()
	rows, queryErr := s.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	s.logQueryWithDuration(ctx, sqlQuery, action, duration)

	if queryErr != nil {
		s.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		s.recordCounter(ctx, metricDatabaseErrors, statusError)

		return nil, duration, errors.Join(rebalance.ErrQueryingLibrariesFailed, queryErr)
	}

	return rows, duration, nil
}

// executeExec executes the SQL statement and returns rows affected and duration.
func (s Store) executeExec(ctx context.Context, sqlQuery string, action string) (
	rowsAffectedInt64,
	queryDuration,
	error,
) {

	start := time.Now()
	result, execErr := s.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	s.logQueryWithDuration(ctx, sqlQuery, action, duration)

	if execErr != nil {
		s.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)

		return 0, duration, errors.Join(rebalance.ErrApplyingTransferFailed, execErr)
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		s.logError(ctx, logMsgRowsAffectedFailed, rowsAffectedErr)

		return 0, duration, errors.Join(rebalance.ErrGettingRowsAffectedFailed, rowsAffectedErr)
	}

	return rowsAffected, duration, nil
}

// closeRows safely closes database rows and logs any errors.
func (s Store) closeRows(rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		if s.logger != nil {
			s.logger.Warn(logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		}
	}
}

// processLibraryRows converts database rows into validated library records.
func (s Store) processLibraryRows(ctx context.Context, rows adapters.DBRows) ([]rebalance.Library, error) {
	libraries := make([]rebalance.Library, 0)
	row := libraryRow{}

	for rows.Next() {
		if scanErr := rows.Scan(&row.id, &row.currentCount, &row.capacity); scanErr != nil {
			s.logError(ctx, logMsgScanRowFailed, scanErr)
			return nil, errors.Join(rebalance.ErrScanningDBRowFailed, scanErr)
		}

		library, buildErr := rebalance.BuildLibrary(row.id, row.currentCount, row.capacity)
		if buildErr != nil {
			s.logError(ctx, logMsgBuildLibraryFailed, buildErr, logAttrLibraryID, row.id)
			return nil, buildErr
		}

		libraries = append(libraries, library)
	}

	return libraries, nil
}

// classifyTransferFailure maps a rejected conditional write to a sentinel by
// re-reading the live rows. Classification is best-effort: the state may have
// moved again since the write, in which case the conflict sentinel keeps the
// transfer retryable.
func (s Store) classifyTransferFailure(ctx context.Context, transfer rebalance.Transfer) error {
	sqlQuery, buildErr := s.buildSelectQuery(goqu.C(colID).In(transfer.From, transfer.To))
	if buildErr != nil {
		return rebalance.ErrTransferConflict
	}

	rows, _, queryErr := s.executeQuery(ctx, sqlQuery, logActionApplyTransfer)
	if queryErr != nil {
		return rebalance.ErrTransferConflict
	}
	defer s.closeRows(rows)

	byID := make(map[string]libraryRow, transferRowsExpected)

	for rows.Next() {
		var row libraryRow
		if scanErr := rows.Scan(&row.id, &row.currentCount, &row.capacity); scanErr != nil {
			return rebalance.ErrTransferConflict
		}
		byID[row.id] = row
	}

	source, sourceExists := byID[transfer.From]
	destination, destinationExists := byID[transfer.To]

	switch {
	case !sourceExists:
		return errors.Join(
			rebalance.ErrLibraryNotFound,
			fmt.Errorf("source library %q has no row in %s", transfer.From, s.tableName))

	case !destinationExists:
		return errors.Join(
			rebalance.ErrLibraryNotFound,
			fmt.Errorf("destination library %q has no row in %s", transfer.To, s.tableName))

	case source.currentCount < transfer.Quantity:
		return errors.Join(
			rebalance.ErrSourceInsufficient,
			fmt.Errorf("library %q holds %d books, transfer needs %d", transfer.From, source.currentCount, transfer.Quantity))

	case destination.currentCount+transfer.Quantity > destination.capacity:
		return errors.Join(
			rebalance.ErrDestinationFull,
			fmt.Errorf("library %q has %d slack, transfer needs %d",
				transfer.To, destination.capacity-destination.currentCount, transfer.Quantity))
	}

	return rebalance.ErrTransferConflict
}

// isCheckViolation reports whether err carries a PostgreSQL check_violation,
// regardless of which database driver produced it.
func isCheckViolation(err error) bool {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code == sqlStateCheckViolation
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == sqlStateCheckViolation
	}

	return false
}

// buildSelectQuery builds the stock read query, optionally filtered.
func (s Store) buildSelectQuery(where goqu.Expression) (sqlQueryString, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(s.tableName).
		Select(colID, colCurrentCount, colCapacity).
		Order(goqu.I(colID).Asc())

	if where != nil {
		selectStmt = selectStmt.Where(where)
	}

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		if s.logger != nil {
			s.logger.Error(logMsgBuildSelectQueryFailed, logAttrError, toSQLErr.Error())
		}

		return "", errors.Join(rebalance.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// buildTransferQuery builds the conditional pairwise UPDATE for one transfer.
//
// The WHERE clause restricts the statement to the two endpoint rows and
// guards it with live-state re-validation of both: the statement affects
// either both rows or none, which makes the decrement/increment pair atomic
// without explicit locking.
func (s Store) buildTransferQuery(transfer rebalance.Transfer) (sqlQueryString, error) {
	updateStmt := goqu.Dialect(dialectPostgres).
		Update(s.tableName).
		Set(goqu.Record{
			colCurrentCount: goqu.L(
				"CASE "+colID+" WHEN ? THEN "+colCurrentCount+" - ? ELSE "+colCurrentCount+" + ? END",
				transfer.From, transfer.Quantity, transfer.Quantity),
		}).
		Where(
			goqu.C(colID).In(transfer.From, transfer.To),
			goqu.L(
				"EXISTS (SELECT 1 FROM "+s.tableName+" AS src WHERE src."+colID+" = ? AND src."+colCurrentCount+" >= ?)",
				transfer.From, transfer.Quantity),
			goqu.L(
				"EXISTS (SELECT 1 FROM "+s.tableName+" AS dst WHERE dst."+colID+" = ? AND dst."+colCurrentCount+" + ? <= dst."+colCapacity+")",
				transfer.To, transfer.Quantity),
		)

	sqlQuery, _, toSQLErr := updateStmt.ToSQL()
	if toSQLErr != nil {
		if s.logger != nil {
			s.logger.Error(logMsgBuildUpdateQueryFailed, logAttrError, toSQLErr.Error())
		}

		return "", errors.Join(rebalance.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// buildIntakeQuery builds the clamped intake UPDATE. A CTE captures the
// previous count so that the overflow can be computed from a single
// round-trip: RETURNING yields previous count, new count, and capacity.
func (s Store) buildIntakeQuery(id string, quantity int) (sqlQueryString, error) {
	builder := goqu.Dialect(dialectPostgres)

	prevStmt := builder.
		From(s.tableName).
		Select(goqu.C(colCurrentCount).As(aliasPreviousCount)).
		Where(goqu.C(colID).Eq(id))

	updateStmt := builder.
		Update(s.tableName).
		With(ctePrev, prevStmt).
		Set(goqu.Record{
			colCurrentCount: goqu.L("LEAST("+colCurrentCount+" + ?, "+colCapacity+")", quantity),
		}).
		Where(goqu.C(colID).Eq(id)).
		Returning(
			goqu.L("(SELECT "+aliasPreviousCount+" FROM "+ctePrev+")"),
			goqu.C(colCurrentCount),
			goqu.C(colCapacity),
		)

	sqlQuery, _, toSQLErr := updateStmt.ToSQL()
	if toSQLErr != nil {
		if s.logger != nil {
			s.logger.Error(logMsgBuildUpdateQueryFailed, logAttrError, toSQLErr.Error())
		}

		return "", errors.Join(rebalance.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// Store satisfies the executor's live-store contract.
var _ rebalance.TransferStore = Store{}
