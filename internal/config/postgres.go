package config

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver for the sql.DB and sqlx.DB paths

	"github.com/shelfbalance/stock-rebalancer-go/rebalance/postgresengine"
)

var (
	// ErrParsingPoolConfigFailed occurs when the database URL cannot be parsed into a pool config.
	ErrParsingPoolConfigFailed = errors.New("failed to parse database pool config")

	// ErrOpeningDatabaseFailed occurs when the database connection cannot be opened.
	ErrOpeningDatabaseFailed = errors.New("failed to open database connection")

	// ErrPingingDatabaseFailed occurs when the opened connection does not answer a ping.
	ErrPingingDatabaseFailed = errors.New("failed to ping database")
)

// PGXPool creates a configured pgx connection pool for the configured database.
func (c Config) PGXPool(ctx context.Context) (*pgxpool.Pool, error) {
	const defaultMaxConnections = int32(8)
	const defaultMinConnections = int32(2)
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 5
	const defaultHealthCheckPeriod = time.Minute
	const defaultConnectTimeout = time.Second * 5

	poolConfig, parseErr := pgxpool.ParseConfig(c.DatabaseURL)
	if parseErr != nil {
		return nil, errors.Join(ErrParsingPoolConfigFailed, parseErr)
	}

	poolConfig.MaxConns = defaultMaxConnections
	poolConfig.MinConns = defaultMinConnections
	poolConfig.MaxConnLifetime = defaultMaxConnLifetime
	poolConfig.MaxConnIdleTime = defaultMaxConnIdleTime
	poolConfig.HealthCheckPeriod = defaultHealthCheckPeriod
	poolConfig.ConnConfig.ConnectTimeout = defaultConnectTimeout

	pool, openErr := pgxpool.NewWithConfig(ctx, poolConfig)
	if openErr != nil {
		return nil, errors.Join(ErrOpeningDatabaseFailed, openErr)
	}

	if pingErr := pool.Ping(ctx); pingErr != nil {
		pool.Close()
		return nil, errors.Join(ErrPingingDatabaseFailed, pingErr)
	}

	return pool, nil
}

// SQLDB creates a configured sql.DB for the configured database using lib/pq.
func (c Config) SQLDB(ctx context.Context) (*sql.DB, error) {
	const defaultMaxOpenConnections = 50
	const defaultMaxIdleConnections = 10
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 5

	db, openErr := sql.Open("postgres", c.DatabaseURL)
	if openErr != nil {
		return nil, errors.Join(ErrOpeningDatabaseFailed, openErr)
	}

	db.SetMaxOpenConns(defaultMaxOpenConnections)
	db.SetMaxIdleConns(defaultMaxIdleConnections)
	db.SetConnMaxLifetime(defaultMaxConnLifetime)
	db.SetConnMaxIdleTime(defaultMaxConnIdleTime)

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return nil, errors.Join(ErrPingingDatabaseFailed, pingErr)
	}

	return db, nil
}

// SQLX creates a configured sqlx.DB for the configured database using lib/pq.
func (c Config) SQLX(ctx context.Context) (*sqlx.DB, error) {
	const defaultMaxOpenConnections = 50
	const defaultMaxIdleConnections = 10
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 5

	db, openErr := sqlx.Open("postgres", c.DatabaseURL)
	if openErr != nil {
		return nil, errors.Join(ErrOpeningDatabaseFailed, openErr)
	}

	db.SetMaxOpenConns(defaultMaxOpenConnections)
	db.SetMaxIdleConns(defaultMaxIdleConnections)
	db.SetConnMaxLifetime(defaultMaxConnLifetime)
	db.SetConnMaxIdleTime(defaultMaxConnIdleTime)

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return nil, errors.Join(ErrPingingDatabaseFailed, pingErr)
	}

	return db, nil
}

// OpenStore opens the database connection selected by the driver config and
// wraps it in a stock store. The returned close function releases the
// underlying connection.
func (c Config) OpenStore(ctx context.Context, options ...postgresengine.Option) (postgresengine.Store, func(), error) {
	options = append(options, postgresengine.WithTableName(c.LibrariesTable))

	switch c.Driver {
	case DriverPGX:
		pool, err := c.PGXPool(ctx)
		if err != nil {
			return postgresengine.Store{}, nil, err
		}

		store, storeErr := postgresengine.NewStoreFromPGXPool(pool, options...)
		if storeErr != nil {
			pool.Close()
			return postgresengine.Store{}, nil, storeErr
		}

		return store, pool.Close, nil

	case DriverSQLDB:
		db, err := c.SQLDB(ctx)
		if err != nil {
			return postgresengine.Store{}, nil, err
		}

		store, storeErr := postgresengine.NewStoreFromSQLDB(db, options...)
		if storeErr != nil {
			_ = db.Close()
			return postgresengine.Store{}, nil, storeErr
		}

		return store, func() { _ = db.Close() }, nil

	case DriverSQLX:
		db, err := c.SQLX(ctx)
		if err != nil {
			return postgresengine.Store{}, nil, err
		}

		store, storeErr := postgresengine.NewStoreFromSQLX(db, options...)
		if storeErr != nil {
			_ = db.Close()
			return postgresengine.Store{}, nil, storeErr
		}

		return store, func() { _ = db.Close() }, nil
	}

	return postgresengine.Store{}, nil, ErrUnknownDriver
}
