package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned by the repositories when a row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrStale is returned when a guarded update matched no row.
	ErrStale = errors.New("store: row changed under lock")
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DB is the store handle shared by the services. It is built once at start-up
// and passed down explicitly.
type DB struct {
	builder func() dbx.Builder
	runTx   func(ctx context.Context, fn func(q dbx.Builder) error) error
	close   func() error
	dialect Dialect
}

// Open connects to a standalone database. SQLite handles get a single
// connection so that units of work are serialized, the same way PocketBase
// routes writes through its nonconcurrent pool.
func Open(driver, dsn string, lockTimeout time.Duration) (*DB, error) {
	conn, err := dbx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}

	dialect := DialectSQLite
	switch driver {
	case "postgres":
		dialect = DialectPostgres
	case "sqlite", "sqlite3":
		conn.DB().SetMaxOpenConns(1)
	default:
		conn.Close()
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	return &DB{
		builder: func() dbx.Builder { return conn },
		runTx: func(ctx context.Context, fn func(q dbx.Builder) error) error {
			return conn.TransactionalContext(ctx, nil, func(tx *dbx.Tx) error {
				if dialect == DialectPostgres && lockTimeout > 0 {
					stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", lockTimeout.Milliseconds())
					if _, err := tx.NewQuery(stmt).WithContext(ctx).Execute(); err != nil {
						return fmt.Errorf("setting lock timeout: %w", err)
					}
				}
				return fn(tx)
			})
		},
		close:   conn.Close,
		dialect: dialect,
	}, nil
}

// FromApp uses the PocketBase data.db. The app is resolved on every call
// because its connections only exist after bootstrap. Transactions begin on
// PocketBase's single write connection with the caller's context, so time
// spent queueing for that connection counts against the deadline.
func FromApp(app core.App) *DB {
	return &DB{
		builder: func() dbx.Builder { return app.DB() },
		runTx: func(ctx context.Context, fn func(q dbx.Builder) error) error {
			if conn, ok := app.NonconcurrentDB().(*dbx.DB); ok {
				return conn.TransactionalContext(ctx, nil, func(tx *dbx.Tx) error {
					return fn(tx)
				})
			}

			// Already inside a PocketBase transaction.
			if err := ctx.Err(); err != nil {
				return err
			}
			return app.RunInTransaction(func(txApp core.App) error {
				return fn(txApp.DB())
			})
		},
		close:   func() error { return nil },
		dialect: DialectSQLite,
	}
}

// Builder returns the non-transactional query builder. Never use it inside
// RunInTx; use the builder handed to the callback instead.
func (d *DB) Builder() dbx.Builder {
	return d.builder()
}

// RunInTx runs fn as one unit of work. It commits when fn returns nil and
// rolls back on any error, panic or context cancellation.
func (d *DB) RunInTx(ctx context.Context, fn func(q dbx.Builder) error) error {
	return d.runTx(ctx, fn)
}

func (d *DB) Dialect() Dialect {
	return d.dialect
}

func (d *DB) Ping(ctx context.Context) error {
	if _, err := d.builder().NewQuery("SELECT 1").WithContext(ctx).Execute(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

func (d *DB) Close() error {
	return d.close()
}

// expectOneRow turns a write that matched nothing into ErrNotFound.
func expectOneRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// forUpdate is the row lock suffix for SELECT statements.
func (d *DB) forUpdate() string {
	if d.dialect == DialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}
