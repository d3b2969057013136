package modelsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Execer abstracts *sql.DB / *sql.Tx / *sqlx.DB ExecContext for easy testing.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// TxBeginner starts the transaction used by ExecBatch. Satisfied by *sqlx.DB.
type TxBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

const mysqlDuplicateEntry = 1062

// Rebind rewrites the "?" placeholders of query for the configured dialect.
func (c *Converter) Rebind(query string) string {
	return sqlx.Rebind(bindType(c.config.Dialect), query)
}

// Exec renders st for table, rebinds it for the configured dialect and
// executes it.
func (c *Converter) Exec(ctx context.Context, db Execer, table string, st *Statement) (sql.Result, error) {
	q := c.Rebind(st.SQL(table))
	c.log.Debug("modelsql: exec", "mode", st.mode.String(), "query", q, "args", len(st.params))
	res, err := db.ExecContext(ctx, q, st.params...)
	if err != nil {
		return nil, wrapExecError(err)
	}
	return res, nil
}

// ExecBatch executes every row of b with one prepared statement inside one
// transaction and returns the total number of affected rows. Any failure
// rolls the transaction back.
func (c *Converter) ExecBatch(ctx context.Context, db TxBeginner, table string, b *Batch) (int64, error) {
	q := c.Rebind(b.SQL(table))
	c.log.Debug("modelsql: exec batch", "mode", b.mode.String(), "query", q, "rows", len(b.rows))

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, q)
	if err != nil {
		return 0, wrapExecError(err)
	}
	defer stmt.Close()

	var total int64
	for i, row := range b.rows {
		res, err := stmt.ExecContext(ctx, row...)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i, wrapExecError(err))
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

// bindType maps a dialect to its sqlx placeholder style.
func bindType(d Dialect) int {
	switch d {
	case Postgres:
		return sqlx.DOLLAR
	case SQLServer:
		return sqlx.AT
	default:
		return sqlx.QUESTION
	}
}

// wrapExecError marks unique-key violations reported by the supported
// drivers with ErrDuplicateKey.
func wrapExecError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return fmt.Errorf("%w: %w", ErrDuplicateKey, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgerrcode.UniqueViolation {
		return fmt.Errorf("%w: %w", ErrDuplicateKey, err)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return fmt.Errorf("%w: %w", ErrDuplicateKey, err)
	}

	return err
}
