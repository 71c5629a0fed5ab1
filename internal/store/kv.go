package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// kvSchema creates the single BLOB-keyed table the ordered key space is
// realized on top of. SQLite compares BLOB primary keys byte-for-byte,
// which gives the exact lexicographic ordering the prefix-partitioned
// key layout requires, including the [P, P+1) range-scan trick.
const kvSchema = `
CREATE TABLE IF NOT EXISTS kv (
	k BLOB PRIMARY KEY,
	v BLOB NOT NULL
) WITHOUT ROWID;
`

// execer and queryer are satisfied by both *sql.DB and *sql.Tx, letting
// the key-value helpers below run unchanged inside or outside a
// transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func kvPut(ctx context.Context, e execer, key, value []byte) error {
	_, err := e.ExecContext(ctx, `INSERT INTO kv (k, v) VALUES (?, ?)
		ON CONFLICT(k) DO UPDATE SET v = excluded.v`, key, value)
	if err != nil {
		return fmt.Errorf("%w: put: %w", ErrStorageIO, err)
	}
	return nil
}

func kvGet(ctx context.Context, q queryer, key []byte) ([]byte, bool, error) {
	var value []byte
	err := q.QueryRowContext(ctx, `SELECT v FROM kv WHERE k = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: get: %w", ErrStorageIO, err)
	}
	return value, true, nil
}

func kvDelete(ctx context.Context, e execer, key []byte) error {
	if _, err := e.ExecContext(ctx, `DELETE FROM kv WHERE k = ?`, key); err != nil {
		return fmt.Errorf("%w: delete: %w", ErrStorageIO, err)
	}
	return nil
}

// kvRange scans every entry with a key in [lo, hi), in ascending key
// order, invoking fn for each. Returning an error from fn stops the scan
// and propagates the error.
func kvRange(ctx context.Context, q queryer, lo, hi []byte, fn func(k, v []byte) error) error {
	rows, err := q.QueryContext(ctx, `SELECT k, v FROM kv WHERE k >= ? AND k < ? ORDER BY k ASC`, lo, hi)
	if err != nil {
		return fmt.Errorf("%w: range: %w", ErrStorageIO, err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return fmt.Errorf("%w: range scan: %w", ErrStorageIO, err)
		}
		if err := fn(k, v); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: range iteration: %w", ErrStorageIO, err)
	}
	return nil
}
