// Package pgxutil bridges the database/sql pool to native pgx transactions.
// The repositories hold a *sql.DB for pooling and migrations, but the claim
// and ingest paths need pgx semantics (pgx.ErrNoRows, row locking inside an
// explicit transaction), so they borrow the underlying pgx connection for the
// duration of one transaction.
package pgxutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// TxConfig groups the options for WithPgxTx.
type TxConfig struct {
	Opts *sql.TxOptions
	Fn   func(pgx.Tx) error
}

// WithPgxTx runs fn inside a pgx transaction on a connection borrowed from
// the pool. The transaction commits when fn returns nil and rolls back
// otherwise.
func WithPgxTx(ctx context.Context, db *sql.DB, cfg TxConfig) error {
	return withPgxConn(ctx, db, func(conn *pgx.Conn) error {
		tx, err := conn.BeginTx(ctx, toPgxTxOptions(cfg.Opts))
		if err != nil {
			return fmt.Errorf("begin pgx tx: %w", err)
		}
		defer func() {
			// Rollback after a successful commit reports ErrTxClosed.
			_ = tx.Rollback(ctx)
		}()

		if fnErr := cfg.Fn(tx); fnErr != nil {
			return fnErr
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			return fmt.Errorf("commit pgx tx: %w", commitErr)
		}
		return nil
	})
}

// withPgxConn checks a connection out of the pool and exposes its native
// *pgx.Conn to fn. The connection returns to the pool when fn completes.
func withPgxConn(ctx context.Context, db *sql.DB, fn func(*pgx.Conn) error) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer conn.Close()

	return conn.Raw(func(dc any) error {
		std, ok := dc.(*stdlib.Conn)
		if !ok {
			return errors.New("unexpected driver connection type; expected *stdlib.Conn")
		}
		return fn(std.Conn())
	})
}

func toPgxTxOptions(opts *sql.TxOptions) pgx.TxOptions {
	if opts == nil {
		return pgx.TxOptions{}
	}

	var iso pgx.TxIsoLevel
	switch opts.Isolation {
	case sql.LevelSerializable, sql.LevelLinearizable:
		iso = pgx.Serializable
	case sql.LevelRepeatableRead, sql.LevelSnapshot:
		iso = pgx.RepeatableRead
	case sql.LevelReadCommitted, sql.LevelWriteCommitted:
		iso = pgx.ReadCommitted
	case sql.LevelReadUncommitted:
		iso = pgx.ReadUncommitted
	default:
		iso = pgx.TxIsoLevel("") // server default
	}

	mode := pgx.ReadWrite
	if opts.ReadOnly {
		mode = pgx.ReadOnly
	}
	return pgx.TxOptions{IsoLevel: iso, AccessMode: mode}
}
