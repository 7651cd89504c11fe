// Package db is a hand-rolled, sqlc-style data access layer over pgx/v5.
// It mirrors the teacher's internal/db package: a DBTX abstraction that a
// *pgxpool.Pool or a pgx.Tx both satisfy, a Queries struct holding one, and
// one method per query with manual Scan calls instead of a generated layer.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, letting Queries run
// either against the pool directly or against a transaction handed to it by
// a caller that already holds a lock/RLS-bound connection.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries is the concrete query runner. Most exported query methods issue a
// single SQL statement; RecordInventoryMovement, ReplaceOrderLines and
// ListOrders issue several in sequence on the held DBTX, and are atomic only
// when that DBTX is a transaction.
type Queries struct {
	db DBTX
}

// New wraps a DBTX (pool or transaction) in a Queries runner.
func New(dbtx DBTX) *Queries {
	return &Queries{db: dbtx}
}

// GetDBTX returns the underlying pool or transaction handle, used to start
// nested transactions or reach the raw connection.
func (q *Queries) GetDBTX() DBTX {
	return q.db
}

// WithTx returns a Queries bound to the given transaction, leaving the
// receiver untouched. Matches the teacher's handlers/common.go WithTx shape.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}
