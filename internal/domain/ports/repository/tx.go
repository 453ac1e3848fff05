package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an infra-defined transaction handle (pgx.Tx for Postgres).
// Repositories accept nil and fall back to the pool.
type Tx interface{}

// TransactionManager runs fn inside a database transaction.
//
// tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx Tx) error {
//	cur, err := layouts.Find(ctx, tx, userID, surface)
//	...
//	return layouts.Upsert(ctx, tx, next)
// })
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
