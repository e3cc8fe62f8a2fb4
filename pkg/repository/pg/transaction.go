package pg

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mpapenbr/lanerace-service-go/pkg/repository/api"
	pgCtx "github.com/mpapenbr/lanerace-service-go/pkg/repository/pg/context"
)

type pgTransaction struct {
	pool *pgxpool.Pool
}

var _ api.TransactionManager = (*pgTransaction)(nil)

func NewTransactionManager(pool *pgxpool.Pool) api.TransactionManager {
	return &pgTransaction{pool: pool}
}

// the contract with the repositories is:
// we put the current transaction into the context, the repository should first
// look in the context for an executor and then use it to execute queries
//
//nolint:whitespace //editor/linter issue
func (t *pgTransaction) RunInTx(
	ctx context.Context,
	fn func(ctx context.Context) error,
) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return pgx.BeginFunc(ctx, t.pool, func(tx pgx.Tx) error {
		return fn(pgCtx.NewContext(ctx, tx))
	})
}
