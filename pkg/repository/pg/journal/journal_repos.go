//nolint:whitespace // can't make both editor and linter happy
package journal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mpapenbr/lanerace-service-go/pkg/game"
	"github.com/mpapenbr/lanerace-service-go/pkg/repository"
	"github.com/mpapenbr/lanerace-service-go/pkg/repository/api"
	pgCtx "github.com/mpapenbr/lanerace-service-go/pkg/repository/pg/context"
)

var selector = `select j.seq, j.entry_id, j.kind, j.caller, j.arg, j.created_at
	from journal j`

type repo struct {
	conn repository.Querier
}

var _ api.JournalRepository = (*repo)(nil)

func NewJournalRepository(conn repository.Querier) api.JournalRepository {
	return &repo{conn: conn}
}

func (r *repo) Append(ctx context.Context, e *api.JournalEntry) (int64, error) {
	row := pgCtx.Executor(ctx, r.conn).QueryRow(ctx, `
	insert into journal (
		entry_id, kind, caller, arg
	) values ($1,$2,$3,$4)
	returning seq, created_at
	`,
		e.ID, string(e.Kind), string(e.Caller), e.Arg,
	)
	if err := row.Scan(&e.Seq, &e.CreatedAt); err != nil {
		return 0, err
	}
	return e.Seq, nil
}

func (r *repo) LoadAll(ctx context.Context) ([]*api.JournalEntry, error) {
	rows, err := pgCtx.Executor(ctx, r.conn).Query(ctx,
		fmt.Sprintf("%s order by j.seq asc", selector))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ret := make([]*api.JournalEntry, 0)
	for rows.Next() {
		item, err := readData(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, item)
	}
	return ret, rows.Err()
}

func (r *repo) Count(ctx context.Context) (int64, error) {
	var ret int64
	err := pgCtx.Executor(ctx, r.conn).
		QueryRow(ctx, "select count(*) from journal").
		Scan(&ret)
	return ret, err
}

func readData(row pgx.Row) (*api.JournalEntry, error) {
	var item api.JournalEntry
	var kind, caller string
	if err := row.Scan(
		&item.Seq,
		&item.ID,
		&kind,
		&caller,
		&item.Arg,
		&item.CreatedAt,
	); err != nil {
		return nil, err
	}
	item.Kind = api.EntryKind(kind)
	item.Caller = game.Address(caller)
	return &item, nil
}
