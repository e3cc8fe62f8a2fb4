//nolint:whitespace // can't make both editor and linter happy
package player

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/mpapenbr/lanerace-service-go/pkg/game"
	"github.com/mpapenbr/lanerace-service-go/pkg/repository"
	"github.com/mpapenbr/lanerace-service-go/pkg/repository/api"
	pgCtx "github.com/mpapenbr/lanerace-service-go/pkg/repository/pg/context"
)

type repo struct {
	conn repository.Querier
}

var _ api.PlayerRepository = (*repo)(nil)

func NewPlayerRepository(conn repository.Querier) api.PlayerRepository {
	return &repo{conn: conn}
}

func (r *repo) Upsert(
	ctx context.Context,
	addr game.Address,
	info game.PlayerInfo,
) error {
	numbers := []int32{int32(info.Numbers[0]), int32(info.Numbers[1])}
	_, err := pgCtx.Executor(ctx, r.conn).Exec(ctx, `
	insert into player (
		address, numbers, points, unclaimed_points
	) values ($1,$2,$3,$4)
	on conflict (address) do update set
		numbers=excluded.numbers,
		points=excluded.points,
		unclaimed_points=excluded.unclaimed_points,
		updated_at=now()
	`,
		string(addr), numbers, info.Points, info.UnclaimedPoints,
	)
	return err
}

func (r *repo) LoadByAddress(
	ctx context.Context,
	addr game.Address,
) (*api.PlayerRecord, error) {
	row := pgCtx.Executor(ctx, r.conn).QueryRow(ctx, `
	select p.address, p.numbers, p.points, p.unclaimed_points, p.updated_at
	from player p where p.address=$1
	`, string(addr))

	var item api.PlayerRecord
	var address string
	var numbers []int32
	if err := row.Scan(
		&address,
		&numbers,
		&item.Points,
		&item.UnclaimedPoints,
		&item.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNoData
		}
		return nil, err
	}
	item.Address = game.Address(address)
	for i := 0; i < len(numbers) && i < len(item.Numbers); i++ {
		item.Numbers[i] = int(numbers[i])
	}
	return &item, nil
}
