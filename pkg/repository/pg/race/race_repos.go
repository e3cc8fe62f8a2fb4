//nolint:whitespace // can't make both editor and linter happy
package race

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"

	"github.com/mpapenbr/lanerace-service-go/pkg/game"
	"github.com/mpapenbr/lanerace-service-go/pkg/repository"
	"github.com/mpapenbr/lanerace-service-go/pkg/repository/api"
	pgCtx "github.com/mpapenbr/lanerace-service-go/pkg/repository/pg/context"
)

var selector = `select r.id, r.seed, r.cycle, r.lanes, r.winner_positions,
	coalesce(r.claimed_by,'')
	from race r`

type repo struct {
	conn repository.Querier
}

var _ api.RaceRepository = (*repo)(nil)

func NewRaceRepository(conn repository.Querier) api.RaceRepository {
	return &repo{conn: conn}
}

func (r *repo) Create(ctx context.Context, race *game.Race) error {
	lanes := lo.Map(race.Lanes[:], func(a game.Address, _ int) string {
		return string(a)
	})
	positions := lo.Map(race.WinnerPositions[:], func(p, _ int) int32 {
		return int32(p)
	})
	_, err := pgCtx.Executor(ctx, r.conn).Exec(ctx, `
	insert into race (
		id, seed, cycle, lanes, winner_positions
	) values ($1,$2,$3,$4,$5)
	`,
		race.ID, race.Seed, race.Cycle, lanes, positions,
	)
	return err
}

func (r *repo) MarkClaimed(ctx context.Context, id uint64, claimer game.Address) error {
	cmdTag, err := pgCtx.Executor(ctx, r.conn).Exec(ctx, `
	update race set claimed_by=$1
	where id=$2 and claimed_by is null
	`, string(claimer), id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: race %d not found or already claimed",
			repository.ErrNoData, id)
	}
	return nil
}

func (r *repo) LoadByID(ctx context.Context, id uint64) (*api.RaceRecord, error) {
	row := pgCtx.Executor(ctx, r.conn).QueryRow(ctx,
		fmt.Sprintf("%s where r.id=$1", selector), id)
	return readData(row)
}

func (r *repo) LoadLatest(ctx context.Context) (*api.RaceRecord, error) {
	row := pgCtx.Executor(ctx, r.conn).QueryRow(ctx,
		fmt.Sprintf("%s order by r.id desc limit 1", selector))
	return readData(row)
}

func readData(row pgx.Row) (*api.RaceRecord, error) {
	var item api.RaceRecord
	var lanes []string
	var positions []int32
	var claimedBy string
	if err := row.Scan(
		&item.ID,
		&item.Seed,
		&item.Cycle,
		&lanes,
		&positions,
		&claimedBy,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNoData
		}
		return nil, err
	}
	if len(lanes) != game.NumLanes || len(positions) != game.NumLanes {
		return nil, fmt.Errorf("race %d: invalid lane data", item.ID)
	}
	for i := range game.NumLanes {
		item.Lanes[i] = game.Address(lanes[i])
		item.WinnerPositions[i] = int(positions[i])
	}
	item.ClaimedBy = game.Address(claimedBy)
	return &item, nil
}
