// Package basedata provides fixtures shared by the repository tests.
package basedata

import (
	"context"
	"fmt"
	stdlog "log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mpapenbr/lanerace-service-go/pkg/game"
	"github.com/mpapenbr/lanerace-service-go/pkg/repository/pg/race"
)

// Players returns the addresses p0..p9 used by the ten player scenario.
func Players() []game.Address {
	ret := make([]game.Address, game.NumLanes/2)
	for i := range ret {
		ret[i] = game.Address(fmt.Sprintf("p%d", i))
	}
	return ret
}

// FullField returns the lanes after p0..p9 bought the start numbers 0,2,..,18.
func FullField() game.Lanes {
	var ret game.Lanes
	for i, p := range Players() {
		ret[2*i] = p
		ret[2*i+1] = p
	}
	return ret
}

func SampleRace(id uint64, seed int64) *game.Race {
	return &game.Race{
		ID:              id,
		Seed:            seed,
		Cycle:           id,
		Lanes:           FullField(),
		WinnerPositions: game.ComputeFinishOrder(seed),
	}
}

func CreateSampleRace(pool *pgxpool.Pool, id uint64, seed int64) *game.Race {
	r := SampleRace(id, seed)
	err := pgx.BeginFunc(context.Background(), pool, func(tx pgx.Tx) error {
		return race.NewRaceRepository(tx).Create(context.Background(), r)
	})
	if err != nil {
		stdlog.Fatalf("createSampleRace: %v\n", err)
	}
	return r
}
