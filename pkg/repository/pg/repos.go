package pg

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mpapenbr/lanerace-service-go/pkg/repository/api"
	"github.com/mpapenbr/lanerace-service-go/pkg/repository/pg/journal"
	"github.com/mpapenbr/lanerace-service-go/pkg/repository/pg/player"
	"github.com/mpapenbr/lanerace-service-go/pkg/repository/pg/race"
)

type repositories struct {
	journal api.JournalRepository
	race    api.RaceRepository
	player  api.PlayerRepository
}

var _ api.Repositories = (*repositories)(nil)

func NewRepositories(pool *pgxpool.Pool) api.Repositories {
	return &repositories{
		journal: journal.NewJournalRepository(pool),
		race:    race.NewRaceRepository(pool),
		player:  player.NewPlayerRepository(pool),
	}
}

func (r *repositories) Journal() api.JournalRepository {
	return r.journal
}

func (r *repositories) Race() api.RaceRepository {
	return r.race
}

func (r *repositories) Player() api.PlayerRepository {
	return r.player
}
