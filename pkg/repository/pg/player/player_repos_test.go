package player

import (
	"context"
	"errors"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/mpapenbr/lanerace-service-go/pkg/game"
	"github.com/mpapenbr/lanerace-service-go/pkg/repository"
	"github.com/mpapenbr/lanerace-service-go/testsupport/testdb"
)

func TestUpsert(t *testing.T) {
	pool := testdb.InitTestDb(t)
	repo := NewPlayerRepository(pool)
	ctx := context.Background()

	_, err := repo.LoadByAddress(ctx, "p0")
	assert.Assert(t, errors.Is(err, repository.ErrNoData))

	assert.NilError(t, repo.Upsert(ctx, "p0", game.PlayerInfo{Numbers: [2]int{4, 5}}))
	got, err := repo.LoadByAddress(ctx, "p0")
	assert.NilError(t, err)
	assert.DeepEqual(t, got.PlayerInfo, game.PlayerInfo{Numbers: [2]int{4, 5}})

	assert.NilError(t, repo.Upsert(ctx, "p0",
		game.PlayerInfo{Numbers: [2]int{4, 5}, Points: 500, UnclaimedPoints: 3}))
	got, err = repo.LoadByAddress(ctx, "p0")
	assert.NilError(t, err)
	assert.Equal(t, got.Address, game.Address("p0"))
	assert.Equal(t, got.Points, int64(500))
	assert.Equal(t, got.UnclaimedPoints, int64(3))
}
