package pg

import (
	"context"
	"errors"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/mpapenbr/lanerace-service-go/pkg/game"
	"github.com/mpapenbr/lanerace-service-go/testsupport/basedata"
	"github.com/mpapenbr/lanerace-service-go/testsupport/testdb"
)

func TestRunInTx(t *testing.T) {
	pool := testdb.InitTestDb(t)
	repos := NewRepositories(pool)
	tm := NewTransactionManager(pool)
	ctx := context.Background()

	errBoom := errors.New("boom")
	err := tm.RunInTx(ctx, func(ctx context.Context) error {
		if err := repos.Race().Create(ctx, basedata.SampleRace(0, 1)); err != nil {
			return err
		}
		return errBoom
	})
	assert.Assert(t, errors.Is(err, errBoom))
	_, err = repos.Race().LoadByID(ctx, 0)
	assert.Assert(t, err != nil)

	err = tm.RunInTx(ctx, func(ctx context.Context) error {
		if err := repos.Race().Create(ctx, basedata.SampleRace(0, 1)); err != nil {
			return err
		}
		return repos.Player().Upsert(ctx, "p0", game.PlayerInfo{Numbers: [2]int{0, 1}})
	})
	assert.NilError(t, err)
	got, err := repos.Race().LoadByID(ctx, 0)
	assert.NilError(t, err)
	assert.Equal(t, got.Seed, int64(1))
}
