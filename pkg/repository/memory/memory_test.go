package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/lanerace-service-go/pkg/game"
	"github.com/mpapenbr/lanerace-service-go/pkg/repository"
	"github.com/mpapenbr/lanerace-service-go/pkg/repository/api"
)

func sampleRace(id uint64) *game.Race {
	r := &game.Race{ID: id, Seed: int64(id), WinnerPositions: game.ComputeFinishOrder(int64(id))}
	r.Lanes[0] = "alice"
	return r
}

func TestJournalAppend(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	for i := range 3 {
		e := &api.JournalEntry{
			ID:     uuid.Must(uuid.NewV4()),
			Kind:   api.KindBuyTicket,
			Caller: "alice",
			Arg:    int64(i),
		}
		seq, err := s.Journal().Append(ctx, e)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), seq)
		assert.False(t, e.CreatedAt.IsZero())
	}
	all, err := s.Journal().LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, e := range all {
		assert.Equal(t, int64(i), e.Arg)
	}
	cnt, err := s.Journal().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), cnt)
}

func TestRaceRepo(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, err := s.Race().LoadLatest(ctx)
	assert.ErrorIs(t, err, repository.ErrNoData)

	require.NoError(t, s.Race().Create(ctx, sampleRace(0)))
	require.NoError(t, s.Race().Create(ctx, sampleRace(1)))
	assert.Error(t, s.Race().Create(ctx, sampleRace(1)))

	latest, err := s.Race().LoadLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), latest.ID)

	require.NoError(t, s.Race().MarkClaimed(ctx, 0, "alice"))
	assert.ErrorIs(t, s.Race().MarkClaimed(ctx, 0, "alice"), repository.ErrNoData)
	assert.ErrorIs(t, s.Race().MarkClaimed(ctx, 7, "alice"), repository.ErrNoData)

	rec, err := s.Race().LoadByID(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, game.Address("alice"), rec.ClaimedBy)
	assert.Equal(t, game.ComputeFinishOrder(0), rec.WinnerPositions)

	_, err = s.Race().LoadByID(ctx, 9)
	assert.ErrorIs(t, err, repository.ErrNoData)
}

func TestPlayerRepo(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, err := s.Player().LoadByAddress(ctx, "bob")
	assert.ErrorIs(t, err, repository.ErrNoData)

	require.NoError(t, s.Player().Upsert(ctx, "bob", game.PlayerInfo{Numbers: [2]int{3, 4}}))
	require.NoError(t, s.Player().Upsert(ctx, "bob", game.PlayerInfo{Numbers: [2]int{3, 4}, Points: 500}))
	rec, err := s.Player().LoadByAddress(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, [2]int{3, 4}, rec.Numbers)
	assert.Equal(t, int64(500), rec.Points)
}

func TestRunInTxRollback(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Race().Create(ctx, sampleRace(0)))

	errBoom := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.Journal().Append(ctx, &api.JournalEntry{Kind: api.KindClaim}); err != nil {
			return err
		}
		if err := s.Race().MarkClaimed(ctx, 0, "alice"); err != nil {
			return err
		}
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)

	cnt, _ := s.Journal().Count(ctx)
	assert.Equal(t, int64(0), cnt)
	rec, err := s.Race().LoadByID(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, game.NoAddress, rec.ClaimedBy)

	err = s.RunInTx(ctx, func(ctx context.Context) error {
		return s.Race().MarkClaimed(ctx, 0, "alice")
	})
	require.NoError(t, err)
	rec, _ = s.Race().LoadByID(ctx, 0)
	assert.Equal(t, game.Address("alice"), rec.ClaimedBy)
}
