//nolint:funlen // ok for tests
package game

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const operator Address = "operator"

func player(i int) Address {
	return Address(fmt.Sprintf("player%d", i))
}

// fillField lets 10 players buy the tickets 0,2,4,...,18
func fillField(t *testing.T, g *Game) {
	t.Helper()
	for i := 0; i < NumLanes/2; i++ {
		_, err := g.BuyTicket(player(i), i*2)
		require.NoError(t, err)
	}
}

func TestBuyTicket(t *testing.T) {
	type args struct {
		caller      Address
		startNumber int
	}
	tests := []struct {
		name    string
		prepare func(g *Game)
		args    args
		wantErr error
	}{
		{
			name: "first lane",
			args: args{caller: player(1), startNumber: 0},
		},
		{
			name: "last possible lane",
			args: args{caller: player(1), startNumber: MaxStartNumber},
		},
		{
			name:    "negative",
			args:    args{caller: player(1), startNumber: -1},
			wantErr: ErrOutOfRange,
		},
		{
			name:    "second lane would be outside",
			args:    args{caller: player(1), startNumber: NumLanes - 1},
			wantErr: ErrOutOfRange,
		},
		{
			name:    "same ticket twice",
			prepare: func(g *Game) { g.BuyTicket(player(1), 5) },
			args:    args{caller: player(1), startNumber: 5},
			wantErr: ErrTicketConflict,
		},
		{
			name:    "second ticket in cycle",
			prepare: func(g *Game) { g.BuyTicket(player(1), 5) },
			args:    args{caller: player(1), startNumber: 10},
			wantErr: ErrTicketConflict,
		},
		{
			name:    "lane taken by other player",
			prepare: func(g *Game) { g.BuyTicket(player(2), 5) },
			args:    args{caller: player(1), startNumber: 5},
			wantErr: ErrTicketConflict,
		},
		{
			name:    "overlapping upper lane",
			prepare: func(g *Game) { g.BuyTicket(player(2), 6) },
			args:    args{caller: player(1), startNumber: 5},
			wantErr: ErrTicketConflict,
		},
		{
			name:    "overlapping lower lane",
			prepare: func(g *Game) { g.BuyTicket(player(2), 4) },
			args:    args{caller: player(1), startNumber: 5},
			wantErr: ErrTicketConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(WithOperator(operator))
			if tt.prepare != nil {
				tt.prepare(g)
			}
			before := g.Status()
			_, err := g.BuyTicket(tt.args.caller, tt.args.startNumber)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, before, g.Status(), "state must not change")
				return
			}
			require.NoError(t, err)
			info := g.PlayerInfo(tt.args.caller)
			assert.Equal(t,
				[2]int{tt.args.startNumber, tt.args.startNumber + 1}, info.Numbers)
			st := g.Status()
			assert.Equal(t, tt.args.caller, st.Lanes[tt.args.startNumber])
			assert.Equal(t, tt.args.caller, st.Lanes[tt.args.startNumber+1])
		})
	}
}

func TestBuyTicket_AllStartNumbers(t *testing.T) {
	for n := 0; n <= MaxStartNumber; n++ {
		g := New(WithOperator(operator))
		_, err := g.BuyTicket(player(n), n)
		require.NoError(t, err, "start %d", n)
		assert.Equal(t, [2]int{n, n + 1}, g.PlayerInfo(player(n)).Numbers)
	}
}

func TestBuyTicket_ConflictMessage(t *testing.T) {
	g := New(WithOperator(operator))
	_, err := g.BuyTicket(player(1), 5)
	require.NoError(t, err)
	_, err = g.BuyTicket(player(1), 5)
	assert.EqualError(t, err, "no allowed")
}

func TestPlayerInfo_Unknown(t *testing.T) {
	g := New(WithOperator(operator))
	assert.Equal(t, PlayerInfo{}, g.PlayerInfo("nobody"))
}

func TestStartRace(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		fill    bool
		caller  Address
		wantErr error
	}{
		{name: "operator with full field", fill: true, caller: operator},
		{name: "not operator", fill: true, caller: player(1), wantErr: ErrUnauthorized},
		{name: "field incomplete", caller: operator, wantErr: ErrFieldIncomplete},
		{
			name:   "partial field allowed",
			opts:   []Option{WithRequireFullField(false)},
			caller: operator,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(append([]Option{WithOperator(operator)}, tt.opts...)...)
			if tt.fill {
				fillField(t, g)
			}
			before := g.Status()
			r, err := g.StartRace(tt.caller, 123)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, before, g.Status())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, uint64(0), r.ID)
			assert.True(t, IsPermutation(r.WinnerPositions))
			assert.Equal(t, before.Lanes, r.Lanes)
		})
	}
}

func TestStartRace_NoOperatorConfigured(t *testing.T) {
	g := New(WithRequireFullField(false))
	_, err := g.StartRace(NoAddress, 1)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestStartRace_SnapshotAndReset(t *testing.T) {
	g := New(WithOperator(operator))
	fillField(t, g)
	lanes := g.Status().Lanes

	r, err := g.StartRace(operator, 123)
	require.NoError(t, err)
	for lane := 0; lane < NumLanes; lane++ {
		assert.Equal(t, lanes[lane], r.Lanes[lane], "lane %d", lane)
	}

	st := g.Status()
	assert.Equal(t, PhaseOpen, st.Phase)
	assert.Equal(t, uint64(1), st.Cycle)
	assert.Equal(t, 0, st.Occupied)

	// a new cycle accepts tickets of the same players again
	_, err = g.BuyTicket(player(0), 0)
	assert.NoError(t, err)

	// the stored race is not affected by the new cycle
	stored, err := g.Race(0)
	require.NoError(t, err)
	assert.Equal(t, r, stored)
}

func TestStartRace_IncreasingIDs(t *testing.T) {
	g := New(WithOperator(operator))
	for want := uint64(0); want < 3; want++ {
		fillField(t, g)
		r, err := g.StartRace(operator, int64(want))
		require.NoError(t, err)
		assert.Equal(t, want, r.ID)
	}
	_, err := g.Race(3)
	assert.ErrorIs(t, err, ErrRaceNotFound)
}

func TestStartRace_Deterministic(t *testing.T) {
	a := New(WithOperator(operator))
	b := New(WithOperator(operator))
	fillField(t, a)
	fillField(t, b)
	ra, err := a.StartRace(operator, 123)
	require.NoError(t, err)
	rb, err := b.StartRace(operator, 123)
	require.NoError(t, err)
	if diff := cmp.Diff(ra, rb); diff != "" {
		t.Errorf("races differ (-a +b):\n%s", diff)
	}
}

func TestReopenManual(t *testing.T) {
	g := New(WithOperator(operator), WithReopen(ReopenManual))
	fillField(t, g)
	_, err := g.StartRace(operator, 1)
	require.NoError(t, err)
	assert.Equal(t, PhaseClosed, g.Status().Phase)

	_, err = g.BuyTicket(player(1), 0)
	assert.ErrorIs(t, err, ErrSalesClosed)
	_, err = g.StartRace(operator, 2)
	assert.ErrorIs(t, err, ErrSalesClosed)

	_, err = g.OpenSales(player(1))
	assert.ErrorIs(t, err, ErrUnauthorized)
	opened, err := g.OpenSales(operator)
	require.NoError(t, err)
	assert.True(t, opened)
	_, err = g.BuyTicket(player(1), 0)
	assert.NoError(t, err)

	opened, err = g.OpenSales(operator)
	require.NoError(t, err)
	assert.False(t, opened, "sales were already open")
}

func TestSetPolicy(t *testing.T) {
	g := New(WithOperator(operator))
	assert.Equal(t, DefaultPolicy(), g.Policy())

	g.SetPolicy(Policy{Reopen: ReopenManual})
	_, err := g.BuyTicket(player(1), 0)
	require.NoError(t, err)
	_, err = g.StartRace(operator, 1)
	require.NoError(t, err, "a partial field is allowed")
	assert.Equal(t, PhaseClosed, g.Status().Phase)

	g.SetPolicy(DefaultPolicy())
	assert.Equal(t, PhaseOpen, g.Status().Phase)
	assert.Equal(t, DefaultPolicy(), g.Status().Policy)
	_, err = g.StartRace(operator, 2)
	assert.ErrorIs(t, err, ErrFieldIncomplete)
}

func TestReopenPolicyText(t *testing.T) {
	for _, p := range []ReopenPolicy{ReopenImmediately, ReopenManual} {
		text, err := p.MarshalText()
		require.NoError(t, err)
		var got ReopenPolicy
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, p, got)
	}
	var p ReopenPolicy
	assert.Error(t, p.UnmarshalText([]byte("sometimes")))
}

func TestClearNumbers(t *testing.T) {
	for _, enabled := range []bool{false, true} {
		t.Run(fmt.Sprintf("clear=%v", enabled), func(t *testing.T) {
			g := New(WithOperator(operator), WithClearNumbers(enabled))
			fillField(t, g)
			_, err := g.StartRace(operator, 1)
			require.NoError(t, err)
			got := g.PlayerInfo(player(3)).Numbers
			if enabled {
				assert.Equal(t, [2]int{}, got)
			} else {
				assert.Equal(t, [2]int{6, 7}, got)
			}
		})
	}
}

func TestClaim(t *testing.T) {
	g := New(WithOperator(operator))
	fillField(t, g)
	r, err := g.StartRace(operator, 123)
	require.NoError(t, err)
	winner := r.Lanes[r.WinnerPositions[0]]
	require.NotEqual(t, NoAddress, winner)

	for i := 0; i < NumLanes/2; i++ {
		if player(i) == winner {
			continue
		}
		_, err := g.Claim(player(i), r.ID)
		assert.ErrorIs(t, err, ErrNotWinner, "player %d", i)
	}
	assert.Equal(t, int64(0), g.PlayerInfo(winner).Points)

	awarded, err := g.Claim(winner, r.ID)
	require.NoError(t, err)
	assert.Equal(t, WinnerReward, awarded)
	assert.Equal(t, int64(500), g.PlayerInfo(winner).Points)

	_, err = g.Claim(winner, r.ID)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
	assert.Equal(t, int64(500), g.PlayerInfo(winner).Points)

	claimer, ok := g.ClaimedBy(r.ID)
	assert.True(t, ok)
	assert.Equal(t, winner, claimer)

	_, err = g.Claim(winner, r.ID+1)
	assert.ErrorIs(t, err, ErrRaceNotFound)
}

func TestClaim_EmptyWinnerLane(t *testing.T) {
	g := New(WithOperator(operator), WithRequireFullField(false))
	r, err := g.StartRace(operator, 7)
	require.NoError(t, err)
	_, err = g.Claim(NoAddress, r.ID)
	assert.ErrorIs(t, err, ErrNotWinner)
}

func TestConsolation(t *testing.T) {
	rule := func(r *Race, lane, place int) int64 {
		if place == 2 {
			return 100
		}
		return 0
	}
	g := New(WithOperator(operator), WithConsolation(rule))
	fillField(t, g)
	r, err := g.StartRace(operator, 123)
	require.NoError(t, err)

	second := r.Lanes[r.WinnerPositions[1]]
	winner := r.Winner()
	if second == winner {
		// the winner holds both lanes of its ticket, nothing to observe
		t.Skip("winner also finished second")
	}
	assert.Equal(t, int64(100), g.PlayerInfo(second).UnclaimedPoints)
	assert.Equal(t, int64(0), g.PlayerInfo(winner).UnclaimedPoints)
}

// 10 players fill the lane space, the operator starts race 0 with seed 123
// and the winner ends up with 500 points.
func TestScenario_TenPlayers(t *testing.T) {
	g := New(WithOperator(operator))
	fillField(t, g)
	_, err := g.StartRace(operator, 123)
	require.NoError(t, err)

	r, err := g.Race(0)
	require.NoError(t, err)
	assert.Len(t, r.WinnerPositions, NumLanes)
	assert.ElementsMatch(t, lo.Range(NumLanes), r.WinnerPositions[:])

	winner := r.Lanes[r.WinnerPositions[0]]
	_, err = g.Claim(winner, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(500), g.PlayerInfo(winner).Points)
}

func TestSnapshotRestore(t *testing.T) {
	g := New(WithOperator(operator))
	_, err := g.BuyTicket(player(1), 0)
	require.NoError(t, err)
	snap := g.Snapshot()
	before := g.Status()

	fillRest := func() {
		for i := 1; i < NumLanes/2; i++ {
			g.BuyTicket(player(i+1), i*2)
		}
	}
	fillRest()
	_, err = g.StartRace(operator, 5)
	require.NoError(t, err)

	g.SetPolicy(Policy{Reopen: ReopenManual})

	g.Restore(snap)
	assert.Equal(t, before, g.Status())
	assert.Equal(t, DefaultPolicy(), g.Policy())
	_, err = g.Race(0)
	assert.True(t, errors.Is(err, ErrRaceNotFound))
}
