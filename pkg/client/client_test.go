//nolint:funlen,errcheck // ok for tests
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/lanerace-service-go/pkg/auth"
	"github.com/mpapenbr/lanerace-service-go/pkg/endpoints/api"
	"github.com/mpapenbr/lanerace-service-go/pkg/events"
	"github.com/mpapenbr/lanerace-service-go/pkg/game"
	"github.com/mpapenbr/lanerace-service-go/pkg/permission"
	"github.com/mpapenbr/lanerace-service-go/pkg/service"
	"github.com/mpapenbr/lanerace-service-go/version"
)

const token = "op-token"

func playerToken(addr game.Address) string {
	return "secret-" + string(addr)
}

func authOptions() []auth.Option {
	ret := []auth.Option{
		auth.WithOperatorToken(token),
		auth.WithOperatorAddress("op"),
	}
	for i := 0; i < game.NumLanes/2; i++ {
		p := game.Address(fmt.Sprintf("p%d", i))
		ret = append(ret, auth.WithPlayerToken(p, playerToken(p)))
	}
	return ret
}

func asPlayer(base string, addr game.Address) *Client {
	return New(base, WithToken(playerToken(addr)))
}

func startServer(t *testing.T) string {
	t.Helper()
	hub := events.NewHub()
	svc := service.NewGameService(
		service.WithGame(game.New(game.WithOperator("op"))),
		service.WithPublisher(hub))
	pe, err := permission.NewOpaPermissionEvaluator()
	require.NoError(t, err)
	s := api.NewServer(
		api.WithGameService(svc),
		api.WithPermissionEvaluator(pe),
		api.WithAuthenticator(auth.NewAuthenticator(authOptions()...)),
		api.WithEventHub(hub))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		hub.Close()
	})
	return ts.URL
}

func TestClient_RaceFlow(t *testing.T) {
	base := startServer(t)
	ctx := context.Background()
	operator := New(base, WithToken(token))

	for i := 0; i < 10; i++ {
		p := asPlayer(base, game.Address(fmt.Sprintf("p%d", i)))
		ticket, err := p.BuyTicket(ctx, 2*i)
		require.NoError(t, err)
		assert.Equal(t, 2*i, ticket.StartNumber)
	}

	race, err := operator.StartRace(ctx, 123)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), race.ID)
	assert.True(t, game.IsPermutation(race.WinnerPositions))

	winner := race.Lanes[race.WinnerPositions[0]]
	resp, err := asPlayer(base, winner).Claim(ctx, race.ID)
	require.NoError(t, err)
	assert.Equal(t, game.WinnerReward, resp.Awarded)
	assert.Equal(t, game.WinnerReward, resp.Points)

	view, err := operator.LatestRace(ctx)
	require.NoError(t, err)
	assert.True(t, view.Claimed)
	assert.Equal(t, winner, view.ClaimedBy)

	player, err := operator.Player(ctx, winner)
	require.NoError(t, err)
	assert.Equal(t, game.WinnerReward, player.Points)

	st, err := operator.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), st.RaceCount)
	assert.Equal(t, "open", st.PhaseName)
}

func TestClient_APIError(t *testing.T) {
	base := startServer(t)
	ctx := context.Background()
	p := asPlayer(base, "p0")

	_, err := p.BuyTicket(ctx, 5)
	require.NoError(t, err)
	_, err = asPlayer(base, "p1").BuyTicket(ctx, 6)
	require.Error(t, err)
	assert.True(t, IsCode(err, "ticket-conflict"))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 409, apiErr.Status)

	_, err = p.StartRace(ctx, 1)
	assert.True(t, IsCode(err, "permission-denied"))

	_, err = p.Race(ctx, 7)
	assert.True(t, IsCode(err, "race-not-found"))
}

func TestClient_Version(t *testing.T) {
	v, err := New(startServer(t)).Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, version.Version, v.Version)
}

func TestClient_Watch(t *testing.T) {
	base := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan *events.Event, 4)
	done := make(chan error, 1)
	go func() {
		done <- New(base).Watch(ctx, func(e *events.Event) error {
			got <- e
			return nil
		})
	}()

	first := <-got
	assert.Equal(t, events.KindSnapshot, first.Kind)

	_, err := asPlayer(base, "p3").BuyTicket(ctx, 3)
	require.NoError(t, err)
	second := <-got
	assert.Equal(t, events.KindTicketBought, second.Kind)
	require.NotNil(t, second.Ticket)
	assert.Equal(t, 3, second.Ticket.StartNumber)

	cancel()
	assert.NoError(t, <-done)
}

func TestClient_Credentials(t *testing.T) {
	var got []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = []string{r.Header.Get(auth.TokenHeader), r.Header.Get(auth.AuthorizationHeader)}
		w.Write([]byte(`{"version":"v0.1.0"}`))
	}))
	defer ts.Close()

	_, err := New(ts.URL, WithIDToken("raw-id-token")).Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"", "Bearer raw-id-token"}, got)

	_, err = New(ts.URL, WithToken("api")).Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"api", ""}, got)
}
