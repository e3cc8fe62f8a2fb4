package verify

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/lanerace-service-go/pkg/client"
	"github.com/mpapenbr/lanerace-service-go/pkg/config"
	"github.com/mpapenbr/lanerace-service-go/pkg/game"
)

var (
	seed   int64
	raceID int64
)

func NewVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "recomputes the finishing order of a race from its seed",
		Long: `Without --race the finishing order for --seed is printed.
With --race the race is loaded from the server and its recorded order is
compared with the order computed from the recorded seed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if raceID < 0 {
				printOrder(cmd.OutOrStdout(), game.ComputeFinishOrder(seed))
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return verifyRemote(ctx, cmd.OutOrStdout(), client.New(config.APIURL), uint64(raceID))
		},
	}
	cmd.Flags().Int64Var(&seed, "seed", 0, "seed to compute the finishing order for")
	cmd.Flags().Int64Var(&raceID, "race", -1, "id of the race to verify against the server")
	cmd.Flags().StringVar(&config.APIURL,
		"api-url",
		"http://localhost:8080",
		"base url of the lane race server")
	return cmd
}

func verifyRemote(ctx context.Context, w io.Writer, c *client.Client, id uint64) error {
	view, err := c.Race(ctx, id)
	if err != nil {
		return err
	}
	if err := game.VerifyRace(&view.Race); err != nil {
		return err
	}
	fmt.Fprintf(w, "race %d (seed %d) verified\n", view.ID, view.Seed)
	printOrder(w, view.WinnerPositions)
	if winner := view.Winner(); winner != game.NoAddress {
		fmt.Fprintf(w, "winner: %s (lane %d)\n", winner, view.WinnerLane())
	}
	return nil
}

func printOrder(w io.Writer, order [game.NumLanes]int) {
	for place, lane := range order {
		fmt.Fprintf(w, "%2d. lane %2d\n", place+1, lane)
	}
}
