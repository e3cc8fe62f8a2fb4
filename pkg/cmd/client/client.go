package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/lanerace-service-go/log"
	"github.com/mpapenbr/lanerace-service-go/pkg/client"
	"github.com/mpapenbr/lanerace-service-go/pkg/config"
	"github.com/mpapenbr/lanerace-service-go/pkg/events"
	"github.com/mpapenbr/lanerace-service-go/pkg/game"
	"github.com/mpapenbr/lanerace-service-go/pkg/utils"
)

const requestTimeout = 10 * time.Second

//nolint:funlen // by design
func NewClientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "commands to interact with a lane race server",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log.ResetDefault(log.DevLogger(os.Stderr, log.WarnLevel))
			if cmd.Name() == loginCmdName {
				return nil
			}
			return checkServerVersion(cmd.Context())
		},
	}
	cmd.PersistentFlags().StringVar(&config.APIURL,
		"api-url",
		"http://localhost:8080",
		"base url of the lane race server")
	cmd.PersistentFlags().StringVar(&config.APIToken,
		"token",
		"",
		"api token of the operator or a player")
	cmd.PersistentFlags().StringVar(&config.IDToken,
		"id-token",
		"",
		"OIDC ID token of the player (see client login)")
	cmd.PersistentFlags().StringVar(&config.PlayerAddress,
		"player",
		"",
		"default address for the player command")

	cmd.AddCommand(
		newLoginCmd(),
		&cobra.Command{
			Use:   "buy START_NUMBER",
			Short: "buys the ticket for lanes START_NUMBER and START_NUMBER+1",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return err
				}
				return run(cmd, func(ctx context.Context, c *client.Client) (any, error) {
					return c.BuyTicket(ctx, n)
				})
			},
		},
		&cobra.Command{
			Use:   "start SEED",
			Short: "starts a race with the given seed (operator only)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				seed, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return err
				}
				return run(cmd, func(ctx context.Context, c *client.Client) (any, error) {
					return c.StartRace(ctx, seed)
				})
			},
		},
		&cobra.Command{
			Use:   "claim RACE_ID",
			Short: "claims the prize of a race",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := strconv.ParseUint(args[0], 10, 64)
				if err != nil {
					return err
				}
				return run(cmd, func(ctx context.Context, c *client.Client) (any, error) {
					return c.Claim(ctx, id)
				})
			},
		},
		&cobra.Command{
			Use:   "open",
			Short: "reopens ticket sales (operator only)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, func(ctx context.Context, c *client.Client) (any, error) {
					return c.OpenSales(ctx)
				})
			},
		},
		&cobra.Command{
			Use:   "race [RACE_ID]",
			Short: "shows a race, the latest one if no id is given",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if len(args) == 0 {
					return run(cmd, func(ctx context.Context, c *client.Client) (any, error) {
						return c.LatestRace(ctx)
					})
				}
				id, err := strconv.ParseUint(args[0], 10, 64)
				if err != nil {
					return err
				}
				return run(cmd, func(ctx context.Context, c *client.Client) (any, error) {
					return c.Race(ctx, id)
				})
			},
		},
		&cobra.Command{
			Use:   "player [ADDRESS]",
			Short: "shows numbers and points of a player (default: --player)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				addr := game.Address(config.PlayerAddress)
				if len(args) == 1 {
					addr = game.Address(args[0])
				}
				return run(cmd, func(ctx context.Context, c *client.Client) (any, error) {
					return c.Player(ctx, addr)
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "shows the game status",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, func(ctx context.Context, c *client.Client) (any, error) {
					return c.Status(ctx)
				})
			},
		},
		&cobra.Command{
			Use:   "watch",
			Short: "prints game events until interrupted",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
				defer stop()
				return newClient().Watch(ctx, func(e *events.Event) error {
					return printJSON(cmd.OutOrStdout(), e)
				})
			},
		},
	)
	return cmd
}

func newClient() *client.Client {
	return client.New(config.APIURL,
		client.WithToken(config.APIToken),
		client.WithIDToken(config.IDToken))
}

func run(cmd *cobra.Command, f func(ctx context.Context, c *client.Client) (any, error)) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	res, err := f(ctx, newClient())
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func checkServerVersion(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	v, err := client.New(config.APIURL).Version(ctx)
	if err != nil {
		return fmt.Errorf("could not get server version: %w", err)
	}
	if !utils.CheckServerVersion(v.Version) {
		return fmt.Errorf("server version %s is not supported, need at least %s",
			v.Version, utils.RequiredServerVersion)
	}
	return nil
}
