package migrate

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/lanerace-service-go/log"
	"github.com/mpapenbr/lanerace-service-go/pkg/config"
	dbMigrate "github.com/mpapenbr/lanerace-service-go/pkg/db/migrate"
	"github.com/mpapenbr/lanerace-service-go/pkg/utils"
)

var showVersion bool

func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "performs database migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				return printVersion()
			}
			return startMigration(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&showVersion,
		"version",
		false,
		"print the current schema version and exit")

	return cmd
}

func startMigration(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	// wait for database
	timeout, err := time.ParseDuration(config.WaitForServices)
	if err != nil {
		log.Warn("Invalid duration value. Setting default 60s", log.ErrorField(err))
		timeout = 60 * time.Second
	}
	postgresAddr := utils.ExtractFromDBURL(config.DB)
	if err = utils.WaitForTCP(ctx, postgresAddr, timeout); err != nil {
		log.Fatal("database not ready", log.ErrorField(err))
	}

	if err := dbMigrate.MigrateDb(config.DB); err != nil {
		log.Error("migration failed", log.ErrorField(err))
		return err
	}
	return printVersion()
}

func printVersion() error {
	v, dirty, err := dbMigrate.Version(config.DB)
	if err != nil {
		return err
	}
	log.Info("Schema version", log.Uint32("version", uint32(v)), log.Bool("dirty", dirty))
	return nil
}
