//nolint:errcheck // testsetup
package tcpostgres

import (
	"context"
	"fmt"
	stdlog "log"
	"os"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mpapenbr/lanerace-service-go/pkg/db/migrate"
	database "github.com/mpapenbr/lanerace-service-go/pkg/db/postgres"
)

// SetupTestDb starts the lanerace test database container, migrates it and
// returns a pool connected to it.
func SetupTestDb() *pgxpool.Pool {
	ctx := context.Background()
	port, err := nat.NewPort("tcp", "5432")
	if err != nil {
		stdlog.Fatal(err)
	}
	container, err := SetupPostgres(ctx,
		WithPort(port.Port()),
		WithInitialDatabase("postgres", "password", "lanerace"),
		WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
		WithName("lanerace-service-test"),
	)
	if err != nil {
		stdlog.Fatal(err)
	}
	containerPort, _ := container.MappedPort(ctx, port)
	host, _ := container.Host(ctx)
	dbUrl := fmt.Sprintf("postgresql://postgres:password@%s:%s/lanerace",
		host, containerPort.Port())

	return migrateAndConnect(dbUrl)
}

// SetupExternalTestDb uses the database referenced by TESTDB_URL.
func SetupExternalTestDb() *pgxpool.Pool {
	return migrateAndConnect(os.Getenv("TESTDB_URL"))
}

func migrateAndConnect(dbUrl string) *pgxpool.Pool {
	if err := migrate.MigrateDb(dbUrl); err != nil {
		stdlog.Fatal(err)
	}
	return database.InitWithUrl(dbUrl)
}

func ClearJournalTable(pool *pgxpool.Pool) {
	pool.Exec(context.Background(), "delete from journal")
}

func ClearRaceTable(pool *pgxpool.Pool) {
	pool.Exec(context.Background(), "delete from race")
}

func ClearPlayerTable(pool *pgxpool.Pool) {
	pool.Exec(context.Background(), "delete from player")
}

func ClearAllTables(pool *pgxpool.Pool) {
	ClearPlayerTable(pool)
	ClearRaceTable(pool)
	ClearJournalTable(pool)
}
