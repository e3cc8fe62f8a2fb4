package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // by design
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"connectrpc.com/grpchealth"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	otlpruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mpapenbr/lanerace-service-go/log"
	"github.com/mpapenbr/lanerace-service-go/pkg/auth"
	"github.com/mpapenbr/lanerace-service-go/pkg/config"
	"github.com/mpapenbr/lanerace-service-go/pkg/db/migrate"
	"github.com/mpapenbr/lanerace-service-go/pkg/db/postgres"
	"github.com/mpapenbr/lanerace-service-go/pkg/endpoints/api"
	"github.com/mpapenbr/lanerace-service-go/pkg/events"
	"github.com/mpapenbr/lanerace-service-go/pkg/game"
	"github.com/mpapenbr/lanerace-service-go/pkg/permission"
	"github.com/mpapenbr/lanerace-service-go/pkg/repository/memory"
	"github.com/mpapenbr/lanerace-service-go/pkg/repository/pg"
	"github.com/mpapenbr/lanerace-service-go/pkg/service"
	"github.com/mpapenbr/lanerace-service-go/pkg/utils"
)

//nolint:funlen // by design
func NewServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "starts the lane race server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startServer(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&config.ServerAddr,
		"server-addr",
		"a",
		"localhost:8080",
		"server listen address")
	cmd.Flags().StringVar(&config.Storage,
		"storage",
		"postgres",
		"where the game journal is stored (postgres, memory)")
	cmd.Flags().StringVar(&config.LogLevel,
		"log-level",
		"info",
		"controls the log level (debug, info, warn, error, fatal)")
	cmd.Flags().StringVar(&config.SQLLogLevel,
		"sql-log-level",
		"debug",
		"controls the log level for sql methods")
	cmd.Flags().StringVar(&config.LogFormat,
		"log-format",
		"json",
		"controls the log output format")
	cmd.Flags().StringVar(&config.LogConfig,
		"log-config",
		"",
		"yaml file with per logger levels, reloaded on change")
	cmd.Flags().BoolVar(&config.EnableTelemetry,
		"enable-telemetry",
		false,
		"enables telemetry")
	cmd.Flags().StringVar(&config.TelemetryEndpoint,
		"telemetry-endpoint",
		"localhost:4317",
		"Endpoint that receives open telemetry data")
	cmd.Flags().StringVar(&config.TelemetryOutput,
		"telemetry-output",
		"otlp",
		"where telemetry data is sent (otlp, stdout)")
	cmd.Flags().IntVar(&config.ProfilingPort,
		"profiling-port",
		0,
		"port to use for providing profiling data")
	cmd.Flags().StringSliceVar(&config.AllowedOrigins,
		"allowed-origins",
		[]string{},
		"CORS and websocket origins (default: all)")
	cmd.Flags().StringVar(&config.OperatorAddress,
		"operator",
		"operator",
		"address of the game operator")
	cmd.Flags().StringVar(&config.OperatorToken,
		"operator-token",
		"",
		"api token of the operator")
	cmd.Flags().StringVar(&config.OperatorTokenHash,
		"operator-token-hash",
		"",
		"sha256 hex hash of the operator api token (used if operator-token is empty)")
	cmd.Flags().StringSliceVar(&config.PlayerTokenHashes,
		"player-tokens",
		[]string{},
		"player api tokens as address=sha256hex")
	cmd.Flags().StringVar(&config.OIDCIssuerURL,
		"oidc-issuer",
		"",
		"issuer url of the OIDC provider for player ID tokens")
	cmd.Flags().StringVar(&config.OIDCClientID,
		"oidc-client-id",
		"lanerace",
		"client id the player ID tokens are issued for")
	cmd.Flags().StringVar(&config.ReopenPolicy,
		"reopen",
		"immediately",
		"when ticket sales reopen after a race (immediately, manual)")
	cmd.Flags().BoolVar(&config.RequireFullField,
		"require-full-field",
		true,
		"a race can only be started when all lanes are reserved")
	cmd.Flags().BoolVar(&config.ClearNumbers,
		"clear-numbers",
		false,
		"reset the player numbers when a race starts")
	cmd.Flags().StringVar(&config.NatsURL,
		"nats-url",
		"",
		"publish game events to this NATS server")
	return cmd
}

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

//nolint:funlen,cyclop // by design
func startServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger, sqlLogger := setupLogger()
	log.ResetDefault(logger)
	if config.LogConfig != "" {
		if err := log.LoadRules(config.LogConfig); err != nil {
			log.Warn("Could not load log config", log.ErrorField(err))
		} else {
			go func() {
				if err := log.WatchRules(ctx, config.LogConfig); err != nil {
					log.Warn("log config watcher stopped", log.ErrorField(err))
				}
			}()
		}
	}

	log.Debug("Config:",
		log.String("db", config.DB),
		log.String("storage", config.Storage),
		log.String("addr", config.ServerAddr),
		log.String("operator", config.OperatorAddress),
		log.String("reopen", config.ReopenPolicy),
		log.Bool("requireFullField", config.RequireFullField),
		log.Bool("clearNumbers", config.ClearNumbers),
		log.String("nats", config.NatsURL),
	)

	if config.ProfilingPort > 0 {
		log.Info("Starting profiling server on port", log.Int("port", config.ProfilingPort))
		go func() {
			//nolint:gosec // by design
			err := http.ListenAndServe(
				fmt.Sprintf("localhost:%d", config.ProfilingPort),
				nil)
			if err != nil {
				log.Error("Profiling server stopped", log.ErrorField(err))
			}
		}()
	}

	waitForRequiredServices(ctx)

	var telemetry *config.Telemetry
	pgTraceOption := postgres.WithTracer(sqlLogger, log.DebugLevel)
	if config.EnableTelemetry {
		log.Info("Enabling telemetry")
		var err error
		if telemetry, err = config.SetupTelemetry(ctx); err == nil {
			pgTraceOption = postgres.WithOtlpTracer()
		} else {
			log.Warn("Could not setup telemetry", log.ErrorField(err))
		}
		err = otlpruntime.Start(otlpruntime.WithMinimumReadMemStatsInterval(time.Second))
		if err != nil {
			log.Warn("Could not start runtime metrics", log.ErrorField(err))
		}
	}
	defer func() {
		if telemetry != nil {
			telemetry.Shutdown()
		}
	}()

	policy, err := gamePolicy()
	if err != nil {
		return err
	}

	hub := events.NewHub()
	defer hub.Close()
	publisher := events.Publisher(hub)
	if config.NatsURL != "" {
		conn, err := events.Connect(config.NatsURL)
		if err != nil {
			log.Error("could not connect to NATS", log.ErrorField(err))
			return err
		}
		defer conn.Drain() //nolint:errcheck // shutdown
		publisher = events.Multi(hub, events.NewNatsPublisher(conn))
	}

	svcOpts := []service.Option{
		service.WithGame(game.New(game.WithOperator(game.Address(config.OperatorAddress)))),
		service.WithPublisher(publisher),
	}
	switch config.Storage {
	case "memory":
		log.Info("Using in-memory storage, state is lost on shutdown")
		store := memory.NewStore()
		svcOpts = append(svcOpts,
			service.WithRepositories(store),
			service.WithTxManager(store))
	default:
		if err := migrate.MigrateDb(config.DB); err != nil {
			log.Error("database migration failed", log.ErrorField(err))
			return err
		}
		pool := postgres.InitWithUrl(config.DB, pgTraceOption)
		defer pool.Close()
		svcOpts = append(svcOpts, repositoryOptions(pool)...)
	}
	svc := service.NewGameService(svcOpts...)

	n, err := svc.Replay(ctx)
	if err != nil {
		log.Error("could not restore game state", log.ErrorField(err))
		return err
	}
	log.Info("Game state restored", log.Int("entries", n))
	if err := svc.Configure(ctx, policy); err != nil {
		log.Error("could not apply game policy", log.ErrorField(err))
		return err
	}

	pe, err := permission.NewOpaPermissionEvaluator()
	if err != nil {
		return err
	}
	authOpts, err := authOptions(ctx)
	if err != nil {
		log.Error("invalid authentication setup", log.ErrorField(err))
		return err
	}
	apiServer := api.NewServer(
		api.WithGameService(svc),
		api.WithPermissionEvaluator(pe),
		api.WithAuthenticator(auth.NewAuthenticator(authOpts...)),
		api.WithEventHub(hub),
		api.WithCheckOrigin(checkOrigin),
	)

	//nolint:gosec // by design
	server := &http.Server{
		Addr:    config.ServerAddr,
		Handler: h2c.NewHandler(newCORS().Handler(apiServer.Handler()), &http2.Server{}),
	}
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting server", log.String("addr", config.ServerAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	apiServer.Health().SetStatus(api.HealthServiceName, grpchealth.StatusServing)
	log.Info("Server started")
	setupGoRoutinesDump()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case v := <-sigChan:
		log.Debug("Got signal ", log.Any("signal", v))
	case err := <-errChan:
		log.Error("server could not be started", log.ErrorField(err))
		return err
	case <-ctx.Done():
	}

	apiServer.Health().SetStatus(api.HealthServiceName, grpchealth.StatusNotServing)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown", log.ErrorField(err))
	}
	log.Info("Server terminated")
	return nil
}

func setupLogger() (logger, sqlLogger *log.Logger) {
	switch config.LogFormat {
	case "json":
		logger = log.New(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
		sqlLogger = log.New(
			os.Stderr,
			parseLogLevel(config.SQLLogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	default:
		logger = log.DevLogger(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.DebugLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
		sqlLogger = log.DevLogger(
			os.Stderr,
			parseLogLevel(config.SQLLogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	}
	return logger, sqlLogger.Named("sql")
}

// gamePolicy is applied after the journal was replayed. A change compared to
// the previous run is journaled.
func gamePolicy() (game.Policy, error) {
	reopen, err := game.ParseReopenPolicy(config.ReopenPolicy)
	if err != nil {
		return game.Policy{}, err
	}
	return game.Policy{
		Reopen:           reopen,
		RequireFullField: config.RequireFullField,
		ClearNumbers:     config.ClearNumbers,
	}, nil
}

func authOptions(ctx context.Context) ([]auth.Option, error) {
	ret := []auth.Option{auth.WithOperatorAddress(game.Address(config.OperatorAddress))}
	switch {
	case config.OperatorToken != "":
		ret = append(ret, auth.WithOperatorToken(config.OperatorToken))
	case config.OperatorTokenHash != "":
		ret = append(ret, auth.WithOperatorTokenHash(config.OperatorTokenHash))
	default:
		log.Warn("No operator token configured, races cannot be started via api")
	}
	playerTokens, err := auth.WithPlayerTokenHashes(config.PlayerTokenHashes)
	if err != nil {
		return nil, err
	}
	ret = append(ret, playerTokens)
	if config.OIDCIssuerURL != "" {
		provider, err := oidc.NewProvider(ctx, config.OIDCIssuerURL)
		if err != nil {
			return nil, err
		}
		log.Info("Accepting player ID tokens",
			log.String("issuer", config.OIDCIssuerURL),
			log.String("clientID", config.OIDCClientID))
		ret = append(ret, auth.WithIDTokenVerifier(
			provider.Verifier(&oidc.Config{ClientID: config.OIDCClientID})))
	}
	if len(config.PlayerTokenHashes) == 0 && config.OIDCIssuerURL == "" {
		log.Warn("No player authentication configured, tickets cannot be bought via api")
	}
	return ret, nil
}

func repositoryOptions(pool *pgxpool.Pool) []service.Option {
	return []service.Option{
		service.WithRepositories(pg.NewRepositories(pool)),
		service.WithTxManager(pg.NewTransactionManager(pool)),
	}
}

func checkOrigin(r *http.Request) bool {
	if len(config.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range config.AllowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

func setupGoRoutinesDump() {
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGQUIT)
		buf := make([]byte, 1<<20)
		for {
			<-sigs
			stacklen := runtime.Stack(buf, true)
			fmt.Printf("=== received SIGQUIT ===\n*** goroutine dump...\n%s\n*** end\n",
				buf[:stacklen])
		}
	}()
}

func waitForRequiredServices(ctx context.Context) {
	timeout, err := time.ParseDuration(config.WaitForServices)
	if err != nil {
		log.Warn("Invalid duration value. Setting default 60s", log.ErrorField(err))
		timeout = 60 * time.Second
	}

	wg := sync.WaitGroup{}
	checkTcp := func(addr string) {
		defer wg.Done()
		if err := utils.WaitForTCP(ctx, addr, timeout); err != nil {
			log.Fatal("required services not ready", log.ErrorField(err))
		}
	}

	if config.Storage != "memory" {
		if postgresAddr := utils.ExtractFromDBURL(config.DB); postgresAddr != "" {
			wg.Add(1)
			go checkTcp(postgresAddr)
		}
	}
	if natsAddr := utils.ExtractFromNatsURL(config.NatsURL); natsAddr != "" {
		wg.Add(1)
		go checkTcp(natsAddr)
	}
	log.Debug("Waiting for connection checks to return")
	wg.Wait()
	log.Debug("Required services are available")
}

func newCORS() *cors.Cors {
	opts := cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{
			"Accept",
			"Accept-Encoding",
			"Content-Encoding",
			"Grpc-Status",
			"Grpc-Message",
		},
		MaxAge: 7200, // 2 hours in seconds
	}
	if len(config.AllowedOrigins) == 0 {
		opts.AllowOriginFunc = func(origin string) bool {
			return true
		}
	} else {
		opts.AllowedOrigins = config.AllowedOrigins
	}
	return cors.New(opts)
}
