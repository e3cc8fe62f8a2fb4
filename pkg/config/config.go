package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	DB                string   // connection string for the database
	Storage           string   // postgres or memory
	WaitForServices   string   // duration to wait for other services to be ready
	LogLevel          string   // sets the log level (zap log level values)
	SQLLogLevel       string   // sets the log level for sql subsystem
	LogFormat         string   // text vs json
	LogConfig         string   // path to log config file (per logger levels)
	EnableTelemetry   bool     // enable telemetry
	TelemetryEndpoint string   // endpoint for telemetry
	TelemetryOutput   string   // otlp or stdout
	ProfilingPort     int      // port for profiling
	ServerAddr        string   // listen addr for the http server
	AllowedOrigins    []string // CORS origins, empty means all
	OperatorAddress   string   // game address of the operator
	OperatorToken     string   // api token of the operator (plain)
	OperatorTokenHash string   // api token of the operator (sha256 hex)
	PlayerTokenHashes []string // player api tokens as address=sha256hex
	OIDCIssuerURL     string   // issuer of player ID tokens
	OIDCClientID      string   // expected audience of player ID tokens
	ReopenPolicy      string   // immediately or manual
	RequireFullField  bool     // a race needs all lanes reserved
	ClearNumbers      bool     // clear player numbers when a race starts
	NatsURL           string   // publish game events to this NATS server
	APIURL            string   // base url of the server used by client commands
	APIToken          string   // api token (operator or player) used by client commands
	IDToken           string   // OIDC ID token used by client commands
	PlayerAddress     string   // default address for the client player command
)
