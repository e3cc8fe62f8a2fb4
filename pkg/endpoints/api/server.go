package api

import (
	"net/http"

	"connectrpc.com/grpchealth"
	"github.com/gorilla/websocket"

	"github.com/mpapenbr/lanerace-service-go/log"
	"github.com/mpapenbr/lanerace-service-go/pkg/auth"
	"github.com/mpapenbr/lanerace-service-go/pkg/events"
	"github.com/mpapenbr/lanerace-service-go/pkg/permission"
	"github.com/mpapenbr/lanerace-service-go/pkg/service"
)

const HealthServiceName = "lanerace.v1.GameService"

type (
	Server struct {
		svc           *service.GameService
		pe            permission.PermissionEvaluator
		authenticator *auth.Authenticator
		hub           *events.Hub
		health        *grpchealth.StaticChecker
		upgrader      websocket.Upgrader
		l             *log.Logger
	}
	Option func(*Server)
)

func WithGameService(svc *service.GameService) Option {
	return func(s *Server) {
		s.svc = svc
	}
}

func WithPermissionEvaluator(pe permission.PermissionEvaluator) Option {
	return func(s *Server) {
		s.pe = pe
	}
}

func WithAuthenticator(a *auth.Authenticator) Option {
	return func(s *Server) {
		s.authenticator = a
	}
}

// WithEventHub enables the websocket event feed.
func WithEventHub(hub *events.Hub) Option {
	return func(s *Server) {
		s.hub = hub
	}
}

func WithCheckOrigin(f func(r *http.Request) bool) Option {
	return func(s *Server) {
		s.upgrader.CheckOrigin = f
	}
}

func NewServer(opts ...Option) *Server {
	ret := &Server{
		l:      log.Default().Named("api"),
		health: grpchealth.NewStaticChecker(HealthServiceName),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.svc == nil {
		ret.svc = service.NewGameService()
	}
	if ret.authenticator == nil {
		ret.authenticator = auth.NewAuthenticator()
	}
	return ret
}

// Health is used to report the serving state via the gRPC health protocol.
func (s *Server) Health() *grpchealth.StaticChecker {
	return s.health
}

// Handler returns the complete http handler of the API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/tickets", s.buyTicket)
	mux.HandleFunc("GET /api/v1/players/{address}", s.playerInfo)
	mux.HandleFunc("POST /api/v1/races", s.startRace)
	mux.HandleFunc("GET /api/v1/races/latest", s.latestRace)
	mux.HandleFunc("GET /api/v1/races/{id}", s.race)
	mux.HandleFunc("POST /api/v1/races/{id}/claim", s.claim)
	mux.HandleFunc("POST /api/v1/sales/open", s.openSales)
	mux.HandleFunc("GET /api/v1/status", s.status)
	mux.HandleFunc("GET /api/v1/version", s.version)
	if s.hub != nil {
		mux.HandleFunc("GET /api/v1/events", s.events)
	}
	mux.Handle(grpchealth.NewHandler(s.health))
	return s.authenticator.Middleware(mux)
}
