//nolint:whitespace // can't make both the linter and editor happy
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gofrs/uuid/v5"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mpapenbr/lanerace-service-go/log"
	"github.com/mpapenbr/lanerace-service-go/pkg/events"
	"github.com/mpapenbr/lanerace-service-go/pkg/game"
	"github.com/mpapenbr/lanerace-service-go/pkg/repository"
	"github.com/mpapenbr/lanerace-service-go/pkg/repository/api"
	"github.com/mpapenbr/lanerace-service-go/pkg/repository/memory"
)

var ErrJournalCorrupt = errors.New("journal does not replay")

// errUnchanged is returned by an operation that left the game as it was.
// Nothing is journaled or published for it.
var errUnchanged = errors.New("unchanged")

type (
	// RaceView is a race record together with its claim state.
	RaceView struct {
		game.Race
		ClaimedBy game.Address `json:"claimedBy,omitempty"`
		Claimed   bool         `json:"claimed"`
	}

	Option func(*GameService)

	// GameService runs the game operations and keeps the stored journal and
	// projections in step with the in-memory game. An operation whose
	// persistence fails is undone.
	GameService struct {
		mu        sync.Mutex
		g         *game.Game
		repos     api.Repositories
		txManager api.TransactionManager
		pub       events.Publisher
		tracer    trace.Tracer
		l         *log.Logger
		counters  map[api.EntryKind]metric.Int64Counter
	}
)

func WithGame(g *game.Game) Option {
	return func(s *GameService) {
		s.g = g
	}
}

func WithRepositories(repos api.Repositories) Option {
	return func(s *GameService) {
		s.repos = repos
	}
}

func WithTxManager(tm api.TransactionManager) Option {
	return func(s *GameService) {
		s.txManager = tm
	}
}

func WithPublisher(pub events.Publisher) Option {
	return func(s *GameService) {
		s.pub = pub
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *GameService) {
		s.tracer = tracer
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *GameService) {
		s.l = l
	}
}

// NewGameService uses in-memory repositories unless WithRepositories and
// WithTxManager are given.
func NewGameService(opts ...Option) *GameService {
	ret := &GameService{
		l:   log.Default().Named("service.game"),
		pub: events.Discard,
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.g == nil {
		ret.g = game.New()
	}
	if ret.repos == nil || ret.txManager == nil {
		store := memory.NewStore()
		ret.repos = store
		ret.txManager = store
	}
	if ret.tracer == nil {
		ret.tracer = otel.Tracer("lrs")
	}
	ret.setupMetrics()
	return ret
}

func (s *GameService) setupMetrics() {
	meter := otel.Meter("lrs.game")
	s.counters = map[api.EntryKind]metric.Int64Counter{}
	for kind, name := range map[api.EntryKind]string{
		api.KindBuyTicket: "lrs.game.tickets",
		api.KindStartRace: "lrs.game.races",
		api.KindClaim:     "lrs.game.claims",
		api.KindOpenSales: "lrs.game.sales_opened",
		api.KindConfigure: "lrs.game.policy_changes",
	} {
		c, err := meter.Int64Counter(name,
			metric.WithDescription(fmt.Sprintf("Number of %s operations", kind)),
			metric.WithUnit("{count}"))
		if err != nil {
			s.l.Warn("could not create counter", log.String("name", name), log.ErrorField(err))
			continue
		}
		s.counters[kind] = c
	}
}

func (s *GameService) Game() *game.Game {
	return s.g
}

func (s *GameService) BuyTicket(
	ctx context.Context,
	caller game.Address,
	startNumber int,
) (game.Ticket, error) {
	ctx, span := s.tracer.Start(ctx, "BuyTicket", trace.WithAttributes(
		attribute.String("caller", string(caller)),
		attribute.Int("startNumber", startNumber)))
	defer span.End()

	var ticket game.Ticket
	err := s.mutate(ctx,
		newEntry(api.KindBuyTicket, caller, int64(startNumber)),
		func() (err error) {
			ticket, err = s.g.BuyTicket(caller, startNumber)
			return err
		},
		func(ctx context.Context) error {
			return s.repos.Player().Upsert(ctx, caller, s.g.PlayerInfo(caller))
		},
		func() *events.Event {
			e := events.NewEvent(events.KindTicketBought, caller, ticket.Cycle)
			e.Ticket = &ticket
			return e
		})
	if err != nil {
		return game.Ticket{}, recordErr(span, err)
	}
	return ticket, nil
}

func (s *GameService) StartRace(
	ctx context.Context,
	caller game.Address,
	seed int64,
) (game.Race, error) {
	ctx, span := s.tracer.Start(ctx, "StartRace", trace.WithAttributes(
		attribute.String("caller", string(caller)),
		attribute.Int64("seed", seed)))
	defer span.End()

	var race game.Race
	err := s.mutate(ctx,
		newEntry(api.KindStartRace, caller, seed),
		func() (err error) {
			race, err = s.g.StartRace(caller, seed)
			return err
		},
		func(ctx context.Context) error {
			if err := s.repos.Race().Create(ctx, &race); err != nil {
				return err
			}
			for _, p := range occupants(&race) {
				if err := s.repos.Player().Upsert(ctx, p, s.g.PlayerInfo(p)); err != nil {
					return err
				}
			}
			return nil
		},
		func() *events.Event {
			e := events.NewEvent(events.KindRaceStarted, caller, race.Cycle)
			e.Race = &race
			return e
		})
	if err != nil {
		return game.Race{}, recordErr(span, err)
	}
	span.SetAttributes(
		attribute.Int64("race", int64(race.ID)),
		attribute.Int("winnerLane", race.WinnerLane()))
	return race, nil
}

func (s *GameService) Claim(
	ctx context.Context,
	caller game.Address,
	raceID uint64,
) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "Claim", trace.WithAttributes(
		attribute.String("caller", string(caller)),
		attribute.Int64("race", int64(raceID))))
	defer span.End()

	var awarded int64
	err := s.mutate(ctx,
		newEntry(api.KindClaim, caller, int64(raceID)),
		func() (err error) {
			awarded, err = s.g.Claim(caller, raceID)
			return err
		},
		func(ctx context.Context) error {
			if err := s.repos.Race().MarkClaimed(ctx, raceID, caller); err != nil {
				return err
			}
			return s.repos.Player().Upsert(ctx, caller, s.g.PlayerInfo(caller))
		},
		func() *events.Event {
			e := events.NewEvent(events.KindPrizeClaimed, caller, s.g.Status().Cycle)
			e.Points = awarded
			if r, rErr := s.g.Race(raceID); rErr == nil {
				e.Race = &r
			}
			return e
		})
	if err != nil {
		return 0, recordErr(span, err)
	}
	return awarded, nil
}

// OpenSales does nothing if sales are already open.
func (s *GameService) OpenSales(ctx context.Context, caller game.Address) error {
	ctx, span := s.tracer.Start(ctx, "OpenSales", trace.WithAttributes(
		attribute.String("caller", string(caller))))
	defer span.End()

	err := s.mutate(ctx,
		newEntry(api.KindOpenSales, caller, 0),
		func() error {
			opened, err := s.g.OpenSales(caller)
			if err == nil && !opened {
				return errUnchanged
			}
			return err
		},
		noPersist,
		func() *events.Event {
			return events.NewEvent(events.KindSalesOpened, caller, s.g.Status().Cycle)
		})
	if err != nil {
		return recordErr(span, err)
	}
	return nil
}

// Configure journals a policy change so that replay applies every operation
// under the policy it was executed with. An unchanged policy is not recorded.
func (s *GameService) Configure(ctx context.Context, p game.Policy) error {
	ctx, span := s.tracer.Start(ctx, "Configure", trace.WithAttributes(
		attribute.String("reopen", p.Reopen.String()),
		attribute.Bool("requireFullField", p.RequireFullField),
		attribute.Bool("clearNumbers", p.ClearNumbers)))
	defer span.End()

	err := s.mutate(ctx,
		newEntry(api.KindConfigure, s.g.Operator(), encodePolicy(p)),
		func() error {
			if s.g.Policy() == p {
				return errUnchanged
			}
			s.g.SetPolicy(p)
			return nil
		},
		noPersist,
		func() *events.Event { return nil })
	if err != nil {
		return recordErr(span, err)
	}
	return nil
}

func (s *GameService) PlayerInfo(ctx context.Context, addr game.Address) game.PlayerInfo {
	_, span := s.tracer.Start(ctx, "PlayerInfo")
	defer span.End()
	return s.g.PlayerInfo(addr)
}

func (s *GameService) Race(ctx context.Context, id uint64) (*RaceView, error) {
	_, span := s.tracer.Start(ctx, "Race", trace.WithAttributes(
		attribute.Int64("race", int64(id))))
	defer span.End()

	r, err := s.g.Race(id)
	if err != nil {
		return nil, recordErr(span, err)
	}
	claimer, claimed := s.g.ClaimedBy(id)
	return &RaceView{Race: r, ClaimedBy: claimer, Claimed: claimed}, nil
}

func (s *GameService) Status(ctx context.Context) game.Status {
	_, span := s.tracer.Start(ctx, "Status")
	defer span.End()
	return s.g.Status()
}

// mutate applies op to the game and stores entry plus the projections
// written by persist in one transaction. If the transaction fails the game
// is reset to the state before op. The event returned by event (if any) is
// published before the lock is released, stamped with the journal sequence,
// so subscribers see events in journal order.
func (s *GameService) mutate(
	ctx context.Context,
	entry *api.JournalEntry,
	op func() error,
	persist func(ctx context.Context) error,
	event func() *events.Event,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.g.Snapshot()
	if err := op(); err != nil {
		if errors.Is(err, errUnchanged) {
			s.l.Debug("operation changed nothing, not journaled",
				log.String("kind", string(entry.Kind)),
				log.String("caller", string(entry.Caller)))
			return nil
		}
		return err
	}
	var seq int64
	if err := s.txManager.RunInTx(ctx, func(ctx context.Context) (err error) {
		if seq, err = s.repos.Journal().Append(ctx, entry); err != nil {
			return err
		}
		return persist(ctx)
	}); err != nil {
		s.g.Restore(snap)
		s.l.Error("could not persist operation, rolled back",
			log.String("kind", string(entry.Kind)),
			log.String("caller", string(entry.Caller)),
			log.ErrorField(err))
		return fmt.Errorf("persist %s: %w", entry.Kind, err)
	}
	if c, ok := s.counters[entry.Kind]; ok {
		c.Add(ctx, 1)
	}
	if e := event(); e != nil {
		e.Seq = seq
		s.publish(context.WithoutCancel(ctx), e)
	}
	return nil
}

func noPersist(context.Context) error { return nil }

func (s *GameService) publish(ctx context.Context, e *events.Event) {
	if err := s.pub.Publish(ctx, e); err != nil {
		s.l.Warn("could not publish event",
			log.String("kind", string(e.Kind)), log.ErrorField(err))
	}
}

func newEntry(kind api.EntryKind, caller game.Address, arg int64) *api.JournalEntry {
	return &api.JournalEntry{
		ID:     uuid.Must(uuid.NewV4()),
		Kind:   kind,
		Caller: caller,
		Arg:    arg,
	}
}

func occupants(r *game.Race) []game.Address {
	return lo.Uniq(lo.Filter(r.Lanes[:], func(a game.Address, _ int) bool {
		return a != game.NoAddress
	}))
}

func recordErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// IsNotFound reports if err means the requested data does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, game.ErrRaceNotFound) || errors.Is(err, repository.ErrNoData)
}
