package game

import (
	"fmt"
	"sync"

	"github.com/mpapenbr/lanerace-service-go/log"
)

type ReopenPolicy uint8

const (
	// ReopenImmediately empties the lane space in the same call that starts
	// the race, the next cycle is open right away.
	ReopenImmediately ReopenPolicy = iota
	// ReopenManual keeps sales closed after a race until the operator calls
	// OpenSales.
	ReopenManual
)

func ParseReopenPolicy(s string) (ReopenPolicy, error) {
	switch s {
	case "immediately", "":
		return ReopenImmediately, nil
	case "manual":
		return ReopenManual, nil
	default:
		return 0, fmt.Errorf("unknown reopen policy %q", s)
	}
}

// Policy holds the rules that may change between restarts. The zero value
// is not the default, use DefaultPolicy.
type Policy struct {
	Reopen           ReopenPolicy `json:"reopen"`
	RequireFullField bool         `json:"requireFullField"`
	ClearNumbers     bool         `json:"clearNumbers"`
}

func DefaultPolicy() Policy {
	return Policy{Reopen: ReopenImmediately, RequireFullField: true}
}

func (p ReopenPolicy) String() string {
	if p == ReopenManual {
		return "manual"
	}
	return "immediately"
}

func (p ReopenPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *ReopenPolicy) UnmarshalText(text []byte) error {
	v, err := ParseReopenPolicy(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

type (
	Option func(*Game)

	Ticket struct {
		Player      Address `json:"player"`
		StartNumber int     `json:"startNumber"`
		Cycle       uint64  `json:"cycle"`
	}

	// State is a detached copy of the complete game state. It is used to
	// rollback an operation whose persistence failed.
	State struct {
		policy  Policy
		cycle   uint64
		phase   Phase
		tickets *TicketRegistry
		engine  *RaceEngine
		ledger  *PointsLedger
	}
)

// Game serializes all operations on the registry, the engine and the ledger.
// Every operation validates all preconditions before it changes anything, a
// failed operation leaves the state untouched.
type Game struct {
	mu sync.Mutex

	operator    Address
	reward      int64
	policy      Policy
	consolation ConsolationRule

	cycle   uint64
	phase   Phase
	tickets *TicketRegistry
	engine  *RaceEngine
	ledger  *PointsLedger
	l       *log.Logger
}

func WithOperator(addr Address) Option {
	return func(g *Game) {
		g.operator = addr
	}
}

func WithReopen(p ReopenPolicy) Option {
	return func(g *Game) {
		g.policy.Reopen = p
	}
}

func WithClearNumbers(enabled bool) Option {
	return func(g *Game) {
		g.policy.ClearNumbers = enabled
	}
}

func WithRequireFullField(require bool) Option {
	return func(g *Game) {
		g.policy.RequireFullField = require
	}
}

func WithConsolation(rule ConsolationRule) Option {
	return func(g *Game) {
		g.consolation = rule
	}
}

func WithReward(points int64) Option {
	return func(g *Game) {
		g.reward = points
	}
}

func WithLogger(l *log.Logger) Option {
	return func(g *Game) {
		g.l = l
	}
}

func New(opts ...Option) *Game {
	g := &Game{
		reward: WinnerReward,
		policy: DefaultPolicy(),
		phase:  PhaseOpen,
		l:      log.Default().Named("game"),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.tickets = newTicketRegistry()
	g.engine = newRaceEngine(g.operator)
	g.ledger = newPointsLedger(g.reward)
	return g
}

func (g *Game) Operator() Address {
	return g.operator
}

func (g *Game) Policy() Policy {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.policy
}

// SetPolicy replaces the policy for all following operations. Switching to
// ReopenImmediately while sales are closed opens them.
func (g *Game) SetPolicy(p Policy) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.policy = p
	if p.Reopen == ReopenImmediately {
		g.phase = PhaseOpen
	}
	g.l.Info("policy changed",
		log.Bool("manualReopen", p.Reopen == ReopenManual),
		log.Bool("requireFullField", p.RequireFullField),
		log.Bool("clearNumbers", p.ClearNumbers))
}

func (g *Game) BuyTicket(caller Address, startNumber int) (Ticket, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseOpen {
		return Ticket{}, fmt.Errorf("%w: cycle %d", ErrSalesClosed, g.cycle)
	}
	if err := g.tickets.validate(caller, startNumber); err != nil {
		g.l.Debug("ticket rejected",
			log.String("player", string(caller)),
			log.Int("startNumber", startNumber),
			log.ErrorField(err))
		return Ticket{}, err
	}
	g.tickets.reserve(caller, startNumber)
	g.l.Debug("ticket bought",
		log.String("player", string(caller)),
		log.Int("startNumber", startNumber),
		log.Uint64("cycle", g.cycle))
	return Ticket{Player: caller, StartNumber: startNumber, Cycle: g.cycle}, nil
}

// PlayerInfo returns a zero record for unknown addresses.
func (g *Game) PlayerInfo(addr Address) PlayerInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.playerInfo(addr)
}

func (g *Game) playerInfo(addr Address) PlayerInfo {
	var ret PlayerInfo
	if n, ok := g.tickets.playerNumbers(addr); ok {
		ret.Numbers = n
	}
	ret.Points, ret.UnclaimedPoints, _ = g.ledger.balance(addr)
	return ret
}

// StartRace closes the current cycle and creates the race record.
func (g *Game) StartRace(caller Address, seed int64) (Race, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.engine.authorize(caller); err != nil {
		return Race{}, err
	}
	if g.phase != PhaseOpen {
		return Race{}, fmt.Errorf("%w: cycle %d", ErrSalesClosed, g.cycle)
	}
	if g.policy.RequireFullField && !g.tickets.full() {
		return Race{}, fmt.Errorf("%w: %d of %d lanes reserved",
			ErrFieldIncomplete, g.tickets.occupied(), NumLanes)
	}

	r := g.engine.create(seed, g.cycle, g.tickets.snapshot())
	g.ledger.settle(&r, g.consolation)
	g.l.Info("race started",
		log.Uint64("race", r.ID),
		log.Int64("seed", seed),
		log.Int("winnerLane", r.WinnerLane()),
		log.String("winner", string(r.Winner())))

	g.tickets.reset(g.policy.ClearNumbers)
	g.cycle++
	if g.policy.Reopen == ReopenManual {
		g.phase = PhaseClosed
	}
	return r, nil
}

// OpenSales reopens ticket sales after a race when the reopen policy is
// manual. It reports false if sales were already open.
func (g *Game) OpenSales(caller Address) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.engine.authorize(caller); err != nil {
		return false, err
	}
	if g.phase == PhaseOpen {
		return false, nil
	}
	g.phase = PhaseOpen
	return true, nil
}

func (g *Game) Race(id uint64) (Race, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.engine.race(id)
}

// ClaimedBy returns the address that claimed the prize of a race.
func (g *Game) ClaimedBy(id uint64) (Address, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ledger.claimed(id)
}

// Claim grants the reward of race id to its winner once.
func (g *Game) Claim(caller Address, id uint64) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, err := g.engine.race(id)
	if err != nil {
		return 0, err
	}
	if err := g.ledger.validateClaim(caller, &r); err != nil {
		return 0, err
	}
	awarded := g.ledger.award(caller, &r)
	g.l.Info("prize claimed",
		log.Uint64("race", id),
		log.String("player", string(caller)),
		log.Int64("points", awarded))
	return awarded, nil
}

func (g *Game) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	ret := Status{
		Phase:     g.phase,
		PhaseName: g.phase.String(),
		Cycle:     g.cycle,
		Occupied:  g.tickets.occupied(),
		Lanes:     g.tickets.snapshot(),
		RaceCount: g.engine.count(),
		Operator:  g.operator,
		Policy:    g.policy,
	}
	if ret.RaceCount > 0 {
		latest := ret.RaceCount - 1
		ret.LatestRace = &latest
	}
	return ret
}

func (g *Game) Snapshot() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return State{
		policy:  g.policy,
		cycle:   g.cycle,
		phase:   g.phase,
		tickets: g.tickets.clone(),
		engine:  g.engine.clone(),
		ledger:  g.ledger.clone(),
	}
}

// Restore replaces the game state with s. s must come from Snapshot of the
// same game.
func (g *Game) Restore(s State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.policy = s.policy
	g.cycle = s.cycle
	g.phase = s.phase
	g.tickets = s.tickets.clone()
	g.engine = s.engine.clone()
	g.ledger = s.ledger.clone()
}
