// Package memory provides repositories that keep all data in process memory.
// They are used when the service runs without a database and in tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/mpapenbr/lanerace-service-go/pkg/game"
	"github.com/mpapenbr/lanerace-service-go/pkg/repository"
	"github.com/mpapenbr/lanerace-service-go/pkg/repository/api"
)

type data struct {
	journal []api.JournalEntry
	races   map[uint64]api.RaceRecord
	players map[game.Address]api.PlayerRecord
}

func (d *data) clone() data {
	return data{
		journal: append([]api.JournalEntry(nil), d.journal...),
		races:   lo.Assign(d.races),
		players: lo.Assign(d.players),
	}
}

// Store implements api.Repositories and api.TransactionManager. A failing
// RunInTx discards every change made by fn.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	d    data
	now  func() time.Time
}

var (
	_ api.Repositories       = (*Store)(nil)
	_ api.TransactionManager = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		d: data{
			races:   map[uint64]api.RaceRecord{},
			players: map[game.Address]api.PlayerRecord{},
		},
		now: time.Now,
	}
}

//nolint:whitespace // can't make both editor and linter happy
func (s *Store) RunInTx(
	ctx context.Context,
	fn func(ctx context.Context) error,
) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	backup := s.d.clone()
	s.mu.RUnlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.d = backup
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) Journal() api.JournalRepository { return (*journalRepo)(s) }
func (s *Store) Race() api.RaceRepository       { return (*raceRepo)(s) }
func (s *Store) Player() api.PlayerRepository   { return (*playerRepo)(s) }

type journalRepo Store

func (r *journalRepo) Append(ctx context.Context, e *api.JournalEntry) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.Seq = int64(len(r.d.journal)) + 1
	e.CreatedAt = r.now()
	r.d.journal = append(r.d.journal, *e)
	return e.Seq, nil
}

func (r *journalRepo) LoadAll(ctx context.Context) ([]*api.JournalEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]*api.JournalEntry, len(r.d.journal))
	for i := range r.d.journal {
		e := r.d.journal[i]
		ret[i] = &e
	}
	return ret, nil
}

func (r *journalRepo) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.d.journal)), nil
}

type raceRepo Store

func (r *raceRepo) Create(ctx context.Context, race *game.Race) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.d.races[race.ID]; ok {
		return fmt.Errorf("race %d already exists", race.ID)
	}
	r.d.races[race.ID] = api.RaceRecord{Race: *race}
	return nil
}

//nolint:whitespace // can't make both editor and linter happy
func (r *raceRepo) MarkClaimed(
	ctx context.Context,
	id uint64,
	claimer game.Address,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.d.races[id]
	if !ok || rec.ClaimedBy != game.NoAddress {
		return fmt.Errorf("%w: race %d not found or already claimed",
			repository.ErrNoData, id)
	}
	rec.ClaimedBy = claimer
	r.d.races[id] = rec
	return nil
}

func (r *raceRepo) LoadByID(ctx context.Context, id uint64) (*api.RaceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.d.races[id]
	if !ok {
		return nil, repository.ErrNoData
	}
	return &rec, nil
}

func (r *raceRepo) LoadLatest(ctx context.Context) (*api.RaceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.d.races) == 0 {
		return nil, repository.ErrNoData
	}
	latest := lo.Max(lo.Keys(r.d.races))
	rec := r.d.races[latest]
	return &rec, nil
}

type playerRepo Store

//nolint:whitespace // can't make both editor and linter happy
func (r *playerRepo) Upsert(
	ctx context.Context,
	addr game.Address,
	info game.PlayerInfo,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.d.players[addr] = api.PlayerRecord{
		Address:    addr,
		PlayerInfo: info,
		UpdatedAt:  r.now(),
	}
	return nil
}

//nolint:whitespace // can't make both editor and linter happy
func (r *playerRepo) LoadByAddress(
	ctx context.Context,
	addr game.Address,
) (*api.PlayerRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.d.players[addr]
	if !ok {
		return nil, repository.ErrNoData
	}
	return &rec, nil
}
