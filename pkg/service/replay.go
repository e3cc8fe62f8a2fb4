package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/mpapenbr/lanerace-service-go/log"
	"github.com/mpapenbr/lanerace-service-go/pkg/game"
	"github.com/mpapenbr/lanerace-service-go/pkg/repository"
	"github.com/mpapenbr/lanerace-service-go/pkg/repository/api"
)

// Replay rebuilds the game from the stored journal. It must be called on a
// fresh game before any operation is served. Entries are applied with the
// caller they were recorded with, so the configured operator must not change
// between runs. The journal starts under DefaultPolicy, policy changes are
// replayed from their configure entries. Call Configure afterwards to apply
// the currently configured policy.
func (s *GameService) Replay(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "Replay")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.repos.Journal().LoadAll(ctx)
	if err != nil {
		return 0, recordErr(span, err)
	}
	s.g.SetPolicy(game.DefaultPolicy())
	for _, e := range entries {
		if err := s.apply(e); err != nil {
			return 0, recordErr(span, fmt.Errorf("%w: entry %d (%s by %q): %w",
				ErrJournalCorrupt, e.Seq, e.Kind, e.Caller, err))
		}
	}
	if err := s.checkLatestRace(ctx); err != nil {
		return 0, recordErr(span, err)
	}
	s.l.Info("journal replayed",
		log.Int("entries", len(entries)),
		log.Uint64("races", s.g.Status().RaceCount))
	return len(entries), nil
}

func (s *GameService) apply(e *api.JournalEntry) error {
	switch e.Kind {
	case api.KindBuyTicket:
		_, err := s.g.BuyTicket(e.Caller, int(e.Arg))
		return err
	case api.KindStartRace:
		_, err := s.g.StartRace(e.Caller, e.Arg)
		return err
	case api.KindClaim:
		_, err := s.g.Claim(e.Caller, uint64(e.Arg))
		return err
	case api.KindOpenSales:
		_, err := s.g.OpenSales(e.Caller)
		return err
	case api.KindConfigure:
		p, err := decodePolicy(e.Arg)
		if err != nil {
			return err
		}
		s.g.SetPolicy(p)
		return nil
	default:
		return fmt.Errorf("unknown entry kind %q", e.Kind)
	}
}

const (
	policyManualReopen int64 = 1 << iota
	policyRequireFullField
	policyClearNumbers

	policyFlags = policyManualReopen | policyRequireFullField | policyClearNumbers
)

func encodePolicy(p game.Policy) int64 {
	var ret int64
	if p.Reopen == game.ReopenManual {
		ret |= policyManualReopen
	}
	if p.RequireFullField {
		ret |= policyRequireFullField
	}
	if p.ClearNumbers {
		ret |= policyClearNumbers
	}
	return ret
}

func decodePolicy(flags int64) (game.Policy, error) {
	if flags&^policyFlags != 0 {
		return game.Policy{}, fmt.Errorf("unknown policy flags %#x", flags)
	}
	p := game.Policy{
		Reopen:           game.ReopenImmediately,
		RequireFullField: flags&policyRequireFullField != 0,
		ClearNumbers:     flags&policyClearNumbers != 0,
	}
	if flags&policyManualReopen != 0 {
		p.Reopen = game.ReopenManual
	}
	return p, nil
}

// checkLatestRace compares the replayed outcome of the latest race with the
// stored projection.
func (s *GameService) checkLatestRace(ctx context.Context) error {
	stored, err := s.repos.Race().LoadLatest(ctx)
	if errors.Is(err, repository.ErrNoData) {
		if s.g.Status().RaceCount == 0 {
			return nil
		}
		return fmt.Errorf("%w: race projection is empty", ErrJournalCorrupt)
	}
	if err != nil {
		return err
	}
	replayed, err := s.g.Race(stored.ID)
	if err != nil {
		return fmt.Errorf("%w: stored race %d: %w", ErrJournalCorrupt, stored.ID, err)
	}
	if !slices.Equal(replayed.WinnerPositions[:], stored.WinnerPositions[:]) ||
		replayed.Lanes != stored.Lanes {
		return fmt.Errorf("%w: race %d differs from projection", ErrJournalCorrupt, stored.ID)
	}
	claimer, _ := s.g.ClaimedBy(stored.ID)
	if claimer != stored.ClaimedBy {
		s.l.Warn("claim state differs from projection",
			log.Uint64("race", stored.ID),
			log.String("journal", string(claimer)),
			log.String("projection", string(stored.ClaimedBy)))
	}
	return nil
}
