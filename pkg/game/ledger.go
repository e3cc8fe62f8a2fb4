package game

import (
	"fmt"

	"github.com/samber/lo"
)

// ConsolationRule decides the pending credit for the occupant of a lane that
// did not win. place is the 1-based finishing place (2..NumLanes).
type ConsolationRule func(r *Race, lane, place int) int64

// PointsLedger owns the point balances and the claim markers.
type PointsLedger struct {
	reward    int64
	points    map[Address]int64
	unclaimed map[Address]int64
	claims    map[uint64]Address // race id -> claimer
}

func newPointsLedger(reward int64) *PointsLedger {
	return &PointsLedger{
		reward:    reward,
		points:    map[Address]int64{},
		unclaimed: map[Address]int64{},
		claims:    map[uint64]Address{},
	}
}

func (l *PointsLedger) validateClaim(caller Address, r *Race) error {
	winner := r.Winner()
	if winner == NoAddress || caller != winner {
		return fmt.Errorf("%w: race %d lane %d", ErrNotWinner, r.ID, r.WinnerLane())
	}
	if _, ok := l.claims[r.ID]; ok {
		return fmt.Errorf("%w: race %d", ErrAlreadyClaimed, r.ID)
	}
	return nil
}

// award must only be called after validateClaim succeeded
func (l *PointsLedger) award(caller Address, r *Race) int64 {
	l.points[caller] += l.reward
	l.claims[r.ID] = caller
	return l.reward
}

func (l *PointsLedger) settle(r *Race, rule ConsolationRule) {
	if rule == nil {
		return
	}
	for place := 2; place <= NumLanes; place++ {
		lane := r.WinnerPositions[place-1]
		if occupant := r.Lanes[lane]; occupant != NoAddress {
			l.unclaimed[occupant] += rule(r, lane, place)
		}
	}
}

func (l *PointsLedger) claimed(raceID uint64) (Address, bool) {
	a, ok := l.claims[raceID]
	return a, ok
}

func (l *PointsLedger) balance(addr Address) (points, unclaimed int64, ok bool) {
	p, okP := l.points[addr]
	u, okU := l.unclaimed[addr]
	return p, u, okP || okU
}

func (l *PointsLedger) clone() *PointsLedger {
	return &PointsLedger{
		reward:    l.reward,
		points:    lo.Assign(l.points),
		unclaimed: lo.Assign(l.unclaimed),
		claims:    lo.Assign(l.claims),
	}
}
