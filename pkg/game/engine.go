package game

import "fmt"

// RaceEngine owns the race records. Only the configured operator may start
// races.
type RaceEngine struct {
	operator Address
	races    []Race
}

func newRaceEngine(operator Address) *RaceEngine {
	return &RaceEngine{operator: operator}
}

func (e *RaceEngine) authorize(caller Address) error {
	if e.operator == NoAddress || caller != e.operator {
		return fmt.Errorf("%w: %q", ErrUnauthorized, caller)
	}
	return nil
}

// create stores a new race for the given lane snapshot. The id is the next
// unused integer starting at 0.
func (e *RaceEngine) create(seed int64, cycle uint64, lanes Lanes) Race {
	r := Race{
		ID:              uint64(len(e.races)),
		Seed:            seed,
		Cycle:           cycle,
		Lanes:           lanes,
		WinnerPositions: ComputeFinishOrder(seed),
	}
	e.races = append(e.races, r)
	return r
}

func (e *RaceEngine) race(id uint64) (Race, error) {
	if id >= uint64(len(e.races)) {
		return Race{}, fmt.Errorf("%w: %d", ErrRaceNotFound, id)
	}
	return e.races[id], nil
}

func (e *RaceEngine) count() uint64 {
	return uint64(len(e.races))
}

func (e *RaceEngine) clone() *RaceEngine {
	races := make([]Race, len(e.races))
	copy(races, e.races)
	return &RaceEngine{operator: e.operator, races: races}
}
