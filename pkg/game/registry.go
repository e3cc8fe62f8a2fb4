package game

import (
	"fmt"

	"github.com/samber/lo"
)

// TicketRegistry owns the lane occupancy of the current cycle and the numbers
// of each player.
type TicketRegistry struct {
	lanes   Lanes
	holders map[Address]int // start number bought in the current cycle
	numbers map[Address][2]int
}

func newTicketRegistry() *TicketRegistry {
	return &TicketRegistry{
		holders: map[Address]int{},
		numbers: map[Address][2]int{},
	}
}

func (r *TicketRegistry) validate(caller Address, startNumber int) error {
	if startNumber < 0 || startNumber > MaxStartNumber {
		return fmt.Errorf("%w: %d not in [0,%d]", ErrOutOfRange, startNumber, MaxStartNumber)
	}
	if _, ok := r.holders[caller]; ok {
		return ErrTicketConflict
	}
	if r.lanes[startNumber] != NoAddress || r.lanes[startNumber+1] != NoAddress {
		return ErrTicketConflict
	}
	return nil
}

// reserve must only be called after validate succeeded
func (r *TicketRegistry) reserve(caller Address, startNumber int) {
	r.lanes[startNumber] = caller
	r.lanes[startNumber+1] = caller
	r.holders[caller] = startNumber
	r.numbers[caller] = [2]int{startNumber, startNumber + 1}
}

func (r *TicketRegistry) occupied() int {
	return lo.CountBy(r.lanes[:], func(a Address) bool { return a != NoAddress })
}

func (r *TicketRegistry) full() bool {
	return r.occupied() == NumLanes
}

func (r *TicketRegistry) snapshot() Lanes {
	return r.lanes
}

func (r *TicketRegistry) playerNumbers(addr Address) ([2]int, bool) {
	n, ok := r.numbers[addr]
	return n, ok
}

// reset empties the lane space for the next cycle
func (r *TicketRegistry) reset(clearNumbers bool) {
	r.lanes = Lanes{}
	r.holders = map[Address]int{}
	if clearNumbers {
		r.numbers = map[Address][2]int{}
	}
}

func (r *TicketRegistry) clone() *TicketRegistry {
	return &TicketRegistry{
		lanes:   r.lanes,
		holders: lo.Assign(r.holders),
		numbers: lo.Assign(r.numbers),
	}
}
