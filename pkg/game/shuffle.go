package game

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// ComputeFinishOrder derives the finishing order of all lanes from seed.
// Index 0 of the result holds the lane finishing first.
//
// The order is a Fisher-Yates shuffle of 0..NumLanes-1 where step k draws
// keccak256(seed || k) (both as big endian uint64). The result depends on the
// seed only, so anyone can recompute it.
func ComputeFinishOrder(seed int64) [NumLanes]int {
	var order [NumLanes]int
	for i := range order {
		order[i] = i
	}
	var step uint64
	for i := NumLanes - 1; i > 0; i-- {
		j := int(draw(seed, step) % uint64(i+1))
		order[i], order[j] = order[j], order[i]
		step++
	}
	return order
}

func draw(seed int64, step uint64) uint64 {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(seed))
	binary.BigEndian.PutUint64(buf[8:], step)
	h := sha3.NewLegacyKeccak256()
	h.Write(buf[:])
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}

// IsPermutation reports whether order contains every lane exactly once.
func IsPermutation(order [NumLanes]int) bool {
	var seen [NumLanes]bool
	for _, l := range order {
		if l < 0 || l >= NumLanes || seen[l] {
			return false
		}
		seen[l] = true
	}
	return true
}

// VerifyRace recomputes the finishing order of r from its seed. It returns
// ErrOutcomeMismatch if the recorded order differs.
func VerifyRace(r *Race) error {
	want := ComputeFinishOrder(r.Seed)
	for place, lane := range want {
		if r.WinnerPositions[place] != lane {
			return fmt.Errorf("%w: race %d place %d: recorded lane %d, computed lane %d",
				ErrOutcomeMismatch, r.ID, place+1, r.WinnerPositions[place], lane)
		}
	}
	return nil
}
