package game

const (
	// NumLanes is the size of the lane space
	NumLanes = 20
	// MaxStartNumber is the highest start lane of a ticket, a ticket always
	// covers startNumber and startNumber+1.
	MaxStartNumber = NumLanes - 2
	// WinnerReward is granted to the occupant of the first place lane
	WinnerReward int64 = 500
)

// Address identifies a player or the operator
type Address string

// NoAddress marks an empty lane
const NoAddress Address = ""

type Phase uint8

const (
	PhaseOpen   Phase = iota // tickets can be bought
	PhaseClosed              // race started, waiting for the operator to reopen
)

func (p Phase) String() string {
	switch p {
	case PhaseOpen:
		return "open"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type (
	Lanes [NumLanes]Address

	PlayerInfo struct {
		Numbers         [2]int `json:"numbers"`
		Points          int64  `json:"points"`
		UnclaimedPoints int64  `json:"unclaimedPoints"`
	}

	// Race is created when the operator starts a race and never changes
	// afterwards.
	Race struct {
		ID              uint64        `json:"id"`
		Seed            int64         `json:"seed"`
		Cycle           uint64        `json:"cycle"`
		Lanes           Lanes         `json:"race"`
		WinnerPositions [NumLanes]int `json:"winnerPositions"`
	}

	Status struct {
		Phase      Phase   `json:"-"`
		PhaseName  string  `json:"phase"`
		Cycle      uint64  `json:"cycle"`
		Occupied   int     `json:"occupied"`
		Lanes      Lanes   `json:"lanes"`
		RaceCount  uint64  `json:"raceCount"`
		Operator   Address `json:"operator"`
		Policy     Policy  `json:"policy"`
		LatestRace *uint64 `json:"latestRace,omitempty"`
	}
)

// WinnerLane returns the lane that finished first
func (r *Race) WinnerLane() int {
	return r.WinnerPositions[0]
}

// Winner returns the occupant of the first place lane, NoAddress if the lane
// was empty when the race started.
func (r *Race) Winner() Address {
	return r.Lanes[r.WinnerLane()]
}

// Place returns the 1-based finishing place of lane
func (r *Race) Place(lane int) int {
	for i, l := range r.WinnerPositions {
		if l == lane {
			return i + 1
		}
	}
	return 0
}
