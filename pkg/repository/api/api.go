package api

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/mpapenbr/lanerace-service-go/pkg/game"
)

type EntryKind string

const (
	KindBuyTicket EntryKind = "buy-ticket"
	KindStartRace EntryKind = "start-race"
	KindClaim     EntryKind = "claim"
	KindOpenSales EntryKind = "open-sales"
	// KindConfigure records a policy change, Arg holds the policy flags.
	KindConfigure EntryKind = "configure"
)

type (
	// JournalEntry records one successful game operation. Arg carries the
	// start number, the seed, the race id or the policy flags depending on
	// Kind.
	JournalEntry struct {
		Seq       int64
		ID        uuid.UUID
		Kind      EntryKind
		Caller    game.Address
		Arg       int64
		CreatedAt time.Time
	}

	RaceRecord struct {
		game.Race
		ClaimedBy game.Address `json:"claimedBy,omitempty"`
	}

	PlayerRecord struct {
		Address game.Address
		game.PlayerInfo
		UpdatedAt time.Time
	}
)

type (
	Repositories interface {
		Journal() JournalRepository
		Race() RaceRepository
		Player() PlayerRepository
	}

	JournalRepository interface {
		// Append stores the entry and returns the assigned sequence number.
		Append(ctx context.Context, e *JournalEntry) (int64, error)
		// LoadAll returns all entries in the order they were appended.
		LoadAll(ctx context.Context) ([]*JournalEntry, error)
		Count(ctx context.Context) (int64, error)
	}

	RaceRepository interface {
		Create(ctx context.Context, r *game.Race) error
		MarkClaimed(ctx context.Context, id uint64, claimer game.Address) error
		LoadByID(ctx context.Context, id uint64) (*RaceRecord, error)
		LoadLatest(ctx context.Context) (*RaceRecord, error)
	}

	PlayerRepository interface {
		Upsert(ctx context.Context, addr game.Address, info game.PlayerInfo) error
		LoadByAddress(ctx context.Context, addr game.Address) (*PlayerRecord, error)
	}

	TransactionManager interface {
		RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	}
)
