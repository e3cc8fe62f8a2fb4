// Package events distributes the domain events of the game to local
// subscribers (websocket feed) and to NATS.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mpapenbr/lanerace-service-go/pkg/game"
)

type Kind string

const (
	KindTicketBought Kind = "ticket-bought"
	KindRaceStarted  Kind = "race-started"
	KindPrizeClaimed Kind = "prize-claimed"
	KindSalesOpened  Kind = "sales-opened"
	// KindSnapshot is sent to a new feed subscriber only.
	KindSnapshot Kind = "snapshot"
)

type (
	// Event is a domain event. Seq is the journal sequence of the operation
	// that caused it, 0 for snapshots.
	Event struct {
		ID     string       `json:"id"`
		Seq    int64        `json:"seq,omitempty"`
		Kind   Kind         `json:"kind"`
		Time   time.Time    `json:"time"`
		Caller game.Address `json:"caller"`
		Ticket *game.Ticket `json:"ticket,omitempty"`
		Race   *game.Race   `json:"race,omitempty"`
		Points int64        `json:"points,omitempty"`
		Status *game.Status `json:"status,omitempty"`
		Cycle  uint64       `json:"cycle"`
	}

	Publisher interface {
		Publish(ctx context.Context, e *Event) error
	}

	PublisherFunc func(ctx context.Context, e *Event) error
)

func (f PublisherFunc) Publish(ctx context.Context, e *Event) error {
	return f(ctx, e)
}

func NewEvent(kind Kind, caller game.Address, cycle uint64) *Event {
	return &Event{
		ID:     uuid.NewString(),
		Kind:   kind,
		Time:   time.Now().UTC(),
		Caller: caller,
		Cycle:  cycle,
	}
}

type multi []Publisher

// Multi publishes to all publishers. All are tried, the errors are joined.
func Multi(pubs ...Publisher) Publisher {
	return multi(pubs)
}

func (m multi) Publish(ctx context.Context, e *Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(context.Context, *Event) error { return nil })
