package events

import (
	"context"
	"sync"

	"github.com/mpapenbr/lanerace-service-go/pkg/utils/broadcast"
)

// Hub delivers events to in-process subscribers.
type Hub struct {
	feed   chan *Event
	bcst   broadcast.BroadcastServer[*Event]
	once   sync.Once
	closed chan struct{}
}

var _ Publisher = (*Hub)(nil)

func NewHub() *Hub {
	feed := make(chan *Event)
	return &Hub{
		feed: feed,
		bcst: broadcast.NewBroadcastServer("game", "events", feed,
			broadcast.WithBufferSize[*Event](16)),
		closed: make(chan struct{}),
	}
}

func (h *Hub) Publish(ctx context.Context, e *Event) error {
	select {
	case h.feed <- e:
		return nil
	case <-h.closed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) Subscribe() <-chan *Event {
	return h.bcst.Subscribe()
}

func (h *Hub) Unsubscribe(ch <-chan *Event) {
	h.bcst.CancelSubscription(ch)
}

func (h *Hub) Close() {
	h.once.Do(func() {
		close(h.closed)
		h.bcst.Close()
	})
}
