package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/mpapenbr/lanerace-service-go/log"
)

const subjectPrefix = "lanerace"

// natsConn is the part of *nats.Conn used by the publisher
type natsConn interface {
	Publish(subj string, data []byte) error
}

var _ natsConn = (*nats.Conn)(nil)

type (
	NatsPublisher struct {
		conn   natsConn
		prefix string
		l      *log.Logger
	}
	NatsOption func(*NatsPublisher)
)

func WithSubjectPrefix(prefix string) NatsOption {
	return func(p *NatsPublisher) {
		p.prefix = prefix
	}
}

func WithNatsLogger(l *log.Logger) NatsOption {
	return func(p *NatsPublisher) {
		p.l = l
	}
}

func NewNatsPublisher(conn *nats.Conn, opts ...NatsOption) *NatsPublisher {
	return newNatsPublisher(conn, opts...)
}

func newNatsPublisher(conn natsConn, opts ...NatsOption) *NatsPublisher {
	ret := &NatsPublisher{
		conn:   conn,
		prefix: subjectPrefix,
		l:      log.Default().Named("nats"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Subject returns the subject events of kind are published on.
func (p *NatsPublisher) Subject(kind Kind) string {
	return fmt.Sprintf("%s.%s", p.prefix, kind)
}

func (p *NatsPublisher) Publish(ctx context.Context, e *Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	subj := p.Subject(e.Kind)
	if err := p.conn.Publish(subj, data); err != nil {
		p.l.Warn("could not publish event",
			log.String("subject", subj), log.ErrorField(err))
		return err
	}
	p.l.Debug("published event", log.String("subject", subj), log.String("id", e.ID))
	return nil
}

// Connect opens a NATS connection with reconnects enabled.
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("lanerace-service"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", log.ErrorField(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", log.String("url", c.ConnectedUrl()))
		}),
	)
}
