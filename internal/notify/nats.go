package notify

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSSink publishes to a NATS subject.
type NATSSink struct {
	conn    *nats.Conn
	subject string
}

// NewNATSSink connects to the server at url.
func NewNATSSink(url, subject string) (*NATSSink, error) {
	nc, err := nats.Connect(url, nats.Name("autoreaderd"))
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return &NATSSink{conn: nc, subject: subject}, nil
}

func (s *NATSSink) Name() string { return "nats" }

// Publish ignores ctx; the client buffers and flushes asynchronously.
func (s *NATSSink) Publish(_ context.Context, payload []byte) error {
	return s.conn.Publish(s.subject, payload)
}

func (s *NATSSink) Close() error {
	return s.conn.Drain()
}
