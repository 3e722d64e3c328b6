// Package notify forwards captured messages to external brokers.
package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/matheus3301/autoreader/internal/bus"
	"github.com/matheus3301/autoreader/internal/store"
	"go.uber.org/zap"
)

// publishTimeout bounds one delivery to one sink.
const publishTimeout = 5 * time.Second

// Sink receives the JSON encoding of each captured message.
type Sink interface {
	Name() string
	Publish(ctx context.Context, payload []byte) error
	Close() error
}

// Forwarder fans captured messages out to sinks. It reads from its own
// bus subscription, so a slow sink only loses its own backlog and never
// delays ingestion.
type Forwarder struct {
	bus    *bus.Bus
	sinks  []Sink
	logger *zap.Logger

	unsub func()
	wg    sync.WaitGroup
}

// NewForwarder creates a forwarder for sinks. It does nothing until Start.
func NewForwarder(b *bus.Bus, sinks []Sink, logger *zap.Logger) *Forwarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Forwarder{bus: b, sinks: sinks, logger: logger}
}

// Start subscribes to captured messages. With no sinks it is a no-op.
func (f *Forwarder) Start() {
	if len(f.sinks) == 0 {
		return
	}
	ch, unsub := f.bus.Subscribe(bus.KindMessageCaptured, 64)
	f.unsub = unsub

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for evt := range ch {
			msg, ok := evt.Payload.(store.Message)
			if !ok {
				continue
			}
			payload, err := json.Marshal(msg)
			if err != nil {
				f.logger.Error("failed to encode message for sinks", zap.Error(err))
				continue
			}
			f.deliver(payload)
		}
	}()
}

func (f *Forwarder) deliver(payload []byte) {
	for _, s := range f.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := s.Publish(ctx, payload); err != nil {
			f.logger.Warn("sink publish failed", zap.String("sink", s.Name()), zap.Error(err))
		}
		cancel()
	}
}

// Stop unsubscribes, waits for the delivery loop and closes every sink.
func (f *Forwarder) Stop() {
	if f.unsub != nil {
		f.unsub()
		f.wg.Wait()
	}
	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			f.logger.Warn("failed to close sink", zap.String("sink", s.Name()), zap.Error(err))
		}
	}
}
