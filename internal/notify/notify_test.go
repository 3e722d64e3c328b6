package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/autoreader/internal/bus"
	"github.com/matheus3301/autoreader/internal/store"
)

type fakeSink struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
	closed   bool
}

func (f *fakeSink) Name() string { return "fake" }

func (f *fakeSink) Publish(_ context.Context, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return f.err
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func waitCount(t *testing.T, s *fakeSink, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.count() < n {
		if time.Now().After(deadline) {
			t.Fatalf("sink got %d payloads, want %d", s.count(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestForwarderDeliversToEverySink(t *testing.T) {
	b := bus.New()
	ok := &fakeSink{}
	failing := &fakeSink{err: errors.New("broker down")}
	f := NewForwarder(b, []Sink{failing, ok}, nil)
	f.Start()

	b.Publish(bus.Event{Kind: bus.KindMessageCaptured, Payload: store.Message{FromID: "7", Text: "hi"}})
	b.Publish(bus.Event{Kind: bus.KindHistoryCleared})
	b.Publish(bus.Event{Kind: bus.KindMessageCaptured, Payload: store.Message{FromID: "8", Text: "yo"}})

	waitCount(t, ok, 2)
	waitCount(t, failing, 2)

	var got store.Message
	if err := json.Unmarshal(ok.payloads[0], &got); err != nil {
		t.Fatal(err)
	}
	if got.FromID != "7" || got.Text != "hi" {
		t.Errorf("payload = %+v", got)
	}

	f.Stop()
	if !ok.closed || !failing.closed {
		t.Error("Stop() should close every sink")
	}
	if b.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d after Stop, want 0", b.Subscribers())
	}
}

func TestForwarderWithoutSinks(t *testing.T) {
	b := bus.New()
	f := NewForwarder(b, nil, nil)
	f.Start()
	if b.Subscribers() != 0 {
		t.Error("forwarder without sinks should not subscribe")
	}
	f.Stop()
}

func TestNewRedisSinkUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := NewRedisSink(ctx, "127.0.0.1:1", "", 0, "c"); err == nil {
		t.Error("NewRedisSink() should fail for an unreachable server")
	}
}

func TestNewNATSSinkUnreachable(t *testing.T) {
	if _, err := NewNATSSink("nats://127.0.0.1:1", "s"); err == nil {
		t.Error("NewNATSSink() should fail for an unreachable server")
	}
}
