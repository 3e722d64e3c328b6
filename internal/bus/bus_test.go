package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("capture.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindMessageCaptured, Payload: "hi"})

	select {
	case evt := <-ch:
		if evt.Kind != KindMessageCaptured {
			t.Errorf("got kind %q, want %s", evt.Kind, KindMessageCaptured)
		}
		if evt.Timestamp.IsZero() {
			t.Error("timestamp not set on publish")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestPrefixFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("transport.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindMessageCaptured})
	b.Publish(Event{Kind: KindConnected})

	select {
	case evt := <-ch:
		if evt.Kind != KindConnected {
			t.Errorf("got kind %q, want %s", evt.Kind, KindConnected)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("capture.", 10)
	unsub()
	unsub() // second call is a no-op

	b.Publish(Event{Kind: KindMessageCaptured})

	if _, ok := <-ch; ok {
		t.Error("received event after unsubscribe")
	}
	if b.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d, want 0", b.Subscribers())
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("capture.", 1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(Event{Kind: KindMessageCaptured, Payload: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a full subscriber")
	}

	evt := <-ch
	if evt.Payload != 0 {
		t.Errorf("got payload %v, want 0 (first event kept)", evt.Payload)
	}
	if b.Dropped() != 99 {
		t.Errorf("Dropped() = %d, want 99", b.Dropped())
	}
}
