package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	b.Publish(Event{Kind: "session.connection_changed", Timestamp: time.Now(), Payload: "test"})

	select {
	case evt := <-ch:
		if evt.Kind != "session.connection_changed" {
			t.Errorf("got kind %q, want session.connection_changed", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestPrefixFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("store.", 10)
	defer unsub()

	b.Publish(Event{Kind: "session.connection_changed"})
	b.Publish(Event{Kind: "store.messages.add"})

	select {
	case evt := <-ch:
		if evt.Kind != "store.messages.add" {
			t.Errorf("got kind %q, want store.messages.add", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// The session event must not have been delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("store.", 10)
	unsub()

	b.Publish(Event{Kind: "store.login"})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("engine.", 1)
	defer unsub()

	b.Publish(Event{Kind: "engine.event_dropped"})
	// Buffer is full; this one is dropped instead of blocking.
	b.Publish(Event{Kind: "engine.fetch_failed"})

	evt := <-ch
	if evt.Kind != "engine.event_dropped" {
		t.Errorf("got %q, want engine.event_dropped", evt.Kind)
	}
}
