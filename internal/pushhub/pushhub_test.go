package pushhub

import (
	"testing"
)

func TestNewHubStartsEmpty(t *testing.T) {
	h := New(nil)
	if h.SubscriberCount() != 0 {
		t.Fatalf("got %d subscribers, want 0", h.SubscriberCount())
	}
}

func TestBroadcastToNoSubscribersIsNoop(t *testing.T) {
	h := New(nil)
	// Must not panic or block with zero subscribers.
	h.Broadcast(EventDeviceStatus, map[string]string{"id": "d1"})
}

func TestDropOldestAndEnqueueKeepsBufferFull(t *testing.T) {
	sub := &Subscriber{send: make(chan Envelope, 2)}
	h := &Hub{subscribers: map[uint64]*Subscriber{1: sub}}

	h.Broadcast(EventDeviceStatus, 1)
	h.Broadcast(EventDeviceStatus, 2)
	// buffer now full (cap 2); this one forces a drop-oldest
	h.Broadcast(EventDeviceStatus, 3)

	sub.mu.Lock()
	lagging := sub.lagging
	sub.mu.Unlock()
	if !lagging {
		t.Fatal("expected subscriber to be marked lagging after overflow")
	}

	if len(sub.send) != 2 {
		t.Fatalf("got %d queued envelopes, want 2 (buffer cap)", len(sub.send))
	}

	first := <-sub.send
	if first.Payload != 2 {
		t.Fatalf("oldest surviving payload = %v, want 2 (envelope 1 should have been dropped)", first.Payload)
	}
}
