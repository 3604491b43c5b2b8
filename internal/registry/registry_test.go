package registry

import (
	"testing"
	"time"

	"github.com/lifxd/lifxd/internal/wire"
)

func label(s string) *string { return &s }
func boolp(b bool) *bool     { return &b }

func TestObserveAssignsSurrogateID(t *testing.T) {
	r := New(time.Minute)

	d1 := r.Observe(StateObservation{MAC: "d073d500aa11", Label: label("Lamp")})
	if d1.ID == 0 {
		t.Fatalf("expected nonzero surrogate id")
	}

	d2 := r.Observe(StateObservation{MAC: "d073d500aa11", Power: boolp(true)})
	if d2.ID != d1.ID {
		t.Errorf("re-observing the same MAC changed the surrogate id: %d != %d", d2.ID, d1.ID)
	}
	if d2.Label != "Lamp" {
		t.Errorf("merge dropped prior label: %q", d2.Label)
	}
	if !d2.Power {
		t.Errorf("merge did not apply new power")
	}
}

func TestMarkStaleRequiresGracePeriod(t *testing.T) {
	r := New(50 * time.Millisecond)
	r.Observe(StateObservation{MAC: "d073d500aa11"})

	r.MarkStale("d073d500aa11")
	d, _ := r.GetByMAC("d073d500aa11")
	if !d.IsOnline {
		t.Fatalf("device went offline before grace period elapsed")
	}

	time.Sleep(60 * time.Millisecond)
	r.MarkStale("d073d500aa11")
	d, _ = r.GetByMAC("d073d500aa11")
	if d.IsOnline {
		t.Fatalf("device did not go offline after grace period elapsed")
	}
}

func TestMutateUnknownID(t *testing.T) {
	r := New(time.Minute)
	if _, err := r.Mutate(999, Patch{}); err != ErrNotFound {
		t.Fatalf("Mutate unknown id: %v, want ErrNotFound", err)
	}
}

func TestEventsEmittedOnObserveAndStale(t *testing.T) {
	r := New(10 * time.Millisecond)
	r.Observe(StateObservation{MAC: "d073d500aa11", Color: &wire.HSBK{Brightness: 100}})

	select {
	case ev := <-r.Events():
		if ev.Kind != EventUpdated {
			t.Errorf("first event kind = %v, want EventUpdated", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for observe event")
	}

	time.Sleep(20 * time.Millisecond)
	r.MarkStale("d073d500aa11")

	select {
	case ev := <-r.Events():
		if ev.Kind != EventStale {
			t.Errorf("second event kind = %v, want EventStale", ev.Kind)
		}
		if ev.Device.IsOnline {
			t.Errorf("stale event device still marked online")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for stale event")
	}
}
