// Package registry holds the authoritative in-memory catalog of known LIFX
// devices, keyed by MAC, with online/offline tracking and change events
// fanned out to a single broadcast channel.
package registry

import (
	"net"
	"sync"
	"time"

	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"

	"github.com/lifxd/lifxd/internal/wire"
)

// ErrNotFound is returned by Mutate/Delete for an unknown surrogate id.
var ErrNotFound = errors.NotFoundf("device")

// DefaultGracePeriod is how long a device may go unseen before it is marked
// offline, per spec.md §3.
const DefaultGracePeriod = 60 * time.Second

// Device is the registry's record for one LIFX device.
type Device struct {
	ID         int
	MAC        string
	Label      string
	Address    net.IP
	DeviceType string
	IsOnline   bool
	LastSeen   time.Time
	IsAdopted  bool
	Power      bool
	Color      wire.HSBK
}

// BrightnessPercent derives the 0-100 brightness percent from the 16-bit
// wire brightness.
func (d Device) BrightnessPercent() int {
	return int((uint32(d.Color.Brightness)*100 + 32767) / 65535)
}

// Temperature derives the kelvin temperature, or 0 for a non-white color.
func (d Device) Temperature() uint16 {
	return d.Color.Kelvin
}

// EventKind identifies why a DeviceEvent was emitted.
type EventKind string

const (
	// EventUpdated fires on observe() and mutate() — anything that
	// changes a device's recorded state.
	EventUpdated EventKind = "device_updated"
	// EventStale fires when a device transitions online->offline.
	EventStale EventKind = "device_stale"
)

// Event is emitted onto the registry's broadcast channel whenever a device
// is created, updated, or goes stale.
type Event struct {
	Kind   EventKind
	Device Device
}

// StateObservation is an inbound, decoded wire update merged into a
// device's record by observe().
type StateObservation struct {
	MAC     string
	Address net.IP
	Label   *string
	Power   *bool
	Color   *wire.HSBK
}

// Patch is a partial, user-driven mutation applied by Mutate().
type Patch struct {
	Label     *string
	IsAdopted *bool
}

// Registry is the single-writer, many-reader device catalog. All mutation
// goes through observe/markStale/Mutate; reads take a stable snapshot under
// RLock.
type Registry struct {
	mu        sync.RWMutex
	devices   map[string]*Device // by MAC
	ids       map[int]string     // surrogate id -> MAC
	nextID    int
	gracePeriod time.Duration

	events chan Event
}

// New constructs an empty Registry. gracePeriod is the online/offline
// threshold; pass 0 to use DefaultGracePeriod.
func New(gracePeriod time.Duration) *Registry {
	if gracePeriod <= 0 {
		gracePeriod = DefaultGracePeriod
	}
	return &Registry{
		devices:     make(map[string]*Device),
		ids:         make(map[int]string),
		gracePeriod: gracePeriod,
		events:      make(chan Event, 256),
	}
}

// Events returns the registry's broadcast channel (buffered, 256 events;
// when full, new events are dropped with a warning). Nothing in this module
// reads it: push messages are sent by the frame dispatcher and the HTTP
// handlers, so an EventStale transition produces no push message.
func (r *Registry) Events() <-chan Event {
	return r.events
}

func (r *Registry) emit(ev Event) {
	select {
	case r.events <- ev:
	default:
		log.WithField("component", "registry").Warn("event channel full, dropping event")
	}
}

// Observe upserts a device by MAC from an inbound state observation: assigns
// a surrogate id if absent, merges fields, sets IsOnline true, bumps
// LastSeen, and emits EventUpdated.
func (r *Registry) Observe(obs StateObservation) Device {
	r.mu.Lock()

	d, ok := r.devices[obs.MAC]
	if !ok {
		r.nextID++
		d = &Device{ID: r.nextID, MAC: obs.MAC}
		r.devices[obs.MAC] = d
		r.ids[d.ID] = obs.MAC
	}

	if obs.Address != nil {
		d.Address = obs.Address
	}
	if obs.Label != nil {
		d.Label = *obs.Label
	}
	if obs.Power != nil {
		d.Power = *obs.Power
	}
	if obs.Color != nil {
		d.Color = *obs.Color
	}

	now := time.Now()
	if d.LastSeen.Before(now) {
		d.LastSeen = now
	}
	d.IsOnline = true

	snapshot := *d
	r.mu.Unlock()

	r.emit(Event{Kind: EventUpdated, Device: snapshot})
	return snapshot
}

// MarkStale transitions a device online->offline if its LastSeen predates
// the grace period. Invoked by the liveness sweeper every 10s.
func (r *Registry) MarkStale(mac string) {
	r.mu.Lock()
	d, ok := r.devices[mac]
	if !ok || !d.IsOnline || time.Since(d.LastSeen) < r.gracePeriod {
		r.mu.Unlock()
		return
	}
	d.IsOnline = false
	snapshot := *d
	r.mu.Unlock()

	log.WithField("component", "registry").WithField("mac", mac).Info("device went stale")
	r.emit(Event{Kind: EventStale, Device: snapshot})
}

// SweepStale calls MarkStale for every known device; the liveness sweeper
// calls this every 10s rather than resolving individual MACs.
func (r *Registry) SweepStale() {
	r.mu.RLock()
	macs := make([]string, 0, len(r.devices))
	for mac := range r.devices {
		macs = append(macs, mac)
	}
	r.mu.RUnlock()

	for _, mac := range macs {
		r.MarkStale(mac)
	}
}

// Mutate applies a user-driven partial patch by surrogate id. Rejects an
// unknown id with ErrNotFound.
func (r *Registry) Mutate(id int, patch Patch) (Device, error) {
	r.mu.Lock()
	mac, ok := r.ids[id]
	if !ok {
		r.mu.Unlock()
		return Device{}, ErrNotFound
	}
	d := r.devices[mac]

	if patch.Label != nil {
		d.Label = *patch.Label
	}
	if patch.IsAdopted != nil {
		d.IsAdopted = *patch.IsAdopted
	}

	snapshot := *d
	r.mu.Unlock()

	r.emit(Event{Kind: EventUpdated, Device: snapshot})
	return snapshot, nil
}

// Delete removes a device from the registry by surrogate id. Only an
// explicit user request may delete a device, per spec.md §3.
func (r *Registry) Delete(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	mac, ok := r.ids[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.devices, mac)
	delete(r.ids, id)
	return nil
}

// Get returns a snapshot of one device by surrogate id.
func (r *Registry) Get(id int) (Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mac, ok := r.ids[id]
	if !ok {
		return Device{}, ErrNotFound
	}
	return *r.devices[mac], nil
}

// GetByMAC returns a snapshot of one device by MAC.
func (r *Registry) GetByMAC(mac string) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[mac]
	if !ok {
		return Device{}, false
	}
	return *d, true
}

// List returns a snapshot of every known device.
func (r *Registry) List() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, *d)
	}
	return out
}

// AdoptedOnline returns every device that is both adopted and currently
// online, the default effect-runtime target set per spec.md §4.5.
func (r *Registry) AdoptedOnline() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Device, 0)
	for _, d := range r.devices {
		if d.IsAdopted && d.IsOnline {
			out = append(out, *d)
		}
	}
	return out
}
