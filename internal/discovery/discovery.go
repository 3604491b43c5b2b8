// Package discovery runs the periodic jobs that keep the registry fresh:
// broadcast GetService discovery, per-device GetPower/GetColor polling, and
// the liveness sweep that marks unresponsive devices offline.
//
// Discovery relies on broadcast alone; it deliberately does not enumerate
// a /24 the way the source implementation did (spec.md §9 flags that as a
// misfeature — it assumes a subnet shape this module has no business
// assuming).
package discovery

import (
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/lifxd/lifxd/internal/wire"
)

const (
	// DiscoveryInterval is how often the background discovery broadcast
	// fires, per spec.md §4.4.
	DiscoveryInterval = 30 * time.Second

	// PollInterval is how often each known device is polled for power
	// and color, per spec.md §4.4.
	PollInterval = 2 * time.Second

	// LivenessInterval is how often the sweeper checks for stale
	// devices, per spec.md §4.3.
	LivenessInterval = 10 * time.Second
)

// Sender is the subset of transport.Transport discovery needs.
type Sender interface {
	Broadcast(f *wire.Frame) error
	SendTo(f *wire.Frame, mac string, ip net.IP) error
	Sequence() uint8
}

// DeviceSource lists the known devices to poll. Whether an effect session
// currently owns one is SessionChecker's concern.
type DeviceSource interface {
	Devices() []PollTarget
}

// PollTarget is the minimal device shape the poller needs.
type PollTarget struct {
	MAC     string
	Address net.IP
}

// SessionChecker reports whether a device currently has an active effect
// session, so the poller can avoid fighting it (spec.md §4.4).
type SessionChecker interface {
	HasActiveSession(mac string) bool
}

// Sweeper marks devices stale past their grace period.
type Sweeper interface {
	SweepStale()
}

// Runner drives the three periodic jobs on independent tickers, the way
// the pack's session-scheduling code (alessio-palumbo-lifxlan-go) splits
// high-frequency, low-frequency, and liveness concerns onto separate
// tickers rather than sharing one clock.
type Runner struct {
	sender   Sender
	devices  DeviceSource
	sessions SessionChecker
	sweeper  Sweeper

	discoverNow chan struct{}
	stop        chan struct{}
}

// New constructs a Runner. Call Start to begin the background goroutines.
func New(sender Sender, devices DeviceSource, sessions SessionChecker, sweeper Sweeper) *Runner {
	return &Runner{
		sender:      sender,
		devices:     devices,
		sessions:    sessions,
		sweeper:     sweeper,
		discoverNow: make(chan struct{}, 1),
		stop:        make(chan struct{}),
	}
}

// Start launches the discovery, poll, and liveness goroutines.
func (r *Runner) Start() {
	go r.discoveryLoop()
	go r.pollLoop()
	go r.livenessLoop()
}

// Stop halts all three goroutines.
func (r *Runner) Stop() {
	close(r.stop)
}

// TriggerDiscovery requests an out-of-band GetService broadcast, e.g. from
// POST /api/devices/discover.
func (r *Runner) TriggerDiscovery() {
	select {
	case r.discoverNow <- struct{}{}:
	default:
	}
}

func (r *Runner) discoveryLoop() {
	ticker := time.NewTicker(DiscoveryInterval)
	defer ticker.Stop()

	r.discover()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.discover()
		case <-r.discoverNow:
			r.discover()
		}
	}
}

func (r *Runner) discover() {
	log.WithField("component", "discovery").Debug("broadcasting GetService")
	err := r.sender.Broadcast(&wire.Frame{
		ResRequired: true,
		Sequence:    r.sender.Sequence(),
		Type:        wire.TypeGetService,
		Payload:     wire.GetServicePayload(),
	})
	if err != nil {
		log.WithField("component", "discovery").WithError(err).Warn("discovery broadcast failed")
	}
}

// HandleStateService sends GetLabel to the address a StateService reply
// came from, provided it advertises the UDP service on the LIFX port.
func (r *Runner) HandleStateService(svc *wire.StateServicePayload, addr *net.UDPAddr, mac string) {
	if svc.Service != wire.ServiceUDP || svc.Port != wire.Port {
		return
	}

	err := r.sender.SendTo(&wire.Frame{
		ResRequired: true,
		Sequence:    r.sender.Sequence(),
		Type:        wire.TypeGetLabel,
		Payload:     wire.GetLabelPayload(),
	}, mac, addr.IP)
	if err != nil {
		log.WithField("component", "discovery").WithError(err).WithField("mac", mac).Warn("GetLabel failed")
	}
}

func (r *Runner) pollLoop() {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.pollAll()
		}
	}
}

func (r *Runner) pollAll() {
	for _, d := range r.devices.Devices() {
		if r.sessions.HasActiveSession(d.MAC) {
			continue
		}
		r.pollOne(d)
	}
}

func (r *Runner) pollOne(d PollTarget) {
	seq := r.sender.Sequence()
	if err := r.sender.SendTo(&wire.Frame{ResRequired: true, Sequence: seq, Type: wire.TypeGetPower, Payload: wire.GetPowerPayload()}, d.MAC, d.Address); err != nil {
		log.WithField("component", "discovery").WithError(err).WithField("mac", d.MAC).Debug("GetPower poll failed")
	}

	seq = r.sender.Sequence()
	if err := r.sender.SendTo(&wire.Frame{ResRequired: true, Sequence: seq, Type: wire.TypeGetColor, Payload: wire.GetColorPayload()}, d.MAC, d.Address); err != nil {
		log.WithField("component", "discovery").WithError(err).WithField("mac", d.MAC).Debug("GetColor poll failed")
	}
}

func (r *Runner) livenessLoop() {
	ticker := time.NewTicker(LivenessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.sweeper.SweepStale()
		}
	}
}
