package effects

import (
	"sync"

	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"
)

// DeviceResolver resolves device ids/MACs to their current state, and lists
// the default adopted-and-online target set when no explicit targets are
// given.
type DeviceResolver interface {
	Resolve(macs []string) []DeviceTarget
	AdoptedOnline() []DeviceTarget
}

// Runtime is the per-device scripted-step scheduler: spec.md §4.5's
// PlaybackSession manager. At most one Session is active per device at any
// instant; Start on a device with an existing session supersedes it,
// reusing its snapshot per the superseding-snapshot policy in DESIGN.md.
type Runtime struct {
	sender   Sender
	devices  DeviceResolver

	mu       sync.Mutex
	sessions map[string]*Session // by MAC
}

// NewRuntime constructs a Runtime bound to sender (the transport) and
// devices (the registry, behind the DeviceResolver seam).
func NewRuntime(sender Sender, devices DeviceResolver) *Runtime {
	return &Runtime{
		sender:   sender,
		devices:  devices,
		sessions: make(map[string]*Session),
	}
}

// HasActiveSession reports whether mac currently has a non-ENDED session,
// so the poller can suppress its GetPower/GetColor poll per spec.md §4.4.
func (rt *Runtime) HasActiveSession(mac string) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	s, ok := rt.sessions[mac]
	return ok && s.State() != StateEnded
}

// Start resolves targets, validates the script, and launches one Session
// per target device in parallel. It returns immediately; each session
// proceeds asynchronously. Per-target failures (offline) are isolated: one
// offline target does not abort the others.
func (rt *Runtime) Start(effectID string, deviceMACs []string, script Script, loopCountOverride *int) ([]*Session, error) {
	if err := script.Validate(); err != nil {
		return nil, err
	}

	loopCount, err := resolveLoopCount(loopCountOverride, script)
	if err != nil {
		return nil, err
	}

	targets := rt.resolveTargets(deviceMACs)
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}

	sessions := make([]*Session, 0, len(targets))
	for _, target := range targets {
		session, err := rt.startOne(effectID, target, script, loopCount)
		if err != nil {
			log.WithField("component", "effects").WithError(err).WithField("mac", target.MAC).Warn("target skipped")
			continue
		}
		sessions = append(sessions, session)
	}

	if len(sessions) == 0 {
		return nil, ErrNoTargets
	}
	return sessions, nil
}

func resolveLoopCount(override *int, script Script) (int, error) {
	switch {
	case override != nil:
		if *override < 0 {
			return 0, errors.NewNotValid(nil, "loopCount must not be negative")
		}
		return *override, nil
	case script.LoopCount != 0:
		if script.LoopCount < 0 {
			return 0, errors.NewNotValid(nil, "script loopCount must not be negative")
		}
		return script.LoopCount, nil
	case script.Loop:
		return 0, nil
	default:
		return 1, nil
	}
}

func (rt *Runtime) resolveTargets(deviceMACs []string) []DeviceTarget {
	if len(deviceMACs) == 0 {
		return rt.devices.AdoptedOnline()
	}
	return rt.devices.Resolve(deviceMACs)
}

// startOne acquires the per-device session slot, superseding and waiting
// out any existing session (which runs its own restore first, giving
// sequential consistency at the device per spec.md §4.5 step 4a), then
// launches the new session's goroutine.
func (rt *Runtime) startOne(effectID string, target DeviceTarget, script Script, loopCount int) (*Session, error) {
	if !target.IsOnline {
		return nil, ErrDeviceOffline
	}

	rt.mu.Lock()
	prior, hadPrior := rt.sessions[target.MAC]
	rt.mu.Unlock()

	var reuse *Snapshot
	if hadPrior {
		prior.Stop()
		prior.mu.Lock()
		snap := prior.snapshot
		prior.mu.Unlock()
		reuse = &snap
	}

	session := newSession(effectID, target.MAC, target.ID)

	rt.mu.Lock()
	rt.sessions[target.MAC] = session
	rt.mu.Unlock()

	finish := func() {
		rt.mu.Lock()
		if rt.sessions[target.MAC] == session {
			delete(rt.sessions, target.MAC)
		}
		rt.mu.Unlock()
	}

	go session.run(rt.sender, target, script, loopCount, reuse, finish)

	return session, nil
}

// Stop stops the active session for effectID on each of deviceMACs (or all
// devices with an active session for that effect, if deviceMACs is empty).
func (rt *Runtime) Stop(effectID string, deviceMACs []string) {
	rt.mu.Lock()
	var toStop []*Session
	if len(deviceMACs) == 0 {
		for _, s := range rt.sessions {
			if s.EffectID == effectID {
				toStop = append(toStop, s)
			}
		}
	} else {
		for _, mac := range deviceMACs {
			if s, ok := rt.sessions[mac]; ok && s.EffectID == effectID {
				toStop = append(toStop, s)
			}
		}
	}
	rt.mu.Unlock()

	for _, s := range toStop {
		s.Stop()
	}
}

// StopAll stops every active session, optionally restricted to deviceMACs.
// Used for process shutdown (spec.md §5's 2s restore-flush deadline is
// enforced by the caller via a timeout around this call).
func (rt *Runtime) StopAll(deviceMACs []string) {
	rt.mu.Lock()
	var toStop []*Session
	if len(deviceMACs) == 0 {
		for _, s := range rt.sessions {
			toStop = append(toStop, s)
		}
	} else {
		for _, mac := range deviceMACs {
			if s, ok := rt.sessions[mac]; ok {
				toStop = append(toStop, s)
			}
		}
	}
	rt.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range toStop {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Stop()
		}(s)
	}
	wg.Wait()
}
