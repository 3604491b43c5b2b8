package effects

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/lifxd/lifxd/internal/wire"
)

// State is a PlaybackSession's position in the state machine spec.md §4.5
// draws out:
//
//	start -> SNAPSHOTTING -> PLAYING -> (natural end | stop) -> RESTORING -> ENDED
type State string

const (
	StateSnapshotting State = "snapshotting"
	StatePlaying      State = "playing"
	StateRestoring    State = "restoring"
	StateEnded        State = "ended"
)

// DeviceTarget is the minimal device shape effects needs from the registry:
// current state to snapshot, online-ness to decide whether a target can
// start at all, and the numeric id a Step.DeviceIDs filter is scoped to.
type DeviceTarget struct {
	ID       int
	MAC      string
	Address  net.IP
	IsOnline bool
	Power    bool
	Color    wire.HSBK
}

// Session is one device's run of one effect: a first-class object with
// explicit state, replacing the "iterate a list of timer handles" pattern
// spec.md §9 calls out as a defect in the source.
type Session struct {
	ID       string
	EffectID string
	MAC      string
	DeviceID int

	mu       sync.Mutex
	state    State
	snapshot Snapshot
	addr     net.IP
	cancel   chan struct{}
	done     chan struct{}
}

func newSession(effectID, mac string, deviceID int) *Session {
	return &Session{
		ID:       uuid.NewString(),
		EffectID: effectID,
		MAC:      mac,
		DeviceID: deviceID,
		state:    StateSnapshotting,
		cancel:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Stop signals cancellation and blocks until the session's restore sequence
// has completed. Any further Stop on an already-ENDED session is a no-op,
// per the spec's terminal-state rule.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == StateEnded {
		s.mu.Unlock()
		return
	}
	select {
	case <-s.cancel:
		// already signaled
	default:
		close(s.cancel)
	}
	done := s.done
	s.mu.Unlock()

	<-done
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// State returns the session's current position in the state machine.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// run executes the full session lifecycle against sender, using script and
// the target resolved at Start time. finish is called exactly once, however
// the session ends, so Runtime can release the per-device slot.
//
// If presetSnapshot is non-nil, it is used instead of capturing target's
// current state — the superseding-snapshot policy in DESIGN.md requires a
// session that supersedes a still-in-flight one to keep that prior
// session's snapshot rather than recapture (by which point the device may
// already be mid-effect).
func (s *Session) run(sender Sender, target DeviceTarget, script Script, loopCount int, presetSnapshot *Snapshot, finish func()) {
	defer close(s.done)
	defer finish()

	defer func() {
		if r := recover(); r != nil {
			log.WithField("component", "effects").WithField("mac", s.MAC).
				WithField("panic", r).Error("effect worker panicked, restoring and ending session")
			s.restore(sender)
			s.setState(StateEnded)
		}
	}()

	s.mu.Lock()
	s.addr = target.Address
	if presetSnapshot != nil {
		s.snapshot = *presetSnapshot
	} else {
		s.snapshot = Snapshot{Power: target.Power, Color: target.Color}
	}
	s.mu.Unlock()
	s.setState(StatePlaying)

	if script.TurnOnIfOff && !target.Power {
		s.sendPower(sender, target, true, 0)
	}

	if !s.wait(time.Duration(script.GlobalDelayMs) * time.Millisecond) {
		s.restore(sender)
		s.setState(StateEnded)
		return
	}

	iterations := loopCount
	infinite := iterations == 0

	for iteration := 0; infinite || iteration < iterations; iteration++ {
		for _, step := range script.Steps {
			if !stepAppliesTo(step, s.DeviceID) {
				continue
			}

			color, err := colorFromStep(step, target.Color)
			if err == nil {
				s.sendColor(sender, target, color, step.EasingMs)
			}

			if !s.wait(time.Duration(step.DurationMs) * time.Millisecond) {
				s.restore(sender)
				s.setState(StateEnded)
				return
			}
		}
	}

	s.restore(sender)
	s.setState(StateEnded)
}

// wait blocks for d or until cancel fires, whichever comes first. It
// returns false if cancellation won the race.
func (s *Session) wait(d time.Duration) bool {
	if d <= 0 {
		select {
		case <-s.cancel:
			return false
		default:
			return true
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-s.cancel:
		return false
	}
}

// restore emits SetPower(snapshot.power), waits 100ms, then
// SetColor(snapshot, 500ms transition), per spec.md §4.5. It is best
// effort: if the device is offline the snapshot is dropped silently.
func (s *Session) restore(sender Sender) {
	s.setState(StateRestoring)

	s.mu.Lock()
	snap := s.snapshot
	addr := s.addr
	s.mu.Unlock()

	target := DeviceTarget{MAC: s.MAC, Address: addr}
	// restore frames carry res_required=1: low-frequency, correctness
	// sensitive sends, unlike the rapid in-script SetColor steps.
	s.sendPowerRes(sender, target, snap.Power, 0, true)
	time.Sleep(100 * time.Millisecond)
	s.sendColorRes(sender, target, snap.Color, 500, true)
}

func (s *Session) sendPower(sender Sender, target DeviceTarget, on bool, durationMs int) {
	s.sendPowerRes(sender, target, on, durationMs, false)
}

func (s *Session) sendPowerRes(sender Sender, target DeviceTarget, on bool, durationMs int, res bool) {
	f := &wire.Frame{
		ResRequired: res,
		Sequence:    sender.Sequence(),
		Type:        wire.TypeSetLightPower,
		Payload:     wire.SetLightPowerPayload(on, uint32(durationMs)),
	}
	if err := sender.SendTo(f, target.MAC, target.Address); err != nil {
		log.WithField("component", "effects").WithError(err).WithField("mac", target.MAC).Debug("SetLightPower send failed")
	}
}

func (s *Session) sendColor(sender Sender, target DeviceTarget, c wire.HSBK, durationMs int) {
	s.sendColorRes(sender, target, c, durationMs, false)
}

func (s *Session) sendColorRes(sender Sender, target DeviceTarget, c wire.HSBK, durationMs int, res bool) {
	f := &wire.Frame{
		ResRequired: res,
		Sequence:    sender.Sequence(),
		Type:        wire.TypeSetColor,
		Payload:     wire.SetColorPayload(c, uint32(durationMs)),
	}
	if err := sender.SendTo(f, target.MAC, target.Address); err != nil {
		log.WithField("component", "effects").WithError(err).WithField("mac", target.MAC).Debug("SetColor send failed")
	}
}

func stepAppliesTo(step Step, deviceID int) bool {
	if len(step.DeviceIDs) == 0 {
		return true
	}
	for _, id := range step.DeviceIDs {
		if id == deviceID {
			return true
		}
	}
	return false
}

// colorFromStep builds an HSBK from a step's hex (wins if both are set) or
// kelvin, applying the step's brightness. For a kelvin step, hue is kept from
// current, saturation is set to zero (white), and kelvin falls back to
// current's when the step sets none.
func colorFromStep(step Step, current wire.HSBK) (wire.HSBK, error) {
	var c wire.HSBK
	if step.Hex != "" {
		var err error
		c, err = wire.HexToHSBK(step.Hex)
		if err != nil {
			return wire.HSBK{}, err
		}
	} else {
		c = wire.HSBK{Hue: current.Hue, Saturation: 0, Kelvin: step.Kelvin}
		if step.Kelvin == 0 {
			c.Kelvin = current.Kelvin
		}
	}

	c.Brightness = uint16((step.Brightness*65535 + 50) / 100)
	return c, nil
}
