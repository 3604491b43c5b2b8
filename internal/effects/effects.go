// Package effects implements the per-device scripted-step scheduler: the
// PlaybackSession state machine described in spec.md §4.5. It is the core
// of this module — a per-device worker that plays a Script's steps in
// order, loops it finitely or forever, supports stop-with-restore, and
// guarantees at most one active session per device.
package effects

import (
	"net"
	"strconv"

	"github.com/juju/errors"

	"github.com/lifxd/lifxd/internal/wire"
)

var (
	// ErrNoTargets is returned when Start has no device to run on: with no
	// explicit devices, none is adopted and online; with explicit devices,
	// none is known and online. Explicit devices are not filtered by the
	// adopted flag.
	ErrNoTargets = errors.New("effects: no targets")

	// ErrDeviceOffline aborts one target; others continue.
	ErrDeviceOffline = errors.New("effects: device offline")

	// ErrInvalidScript is returned by Validate for a malformed Script.
	ErrInvalidScript = errors.New("effects: invalid script")
)

// Step is one entry in a Script, per spec.md §3 LightingEffect. DeviceIDs
// uses the same numeric surrogate id space as every other device reference
// in the API (DeviceOut.ID, applyLightingEffectIn.DeviceIDs, sceneIn
// TargetDevices) rather than MAC, so a client never needs a second id space
// just to scope a step.
type Step struct {
	Brightness int    `json:"brightness"` // 0-100
	Hex        string `json:"hex,omitempty"`
	Kelvin     uint16 `json:"kelvin,omitempty"`
	DurationMs int    `json:"durationMs"`
	EasingMs   int    `json:"easingMs,omitempty"`
	DeviceIDs  []int  `json:"deviceIds,omitempty"` // empty = apply to all targets
}

// Script is the ordered list of steps a LightingEffect or Scene plays.
type Script struct {
	Loop          bool   `json:"loop,omitempty"`
	LoopCount     int    `json:"loopCount,omitempty"` // 0 with Loop set = infinite; 0 with Loop unset means 1
	GlobalDelayMs int    `json:"globalDelayMs,omitempty"`
	Steps         []Step `json:"steps"`
	TurnOnIfOff   bool   `json:"turnOnIfOff,omitempty"`
}

// Validate checks the invariants spec.md §3/§4.5 require: at least one
// step, every step's duration >= 100ms, and hex colors (if set) strictly
// "#RRGGBB".
func (s *Script) Validate() error {
	if len(s.Steps) == 0 {
		return errors.Annotate(ErrInvalidScript, "script has no steps")
	}
	for i, step := range s.Steps {
		if step.DurationMs < 100 {
			return errors.Annotate(ErrInvalidScript, fieldErr(i, "duration below 100ms"))
		}
		if step.Hex != "" {
			if _, err := wire.HexToHSBK(step.Hex); err != nil {
				return errors.Annotate(ErrInvalidScript, fieldErr(i, "invalid hex color"))
			}
		}
	}
	return nil
}

func fieldErr(i int, msg string) string {
	return "step " + strconv.Itoa(i) + ": " + msg
}

// Snapshot is a device's state captured at session start, restored on stop
// or natural completion.
type Snapshot struct {
	Power bool
	Color wire.HSBK
}

// Sender is the subset of transport.Transport the runtime needs to emit
// SetColor/SetPower frames.
type Sender interface {
	SendTo(f *wire.Frame, mac string, ip net.IP) error
	Sequence() uint8
}
