package effects

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/lifxd/lifxd/internal/wire"
)

type sentFrame struct {
	mac string
	typ wire.Type
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentFrame
	seq  uint8
}

func (f *fakeSender) SendTo(fr *wire.Frame, mac string, ip net.IP) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentFrame{mac: mac, typ: fr.Type})
	return nil
}

func (f *fakeSender) Sequence() uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return f.seq
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeResolver struct {
	targets map[string]DeviceTarget
}

func (r *fakeResolver) Resolve(macs []string) []DeviceTarget {
	out := make([]DeviceTarget, 0, len(macs))
	for _, m := range macs {
		if t, ok := r.targets[m]; ok {
			out = append(out, t)
		}
	}
	return out
}

func (r *fakeResolver) AdoptedOnline() []DeviceTarget {
	out := make([]DeviceTarget, 0)
	for _, t := range r.targets {
		if t.IsOnline {
			out = append(out, t)
		}
	}
	return out
}

func TestScriptValidateRejectsShortDuration(t *testing.T) {
	s := &Script{Steps: []Step{{DurationMs: 50}}}
	if err := s.Validate(); err == nil {
		t.Fatal("expected rejection of sub-100ms duration")
	}
}

func TestScriptValidateRejectsEmpty(t *testing.T) {
	s := &Script{}
	if err := s.Validate(); err == nil {
		t.Fatal("expected rejection of empty script")
	}
}

func TestScriptValidateRejectsBadHex(t *testing.T) {
	s := &Script{Steps: []Step{{Hex: "FF0000", DurationMs: 100}}}
	if err := s.Validate(); err == nil {
		t.Fatal("expected rejection of hex without leading #")
	}
}

func TestStartNoTargets(t *testing.T) {
	sender := &fakeSender{}
	resolver := &fakeResolver{targets: map[string]DeviceTarget{}}
	rt := NewRuntime(sender, resolver)

	script := Script{Steps: []Step{{DurationMs: 100, Brightness: 50}}}
	if _, err := rt.Start("effect1", nil, script, nil); err != ErrNoTargets {
		t.Fatalf("Start with no targets: %v, want ErrNoTargets", err)
	}
}

func TestStartSkipsOfflineTarget(t *testing.T) {
	sender := &fakeSender{}
	resolver := &fakeResolver{targets: map[string]DeviceTarget{
		"aa": {MAC: "aa", IsOnline: false},
		"bb": {MAC: "bb", IsOnline: true},
	}}
	rt := NewRuntime(sender, resolver)

	script := Script{Steps: []Step{{DurationMs: 100, Brightness: 50}}}
	sessions, err := rt.Start("effect1", []string{"aa", "bb"}, script, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(sessions) != 1 || sessions[0].MAC != "bb" {
		t.Fatalf("expected exactly one session for the online target, got %+v", sessions)
	}
}

func TestSessionCompletesAndRestores(t *testing.T) {
	sender := &fakeSender{}
	resolver := &fakeResolver{targets: map[string]DeviceTarget{
		"aa": {MAC: "aa", IsOnline: true, Power: true, Color: wire.HSBK{Brightness: 32768, Kelvin: 3500}},
	}}
	rt := NewRuntime(sender, resolver)

	one := 1
	script := Script{Steps: []Step{{DurationMs: 100, Brightness: 100, Kelvin: 6500}}}
	sessions, err := rt.Start("effect1", []string{"aa"}, script, &one)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	session := sessions[0]
	deadline := time.After(2 * time.Second)
	for session.State() != StateEnded {
		select {
		case <-deadline:
			t.Fatalf("session did not reach ENDED in time, state=%v", session.State())
		case <-time.After(10 * time.Millisecond):
		}
	}

	if rt.HasActiveSession("aa") {
		t.Fatalf("ended session still reported active")
	}
	if sender.count() < 2 {
		t.Fatalf("expected at least step + restore sends, got %d", sender.count())
	}
}

func TestSessionStopTriggersRestoreBeforeFurtherSteps(t *testing.T) {
	sender := &fakeSender{}
	resolver := &fakeResolver{targets: map[string]DeviceTarget{
		"aa": {MAC: "aa", IsOnline: true, Power: true, Color: wire.HSBK{Brightness: 32768, Kelvin: 3500}},
	}}
	rt := NewRuntime(sender, resolver)

	zero := 0 // infinite
	script := Script{Steps: []Step{{DurationMs: 200, Brightness: 100, Kelvin: 6500}}}
	sessions, err := rt.Start("effect1", []string{"aa"}, script, &zero)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	session := sessions[0]

	time.Sleep(50 * time.Millisecond)
	rt.Stop("effect1", []string{"aa"})

	if session.State() != StateEnded {
		t.Fatalf("Stop returned before session reached ENDED, state=%v", session.State())
	}
	if rt.HasActiveSession("aa") {
		t.Fatalf("HasActiveSession still true after Stop returned")
	}

	// Past the 200ms step duration, no further step may have been sent, and
	// the last two sends must be the restore pair.
	sent := sender.count()
	time.Sleep(250 * time.Millisecond)
	if sender.count() != sent {
		t.Fatalf("session sent %d more frames after Stop returned", sender.count()-sent)
	}
	sender.mu.Lock()
	last := sender.sent[len(sender.sent)-2:]
	sender.mu.Unlock()
	if last[0].typ != wire.TypeSetLightPower || last[1].typ != wire.TypeSetColor {
		t.Fatalf("last sends = %+v, want restore SetLightPower then SetColor", last)
	}
}

func TestStepAppliesToEmptyDeviceIDsMatchesEverything(t *testing.T) {
	step := Step{DeviceIDs: nil}
	if !stepAppliesTo(step, 7) {
		t.Fatal("a step with no deviceIds should apply to every target")
	}
}

func TestStepAppliesToFiltersByNumericDeviceID(t *testing.T) {
	step := Step{DeviceIDs: []int{1, 3}}
	if !stepAppliesTo(step, 3) {
		t.Fatal("expected step to apply to device id 3")
	}
	if stepAppliesTo(step, 2) {
		t.Fatal("expected step not to apply to device id 2")
	}
}

func TestSessionSkipsStepScopedToAnotherDeviceID(t *testing.T) {
	sender := &fakeSender{}
	resolver := &fakeResolver{targets: map[string]DeviceTarget{
		"aa": {ID: 5, MAC: "aa", IsOnline: true, Power: true, Color: wire.HSBK{Brightness: 10000, Kelvin: 2700}},
	}}
	rt := NewRuntime(sender, resolver)

	one := 1
	script := Script{Steps: []Step{
		{DurationMs: 100, Brightness: 100, Kelvin: 6500, DeviceIDs: []int{99}},
	}}
	sessions, err := rt.Start("effect1", []string{"aa"}, script, &one)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	session := sessions[0]

	deadline := time.After(2 * time.Second)
	for session.State() != StateEnded {
		select {
		case <-deadline:
			t.Fatalf("session did not reach ENDED in time, state=%v", session.State())
		case <-time.After(10 * time.Millisecond):
		}
	}

	// The only step is scoped to a different device id, so the only sends
	// should be the restore pair (SetLightPower + SetColor), never a
	// mid-script SetColor for the skipped step.
	if sender.count() != 2 {
		t.Fatalf("expected exactly 2 sends (restore only), got %d: %+v", sender.count(), sender.sent)
	}
}

func TestSupersedingSessionReusesFirstSnapshot(t *testing.T) {
	sender := &fakeSender{}
	resolver := &fakeResolver{targets: map[string]DeviceTarget{
		"aa": {MAC: "aa", IsOnline: true, Power: true, Color: wire.HSBK{Brightness: 10000, Kelvin: 2700}},
	}}
	rt := NewRuntime(sender, resolver)

	zero := 0
	script := Script{Steps: []Step{{DurationMs: 500, Brightness: 100, Kelvin: 6500}}}
	first, err := rt.Start("effect1", []string{"aa"}, script, &zero)
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}
	firstSession := first[0]

	time.Sleep(20 * time.Millisecond)

	one := 1
	second, err := rt.Start("effect2", []string{"aa"}, script, &one)
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	secondSession := second[0]

	deadline := time.After(2 * time.Second)
	for secondSession.State() != StateEnded {
		select {
		case <-deadline:
			t.Fatalf("second session never ended")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if firstSession.State() != StateEnded {
		t.Fatalf("superseded session was not ended")
	}

	secondSession.mu.Lock()
	snap := secondSession.snapshot
	secondSession.mu.Unlock()
	if snap.Color.Brightness != 10000 || snap.Color.Kelvin != 2700 {
		t.Fatalf("superseding session snapshot = %+v, want the original pre-first-start state", snap)
	}
}
