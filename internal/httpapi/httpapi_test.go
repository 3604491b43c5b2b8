package httpapi

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lifxd/lifxd/internal/audiostore"
	"github.com/lifxd/lifxd/internal/catalog"
	"github.com/lifxd/lifxd/internal/config"
	"github.com/lifxd/lifxd/internal/effects"
	"github.com/lifxd/lifxd/internal/pushhub"
	"github.com/lifxd/lifxd/internal/registry"
	"github.com/lifxd/lifxd/internal/wire"
)

type fakeDiscovery struct{ triggered bool }

func (f *fakeDiscovery) TriggerDiscovery() { f.triggered = true }

type fakeSender struct{}

func (fakeSender) SendTo(f *wire.Frame, mac string, ip net.IP) error { return nil }
func (fakeSender) Sequence() uint8                                  { return 1 }

func newTestAPI(t *testing.T) (*API, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	reg := registry.New(0)
	cat := catalog.New()
	cat.SeedDefaults()
	rt := effects.NewRuntime(fakeSender{}, registryResolver{reg})
	hub := pushhub.New(nil)
	store, err := audiostore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("audiostore.Open: %v", err)
	}

	return New(cfg, reg, cat, rt, &fakeDiscovery{}, store, hub, fakeSender{}), cfg
}

// registryResolver adapts registry.Registry to effects.DeviceResolver for
// test wiring, the same adapter cmd/lifxd constructs at startup.
type registryResolver struct{ reg *registry.Registry }

func (r registryResolver) Resolve(macs []string) []effects.DeviceTarget {
	out := make([]effects.DeviceTarget, 0, len(macs))
	for _, mac := range macs {
		if d, ok := r.reg.GetByMAC(mac); ok {
			out = append(out, effects.DeviceTarget{ID: d.ID, MAC: d.MAC, Address: d.Address, IsOnline: d.IsOnline, Power: d.Power, Color: d.Color})
		}
	}
	return out
}

func (r registryResolver) AdoptedOnline() []effects.DeviceTarget {
	var out []effects.DeviceTarget
	for _, d := range r.reg.AdoptedOnline() {
		out = append(out, effects.DeviceTarget{ID: d.ID, MAC: d.MAC, Address: d.Address, IsOnline: d.IsOnline, Power: d.Power, Color: d.Color})
	}
	return out
}

func TestListDevicesIsUnauthenticated(t *testing.T) {
	api, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/devices", nil)
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/devices = %d, want 200", rec.Code)
	}
}

func TestMutatingRouteRejectsMissingAPIKey(t *testing.T) {
	api, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/api/devices/discover", nil)
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("POST without api key configured = %d, want 400", rec.Code)
	}
}

func TestGenerateKeyThenMutatingRouteSucceeds(t *testing.T) {
	api, cfg := newTestAPI(t)
	_ = cfg

	req := httptest.NewRequest(http.MethodGet, "/unsecured/generate", nil)
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /unsecured/generate = %d, want 200", rec.Code)
	}

	if api.cfg.APIKey.String() == "00000000-0000-0000-0000-000000000000" {
		t.Fatal("generate did not assign an api key")
	}

	req = httptest.NewRequest(http.MethodPost, "/api/devices/discover?key="+api.cfg.APIKey.String(), nil)
	rec = httptest.NewRecorder()
	api.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST with valid api key = %d, want 200", rec.Code)
	}
}

func TestUpdateDeviceSetsAdoptedFlag(t *testing.T) {
	api, cfg := newTestAPI(t)
	cfg.APIKey = uuid.New()

	dev := api.registry.Observe(registry.StateObservation{MAC: "d073d500aa11", Address: net.ParseIP("10.0.0.5")})

	body := strings.NewReader(`{"isAdopted": true}`)
	req := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/api/devices/%d?key=%s", dev.ID, cfg.APIKey), body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("PUT /api/devices/:id = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}

	updated, err := api.registry.Get(dev.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !updated.IsAdopted {
		t.Fatal("expected device to be marked adopted")
	}
	if len(api.registry.AdoptedOnline()) != 1 {
		t.Fatal("expected the adopted online device to appear in AdoptedOnline()")
	}
}

func TestSceneScriptFallsBackToConfigurationWhenNoStepScript(t *testing.T) {
	scene := &catalog.Scene{
		Configuration: map[string]interface{}{"brightness": 50, "temperature": 3000},
		TurnOnIfOff:   true,
	}
	script := sceneScript(scene)
	if len(script.Steps) != 1 {
		t.Fatalf("got %d steps, want 1", len(script.Steps))
	}
	if script.Steps[0].Brightness != 50 || script.Steps[0].Kelvin != 3000 {
		t.Fatalf("got step %+v, want brightness=50 kelvin=3000", script.Steps[0])
	}
	if !script.TurnOnIfOff {
		t.Fatal("expected TurnOnIfOff to carry through from the scene")
	}
}

func TestSceneScriptPrefersExplicitStepScript(t *testing.T) {
	explicit := &effects.Script{Steps: []effects.Step{{DurationMs: 500, Brightness: 10}}}
	scene := &catalog.Scene{Script: explicit, Configuration: map[string]interface{}{"brightness": 99}}
	if got := sceneScript(scene); got != explicit {
		t.Fatalf("sceneScript did not prefer the explicit script")
	}
}
