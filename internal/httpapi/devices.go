package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
	"github.com/loopfz/gadgeto/tonic"
	"github.com/wI2L/fizz"

	"github.com/lifxd/lifxd/internal/pushhub"
	"github.com/lifxd/lifxd/internal/registry"
	"github.com/lifxd/lifxd/internal/wire"
)

// DeviceOut is the wire shape of a registry.Device returned to clients.
type DeviceOut struct {
	ID         int    `json:"id"`
	MAC        string `json:"mac"`
	Label      string `json:"label"`
	IsOnline   bool   `json:"isOnline"`
	IsAdopted  bool   `json:"isAdopted"`
	Power      bool   `json:"power"`
	Hue        uint16 `json:"hue"`
	Saturation uint16 `json:"saturation"`
	Brightness uint16 `json:"brightness"`
	Kelvin     uint16 `json:"kelvin"`
}

func deviceOut(d registry.Device) *DeviceOut {
	return &DeviceOut{
		ID:         d.ID,
		MAC:        d.MAC,
		Label:      d.Label,
		IsOnline:   d.IsOnline,
		IsAdopted:  d.IsAdopted,
		Power:      d.Power,
		Hue:        d.Color.Hue,
		Saturation: d.Color.Saturation,
		Brightness: d.Color.Brightness,
		Kelvin:     d.Color.Kelvin,
	}
}

func (a *API) registerDeviceRoutes(g *fizz.RouterGroup) {
	g.GET("/devices", []fizz.OperationOption{
		fizz.Summary("Lists every known device."),
	}, tonic.Handler(a.listDevices, http.StatusOK))

	g.POST("/devices/discover", []fizz.OperationOption{
		fizz.Summary("Triggers an out-of-band discovery broadcast."),
	}, tonic.Handler(a.discoverDevices, http.StatusOK))

	g.POST("/devices/:id/power", []fizz.OperationOption{
		fizz.Summary("Sets a device's power state."),
	}, tonic.Handler(a.setDevicePower, http.StatusOK))

	g.POST("/devices/:id/color", []fizz.OperationOption{
		fizz.Summary("Sets a device's color."),
	}, tonic.Handler(a.setDeviceColor, http.StatusOK))

	g.PUT("/devices/:id", []fizz.OperationOption{
		fizz.Summary("Updates a device's label and/or adopted flag."),
	}, tonic.Handler(a.updateDevice, http.StatusOK))

	g.DELETE("/devices/:id", []fizz.OperationOption{
		fizz.Summary("Forgets a device."),
	}, tonic.Handler(a.deleteDevice, http.StatusOK))
}

func (a *API) listDevices(c *gin.Context) ([]*DeviceOut, error) {
	devices := a.registry.List()
	out := make([]*DeviceOut, 0, len(devices))
	for _, d := range devices {
		out = append(out, deviceOut(d))
	}
	return out, nil
}

func (a *API) discoverDevices(c *gin.Context) (*MessageOut, error) {
	a.discovery.TriggerDiscovery()
	return &MessageOut{Message: "discovery triggered"}, nil
}

// deviceIDIn carries the path-bound surrogate device id every /devices/:id
// route shares.
type deviceIDIn struct {
	ID int `path:"id"`
}

func (a *API) resolveDevice(id int) (registry.Device, error) {
	d, err := a.registry.Get(id)
	if err != nil {
		return registry.Device{}, err
	}
	return d, nil
}

// PowerIn is the body of POST /api/devices/:id/power.
type PowerIn struct {
	deviceIDIn
	Power bool `json:"power"`
}

func (a *API) setDevicePower(c *gin.Context, in *PowerIn) (*DeviceOut, error) {
	d, err := a.resolveDevice(in.ID)
	if err != nil {
		return nil, err
	}
	if !d.IsOnline {
		return nil, errors.New("device offline")
	}

	f := &wire.Frame{Sequence: a.seq(), Type: wire.TypeSetLightPower, Payload: wire.SetLightPowerPayload(in.Power, 0)}
	if err := a.sendTo(f, d.MAC, d.Address); err != nil {
		return nil, err
	}

	// Optimistic local update; the next poll tick's StatePower reply
	// confirms (or corrects) this via registry.Observe, per spec.md §9's
	// note that client-driven writes and network-driven confirmation
	// reconcile through the same observe() path.
	on := in.Power
	updated := a.registry.Observe(registry.StateObservation{MAC: d.MAC, Address: d.Address, Power: &on})
	a.hub.Broadcast(pushhub.EventDeviceStatus, deviceOut(updated))
	return deviceOut(updated), nil
}

// ColorIn is the body of POST /api/devices/:id/color.
type ColorIn struct {
	deviceIDIn
	Hue        uint16 `json:"hue"`
	Saturation uint16 `json:"saturation"`
	Brightness uint16 `json:"brightness"`
	Kelvin     uint16 `json:"kelvin" validate:"min=2500,max=9000"`
}

func (a *API) setDeviceColor(c *gin.Context, in *ColorIn) (*DeviceOut, error) {
	d, err := a.resolveDevice(in.ID)
	if err != nil {
		return nil, err
	}
	if !d.IsOnline {
		return nil, errors.New("device offline")
	}

	color := wire.HSBK{Hue: in.Hue, Saturation: in.Saturation, Brightness: in.Brightness, Kelvin: in.Kelvin}
	f := &wire.Frame{Sequence: a.seq(), Type: wire.TypeSetColor, Payload: wire.SetColorPayload(color, 0)}
	if err := a.sendTo(f, d.MAC, d.Address); err != nil {
		return nil, err
	}

	updated := a.registry.Observe(registry.StateObservation{MAC: d.MAC, Address: d.Address, Color: &color})
	a.hub.Broadcast(pushhub.EventDeviceStatus, deviceOut(updated))
	return deviceOut(updated), nil
}

// DevicePatchIn is the body of PUT /api/devices/:id: the only two
// user-driven fields spec.md:190 allows on a registry record — label and
// the adopted flag. Adopting a device is what makes it eligible for
// effects.Runtime's "no explicit deviceIds" default target set
// (registry.AdoptedOnline).
type DevicePatchIn struct {
	deviceIDIn
	Label     *string `json:"label"`
	IsAdopted *bool   `json:"isAdopted"`
}

func (a *API) updateDevice(c *gin.Context, in *DevicePatchIn) (*DeviceOut, error) {
	d, err := a.registry.Mutate(in.ID, registry.Patch{Label: in.Label, IsAdopted: in.IsAdopted})
	if err != nil {
		return nil, err
	}
	out := deviceOut(d)
	a.hub.Broadcast(pushhub.EventDeviceStatus, out)
	return out, nil
}

func (a *API) deleteDevice(c *gin.Context, in *deviceIDIn) (*MessageOut, error) {
	if err := a.registry.Delete(in.ID); err != nil {
		return nil, err
	}
	return &MessageOut{Message: "device removed"}, nil
}
