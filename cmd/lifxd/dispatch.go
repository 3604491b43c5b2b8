package main

import (
	"net"

	log "github.com/sirupsen/logrus"

	"github.com/lifxd/lifxd/internal/pushhub"
	"github.com/lifxd/lifxd/internal/registry"
	"github.com/lifxd/lifxd/internal/transport"
	"github.com/lifxd/lifxd/internal/wire"
)

// frameDispatcher implements transport.Dispatcher: it decodes every inbound
// frame the receive loop hands it into a registry observation, per spec.md
// §4.2's "decode to typed event, attach source address, hand off to
// dispatcher". A StateService reply never creates a registry record itself —
// per spec.md:50 a Device is created on first StateLabel reply — it only
// triggers the GetLabel follow-up (via onStateService) that eventually
// produces one.
//
// onStateService is set after the discovery.Runner exists — transport must
// be constructed first (discovery needs it as a Sender), so this field is
// wired in a second step in main().
type frameDispatcher struct {
	reg *registry.Registry
	hub *pushhub.Hub

	onStateService func(svc *wire.StateServicePayload, addr *net.UDPAddr, mac string)
}

func (d *frameDispatcher) Dispatch(ev transport.Event) {
	mac := ev.Frame.MAC()

	switch ev.Frame.Type {
	case wire.TypeStateService:
		svc, err := wire.DecodeStateService(ev.Frame.Payload)
		if err != nil {
			log.WithField("component", "dispatch").WithError(err).Debug("bad StateService payload")
			return
		}
		if d.onStateService != nil {
			d.onStateService(svc, ev.Addr, mac)
		}

	case wire.TypeStatePower:
		on, err := wire.DecodeStatePower(ev.Frame.Payload)
		if err != nil {
			log.WithField("component", "dispatch").WithError(err).Debug("bad StatePower payload")
			return
		}
		dev := d.reg.Observe(registry.StateObservation{MAC: mac, Address: ev.Addr.IP, Power: &on})
		d.hub.Broadcast(pushhub.EventDeviceStatus, deviceEventPayload(dev))

	case wire.TypeStateLabel:
		label, err := wire.DecodeStateLabel(ev.Frame.Payload)
		if err != nil {
			log.WithField("component", "dispatch").WithError(err).Debug("bad StateLabel payload")
			return
		}
		_, existed := d.reg.GetByMAC(mac)
		dev := d.reg.Observe(registry.StateObservation{MAC: mac, Address: ev.Addr.IP, Label: &label})
		if existed {
			d.hub.Broadcast(pushhub.EventDeviceStatus, deviceEventPayload(dev))
		} else {
			d.hub.Broadcast(pushhub.EventDeviceDiscovered, deviceEventPayload(dev))
		}

	case wire.TypeLightState:
		ls, err := wire.DecodeLightState(ev.Frame.Payload)
		if err != nil {
			log.WithField("component", "dispatch").WithError(err).Debug("bad LightState payload")
			return
		}
		dev := d.reg.Observe(registry.StateObservation{
			MAC:     mac,
			Address: ev.Addr.IP,
			Label:   &ls.Label,
			Power:   &ls.Power,
			Color:   &ls.Color,
		})
		d.hub.Broadcast(pushhub.EventDeviceStatus, deviceEventPayload(dev))

	default:
		// Unknown/uninteresting type: ignored, per spec.md §4.1.
	}
}

// deviceEventPayload is the full-Device push payload spec.md §6 specifies
// for device_discovered/device_status.
func deviceEventPayload(d registry.Device) map[string]interface{} {
	return map[string]interface{}{
		"id":         d.ID,
		"mac":        d.MAC,
		"label":      d.Label,
		"isOnline":   d.IsOnline,
		"isAdopted":  d.IsAdopted,
		"power":      d.Power,
		"hue":        d.Color.Hue,
		"saturation": d.Color.Saturation,
		"brightness": d.Color.Brightness,
		"kelvin":     d.Color.Kelvin,
	}
}
