package main

import (
	"github.com/lifxd/lifxd/internal/discovery"
	"github.com/lifxd/lifxd/internal/effects"
	"github.com/lifxd/lifxd/internal/registry"
)

// deviceAdapter bridges internal/registry to the interfaces
// internal/discovery and internal/effects depend on, keeping both packages
// free of an upward import on the concrete registry type.
type deviceAdapter struct {
	reg *registry.Registry
}

func (a deviceAdapter) Devices() []discovery.PollTarget {
	devices := a.reg.List()
	out := make([]discovery.PollTarget, 0, len(devices))
	for _, d := range devices {
		out = append(out, discovery.PollTarget{MAC: d.MAC, Address: d.Address})
	}
	return out
}

func (a deviceAdapter) Resolve(macs []string) []effects.DeviceTarget {
	out := make([]effects.DeviceTarget, 0, len(macs))
	for _, mac := range macs {
		if d, ok := a.reg.GetByMAC(mac); ok {
			out = append(out, toDeviceTarget(d))
		}
	}
	return out
}

func (a deviceAdapter) AdoptedOnline() []effects.DeviceTarget {
	devices := a.reg.AdoptedOnline()
	out := make([]effects.DeviceTarget, 0, len(devices))
	for _, d := range devices {
		out = append(out, toDeviceTarget(d))
	}
	return out
}

func toDeviceTarget(d registry.Device) effects.DeviceTarget {
	return effects.DeviceTarget{
		ID:       d.ID,
		MAC:      d.MAC,
		Address:  d.Address,
		IsOnline: d.IsOnline,
		Power:    d.Power,
		Color:    d.Color,
	}
}
