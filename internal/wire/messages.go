package wire

import (
	"bytes"
	"encoding/binary"

	"github.com/juju/errors"
)

// Service values carried in a StateService payload. Only UDP (1) is
// meaningful for this module; others are ignored per spec.md §4.4.
const ServiceUDP = 1

// StateServicePayload decodes a StateService (type 3) payload.
type StateServicePayload struct {
	Service uint8
	Port    uint32
}

// PowerOn and PowerOff are the two wire levels SetPower/SetLightPower and
// StatePower/LightState use (0 or 65535, never anything between).
const (
	PowerOff uint16 = 0
	PowerOn  uint16 = 65535
)

// GetServicePayload builds an empty GetService (type 2) payload.
func GetServicePayload() []byte { return nil }

// GetPowerPayload builds an empty GetPower (type 20) payload.
func GetPowerPayload() []byte { return nil }

// SetPowerPayload builds a SetPower (type 21) payload: a single u16, 0 or
// 65535.
func SetPowerPayload(on bool) []byte {
	buf := make([]byte, 2)
	if on {
		binary.LittleEndian.PutUint16(buf, PowerOn)
	}
	return buf
}

// DecodeStatePower decodes a StatePower (type 22) payload into on/off.
func DecodeStatePower(payload []byte) (bool, error) {
	if len(payload) < 2 {
		return false, errors.NewNotValid(nil, "StatePower payload too short")
	}
	return binary.LittleEndian.Uint16(payload[0:2]) != PowerOff, nil
}

// GetLabelPayload builds an empty GetLabel (type 23) payload.
func GetLabelPayload() []byte { return nil }

// DecodeStateLabel decodes a StateLabel (type 25) payload: 32 bytes of
// NUL-padded UTF-8.
func DecodeStateLabel(payload []byte) (string, error) {
	if len(payload) < 32 {
		return "", errors.NewNotValid(nil, "StateLabel payload too short")
	}
	return string(bytes.TrimRight(payload[:32], "\x00")), nil
}

// GetColorPayload builds an empty GetColor (type 101) payload.
func GetColorPayload() []byte { return nil }

// SetColorPayload builds a SetColor (type 102) payload: reserved byte, HSBK,
// duration in ms.
func SetColorPayload(c HSBK, durationMs uint32) []byte {
	buf := make([]byte, 13)
	// buf[0] reserved, left zero
	EncodeHSBK(buf[1:9], c)
	binary.LittleEndian.PutUint32(buf[9:13], durationMs)
	return buf
}

// LightStatePayload is the decoded body of a LightState (type 107) reply.
type LightStatePayload struct {
	Color HSBK
	Power bool
	Label string
}

// DecodeLightState decodes a LightState (type 107) payload: HSBK, 2 bytes
// reserved, u16 power, 32-byte label, 8 bytes reserved.
func DecodeLightState(payload []byte) (*LightStatePayload, error) {
	if len(payload) < 44 {
		return nil, errors.NewNotValid(nil, "LightState payload too short")
	}

	color := DecodeHSBK(payload[0:8])
	power := binary.LittleEndian.Uint16(payload[10:12]) != PowerOff
	label := string(bytes.TrimRight(payload[12:44], "\x00"))

	return &LightStatePayload{Color: color, Power: power, Label: label}, nil
}

// SetLightPowerPayload builds a SetLightPower (type 119) payload: u16 level,
// u32 duration in ms.
func SetLightPowerPayload(on bool, durationMs uint32) []byte {
	buf := make([]byte, 6)
	if on {
		binary.LittleEndian.PutUint16(buf[0:2], PowerOn)
	}
	binary.LittleEndian.PutUint32(buf[2:6], durationMs)
	return buf
}

// DecodeStateService decodes a StateService (type 3) payload: u8 service,
// u32 port.
func DecodeStateService(payload []byte) (*StateServicePayload, error) {
	if len(payload) < 5 {
		return nil, errors.NewNotValid(nil, "StateService payload too short")
	}
	return &StateServicePayload{
		Service: payload[0],
		Port:    binary.LittleEndian.Uint32(payload[1:5]),
	}, nil
}
