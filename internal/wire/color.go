package wire

import (
	"encoding/binary"
	"fmt"
	"math"
	"regexp"

	"github.com/juju/errors"
)

// HSBK is the LIFX color tuple: hue, saturation, brightness (all 16-bit
// unsigned) and kelvin (2500-9000). Kelvin=0 marks "color, not white" for
// values derived from a hex string, per spec.md §4.1.
type HSBK struct {
	Hue        uint16
	Saturation uint16
	Brightness uint16
	Kelvin     uint16
}

var hexColorRE = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// EncodeHSBK writes the HSBK wire shape into dst (8 bytes) in the order
// SetColor/LightState payloads carry it: hue, saturation, brightness, kelvin.
func EncodeHSBK(dst []byte, c HSBK) {
	binary.LittleEndian.PutUint16(dst[0:2], c.Hue)
	binary.LittleEndian.PutUint16(dst[2:4], c.Saturation)
	binary.LittleEndian.PutUint16(dst[4:6], c.Brightness)
	binary.LittleEndian.PutUint16(dst[6:8], c.Kelvin)
}

// DecodeHSBK parses 8 bytes in the wire HSBK order.
func DecodeHSBK(src []byte) HSBK {
	return HSBK{
		Hue:        binary.LittleEndian.Uint16(src[0:2]),
		Saturation: binary.LittleEndian.Uint16(src[2:4]),
		Brightness: binary.LittleEndian.Uint16(src[4:6]),
		Kelvin:     binary.LittleEndian.Uint16(src[6:8]),
	}
}

// HexToHSBK parses a strict "#RRGGBB" hex color into an HSBK value with
// Kelvin=0 (color, not white).
func HexToHSBK(hex string) (HSBK, error) {
	if !hexColorRE.MatchString(hex) {
		return HSBK{}, errors.NewNotValid(nil, fmt.Sprintf("invalid hex color %q", hex))
	}

	r := hexByte(hex[1:3])
	g := hexByte(hex[3:5])
	b := hexByte(hex[5:7])

	h, s, v := rgbToHSV(r, g, b)

	return HSBK{
		Hue:        uint16(math.Round(h / 360 * 65535)),
		Saturation: uint16(math.Round(s * 65535)),
		Brightness: uint16(math.Round(v * 65535)),
		Kelvin:     0,
	}, nil
}

func hexByte(s string) uint8 {
	hi, _ := hexNibble(s[0])
	lo, _ := hexNibble(s[1])
	return hi<<4 | lo
}

// rgbToHSV converts 8-bit RGB into hue [0,360), saturation [0,1], value [0,1].
func rgbToHSV(r, g, b uint8) (h, s, v float64) {
	rf, gf, bf := float64(r)/255, float64(g)/255, float64(b)/255
	max := math.Max(rf, math.Max(gf, bf))
	min := math.Min(rf, math.Min(gf, bf))
	d := max - min

	v = max
	if max == 0 {
		s = 0
	} else {
		s = d / max
	}

	if d == 0 {
		h = 0
	} else {
		switch max {
		case rf:
			h = 60 * math.Mod((gf-bf)/d, 6)
		case gf:
			h = 60 * ((bf-rf)/d + 2)
		case bf:
			h = 60 * ((rf-gf)/d + 4)
		}
	}
	if h < 0 {
		h += 360
	}
	return h, s, v
}

// kelvinTable is a fixed 5-bucket warm-to-cool fallback used when
// saturation is zero and kelvin>0, per spec.md §4.1.
var kelvinTable = []struct {
	maxKelvin  uint16
	r, g, b    uint8
}{
	{2700, 255, 169, 87},
	{3500, 255, 196, 137},
	{4500, 255, 214, 170},
	{6500, 255, 236, 224},
	{9000, 255, 255, 255},
}

// HSBKToRGB converts an HSBK value into 8-bit RGB for UI-facing status
// display. When Saturation is zero and Kelvin is nonzero, color comes from
// the fixed kelvin bucket table rather than the (degenerate) HSV inverse.
func HSBKToRGB(c HSBK) (r, g, b uint8) {
	if c.Saturation == 0 && c.Kelvin > 0 {
		for _, bucket := range kelvinTable {
			if c.Kelvin <= bucket.maxKelvin {
				return scaleByBrightness(bucket.r, bucket.g, bucket.b, c.Brightness)
			}
		}
		last := kelvinTable[len(kelvinTable)-1]
		return scaleByBrightness(last.r, last.g, last.b, c.Brightness)
	}

	h := float64(c.Hue) / 65535 * 360
	s := float64(c.Saturation) / 65535
	v := float64(c.Brightness) / 65535

	rf, gf, bf := hsvToRGB(h, s, v)
	return uint8(math.Round(rf * 255)), uint8(math.Round(gf * 255)), uint8(math.Round(bf * 255))
}

func scaleByBrightness(r, g, b uint8, brightness uint16) (uint8, uint8, uint8) {
	scale := float64(brightness) / 65535
	return uint8(math.Round(float64(r) * scale)),
		uint8(math.Round(float64(g) * scale)),
		uint8(math.Round(float64(b) * scale))
}

func hsvToRGB(h, s, v float64) (r, g, b float64) {
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c

	var rp, gp, bp float64
	switch {
	case h < 60:
		rp, gp, bp = c, x, 0
	case h < 120:
		rp, gp, bp = x, c, 0
	case h < 180:
		rp, gp, bp = 0, c, x
	case h < 240:
		rp, gp, bp = 0, x, c
	case h < 300:
		rp, gp, bp = x, 0, c
	default:
		rp, gp, bp = c, 0, x
	}

	return rp + m, gp + m, bp + m
}

// HSBKToHex renders an HSBK value back to "#RRGGBB", used by the round-trip
// test property (spec.md §8 #7).
func HSBKToHex(c HSBK) string {
	r, g, b := HSBKToRGB(c)
	return fmt.Sprintf("#%02X%02X%02X", r, g, b)
}

// String renders the HSBK value as its nearest hex approximation, for log
// lines and error messages.
func (c HSBK) String() string {
	return HSBKToHex(c)
}
