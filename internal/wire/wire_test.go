package wire

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	target, err := TargetFromMAC("d073d500aa11")
	if err != nil {
		t.Fatalf("TargetFromMAC: %v", err)
	}

	f := &Frame{
		Tagged:      true,
		Source:      0xdeadbeef,
		Target:      target,
		ResRequired: true,
		Sequence:    7,
		Type:        TypeSetColor,
		Payload:     SetColorPayload(HSBK{Hue: 1, Saturation: 2, Brightness: 3, Kelvin: 3500}, 500),
	}

	raw := Encode(f)
	if len(raw) != HeaderSize+len(f.Payload) {
		t.Fatalf("encoded length = %d, want %d", len(raw), HeaderSize+len(f.Payload))
	}

	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.MAC() != "d073d500aa11" {
		t.Errorf("MAC = %q, want d073d500aa11", got.MAC())
	}
	if !got.Tagged {
		t.Errorf("Tagged = false, want true")
	}
	if got.Type != TypeSetColor {
		t.Errorf("Type = %v, want %v", got.Type, TypeSetColor)
	}
	if got.Sequence != 7 {
		t.Errorf("Sequence = %d, want 7", got.Sequence)
	}
	if !got.ResRequired {
		t.Errorf("ResRequired = false, want true")
	}

	c := DecodeHSBK(got.Payload[1:9])
	if c != (HSBK{Hue: 1, Saturation: 2, Brightness: 3, Kelvin: 3500}) {
		t.Errorf("HSBK round-trip = %+v", c)
	}
}

func TestDecodeShortFrame(t *testing.T) {
	if _, err := Decode(make([]byte, HeaderSize-1)); err != ErrShortFrame {
		t.Fatalf("Decode short frame: %v, want ErrShortFrame", err)
	}
}

func TestDecodeBadProtocol(t *testing.T) {
	raw := Encode(&Frame{Type: TypeGetService})
	// Corrupt the protocol bits while preserving frame length.
	raw[2] = 0x00
	raw[3] = 0x00
	if _, err := Decode(raw); err != ErrBadProtocol {
		t.Fatalf("Decode bad protocol: %v, want ErrBadProtocol", err)
	}
}

func TestBroadcastTargetIsZero(t *testing.T) {
	f := &Frame{Tagged: true, Type: TypeGetService}
	raw := Encode(f)
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.MAC() != "000000000000" {
		t.Errorf("broadcast MAC = %q, want all zero", got.MAC())
	}
}

func TestHexToHSBKRoundTrip(t *testing.T) {
	cases := []string{"#FF0000", "#00FF00", "#0000FF", "#808080", "#123456", "#FFFFFF", "#000000"}
	for _, hex := range cases {
		c, err := HexToHSBK(hex)
		if err != nil {
			t.Fatalf("HexToHSBK(%q): %v", hex, err)
		}
		got := HSBKToHex(c)
		if !withinOneChannel(hex, got) {
			t.Errorf("round-trip %s -> %s -> %s exceeds 1-channel tolerance", hex, c, got)
		}
	}
}

func withinOneChannel(a, b string) bool {
	if len(a) != 7 || len(b) != 7 {
		return false
	}
	for i := 1; i < 7; i += 2 {
		av := hexByte(a[i : i+2])
		bv := hexByte(b[i : i+2])
		d := int(av) - int(bv)
		if d < -1 || d > 1 {
			return false
		}
	}
	return true
}

func TestHexToHSBKInvalid(t *testing.T) {
	for _, bad := range []string{"FF0000", "#FF00", "#GGGGGG", ""} {
		if _, err := HexToHSBK(bad); err == nil {
			t.Errorf("HexToHSBK(%q) accepted invalid hex", bad)
		}
	}
}

