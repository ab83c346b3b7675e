package ais

import (
	"errors"
	"fmt"
	"strings"
)

// Raw-coordinate sentinels. 91 degrees latitude / 181 degrees longitude mean
// "not available" on the wire; anything at or beyond them is discarded.
const (
	maxLonRaw   = 181 * 600000 // 108,600,000
	maxLatRaw   = 91 * 600000  // 54,600,000
	longRangeNA = 0x1FFFF
)

// Sentinel raw values for motion fields.
const (
	sogNA     = 1023
	cogNAMin  = 3600
	headingNA = 511
)

var (
	// ErrUnsupportedType marks message types this bridge does not decode.
	ErrUnsupportedType = errors.New("unsupported message type")
	// ErrBadPosition marks sentinel or out-of-range coordinates.
	ErrBadPosition = errors.New("position not available")
)

// Message is a decoded AIS payload. Exactly one of the supported shapes is
// populated: a position report (HasPosition) or a static report (Name).
type Message struct {
	Type int
	MMSI uint32

	HasPosition bool
	Lat         float64
	Lon         float64
	SOG         *float64 // knots
	COG         *float64 // degrees
	Heading     *int     // degrees
	Base        bool     // type 4 base station

	Name string // vessel name from type 5 / type 24 part A
}

// bitField is an AIS payload unpacked to one bit per entry, each byte holding
// the value 0 or 1, for cheap slicing.
type bitField []byte

// payloadBits unarmors an AIS payload string into a bit field, dropping
// fillBits trailing bits. Each character carries 6 bits: chr-48 when the
// result stays below 40, otherwise chr-56.
func payloadBits(payload string, fillBits int) (bitField, error) {
	bits := make(bitField, 0, len(payload)*6)
	for i := 0; i < len(payload); i++ {
		c := int(payload[i])
		var v int
		if c < 88 {
			v = c - 48
		} else {
			v = c - 56
		}
		if v < 0 || v > 63 {
			return nil, fmt.Errorf("invalid armor character %q", payload[i])
		}
		for b := 5; b >= 0; b-- {
			bits = append(bits, byte((v>>b)&1))
		}
	}
	if fillBits < 0 || fillBits >= 6 || fillBits > len(bits) {
		return nil, fmt.Errorf("invalid fill bit count %d", fillBits)
	}
	return bits[:len(bits)-fillBits], nil
}

// uintAt reads an unsigned big-endian field of length bits starting at start.
func (b bitField) uintAt(start, length int) uint32 {
	var v uint32
	for i := start; i < start+length; i++ {
		v = v<<1 | uint32(b[i])
	}
	return v
}

// intAt reads a two's-complement signed field.
func (b bitField) intAt(start, length int) int32 {
	v := b.uintAt(start, length)
	if b[start] == 1 {
		v |= ^uint32(0) << length
	}
	return int32(v)
}

// textAt reads n six-bit characters. Each value maps to value+0x20, '@'
// becomes a space, and trailing spaces are trimmed.
func (b bitField) textAt(start, n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		c := byte(b.uintAt(start+i*6, 6)) + 0x20
		if c == '@' {
			c = ' '
		}
		sb.WriteByte(c)
	}
	return strings.TrimRight(sb.String(), " ")
}

// Decode unarmors payload and decodes the supported message types: position
// reports 1/2/3 and 18/19, base stations (4), long-range broadcasts (27),
// and the static reports 5 and 24 part A. Everything else returns
// ErrUnsupportedType.
func Decode(payload string, fillBits int) (*Message, error) {
	bits, err := payloadBits(payload, fillBits)
	if err != nil {
		return nil, err
	}
	if len(bits) < 38 {
		return nil, fmt.Errorf("payload too short: %d bits", len(bits))
	}

	m := &Message{
		Type: int(bits.uintAt(0, 6)),
		MMSI: bits.uintAt(8, 30),
	}

	switch m.Type {
	case 1, 2, 3:
		return decodePosition(m, bits, 61, 89, 50, 116, 128)
	case 18, 19:
		return decodePosition(m, bits, 57, 85, 46, 112, 124)
	case 4:
		if len(bits) < 134 {
			return nil, fmt.Errorf("type 4 payload too short: %d bits", len(bits))
		}
		if err := decodeLatLon(m, bits, 79, 107); err != nil {
			return nil, err
		}
		zero := 0.0
		m.SOG = &zero
		cog := 0.0
		m.COG = &cog
		m.Base = true
		return m, nil
	case 27:
		return decodeLongRange(m, bits)
	case 5:
		if len(bits) < 424 {
			return nil, fmt.Errorf("type 5 payload too short: %d bits", len(bits))
		}
		m.Name = bits.textAt(112, 20)
		return m, nil
	case 24:
		if len(bits) < 160 {
			return nil, fmt.Errorf("type 24 payload too short: %d bits", len(bits))
		}
		if part := bits.uintAt(38, 2); part > 1 {
			return nil, ErrUnsupportedType
		}
		m.Name = bits.textAt(40, 20)
		return m, nil
	default:
		return nil, ErrUnsupportedType
	}
}

// decodeLatLon reads the standard 1/10000-minute coordinates, rejecting
// sentinel and out-of-range raw values.
func decodeLatLon(m *Message, bits bitField, lonOff, latOff int) error {
	lonRaw := bits.intAt(lonOff, 28)
	latRaw := bits.intAt(latOff, 27)
	if lonRaw >= maxLonRaw || lonRaw <= -maxLonRaw {
		return ErrBadPosition
	}
	if latRaw >= maxLatRaw || latRaw <= -maxLatRaw {
		return ErrBadPosition
	}
	m.Lon = float64(lonRaw) / 600000
	m.Lat = float64(latRaw) / 600000
	m.HasPosition = true
	return nil
}

func decodePosition(m *Message, bits bitField, lonOff, latOff, sogOff, cogOff, hdgOff int) (*Message, error) {
	if len(bits) < hdgOff+9 {
		return nil, fmt.Errorf("type %d payload too short: %d bits", m.Type, len(bits))
	}
	if err := decodeLatLon(m, bits, lonOff, latOff); err != nil {
		return nil, err
	}
	if raw := bits.uintAt(sogOff, 10); raw != sogNA {
		sog := float64(raw) / 10
		m.SOG = &sog
	}
	if raw := bits.uintAt(cogOff, 12); raw < cogNAMin {
		cog := float64(raw) / 10
		m.COG = &cog
	}
	if raw := bits.uintAt(hdgOff, 9); raw != headingNA {
		hdg := int(raw)
		m.Heading = &hdg
	}
	return m, nil
}

// decodeLongRange reads the reduced-resolution type 27 coordinates in
// 1/10-minute units.
func decodeLongRange(m *Message, bits bitField) (*Message, error) {
	if len(bits) < 79 {
		return nil, fmt.Errorf("type 27 payload too short: %d bits", len(bits))
	}
	if bits.uintAt(44, 18) == longRangeNA || bits.uintAt(62, 17) == longRangeNA {
		return nil, ErrBadPosition
	}
	m.Lon = float64(bits.intAt(44, 18)) / 600
	m.Lat = float64(bits.intAt(62, 17)) / 600
	m.HasPosition = true
	return m, nil
}
