// Package idspace implements identifier-space arithmetic for Kitty graphics
// protocol image ids: random id generation within a declared space and
// optional subspace, and the deterministic id-to-cell-colour derivation the
// terminal uses to place images via the Unicode placeholder extension.
//
// The four-byte id is addressed MSB to LSB as byte3 (high), byte2, byte1,
// byte0 (low), matching the 32-bit value the Kitty protocol transmits.
package idspace

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// Space names which bytes of a 32-bit id carry meaning and how the
// terminal is told to colour the placeholder cell for it.
type Space int

const (
	Space8Bit Space = iota
	Space8BitDiacritic
	Space16Bit
	Space24Bit
	Space32Bit
)

func (s Space) String() string {
	switch s {
	case Space8Bit:
		return "8bit"
	case Space8BitDiacritic:
		return "8bit_diacritic"
	case Space16Bit:
		return "16bit"
	case Space24Bit:
		return "24bit"
	case Space32Bit:
		return "32bit"
	default:
		return fmt.Sprintf("idspace.Space(%d)", int(s))
	}
}

// ParseSpace parses the textual id_space config/CLI value.
func ParseSpace(s string) (Space, error) {
	switch s {
	case "8bit":
		return Space8Bit, nil
	case "8bit_diacritic":
		return Space8BitDiacritic, nil
	case "16bit":
		return Space16Bit, nil
	case "24bit":
		return Space24Bit, nil
	case "32bit":
		return Space32Bit, nil
	default:
		return 0, fmt.Errorf("idspace: unknown id space %q", s)
	}
}

// Subspace restricts the partitioning byte of an id range to [Begin, End),
// letting independent producers (e.g. two coordinator instances sharing a
// terminal) claim disjoint id ranges. For the plain 8bit space, which has
// only one significant byte, the subspace constrains that byte directly;
// for every wider space it constrains the id's true high byte (byte3).
type Subspace struct {
	Begin, End byte
}

// ParseSubspace parses a "begin:end" textual subspace declaration.
func ParseSubspace(s string) (Subspace, error) {
	var begin, end uint
	n, err := fmt.Sscanf(s, "%d:%d", &begin, &end)
	if err != nil || n != 2 {
		return Subspace{}, fmt.Errorf("idspace: invalid subspace %q, want \"begin:end\"", s)
	}
	if begin > 255 || end > 256 || begin >= end {
		return Subspace{}, fmt.Errorf("idspace: invalid subspace range %q", s)
	}
	if begin == 0 && end == 1 {
		return Subspace{}, fmt.Errorf("idspace: subspace %q contains only the reserved id 0, no assignable byte", s)
	}
	return Subspace{Begin: byte(begin), End: byte(end)}, nil
}

// Contains reports whether b lies in the subspace's half-open range
// [Begin, End).
func (sub Subspace) Contains(b byte) bool {
	return b >= sub.Begin && b < sub.End
}

func randomByte() (byte, error) {
	var buf [1]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("idspace: read random byte: %w", err)
	}
	return buf[0], nil
}

// randomByteInRange draws a uniform byte in [begin, end), optionally
// rejecting zero when the range includes it and a non-zero byte is required.
func randomByteInRange(begin, end byte, excludeZero bool) (byte, error) {
	span := int(end) - int(begin)
	if span <= 0 {
		return 0, fmt.Errorf("idspace: empty byte range [%d,%d)", begin, end)
	}
	for {
		raw, err := randomByte()
		if err != nil {
			return 0, err
		}
		v := begin + byte(int(raw)%span)
		if excludeZero && v == 0 {
			continue
		}
		return v, nil
	}
}

func randomNonZeroByte() (byte, error) {
	for {
		b, err := randomByte()
		if err != nil {
			return 0, err
		}
		if b != 0 {
			return b, nil
		}
	}
}

// RandomID draws a fresh random id in the given space, honoring sub when
// non-nil. The returned id is never zero: id 0 is reserved as the implicit
// "no image" colour-index-0 slot and is never handed out by generation.
func RandomID(space Space, sub *Subspace) (uint32, error) {
	for attempt := 0; attempt < 64; attempt++ {
		var b [4]byte // b[3]=high byte .. b[0]=low byte
		var err error

		switch space {
		case Space8Bit:
			if sub != nil {
				b[0], err = randomByteInRange(sub.Begin, sub.End, true)
			} else {
				b[0], err = randomNonZeroByte()
			}
		case Space8BitDiacritic:
			if sub != nil {
				b[3], err = randomByteInRange(sub.Begin, sub.End, true)
			} else {
				b[3], err = randomNonZeroByte()
			}
		case Space16Bit:
			if sub != nil {
				b[3], err = randomByteInRange(sub.Begin, sub.End, false)
			}
			if err == nil {
				b[1], err = randomNonZeroByte()
			}
			if err == nil {
				b[0], err = randomNonZeroByte()
			}
		case Space24Bit:
			if sub != nil {
				b[3], err = randomByteInRange(sub.Begin, sub.End, false)
			}
			if err == nil {
				b[2], err = randomByte()
			}
			if err == nil {
				b[1], err = randomByte()
			}
			if err == nil {
				b[0], err = randomByte()
			}
		case Space32Bit:
			if sub != nil {
				b[3], err = randomByteInRange(sub.Begin, sub.End, true)
			} else {
				b[3], err = randomNonZeroByte()
			}
			if err == nil {
				b[2], err = randomByte()
			}
			if err == nil {
				b[1], err = randomByte()
			}
			if err == nil {
				b[0], err = randomByte()
			}
		default:
			return 0, fmt.Errorf("idspace: unknown space %v", space)
		}
		if err != nil {
			return 0, err
		}

		id := binary.LittleEndian.Uint32(b[:])
		if id == 0 {
			continue // rejection sample: id 0 is reserved, never assignable
		}
		if !fitsSpace(id, space) {
			continue
		}
		return id, nil
	}
	return 0, fmt.Errorf("idspace: failed to sample a valid id for space %v after 64 attempts", space)
}

// fitsSpace re-validates that an id's non-significant bytes are zero, so a
// caller-supplied FORCE_ID can also be checked against its declared space.
func fitsSpace(id uint32, space Space) bool {
	b3 := byte(id >> 24)
	b2 := byte(id >> 16)
	switch space {
	case Space8Bit:
		return b3 == 0 && b2 == 0 && byte(id>>8) == 0
	case Space8BitDiacritic:
		return b2 == 0 && byte(id>>8) == 0 && byte(id) == 0
	case Space16Bit:
		return b2 == 0
	case Space24Bit, Space32Bit:
		return true
	default:
		return false
	}
}

// ColourMode selects how id_to_cell_colour asks the terminal to colour a
// placeholder cell.
type ColourMode int

const (
	ColourIndexed256 ColourMode = iota
	ColourDirectRGB
)

// CellColour is the terminal foreground-colour encoding for one placeholder
// cell, derived deterministically from an id.
type CellColour struct {
	Mode      ColourMode
	Index256  uint8   // valid when Mode == ColourIndexed256
	RGB       [3]byte // valid when Mode == ColourDirectRGB
	Diacritic *byte   // third Unicode diacritic mark, when the space carries one
}

// IDToCellColour derives the placeholder foreground colour for id within
// space, matching the Kitty Unicode placeholder convention: narrower spaces
// are carried as a 256-colour index (optionally plus a diacritic byte),
// wider spaces are carried as direct RGB (optionally plus a diacritic byte).
func IDToCellColour(id uint32, space Space) CellColour {
	b := func(shift uint) byte { return byte(id >> shift) }

	switch space {
	case Space8Bit:
		return CellColour{Mode: ColourIndexed256, Index256: b(0)}
	case Space8BitDiacritic:
		d := b(24)
		return CellColour{Mode: ColourIndexed256, Index256: 0, Diacritic: &d}
	case Space16Bit:
		d := b(24)
		return CellColour{Mode: ColourIndexed256, Index256: b(8), Diacritic: &d}
	case Space24Bit:
		return CellColour{Mode: ColourDirectRGB, RGB: [3]byte{b(16), b(8), b(0)}}
	case Space32Bit:
		d := b(24)
		return CellColour{Mode: ColourDirectRGB, RGB: [3]byte{b(16), b(8), b(0)}, Diacritic: &d}
	default:
		return CellColour{Mode: ColourIndexed256, Index256: b(0)}
	}
}
