// Package unit decodes DWARF units: headers, abbreviation tables and the
// debug information entries of a unit.
package unit

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-delve/nativedbg/pkg/dwarf/util"
)

// Header is the header of a unit in .debug_info.
type Header struct {
	Offset   uint64
	Length   uint64
	Format64 bool
	Version  uint16
	// UnitType is only present in DWARF 5 headers, it is UnitTypeCompile
	// for older versions.
	UnitType     uint8
	AddrSize     uint8
	AbbrevOffset uint64

	// DWOID is set for skeleton and split compile units.
	DWOID    uint64
	HasDWOID bool

	// TypeSignature and TypeOffset are set for type units.
	TypeSignature uint64
	TypeOffset    uint64
}

// SupportedVersion returns true if units of DWARF version v can be read.
func SupportedVersion(v uint16) bool {
	return v >= 2 && v <= 5
}

// ParseHeader reads the header of the unit at off in .debug_info and
// validates it against .debug_abbrev.
func ParseHeader(sec *Sections, off uint64) (Header, error) {
	var h Header
	if len(sec.Abbrev) == 0 {
		return h, errors.New("No debug_abbrev data")
	}
	b := util.MakeBuf(".debug_info", sec.Info, off)
	b.Order = sec.order()

	h.Offset = off
	h.Length = b.InitialLength()
	h.Format64 = b.Format64
	h.Version = b.U16()
	h.UnitType = UnitTypeCompile
	if h.Version == 5 {
		h.UnitType = b.U8()
		h.AddrSize = b.U8()
		h.AbbrevOffset = b.Offset()
		switch h.UnitType {
		case UnitTypeSkeleton, UnitTypeSplitCompile:
			h.DWOID = b.U64()
			h.HasDWOID = true
		case UnitTypeType, UnitTypeSplitType:
			h.TypeSignature = b.U64()
			h.TypeOffset = b.Offset()
		}
	} else {
		h.AbbrevOffset = b.Offset()
		h.AddrSize = b.U8()
	}
	if b.Err != nil {
		return h, b.Err
	}

	switch {
	case h.NextOffset() == 0 || h.NextOffset()-1 >= uint64(len(sec.Info)):
		return h, errors.New("Invalid compile unit length")
	case !SupportedVersion(h.Version):
		return h, errors.New("Unsupported compile unit version")
	case h.AbbrevOffset >= uint64(len(sec.Abbrev)):
		return h, errors.New("Abbreviation offset for compile unit is not valid")
	case h.AddrSize != 4 && h.AddrSize != 8:
		return h, errors.New("Invalid compile unit address size")
	}
	return h, nil
}

func (h *Header) lengthSize() uint64 {
	if h.Format64 {
		return 12
	}
	return 4
}

// NextOffset returns the offset of the unit following this one.
func (h *Header) NextOffset() uint64 {
	return h.Offset + h.lengthSize() + h.Length
}

// HeaderSize returns the size of the header, the first DIE of the unit
// follows it.
func (h *Header) HeaderSize() uint64 {
	var sz, offsets uint64
	if h.Version < 5 {
		sz, offsets = 11, 1
	} else {
		switch h.UnitType {
		case UnitTypeSkeleton, UnitTypeSplitCompile:
			sz, offsets = 20, 1
		case UnitTypeType, UnitTypeSplitType:
			sz, offsets = 24, 2
		default:
			sz, offsets = 12, 1
		}
	}
	if h.Format64 {
		sz += 8 + 4*offsets
	}
	return sz
}

// ContainsDIEOffset returns true if off is the offset of a DIE of this
// unit.
func (h *Header) ContainsDIEOffset(off uint64) bool {
	return off >= h.Offset+h.HeaderSize() && off < h.NextOffset()
}

// Dump writes a one line description of the header to w.
func (h *Header) Dump(w io.Writer) {
	fmt.Fprintf(w, "0x%08x: Compile Unit: length = 0x%08x, version = 0x%04x, abbr_offset = 0x%08x, addr_size = 0x%02x (next CU at {0x%08x})\n",
		h.Offset, h.Length, h.Version, h.AbbrevOffset, h.AddrSize, h.NextOffset())
}
