// Package dwarfbuilder provides a way to build DWARF sections with
// arbitrary contents.
package dwarfbuilder

import (
	"bytes"
	"debug/dwarf"
	"encoding/binary"
	"fmt"

	"github.com/go-delve/nativedbg/pkg/dwarf/leb128"
	"github.com/go-delve/nativedbg/pkg/dwarf/unit"
)

// Builder dwarf builder
type Builder struct {
	info     bytes.Buffer
	loc      bytes.Buffer
	ranges   bytes.Buffer
	line     bytes.Buffer
	aranges  bytes.Buffer
	str      bytes.Buffer
	abbrevs  []tagDescr
	tagStack []*tagState

	units   []*unitState
	curUnit *unitState
}

type unitState struct {
	off     int
	version uint16
}

// Language codes (DW_LANG_*) used by tests.
const (
	LangC89       uint16 = 0x01
	LangC         uint16 = 0x02
	LangCPlusPlus uint16 = 0x04
	LangObjC      uint16 = 0x10
	LangObjCPlus  uint16 = 0x11
	LangC99       uint16 = 0x0c
	LangSwift     uint16 = 0x1e
)

// New creates a new DWARF builder with an open DWARF 4 compile unit named
// "main.c".
func New() *Builder {
	b := &Builder{}
	b.BeginUnit(4, unit.UnitTypeCompile, "main.c", LangC)
	return b
}

// NewEmpty creates a DWARF builder with no open unit.
func NewEmpty() *Builder {
	return &Builder{}
}

// BeginUnit starts a new unit and opens its top level DIE. Version 5 units
// use the DWARF 5 header layout.
func (b *Builder) BeginUnit(version uint16, unitType uint8, name string, lang uint16) dwarf.Offset {
	if b.curUnit != nil {
		b.EndUnit()
	}
	us := &unitState{off: b.info.Len(), version: version}
	b.units = append(b.units, us)
	b.curUnit = us

	b.info.Write([]byte{0x0, 0x0, 0x0, 0x0}) // length
	binary.Write(&b.info, binary.LittleEndian, version)
	if version >= 5 {
		b.info.WriteByte(unitType)
		// address_size and debug_abbrev_offset
		b.info.Write([]byte{0x8, 0, 0, 0, 0})
		if unitType == unit.UnitTypeSkeleton || unitType == unit.UnitTypeSplitCompile {
			b.info.Write(make([]byte, 8)) // dwo_id
		}
	} else {
		b.info.Write([]byte{0, 0, 0, 0}) // debug_abbrev_offset
		b.info.WriteByte(0x8)            // address_size
	}

	tag := dwarf.TagCompileUnit
	if unitType == unit.UnitTypePartial {
		tag = dwarf.TagPartialUnit
	}
	r := b.TagOpen(tag, name)
	b.Attr(dwarf.AttrLanguage, lang)
	return r
}

// EndUnit closes every open DIE of the current unit and fills in the unit
// length.
func (b *Builder) EndUnit() {
	if b.curUnit == nil {
		return
	}
	for len(b.tagStack) > 0 {
		b.TagClose()
	}
	info := b.info.Bytes()
	binary.LittleEndian.PutUint32(info[b.curUnit.off:], uint32(len(info)-b.curUnit.off-4))
	b.curUnit = nil
}

// Build closes b and returns all the dwarf sections.
func (b *Builder) Build() (*unit.Sections, error) {
	if b.curUnit != nil && len(b.tagStack) > 1 {
		return nil, fmt.Errorf("unbalanced TagOpen/TagClose %d", len(b.tagStack)-1)
	}
	b.EndUnit()

	return &unit.Sections{
		Info:    b.info.Bytes(),
		Abbrev:  b.makeAbbrevTable(),
		Str:     b.str.Bytes(),
		Ranges:  b.ranges.Bytes(),
		Line:    b.line.Bytes(),
		Aranges: b.aranges.Bytes(),
		Loc:     b.loc.Bytes(),
	}, nil
}

// Strp adds s to .debug_str, the result can be passed to Attr to encode a
// DW_FORM_strp attribute.
func (b *Builder) Strp(s string) Strp {
	off := b.str.Len()
	b.str.WriteString(s)
	b.str.WriteByte(0)
	return Strp(off)
}

// Range is an address range written by AddRanges and AddAranges.
type Range struct {
	Low, High uint64
}

// AddRanges writes a DWARF 4 range list to .debug_ranges, the result is
// passed to Attr to set DW_AT_ranges.
func (b *Builder) AddRanges(rngs []Range) SecOffset {
	off := b.ranges.Len()
	for _, r := range rngs {
		binary.Write(&b.ranges, binary.LittleEndian, r.Low)
		binary.Write(&b.ranges, binary.LittleEndian, r.High)
	}
	b.ranges.Write(make([]byte, 16))
	return SecOffset(off)
}

// AddAranges writes a .debug_aranges set for the unit at cuOffset.
func (b *Builder) AddAranges(cuOffset dwarf.Offset, rngs []Range) {
	var set bytes.Buffer
	binary.Write(&set, binary.LittleEndian, uint16(2))
	binary.Write(&set, binary.LittleEndian, uint32(cuOffset))
	// address_size, segment_size and padding to a multiple of
	// 2*address_size
	set.Write([]byte{8, 0, 0, 0, 0, 0})
	for _, r := range rngs {
		binary.Write(&set, binary.LittleEndian, r.Low)
		binary.Write(&set, binary.LittleEndian, r.High-r.Low)
	}
	set.Write(make([]byte, 16))
	binary.Write(&b.aranges, binary.LittleEndian, uint32(set.Len()))
	b.aranges.Write(set.Bytes())
}

// LineFile is an entry of the file table written by AddLineTable.
type LineFile struct {
	Name   string
	DirIdx uint64
}

// LineRow is a row of the line table written by AddLineTable, File is a
// one based index into the file table.
type LineRow struct {
	Address uint64
	File    uint64
	Line    int
}

// AddLineTable writes a DWARF 4 line number program to .debug_line that
// produces rows, each row becomes a single sequence. The result is passed
// to Attr to set DW_AT_stmt_list.
func (b *Builder) AddLineTable(dirs []string, files []LineFile, rows []LineRow) SecOffset {
	var hdr bytes.Buffer
	hdr.WriteByte(1)    // minimum_instruction_length
	hdr.WriteByte(1)    // maximum_operations_per_instruction
	hdr.WriteByte(1)    // default_is_stmt
	hdr.WriteByte(0xfb) // line_base -5
	hdr.WriteByte(14)   // line_range
	hdr.WriteByte(13)   // opcode_base
	hdr.Write([]byte{0, 1, 1, 1, 1, 0, 0, 0, 1, 0, 0, 1})
	for _, d := range dirs {
		hdr.WriteString(d)
		hdr.WriteByte(0)
	}
	hdr.WriteByte(0)
	for _, f := range files {
		hdr.WriteString(f.Name)
		hdr.WriteByte(0)
		leb128.EncodeUnsigned(&hdr, f.DirIdx)
		hdr.Write([]byte{0, 0})
	}
	hdr.WriteByte(0)

	var prog bytes.Buffer
	for _, r := range rows {
		prog.Write([]byte{0, 9, 2}) // DW_LNE_set_address
		binary.Write(&prog, binary.LittleEndian, r.Address)
		prog.WriteByte(4) // DW_LNS_set_file
		leb128.EncodeUnsigned(&prog, r.File)
		prog.WriteByte(3) // DW_LNS_advance_line
		leb128.EncodeSigned(&prog, int64(r.Line-1))
		prog.WriteByte(1) // DW_LNS_copy
		// DW_LNS_advance_pc 1, DW_LNE_end_sequence
		prog.Write([]byte{2, 1, 0, 1, 1})
	}

	off := b.line.Len()
	binary.Write(&b.line, binary.LittleEndian, uint32(2+4+hdr.Len()+prog.Len()))
	binary.Write(&b.line, binary.LittleEndian, uint16(4))
	binary.Write(&b.line, binary.LittleEndian, uint32(hdr.Len()))
	b.line.Write(hdr.Bytes())
	b.line.Write(prog.Bytes())
	return SecOffset(off)
}
