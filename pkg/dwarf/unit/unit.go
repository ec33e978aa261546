package unit

import (
	"debug/dwarf"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/go-delve/nativedbg/pkg/dwarf/util"
)

// Sections holds the contents of the DWARF sections of an object file.
// Missing sections are nil.
type Sections struct {
	Info       []byte
	Abbrev     []byte
	Str        []byte
	LineStr    []byte
	StrOffsets []byte
	Addr       []byte
	Ranges     []byte
	Rnglists   []byte
	Line       []byte
	Aranges    []byte
	Macro      []byte
	Macinfo    []byte
	Loc        []byte

	// Order is the byte order of the object file, little endian if nil.
	Order binary.ByteOrder
}

func (s *Sections) order() binary.ByteOrder {
	if s.Order == nil {
		return binary.LittleEndian
	}
	return s.Order
}

// InvalidOffset marks a missing offset in a DIERef.
const InvalidOffset = ^uint64(0)

// DIERef references a DIE by its offset in .debug_info. CUOffset is the
// offset of the unit containing it, if known, or InvalidOffset.
type DIERef struct {
	CUOffset  uint64
	DIEOffset uint64
}

// DIE is a debug information entry. Links to other entries are indexes
// into the DIEs of the unit, -1 when absent.
type DIE struct {
	Offset      uint64
	Tag         dwarf.Tag
	AbbrevCode  uint64
	Depth       int32
	Parent      int32
	Sibling     int32
	FirstChild  int32
	HasChildren bool

	abbrev *Abbrev
	// attrOff is the offset of the first attribute.
	attrOff uint64
}

// Unit is a unit of .debug_info.
type Unit struct {
	Header
	// Index is the position of the unit in .debug_info.
	Index int

	sec     *Sections
	abbrevs *AbbrevTable
	dies    []DIE
	parsed  bool
	err     error

	bs     bases
	bsDone bool
}

// New returns the unit at off, validating its header and abbreviation
// table. DIEs are not read until they are needed.
func New(sec *Sections, off uint64, index int) (*Unit, error) {
	h, err := ParseHeader(sec, off)
	if err != nil {
		return nil, err
	}
	abbrevs, err := ParseAbbrevTable(sec.Abbrev, h.AbbrevOffset)
	if err != nil {
		return nil, err
	}
	return &Unit{Header: h, Index: index, sec: sec, abbrevs: abbrevs}, nil
}

// Sections returns the sections the unit was read from.
func (u *Unit) Sections() *Sections { return u.sec }

// Abbrevs returns the abbreviation table of the unit.
func (u *Unit) Abbrevs() *AbbrevTable { return u.abbrevs }

func (u *Unit) buf(off uint64) util.Buf {
	b := util.MakeBuf(".debug_info", u.sec.Info[:u.NextOffset()], off)
	b.Order = u.sec.order()
	b.Format64 = u.Format64
	b.AddrSize = int(u.AddrSize)
	return b
}

// ExtractDIEs reads every DIE of the unit, in file order. It is a no-op if
// the DIEs were already read. On a decoding error the DIEs read so far are
// kept.
func (u *Unit) ExtractDIEs() error {
	if u.parsed {
		return u.err
	}
	u.parsed = true

	b := u.buf(u.Offset + u.HeaderSize())
	parent := int32(-1)
	prev := int32(-1) // last sibling at the current depth
	var stack []int32
	depth := int32(0)

	for b.Len() > 0 {
		off := b.Off()
		code := b.ULEB()
		if b.Err != nil {
			break
		}
		if code == 0 {
			// null entry, closes the children of parent
			if len(stack) == 0 {
				continue
			}
			prev = parent
			parent = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			depth--
			if depth == 0 {
				break
			}
			continue
		}
		a, ok := u.abbrevs.Lookup(code)
		if !ok {
			u.err = &util.DecodeError{Section: ".debug_info", Offset: off, Msg: fmt.Sprintf("invalid abbreviation code %d", code)}
			return u.err
		}
		attrOff := b.Off()
		for _, aa := range a.Attrs {
			u.readForm(&b, aa.Form, aa.ImplicitConst)
		}
		if b.Err != nil {
			break
		}
		idx := int32(len(u.dies))
		u.dies = append(u.dies, DIE{
			Offset:      off,
			Tag:         a.Tag,
			AbbrevCode:  code,
			Depth:       depth,
			Parent:      parent,
			Sibling:     -1,
			FirstChild:  -1,
			HasChildren: a.HasChildren,
			abbrev:      a,
			attrOff:     attrOff,
		})
		if prev >= 0 {
			u.dies[prev].Sibling = idx
		} else if parent >= 0 {
			u.dies[parent].FirstChild = idx
		}
		prev = idx
		if a.HasChildren {
			stack = append(stack, parent)
			parent = idx
			prev = -1
			depth++
		}
		if depth == 0 {
			// a unit has a single top level DIE, anything after it is
			// padding
			break
		}
	}
	if b.Err != nil {
		u.err = b.Err
	}
	return u.err
}

// DIEs returns the DIEs of the unit, reading them if needed.
func (u *Unit) DIEs() []DIE {
	u.ExtractDIEs()
	return u.dies
}

// NumDIEs returns the number of DIEs read so far.
func (u *Unit) NumDIEs() int { return len(u.dies) }

// DIE returns the DIE at index i.
func (u *Unit) DIE(i int) *DIE {
	if i < 0 || i >= len(u.DIEs()) {
		return nil
	}
	return &u.dies[i]
}

// IndexOf returns the index of the DIE at offset off.
func (u *Unit) IndexOf(off uint64) (int, bool) {
	dies := u.DIEs()
	i := sort.Search(len(dies), func(i int) bool { return dies[i].Offset >= off })
	if i < len(dies) && dies[i].Offset == off {
		return i, true
	}
	return -1, false
}

// DIEAtOffset returns the DIE at off.
func (u *Unit) DIEAtOffset(off uint64) *DIE {
	i, ok := u.IndexOf(off)
	if !ok {
		return nil
	}
	return &u.dies[i]
}

// Children returns the indexes of the immediate children of the DIE at i.
func (u *Unit) Children(i int) []int {
	d := u.DIE(i)
	if d == nil {
		return nil
	}
	var r []int
	for c := d.FirstChild; c >= 0; c = u.dies[c].Sibling {
		r = append(r, int(c))
	}
	return r
}

// Ref returns a reference to the DIE at i.
func (u *Unit) Ref(i int) DIERef {
	return DIERef{CUOffset: u.Offset, DIEOffset: u.dies[i].Offset}
}

// Fields decodes the attributes of the DIE at i.
func (u *Unit) Fields(i int) ([]Field, error) {
	d := u.DIE(i)
	if d == nil {
		return nil, fmt.Errorf("no DIE at index %d", i)
	}
	return u.fields(d, true)
}

func (u *Unit) fields(d *DIE, resolve bool) ([]Field, error) {
	b := u.buf(d.attrOff)
	r := make([]Field, 0, len(d.abbrev.Attrs))
	for _, aa := range d.abbrev.Attrs {
		val, class, needsResolve := u.readForm(&b, aa.Form, aa.ImplicitConst)
		if aa.Form == FormSecOffset {
			class = sectionOffsetClass(aa.Attr)
		}
		if needsResolve {
			if resolve {
				if v, ok := u.resolveIndex(class, val.(uint64)); ok {
					val = v
				}
			}
		}
		r = append(r, Field{Attr: aa.Attr, Form: aa.Form, Class: class, Val: val})
	}
	return r, b.Err
}

// Field returns the attribute attr of the DIE at i.
func (u *Unit) Field(i int, attr dwarf.Attr) (Field, bool) {
	d := u.DIE(i)
	if d == nil {
		return Field{}, false
	}
	found := false
	for _, aa := range d.abbrev.Attrs {
		if aa.Attr == attr {
			found = true
			break
		}
	}
	if !found {
		return Field{}, false
	}
	fields, _ := u.fields(d, true)
	for _, f := range fields {
		if f.Attr == attr {
			return f, true
		}
	}
	return Field{}, false
}

// Val returns the value of attribute attr of the DIE at i, or nil.
func (u *Unit) Val(i int, attr dwarf.Attr) interface{} {
	f, ok := u.Field(i, attr)
	if !ok {
		return nil
	}
	return f.Val
}

// String returns the string value of attr.
func (u *Unit) String(i int, attr dwarf.Attr) (string, bool) {
	s, ok := u.Val(i, attr).(string)
	return s, ok
}

// Uint returns the value of attr as an unsigned number, accepting every
// constant, address and section offset form.
func (u *Unit) Uint(i int, attr dwarf.Attr) (uint64, bool) {
	switch v := u.Val(i, attr).(type) {
	case uint64:
		return v, true
	case int64:
		return uint64(v), true
	case dwarf.Offset:
		return uint64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// RefVal returns the value of a reference attribute as an offset in
// .debug_info.
func (u *Unit) RefVal(i int, attr dwarf.Attr) (uint64, bool) {
	v, ok := u.Val(i, attr).(dwarf.Offset)
	return uint64(v), ok
}

// Flag returns the value of a flag attribute.
func (u *Unit) Flag(i int, attr dwarf.Attr) bool {
	v, _ := u.Val(i, attr).(bool)
	return v
}

// Name returns DW_AT_name of the DIE at i.
func (u *Unit) Name(i int) string {
	s, _ := u.String(i, dwarf.AttrName)
	return s
}

// LinkageName returns DW_AT_linkage_name, or DW_AT_MIPS_linkage_name, of
// the DIE at i.
func (u *Unit) LinkageName(i int) string {
	if s, ok := u.String(i, dwarf.AttrLinkageName); ok {
		return s
	}
	s, _ := u.String(i, AttrMIPSLinkageName)
	return s
}

// tableBases reads the DWARF 5 table bases from the unit DIE.
func (u *Unit) tableBases() bases {
	if u.bsDone {
		return u.bs
	}
	u.bsDone = true
	if len(u.dies) == 0 {
		// the unit DIE is decoded directly, without reading the whole unit
		b := u.buf(u.Offset + u.HeaderSize())
		code := b.ULEB()
		a, ok := u.abbrevs.Lookup(code)
		if !ok || b.Err != nil {
			return u.bs
		}
		u.scanBases(&DIE{abbrev: a, attrOff: b.Off()})
		return u.bs
	}
	u.scanBases(&u.dies[0])
	return u.bs
}

func (u *Unit) scanBases(d *DIE) {
	fields, _ := u.fields(d, false)
	for _, f := range fields {
		v, ok := f.Val.(uint64)
		if !ok {
			continue
		}
		switch f.Attr {
		case dwarf.AttrStrOffsetsBase:
			u.bs.str = v
		case dwarf.AttrAddrBase:
			u.bs.addr = v
		case dwarf.AttrRnglistsBase:
			u.bs.rnglists = v
		case dwarf.AttrLoclistsBase:
			u.bs.loclists = v
		}
	}
}

// DumpDIEs writes the offsets of the DIEs of the unit to w, one per line.
func (u *Unit) DumpDIEs(w io.Writer) {
	for i := range u.DIEs() {
		fmt.Fprintf(w, "0x%8.8x: %s\n", u.dies[i].Offset, u.dies[i].Tag)
	}
}
