// Package debuginfo gives access to the units of .debug_info of an object
// file, finds units and DIEs by offset and maps addresses to compile units.
package debuginfo

import (
	"sort"

	"github.com/go-delve/nativedbg/pkg/dwarf/unit"
	"github.com/go-delve/nativedbg/pkg/logflags"
)

// DebugInfo is the collection of units of .debug_info. Unit headers are
// parsed on first use.
type DebugInfo struct {
	sec   *unit.Sections
	units []*unit.Unit
	// parsed is true once the unit headers were read
	parsed bool
	// Err is the error that stopped the header parse, if any.
	Err error

	aranges *Aranges
}

// New returns the collection of units of sec.
func New(sec *unit.Sections) *DebugInfo {
	return &DebugInfo{sec: sec}
}

// Sections returns the DWARF sections.
func (d *DebugInfo) Sections() *unit.Sections { return d.sec }

// ParseUnitHeaders reads the headers of every unit. Reading stops at the
// first invalid header, the units before it stay usable.
func (d *DebugInfo) ParseUnitHeaders() {
	if d.parsed {
		return
	}
	d.parsed = true
	off := uint64(0)
	for off < uint64(len(d.sec.Info)) {
		u, err := unit.New(d.sec, off, len(d.units))
		if err != nil {
			d.Err = err
			logflags.DWARFLogger().Errorf("unit at %#x: %v", off, err)
			return
		}
		d.units = append(d.units, u)
		off = u.NextOffset()
	}
}

// NumUnits returns the number of units.
func (d *DebugInfo) NumUnits() int {
	d.ParseUnitHeaders()
	return len(d.units)
}

// UnitAtIndex returns the unit at index idx, or nil.
func (d *DebugInfo) UnitAtIndex(idx int) *unit.Unit {
	if idx < 0 || idx >= d.NumUnits() {
		return nil
	}
	return d.units[idx]
}

// FindUnitIndex returns the index of the last unit starting at or before
// off, -1 if there is none.
func (d *DebugInfo) FindUnitIndex(off uint64) int {
	d.ParseUnitHeaders()
	idx := sort.Search(len(d.units), func(i int) bool { return off < d.units[i].Offset })
	return idx - 1
}

// UnitAtOffset returns the unit starting exactly at off.
func (d *DebugInfo) UnitAtOffset(off uint64) (*unit.Unit, int) {
	idx := d.FindUnitIndex(off)
	u := d.UnitAtIndex(idx)
	if u == nil || u.Offset != off {
		return nil, -1
	}
	return u, idx
}

// UnitContaining returns the unit containing the DIE at off.
func (d *DebugInfo) UnitContaining(off uint64) *unit.Unit {
	u := d.UnitAtIndex(d.FindUnitIndex(off))
	if u == nil || !u.ContainsDIEOffset(off) {
		return nil
	}
	return u
}

// GetUnit returns the unit of ref. If ref does not record the offset of
// its unit the unit is found from the DIE offset.
func (d *DebugInfo) GetUnit(ref unit.DIERef) *unit.Unit {
	if ref.CUOffset == unit.InvalidOffset {
		return d.UnitContaining(ref.DIEOffset)
	}
	u, _ := d.UnitAtOffset(ref.CUOffset)
	return u
}

// GetDIE returns the unit of ref and the index of its DIE.
func (d *DebugInfo) GetDIE(ref unit.DIERef) (*unit.Unit, int, bool) {
	u := d.GetUnit(ref)
	if u == nil {
		return nil, -1, false
	}
	i, ok := u.IndexOf(ref.DIEOffset)
	if !ok {
		return nil, -1, false
	}
	return u, i, true
}

// DIEForOffset returns the DIE at off, searching for its unit.
func (d *DebugInfo) DIEForOffset(off uint64) (*unit.Unit, int, bool) {
	return d.GetDIE(unit.DIERef{CUOffset: unit.InvalidOffset, DIEOffset: off})
}
