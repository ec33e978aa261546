package unit

import (
	"debug/dwarf"

	"github.com/go-delve/nativedbg/pkg/dwarf/util"
)

// Range is a half-open address range [Low, High).
type Range struct {
	Low, High uint64
}

const (
	rleEndOfList    = 0x0
	rleBaseAddressx = 0x1
	rleStartxEndx   = 0x2
	rleStartxLength = 0x3
	rleOffsetPair   = 0x4
	rleBaseAddress  = 0x5
	rleStartEnd     = 0x6
	rleStartLength  = 0x7
)

// Ranges returns the address ranges covered by the DIE at i, read from
// DW_AT_low_pc/DW_AT_high_pc or DW_AT_ranges. Empty ranges are dropped.
func (u *Unit) Ranges(i int) ([]Range, error) {
	if low, ok := u.Uint(i, dwarf.AttrLowpc); ok {
		if f, ok := u.Field(i, dwarf.AttrHighpc); ok {
			var high uint64
			switch v := f.Val.(type) {
			case uint64:
				high = v
				if f.Class == dwarf.ClassConstant {
					high = low + v
				}
			case int64:
				high = low + uint64(v)
			}
			if high > low {
				return []Range{{low, high}}, nil
			}
			return nil, nil
		}
	}
	f, ok := u.Field(i, dwarf.AttrRanges)
	if !ok {
		return nil, nil
	}
	v, _ := f.Val.(uint64)
	base, _ := u.Uint(0, dwarf.AttrLowpc)
	if u.Version < 5 {
		return u.debugRanges(v, base)
	}
	off := v
	if f.Form == FormRnglistx {
		rb := u.tableBases().rnglists
		b := u.rangeBuf(".debug_rnglists", u.sec.Rnglists, 0)
		osz := uint64(b.OffsetSize())
		b.Seek(rb + v*osz)
		off = rb + b.Offset()
		if b.Err != nil {
			return nil, b.Err
		}
	}
	return u.rnglists(off, base)
}

func (u *Unit) rangeBuf(name string, data []byte, off uint64) util.Buf {
	b := util.MakeBuf(name, data, 0)
	b.Order = u.sec.order()
	b.Format64 = u.Format64
	b.AddrSize = int(u.AddrSize)
	b.Seek(off)
	return b
}

func (u *Unit) debugRanges(off, base uint64) ([]Range, error) {
	b := u.rangeBuf(".debug_ranges", u.sec.Ranges, off)
	maxAddr := ^uint64(0)
	if u.AddrSize == 4 {
		maxAddr = 0xffffffff
	}
	var r []Range
	for b.Err == nil {
		lo, hi := b.Addr(), b.Addr()
		switch {
		case b.Err != nil:
		case lo == 0 && hi == 0:
			return r, nil
		case lo == maxAddr:
			base = hi
		case hi > lo:
			r = append(r, Range{base + lo, base + hi})
		}
	}
	return r, b.Err
}

func (u *Unit) rnglists(off, base uint64) ([]Range, error) {
	b := u.rangeBuf(".debug_rnglists", u.sec.Rnglists, off)
	addrx := func(idx uint64) uint64 {
		v, _ := u.resolveIndex(dwarf.ClassAddress, idx)
		a, _ := v.(uint64)
		return a
	}
	var r []Range
	add := func(lo, hi uint64) {
		if hi > lo {
			r = append(r, Range{lo, hi})
		}
	}
	for b.Err == nil {
		switch kind := b.U8(); kind {
		case rleEndOfList:
			return r, b.Err
		case rleBaseAddressx:
			base = addrx(b.ULEB())
		case rleStartxEndx:
			lo := addrx(b.ULEB())
			add(lo, addrx(b.ULEB()))
		case rleStartxLength:
			lo := addrx(b.ULEB())
			add(lo, lo+b.ULEB())
		case rleOffsetPair:
			lo := b.ULEB()
			add(base+lo, base+b.ULEB())
		case rleBaseAddress:
			base = b.Addr()
		case rleStartEnd:
			lo := b.Addr()
			add(lo, b.Addr())
		case rleStartLength:
			lo := b.Addr()
			add(lo, lo+b.ULEB())
		default:
			b.Errorf("unknown range list entry %#x", kind)
		}
	}
	return r, b.Err
}
