package debuginfo

import (
	"debug/dwarf"
	"sort"

	"github.com/go-delve/nativedbg/pkg/dwarf/unit"
	"github.com/go-delve/nativedbg/pkg/dwarf/util"
)

// Arange maps the addresses [Low, High) to the unit at CUOffset.
type Arange struct {
	Low, High uint64
	CUOffset  uint64
}

// Aranges maps addresses to compile units.
type Aranges struct {
	Ranges []Arange
}

// Lookup returns the offset of the compile unit containing pc.
func (a *Aranges) Lookup(pc uint64) (uint64, bool) {
	i := sort.Search(len(a.Ranges), func(i int) bool { return a.Ranges[i].High > pc })
	if i < len(a.Ranges) && a.Ranges[i].Low <= pc {
		return a.Ranges[i].CUOffset, true
	}
	return 0, false
}

// ParseAranges reads .debug_aranges.
func ParseAranges(data []byte) (*Aranges, error) {
	a := &Aranges{}
	b := util.MakeBuf(".debug_aranges", data, 0)
	for b.Err == nil && b.Len() > 0 {
		start := b.Off()
		length := b.InitialLength()
		set := b.Slice(int(length))
		if b.Err != nil {
			break
		}
		version := set.U16()
		if set.Err == nil && version != 2 {
			set.Errorf("unsupported aranges version %d", version)
			return nil, set.Err
		}
		cuOffset := set.Offset()
		set.AddrSize = int(set.U8())
		segSize := int(set.U8())
		// tuples are aligned to twice the address size from the start of the
		// set
		tuple := uint64(2 * set.AddrSize)
		if tuple == 0 {
			set.Errorf("invalid address size")
			return nil, set.Err
		}
		if rem := (set.Off() - start) % tuple; rem != 0 {
			set.Skip(int(tuple - rem))
		}
		for set.Err == nil && set.Len() > 0 {
			set.Skip(segSize)
			lo, n := set.Addr(), set.Addr()
			if lo == 0 && n == 0 {
				break
			}
			if n > 0 {
				a.Ranges = append(a.Ranges, Arange{lo, lo + n, cuOffset})
			}
		}
		if set.Err != nil {
			return nil, set.Err
		}
	}
	return a, b.Err
}

// Sort sorts the ranges by address and coalesces adjacent ranges of the
// same unit.
func (a *Aranges) Sort() {
	sort.SliceStable(a.Ranges, func(i, j int) bool { return a.Ranges[i].Low < a.Ranges[j].Low })
	if len(a.Ranges) == 0 {
		return
	}
	out := a.Ranges[:1]
	for _, r := range a.Ranges[1:] {
		last := &out[len(out)-1]
		if last.CUOffset == r.CUOffset && r.Low <= last.High {
			if r.High > last.High {
				last.High = r.High
			}
			continue
		}
		out = append(out, r)
	}
	a.Ranges = out
}

// CompileUnitAranges returns the address ranges of every compile unit.
// Ranges come from .debug_aranges, units it doesn't describe have their
// ranges computed from their DIEs.
func (d *DebugInfo) CompileUnitAranges() (*Aranges, error) {
	if d.aranges != nil {
		return d.aranges, nil
	}
	a := &Aranges{}
	if len(d.sec.Aranges) > 0 {
		var err error
		a, err = ParseAranges(d.sec.Aranges)
		if err != nil {
			return nil, err
		}
	}
	withData := map[uint64]bool{}
	for _, r := range a.Ranges {
		withData[r.CUOffset] = true
	}
	for i := 0; i < d.NumUnits(); i++ {
		u := d.units[i]
		if withData[u.Offset] {
			continue
		}
		a.Ranges = append(a.Ranges, unitAranges(u)...)
	}
	a.Sort()
	d.aranges = a
	return a, nil
}

// unitAranges computes the ranges of u from the unit DIE or, if it has no
// ranges, from its subprograms.
func unitAranges(u *unit.Unit) []Arange {
	var r []Arange
	add := func(i int) {
		rngs, _ := u.Ranges(i)
		for _, rng := range rngs {
			r = append(r, Arange{rng.Low, rng.High, u.Offset})
		}
	}
	if u.ExtractDIEs() != nil && u.NumDIEs() == 0 {
		return nil
	}
	add(0)
	if len(r) > 0 {
		return r
	}
	dies := u.DIEs()
	for i := range dies {
		if dies[i].Tag == dwarf.TagSubprogram {
			add(i)
		}
	}
	return r
}
