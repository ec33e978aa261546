package debuginfo

import (
	"bytes"
	"debug/dwarf"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/go-delve/nativedbg/pkg/dwarf/dwarfbuilder"
	"github.com/go-delve/nativedbg/pkg/dwarf/unit"
)

type sample struct {
	sec   *unit.Sections
	cus   []dwarf.Offset
	funcs map[string]dwarf.Offset
}

func buildSample(t *testing.T) *sample {
	s := &sample{funcs: map[string]dwarf.Offset{}}
	b := dwarfbuilder.NewEmpty()

	// first unit: ranges come from .debug_aranges
	cu := b.BeginUnit(4, unit.UnitTypeCompile, "a.c", dwarfbuilder.LangC)
	s.cus = append(s.cus, cu)
	s.funcs["a1"] = b.AddSubprogram("a1", 0x1000, 0x1010)
	b.TagClose()
	s.funcs["a2"] = b.AddSubprogram("a2", 0x1010, 0x1020)
	b.TagClose()
	b.EndUnit()
	b.AddAranges(0, []dwarfbuilder.Range{{Low: 0x1000, High: 0x1010}, {Low: 0x1010, High: 0x1020}})

	// second unit: no aranges, no ranges on the unit DIE
	cu = b.BeginUnit(5, unit.UnitTypeCompile, "b.c", dwarfbuilder.LangC99)
	s.cus = append(s.cus, cu)
	s.funcs["b1"] = b.AddSubprogram("b1", 0x3000, 0x3040)
	b.TagClose()
	s.funcs["b2"] = b.AddSubprogram("b2", 0x2000, 0x2010)
	b.TagClose()
	b.EndUnit()

	// third unit: ranges on the unit DIE
	cu = b.BeginUnit(4, unit.UnitTypeCompile, "c.c", dwarfbuilder.LangC)
	b.Attr(dwarf.AttrLowpc, dwarfbuilder.Address(0x4000))
	b.Attr(dwarf.AttrHighpc, dwarfbuilder.Address(0x4100))
	s.cus = append(s.cus, cu)
	s.funcs["c1"] = b.AddSubprogram("c1", 0x4000, 0x4100)
	b.TagClose()
	b.EndUnit()

	sec, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	s.sec = sec
	return s
}

func TestUnitLookup(t *testing.T) {
	s := buildSample(t)
	d := New(s.sec)
	if d.NumUnits() != 3 {
		t.Fatalf("expected 3 units got %d (%v)", d.NumUnits(), d.Err)
	}

	for i := 0; i < d.NumUnits(); i++ {
		u := d.UnitAtIndex(i)
		for off := u.Offset; off < u.NextOffset(); off++ {
			if idx := d.FindUnitIndex(off); idx != i {
				t.Fatalf("offset %#x: expected unit %d got %d", off, i, idx)
			}
		}
		if got, idx := d.UnitAtOffset(u.Offset); got != u || idx != i {
			t.Errorf("unit %d not found at its offset", i)
		}
		if got, _ := d.UnitAtOffset(u.Offset + 1); got != nil {
			t.Errorf("unit %d found at an inexact offset", i)
		}
		// the header is not part of the DIEs
		if d.UnitContaining(u.Offset) != nil {
			t.Errorf("unit %d contains its own header offset", i)
		}
	}

	for name, off := range s.funcs {
		ref := unit.DIERef{CUOffset: unit.InvalidOffset, DIEOffset: uint64(off)}
		u, i, ok := d.GetDIE(ref)
		if !ok || u.DIE(i).Offset != uint64(off) || u.Name(i) != name {
			t.Errorf("%s: lookup by DIE offset failed", name)
			continue
		}
		u2, i2, ok := d.GetDIE(u.Ref(i))
		if !ok || u2 != u || i2 != i {
			t.Errorf("%s: lookup by full reference failed", name)
		}
	}

	if _, _, ok := d.GetDIE(unit.DIERef{CUOffset: 3, DIEOffset: uint64(s.funcs["a1"])}); ok {
		t.Errorf("lookup with a wrong unit offset succeeded")
	}
	if d.FindUnitIndex(0) != 0 {
		t.Errorf("expected offset 0 in the first unit")
	}
}

func TestTruncatedUnits(t *testing.T) {
	s := buildSample(t)
	sec := *s.sec
	second := New(s.sec).UnitAtIndex(1)
	// cut the last unit in half
	last := New(s.sec).UnitAtIndex(2)
	sec.Info = sec.Info[:last.Offset+last.HeaderSize()+2]
	d := New(&sec)
	if d.NumUnits() != 2 || d.Err == nil {
		t.Fatalf("expected two units and an error, got %d units, %v", d.NumUnits(), d.Err)
	}
	if d.UnitAtIndex(1).Offset != second.Offset {
		t.Fatalf("second unit changed")
	}
	if d.Err.Error() != "Invalid compile unit length" {
		t.Fatalf("unexpected error %v", d.Err)
	}
}

func TestCompileUnitAranges(t *testing.T) {
	s := buildSample(t)
	d := New(s.sec)
	a, err := d.CompileUnitAranges()
	if err != nil {
		t.Fatal(err)
	}
	u0, u1, u2 := d.UnitAtIndex(0).Offset, d.UnitAtIndex(1).Offset, d.UnitAtIndex(2).Offset
	want := []Arange{
		{0x1000, 0x1020, u0},
		{0x2000, 0x2010, u1},
		{0x3000, 0x3040, u1},
		{0x4000, 0x4100, u2},
	}
	if diff := cmp.Diff(want, a.Ranges); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	for _, tc := range []struct {
		pc  uint64
		off uint64
		ok  bool
	}{
		{0x1000, u0, true},
		{0x101f, u0, true},
		{0x1020, 0, false},
		{0x3010, u1, true},
		{0x40ff, u2, true},
		{0x4100, 0, false},
		{0x10, 0, false},
	} {
		off, ok := a.Lookup(tc.pc)
		if ok != tc.ok || off != tc.off {
			t.Errorf("%#x: expected (%#x, %v) got (%#x, %v)", tc.pc, tc.off, tc.ok, off, ok)
		}
	}
}

func TestDumpUnits(t *testing.T) {
	s := buildSample(t)
	d := New(s.sec)
	var buf bytes.Buffer
	d.UnitAtIndex(0).Dump(&buf)
	if !bytes.HasPrefix(buf.Bytes(), []byte("0x00000000: Compile Unit: length = ")) {
		t.Fatalf("unexpected dump %q", buf.String())
	}
}
