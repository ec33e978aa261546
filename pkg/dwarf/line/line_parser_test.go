package line

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/go-delve/nativedbg/pkg/dwarf/dwarfbuilder"
)

func buildTable(t *testing.T) *Table {
	b := dwarfbuilder.New()
	off := b.AddLineTable(
		[]string{"/usr/include"},
		[]dwarfbuilder.LineFile{{Name: "main.c", DirIdx: 0}, {Name: "stdio.h", DirIdx: 1}, {Name: "/abs/x.h", DirIdx: 1}},
		[]dwarfbuilder.LineRow{
			{Address: 0x1000, File: 1, Line: 10},
			{Address: 0x1010, File: 2, Line: 3},
			{Address: 0x1020, File: 1, Line: 12},
		})
	sec, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	tab, err := Parse("/src", sec.Line, uint64(off), nil, 8)
	if err != nil {
		t.Fatal(err)
	}
	return tab
}

func TestSupportFiles(t *testing.T) {
	tab := buildTable(t)
	want := []string{"", "/src/main.c", "/usr/include/stdio.h", "/abs/x.h"}
	if diff := cmp.Diff(want, tab.SupportFiles()); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if tab.File(2) != "/usr/include/stdio.h" || tab.File(10) != "" {
		t.Fatalf("wrong file lookup")
	}
	if tab.Prologue.Version != 4 || tab.Prologue.OpcodeBase != 13 {
		t.Fatalf("unexpected prologue %#v", tab.Prologue)
	}
}

func TestRows(t *testing.T) {
	tab := buildTable(t)
	var got []Row
	for _, r := range tab.Rows() {
		if !r.EndSequence {
			got = append(got, Row{Address: r.Address, File: r.File, Line: r.Line})
		}
	}
	want := []Row{
		{Address: 0x1000, File: "/src/main.c", Line: 10},
		{Address: 0x1010, File: "/usr/include/stdio.h", Line: 3},
		{Address: 0x1020, File: "/src/main.c", Line: 12},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}

	if f, l, ok := tab.PCToLine(0x1010); !ok || f != "/usr/include/stdio.h" || l != 3 {
		t.Errorf("PCToLine(0x1010) = %s:%d %v", f, l, ok)
	}
	if _, _, ok := tab.PCToLine(0x1030); ok {
		t.Errorf("PCToLine succeeded past the end of every sequence")
	}
	if pc := tab.LineToPC("/src/main.c", 12); pc != 0x1020 {
		t.Errorf("LineToPC = %#x", pc)
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse("", []byte{0x10, 0, 0, 0, 9, 0}, 0, nil, 8); err == nil {
		t.Fatalf("expected an error for version 9")
	}
	if _, err := Parse("", []byte{0x40, 0, 0, 0, 4, 0}, 0, nil, 8); err == nil {
		t.Fatalf("expected an error for a table longer than the section")
	}
}

func TestPathIsAbs(t *testing.T) {
	for _, tc := range []struct {
		path string
		abs  bool
	}{
		{"/a", true},
		{"C:\\a", true},
		{"c:/a", true},
		{"a/b", false},
		{"", false},
	} {
		if pathIsAbs(tc.path) != tc.abs {
			t.Errorf("%q: expected %v", tc.path, tc.abs)
		}
	}
}
