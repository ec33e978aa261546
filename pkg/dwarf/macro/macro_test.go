package macro

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseMacinfo(t *testing.T) {
	data := []byte{
		// start_file line 0 file 1
		3, 0, 1,
		// define line 1 "A 1"
		1, 1, 'A', ' ', '1', 0,
		// vendor extension, ignored
		0xff, 7, 'x', 0,
		// undef line 5 "A"
		2, 5, 'A', 0,
		// end_file
		4,
		0,
	}
	l, err := ParseMacinfo(data, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []Entry{
		{Kind: StartFile, FileIndex: 1},
		{Kind: Define, Line: 1, Text: "A 1"},
		{Kind: Undef, Line: 5, Text: "A"},
		{Kind: EndFile},
	}
	if diff := cmp.Diff(want, l.Entries); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMacro(t *testing.T) {
	str := []byte("unused\x00B(x) x+1\x00")
	data := []byte{
		// unit at 0: version 5, no flags
		5, 0, 0,
		// start_file
		3, 0, 1,
		// define_strp line 2, "B(x) x+1"
		5, 2, 7, 0, 0, 0,
		// import of the unit at 19
		7, 19, 0, 0, 0,
		4,
		0,
		// unit at 19
		5, 0, 0,
		// define line 3 "C"
		1, 3, 'C', 0,
		0,
	}
	l, err := ParseMacro(data, 0, str)
	if err != nil {
		t.Fatal(err)
	}
	if l.Len() != 4 {
		t.Fatalf("expected 4 entries got %d", l.Len())
	}
	if e := l.Entries[1]; e.Kind != Define || e.Text != "B(x) x+1" || e.Line != 2 {
		t.Fatalf("unexpected strp entry %#v", e)
	}
	imp := l.Entries[2]
	if imp.Kind != Indirect || imp.Indirect.Len() != 1 || imp.Indirect.Entries[0].Text != "C" {
		t.Fatalf("import not followed: %#v", imp)
	}

	var buf bytes.Buffer
	l.Dump(&buf)
	const want = "DW_MACINFO_start_file line:0 file:1\n" +
		"DW_MACINFO_define line:2 B(x) x+1\n" +
		"DW_MACRO_import offset:0x00000013\n" +
		"  DW_MACINFO_define line:3 C\n" +
		"DW_MACINFO_end_file\n"
	if buf.String() != want {
		t.Fatalf("expected:\n%s\ngot:\n%s", want, buf.String())
	}

	buf.Reset()
	(*List)(nil).Dump(&buf)
	if buf.String() != "< EMPTY >\n" {
		t.Fatalf("unexpected dump of an empty list %q", buf.String())
	}
}

func TestParseMacroErrors(t *testing.T) {
	if _, err := ParseMacro([]byte{3, 0, 0, 0}, 0, nil); err == nil {
		t.Fatalf("expected an error for version 3")
	}
	if _, err := ParseMacro([]byte{5, 0, 0, 0x42}, 0, nil); err == nil {
		t.Fatalf("expected an error for an unknown opcode")
	}
}
