package objfile

import (
	"bytes"
	"compress/zlib"
	"debug/elf"
	"encoding/binary"
	"os"
	"runtime"
	"testing"

	"github.com/go-delve/nativedbg/pkg/dwarf/debuginfo"
)

func TestDecompressMaybe(t *testing.T) {
	plain := []byte("not compressed at all")
	out, err := decompressMaybe(plain)
	if err != nil || !bytes.Equal(out, plain) {
		t.Fatalf("expected uncompressed data back, got %q %v", out, err)
	}

	payload := bytes.Repeat([]byte("debug_info"), 20)
	var buf bytes.Buffer
	buf.WriteString("ZLIB")
	var sz [8]byte
	binary.BigEndian.PutUint64(sz[:], uint64(len(payload)))
	buf.Write(sz[:])
	w := zlib.NewWriter(&buf)
	w.Write(payload)
	w.Close()

	out, err = decompressMaybe(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("decompressed data mismatch")
	}
}

func TestOpenUnknown(t *testing.T) {
	f, err := os.CreateTemp("", "objfile")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())
	f.WriteString("#!/bin/sh\necho\n")
	f.Close()

	if _, err := Open(f.Name()); err != ErrUnknownFormat {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestOpenSelf(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("test binary is not ELF")
	}
	path, err := os.Executable()
	if err != nil {
		t.Fatal(err)
	}
	if exe, err := elf.Open(path); err == nil {
		stripped := exe.Section(".symtab") == nil
		exe.Close()
		if stripped {
			t.Skip("test binary has no symbol table")
		}
	}
	obj, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer obj.Close()

	if obj.Format != FormatELF || obj.Type != TypeExecutable {
		t.Fatalf("unexpected format %d type %s", obj.Format, obj.Type)
	}
	sym, ok := obj.LookupSymbol("github.com/go-delve/nativedbg/pkg/objfile.TestOpenSelf")
	if !ok || !sym.Code {
		t.Fatalf("could not find test function symbol: %v", sym)
	}
	if found, ok := obj.SymbolAt(sym.Addr + 1); !ok || found.Name != sym.Name {
		t.Fatalf("SymbolAt(%#x) = %v", sym.Addr+1, found)
	}
	if _, ok := obj.SectionContaining(sym.Addr); !ok {
		t.Fatalf("no section contains %#x", sym.Addr)
	}

	if !obj.HasDWARF() {
		t.Skip("test binary built without debug info")
	}
	di := debuginfo.New(obj.DWARF)
	di.ParseUnitHeaders()
	if di.NumUnits() == 0 {
		t.Fatalf("no compile units found: %v", di.Err)
	}
}

func TestJIT(t *testing.T) {
	obj := NewJIT("expr1", nil, []Section{{Name: "text", Addr: 0x1000, Size: 0x100}}, []Symbol{
		{Name: "b", Addr: 0x1040, Code: true},
		{Name: "a", Addr: 0x1000, Size: 0x10, Code: true},
	})
	if obj.Type != TypeJIT || obj.HasDWARF() {
		t.Fatalf("unexpected JIT object %v", obj)
	}
	for _, tc := range []struct {
		addr uint64
		name string
	}{
		{0x1000, "a"},
		{0x100f, "a"},
		{0x1010, ""},
		{0x1040, "b"},
		{0x1041, ""},
	} {
		sym, ok := obj.SymbolAt(tc.addr)
		got := ""
		if ok {
			got = sym.Name
		}
		if got != tc.name {
			t.Errorf("SymbolAt(%#x): expected %q got %q", tc.addr, tc.name, got)
		}
	}
	if err := obj.Close(); err != nil {
		t.Fatal(err)
	}
}
