package objfile

import (
	"bytes"
	"compress/zlib"
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-delve/nativedbg/pkg/dwarf/unit"
)

// errNoSection is returned by the getDebugSection functions when neither
// the plain nor the compressed version of a section exists.
var errNoSection = errors.New("no such section")

// getDebugSectionElf returns the data contents of the specified debug
// section, decompressing it if it is compressed.
// For example getDebugSectionElf("line") will return the contents of
// .debug_line, if .debug_line doesn't exist it will try to return the
// decompressed contents of .zdebug_line.
func getDebugSectionElf(f *elf.File, name string) ([]byte, error) {
	sec := f.Section(".debug_" + name)
	if sec != nil {
		return sec.Data()
	}
	sec = f.Section(".zdebug_" + name)
	if sec == nil {
		return nil, errNoSection
	}
	b, err := sec.Data()
	if err != nil {
		return nil, err
	}
	return decompressMaybe(b)
}

// getDebugSectionPE is like getDebugSectionElf for PE files.
func getDebugSectionPE(f *pe.File, name string) ([]byte, error) {
	sec := f.Section(".debug_" + name)
	if sec != nil {
		return peSectionData(sec)
	}
	sec = f.Section(".zdebug_" + name)
	if sec == nil {
		return nil, errNoSection
	}
	b, err := peSectionData(sec)
	if err != nil {
		return nil, err
	}
	return decompressMaybe(b)
}

func peSectionData(sec *pe.Section) ([]byte, error) {
	b, err := sec.Data()
	if err != nil {
		return nil, err
	}
	if 0 < sec.VirtualSize && sec.VirtualSize < sec.Size {
		b = b[:sec.VirtualSize]
	}
	return b, nil
}

// getDebugSectionMacho is like getDebugSectionElf for Mach-O files, where
// the sections are called __debug_name and __zdebug_name.
func getDebugSectionMacho(f *macho.File, name string) ([]byte, error) {
	sec := f.Section("__debug_" + name)
	if sec != nil {
		return sec.Data()
	}
	sec = f.Section("__zdebug_" + name)
	if sec == nil {
		return nil, errNoSection
	}
	b, err := sec.Data()
	if err != nil {
		return nil, err
	}
	return decompressMaybe(b)
}

func decompressMaybe(b []byte) ([]byte, error) {
	if len(b) < 12 || string(b[:4]) != "ZLIB" {
		// not compressed
		return b, nil
	}

	dlen := binary.BigEndian.Uint64(b[4:12])
	dbuf := make([]byte, dlen)
	r, err := zlib.NewReader(bytes.NewBuffer(b[12:]))
	if err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, dbuf); err != nil {
		return nil, err
	}
	if err := r.Close(); err != nil {
		return nil, err
	}
	return dbuf, nil
}

// loadSections reads every DWARF section known to the reader through get.
// Missing sections are left nil.
func loadSections(get func(name string) ([]byte, error), order binary.ByteOrder) (*unit.Sections, error) {
	sec := &unit.Sections{Order: order}
	for _, s := range []struct {
		name string
		dst  *[]byte
	}{
		{"info", &sec.Info},
		{"abbrev", &sec.Abbrev},
		{"str", &sec.Str},
		{"line_str", &sec.LineStr},
		{"str_offsets", &sec.StrOffsets},
		{"addr", &sec.Addr},
		{"ranges", &sec.Ranges},
		{"rnglists", &sec.Rnglists},
		{"line", &sec.Line},
		{"aranges", &sec.Aranges},
		{"macro", &sec.Macro},
		{"macinfo", &sec.Macinfo},
		{"loc", &sec.Loc},
	} {
		b, err := get(s.name)
		if err == errNoSection {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("could not read .debug_%s section: %w", s.name, err)
		}
		*s.dst = b
	}
	return sec, nil
}
