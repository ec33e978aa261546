// Package line reads the line number programs of .debug_line.
package line

import (
	"path"
	"strings"

	"github.com/go-delve/nativedbg/pkg/dwarf/util"
)

// Prologue is the header of a line number program.
type Prologue struct {
	UnitLength     uint64
	Format64       bool
	Version        uint16
	AddrSize       uint8
	Length         uint64
	MinInstrLength uint8
	MaxOpPerInstr  uint8
	InitialIsStmt  uint8
	LineBase       int8
	LineRange      uint8
	OpcodeBase     uint8
	StdOpLengths   []uint8
}

// FileEntry is an entry of the file name table.
type FileEntry struct {
	Path        string
	DirIdx      uint64
	LastModTime uint64
	Length      uint64
}

// Table is a parsed line number program.
type Table struct {
	Offset      uint64
	Prologue    *Prologue
	IncludeDirs []string
	FileNames   []*FileEntry
	// Instructions is the line number program itself.
	Instructions []byte

	// Logf is called for recoverable errors, it may be nil.
	Logf func(string, ...interface{})

	lineStr []byte
	rows    []Row
	ran     bool
}

// Parse reads the line number program at off. CompDir is the DW_AT_comp_dir
// attribute of the compile unit that refers to it, lineStr the contents of
// .debug_line_str (nil if absent) and addrSize the address size of the
// compile unit.
func Parse(compDir string, data []byte, off uint64, lineStr []byte, addrSize int) (*Table, error) {
	t := &Table{Offset: off, lineStr: lineStr}
	b := util.MakeBuf(".debug_line", data, off)
	b.AddrSize = addrSize

	p := new(Prologue)
	p.UnitLength = b.InitialLength()
	p.Format64 = b.Format64
	end := b.Off() + p.UnitLength
	p.Version = b.U16()
	if b.Err != nil {
		return nil, b.Err
	}
	if p.Version < 2 || p.Version > 5 {
		return nil, &util.DecodeError{Section: ".debug_line", Offset: off, Msg: "unsupported line table version"}
	}
	if end > uint64(len(data)) {
		return nil, &util.DecodeError{Section: ".debug_line", Offset: off, Msg: "line table length exceeds the section"}
	}
	b = b.Slice(int(end - b.Off()))
	p.AddrSize = uint8(addrSize)
	if p.Version >= 5 {
		p.AddrSize = b.U8()
		b.U8() // segment_selector_size
		b.AddrSize = int(p.AddrSize)
	}
	p.Length = b.Offset()
	programStart := b.Off() + p.Length
	p.MinInstrLength = b.U8()
	p.MaxOpPerInstr = 1
	if p.Version >= 4 {
		p.MaxOpPerInstr = b.U8()
	}
	p.InitialIsStmt = b.U8()
	p.LineBase = int8(b.U8())
	p.LineRange = b.U8()
	p.OpcodeBase = b.U8()
	if p.OpcodeBase > 0 {
		p.StdOpLengths = append([]uint8(nil), b.Bytes(int(p.OpcodeBase)-1)...)
	}
	if b.Err != nil {
		return nil, b.Err
	}
	if p.LineRange == 0 {
		return nil, &util.DecodeError{Section: ".debug_line", Offset: off, Msg: "line range is zero"}
	}
	t.Prologue = p

	if p.Version >= 5 {
		t.parseIncludeDirs5(&b)
		t.parseFileEntries5(&b)
	} else {
		t.IncludeDirs = append(t.IncludeDirs, compDir)
		t.parseIncludeDirs2(&b)
		t.parseFileEntries2(&b)
	}
	if b.Err != nil {
		return nil, b.Err
	}
	b.Seek(programStart)
	t.Instructions = b.Bytes(int(end - programStart))
	if b.Err != nil {
		return nil, b.Err
	}
	return t, nil
}

// parseIncludeDirs2 parses the directory table for DWARF version 2 through 4.
func (t *Table) parseIncludeDirs2(b *util.Buf) {
	for b.Err == nil {
		str := b.CString()
		if str == "" {
			break
		}
		t.IncludeDirs = append(t.IncludeDirs, str)
	}
}

// parseFileEntries2 parses the file table for DWARF 2 through 4
func (t *Table) parseFileEntries2(b *util.Buf) {
	for b.Err == nil {
		entry := t.readFileEntry(b)
		if entry == nil {
			break
		}
		t.FileNames = append(t.FileNames, entry)
	}
}

func (t *Table) readFileEntry(b *util.Buf) *FileEntry {
	entry := new(FileEntry)
	entry.Path = b.CString()
	if entry.Path == "" || b.Err != nil {
		return nil
	}
	entry.DirIdx = b.ULEB()
	entry.LastModTime = b.ULEB()
	entry.Length = b.ULEB()
	if !pathIsAbs(entry.Path) && entry.DirIdx < uint64(len(t.IncludeDirs)) {
		entry.Path = path.Join(t.IncludeDirs[entry.DirIdx], entry.Path)
	}
	return entry
}

// parseIncludeDirs5 parses the directory table for DWARF version 5.
func (t *Table) parseIncludeDirs5(b *util.Buf) {
	rdr := readEntryFormat(b)
	count := b.ULEB()
	for i := uint64(0); i < count && b.Err == nil; i++ {
		rdr.reset()
		for rdr.next(b) {
			if rdr.contentType == lnctPath {
				t.IncludeDirs = append(t.IncludeDirs, t.entryString(rdr))
			}
		}
	}
}

// parseFileEntries5 parses the file table for DWARF 5
func (t *Table) parseFileEntries5(b *util.Buf) {
	rdr := readEntryFormat(b)
	count := b.ULEB()
	for i := uint64(0); i < count && b.Err == nil; i++ {
		entry := new(FileEntry)
		rdr.reset()
		for rdr.next(b) {
			switch rdr.contentType {
			case lnctPath:
				entry.Path = t.entryString(rdr)
			case lnctDirectoryIndex:
				entry.DirIdx = rdr.u64
			case lnctTimestamp:
				entry.LastModTime = rdr.u64
			case lnctSize:
				entry.Length = rdr.u64
			}
		}
		if !pathIsAbs(entry.Path) && entry.DirIdx < uint64(len(t.IncludeDirs)) {
			entry.Path = path.Join(t.IncludeDirs[entry.DirIdx], entry.Path)
		}
		t.FileNames = append(t.FileNames, entry)
	}
}

func (t *Table) entryString(rdr *formReader) string {
	switch rdr.formCode {
	case formString:
		return rdr.str
	case formLineStrp:
		s, _ := util.CStringAt(t.lineStr, rdr.u64)
		return s
	}
	t.logf("unsupported string form %#x", rdr.formCode)
	return ""
}

func (t *Table) logf(fmt string, args ...interface{}) {
	if t.Logf != nil {
		t.Logf(fmt, args...)
	}
}

// SupportFiles returns the paths of the file table indexed the way
// DW_AT_decl_file refers to them. Before DWARF 5 file indexes start at one
// and index zero is the empty string.
func (t *Table) SupportFiles() []string {
	var r []string
	if t.Prologue.Version < 5 {
		r = append(r, "")
	}
	for _, f := range t.FileNames {
		r = append(r, f.Path)
	}
	return r
}

// File returns the path of the file with index i, as used by DW_LNS_set_file
// and DW_AT_decl_file.
func (t *Table) File(i uint64) string {
	files := t.SupportFiles()
	if i < uint64(len(files)) {
		return files[i]
	}
	return ""
}

// pathIsAbs returns true if this is an absolute path.
// We can not use path.IsAbs because it will not recognize windows paths as
// absolute. We also can not use filepath.Abs because we want this
// processing to be independent of the host operating system (we could be
// reading an executable file produced on windows on a unix machine or vice
// versa).
func pathIsAbs(s string) bool {
	if len(s) >= 1 && s[0] == '/' {
		return true
	}
	if len(s) >= 2 && s[1] == ':' && (('a' <= s[0] && s[0] <= 'z') || ('A' <= s[0] && s[0] <= 'Z')) {
		return true
	}
	return strings.HasPrefix(s, `\\`)
}
