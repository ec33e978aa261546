// Package objfile loads object files (ELF, Mach-O and PE) and exposes the
// pieces the symbol file layer needs: the DWARF sections, the section map
// and the symbol table.
package objfile

import (
	"bytes"
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-delve/nativedbg/pkg/dwarf/unit"
	"github.com/go-delve/nativedbg/pkg/logflags"
)

// Type is the kind of object file.
type Type uint8

const (
	TypeInvalid Type = iota
	TypeExecutable
	TypeSharedLibrary
	TypeObject
	TypeDebugInfo
	TypeCore
	// TypeJIT is an object file produced in memory by a JIT compiler.
	TypeJIT
)

func (t Type) String() string {
	switch t {
	case TypeExecutable:
		return "executable"
	case TypeSharedLibrary:
		return "shared library"
	case TypeObject:
		return "object"
	case TypeDebugInfo:
		return "debug info"
	case TypeCore:
		return "core"
	case TypeJIT:
		return "jit"
	}
	return "invalid"
}

// Format is the container format of an object file.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatELF
	FormatMachO
	FormatPE
	FormatMemory
)

var ErrUnknownFormat = errors.New("unrecognized object file format")

// Symbol is an entry of the symbol table.
type Symbol struct {
	Name string
	Addr uint64
	Size uint64
	Code bool
}

// Section is a loadable section.
type Section struct {
	Name string
	Addr uint64
	Size uint64
}

func (s *Section) Contains(addr uint64) bool {
	return addr >= s.Addr && addr < s.Addr+s.Size
}

// File is a loaded object file.
type File struct {
	Path   string
	Format Format
	Type   Type
	// Arch is the architecture name, for example "x86_64" or "aarch64".
	Arch string

	// DWARF holds the debug sections, never nil.
	DWARF *unit.Sections

	Sections []Section
	Symbols  []Symbol

	// ImageBase is the preferred load address of a PE image.
	ImageBase uint64

	byName map[string]int
	closer io.Closer
}

const (
	machoTypeCore = 4
	machoTypeDsym = 10
)

// Open loads the object file at path.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		f.Close()
		return nil, ErrUnknownFormat
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}

	var obj *File
	switch {
	case bytes.Equal(magic[:], []byte(elf.ELFMAG)):
		obj, err = loadElf(f)
	case isMacho(magic):
		obj, err = loadMacho(f)
	case magic[0] == 'M' && magic[1] == 'Z':
		obj, err = loadPE(f)
	default:
		err = ErrUnknownFormat
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	obj.Path = path
	obj.closer = f
	obj.index()
	logflags.SymbolsLogger().Debugf("loaded %s: %s %s, %d sections, %d symbols", filepath.Base(path), obj.Arch, obj.Type, len(obj.Sections), len(obj.Symbols))
	return obj, nil
}

func isMacho(magic [4]byte) bool {
	le := binary.LittleEndian.Uint32(magic[:])
	be := binary.BigEndian.Uint32(magic[:])
	for _, m := range []uint32{macho.Magic32, macho.Magic64} {
		if le == m || be == m {
			return true
		}
	}
	return false
}

// NewJIT returns an object file for code generated in memory. JIT object
// files have no backing file.
func NewJIT(name string, dwarf *unit.Sections, sections []Section, symbols []Symbol) *File {
	if dwarf == nil {
		dwarf = &unit.Sections{}
	}
	obj := &File{
		Path:     name,
		Format:   FormatMemory,
		Type:     TypeJIT,
		DWARF:    dwarf,
		Sections: sections,
		Symbols:  symbols,
	}
	obj.index()
	return obj
}

func (f *File) index() {
	sort.SliceStable(f.Symbols, func(i, j int) bool { return f.Symbols[i].Addr < f.Symbols[j].Addr })
	f.byName = make(map[string]int, len(f.Symbols))
	for i := range f.Symbols {
		if _, dup := f.byName[f.Symbols[i].Name]; !dup {
			f.byName[f.Symbols[i].Name] = i
		}
	}
}

// Close releases the file backing f.
func (f *File) Close() error {
	if f.closer == nil {
		return nil
	}
	err := f.closer.Close()
	f.closer = nil
	return err
}

// HasDWARF returns true if the file contains debug information entries.
func (f *File) HasDWARF() bool {
	return len(f.DWARF.Info) > 0 && len(f.DWARF.Abbrev) > 0
}

// LookupSymbol returns the symbol called name.
func (f *File) LookupSymbol(name string) (*Symbol, bool) {
	i, ok := f.byName[name]
	if !ok {
		return nil, false
	}
	return &f.Symbols[i], true
}

// SymbolAt returns the symbol containing addr. Symbols without a size
// extend to the next symbol.
func (f *File) SymbolAt(addr uint64) (*Symbol, bool) {
	i := sort.Search(len(f.Symbols), func(i int) bool { return f.Symbols[i].Addr > addr })
	if i == 0 {
		return nil, false
	}
	sym := &f.Symbols[i-1]
	switch {
	case sym.Size > 0:
		if addr >= sym.Addr+sym.Size {
			return nil, false
		}
	case i < len(f.Symbols):
		// bounded by the next symbol
	default:
		if addr != sym.Addr {
			return nil, false
		}
	}
	return sym, true
}

// SectionContaining returns the section containing addr.
func (f *File) SectionContaining(addr uint64) (*Section, bool) {
	for i := range f.Sections {
		if f.Sections[i].Contains(addr) {
			return &f.Sections[i], true
		}
	}
	return nil, false
}

// ELF ///////////////////////////////////////////////////////////////

func loadElf(r io.ReaderAt) (*File, error) {
	exe, err := elf.NewFile(r)
	if err != nil {
		return nil, err
	}
	obj := &File{Format: FormatELF, Arch: elfArch(exe.Machine)}
	switch exe.Type {
	case elf.ET_EXEC:
		obj.Type = TypeExecutable
	case elf.ET_DYN:
		obj.Type = TypeSharedLibrary
		for _, prog := range exe.Progs {
			if prog.Type == elf.PT_INTERP {
				// position independent executable
				obj.Type = TypeExecutable
				break
			}
		}
	case elf.ET_REL:
		obj.Type = TypeObject
	case elf.ET_CORE:
		obj.Type = TypeCore
	}
	if obj.Type == TypeExecutable && exe.Section(".text") == nil && exe.Section(".debug_info") != nil {
		obj.Type = TypeDebugInfo
	}

	obj.DWARF, err = loadSections(func(name string) ([]byte, error) { return getDebugSectionElf(exe, name) }, exe.ByteOrder)
	if err != nil {
		return nil, err
	}

	for _, s := range exe.Sections {
		if s.Flags&elf.SHF_ALLOC == 0 {
			continue
		}
		obj.Sections = append(obj.Sections, Section{Name: s.Name, Addr: s.Addr, Size: s.Size})
	}

	syms, err := exe.Symbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return nil, fmt.Errorf("could not parse ELF symbols: %v", err)
	}
	dynsyms, _ := exe.DynamicSymbols()
	for _, list := range [][]elf.Symbol{syms, dynsyms} {
		for _, s := range list {
			typ := elf.ST_TYPE(s.Info)
			if s.Name == "" || typ == elf.STT_SECTION || typ == elf.STT_FILE || s.Section == elf.SHN_UNDEF {
				continue
			}
			obj.Symbols = append(obj.Symbols, Symbol{Name: s.Name, Addr: s.Value, Size: s.Size, Code: typ == elf.STT_FUNC})
		}
	}
	return obj, nil
}

func elfArch(m elf.Machine) string {
	switch m {
	case elf.EM_X86_64:
		return "x86_64"
	case elf.EM_386:
		return "i386"
	case elf.EM_AARCH64:
		return "aarch64"
	case elf.EM_ARM:
		return "arm"
	case elf.EM_PPC64:
		return "ppc64le"
	case elf.EM_RISCV:
		return "riscv64"
	}
	return "unknown"
}

// Mach-O /////////////////////////////////////////////////////////////

func loadMacho(r io.ReaderAt) (*File, error) {
	exe, err := macho.NewFile(r)
	if err != nil {
		return nil, err
	}
	obj := &File{Format: FormatMachO}
	switch exe.Cpu {
	case macho.CpuAmd64:
		obj.Arch = "x86_64"
	case macho.Cpu386:
		obj.Arch = "i386"
	case macho.CpuArm64:
		obj.Arch = "aarch64"
	case macho.CpuArm:
		obj.Arch = "arm"
	default:
		obj.Arch = "unknown"
	}
	switch exe.Type {
	case macho.TypeExec:
		obj.Type = TypeExecutable
	case macho.TypeDylib, macho.TypeBundle:
		obj.Type = TypeSharedLibrary
	case macho.TypeObj:
		obj.Type = TypeObject
	case machoTypeCore:
		obj.Type = TypeCore
	case machoTypeDsym:
		obj.Type = TypeDebugInfo
	}

	obj.DWARF, err = loadSections(func(name string) ([]byte, error) { return getDebugSectionMacho(exe, name) }, exe.ByteOrder)
	if err != nil {
		return nil, err
	}

	textSect := uint8(0)
	for i, s := range exe.Sections {
		if s.Seg == "__DWARF" {
			continue
		}
		obj.Sections = append(obj.Sections, Section{Name: s.Seg + "." + s.Name, Addr: s.Addr, Size: s.Size})
		if s.Seg == "__TEXT" && s.Name == "__text" {
			// section numbers are 1-based
			textSect = uint8(i + 1)
		}
	}

	if exe.Symtab != nil {
		const stabMask = 0xe0
		for _, s := range exe.Symtab.Syms {
			if s.Type&stabMask != 0 || s.Sect == 0 || s.Name == "" {
				continue
			}
			obj.Symbols = append(obj.Symbols, Symbol{Name: s.Name, Addr: s.Value, Code: s.Sect == textSect})
		}
	}
	return obj, nil
}

// PE ////////////////////////////////////////////////////////////////

func loadPE(r io.ReaderAt) (*File, error) {
	exe, err := pe.NewFile(r)
	if err != nil {
		return nil, err
	}
	obj := &File{Format: FormatPE, Type: TypeExecutable}
	switch exe.Machine {
	case pe.IMAGE_FILE_MACHINE_AMD64:
		obj.Arch = "x86_64"
	case pe.IMAGE_FILE_MACHINE_I386:
		obj.Arch = "i386"
	case pe.IMAGE_FILE_MACHINE_ARM64:
		obj.Arch = "aarch64"
	default:
		obj.Arch = "unknown"
	}
	if exe.Characteristics&pe.IMAGE_FILE_DLL != 0 {
		obj.Type = TypeSharedLibrary
	}

	var imageBase uint64
	switch oh := exe.OptionalHeader.(type) {
	case *pe.OptionalHeader64:
		imageBase = oh.ImageBase
	case *pe.OptionalHeader32:
		imageBase = uint64(oh.ImageBase)
	}
	obj.ImageBase = imageBase

	obj.DWARF, err = loadSections(func(name string) ([]byte, error) { return getDebugSectionPE(exe, name) }, binary.LittleEndian)
	if err != nil {
		return nil, err
	}

	for _, s := range exe.Sections {
		obj.Sections = append(obj.Sections, Section{Name: s.Name, Addr: imageBase + uint64(s.VirtualAddress), Size: uint64(s.VirtualSize)})
	}

	for _, s := range exe.Symbols {
		if s.SectionNumber <= 0 || int(s.SectionNumber) > len(exe.Sections) || s.Name == "" {
			continue
		}
		sect := exe.Sections[s.SectionNumber-1]
		obj.Symbols = append(obj.Symbols, Symbol{
			Name: s.Name,
			Addr: imageBase + uint64(sect.VirtualAddress) + uint64(s.Value),
			Code: sect.Characteristics&pe.IMAGE_SCN_CNT_CODE != 0,
		})
	}
	return obj, nil
}
