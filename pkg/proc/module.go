package proc

import (
	"path/filepath"

	"github.com/go-delve/nativedbg/pkg/objfile"
)

// Module is an object file loaded in the address space of the target.
type Module struct {
	Path string
	// Base is the address the module was loaded at.
	Base uint64
	Size uint64
	// Bias is the difference between the load address of the module and
	// the addresses of its symbol file.
	Bias uint64
	// Obj is the symbol file of the module, nil if it could not be
	// opened.
	Obj *objfile.File
}

// BaseName returns the last element of the path of the module.
func (m *Module) BaseName() string {
	return filepath.Base(filepath.FromSlash(m.Path))
}

func (m *Module) IsExecutable() bool {
	return m.Obj != nil && m.Obj.Type == objfile.TypeExecutable
}

// Contains returns true if addr is inside the loaded image of the module.
func (m *Module) Contains(addr uint64) bool {
	return m.Base <= addr && addr-m.Base < m.Size
}

// FindSymbol returns the load address of the symbol called name.
func (m *Module) FindSymbol(name string) (uint64, bool) {
	if m.Obj == nil {
		return 0, false
	}
	sym, ok := m.Obj.LookupSymbol(name)
	if !ok {
		return 0, false
	}
	return sym.Addr + m.Bias, true
}

// SymbolAt returns the symbol containing the load address addr.
func (m *Module) SymbolAt(addr uint64) (*objfile.Symbol, bool) {
	if m.Obj == nil {
		return nil, false
	}
	return m.Obj.SymbolAt(addr - m.Bias)
}
