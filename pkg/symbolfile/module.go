package symbolfile

import (
	"regexp"

	"github.com/go-delve/nativedbg/pkg/completion"
	"github.com/go-delve/nativedbg/pkg/logflags"
	"github.com/go-delve/nativedbg/pkg/objfile"
)

// Module is a loaded object file and its symbol file backend. Its methods
// are safe for concurrent use. Each method takes the module mutex once and
// the mutex is not recursive: a Module method must not be called while the
// mutex is held, from a backend or from a Lock/Unlock section, or it
// deadlocks.
type Module struct {
	Obj *objfile.File

	mu      ModuleMutex
	backend Backend
	cus     CompUnits
}

// NewModule selects the backend for obj. The returned module has no
// backend if no registered backend can read obj.
func NewModule(obj *objfile.File) *Module {
	m := &Module{Obj: obj}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backend = FindPlugin(obj, &m.mu)
	return m
}

// Path returns the path of the object file.
func (m *Module) Path() string { return m.Obj.Path }

// BackendName returns the name of the selected backend, or the empty
// string.
func (m *Module) BackendName() string {
	if m.backend == nil {
		return ""
	}
	return m.backend.Name()
}

// Abilities returns the abilities of the selected backend.
func (m *Module) Abilities() Abilities {
	if m.backend == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backend.CalculateAbilities()
}

// Close releases the object file.
func (m *Module) Close() error {
	return m.Obj.Close()
}

func (m *Module) numCompileUnits() int {
	if m.backend == nil {
		return 0
	}
	m.cus.Resize(m.backend.NumCompileUnits())
	return m.cus.Len()
}

// NumCompileUnits returns the number of compile units.
func (m *Module) NumCompileUnits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.numCompileUnits()
}

func (m *Module) compileUnitAtIndex(idx int) (*CompileUnit, error) {
	m.numCompileUnits()
	if cu := m.cus.Get(idx); cu != nil {
		return cu, nil
	}
	cu, err := m.backend.ParseCompileUnitAtIndex(idx)
	if err != nil || cu == nil {
		return nil, err
	}
	if err := m.cus.Set(idx, cu); err != nil {
		return nil, err
	}
	return cu, nil
}

// CompileUnitAtIndex returns the compile unit at idx, parsing it on the
// first call.
func (m *Module) CompileUnitAtIndex(idx int) (*CompileUnit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.compileUnitAtIndex(idx)
}

// CompileUnits parses and returns every compile unit. Units that fail to
// parse are logged and skipped.
func (m *Module) CompileUnits() []*CompileUnit {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.numCompileUnits()
	r := make([]*CompileUnit, 0, n)
	for i := 0; i < n; i++ {
		cu, err := m.compileUnitAtIndex(i)
		if err != nil {
			logflags.SymbolsLogger().Errorf("%s: compile unit %d: %v", m.Obj.Path, i, err)
			continue
		}
		if cu != nil {
			r = append(r, cu)
		}
	}
	return r
}

// ResolveSymbolContext returns the locations of file:line. Inlined
// locations are searched when checkInlines is true or the backend requires
// it.
func (m *Module) ResolveSymbolContext(file string, line int, checkInlines bool) []SymbolContext {
	if m.backend == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	checkInlines = checkInlines || m.backend.ForceInlineSourceFileCheck()
	return m.backend.ResolveSymbolContext(file, line, checkInlines, nil)
}

// SetLimitSourceFileRange forwards to the backend.
func (m *Module) SetLimitSourceFileRange(file string, firstLine, lastLine int) bool {
	if m.backend == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backend.SetLimitSourceFileRange(file, firstLine, lastLine)
}

func (m *Module) FindFunctions(name string, mask NameTypeMask, includeInlines bool) []*Function {
	if m.backend == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backend.FindFunctions(name, mask, includeInlines, nil)
}

func (m *Module) FindFunctionsRegexp(re *regexp.Regexp, includeInlines bool) []*Function {
	if m.backend == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backend.FindFunctionsRegexp(re, includeInlines, nil)
}

func (m *Module) FindGlobalVariables(name string, max int) []*Variable {
	if m.backend == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backend.FindGlobalVariables(name, max, nil)
}

func (m *Module) FindGlobalVariablesRegexp(re *regexp.Regexp, max int) []*Variable {
	if m.backend == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backend.FindGlobalVariablesRegexp(re, max, nil)
}

func (m *Module) FindTypes(name, parentDecl string, max int) []*Type {
	if m.backend == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backend.FindTypes(name, parentDecl, max, nil)
}

func (m *Module) FindTypesByContext(ctx []CompilerContext) []*Type {
	if m.backend == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backend.FindTypesByContext(ctx, nil)
}

func (m *Module) GetMangledNamesForFunction(scopeQualifiedName string) []string {
	if m.backend == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backend.GetMangledNamesForFunction(scopeQualifiedName)
}

// LookupSymbol returns the symbol table entry called name.
func (m *Module) LookupSymbol(name string) (*Symbol, bool) {
	sym, ok := m.Obj.LookupSymbol(name)
	if !ok {
		return nil, false
	}
	return &Symbol{Name: sym.Name, Addr: sym.Addr, Size: sym.Size, Code: sym.Code}, true
}

// SymbolAt returns the symbol table entry containing addr.
func (m *Module) SymbolAt(addr uint64) (*Symbol, bool) {
	sym, ok := m.Obj.SymbolAt(addr)
	if !ok {
		return nil, false
	}
	return &Symbol{Name: sym.Name, Addr: sym.Addr, Size: sym.Size, Code: sym.Code}, true
}

// CompletionInfo describes the module to the completers.
func (m *Module) CompletionInfo() completion.ModuleInfo {
	info := completion.ModuleInfo{Path: m.Obj.Path}
	for _, cu := range m.CompileUnits() {
		info.CompileUnits = append(info.CompileUnits, cu.Name)
		for _, fn := range cu.Functions {
			info.Functions = append(info.Functions, fn.DisplayName())
		}
	}
	for i := range m.Obj.Symbols {
		info.Symbols = append(info.Symbols, m.Obj.Symbols[i].Name)
	}
	return info
}
