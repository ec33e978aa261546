// Package dwarfsym is the symbol file backend that reads DWARF debug
// information. Types are built by the LanguageContext registered for the
// language of their compile unit.
package dwarfsym

import (
	"debug/dwarf"
	"fmt"
	"path"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/go-delve/nativedbg/pkg/dwarf/debuginfo"
	"github.com/go-delve/nativedbg/pkg/dwarf/line"
	"github.com/go-delve/nativedbg/pkg/dwarf/macro"
	"github.com/go-delve/nativedbg/pkg/dwarf/unit"
	"github.com/go-delve/nativedbg/pkg/logflags"
	"github.com/go-delve/nativedbg/pkg/objfile"
	"github.com/go-delve/nativedbg/pkg/settings"
	"github.com/go-delve/nativedbg/pkg/symbolfile"
)

func init() {
	symbolfile.Register("dwarf", New)
}

// DIEIsBeingParsed marks a DIE whose type is being built, it breaks
// reference cycles.
var DIEIsBeingParsed = &symbolfile.Type{Name: "<being parsed>"}

var languageContexts = struct {
	mu sync.Mutex
	m  map[symbolfile.Language]LanguageContext
}{m: map[symbolfile.Language]LanguageContext{}}

// RegisterLanguageContext sets the context used to build the types of
// units written in lang by every symbol file created afterwards.
func RegisterLanguageContext(lang symbolfile.Language, ctx LanguageContext) {
	languageContexts.mu.Lock()
	defer languageContexts.mu.Unlock()
	languageContexts.m[lang] = ctx
}

// TypeFinder is a module searched for C and Objective-C types that are
// referenced but not defined by a symbol file.
type TypeFinder interface {
	FindTypesByContext(ctx []symbolfile.CompilerContext) []*symbolfile.Type
}

// SymbolFile reads the DWARF sections of an object file.
type SymbolFile struct {
	symbolfile.Base

	info  *debuginfo.DebugInfo
	langs map[symbolfile.Language]LanguageContext

	// ExternalModules are searched for C types before this file.
	ExternalModules []TypeFinder

	units      []*symbolfile.CompileUnit
	lineTables map[int]*line.Table
	funcs      map[uint64]*symbolfile.Function
	dieToType  map[uint64]*symbolfile.Type
	// typeCache maps mangled names to types.
	typeCache *lru.Cache

	index *nameIndex
}

// New returns the DWARF backend for obj.
func New(obj *objfile.File, mu *symbolfile.ModuleMutex) symbolfile.Backend {
	s := &SymbolFile{
		Base:       symbolfile.NewBase(obj, mu),
		langs:      map[symbolfile.Language]LanguageContext{},
		lineTables: map[int]*line.Table{},
		funcs:      map[uint64]*symbolfile.Function{},
		dieToType:  map[uint64]*symbolfile.Type{},
	}
	languageContexts.mu.Lock()
	for lang, ctx := range languageContexts.m {
		s.langs[lang] = ctx
	}
	languageContexts.mu.Unlock()
	if obj != nil && obj.DWARF != nil {
		s.info = debuginfo.New(obj.DWARF)
	}
	return s
}

func (s *SymbolFile) Name() string { return "dwarf" }

// Info returns the units of .debug_info, nil if the object has no DWARF.
func (s *SymbolFile) Info() *debuginfo.DebugInfo { return s.info }

// SetLanguageContext overrides the context used for units written in lang.
func (s *SymbolFile) SetLanguageContext(lang symbolfile.Language, ctx LanguageContext) {
	s.langs[lang] = ctx
}

func (s *SymbolFile) languageContext(lang symbolfile.Language) LanguageContext {
	if ctx, ok := s.langs[lang]; ok {
		return ctx
	}
	return cContext{}
}

func (s *SymbolFile) CalculateAbilities() symbolfile.Abilities {
	if s.info == nil {
		return 0
	}
	sec := s.info.Sections()
	if len(sec.Info) == 0 || len(sec.Abbrev) == 0 {
		return 0
	}
	a := symbolfile.CompileUnits | symbolfile.Functions | symbolfile.Blocks |
		symbolfile.GlobalVariables | symbolfile.LocalVariables | symbolfile.VariableTypes
	if len(sec.Line) > 0 {
		a |= symbolfile.LineTables
	}
	return a
}

func (s *SymbolFile) InitializeObject() {
	size := int(settings.Global().GetUInt(settings.SymbolsTypeCacheSize, 4096))
	if size <= 0 {
		size = 4096
	}
	s.typeCache, _ = lru.New(size)
	if s.info != nil {
		s.info.ParseUnitHeaders()
	}
}

func (s *SymbolFile) NumCompileUnits() int {
	s.Mutex.AssertHeld()
	if s.info == nil {
		return 0
	}
	n := s.info.NumUnits()
	if len(s.units) < n {
		s.units = append(s.units, make([]*symbolfile.CompileUnit, n-len(s.units))...)
	}
	return n
}

// ParseCompileUnitAtIndex reads the unit DIE, the line table, the macros
// and the functions of the unit at idx. The result is memoized.
func (s *SymbolFile) ParseCompileUnitAtIndex(idx int) (*symbolfile.CompileUnit, error) {
	s.Mutex.AssertHeld()
	if idx < 0 || idx >= s.NumCompileUnits() {
		return nil, fmt.Errorf("no compile unit at index %d", idx)
	}
	if cu := s.units[idx]; cu != nil {
		return cu, nil
	}
	u := s.info.UnitAtIndex(idx)
	if err := u.ExtractDIEs(); err != nil {
		return nil, fmt.Errorf("compile unit at %#x: %w", u.Offset, err)
	}
	if u.NumDIEs() == 0 {
		return nil, fmt.Errorf("compile unit at %#x is empty", u.Offset)
	}
	sec := u.Sections()
	log := logflags.DWARFLogger()

	cu := &symbolfile.CompileUnit{ID: u.Offset, Index: idx, Name: u.Name(0)}
	cu.CompDir, _ = u.String(0, dwarf.AttrCompDir)
	cu.Producer, _ = u.String(0, dwarf.AttrProducer)
	if lang, ok := u.Uint(0, dwarf.AttrLanguage); ok {
		cu.Language = symbolfile.Language(lang)
	}
	if cu.Name != "" && cu.CompDir != "" && !path.IsAbs(cu.Name) {
		cu.Name = path.Join(cu.CompDir, cu.Name)
	}

	if off, ok := u.Uint(0, dwarf.AttrStmtList); ok && len(sec.Line) > 0 {
		tbl, err := line.Parse(cu.CompDir, sec.Line, off, sec.LineStr, int(u.AddrSize))
		if err != nil {
			log.Errorf("%s: line table at %#x: %v", cu.Name, off, err)
		} else {
			tbl.Logf = log.Debugf
			s.lineTables[idx] = tbl
			cu.SupportFiles = tbl.SupportFiles()
			for _, row := range tbl.Rows() {
				if row.EndSequence {
					continue
				}
				cu.LineTable = append(cu.LineTable, symbolfile.LineEntry{Addr: row.Address, File: row.File, Line: row.Line, Column: int(row.Column), IsStmt: row.IsStmt})
			}
		}
	}

	cu.Macros = s.parseMacros(u)

	for i := range u.DIEs() {
		if u.DIE(i).Tag != dwarf.TagSubprogram {
			continue
		}
		if fn := s.ParseFunctionFromDWARF(cu, u, i); fn != nil {
			cu.Functions = append(cu.Functions, fn)
			s.funcs[fn.ID] = fn
		}
	}

	s.units[idx] = cu
	log.Debugf("parsed compile unit %s: %d functions, %d line entries", cu.Name, len(cu.Functions), len(cu.LineTable))
	return cu, nil
}

func (s *SymbolFile) parseMacros(u *unit.Unit) *macro.List {
	sec := u.Sections()
	var (
		l   *macro.List
		err error
	)
	if off, ok := u.Uint(0, dwarf.AttrMacros); ok {
		l, err = macro.ParseMacro(sec.Macro, off, sec.Str)
	} else if off, ok := u.Uint(0, unit.AttrGNUMacros); ok {
		l, err = macro.ParseMacro(sec.Macro, off, sec.Str)
	} else if off, ok := u.Uint(0, dwarf.AttrMacroInfo); ok {
		l, err = macro.ParseMacinfo(sec.Macinfo, off)
	} else {
		return nil
	}
	if err != nil {
		logflags.DWARFLogger().Errorf("macros of unit at %#x: %v", u.Offset, err)
		return nil
	}
	return l
}

// CompileUnitSupportFiles returns the file table of cu.
func (s *SymbolFile) CompileUnitSupportFiles(cu *symbolfile.CompileUnit) []string {
	return cu.SupportFiles
}

// unitCU returns the parsed compile unit of u, or nil.
func (s *SymbolFile) unitCU(u *unit.Unit) *symbolfile.CompileUnit {
	cu, err := s.ParseCompileUnitAtIndex(u.Index)
	if err != nil {
		return nil
	}
	return cu
}

// resolveRef returns the DIE referenced by attr of the DIE at i.
func (s *SymbolFile) resolveRef(u *unit.Unit, i int, attr dwarf.Attr) (*unit.Unit, int, bool) {
	off, ok := u.RefVal(i, attr)
	if !ok {
		return nil, -1, false
	}
	if u.ContainsDIEOffset(off) {
		j, ok := u.IndexOf(off)
		return u, j, ok
	}
	return s.info.DIEForOffset(off)
}

// declaration reads DW_AT_decl_file, DW_AT_decl_line and DW_AT_decl_column.
func declaration(u *unit.Unit, i int, cu *symbolfile.CompileUnit) symbolfile.Declaration {
	var decl symbolfile.Declaration
	if f, ok := u.Uint(i, dwarf.AttrDeclFile); ok && cu != nil && f < uint64(len(cu.SupportFiles)) {
		decl.File = cu.SupportFiles[f]
	}
	if l, ok := u.Uint(i, dwarf.AttrDeclLine); ok {
		decl.Line = int(l)
	}
	if c, ok := u.Uint(i, dwarf.AttrDeclColumn); ok {
		decl.Column = int(c)
	}
	return decl
}
