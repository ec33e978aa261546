package dwarfsym

import (
	"debug/dwarf"
	"regexp"
	"sort"

	"github.com/go-delve/nativedbg/pkg/dwarf/unit"
	"github.com/go-delve/nativedbg/pkg/logflags"
	"github.com/go-delve/nativedbg/pkg/symbolfile"
)

// names returns the name and linkage name of the DIE at i, following
// DW_AT_specification and DW_AT_abstract_origin when the DIE has none.
func (s *SymbolFile) names(u *unit.Unit, i int) (name, linkage string) {
	for depth := 0; depth < 4 && u != nil; depth++ {
		if name == "" {
			name = u.Name(i)
		}
		if linkage == "" {
			linkage = u.LinkageName(i)
		}
		if name != "" && linkage != "" {
			return
		}
		next, j, ok := s.resolveRef(u, i, dwarf.AttrSpecification)
		if !ok {
			next, j, ok = s.resolveRef(u, i, dwarf.AttrAbstractOrigin)
		}
		if !ok {
			return
		}
		u, i = next, j
	}
	return
}

// declDIE returns the DIE that carries the declaration context of the DIE
// at i: its specification or abstract origin if it has one.
func (s *SymbolFile) declDIE(u *unit.Unit, i int) (*unit.Unit, int) {
	if du, j, ok := s.resolveRef(u, i, dwarf.AttrSpecification); ok {
		return du, j
	}
	if du, j, ok := s.resolveRef(u, i, dwarf.AttrAbstractOrigin); ok {
		return s.declDIE(du, j)
	}
	return u, i
}

// ParseFunctionFromDWARF builds the function described by the subprogram
// DIE at i and adds it to cu. Declarations, functions without code and
// functions outside of every section of the object file are skipped.
func (s *SymbolFile) ParseFunctionFromDWARF(cu *symbolfile.CompileUnit, u *unit.Unit, i int) *symbolfile.Function {
	d := u.DIE(i)
	if d == nil || d.Tag != dwarf.TagSubprogram {
		return nil
	}
	ranges, err := u.Ranges(i)
	if err != nil {
		logflags.DWARFLogger().Errorf("ranges of DIE at %#x: %v", d.Offset, err)
		return nil
	}
	if len(ranges) == 0 {
		return nil
	}
	low, high := ranges[0].Low, ranges[0].High
	for _, r := range ranges[1:] {
		if r.Low < low {
			low = r.Low
		}
		if r.High > high {
			high = r.High
		}
	}
	if low > high {
		return nil
	}
	if s.Obj == nil {
		return nil
	}
	sect, ok := s.Obj.SectionContaining(low)
	if !ok {
		logflags.DWARFLogger().Debugf("function at %#x is not in any section", low)
		return nil
	}

	name, mangled := s.names(u, i)
	fn := &symbolfile.Function{
		ID:          d.Offset,
		Name:        name,
		MangledName: mangled,
		Range:       symbolfile.Range{Low: low, High: high},
		Section:     sect.Name,
		CU:          cu,
	}
	if du, di := s.declDIE(u, i); du == u {
		fn.Decl = declaration(du, di, cu)
	}
	if !fn.Decl.IsValid() {
		fn.Decl = declaration(u, i, cu)
	}
	if fb, ok := u.Val(i, dwarf.AttrFrameBase).([]byte); ok {
		fn.FrameBase = fb
	}
	for _, c := range u.Children(i) {
		if u.DIE(c).Tag == dwarf.TagThrownType {
			fn.CanThrow = true
			break
		}
	}
	return fn
}

// inlinedFunction builds the function instance of the inlined_subroutine
// DIE at i.
func (s *SymbolFile) inlinedFunction(cu *symbolfile.CompileUnit, u *unit.Unit, i int) *symbolfile.Function {
	ranges, err := u.Ranges(i)
	if err != nil || len(ranges) == 0 {
		return nil
	}
	name, mangled := s.names(u, i)
	fn := &symbolfile.Function{
		ID:          u.DIE(i).Offset,
		Name:        name,
		MangledName: mangled,
		Range:       symbolfile.Range{Low: ranges[0].Low, High: ranges[len(ranges)-1].High},
		Inlined:     true,
		CU:          cu,
	}
	if s.Obj != nil {
		if sect, ok := s.Obj.SectionContaining(fn.Range.Low); ok {
			fn.Section = sect.Name
		}
	}
	if f, ok := u.Uint(i, dwarf.AttrCallFile); ok && cu != nil && f < uint64(len(cu.SupportFiles)) {
		fn.Decl.File = cu.SupportFiles[f]
	}
	if l, ok := u.Uint(i, dwarf.AttrCallLine); ok {
		fn.Decl.Line = int(l)
	}
	return fn
}

// function returns the parsed function for the index entry e.
func (s *SymbolFile) function(e dieLoc) *symbolfile.Function {
	u := s.info.UnitAtIndex(e.unit)
	cu := s.unitCU(u)
	if cu == nil {
		return nil
	}
	if u.DIE(e.die).Tag == dwarf.TagInlinedSubroutine {
		return s.inlinedFunction(cu, u, e.die)
	}
	return s.funcs[u.DIE(e.die).Offset]
}

func (s *SymbolFile) FindFunctions(name string, mask symbolfile.NameTypeMask, includeInlines bool, dst []*symbolfile.Function) []*symbolfile.Function {
	s.Mutex.AssertHeld()
	idx := s.lookupIndex()
	seen := map[uint64]bool{}
	add := func(locs []dieLoc) {
		for _, e := range locs {
			fn := s.function(e)
			if fn == nil || seen[fn.ID] {
				continue
			}
			seen[fn.ID] = true
			dst = append(dst, fn)
		}
	}
	if mask&symbolfile.NameTypeFull != 0 {
		add(idx.fullFuncs[name])
	}
	if mask&symbolfile.NameTypeBase != 0 {
		add(idx.baseFuncs[name])
	}
	if mask&symbolfile.NameTypeMethod != 0 {
		add(idx.methods[name])
	}
	if includeInlines {
		add(idx.inlined[name])
	}
	return dst
}

func (s *SymbolFile) FindFunctionsRegexp(re *regexp.Regexp, includeInlines bool, dst []*symbolfile.Function) []*symbolfile.Function {
	s.Mutex.AssertHeld()
	for i := 0; i < s.NumCompileUnits(); i++ {
		cu, err := s.ParseCompileUnitAtIndex(i)
		if err != nil {
			continue
		}
		for _, fn := range cu.Functions {
			if re.MatchString(fn.Name) || (fn.MangledName != "" && re.MatchString(fn.MangledName)) {
				dst = append(dst, fn)
			}
		}
	}
	if includeInlines {
		inlined := s.lookupIndex().inlined
		names := make([]string, 0, len(inlined))
		for name := range inlined {
			if re.MatchString(name) {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		for _, name := range names {
			for _, e := range inlined[name] {
				if fn := s.function(e); fn != nil {
					dst = append(dst, fn)
				}
			}
		}
	}
	return dst
}

// GetMangledNamesForFunction returns the linkage names of the functions
// whose scope qualified name is scopeQualifiedName.
func (s *SymbolFile) GetMangledNamesForFunction(scopeQualifiedName string) []string {
	s.Mutex.AssertHeld()
	var r []string
	seen := map[string]bool{}
	for _, e := range s.lookupIndex().fullFuncs[scopeQualifiedName] {
		u := s.info.UnitAtIndex(e.unit)
		if _, linkage := s.names(u, e.die); linkage != "" && linkage != scopeQualifiedName && !seen[linkage] {
			seen[linkage] = true
			r = append(r, linkage)
		}
	}
	return r
}
