package dwarfsym

import (
	"debug/dwarf"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/go-delve/nativedbg/pkg/dwarf/unit"
	"github.com/go-delve/nativedbg/pkg/symbolfile"
)

type dieLoc struct {
	unit, die int
}

// nameIndex maps names to the DIEs that define them.
type nameIndex struct {
	// fullFuncs is keyed by qualified and linkage names.
	fullFuncs map[string][]dieLoc
	baseFuncs map[string][]dieLoc
	methods   map[string][]dieLoc
	inlined   map[string][]dieLoc
	// globals is keyed by name, qualified name and linkage name.
	globals map[string][]dieLoc
	types   map[string][]dieLoc
}

func (s *SymbolFile) lookupIndex() *nameIndex {
	if s.index != nil {
		return s.index
	}
	idx := &nameIndex{
		fullFuncs: map[string][]dieLoc{},
		baseFuncs: map[string][]dieLoc{},
		methods:   map[string][]dieLoc{},
		inlined:   map[string][]dieLoc{},
		globals:   map[string][]dieLoc{},
		types:     map[string][]dieLoc{},
	}
	s.index = idx
	for ui := 0; ui < s.NumCompileUnits(); ui++ {
		u := s.info.UnitAtIndex(ui)
		if err := u.ExtractDIEs(); err != nil {
			continue
		}
		for i, d := range u.DIEs() {
			s.indexDIE(idx, u, i, &d)
		}
	}
	return idx
}

func addName(m map[string][]dieLoc, name string, loc dieLoc) {
	if name == "" {
		return
	}
	locs := m[name]
	if len(locs) > 0 && locs[len(locs)-1] == loc {
		return
	}
	m[name] = append(locs, loc)
}

func qualify(q, name string) string {
	if q == "" {
		return name
	}
	return q + "::" + name
}

func (s *SymbolFile) indexDIE(idx *nameIndex, u *unit.Unit, i int, d *unit.DIE) {
	loc := dieLoc{u.Index, i}
	switch d.Tag {
	case dwarf.TagSubprogram:
		if u.Flag(i, dwarf.AttrDeclaration) {
			return
		}
		if _, ok := u.Uint(i, dwarf.AttrLowpc); !ok {
			if _, ok := u.Uint(i, dwarf.AttrRanges); !ok {
				return
			}
		}
		name, linkage := s.names(u, i)
		du, di := s.declDIE(u, i)
		q := qualifier(du, di)
		addName(idx.fullFuncs, qualify(q, name), loc)
		addName(idx.fullFuncs, linkage, loc)
		addName(idx.baseFuncs, name, loc)
		if p := du.DIE(int(du.DIE(di).Parent)); p != nil {
			switch p.Tag {
			case dwarf.TagStructType, dwarf.TagClassType, dwarf.TagUnionType:
				addName(idx.methods, name, loc)
			}
		}

	case dwarf.TagInlinedSubroutine:
		name, _ := s.names(u, i)
		addName(idx.inlined, name, loc)

	case dwarf.TagVariable:
		p := u.DIE(int(d.Parent))
		if p == nil || (p.Tag != dwarf.TagCompileUnit && p.Tag != dwarf.TagNamespace && p.Tag != dwarf.TagPartialUnit) {
			return
		}
		if u.Flag(i, dwarf.AttrDeclaration) {
			return
		}
		name, linkage := s.names(u, i)
		du, di := s.declDIE(u, i)
		addName(idx.globals, name, loc)
		if q := qualifier(du, di); q != "" {
			addName(idx.globals, qualify(q, name), loc)
		}
		addName(idx.globals, linkage, loc)

	case dwarf.TagBaseType, dwarf.TagStructType, dwarf.TagClassType, dwarf.TagUnionType,
		dwarf.TagEnumerationType, dwarf.TagTypedef, dwarf.TagUnspecifiedType:
		if u.Flag(i, dwarf.AttrDeclaration) {
			return
		}
		addName(idx.types, u.Name(i), loc)
	}
}

// TypeNames returns the sorted names of the types defined by the file.
func (s *SymbolFile) TypeNames() []string {
	s.Mutex.AssertHeld()
	idx := s.lookupIndex()
	r := make([]string, 0, len(idx.types))
	for name := range idx.types {
		r = append(r, name)
	}
	sort.Strings(r)
	return r
}

func (s *SymbolFile) variable(e dieLoc) *symbolfile.Variable {
	u := s.info.UnitAtIndex(e.unit)
	cu := s.unitCU(u)
	name, linkage := s.names(u, e.die)
	v := &symbolfile.Variable{
		ID:          u.DIE(e.die).Offset,
		Name:        name,
		MangledName: linkage,
		External:    u.Flag(e.die, dwarf.AttrExternal),
		Decl:        declaration(u, e.die, cu),
		CU:          cu,
	}
	if loc, ok := u.Val(e.die, dwarf.AttrLocation).([]byte); ok {
		v.Location = loc
	}
	if !v.External {
		if du, di := s.declDIE(u, e.die); du != u || di != e.die {
			v.External = du.Flag(di, dwarf.AttrExternal)
		}
	}
	return v
}

func (s *SymbolFile) FindGlobalVariables(name string, max int, dst []*symbolfile.Variable) []*symbolfile.Variable {
	s.Mutex.AssertHeld()
	n := 0
	for _, e := range s.lookupIndex().globals[name] {
		if max > 0 && n >= max {
			break
		}
		dst = append(dst, s.variable(e))
		n++
	}
	return dst
}

func (s *SymbolFile) FindGlobalVariablesRegexp(re *regexp.Regexp, max int, dst []*symbolfile.Variable) []*symbolfile.Variable {
	s.Mutex.AssertHeld()
	idx := s.lookupIndex()
	names := make([]string, 0, len(idx.globals))
	for name := range idx.globals {
		if re.MatchString(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	seen := map[dieLoc]bool{}
	n := 0
	for _, name := range names {
		for _, e := range idx.globals[name] {
			if max > 0 && n >= max {
				return dst
			}
			if seen[e] {
				continue
			}
			seen[e] = true
			dst = append(dst, s.variable(e))
			n++
		}
	}
	return dst
}

// FindTypes returns the types called name. Name may be qualified with
// "::", parentDecl restricts the search to types declared inside it.
func (s *SymbolFile) FindTypes(name, parentDecl string, max int, dst []*symbolfile.Type) []*symbolfile.Type {
	s.Mutex.AssertHeld()
	if i := strings.LastIndex(name, "::"); i >= 0 && parentDecl == "" {
		parentDecl, name = name[:i], name[i+2:]
	}
	n := 0
	for _, e := range s.lookupIndex().types[name] {
		if max > 0 && n >= max {
			break
		}
		u := s.info.UnitAtIndex(e.unit)
		if parentDecl != "" && qualifier(u, e.die) != parentDecl {
			continue
		}
		if t := s.ParseTypeFromDWARF(u, e.die); t != nil {
			dst = append(dst, t)
			n++
		}
	}
	return dst
}

// FindTypesByContext returns the types whose declaration context matches
// ctx, component kinds are compared as masks.
func (s *SymbolFile) FindTypesByContext(ctx []symbolfile.CompilerContext, dst []*symbolfile.Type) []*symbolfile.Type {
	s.Mutex.AssertHeld()
	if len(ctx) == 0 {
		return dst
	}
	for _, e := range s.lookupIndex().types[ctx[len(ctx)-1].Name] {
		u := s.info.UnitAtIndex(e.unit)
		if !contextMatches(ctx, s.declContext(u, e.die)) {
			continue
		}
		if t := s.ParseTypeFromDWARF(u, e.die); t != nil {
			dst = append(dst, t)
		}
	}
	return dst
}

func contextMatches(want, have []symbolfile.CompilerContext) bool {
	if len(want) != len(have) {
		return false
	}
	for i := range want {
		if want[i].Kind&have[i].Kind == 0 || want[i].Name != have[i].Name {
			return false
		}
	}
	return true
}

// sameFile returns true if path p names file. A file without directory
// matches any path with the same base name, otherwise file must be a
// suffix of p on a path component boundary.
func sameFile(p, file string) bool {
	if p == "" || file == "" {
		return false
	}
	if !strings.Contains(file, "/") {
		return path.Base(p) == file
	}
	p, file = path.Clean(p), path.Clean(file)
	return p == file || strings.HasSuffix(p, "/"+strings.TrimPrefix(file, "/"))
}

// ResolveSymbolContext returns a symbol context for every address
// generated for file:line. When no address is generated for line, the
// closest following line with code is used. Compile units whose primary
// file is not file are only searched when checkInlines is set.
func (s *SymbolFile) ResolveSymbolContext(file string, line int, checkInlines bool, dst []symbolfile.SymbolContext) []symbolfile.SymbolContext {
	s.Mutex.AssertHeld()
	for i := 0; i < s.NumCompileUnits(); i++ {
		cu, err := s.ParseCompileUnitAtIndex(i)
		if err != nil {
			continue
		}
		if !checkInlines && !sameFile(cu.Name, file) {
			continue
		}
		best := -1
		for _, le := range cu.LineTable {
			if !sameFile(le.File, file) || le.Line < line {
				continue
			}
			if best < 0 || le.Line < best {
				best = le.Line
			}
		}
		if best < 0 {
			continue
		}
		seen := map[uint64]bool{}
		for _, le := range cu.LineTable {
			if le.Line != best || !sameFile(le.File, file) || seen[le.Addr] {
				continue
			}
			seen[le.Addr] = true
			sc := symbolfile.SymbolContext{CU: cu, Function: functionContaining(cu, le.Addr), Line: le}
			if s.SymbolContextShouldBeExcluded(&sc, best) {
				continue
			}
			dst = append(dst, sc)
		}
	}
	return dst
}

func functionContaining(cu *symbolfile.CompileUnit, addr uint64) *symbolfile.Function {
	for _, fn := range cu.Functions {
		if fn.Range.Low <= addr && addr < fn.Range.High {
			return fn
		}
	}
	return nil
}
