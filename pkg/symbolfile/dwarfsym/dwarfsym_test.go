package dwarfsym

import (
	"debug/dwarf"
	"regexp"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/go-delve/nativedbg/pkg/dwarf/dwarfbuilder"
	"github.com/go-delve/nativedbg/pkg/dwarf/unit"
	"github.com/go-delve/nativedbg/pkg/objfile"
	"github.com/go-delve/nativedbg/pkg/symbolfile"
)

var textSection = []objfile.Section{{Name: ".text", Addr: 0x1000, Size: 0x1000}}

// macinfo defines FOO inside util.h.
var macinfo = []byte{
	3, 0, 2, // start_file line 0 file 2
	1, 1, 'F', 'O', 'O', ' ', '1', 0, // define FOO 1
	4, // end_file
	0,
}

// buildProgram returns a C unit and a C++ unit:
//
//	main.c: int counter; struct point; typedef struct point point_t;
//	        typedef int *intptr_t; struct opaque {};
//	        main [0x1000, 0x1030), helper [0x1040, 0x1050), far [0x9000, 0x9010)
//	ns.cpp: namespace ns { struct Inner; void run(); struct S { void get(); }; }
func buildProgram(t *testing.T) *objfile.File {
	b := dwarfbuilder.NewEmpty()
	lineOff := b.AddLineTable([]string{"/src"}, []dwarfbuilder.LineFile{{Name: "main.c", DirIdx: 1}, {Name: "util.h", DirIdx: 1}}, []dwarfbuilder.LineRow{
		{Address: 0x1000, File: 1, Line: 10},
		{Address: 0x1010, File: 1, Line: 12},
		{Address: 0x1020, File: 2, Line: 3},
		{Address: 0x1040, File: 1, Line: 20},
	})

	b.BeginUnit(4, unit.UnitTypeCompile, "main.c", dwarfbuilder.LangC)
	b.Attr(dwarf.AttrCompDir, "/src")
	b.Attr(dwarf.AttrStmtList, lineOff)
	b.Attr(dwarf.AttrMacroInfo, dwarfbuilder.SecOffset(0))
	intOff := b.AddBaseType("int", dwarfbuilder.DW_ATE_signed, 4)
	b.TagOpen(dwarf.TagVariable, "counter")
	b.Attr(dwarf.AttrType, intOff)
	b.Attr(dwarf.AttrExternal, dwarfbuilder.Flag(true))
	b.Attr(dwarf.AttrLocation, []byte{0x03, 0x00, 0x30, 0, 0, 0, 0, 0, 0})
	b.TagClose()
	pointOff := b.AddStructType("point", 8)
	b.AddMember("x", intOff, []byte{0x23, 0})
	b.AddMember("y", intOff, []byte{0x23, 4})
	b.TagClose()
	b.AddTypedef("point_t", pointOff)
	b.AddTypedef("intptr_t", b.AddPointerType("", intOff))
	b.AddStructType("opaque", 0)
	b.SetHasChildren()
	b.TagClose()
	b.AddSubprogram("main", 0x1000, 0x1030)
	b.Attr(dwarf.AttrDeclFile, uint8(1))
	b.Attr(dwarf.AttrDeclLine, uint8(9))
	b.Attr(dwarf.AttrFrameBase, []byte{0x56})
	b.TagClose()
	b.AddSubprogram("helper", 0x1040, 0x1050)
	b.TagClose()
	b.AddSubprogram("far", 0x9000, 0x9010)
	b.TagClose()
	b.EndUnit()

	b.BeginUnit(4, unit.UnitTypeCompile, "ns.cpp", dwarfbuilder.LangCPlusPlus)
	b.TagOpen(dwarf.TagNamespace, "ns")
	b.AddStructType("Inner", 4)
	b.TagClose()
	b.AddSubprogram("run", 0x1100, 0x1120)
	b.Attr(dwarf.AttrLinkageName, "_ZN2ns3runEv")
	b.TagOpen(dwarf.TagThrownType, "")
	b.Attr(dwarf.AttrType, intOff)
	b.TagClose()
	b.TagClose()
	b.AddStructType("S", 1)
	b.AddSubprogram("get", 0x1200, 0x1210)
	b.TagClose()
	b.TagClose()
	b.TagClose()
	b.EndUnit()

	sec, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	sec.Macinfo = macinfo
	obj := objfile.NewJIT("a.out", sec, textSection, nil)
	obj.Type = objfile.TypeExecutable
	return obj
}

func TestSelectsDWARFBackend(t *testing.T) {
	m := symbolfile.NewModule(buildProgram(t))
	if m.BackendName() != "dwarf" {
		t.Fatalf("expected dwarf backend, got %q", m.BackendName())
	}
	if m.Abilities() != symbolfile.AllAbilities {
		t.Fatalf("unexpected abilities %#x", m.Abilities())
	}
	if n := m.NumCompileUnits(); n != 2 {
		t.Fatalf("expected 2 compile units, got %d", n)
	}

	m = symbolfile.NewModule(objfile.NewJIT("empty", nil, nil, nil))
	if m.BackendName() == "dwarf" {
		t.Fatalf("dwarf backend selected for an object without debug info")
	}
}

func TestParseCompileUnit(t *testing.T) {
	m := symbolfile.NewModule(buildProgram(t))
	cu, err := m.CompileUnitAtIndex(0)
	if err != nil {
		t.Fatal(err)
	}
	if cu.Name != "/src/main.c" || cu.CompDir != "/src" || cu.Language != symbolfile.LanguageC {
		t.Fatalf("unexpected compile unit %s %s %v", cu.Name, cu.CompDir, cu.Language)
	}
	if len(cu.SupportFiles) != 3 || !strings.HasSuffix(cu.SupportFiles[2], "util.h") {
		t.Fatalf("unexpected support files %q", cu.SupportFiles)
	}
	if len(cu.LineTable) != 4 {
		t.Fatalf("expected 4 line entries, got %d", len(cu.LineTable))
	}
	if cu.Macros.Len() != 3 {
		t.Fatalf("expected 3 macro entries, got %d", cu.Macros.Len())
	}

	var names []string
	for _, fn := range cu.Functions {
		names = append(names, fn.Name)
	}
	// far is outside of every section
	if diff := cmp.Diff([]string{"main", "helper"}, names); diff != "" {
		t.Fatalf("functions mismatch (-want +got):\n%s", diff)
	}
	main := cu.Functions[0]
	if main.Range != (symbolfile.Range{Low: 0x1000, High: 0x1030}) || main.Section != ".text" || main.CU != cu {
		t.Fatalf("unexpected main %#v", main)
	}
	if main.Decl.Line != 9 || !strings.HasSuffix(main.Decl.File, "main.c") {
		t.Fatalf("unexpected declaration %v", main.Decl)
	}
	if len(main.FrameBase) != 1 || main.CanThrow {
		t.Fatalf("unexpected frame base or throw flag %#v", main)
	}

	again, _ := m.CompileUnitAtIndex(0)
	if again != cu {
		t.Fatalf("compile unit parsed twice")
	}

	cpp, err := m.CompileUnitAtIndex(1)
	if err != nil {
		t.Fatal(err)
	}
	if cpp.Macros != nil || len(cpp.LineTable) != 0 {
		t.Fatalf("unit without line table or macros has them")
	}
	if len(cpp.Functions) != 2 || !cpp.Functions[0].CanThrow || cpp.Functions[0].MangledName != "_ZN2ns3runEv" {
		t.Fatalf("unexpected C++ functions %#v", cpp.Functions)
	}

	if _, err := m.CompileUnitAtIndex(5); err == nil {
		t.Fatalf("expected error for missing unit")
	}
}

func functionNames(fns []*symbolfile.Function) []string {
	r := []string{}
	for _, fn := range fns {
		r = append(r, fn.Name)
	}
	return r
}

func TestFindFunctions(t *testing.T) {
	m := symbolfile.NewModule(buildProgram(t))
	for _, tc := range []struct {
		name string
		mask symbolfile.NameTypeMask
		want []string
	}{
		{"main", symbolfile.NameTypeAuto, []string{"main"}},
		{"ns::run", symbolfile.NameTypeFull, []string{"run"}},
		{"_ZN2ns3runEv", symbolfile.NameTypeFull, []string{"run"}},
		{"run", symbolfile.NameTypeBase, []string{"run"}},
		{"run", symbolfile.NameTypeFull, []string{}},
		{"get", symbolfile.NameTypeMethod, []string{"get"}},
		{"ns::S::get", symbolfile.NameTypeAuto, []string{"get"}},
		{"far", symbolfile.NameTypeAuto, []string{}},
	} {
		got := functionNames(m.FindFunctions(tc.name, tc.mask, false))
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("FindFunctions(%q, %#x) mismatch (-want +got):\n%s", tc.name, tc.mask, diff)
		}
	}

	got := functionNames(m.FindFunctionsRegexp(regexp.MustCompile("^(main|helper)$"), false))
	if diff := cmp.Diff([]string{"main", "helper"}, got); diff != "" {
		t.Errorf("FindFunctionsRegexp mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"_ZN2ns3runEv"}, m.GetMangledNamesForFunction("ns::run")); diff != "" {
		t.Errorf("GetMangledNamesForFunction mismatch (-want +got):\n%s", diff)
	}
	if names := m.GetMangledNamesForFunction("main"); len(names) != 0 {
		t.Errorf("C function has mangled names %q", names)
	}
}

func TestFindInlinedFunctionsRegexp(t *testing.T) {
	b := dwarfbuilder.NewEmpty()
	b.BeginUnit(4, unit.UnitTypeCompile, "inl.c", dwarfbuilder.LangC)
	b.AddSubprogram("outer", 0x1000, 0x1100)
	for i, name := range []string{"zeta", "alpha", "mid", "beta"} {
		b.TagOpen(dwarf.TagInlinedSubroutine, name)
		b.Attr(dwarf.AttrLowpc, dwarfbuilder.Address(0x1010+uint64(i)*0x20))
		b.Attr(dwarf.AttrHighpc, dwarfbuilder.Address(0x1020+uint64(i)*0x20))
		b.TagClose()
	}
	b.TagClose()
	b.EndUnit()
	sec, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	m := symbolfile.NewModule(objfile.NewJIT("inl", sec, textSection, nil))

	re := regexp.MustCompile("^(zeta|alpha|mid|beta)$")
	if got := m.FindFunctionsRegexp(re, false); len(got) != 0 {
		t.Fatalf("inlined functions returned without includeInlines: %q", functionNames(got))
	}
	for i := 0; i < 5; i++ {
		got := m.FindFunctionsRegexp(re, true)
		if diff := cmp.Diff([]string{"alpha", "beta", "mid", "zeta"}, functionNames(got)); diff != "" {
			t.Fatalf("FindFunctionsRegexp mismatch (-want +got):\n%s", diff)
		}
		if !got[0].Inlined || got[0].Range.Low != 0x1030 {
			t.Fatalf("unexpected inlined instance %#v", got[0])
		}
	}
}

func TestResolveSymbolContext(t *testing.T) {
	m := symbolfile.NewModule(buildProgram(t))

	addrs := func(scs []symbolfile.SymbolContext) []uint64 {
		r := []uint64{}
		for _, sc := range scs {
			r = append(r, sc.Line.Addr)
		}
		return r
	}

	for _, tc := range []struct {
		file         string
		line         int
		checkInlines bool
		want         []uint64
	}{
		{"main.c", 12, false, []uint64{0x1010}},
		{"/src/main.c", 11, false, []uint64{0x1010}},
		{"main.c", 13, false, []uint64{0x1040}},
		{"main.c", 21, false, []uint64{}},
		{"util.h", 3, false, []uint64{}},
		{"util.h", 3, true, []uint64{0x1020}},
		{"other.c", 1, true, []uint64{}},
	} {
		got := addrs(m.ResolveSymbolContext(tc.file, tc.line, tc.checkInlines))
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("%s:%d inlines=%v mismatch (-want +got):\n%s", tc.file, tc.line, tc.checkInlines, diff)
		}
	}

	scs := m.ResolveSymbolContext("main.c", 20, false)
	if len(scs) != 1 || scs[0].Function == nil || scs[0].Function.Name != "helper" {
		t.Fatalf("expected a location inside helper, got %#v", scs)
	}

	if !m.SetLimitSourceFileRange(scs[0].Line.File, 1, 15) {
		t.Fatalf("limit range rejected")
	}
	if scs := m.ResolveSymbolContext("main.c", 20, false); len(scs) != 0 {
		t.Fatalf("location outside the limit range not excluded: %#v", scs)
	}
	if scs := m.ResolveSymbolContext("main.c", 12, false); len(scs) != 1 {
		t.Fatalf("location inside the limit range excluded")
	}
}

func TestFindGlobalVariables(t *testing.T) {
	m := symbolfile.NewModule(buildProgram(t))
	vars := m.FindGlobalVariables("counter", 0)
	if len(vars) != 1 {
		t.Fatalf("expected counter, got %#v", vars)
	}
	if !vars[0].External || len(vars[0].Location) != 9 || vars[0].CU == nil {
		t.Fatalf("unexpected variable %#v", vars[0])
	}
	if vars := m.FindGlobalVariablesRegexp(regexp.MustCompile("count"), 1); len(vars) != 1 {
		t.Fatalf("expected 1 variable, got %d", len(vars))
	}
	if vars := m.FindGlobalVariables("x", 0); len(vars) != 0 {
		t.Fatalf("members are not global variables")
	}
}

func TestFindTypes(t *testing.T) {
	m := symbolfile.NewModule(buildProgram(t))

	typeNames := func(ts []*symbolfile.Type) []string {
		r := []string{}
		for _, t := range ts {
			r = append(r, t.Name)
		}
		return r
	}

	for _, tc := range []struct {
		name, parent string
		want         []string
	}{
		{"point", "", []string{"struct point"}},
		{"point_t", "", []string{"point_t"}},
		{"int", "", []string{"int"}},
		{"ns::Inner", "", []string{"struct Inner"}},
		{"Inner", "ns", []string{"struct Inner"}},
		{"Inner", "other", []string{}},
	} {
		got := typeNames(m.FindTypes(tc.name, tc.parent, 0))
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("FindTypes(%q, %q) mismatch (-want +got):\n%s", tc.name, tc.parent, diff)
		}
	}

	ts := m.FindTypes("point_t", "", 0)
	if len(ts) != 1 || !ts[0].HasByteSize || ts[0].ByteSize != 8 || ts[0].Encoding != symbolfile.EncodingIsUID {
		t.Fatalf("unexpected typedef %#v", ts)
	}

	ts = m.FindTypes("intptr_t", "", 0)
	if len(ts) != 1 || !ts[0].HasByteSize || ts[0].ByteSize != 8 {
		t.Fatalf("unexpected pointer typedef %#v", ts)
	}
	if got := typeNames(m.FindTypes("opaque", "", 0)); len(got) != 1 || got[0] != "struct opaque" {
		t.Fatalf("unexpected empty struct %q", got)
	}

	ctx := []symbolfile.CompilerContext{{Kind: symbolfile.ContextNamespace, Name: "ns"}, {Kind: symbolfile.ContextAnyType, Name: "Inner"}}
	if got := typeNames(m.FindTypesByContext(ctx)); len(got) != 1 {
		t.Fatalf("FindTypesByContext: %q", got)
	}
	ctx[0].Kind = symbolfile.ContextClass
	if got := typeNames(m.FindTypesByContext(ctx)); len(got) != 0 {
		t.Fatalf("FindTypesByContext matched the wrong kind: %q", got)
	}
}

// swiftContext resolves a fixed set of mangled names.
type swiftContext struct {
	known    map[string]*cType
	resolved int
	noRaw    bool
}

func (c *swiftContext) IsMangledName(name string) bool { return strings.HasPrefix(name, "$s") }

func (c *swiftContext) TypeFromMangledName(mangled string) (CompilerType, error) {
	c.resolved++
	if t, ok := c.known[mangled]; ok {
		return t, nil
	}
	return nil, nil
}

func (c *swiftContext) IsObjCSymbol(mangled string) bool { return strings.HasPrefix(mangled, "$sSo") }

func (c *swiftContext) VoidFunctionType() CompilerType {
	return &cType{name: "() -> ()", function: true}
}

func (c *swiftContext) RawPointerType() (CompilerType, bool) {
	if c.noRaw {
		return nil, false
	}
	return &cType{name: "Builtin.RawPointer", size: 8, hasSize: true}, true
}

func (c *swiftContext) TypeFromDIE(d DIEInfo) CompilerType { return nil }

func (c *swiftContext) ClangImporter() ClangImporter { return clangImporter{} }

type clangImporter struct{}

func (clangImporter) CopyType(t *symbolfile.Type) (CompilerType, bool) {
	return &cType{name: t.Name, objc: true}, true
}

func (clangImporter) ObjCIDType() CompilerType {
	return &cType{name: "id", size: 8, hasSize: true}
}

type foundationModule struct{}

func (foundationModule) FindTypesByContext(ctx []symbolfile.CompilerContext) []*symbolfile.Type {
	if len(ctx) == 1 && ctx[0].Kind == symbolfile.ContextAnyType && ctx[0].Name == "$sSo8NSObjectCD" {
		return []*symbolfile.Type{{Name: "NSObject"}}
	}
	return nil
}

func TestParseSwiftTypes(t *testing.T) {
	b := dwarfbuilder.NewEmpty()
	b.BeginUnit(4, unit.UnitTypeCompile, "main.swift", dwarfbuilder.LangSwift)
	intOff := b.AddStructType("$sSiD", 8)
	b.TagClose()
	aliasOff := b.TagOpen(dwarf.TagTypedef, "Alias")
	b.Attr(dwarf.AttrLinkageName, "$sSiD")
	b.TagClose()
	fixedOff := b.TagOpen(dwarf.TagStructType, fixedBufferName)
	b.AddMember("value", intOff, []byte{0x23, 0})
	b.TagClose()
	nsobjOff := b.AddStructType("$sSo8NSObjectCD", 16)
	b.TagClose()
	missingOff := b.AddStructType("$sSo7MissingV", 4)
	b.TagClose()
	rawOff := b.AddStructType("$sBpD", 8)
	b.TagClose()
	ptrOff := b.AddTypedef("MyPtr", rawOff)
	fnOff := b.TagOpen(dwarf.TagSubroutineType, "")
	b.TagClose()
	unknownOff := b.AddStructType("$s7Unknown1PV", 4)
	b.TagClose()
	sec, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	obj := objfile.NewJIT("main", sec, nil, nil)
	var mu symbolfile.ModuleMutex
	s := New(obj, &mu).(*SymbolFile)
	ctx := &swiftContext{known: map[string]*cType{"$sSiD": {name: "Swift.Int", size: 8, hasSize: true}}}
	s.SetLanguageContext(symbolfile.LanguageSwift, ctx)
	s.ExternalModules = []TypeFinder{foundationModule{}}
	s.InitializeObject()
	mu.Lock()
	defer mu.Unlock()

	typeAt := func(off dwarf.Offset) *symbolfile.Type {
		u, i, ok := s.info.DIEForOffset(uint64(off))
		if !ok {
			t.Fatalf("no DIE at %#x", off)
		}
		return s.ParseTypeFromDWARF(u, i)
	}

	intT := typeAt(intOff)
	if intT == nil || intT.Name != "Swift.Int" || intT.ByteSize != 8 || intT.Resolve != symbolfile.ResolveStateFull || intT.MangledName != "$sSiD" {
		t.Fatalf("unexpected Int %#v", intT)
	}
	if alias := typeAt(aliasOff); alias != intT || ctx.resolved != 1 {
		t.Fatalf("mangled name resolved again (%d times)", ctx.resolved)
	}
	if typeAt(intOff) != intT {
		t.Fatalf("DIE parsed twice")
	}

	fixed := typeAt(fixedOff)
	if fixed == nil || !fixed.FixedBuffer || fixed.Name != "Swift.Int" || intT.FixedBuffer {
		t.Fatalf("unexpected fixed buffer type %#v", fixed)
	}

	nsobj := typeAt(nsobjOff)
	if nsobj == nil || nsobj.Name != "NSObject *" || nsobj.ByteSize != 16 || nsobj.Resolve != symbolfile.ResolveStateForward {
		t.Fatalf("unexpected imported type %#v", nsobj)
	}

	missing := typeAt(missingOff)
	if missing == nil || missing.Name != "$sSo7MissingV" || missing.Handle.(CompilerType).TypeName() != "id" {
		t.Fatalf("unexpected fallback type %#v", missing)
	}

	ptr := typeAt(ptrOff)
	if ptr == nil || ptr.Name != "MyPtr" || ptr.ByteSize != 8 {
		t.Fatalf("unexpected raw pointer %#v", ptr)
	}

	fn := typeAt(fnOff)
	if fn == nil || !fn.Handle.(CompilerType).IsFunctionType() {
		t.Fatalf("unexpected function type %#v", fn)
	}

	if typeAt(unknownOff) != nil {
		t.Fatalf("unresolvable mangled name produced a type")
	}
}

func TestRawPointerEmptyContext(t *testing.T) {
	b := dwarfbuilder.NewEmpty()
	b.BeginUnit(4, unit.UnitTypeCompile, "main.swift", dwarfbuilder.LangSwift)
	rawOff := b.AddStructType("$sBpD", 8)
	b.TagClose()
	ptrOff := b.AddTypedef("MyPtr", rawOff)
	sec, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	var mu symbolfile.ModuleMutex
	s := New(objfile.NewJIT("main", sec, nil, nil), &mu).(*SymbolFile)
	s.SetLanguageContext(symbolfile.LanguageSwift, &swiftContext{noRaw: true})
	s.InitializeObject()
	mu.Lock()
	defer mu.Unlock()
	u, i, _ := s.info.DIEForOffset(uint64(ptrOff))
	if typ := s.ParseTypeFromDWARF(u, i); typ != nil {
		t.Fatalf("expected no type, got %#v", typ)
	}
}
