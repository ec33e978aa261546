package completion

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/go-delve/nativedbg/pkg/settings"
)

func TestRequest(t *testing.T) {
	r := NewRequest("a b", 2, 2345, 12345)
	if r.RawLine() != "a b" || r.RawCursorPos() != 2 {
		t.Fatalf("unexpected raw line %q cursor %d", r.RawLine(), r.RawCursorPos())
	}
	if r.CursorIndex != 1 || r.CursorCharPosition != 0 {
		t.Fatalf("expected cursor at argument 1 position 0, got %d %d", r.CursorIndex, r.CursorCharPosition)
	}
	if r.MatchStartPoint != 2345 || r.MaxReturnElements != 12345 || r.WordComplete {
		t.Fatalf("unexpected request fields %#v", r)
	}

	r = NewRequest(`file "my fi`, -1, 0, 0)
	if r.CursorArgument() != "my fi" {
		t.Fatalf("expected argument %q, got %q", "my fi", r.CursorArgument())
	}
}

func TestRequestTrailingSpace(t *testing.T) {
	for _, tc := range []struct {
		line  string
		index int
		arg   string
	}{
		{"load ", 1, ""},
		{`load "my `, 1, "my "},
		{`load a\ `, 1, "a "},
		{`load a\ `, 2, ""},
		{`load "a b" `, 2, ""},
		{"   ", 0, ""},
	} {
		r := NewRequest(tc.line, -1, 0, 0)
		if r.CursorIndex != tc.index || r.ParsedLine().Len() != tc.index+1 {
			t.Errorf("%q: expected cursor at argument %d of %d, got %d of %d", tc.line, tc.index, tc.index+1, r.CursorIndex, r.ParsedLine().Len())
			continue
		}
		if r.CursorArgument() != tc.arg {
			t.Errorf("%q: expected argument %q, got %q", tc.line, tc.arg, r.CursorArgument())
		}
	}
}

func TestRequestWindow(t *testing.T) {
	r := NewRequest("", 0, 1, 2)
	for _, s := range []string{"a", "b", "c", "d"} {
		r.AddMatch(s)
	}
	if diff := cmp.Diff([]string{"b", "c"}, r.Matches()); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	r.MatchStartPoint = 10
	if len(r.Matches()) != 0 {
		t.Fatalf("expected an empty window")
	}
}

func TestFilterPrefix(t *testing.T) {
	resp := Response{
		Prefix:  "hel",
		Matches: []Match{{"hello", "hello"}, {"world", "world"}},
	}
	resp.FilterPrefix()
	if diff := cmp.Diff([]Match{{"hello", "lo"}}, resp.Matches); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if !resp.WordComplete() {
		t.Fatalf("expected word complete")
	}

	e := ErrorResponse("no frontend")
	if e.Error != "no frontend" || len(e.Matches) != 0 {
		t.Fatalf("unexpected error response %#v", e)
	}
}

func TestDiskFiles(t *testing.T) {
	dir := t.TempDir()
	for _, d := range []string{"sub", "subdir2", ".hidden"} {
		if err := os.Mkdir(filepath.Join(dir, d), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range []string{"subfile.c", ".dotfile", "other.h"} {
		if err := os.WriteFile(filepath.Join(dir, f), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if runtime.GOOS != "windows" {
		if err := os.Symlink(filepath.Join(dir, "sub"), filepath.Join(dir, "sublink")); err != nil {
			t.Fatal(err)
		}
	}

	base := filepath.ToSlash(dir) + "/"

	req := NewRequest("", 0, 0, 0)
	n := DiskFiles(nil, base+"sub", req, nil)
	expected := []string{base + "sub/", base + "subdir2/", base + "subfile.c"}
	if runtime.GOOS != "windows" {
		expected = append(expected, base+"sublink/")
	}
	got := req.Matches()
	if n != len(expected) {
		t.Fatalf("expected %d matches got %d: %v", len(expected), n, got)
	}
	if diff := cmp.Diff(expected, sortedCopy(got)); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if req.WordComplete {
		t.Fatalf("matching a directory must not complete the word")
	}

	req = NewRequest("", 0, 0, 0)
	DiskDirectories(nil, base+"sub", req, nil)
	for _, m := range req.Matches() {
		if m == base+"subfile.c" {
			t.Fatalf("directory completion returned a file")
		}
	}

	req = NewRequest("", 0, 0, 0)
	DiskFiles(nil, base, req, nil)
	for _, m := range req.Matches() {
		if m == base+".dotfile" || m == base+".hidden/" {
			t.Fatalf("dotfile %s returned without a leading dot", m)
		}
	}

	req = NewRequest("", 0, 0, 0)
	DiskFiles(nil, base+".", req, nil)
	if diff := cmp.Diff([]string{base + ".dotfile", base + ".hidden/"}, sortedCopy(req.Matches())); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}

	req = NewRequest("", 0, 0, 0)
	DiskFiles(nil, base+"other", req, nil)
	if !req.WordComplete {
		t.Fatalf("a unique file match should complete the word")
	}
}

func TestDiskRootDirectory(t *testing.T) {
	if fi, err := os.Stat("/tmp"); err != nil || !fi.IsDir() {
		t.Skip("no /tmp directory")
	}
	req := NewRequest("", 0, 0, 0)
	n, sawDirectory := DiskFilesOrDirectories("/tm", false, req)
	if n < 1 || !sawDirectory {
		t.Fatalf("expected /tmp/ to be matched, got %v", req.Matches())
	}
	found := false
	for _, m := range req.Matches() {
		if m == "/tmp/" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected /tmp/ in %v", req.Matches())
	}
}

type fakeUsers map[string]string

func (u fakeUsers) HomeDir(name string) (string, bool) {
	h, ok := u[name]
	return h, ok
}

func (u fakeUsers) UserNames() []string {
	var r []string
	for k := range u {
		if k != "" {
			r = append(r, k)
		}
	}
	return r
}

func TestUserNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "projects"), 0o755); err != nil {
		t.Fatal(err)
	}
	old := Users
	defer func() { Users = old }()
	Users = fakeUsers{"alice": dir, "alex": "/nonexistent", "bob": "/nonexistent"}

	req := NewRequest("", 0, 0, 0)
	DiskFiles(nil, "~al", req, nil)
	if diff := cmp.Diff([]string{"~alex/", "~alice/"}, req.Matches()); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}

	req = NewRequest("", 0, 0, 0)
	DiskFiles(nil, "~bob", req, nil)
	if diff := cmp.Diff([]string{"~bob/"}, req.Matches()); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}

	req = NewRequest("", 0, 0, 0)
	DiskFiles(nil, "~alice/pro", req, nil)
	if diff := cmp.Diff([]string{"~alice/projects/"}, req.Matches()); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

type fakeContext struct {
	modules []ModuleInfo
	props   *settings.Properties
	vars    map[string][]Variable
}

func (c *fakeContext) Modules() []ModuleInfo { return c.modules }
func (c *fakeContext) Settings() *settings.Properties { return c.props }
func (c *fakeContext) Platforms() []string { return []string{"host", "remote-linux", "remote-windows"} }
func (c *fakeContext) Architectures() []string { return []string{"i386", "i686", "x86_64"} }
func (c *fakeContext) FrameVariables(p string) []Variable { return c.vars[p] }

func newFakeContext() *fakeContext {
	return &fakeContext{
		modules: []ModuleInfo{
			{
				Path:         "/usr/bin/prog",
				CompileUnits: []string{"/src/prog/main.c", "/src/prog/util.c", "/src/lib/map.c"},
				Functions:    []string{"main", "util_init", "util_free", "operator+"},
				Symbols:      []string{"_start", "main"},
			},
			{
				Path:         "/usr/lib/libc.so.6",
				CompileUnits: []string{"/build/libc/malloc.c"},
				Functions:    []string{"malloc", "free"},
			},
		},
		props: settings.NewDefaultProperties(),
		vars: map[string][]Variable{
			"":      {{Name: "argc"}, {Name: "argv", IsPointer: true, HasChildren: true}, {Name: "state", HasChildren: true}},
			"state": {{Name: "count"}, {Name: "items", IsArray: true, HasChildren: true}},
		},
	}
}

func TestSourceFilesAndModules(t *testing.T) {
	c := newFakeContext()
	req := NewRequest("", 0, 0, 0)
	SourceFiles(c, "m", req, nil)
	if diff := cmp.Diff([]string{"main.c", "map.c", "malloc.c"}, req.Matches()); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}

	req = NewRequest("", 0, 0, 0)
	SourceFiles(c, "/src/prog/m", req, nil)
	if diff := cmp.Diff([]string{"main.c"}, req.Matches()); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}

	req = NewRequest("", 0, 0, 0)
	SourceFiles(c, "m", req, ModuleFilter("prog"))
	if diff := cmp.Diff([]string{"main.c", "map.c"}, req.Matches()); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}

	req = NewRequest("", 0, 0, 0)
	Modules(c, "lib", req, nil)
	if diff := cmp.Diff([]string{"libc.so.6"}, req.Matches()); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSymbols(t *testing.T) {
	if got := SymbolRegexp(""); got != "." {
		t.Fatalf("expected '.', got %q", got)
	}
	if got := SymbolRegexp("operator+"); got != `^operator\+` {
		t.Fatalf("unexpected regexp %q", got)
	}

	c := newFakeContext()
	req := NewRequest("", 0, 0, 0)
	n := Symbols(c, "util_", req, nil)
	if n != 2 {
		t.Fatalf("expected 2 matches, got %d", n)
	}
	if diff := cmp.Diff([]string{"util_free", "util_init"}, req.Matches()); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}

	req = NewRequest("", 0, 0, 0)
	Symbols(c, "operator+", req, nil)
	if diff := cmp.Diff([]string{"operator+"}, req.Matches()); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}

	req = NewRequest("", 0, 0, 0)
	Symbols(c, "ma", req, nil)
	if diff := cmp.Diff([]string{"main", "malloc"}, req.Matches()); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSettingsNames(t *testing.T) {
	c := newFakeContext()
	req := NewRequest("", 0, 0, 0)
	SettingsNames(c, "target.experimental.", req, nil)
	if diff := cmp.Diff([]string{settings.TargetInjectLocalVars}, req.Matches()); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if req.WordComplete {
		t.Fatalf("a partial name is not an exact match")
	}

	req = NewRequest("", 0, 0, 0)
	SettingsNames(c, settings.TargetLanguage, req, nil)
	if !req.WordComplete {
		t.Fatalf("expected an exact match for %s", settings.TargetLanguage)
	}

	req = NewRequest("", 0, 0, 0)
	if n := SettingsNames(c, "nothing", req, nil); n != 0 {
		t.Fatalf("expected no matches, got %v", req.Matches())
	}
}

func TestVariablePath(t *testing.T) {
	c := newFakeContext()
	for _, tc := range []struct {
		partial      string
		expected     []string
		wordComplete bool
	}{
		{"a", []string{"argc", "argv->"}, false},
		{"argc", []string{"argc"}, true},
		{"st", []string{"state."}, false},
		{"state.", []string{"state.count", "state.items["}, false},
		{"state.c", []string{"state.count"}, true},
		{"state.items[", nil, false},
	} {
		req := NewRequest("", 0, 0, 0)
		VariablePath(c, tc.partial, req, nil)
		got := req.Matches()
		if len(got) == 0 {
			got = nil
		}
		if diff := cmp.Diff(tc.expected, got); diff != "" {
			t.Errorf("%q: mismatch (-want +got):\n%s", tc.partial, diff)
		}
		if req.WordComplete != tc.wordComplete {
			t.Errorf("%q: expected word complete %v", tc.partial, tc.wordComplete)
		}
	}
}

func TestInvokeCommon(t *testing.T) {
	c := newFakeContext()
	req := NewRequest("settings set x86", 16, 0, 0)
	if InvokeCommon(c, Custom|ArchitectureName, req, nil) {
		t.Fatalf("custom completions must not be handled")
	}
	if !InvokeCommon(c, ArchitectureName|PlatformPluginName, req, nil) {
		t.Fatalf("expected completion to be handled")
	}
	if diff := cmp.Diff([]string{"x86_64"}, req.Matches()); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}

	m, ok := ParseMask("disk-file, symbol")
	if !ok || m != DiskFile|Symbol {
		t.Fatalf("unexpected mask %#x", m)
	}
	if _, ok := ParseMask("bogus"); ok {
		t.Fatalf("expected bogus mask to fail")
	}
}

func sortedCopy(v []string) []string {
	r := append([]string(nil), v...)
	sort.Strings(r)
	return r
}
