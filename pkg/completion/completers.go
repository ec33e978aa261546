package completion

import (
	"path"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/derekparker/trie"

	"github.com/go-delve/nativedbg/pkg/logflags"
	"github.com/go-delve/nativedbg/pkg/settings"
)

// Mask selects the common completers run by InvokeCommon.
type Mask uint32

const (
	NoCompletion Mask = 0
	SourceFile   Mask = 1 << (iota - 1)
	DiskFile
	DiskDirectory
	Symbol
	Module
	SettingsName
	PlatformPluginName
	ArchitectureName
	VariablePathName

	// Custom means the caller completes the argument itself.
	Custom Mask = 1 << 31
)

var maskNames = map[string]Mask{
	"source-file":   SourceFile,
	"disk-file":     DiskFile,
	"disk-dir":      DiskDirectory,
	"symbol":        Symbol,
	"module":        Module,
	"settings-name": SettingsName,
	"platform":      PlatformPluginName,
	"arch":          ArchitectureName,
	"variable-path": VariablePathName,
}

// ParseMask converts a comma separated list of completer names, such as
// "disk-file,symbol", to a Mask.
func ParseMask(s string) (Mask, bool) {
	var m Mask
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		bit, ok := maskNames[name]
		if !ok {
			return 0, false
		}
		m |= bit
	}
	return m, true
}

// ModuleInfo describes a loaded module to the completers.
type ModuleInfo struct {
	// Path is the path of the module's object file.
	Path string
	// CompileUnits lists the primary source file of every compile unit.
	CompileUnits []string
	// Functions lists the demangled names of functions, including inlined
	// functions.
	Functions []string
	// Symbols lists the names of symbols from the symbol table.
	Symbols []string
}

// Variable is a value reachable from the current frame.
type Variable struct {
	Name string
	// IsPointer is true if members are reached with "->".
	IsPointer bool
	// HasChildren is true if the variable has members or elements.
	HasChildren bool
	// IsArray is true if elements are reached with "[".
	IsArray bool
}

// Context gives the completers access to the state of the debugger.
type Context interface {
	Modules() []ModuleInfo
	Settings() *settings.Properties
	Platforms() []string
	Architectures() []string
	// FrameVariables returns the children of the variable at path, or the
	// variables of the current frame when path is empty.
	FrameVariables(path string) []Variable
}

// SearchFilter restricts the modules searched by the completers.
type SearchFilter interface {
	ModulePasses(m *ModuleInfo) bool
}

type moduleFilter string

func (f moduleFilter) ModulePasses(m *ModuleInfo) bool {
	return path.Base(m.Path) == string(f) || m.Path == string(f)
}

// ModuleFilter returns a filter accepting only the module with the given
// path or file name.
func ModuleFilter(name string) SearchFilter {
	return moduleFilter(name)
}

// Completer completes partial, adding matches to req, and returns the
// number of matches.
type Completer func(c Context, partial string, req *Request, filter SearchFilter) int

var commonCompleters = []struct {
	mask Mask
	fn   Completer
}{
	{SourceFile, SourceFiles},
	{DiskFile, DiskFiles},
	{DiskDirectory, DiskDirectories},
	{Symbol, Symbols},
	{Module, Modules},
	{SettingsName, SettingsNames},
	{PlatformPluginName, PlatformPluginNames},
	{ArchitectureName, ArchitectureNames},
	{VariablePathName, VariablePath},
}

// InvokeCommon runs every completer selected by mask on the argument under
// the cursor. It returns false if mask selects a custom completion or no
// completer at all.
func InvokeCommon(c Context, mask Mask, req *Request, filter SearchFilter) bool {
	if mask&Custom != 0 {
		return false
	}
	partial := req.CursorArgument()
	handled := false
	for _, cc := range commonCompleters {
		if mask&cc.mask == cc.mask {
			handled = true
			n := cc.fn(c, partial, req, filter)
			logflags.CompletionLogger().Debugf("completer %#x on %q: %d matches", uint32(cc.mask), partial, n)
		}
	}
	return handled
}

func forEachModule(c Context, filter SearchFilter, fn func(m *ModuleInfo)) {
	mods := c.Modules()
	for i := range mods {
		if filter != nil && !filter.ModulePasses(&mods[i]) {
			continue
		}
		fn(&mods[i])
	}
}

// splitFileSpec splits a path into its directory and file name, the
// directory is empty when s has no slash.
func splitFileSpec(s string) (dir, file string) {
	i := strings.LastIndexByte(s, '/')
	if i < 0 {
		return "", s
	}
	return s[:i], s[i+1:]
}

func fileSpecMatches(candidate, wantDir, wantFile string) bool {
	dir, file := splitFileSpec(candidate)
	if !strings.HasPrefix(file, wantFile) {
		return false
	}
	if wantDir != "" && !strings.HasPrefix(dir, wantDir) {
		return false
	}
	return true
}

// SourceFiles completes the names of the source files of the compile
// units of the searched modules.
func SourceFiles(c Context, partial string, req *Request, filter SearchFilter) int {
	req.WordComplete = true
	wantDir, wantFile := splitFileSpec(partial)
	seen := map[string]bool{}
	n := 0
	forEachModule(c, filter, func(m *ModuleInfo) {
		for _, cu := range m.CompileUnits {
			if seen[cu] || !fileSpecMatches(cu, wantDir, wantFile) {
				continue
			}
			seen[cu] = true
			_, file := splitFileSpec(cu)
			req.AddMatch(file)
			n++
		}
	})
	return n
}

// Modules completes the file names of the searched modules.
func Modules(c Context, partial string, req *Request, filter SearchFilter) int {
	req.WordComplete = true
	wantDir, wantFile := splitFileSpec(partial)
	n := 0
	forEachModule(c, filter, func(m *ModuleInfo) {
		if fileSpecMatches(m.Path, wantDir, wantFile) {
			_, file := splitFileSpec(m.Path)
			req.AddMatch(file)
			n++
		}
	})
	return n
}

const regexMetachars = "[](){}+.*|^$\\?"

// SymbolRegexp returns the regular expression used to complete symbols
// starting with partial.
func SymbolRegexp(partial string) string {
	if partial == "" {
		return "."
	}
	var b strings.Builder
	b.WriteByte('^')
	for i := 0; i < len(partial); i++ {
		if strings.IndexByte(regexMetachars, partial[i]) >= 0 {
			b.WriteByte('\\')
		}
		b.WriteByte(partial[i])
	}
	return b.String()
}

// Symbols completes function and symbol names of the searched modules.
func Symbols(c Context, partial string, req *Request, filter SearchFilter) int {
	req.WordComplete = true
	re := regexp.MustCompile(SymbolRegexp(partial))
	set := map[string]bool{}
	forEachModule(c, filter, func(m *ModuleInfo) {
		for _, names := range [][]string{m.Functions, m.Symbols} {
			for _, name := range names {
				if name != "" && re.MatchString(name) {
					set[name] = true
				}
			}
		}
	})
	return addSorted(req, set)
}

func addSorted(req *Request, set map[string]bool) int {
	r := make([]string, 0, len(set))
	for s := range set {
		r = append(r, s)
	}
	sort.Strings(r)
	for _, s := range r {
		req.AddMatch(s)
	}
	return len(r)
}

var settingsNamesCache struct {
	mu    sync.Mutex
	props *settings.Properties
	t     *trie.Trie
}

func settingsTrie(props *settings.Properties) *trie.Trie {
	settingsNamesCache.mu.Lock()
	defer settingsNamesCache.mu.Unlock()
	if settingsNamesCache.t == nil || settingsNamesCache.props != props {
		t := trie.New()
		for _, name := range props.Flatten() {
			t.Add(name, nil)
		}
		settingsNamesCache.props = props
		settingsNamesCache.t = t
	}
	return settingsNamesCache.t
}

// SettingsNames completes the dotted paths of the settings. WordComplete is
// set when partial is the exact name of a setting.
func SettingsNames(c Context, partial string, req *Request, filter SearchFilter) int {
	props := c.Settings()
	if props == nil {
		return 0
	}
	t := settingsTrie(props)
	names := t.PrefixSearch(partial)
	sort.Strings(names)
	for _, name := range names {
		req.AddMatch(name)
	}
	_, exact := t.Find(partial)
	req.WordComplete = exact
	return len(names)
}

func completeFromList(list []string, partial string, req *Request) int {
	n := 0
	for _, s := range list {
		if strings.HasPrefix(s, partial) {
			req.AddMatch(s)
			n++
		}
	}
	req.WordComplete = n == 1
	return n
}

// PlatformPluginNames completes platform plug-in names.
func PlatformPluginNames(c Context, partial string, req *Request, filter SearchFilter) int {
	return completeFromList(c.Platforms(), partial, req)
}

// ArchitectureNames completes architecture names.
func ArchitectureNames(c Context, partial string, req *Request, filter SearchFilter) int {
	return completeFromList(c.Architectures(), partial, req)
}

// VariablePath completes expressions that name a frame variable or one of
// its members, such as "foo.bar", "p->next" or "arr[".
func VariablePath(c Context, partial string, req *Request, filter SearchFilter) int {
	base, sep, prefix := "", "", partial
	for i := len(partial) - 1; i >= 0; i-- {
		switch {
		case partial[i] == '.' || partial[i] == '[':
			base, sep, prefix = partial[:i], partial[i:i+1], partial[i+1:]
		case partial[i] == '>' && i > 0 && partial[i-1] == '-':
			base, sep, prefix = partial[:i-1], "->", partial[i+1:]
		default:
			continue
		}
		break
	}
	if sep == "[" {
		// element indexes are not completed
		req.WordComplete = false
		return 0
	}

	n := 0
	single := Variable{}
	for _, v := range c.FrameVariables(base) {
		if !strings.HasPrefix(v.Name, prefix) {
			continue
		}
		match := base + sep + v.Name
		if v.HasChildren {
			switch {
			case v.IsArray:
				match += "["
			case v.IsPointer:
				match += "->"
			default:
				match += "."
			}
		}
		req.AddMatch(match)
		single = v
		n++
	}
	req.WordComplete = n == 1 && !single.HasChildren
	return n
}
