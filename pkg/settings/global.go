package settings

import (
	"sync"
)

var (
	globalOnce  sync.Once
	globalProps *Properties
)

// Setting paths read by other packages.
const (
	TargetInjectLocalVars       = "target.experimental.inject-local-vars"
	TargetMaxChildrenCount      = "target.max-children-count"
	TargetSourceMap             = "target.source-map"
	TargetDebugFileSearchPaths  = "target.debug-file-search-paths"
	TargetExprPrefix            = "target.expr-prefix"
	TargetLanguage              = "target.language"
	SymbolsEnableExternalLookup = "symbols.enable-external-lookup"
	SymbolsTypeCacheSize        = "symbols.type-cache-size"
	TSanReportTimeout           = "plugin.instrumentation-runtime.thread-sanitizer.report-timeout"
	FileCacheCapacity           = "plugin.file-cache.capacity"
	CompletionMaxResults        = "interpreter.completion-max-results"
)

// Languages accepted by target.language.
var Languages = []string{"unknown", "c", "c++", "objective-c", "objective-c++", "swift"}

// Global returns the debugger-wide property tree.
func Global() *Properties {
	globalOnce.Do(func() {
		globalProps = NewDefaultProperties()
	})
	return globalProps
}

// NewDefaultProperties returns a new tree containing every setting known to
// the debugger, with its default value.
func NewDefaultProperties() *Properties {
	root := NewProperties("")

	target := root.AppendCollection("target", "Settings specify to debugging targets.", false)
	target.AppendProperty("max-children-count", "Maximum number of children to expand in any level of depth.", false, NewUInt(256))
	target.AppendProperty("max-string-summary-length", "Maximum number of characters to show when using %s in summary strings.", false, NewUInt(1024))
	target.AppendProperty("language", "The language to use when interpreting expressions entered in commands.", false, NewEnum(Languages, "unknown"))
	target.AppendProperty("expr-prefix", "Path to a file containing expressions to be prepended to all expressions.", false, NewFileSpec(""))
	target.AppendProperty("source-map", "Source path remappings applied to file names found in debug information.", false, NewDictionary(KindFileSpec))
	target.AppendProperty("debug-file-search-paths", "List of directories to be searched when locating debug symbol files.", false, NewArray(KindFileSpec))
	target.AppendProperty("run-args", "A list containing all the arguments to be passed to the executable when it is run.", false, NewArray(KindString))
	target.AppendProperty("env-vars", "A list of all the environment variables to be passed to the executable's environment.", false, NewDictionary(KindString))
	target.AppendProperty("auto-import-clang-modules", "Automatically load Clang modules referred to by the program.", false, NewBool(true))
	target.AppendProperty("inline-breakpoint-strategy", "The strategy to use when settings breakpoints by file and line.", false, NewEnum([]string{"never", "always", "headers"}, "always"))
	experimental := target.AppendExperimental()
	experimental.AppendProperty("inject-local-vars", "If true, inject local variables explicitly into the expression text. This will fix symbol resolution when there are name collisions between ivars and local variables. But it can make expressions run much more slowly.", false, NewBool(true))

	symbols := root.AppendCollection("symbols", "Settings related to symbol files.", true)
	symbols.AppendProperty("enable-external-lookup", "Control the use of external tools or libraries to locate symbol files.", true, NewBool(true))
	symbols.AppendProperty("clang-modules-cache-path", "The path to the clang modules cache directory.", true, NewFileSpec(""))
	symbols.AppendProperty("type-cache-size", "Number of mangled type names remembered by each symbol file.", true, NewUInt(4096))

	display := root.AppendCollection("display", "Settings controlling how values are displayed.", true)
	display.AppendProperty("format", "The default format used to display values.", true, NewFormat("default"))
	display.AppendProperty("escape-non-printables", "If true, non-printable characters are escaped when displaying strings.", true, NewBool(true))

	interp := root.AppendCollection("interpreter", "Settings of the command interpreter.", true)
	interp.AppendProperty("completion-max-results", "Maximum number of completions returned for a single request, 0 means no limit.", true, NewUInt(0))
	interp.AppendProperty("prompt", "The debugger command line prompt.", true, NewString("(ndbg) "))

	plugin := root.AppendCollection("plugin", "Settings for the various plug-ins.", true)
	rt := plugin.AppendCollection("instrumentation-runtime", "Settings for instrumentation runtime plug-ins.", true)
	tsan := rt.AppendCollection("thread-sanitizer", "Settings for the thread sanitizer plug-in.", true)
	tsan.AppendProperty("report-timeout", "Timeout, in microseconds, for the expression that retrieves a thread sanitizer report.", true, NewUInt(2000000))
	fc := plugin.AppendCollection("file-cache", "Settings for the host file cache.", true)
	fc.AppendProperty("capacity", "Maximum number of files kept open by the file cache.", true, NewUInt(64))

	return root
}

// GetBool returns the boolean at path, or def if path does not name a
// boolean.
func (p *Properties) GetBool(path string, def bool) bool {
	v, _ := p.GetSubValue(path)
	if v == nil || v.kind != KindBool {
		return def
	}
	return v.b
}

// GetUInt returns the unsigned integer at path, or def if path does not
// name one.
func (p *Properties) GetUInt(path string, def uint64) uint64 {
	v, _ := p.GetSubValue(path)
	if v == nil || v.kind != KindUInt {
		return def
	}
	return v.u
}

// GetString returns the string form of the value at path, or def.
func (p *Properties) GetString(path string, def string) string {
	v, _ := p.GetSubValue(path)
	if v == nil {
		return def
	}
	return v.String()
}
