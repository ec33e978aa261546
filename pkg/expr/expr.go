// Package expr builds the source text compiled to evaluate a user
// expression: the user body wrapped in a function of the frame language,
// preceded by the macros and declarations visible at the stop location.
package expr

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-delve/nativedbg/pkg/dwarf/macro"
	"github.com/go-delve/nativedbg/pkg/expr/swift"
	"github.com/go-delve/nativedbg/pkg/logflags"
	"github.com/go-delve/nativedbg/pkg/settings"
	"github.com/go-delve/nativedbg/pkg/symbolfile"
)

// Prelude is emitted before every C family expression.
const Prelude = `
#ifndef NULL
#define NULL (__null)
#endif
#ifndef Nil
#define Nil (__null)
#endif
#ifndef nil
#define nil (__null)
#endif
#ifndef YES
#define YES ((BOOL)1)
#endif
#ifndef NO
#define NO ((BOOL)0)
#endif
typedef __INT8_TYPE__ int8_t;
typedef __UINT8_TYPE__ uint8_t;
typedef __INT16_TYPE__ int16_t;
typedef __UINT16_TYPE__ uint16_t;
typedef __INT32_TYPE__ int32_t;
typedef __UINT32_TYPE__ uint32_t;
typedef __INT64_TYPE__ int64_t;
typedef __UINT64_TYPE__ uint64_t;
typedef __INTPTR_TYPE__ intptr_t;
typedef __UINTPTR_TYPE__ uintptr_t;
typedef __SIZE_TYPE__ size_t;
typedef __PTRDIFF_TYPE__ ptrdiff_t;
typedef unsigned short unichar;
extern "C"
{
    int printf(const char * __restrict, ...);
}
`

// Markers around the user body of C family expressions.
const (
	BodyStartMarker = "    /*LLDB_BODY_START*/\n    "
	BodyEndMarker   = ";\n    /*LLDB_BODY_END*/\n"
)

// WrapKind selects the wrapper of the user body.
type WrapKind uint8

const (
	// WrapNone uses the body as is.
	WrapNone WrapKind = iota
	WrapC
	WrapCPlusPlus
	WrapObjCInstance
	WrapObjCStatic
	WrapSwift
)

var wrapKindNames = map[WrapKind]string{
	WrapNone:         "none",
	WrapC:            "c",
	WrapCPlusPlus:    "c++",
	WrapObjCInstance: "objc",
	WrapObjCStatic:   "objc-static",
	WrapSwift:        "swift",
}

func (k WrapKind) String() string {
	if s, ok := wrapKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("WrapKind(%d)", uint8(k))
}

// ParseWrapKind returns the WrapKind called s.
func ParseWrapKind(s string) (WrapKind, error) {
	for k, name := range wrapKindNames {
		if name == s {
			return k, nil
		}
	}
	return WrapNone, fmt.Errorf("unknown wrapping language %q", s)
}

func (k WrapKind) cFamily() bool {
	switch k {
	case WrapC, WrapCPlusPlus, WrapObjCInstance, WrapObjCStatic:
		return true
	}
	return false
}

// ErrUnsupportedLanguage is returned by GetText for an unknown WrapKind.
var ErrUnsupportedLanguage = errors.New("unsupported wrapping language")

// ExecutionContext describes the stop location an expression is evaluated
// at. Every method may return a zero value when the information is not
// available.
type ExecutionContext interface {
	TargetArch() string
	Platform() string
	CurrentFile() string
	CurrentLine() int
	// MacroList returns the macros of the compile unit of the frame.
	MacroList() *macro.List
	// SupportFiles returns the file table of the compile unit of the
	// frame.
	SupportFiles() []string
	// ModuleMacros returns the expansions of the macros defined by the
	// imported modules.
	ModuleMacros() []string
	// Locals returns the names of the variables in scope.
	Locals() []string
	FrameLanguage() symbolfile.Language
}

// Options are the evaluation options that affect the wrapped text.
type Options struct {
	ExpressionNumber uint32
	Playground       bool
	REPL             bool
	PoundLineFile    string
	PoundLineLine    int
	// Language is the language of the expression, it selects the
	// extension of the file written by SaveExpressionTextToTempFile.
	Language symbolfile.Language

	ConstMethod         bool
	SwiftInstanceMethod bool
	IsClass             bool
	IsStatic            bool
	WeakSelf            bool

	GenerateDebugInfo bool
	OSVersion         string
	// PlaygroundLoggerDecls is set for the first playground expression
	// of a session.
	PlaygroundLoggerDecls bool
}

// Builder holds a user expression.
type Builder struct {
	Name   string
	Prefix string
	Body   string
	Wrap   WrapKind
}

func isCPlusPlus(l symbolfile.Language) bool {
	return l == symbolfile.LanguageCPlusPlus || l == symbolfile.LanguageObjCPlusPlus
}

func targetSpecificDefines(exe ExecutionContext) string {
	switch exe.TargetArch() {
	case "aarch64", "arm64":
		return "typedef bool BOOL;\n"
	case "x86_64", "amd64":
		if exe.Platform() == "ios-simulator" {
			return "typedef bool BOOL;\n"
		}
	}
	return "typedef signed char BOOL;\n"
}

// GetText returns the source to compile and the 1-based line of the source
// where the body starts, 0 if unknown.
func (b *Builder) GetText(opts Options, exe ExecutionContext) (string, int, error) {
	if b.Wrap == WrapNone {
		return b.Body, 0, nil
	}
	if _, ok := wrapKindNames[b.Wrap]; !ok {
		return "", 0, ErrUnsupportedLanguage
	}
	if exe == nil {
		exe = noContext{}
	}

	var macros, locals bytes.Buffer
	if file, line := exe.CurrentFile(), exe.CurrentLine(); file != "" && line > 0 {
		AddMacros(&macros, exe.MacroList(), NewMacroState(file, line, exe.SupportFiles()))
	}
	if isCPlusPlus(exe.FrameLanguage()) && settings.Global().GetBool(settings.TargetInjectLocalVars, true) {
		for _, name := range exe.Locals() {
			if name == "" || name == "this" || name == ".block_descriptor" {
				continue
			}
			fmt.Fprintf(&locals, "using $__lldb_local_vars::%s;\n", name)
		}
	}

	if b.Wrap == WrapSwift {
		text, first := swift.WrapExpression(b.Body, swift.Options{
			Playground:        opts.Playground,
			PlaygroundStubs:   opts.PlaygroundLoggerDecls,
			REPL:              opts.REPL,
			PoundLineFile:     opts.PoundLineFile,
			PoundLineLine:     opts.PoundLineLine,
			GenerateDebugInfo: opts.GenerateDebugInfo,
			SaveText: func(text string) (string, error) {
				return SaveExpressionTextToTempFile(text, opts)
			},
			InstanceMethod: opts.SwiftInstanceMethod,
			StaticMethod:   opts.IsStatic,
			IsClass:        opts.IsClass,
			WeakSelf:       opts.WeakSelf,
			OSVersion:      opts.OSVersion,
		})
		logflags.ExprLogger().Debugf("wrapped expression:\n%s", text)
		return text, first, nil
	}

	body := b.Body
	if opts.PoundLineFile != "" && opts.PoundLineLine != 0 {
		body = fmt.Sprintf("#line %d \"%s\"\n%s", opts.PoundLineLine, opts.PoundLineFile, body)
	}

	var w bytes.Buffer
	var moduleMacros strings.Builder
	for _, m := range exe.ModuleMacros() {
		moduleMacros.WriteString(m)
		moduleMacros.WriteString("\n")
	}
	fmt.Fprintf(&w, "%s\n%s\n%s\n%s\n%s\n", moduleMacros.String(), macros.String(), Prelude, targetSpecificDefines(exe), b.Prefix)

	tagged := BodyStartMarker + body + BodyEndMarker

	switch b.Wrap {
	case WrapC:
		fmt.Fprintf(&w, "void                           \n"+
			"%s(void *$__lldb_arg)          \n"+
			"{                              \n"+
			"    %s;                        \n"+
			"%s"+
			"}                              \n", b.Name, locals.String(), tagged)
	case WrapCPlusPlus:
		constObject := ""
		if opts.ConstMethod {
			constObject = "const"
		}
		fmt.Fprintf(&w, "void                                   \n"+
			"$__lldb_class::%s(void *$__lldb_arg) %s\n"+
			"{                                      \n"+
			"    %s;                                \n"+
			"%s"+
			"}                                      \n", b.Name, constObject, locals.String(), tagged)
	case WrapObjCInstance, WrapObjCStatic:
		sign := "-"
		if b.Wrap == WrapObjCStatic {
			sign = "+"
		}
		fmt.Fprintf(&w, "@interface $__lldb_objc_class ($__lldb_category)       \n"+
			"%s(void)%s:(void *)$__lldb_arg;                         \n"+
			"@end                                                   \n"+
			"@implementation $__lldb_objc_class ($__lldb_category)  \n"+
			"%s(void)%s:(void *)$__lldb_arg                          \n"+
			"{                                                      \n"+
			"%s"+
			"}                                                      \n"+
			"@end                                                   \n", sign, b.Name, sign, b.Name, tagged)
	}

	logflags.ExprLogger().Debugf("wrapped expression:\n%s", w.String())
	return w.String(), 0, nil
}

// OriginalBodyBounds returns the offsets of the user body in text, a
// source produced by GetText for kind.
func OriginalBodyBounds(text string, kind WrapKind) (start, end int, ok bool) {
	var startMarker, endMarker string
	switch {
	case kind == WrapSwift:
		startMarker, endMarker = swift.UserCodeStartMarker, swift.UserCodeEndMarker
	case kind.cFamily():
		startMarker, endMarker = BodyStartMarker, BodyEndMarker
	default:
		return 0, 0, false
	}
	start = strings.Index(text, startMarker)
	if start < 0 {
		return 0, 0, false
	}
	start += len(startMarker)
	end = strings.Index(text, endMarker)
	if end < 0 {
		return 0, 0, false
	}
	return start, end, true
}

// NumBodyLines returns the number of lines of body plus one for zero
// indexing and one for the body start marker.
func NumBodyLines(body string) int {
	return 2 + strings.Count(body, "\n")
}

// PersistentVariablePrefix returns the prefix of the names of persistent
// variables.
//
// TODO: Swift results and errors are meant to use "$R" and "$E" once the
// persistent state is per language, every language uses "$" until then.
func PersistentVariablePrefix(lang symbolfile.Language, isError bool) string {
	return "$"
}

func tempFileExt(lang symbolfile.Language) string {
	switch lang {
	case symbolfile.LanguageSwift:
		return ".swift"
	case symbolfile.LanguageC, symbolfile.LanguageC89, symbolfile.LanguageC99, symbolfile.LanguageC11:
		return ".c"
	case symbolfile.LanguageObjC:
		return ".m"
	}
	return ".cpp"
}

// SaveExpressionTextToTempFile writes text, followed by a newline, to a new
// file in the temporary directory and returns its path.
func SaveExpressionTextToTempFile(text string, opts Options) (string, error) {
	prefix := "expr"
	switch {
	case opts.Playground:
		prefix = "playground"
	case opts.REPL:
		prefix = "repl"
	}
	pattern := fmt.Sprintf("%s%d-*%s", prefix, opts.ExpressionNumber, tempFileExt(opts.Language))
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", err
	}
	path := f.Name()
	_, err = f.WriteString(text + "\n")
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

type noContext struct{}

func (noContext) TargetArch() string { return "" }
func (noContext) Platform() string { return "" }
func (noContext) CurrentFile() string { return "" }
func (noContext) CurrentLine() int { return 0 }
func (noContext) MacroList() *macro.List { return nil }
func (noContext) SupportFiles() []string { return nil }
func (noContext) ModuleMacros() []string { return nil }
func (noContext) Locals() []string { return nil }
func (noContext) FrameLanguage() symbolfile.Language { return symbolfile.LanguageUnknown }
