// Package swift wraps user expressions in the Swift source the expression
// compiler expects.
package swift

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/go-delve/nativedbg/pkg/logflags"
)

// Names used inside wrapped expressions.
const (
	ArgumentName = "$__lldb_arg"
	ResultName   = "$__lldb_result"
	ErrorName    = "$__lldb_error_result"

	UserCodeStartMarker = "/*__LLDB_USER_START__*/\n"
	UserCodeEndMarker   = "\n/*__LLDB_USER_END__*/"

	// PlaygroundFile is the file name used when a playground does not
	// provide its own source location.
	PlaygroundFile = "Playground.swift"
)

const playgroundLoggerDecls = `
@_silgen_name ("playground_logger_initialize") func __builtin_logger_initialize ()
@_silgen_name ("playground_log_hidden") func __builtin_log_with_id<T> (_ object : T, _ name : String, _ id : Int, _ sl : Int, _ el : Int, _ sc : Int, _ ec: Int, _ moduleID: Int, _ fileID: Int) -> AnyObject
@_silgen_name ("playground_log_scope_entry") func __builtin_log_scope_entry (_ sl : Int, _ el : Int, _ sc : Int, _ ec: Int, _ moduleID: Int, _ fileID: Int) -> AnyObject
@_silgen_name ("playground_log_scope_exit") func __builtin_log_scope_exit (_ sl : Int, _ el : Int, _ sc : Int, _ ec: Int, _ moduleID: Int, _ fileID: Int) -> AnyObject
@_silgen_name ("playground_log_postprint") func __builtin_postPrint (_ sl : Int, _ el : Int, _ sc : Int, _ ec: Int, _ moduleID: Int, _ fileID: Int) -> AnyObject
@_silgen_name ("DVTSendPlaygroundLogData") func __builtin_send_data (_ :  AnyObject!)
__builtin_logger_initialize()
`

// Options controls how an expression is wrapped.
type Options struct {
	Playground bool
	// PlaygroundStubs is set for the first playground expression of a
	// session, the logger declarations are emitted only then.
	PlaygroundStubs bool
	REPL            bool

	PoundLineFile string
	PoundLineLine int

	GenerateDebugInfo bool
	// SaveText writes the expression to a file for the debug info, it
	// returns the path of the file.
	SaveText func(text string) (string, error)

	// InstanceMethod is set when the expression runs in the context of
	// self.
	InstanceMethod bool
	StaticMethod   bool
	IsClass        bool
	WeakSelf       bool

	// OSVersion, if not empty, is the platform and minimum version of the
	// availability attribute of the wrapper, for example "macOS 10.12".
	OSVersion string
}

var counter uint32

// WrapExpression returns the Swift source wrapping text and the 1-based
// line of the wrapped source where text starts.
func WrapExpression(text string, opts Options) (string, int) {
	var buf bytes.Buffer
	current := atomic.AddUint32(&counter, 1) - 1
	hasPound := opts.PoundLineFile != "" && opts.PoundLineLine != 0

	switch {
	case opts.Playground:
		prefix := ""
		if opts.PlaygroundStubs {
			prefix = playgroundLoggerDecls
		}
		file, line := PlaygroundFile, 1
		if hasPound {
			file, line = opts.PoundLineFile, opts.PoundLineLine
		}
		fmt.Fprintf(&buf, "%s#sourceLocation(file: \"%s\", line: %d)\n%s\n", prefix, file, line, text)
		return buf.String(), 1

	case opts.REPL:
		if hasPound {
			fmt.Fprintf(&buf, "#sourceLocation(file: \"%s\", line:  %d)\n%s\n", filepath.Base(opts.PoundLineFile), opts.PoundLineLine, text)
		} else {
			buf.WriteString(text)
		}
		return buf.String(), 1
	}

	body := text
	if hasPound {
		body = fmt.Sprintf("#sourceLocation(file: \"%s\", line: %d)\n%s\n", opts.PoundLineFile, opts.PoundLineLine, text)
	} else if opts.GenerateDebugInfo && opts.SaveText != nil {
		if path, err := opts.SaveText(text); err == nil {
			body = fmt.Sprintf("#sourceLocation(file: \"%s\", line: 1)\n%s\n", path, text)
		} else {
			logflags.ExprLogger().Errorf("could not save expression text: %v", err)
		}
	}

	availability := ""
	if opts.OSVersion != "" {
		availability = "@available(" + opts.OSVersion + ", *)"
	}

	// The user code is not indented so that error columns match the
	// compiler diagnostics.
	wrapped := fmt.Sprintf("do\n"+
		"{\n"+
		"%s%s%s\n"+
		"}\n"+
		"catch (let __lldb_tmp_error)\n"+
		"{\n"+
		"    var %s = __lldb_tmp_error\n"+
		"}\n", UserCodeStartMarker, body, UserCodeEndMarker, ErrorName)

	if !opts.InstanceMethod && !opts.StaticMethod {
		fmt.Fprintf(&buf, "@LLDBDebuggerFunction %s\n"+
			"func $__lldb_expr(_ $__lldb_arg : UnsafeMutablePointer<Any>) {\n"+
			"%s"+
			"}\n", availability, wrapped)
		return buf.String(), 4
	}

	// Functions that may end up in an extension of a class are final so
	// that they are not dispatched dynamically.
	var decorator string
	switch {
	case opts.StaticMethod && opts.IsClass:
		decorator = "final class"
	case opts.StaticMethod:
		decorator = "static"
	case opts.IsClass && !opts.WeakSelf:
		decorator = "final"
	default:
		decorator = "mutating"
	}
	optionalExtension := ""
	if opts.WeakSelf {
		optionalExtension = "Swift.Optional where Wrapped == "
	}
	fmt.Fprintf(&buf, "extension %s$__lldb_context {\n"+
		"  @LLDBDebuggerFunction %s\n"+
		"  %s func $__lldb_wrapped_expr_%d(_ $__lldb_arg : UnsafeMutablePointer<Any>) {\n"+
		"%s"+
		"  }\n"+
		"}\n"+
		"%s\n"+
		"func $__lldb_expr(_ $__lldb_arg : UnsafeMutablePointer<Any>) {\n"+
		"  do {\n"+
		"    $__lldb_injected_self.$__lldb_wrapped_expr_%d(\n"+
		"      $__lldb_arg\n"+
		"    )\n"+
		"  }\n"+
		"}\n", optionalExtension, availability, decorator, current, wrapped, availability, current)
	return buf.String(), 5
}
