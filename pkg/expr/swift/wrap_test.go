package swift

import (
	"strings"
	"testing"
)

func TestWrapPlain(t *testing.T) {
	text, first := WrapExpression("let x = 1", Options{})
	if first != 4 {
		t.Fatalf("expected first body line 4, got %d", first)
	}
	if !strings.HasPrefix(text, "@LLDBDebuggerFunction \nfunc $__lldb_expr(") {
		t.Fatalf("unexpected wrapper:\n%s", text)
	}
	if !strings.Contains(text, "var $__lldb_error_result = __lldb_tmp_error") {
		t.Fatalf("missing catch clause:\n%s", text)
	}
	start := strings.Index(text, UserCodeStartMarker) + len(UserCodeStartMarker)
	end := strings.Index(text, UserCodeEndMarker)
	if text[start:end] != "let x = 1" {
		t.Fatalf("markers do not enclose the body: %q", text[start:end])
	}
}

func TestWrapMethod(t *testing.T) {
	for _, tc := range []struct {
		opts      Options
		decorator string
		extension string
	}{
		{Options{InstanceMethod: true}, "  mutating func", "extension $__lldb_context {"},
		{Options{InstanceMethod: true, IsClass: true}, "  final func", "extension $__lldb_context {"},
		{Options{InstanceMethod: true, IsClass: true, WeakSelf: true}, "  mutating func", "extension Swift.Optional where Wrapped == $__lldb_context {"},
		{Options{StaticMethod: true}, "  static func", "extension $__lldb_context {"},
		{Options{StaticMethod: true, IsClass: true, OSVersion: "macOS 10.12"}, "  final class func", "extension $__lldb_context {"},
	} {
		text, first := WrapExpression("x", tc.opts)
		if first != 5 {
			t.Errorf("%+v: expected first body line 5, got %d", tc.opts, first)
		}
		lines := strings.Split(text, "\n")
		if lines[0] != tc.extension || !strings.HasPrefix(lines[2], tc.decorator) || lines[6] != "x" {
			t.Errorf("%+v: unexpected wrapper:\n%s", tc.opts, text)
		}
		if tc.opts.OSVersion != "" && !strings.Contains(text, "@available(macOS 10.12, *)\nfunc $__lldb_expr") {
			t.Errorf("missing availability attribute:\n%s", text)
		}
	}
}

func TestWrapPlaygroundAndREPL(t *testing.T) {
	text, first := WrapExpression("print(1)", Options{Playground: true})
	if first != 1 || text != "#sourceLocation(file: \"Playground.swift\", line: 1)\nprint(1)\n" {
		t.Fatalf("unexpected playground text %q", text)
	}
	text, _ = WrapExpression("print(1)", Options{Playground: true, PlaygroundStubs: true, PoundLineFile: "page.swift", PoundLineLine: 3})
	if !strings.Contains(text, "__builtin_logger_initialize()\n#sourceLocation(file: \"page.swift\", line: 3)\n") {
		t.Fatalf("unexpected playground text %q", text)
	}

	text, first = WrapExpression("1 + 1", Options{REPL: true})
	if first != 1 || text != "1 + 1" {
		t.Fatalf("unexpected repl text %q", text)
	}
	text, _ = WrapExpression("1 + 1", Options{REPL: true, PoundLineFile: "/a/b/repl.swift", PoundLineLine: 7})
	if text != "#sourceLocation(file: \"repl.swift\", line:  7)\n1 + 1\n" {
		t.Fatalf("unexpected repl text %q", text)
	}
}

func TestWrapSourceLocation(t *testing.T) {
	text, _ := WrapExpression("x", Options{PoundLineFile: "a.swift", PoundLineLine: 12})
	if !strings.Contains(text, UserCodeStartMarker+"#sourceLocation(file: \"a.swift\", line: 12)\nx\n") {
		t.Fatalf("missing source location:\n%s", text)
	}

	var saved string
	opts := Options{GenerateDebugInfo: true, SaveText: func(text string) (string, error) {
		saved = text
		return "/tmp/expr0.swift", nil
	}}
	text, _ = WrapExpression("y", opts)
	if saved != "y" || !strings.Contains(text, "#sourceLocation(file: \"/tmp/expr0.swift\", line: 1)\ny\n") {
		t.Fatalf("debug info source location not emitted:\n%s", text)
	}
}
