package settings

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSetGetIdempotence(t *testing.T) {
	p := NewDefaultProperties()
	tests := []struct {
		path, in, out string
	}{
		{"target.max-children-count", "12", "12"},
		{"target.max-children-count", "0x10", "16"},
		{"target.language", "swift", "swift"},
		{"target.language", "objective-c++", "objective-c++"},
		{"target.expr-prefix", "/tmp/./prefix.h", "/tmp/prefix.h"},
		{"interpreter.prompt", "(dbg) ", "(dbg)"},
		{"display.format", "hex", "hex"},
		{TargetInjectLocalVars, "false", "false"},
	}
	for _, tc := range tests {
		if err := p.SetSubValue(OpAssign, tc.path, tc.in); err != nil {
			t.Fatalf("set %s %q: %v", tc.path, tc.in, err)
		}
		v, err := p.GetSubValue(tc.path)
		if err != nil {
			t.Fatalf("get %s: %v", tc.path, err)
		}
		if got := v.String(); got != tc.out {
			t.Errorf("%s: expected %q got %q", tc.path, tc.out, got)
		}
		if !v.WasSet() {
			t.Errorf("%s: expected value to be marked as set", tc.path)
		}
	}
}

func TestSetErrors(t *testing.T) {
	p := NewDefaultProperties()
	for _, tc := range []struct {
		path, value, msg string
	}{
		{"target.nonexistent", "1", "invalid value path 'nonexistent'"},
		{"target.max-children-count", "abc", "invalid uint64 string value: 'abc'"},
		{"target.language", "cobol", "invalid enumeration value 'cobol'"},
		{"target.language", "objective", "invalid enumeration value 'objective'"},
		{"target.max-children-count.x", "1", "no properties"},
		{"display.format", "nonsense", "invalid format string value: 'nonsense'"},
	} {
		err := p.SetSubValue(OpAssign, tc.path, tc.value)
		if err == nil {
			t.Errorf("set %s %q: expected error", tc.path, tc.value)
			continue
		}
		if !strings.HasPrefix(err.Error(), tc.msg) {
			t.Errorf("set %s %q: expected error %q got %q", tc.path, tc.value, tc.msg, err.Error())
		}
	}

	err := p.SetSubValue(OpAssign, "nothere", "1")
	var serr *Error
	if !errors.As(err, &serr) || serr.Kind != ErrNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestEnumPrefix(t *testing.T) {
	v := NewEnum([]string{"never", "always", "headers"}, "always")
	if err := v.SetValueFromString(OpAssign, "h"); err != nil {
		t.Fatal(err)
	}
	if v.String() != "headers" {
		t.Fatalf("expected headers, got %s", v.String())
	}
	v.Clear()
	if v.String() != "always" || v.WasSet() {
		t.Fatalf("Clear did not restore the default: %s", v.String())
	}
}

func TestExperimental(t *testing.T) {
	p := NewDefaultProperties()

	// missing experimental settings are not errors
	v, err := p.GetSubValue("target.experimental.does-not-exist")
	if err != nil || v != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", v, err)
	}
	if err := p.SetSubValue(OpAssign, "target.experimental.does-not-exist", "1"); err != nil {
		t.Fatalf("unexpected error setting missing experimental value: %v", err)
	}

	// a setting that graduated out of experimental is reachable through
	// its old path
	if err := p.SetSubValue(OpAssign, "target.experimental.max-children-count", "7"); err != nil {
		t.Fatal(err)
	}
	if got := p.GetUInt(TargetMaxChildrenCount, 0); got != 7 {
		t.Fatalf("expected max-children-count 7, got %d", got)
	}

	if !IsSettingExperimental("experimental.foo") || IsSettingExperimental("target.experimental") || IsSettingExperimental("") {
		t.Fatalf("IsSettingExperimental mismatch")
	}
}

func TestArrayOperations(t *testing.T) {
	v := NewArray(KindString)
	steps := []struct {
		op       VarSetOperation
		arg      string
		expected []string
	}{
		{OpAssign, `a "b c" d`, []string{"a", "b c", "d"}},
		{OpAppend, "e", []string{"a", "b c", "d", "e"}},
		{OpInsertBefore, "0 z", []string{"z", "a", "b c", "d", "e"}},
		{OpInsertAfter, "4 y", []string{"z", "a", "b c", "d", "e", "y"}},
		{OpReplace, "1 A B", []string{"z", "A", "B", "d", "e", "y"}},
		{OpRemove, "0 5", []string{"A", "B", "d", "e"}},
		{OpClear, "", nil},
	}
	for _, s := range steps {
		if err := v.SetValueFromString(s.op, s.arg); err != nil {
			t.Fatalf("%s %q: %v", s.op, s.arg, err)
		}
		var got []string
		for _, e := range v.Elements() {
			got = append(got, e.String())
		}
		if diff := cmp.Diff(s.expected, got); diff != "" {
			t.Fatalf("%s %q: mismatch (-want +got):\n%s", s.op, s.arg, diff)
		}
	}

	if err := v.SetValueFromString(OpRemove, "3"); err == nil {
		t.Fatalf("expected error removing from an empty array")
	}
}

func TestDictionaryAndIndexing(t *testing.T) {
	p := NewDefaultProperties()
	if err := p.SetSubValue(OpAssign, TargetSourceMap, "/build=/src /tmp/x=/home/x"); err != nil {
		t.Fatal(err)
	}
	v, err := p.GetSubValue(TargetSourceMap + "[/build]")
	if err != nil {
		t.Fatal(err)
	}
	if v.String() != "/src" {
		t.Fatalf("expected /src, got %s", v.String())
	}
	if err := p.SetSubValue(OpRemove, TargetSourceMap, "/build"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"/tmp/x"}, mustValue(t, p, TargetSourceMap).Keys()); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}

	if err := p.SetSubValue(OpAssign, "target.run-args", "-v --name=x"); err != nil {
		t.Fatal(err)
	}
	v, err = p.GetSubValue("target.run-args[-1]")
	if err != nil {
		t.Fatal(err)
	}
	if v.String() != "--name=x" {
		t.Fatalf("expected --name=x, got %s", v.String())
	}
	if _, err := p.GetSubValue("target.run-args[5]"); err == nil {
		t.Fatalf("expected out of range error")
	}
}

func mustValue(t *testing.T, p *Properties, path string) *Value {
	t.Helper()
	v, err := p.GetSubValue(path)
	if err != nil || v == nil {
		t.Fatalf("could not get %s: %v", path, err)
	}
	return v
}

func TestDump(t *testing.T) {
	p := NewDefaultProperties()
	p.SetSubValue(OpAssign, "target.run-args", "a b")

	var buf bytes.Buffer
	if err := p.DumpPropertyValue(&buf, "target.max-children-count", DumpDefault|DumpGlobalPath); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "target.max-children-count (unsigned) = 256\n" {
		t.Fatalf("unexpected dump %q", got)
	}

	buf.Reset()
	if err := p.DumpPropertyValue(&buf, "target.run-args", DumpDefault); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "run-args (array of strings) = \n  [0]: \"a\"\n  [1]: \"b\"\n" {
		t.Fatalf("unexpected dump %q", got)
	}

	buf.Reset()
	if err := p.DumpPropertyValue(&buf, "target.experimental", DumpValue|DumpGlobalPath); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != TargetInjectLocalVars+" = true\n" {
		t.Fatalf("unexpected dump %q", got)
	}

	if err := NewProperties("").DumpValue(&buf, DumpDefault); err == nil || err.Error() != "empty property list" {
		t.Fatalf("expected empty property list error, got %v", err)
	}

	buf.Reset()
	p.DumpAllDescriptions(&buf)
	if !strings.HasPrefix(buf.String(), "Top level variables:\n\n") {
		t.Fatalf("unexpected description dump %q", buf.String())
	}
	if !strings.Contains(buf.String(), "inject-local-vars") {
		t.Fatalf("description dump does not recurse into sub-collections")
	}
}

func TestApropos(t *testing.T) {
	p := NewDefaultProperties()
	var got []string
	for _, prop := range p.Apropos("TIMEOUT") {
		got = append(got, prop.Path())
	}
	if diff := cmp.Diff([]string{TSanReportTimeout}, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if len(p.Apropos("local variables")) != 1 {
		t.Fatalf("expected a description match for 'local variables'")
	}
}

func TestFlattenAndSubProperty(t *testing.T) {
	p := NewDefaultProperties()
	flat := p.Flatten()
	found := false
	for _, s := range flat {
		if s == TargetInjectLocalVars {
			found = true
		}
	}
	if !found {
		t.Fatalf("%s missing from %v", TargetInjectLocalVars, flat)
	}

	sub := p.GetSubProperty("plugin.instrumentation-runtime")
	if sub == nil {
		t.Fatalf("could not find plugin.instrumentation-runtime")
	}
	if diff := cmp.Diff([]string{"thread-sanitizer"}, sub.Names()); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if p.GetSubProperty("target.language") != nil {
		t.Fatalf("a value is not a sub-property")
	}
}

func TestForward(t *testing.T) {
	a := NewProperties("a")
	b := NewProperties("b")
	b.AppendProperty("x", "", false, NewInt(3))
	if err := a.Forward("x", b); err != nil {
		t.Fatal(err)
	}
	v, err := a.GetSubValue("x")
	if err != nil || v.Int() != 3 {
		t.Fatalf("forwarded lookup failed: %v %v", v, err)
	}
	if err := b.Forward("x", a); err == nil {
		t.Fatalf("expected a cycle to be rejected")
	}
}

func TestExperimentalForwarding(t *testing.T) {
	p := NewDefaultProperties()
	promoted := mustValue(t, p, TargetMaxChildrenCount)
	if v := mustValue(t, p, "target.experimental.max-children-count"); v != promoted {
		t.Fatalf("experimental path did not forward to the promoted setting")
	}
	if err := p.SetSubValue(OpAssign, "target.experimental.max-children-count", "12"); err != nil {
		t.Fatal(err)
	}
	if promoted.UInt() != 12 {
		t.Fatalf("expected 12 got %d", promoted.UInt())
	}

	// properties declared after the experimental collection forward too
	p.GetSubProperty("target").AppendProperty("late", "", false, NewBool(false))
	if v := mustValue(t, p, "target.experimental.late"); v.Bool() {
		t.Fatalf("unexpected value for forwarded late property")
	}
	if diff := cmp.Diff([]string{"inject-local-vars"}, p.GetSubProperty("target.experimental").Names()); diff != "" {
		t.Fatalf("forwarded names leaked into the collection (-want +got):\n%s", diff)
	}
}

func TestHookPost(t *testing.T) {
	p := NewDefaultProperties()
	v := mustValue(t, p, SymbolsTypeCacheSize)
	var seen uint64
	v.SetHookPost(func(v *Value) error {
		seen = v.UInt()
		return nil
	})
	if err := p.SetSubValue(OpAssign, SymbolsTypeCacheSize, "10"); err != nil {
		t.Fatal(err)
	}
	if seen != 10 {
		t.Fatalf("hook not called, seen %d", seen)
	}
}

func TestYAML(t *testing.T) {
	p := NewDefaultProperties()
	p.SetSubValue(OpAssign, "target.run-args", `"a b" c`)
	p.SetSubValue(OpAssign, "target.env-vars", `A=1 "B=x y"`)
	p.SetSubValue(OpAssign, "target.language", "c")
	p.SetSubValue(OpAssign, TargetInjectLocalVars, "false")

	var buf bytes.Buffer
	if err := p.SaveYAML(&buf); err != nil {
		t.Fatal(err)
	}

	q := NewDefaultProperties()
	if err := q.LoadYAML(&buf); err != nil {
		t.Fatalf("could not load %q: %v", buf.String(), err)
	}
	for _, path := range []string{"target.run-args", "target.env-vars", "target.language", TargetInjectLocalVars} {
		if a, b := mustValue(t, p, path).String(), mustValue(t, q, path).String(); a != b {
			t.Errorf("%s: expected %q got %q", path, a, b)
		}
	}

	err := q.LoadYAML(strings.NewReader("target.experimental.gone: 1\nbogus.path: 2\n"))
	if err == nil || !strings.Contains(err.Error(), "bogus.path") {
		t.Fatalf("expected an error for bogus.path only, got %v", err)
	}
}
