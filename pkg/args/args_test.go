package args

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseQuotes(t *testing.T) {
	a := New(`a "b c"  'd'\''e'`)
	expected := []Entry{{"a", 0}, {"b c", '"'}, {"d'e", '\''}}
	if diff := cmp.Diff(expected, a.Entries()); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected []Entry
	}{
		{"empty", "", nil},
		{"only spaces", " \t  ", nil},
		{"leading spaces", "   foo bar", []Entry{{"foo", 0}, {"bar", 0}}},
		{"concatenated fragments", `"a"'b'c`, []Entry{{"abc", '"'}}},
		{"unquoted then quoted", `ab"c d"`, []Entry{{"abc d", '"'}}},
		{"lone trailing backslash", `foo\`, []Entry{{`foo\`, 0}}},
		{"escaped space", `foo\ bar baz`, []Entry{{"foo bar", 0}, {"baz", 0}}},
		{"backslash before plain char", `a\nb`, []Entry{{`a\nb`, 0}}},
		{"double quote escapes", `"a\"b\\c\d"`, []Entry{{`a"b\c\d`, '"'}}},
		{"single quote is literal", `'a\b'`, []Entry{{`a\b`, '\''}}},
		{"backtick", "`ls -l` x", []Entry{{"ls -l", '`'}, {"x", 0}}},
		{"unterminated quote", `"abc def`, []Entry{{"abc def", '"'}}},
		{"empty quoted", `"" x`, []Entry{{"", '"'}, {"x", 0}}},
		{"carriage return separates", "a\rb", []Entry{{"a", 0}, {"b", 0}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := New(tc.in)
			got := a.Entries()
			if len(got) == 0 {
				got = nil
			}
			if diff := cmp.Diff(tc.expected, got); diff != "" {
				t.Errorf("mismatch for %q (-want +got):\n%s", tc.in, diff)
			}
		})
	}
}

func TestNullTerminatedArgv(t *testing.T) {
	a := New("")
	argv := a.NullTerminatedArgv()
	if len(argv) != 1 || argv[0] != nil {
		t.Fatalf("expected a single nil sentinel, got %#v", argv)
	}

	a = New("x y")
	argv = a.NullTerminatedArgv()
	if len(argv) != 3 || *argv[0] != "x" || *argv[1] != "y" || argv[2] != nil {
		t.Fatalf("unexpected argv %#v", argv)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, in := range []string{
		`a "b c"  'd'\''e'`,
		`"with \"quotes\" and \\ slashes"`,
		`'it'\''s' "x'y" plain`,
		"`cmd` `a`\\``b`",
		`foo\ bar a\nb "tab	inside"`,
		`"" '' x`,
		`trailing\`,
		"\"cr\rin quotes\"",
	} {
		a := New(in)
		out := a.CommandString()
		b := New(out)
		if diff := cmp.Diff(a.Strings(), b.Strings()); diff != "" {
			t.Errorf("round trip of %q through %q changed arguments (-want +got):\n%s", in, out, diff)
		}
	}
}

func TestEscape(t *testing.T) {
	tests := []struct {
		text     string
		quote    byte
		expected string
	}{
		{"plain", 0, "plain"},
		{"a b", 0, `a\ b`},
		{"", 0, `""`},
		{`say "hi"`, '"', `"say \"hi\""`},
		{"it's", '\'', `'it'\''s'`},
	}
	for _, tc := range tests {
		if got := Escape(tc.text, tc.quote); got != tc.expected {
			t.Errorf("Escape(%q, %q): expected %q, got %q", tc.text, tc.quote, tc.expected, got)
		}
	}
}

func TestEditing(t *testing.T) {
	a := New("b c")
	a.Unshift("a", 0)
	a.Append("e", '"')
	a.Insert(3, "d", 0)
	a.Replace(1, "B", '\'')
	if got := a.CommandString(); got != `a 'B' c d "e"` {
		t.Fatalf("unexpected command string %q", got)
	}
	a.Shift()
	a.Delete(a.Len() - 1)
	a.Delete(100)
	if diff := cmp.Diff([]string{"B", "c", "d"}, a.Strings()); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	a.Clear()
	if !a.Empty() {
		t.Fatalf("expected empty args after Clear")
	}
}

func TestOptionsWithRaw(t *testing.T) {
	tests := []struct {
		in        string
		hasArgs   bool
		args      []string
		withDelim string
		suffix    string
	}{
		{"foo bar", false, nil, "", "foo bar"},
		{"  -x 1", false, nil, "", "  -x 1"},
		{"-x 1 -- raw text", true, []string{"-x", "1"}, "-x 1 --", "raw text"},
		{`-x "--" -- y`, true, []string{"-x", "--"}, `-x "--" --`, "y"},
		{"-g --", true, []string{"-g"}, "-g --", ""},
	}
	for _, tc := range tests {
		o := ParseOptionsWithRaw(tc.in)
		if o.HasArgs() != tc.hasArgs {
			t.Errorf("%q: expected HasArgs %v", tc.in, tc.hasArgs)
			continue
		}
		got := o.Args().Strings()
		if len(got) == 0 {
			got = nil
		}
		if diff := cmp.Diff(tc.args, got); diff != "" {
			t.Errorf("%q: args mismatch (-want +got):\n%s", tc.in, diff)
		}
		if o.ArgStringWithDelimiter() != tc.withDelim {
			t.Errorf("%q: expected delimiter string %q, got %q", tc.in, tc.withDelim, o.ArgStringWithDelimiter())
		}
		if o.RawSuffix() != tc.suffix {
			t.Errorf("%q: expected suffix %q, got %q", tc.in, tc.suffix, o.RawSuffix())
		}
	}
}

func TestIsPositionalArgument(t *testing.T) {
	for s, expected := range map[string]bool{"%1": true, "%12": true, "%": false, "%a": false, "1": false} {
		if IsPositionalArgument(s) != expected {
			t.Errorf("IsPositionalArgument(%q) != %v", s, expected)
		}
	}
}

func TestEndsInSeparator(t *testing.T) {
	for s, expected := range map[string]bool{
		"":            false,
		"load ":       true,
		"load\t":      true,
		"load":        false,
		`load a\ `:    false,
		`load a\\ `:   true,
		`load "my `:   false,
		`load "my" `:  true,
		`load 'a \' `: true,
		`load "a\" `:  false,
		"load `a `":   false,
	} {
		if EndsInSeparator(s) != expected {
			t.Errorf("EndsInSeparator(%q) != %v", s, expected)
		}
	}
}
