package terminal

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/go-delve/nativedbg/pkg/config"
	"github.com/go-delve/nativedbg/pkg/proc/core/minidump"
	"github.com/go-delve/nativedbg/pkg/settings"
)

const amd64ContextSize = 1232

func newTestTerm(t *testing.T, conf *config.Config) (*Term, *bytes.Buffer) {
	t.Helper()
	sess := NewSession(settings.NewDefaultProperties())
	term := New(sess, conf)
	var out bytes.Buffer
	term.SetOutput(&out)
	t.Cleanup(func() { sess.Close() })
	return term, &out
}

func writeCore(t *testing.T) string {
	t.Helper()
	w := &minidump.Writer{
		SystemInfo: &minidump.SystemInfo{Arch: minidump.CpuArchitectureAMD64, Level: 6},
		HasPid:     true,
		Pid:        1234,
		Threads: []minidump.Thread{
			{ID: 0x10, Context: make([]byte, amd64ContextSize)},
			{ID: 0x11, Context: make([]byte, amd64ContextSize)},
		},
		Modules: []minidump.Module{
			{BaseOfImage: 0x400000, SizeOfImage: 0x10000, Name: `C:\app\crash.exe`},
		},
		Exception: &minidump.Exception{ThreadID: 0x11, Code: 0xc0000005, Address: 0x401000},
		MemoryRanges: []minidump.MemoryRange{
			{Addr: 0x401000, Data: []byte{0x48, 0x8b, 0x00, 'h', 'i'}},
		},
	}
	path := filepath.Join(t.TempDir(), "crash.dmp")
	if err := w.WriteFile(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func call(t *testing.T, term *Term, out *bytes.Buffer, cmdstr string) string {
	t.Helper()
	out.Reset()
	if err := term.Call(cmdstr); err != nil {
		t.Fatalf("%q: %v", cmdstr, err)
	}
	return out.String()
}

func TestCoreCommands(t *testing.T) {
	term, out := newTestTerm(t, nil)

	if err := term.Call("threads"); err != errNoCore {
		t.Fatalf("expected %v got %v", errNoCore, err)
	}

	got := call(t, term, out, "core "+writeCore(t))
	for _, want := range []string{
		"x86_64-pc-windows, pid 1234, 2 threads, 1 modules",
		"Thread 17: stop reason = Exception 0xc0000005 encountered at address 0x401000",
		"mov rax, qword ptr [rax]",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in output:\n%s", want, got)
		}
	}

	got = call(t, term, out, "threads")
	if !strings.Contains(got, "* Thread 17") || !strings.Contains(got, "  Thread 16 teb 0x0") {
		t.Errorf("unexpected threads output:\n%s", got)
	}

	got = call(t, term, out, "x 0x401003 2")
	if got != "0x0000000000401003: 68 69\n" {
		t.Errorf("unexpected memory output %q", got)
	}

	got = call(t, term, out, "mod")
	if !strings.Contains(got, `C:\app\crash.exe`) || !strings.Contains(got, "no symbols") {
		t.Errorf("unexpected modules output %q", got)
	}
	if got := call(t, term, out, "modules other.dll"); got != "" {
		t.Errorf("filter did not exclude the module: %q", got)
	}
}

func TestSettingsCommand(t *testing.T) {
	term, out := newTestTerm(t, nil)

	call(t, term, out, "settings set target.max-children-count 12")
	if got := term.sess.Props.GetUInt(settings.TargetMaxChildrenCount, 0); got != 12 {
		t.Fatalf("expected 12 got %d", got)
	}
	got := call(t, term, out, "settings show target.max-children-count")
	if !strings.Contains(got, "max-children-count (unsigned) = 12") {
		t.Errorf("unexpected output %q", got)
	}
	got = call(t, term, out, "settings apropos sanitizer")
	if !strings.Contains(got, settings.TSanReportTimeout) {
		t.Errorf("unexpected apropos output %q", got)
	}
	if err := term.Call("settings set target.no-such-setting 1"); err == nil {
		t.Errorf("expected an error for an unknown setting")
	}
	if err := term.Call("settings frobnicate x"); err == nil {
		t.Errorf("expected an error for an unknown operation")
	}
}

func TestComplete(t *testing.T) {
	term, _ := newTestTerm(t, nil)
	for _, tc := range []struct {
		line  string
		start int
		want  []string
	}{
		{"se", 0, []string{"set", "settings"}},
		{"settings sh", 9, []string{"show"}},
		{"settings set target.max-ch", 13, []string{"target.max-children-count"}},
		{"threads ", 8, nil},
	} {
		start, got := term.cmds.Complete(term, tc.line, len(tc.line))
		if start != tc.start {
			t.Errorf("%q: expected start %d got %d", tc.line, tc.start, start)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("%q: completions mismatch (-want +got):\n%s", tc.line, diff)
		}
	}

	head, completions, tail := term.wordCompleter("settings sh more", 11)
	if head != "settings " || tail != " more" || len(completions) != 1 {
		t.Errorf("unexpected word completion %q %q %q", head, completions, tail)
	}
}

func TestFindCommand(t *testing.T) {
	term, out := newTestTerm(t, &config.Config{Aliases: map[string][]string{"exception": {"why"}}})

	if err := term.Call("frobnicate"); err != errNoCmd {
		t.Fatalf("expected %v got %v", errNoCmd, err)
	}
	// ambiguous prefix
	if err := term.Call("e"); err != errNoCmd {
		t.Fatalf("expected %v got %v", errNoCmd, err)
	}
	if err := term.Call("why"); err != errNoCore {
		t.Fatalf("expected the configured alias to run exception, got %v", err)
	}
	if _, ok := term.Call("exit").(ExitRequestError); !ok {
		t.Fatalf("expected an exit request")
	}
	got := call(t, term, out, "help")
	if !strings.Contains(got, "exception (alias: stop | why)") {
		t.Errorf("alias missing from help:\n%s", got)
	}
}

func TestWrapCommand(t *testing.T) {
	term, out := newTestTerm(t, nil)
	got := call(t, term, out, "wrap --lang c --name f x + 1")
	for _, want := range []string{"f(void *$__lldb_arg)", "/*LLDB_BODY_START*/", "x + 1"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in:\n%s", want, got)
		}
	}
	if err := term.Call("wrap --lang cobol x"); err == nil {
		t.Errorf("expected an error for an unknown language")
	}
}

func TestShell(t *testing.T) {
	term, out := newTestTerm(t, nil)
	got := call(t, term, out, "!echo hello | tr a-z A-Z")
	if got != "HELLO\n" {
		t.Errorf("expected \"HELLO\\n\" got %q", got)
	}
	if err := term.Call("!echo `date`"); err == nil || !strings.Contains(err.Error(), "backtick not supported") {
		t.Errorf("expected backtick error, got %v", err)
	}
}
