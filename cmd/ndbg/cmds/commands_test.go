package cmds

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-delve/nativedbg/pkg/proc/core/minidump"
	"github.com/go-delve/nativedbg/pkg/settings"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	root := New()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "ndbg Debugger\nVersion: 0.3.0"), out)
}

func TestWrap(t *testing.T) {
	out, err := run(t, "wrap", "--lang", "c++", "-n", "g", "a", "+", "b")
	require.NoError(t, err)
	require.Contains(t, out, "$__lldb_class::g(void *$__lldb_arg)")
	require.Contains(t, out, "a + b")

	_, err = run(t, "wrap", "--lang", "fortran", "x")
	require.Error(t, err)
}

func TestSettings(t *testing.T) {
	out, err := run(t, "settings", "set", settings.TargetMaxChildrenCount, "7")
	require.NoError(t, err)
	require.Contains(t, out, "max-children-count (unsigned) = 7")

	out, err = run(t, "settings", "apropos", "sanitizer")
	require.NoError(t, err)
	require.Contains(t, out, settings.TSanReportTimeout)

	// the default configuration file is applied
	out, err = run(t, "settings", "show", settings.TargetDebugFileSearchPaths)
	require.NoError(t, err)
	require.Contains(t, out, "/usr/lib/debug/.build-id")
}

func TestComplete(t *testing.T) {
	out, err := run(t, "complete", "settings sh")
	require.NoError(t, err)
	require.Equal(t, "show\n", out)
}

func TestMinidump(t *testing.T) {
	w := &minidump.Writer{
		SystemInfo: &minidump.SystemInfo{Arch: minidump.CpuArchitectureAMD64, Level: 6},
		Threads:    []minidump.Thread{{ID: 0x10, Context: make([]byte, 1232)}},
		Modules:    []minidump.Module{{BaseOfImage: 0x400000, SizeOfImage: 0x1000, Name: `C:\app\crash.exe`}},
		Exception:  &minidump.Exception{ThreadID: 0x10, Code: 0xc0000005, Address: 0x401000},
		MemoryRanges: []minidump.MemoryRange{
			{Addr: 0x401000, Data: []byte{0x48, 0x8b, 0x00}},
		},
	}
	path := filepath.Join(t.TempDir(), "crash.dmp")
	require.NoError(t, w.WriteFile(path))

	out, err := run(t, "minidump", path)
	require.NoError(t, err)
	require.Contains(t, out, "Exception 0xc0000005 encountered at address 0x401000")
	require.Contains(t, out, "mov rax, qword ptr [rax]")
	require.Contains(t, out, `C:\app\crash.exe`)

	_, err = run(t, "minidump", filepath.Join(t.TempDir(), "missing.dmp"))
	require.Error(t, err)
}

func TestDwarfMissingFile(t *testing.T) {
	_, err := run(t, "dwarf", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestCompleteMask(t *testing.T) {
	out, err := run(t, "complete", "--mask", "arch", "x86")
	require.NoError(t, err)
	require.Equal(t, "x86_64\n", out)

	out, err = run(t, "complete", "--mask", "settings-name", "target.max-ch")
	require.NoError(t, err)
	require.Equal(t, settings.TargetMaxChildrenCount+"\n", out)

	_, err = run(t, "complete", "--mask", "bogus", "x")
	require.Error(t, err)
}
