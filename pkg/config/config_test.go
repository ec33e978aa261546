package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-delve/nativedbg/pkg/settings"
)

const testConfig = `
settings:
  target.max-children-count: 12
  target.language: swift
  target.experimental.no-such-setting: 1
aliases:
  settings: ["set"]
substitute-path:
  - {from: /build, to: /src}
debug-info-directories: ["/usr/lib/debug", "/opt/debug"]
tsan-timeout: 500
history-size: 10
`

func TestApply(t *testing.T) {
	c, err := Parse([]byte(testConfig))
	if err != nil {
		t.Fatal(err)
	}
	if c.HistorySize != 10 || len(c.Aliases["settings"]) != 1 {
		t.Fatalf("unexpected config %#v", c)
	}
	props := settings.NewDefaultProperties()
	if err := c.Apply(props); err != nil {
		t.Fatal(err)
	}
	if got := props.GetUInt(settings.TargetMaxChildrenCount, 0); got != 12 {
		t.Errorf("expected 12 got %d", got)
	}
	if got := props.GetString(settings.TargetLanguage, ""); got != "swift" {
		t.Errorf("expected swift got %q", got)
	}
	if got := props.GetUInt(settings.TSanReportTimeout, 0); got != 500 {
		t.Errorf("expected 500 got %d", got)
	}
	v, err := props.GetSubValue(settings.TargetSourceMap + "[/build]")
	if err != nil || v == nil {
		t.Fatalf("source map entry missing: %v", err)
	}
	v, err = props.GetSubValue(settings.TargetDebugFileSearchPaths + "[1]")
	if err != nil || v == nil {
		t.Fatalf("debug file search path missing: %v", err)
	}
}

func TestApplyUnknownSetting(t *testing.T) {
	c := &Config{Settings: map[string]interface{}{
		"target.no-such-setting":    "1",
		"target.max-children-count": "3",
	}}
	props := settings.NewDefaultProperties()
	if err := c.Apply(props); err == nil {
		t.Fatal("expected an error for an unknown setting")
	}
	if got := props.GetUInt(settings.TargetMaxChildrenCount, 0); got != 3 {
		t.Errorf("valid settings not applied: expected 3 got %d", got)
	}
}

func TestLoadConfigCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	c := LoadConfig()
	if len(c.DebugInfoDirectories) != 1 || c.DebugInfoDirectories[0] != "/usr/lib/debug/.build-id" {
		t.Fatalf("unexpected default config %#v", c)
	}
	if _, err := os.Stat(filepath.Join(dir, "ndbg", "config.yml")); err != nil {
		t.Fatalf("default config not written: %v", err)
	}

	c.HistorySize = 42
	if err := SaveConfig(c); err != nil {
		t.Fatal(err)
	}
	if c := LoadConfig(); c.HistorySize != 42 {
		t.Fatalf("expected 42 got %d", c.HistorySize)
	}
}
