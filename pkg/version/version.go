package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Version represents the current version of ndbg.
type Version struct {
	Major    string
	Minor    string
	Patch    string
	Metadata string
	Build    string
}

// NdbgVersion is the current version of ndbg.
var NdbgVersion = Version{
	Major: "0", Minor: "3", Patch: "0", Metadata: "",
	Build: "$Id$",
}

func (v Version) String() string {
	fixBuild(&v)
	ver := fmt.Sprintf("Version: %s.%s.%s", v.Major, v.Minor, v.Patch)
	if v.Metadata != "" {
		ver += "-" + v.Metadata
	}
	return fmt.Sprintf("%s\nBuild: %s", ver, v.Build)
}

// BuildInfo returns the Go version ndbg was built with followed by the
// module and its dependencies.
func BuildInfo() string {
	var sb strings.Builder
	sb.WriteString(runtime.Version())
	sb.WriteString("\n")
	info, ok := debug.ReadBuildInfo()
	if !ok {
		sb.WriteString("not built in module mode")
		return sb.String()
	}
	fmt.Fprintf(&sb, " mod\t%s\t%s\t%s\n", info.Main.Path, info.Main.Version, info.Main.Sum)
	for _, dep := range info.Deps {
		fmt.Fprintf(&sb, " dep\t%s\t%s\t%s", dep.Path, dep.Version, dep.Sum)
		if r := dep.Replace; r != nil {
			fmt.Fprintf(&sb, "\t=> %s\t%s\t%s", r.Path, r.Version, r.Sum)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// fixBuild fills the build of v from the VCS revision recorded by the Go
// toolchain, unless it was set at link time.
func fixBuild(v *Version) {
	if !strings.HasPrefix(v.Build, "$Id$") {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			v.Build = setting.Value
			return
		}
	}
}
