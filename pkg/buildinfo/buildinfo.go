package buildinfo

import (
	"runtime"
	"runtime/debug"
	"strings"
)

// BinaryVersion is set at build time via -ldflags. Defaults to "dev".
var BinaryVersion = "dev"

// ModuleVersion returns the module version embedded by the Go toolchain (when available).
func ModuleVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return ""
}

// Version is the version shown in commit messages and the version command:
// the ldflags value, else the module version without its "v", else "dev".
func Version() string {
	if BinaryVersion != "" && BinaryVersion != "dev" {
		return strings.TrimPrefix(BinaryVersion, "v")
	}
	if mv := ModuleVersion(); mv != "" {
		return strings.TrimPrefix(mv, "v")
	}
	return "dev"
}

// GoVersion returns the runtime Go version, recorded in crash reports.
func GoVersion() string {
	return runtime.Version()
}
