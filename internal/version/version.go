// Package version reports the build identity of the texbuilder binary.
package version

import "runtime/debug"

// Version is set at link time:
//
//	go build -ldflags "-X git.home.luguber.info/inful/texbuilder/internal/version.Version=v1.4.0"
//
// When unset it falls back to the module version recorded by go install.
var Version = "unknown"

// Link-time build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var readBuildInfo = debug.ReadBuildInfo

// Resolved returns Version, or the main module version when Version was not
// set at link time.
func Resolved() string {
	if Version != "unknown" {
		return Version
	}
	if info, ok := readBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}

// String renders the version line printed by the version command.
func String() string {
	return "texbuilder " + Resolved() + " (commit " + GitCommit + ", built " + BuildTime + ")"
}
