// Package version holds build metadata injected via -ldflags.
package version

import "runtime/debug"

// Build metadata, overridden at link time:
//
//	-X github.com/Sumatoshi-tech/issuetrend/pkg/version.Version=v1.2.3
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// revisionKey is the build setting holding the VCS commit.
const revisionKey = "vcs.revision"

// InitBinaryVersion fills unset metadata from the embedded module build info,
// which covers binaries built with go install.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	apply(info)
}

func apply(info *debug.BuildInfo) {
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	if Commit != "none" {
		return
	}

	for _, s := range info.Settings {
		if s.Key == revisionKey && s.Value != "" {
			Commit = s.Value
		}
	}
}

// String renders the metadata on one line.
func String() string {
	return Version + " (commit: " + Commit + ", built: " + Date + ")"
}
