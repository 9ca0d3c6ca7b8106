// Package version exposes build metadata for the athenian binary.
package version

import "runtime/debug"

// These are overridden at build time via -ldflags.
var (
	// Version is the semantic version of the binary.
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "<unknown>"

	// Date is the build timestamp.
	Date = "<unknown>"
)

// InitBinaryVersion fills in missing build metadata from the embedded
// module build info when ldflags did not set it.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && Commit == "<unknown>" {
			Commit = setting.Value
		}

		if setting.Key == "vcs.time" && Date == "<unknown>" {
			Date = setting.Value
		}
	}
}
