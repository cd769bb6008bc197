package version

import (
	"runtime/debug"
)

// Set at build time with -ldflags "-X .../internal/version.Version=..."
var Version = "dev"

// GetVersion returns the linked version, or the module version when installed with
// go install.
func GetVersion() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}
