// Package version provides application version and build info.
package version

import (
	"fmt"
	"runtime/debug"
)

// Overridable by ldflags at build time.
var (
	Version    = "dev"
	CommitHash = ""
)

// GetInfo returns the version string, with the short commit hash when known.
func GetInfo() string {
	if CommitHash == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range info.Settings {
				if setting.Key == "vcs.revision" {
					CommitHash = setting.Value
				}
			}
		}
	}

	res := Version
	if hash := CommitHash; hash != "" {
		if len(hash) > 7 {
			hash = hash[:7]
		}
		res += fmt.Sprintf(" (%s)", hash)
	}
	return res
}
