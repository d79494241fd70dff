package cli

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Stamped with -ldflags "-X github.com/lazypower/mem/internal/cli.Version=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		version, commit := buildVersion()
		fmt.Fprintf(cmd.OutOrStdout(), "mem %s (commit: %s, built: %s, %s)\n", version, commit, BuildDate, runtime.Version())
	},
}

// buildVersion falls back to the module build info for `go install` builds,
// which carry no ldflags.
func buildVersion() (version, commit string) {
	version, commit = Version, Commit
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version, commit
	}
	if version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
	if commit == "unknown" {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				commit = s.Value[:7]
			}
		}
	}
	return version, commit
}

// VersionString is the version reported by the health endpoint.
func VersionString() string {
	version, commit := buildVersion()
	return fmt.Sprintf("%s (%s)", version, commit)
}
