package cmd

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set by -ldflags on release builds; a plain `go build` falls back to
// the module's VCS stamp below.
var (
	Version   = "dev"
	CommitSHA = ""
	BuildDate = ""
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Run: func(cmd *cobra.Command, args []string) {
		commit, date := CommitSHA, BuildDate
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					if commit == "" {
						commit = s.Value
					}
				case "vcs.time":
					if date == "" {
						date = s.Value
					}
				}
			}
		}

		fmt.Printf("facegroups %s (%s)\n", Version, runtime.Version())
		if commit != "" {
			fmt.Printf("  Commit: %s\n", commit)
		}
		if date != "" {
			fmt.Printf("  Built:  %s\n", date)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
