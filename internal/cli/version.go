package cli

import (
	"fmt"

	"github.com/maloquacious/semver"
	"github.com/spf13/cobra"
)

var (
	version = semver.Version{
		Major: 0,
		Minor: 3,
		Patch: 0,
		Build: semver.Commit(),
	}

	showBuildInfo bool
)

// Version returns the incidentlens version
func Version() semver.Version {
	return version
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number and build information for IncidentLens.`,
	Run: func(cmd *cobra.Command, args []string) {
		if showBuildInfo {
			fmt.Println(Version().String())
			return
		}
		fmt.Println(Version().Core())
	},
}

func init() {
	versionCmd.Flags().BoolVar(&showBuildInfo, "build-info", false, "include build metadata")
	rootCmd.AddCommand(versionCmd)
}
