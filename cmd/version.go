package cmd

import (
	"fmt"
	"runtime"

	"github.com/ethpandaops/userop-simulator/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Prints the version of userop-simulator.",
	Long:  `Prints the version of userop-simulator.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Version: %s\nCommit: %s\nOS/Arch: %s/%s\n",
			version.GetRelease(), version.GetGitCommit(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
