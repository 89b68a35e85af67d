package cmd

import (
	"runtime"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X .../cmd/tad/cmd.version=v1.2.3".
var (
	version = "dev"
	commit  = "none"
)

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print version information",
	Annotations: map[string]string{"config": "skip"},
	Run: func(cmd *cobra.Command, args []string) {
		printf(cmd, "tad %s (%s) %s %s/%s\n", version, commit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
