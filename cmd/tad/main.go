package main

import (
	"os"

	"github.com/studio2230704/technical-analysis-dashboard/cmd/tad/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
