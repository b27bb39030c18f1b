package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "reduxctl",
		Short: "Drive a redux store from YAML scripts",
		Long: `reduxctl replays scripted actions against an in-memory store,
prints selected values as they change and can expose the store through
the devtools HTTP API.

Environment:
  REDUXCTL_LOG_LEVEL       debug, info, warn or error (default info)
  REDUXCTL_ENGINE          expression engine: expr, cel or js (default expr)
  REDUXCTL_DEVTOOLS_ADDR   listen address for --serve (default 127.0.0.1:7070)`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(runCmd(), pathsCmd(), versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "reduxctl %s (%s)\n", version, commit)
		},
	}
}
