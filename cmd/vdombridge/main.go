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
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vdombridge",
		Short: "Serve live state over WebSocket",
		Long: `vdombridge keeps per-client application state on the server,
renders it to a virtual DOM tree and pushes every new tree to the
connected client. The client answers with actions that drive the
next state transition.

Configuration comes from VDOMBRIDGE_* environment variables;
command-line flags take precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)
	return rootCmd
}
