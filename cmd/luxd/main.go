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
	rootCmd := &cobra.Command{
		Use:   "luxd",
		Short: "Serve a lux router over HTTP/1.1",
		Long: `luxd runs the lux demo application on the lux HTTP/1.1 server.

Configuration is read from an optional file (--config) and LUX_*
environment variables, e.g. LUX_SERVER_ADDR=127.0.0.1:8080.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to a config file (yaml, json or toml)")

	rootCmd.AddCommand(
		serveCmd(),
		routesCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "luxd %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
