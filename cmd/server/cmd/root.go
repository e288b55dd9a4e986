package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// defaultRunMode mirrors config.ServerConfig.Mode without requiring a full
// config.Load() before flags are parsed, so the root command can dispatch to
// the right subcommand when invoked with no explicit verb.
func defaultRunMode() string {
	mode := os.Getenv("RUN_MODE")
	if mode == "" {
		return "api"
	}
	return mode
}

var (
	// Global flags
	logLevel  string
	logFormat string

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "server",
		Short: "Trust Directory server - restaurant inspection aggregator and API",
		Long: `Trust Directory aggregates public restaurant health-inspection data from
multiple Southern California jurisdictions, normalizes it into one comparable
Trust Score, and serves the directory through a read-oriented HTTP API.

The server supports three process modes (RUN_MODE env var, section 6):
  api           HTTP serving only, no scheduled ingestion
  worker        long-running loop, refreshing on a configurable interval
  refresh_once  one refresh pass; exits 0 on any success, 2 if every connector failed`,
		// Run serve (or refresh, for RUN_MODE=refresh_once) by default if no
		// subcommand is specified, so the RUN_MODE env var alone selects the
		// process mode in a container entrypoint.
		RunE: func(cmd *cobra.Command, args []string) error {
			if defaultRunMode() == "refresh_once" {
				return refreshCmd.RunE(cmd, args)
			}
			return serveCmd.RunE(cmd, args)
		},
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Global flags available to all subcommands
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error) (default: info)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (json, console) (default: json)")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(versionCmd)
}
