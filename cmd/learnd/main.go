// Learnd is the learning daemon for a personal assistant: it detects
// user corrections, distills them into versioned learned preferences,
// tracks action outcomes, and calibrates the assistant's explicit
// predictions against later observations.
//
// Usage:
//
//	# Start the HTTP server with defaults
//	learnd serve
//
//	# Start with a config file
//	learnd serve --config learnd.yaml
//
//	# Expire stale pending expectations
//	learnd sweep --hours 48
//
// Configuration comes from an optional YAML file plus LEARND_* environment
// variables (e.g. LEARND_SERVER_PORT=8080).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "learnd",
	Short: "Closed-loop learning daemon for a personal assistant",
	Long: `learnd detects user corrections, turns them into durable learned
preferences with a reinforce-or-supersede lifecycle, tracks what happens
to assistant actions, and scores the assistant's explicit predictions.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("learnd\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
