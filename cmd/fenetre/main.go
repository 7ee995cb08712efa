// Package main is the entry point for the fenetre CLI.
//
// fenetre can be embedded as a library or run as a standalone binary with
// YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	fenetre serve -c config.yaml          # Start the dashboard
//	fenetre courses -c config.yaml        # Discover courses once and print them
//	fenetre lockbox-errors -c config.yaml # List or dismiss form filling errors
//	fenetre validate -c config.yaml       # Validate configuration
//	fenetre version                       # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "fenetre",
	Short: "Course configuration dashboard for lockbox attendance",
	Long: `fenetre shows which of your courses are ready for automatic
attendance form filling.

It asks the backend to discover your courses, polls with backoff while the
discovery is pending, and shows each course as verified, configured by
someone else, or unconfigured.

Quick start:
  1. Create a config file (fenetre.yaml)
  2. Run: fenetre serve -c fenetre.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  port: 8080
  backend:
    base_url: https://fenetre.example.com
    headers:
      Cookie: sessionid=${FENETRE_SESSION}`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this fenetre binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fenetre %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
