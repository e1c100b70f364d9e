// Package commands implements the dayshift CLI commands using cobra.
package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is set at build time
	Version = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:   "dayshift",
	Short: "AI-powered personal task assistant",
	Long: `Dayshift captures the things you need to do, in your own words, and
turns them into prioritized, actionable tasks.

Speak or type a capture, ask "what should I do right now", let the
assistant break tasks into steps, draft emails, research options, and
schedule work around your calendar.`,
	Version: Version,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file path (default ~/.config/dayshift/dayshift.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose output")
}
