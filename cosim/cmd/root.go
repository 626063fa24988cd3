// Package cmd provides the command-line interface for cosim.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

var verbose bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cosim",
	Short: "cosim runs workspaces of coupled components.",
	Long: `cosim runs workspaces of coupled components. A scenario file ` +
		`lists the components and the couplings between their attributes; ` +
		`cosim builds the workspace, ticks it, and records what happens.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"log every tick")
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{Level: level}))
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Exit handlers, such as the data recorder flush, run before
// the process exits.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
