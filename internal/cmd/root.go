package cmd

import (
	"github.com/spf13/cobra"

	"github.com/faize-ai/coalface/internal/logger"
)

var (
	cfgFile string
	debug   bool
)

// Debug prints a message if debug mode is enabled
func Debug(format string, args ...interface{}) {
	logger.Debugf("cmd", format, args...)
}

var rootCmd = &cobra.Command{
	Use:   "coalface",
	Short: "Coalface - host side of an embedded DOS emulator",
	Long: `Coalface supervises an embedded DOS emulator: it decides what the
emulator may mount and write, intercepts shell commands, and records what each
session did.

Run a scripted session:
  coalface run --drive C:~/DOS/games --script session.yaml

Check whether a folder may be mounted:
  coalface check ~/DOS/games

List and clean up recorded sessions:
  coalface ps
  coalface diff
  coalface prune`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Switch on debug output for subpackages
		if debug {
			logger.SetEnabled(true)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.coalface/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}
