package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/faize-ai/coalface/internal/config"
	"github.com/faize-ai/coalface/internal/input"
)

var layoutCmd = &cobra.Command{
	Use:   "layout [host-layout-id]",
	Short: "Show the DOS keyboard layout for a host layout",
	Long: `Translate a host keyboard layout identifier into the DOS layout code.

Without an argument the layout from the config file is used. Unknown layouts
fall back to US.

Examples:
  coalface layout com.apple.keylayout.French
  coalface layout de`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLayout,
}

func init() {
	rootCmd.AddCommand(layoutCmd)
}

func runLayout(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	id := cfg.Keyboard.Layout
	if len(args) > 0 {
		id = args[0]
	}

	layouts := input.NewLayouts(cfg.Keyboard.Overrides)
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", id, layouts.Code(id))
	return nil
}
