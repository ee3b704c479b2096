package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/faize-ai/coalface/internal/config"
	"github.com/faize-ai/coalface/internal/mount"
	"github.com/faize-ai/coalface/internal/session"
)

var checkCmd = &cobra.Command{
	Use:   "check <path>",
	Short: "Check whether a host folder may be mounted",
	Long: `Check a host folder against the configured filesystem policy.

Prints whether DOS may mount the folder and, if not, why. The folder's name is
also checked against the hidden-file rules used for directory listings.

Examples:
  coalface check ~/DOS/games
  coalface check /etc`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	rules, err := buildRules(cfg)
	if err != nil {
		return err
	}
	policy := mount.NewPolicy(session.New(), rules)

	out := cmd.OutOrStdout()
	path := args[0]
	if err := rules.Validator.ValidatePath(path); err != nil {
		_, _ = fmt.Fprintf(out, "mount: denied (%v)\n", err)
	} else {
		_, _ = fmt.Fprintln(out, "mount: allowed")
	}

	visible := "yes"
	if !policy.ShouldShow(filepath.Base(path)) {
		visible = "no"
	}
	_, _ = fmt.Fprintf(out, "visible in listings: %s\n", visible)
	return nil
}
