package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/faize-ai/coalface/internal/session"
)

var pruneAll bool

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Clean up recorded sessions",
	Long: `Remove recorded sessions and their saved changesets.

By default only stopped sessions are removed. Use --all to also remove
sessions still marked as running, for example after a crash.`,
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)
	pruneCmd.Flags().BoolVarP(&pruneAll, "all", "a", false, "remove all sessions (including running)")
}

func runPrune(cmd *cobra.Command, args []string) error {
	store, err := session.NewStore()
	if err != nil {
		return fmt.Errorf("failed to access session store: %w", err)
	}
	return prune(cmd, store, pruneAll)
}

func prune(cmd *cobra.Command, store *session.Store, all bool) error {
	out := cmd.OutOrStdout()

	records, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	removedCount := 0
	for _, rec := range records {
		if !all && rec.Status != session.StatusStopped {
			continue
		}
		if err := store.Delete(rec.ID); err != nil {
			_, _ = fmt.Fprintf(out, "Warning: failed to delete session %s: %v\n", rec.ID, err)
			continue
		}
		_, _ = fmt.Fprintf(out, "Removed session: %s\n", rec.ID)
		removedCount++
	}

	if removedCount == 0 {
		_, _ = fmt.Fprintln(out, "No sessions to remove.")
	} else {
		_, _ = fmt.Fprintf(out, "Removed %d session(s).\n", removedCount)
	}
	return nil
}
