package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/faize-ai/coalface/internal/changeset"
	"github.com/faize-ai/coalface/internal/session"
)

var diffJSON bool

var diffCmd = &cobra.Command{
	Use:   "diff [session-id]",
	Short: "Show changes from a session",
	Long: `Show file changes DOS programs made during a coalface session.

If no session-id is given, shows changes from the most recent session.

Examples:
  coalface diff
  coalface diff abc123
  coalface diff --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().BoolVar(&diffJSON, "json", false, "output in JSON format")
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	store, err := session.NewStore()
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	return showDiff(cmd, store, args)
}

func showDiff(cmd *cobra.Command, store *session.Store, args []string) error {
	var sessionID string
	if len(args) > 0 {
		sessionID = args[0]
	} else {
		var err error
		sessionID, err = findMostRecentSession(store)
		if err != nil {
			return err
		}
	}

	changesetPath := filepath.Join(store.SessionDir(sessionID), "changeset.json")
	cs, err := changeset.LoadChangeset(changesetPath)
	if err != nil {
		return fmt.Errorf("no changeset found for session %s: %w", sessionID, err)
	}

	out := cmd.OutOrStdout()
	if diffJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(cs)
	}

	changeset.PrintSummary(out, cs)
	return nil
}

// findMostRecentSession returns the ID of the most recently started session.
func findMostRecentSession(store *session.Store) (string, error) {
	records, err := store.List()
	if err != nil {
		return "", fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(records) == 0 {
		return "", fmt.Errorf("no sessions found")
	}

	// List returns newest first
	return records[0].ID, nil
}
