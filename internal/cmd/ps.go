package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/faize-ai/coalface/internal/session"
)

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List DOS sessions",
	Long:  `List recorded Coalface sessions with their status, drives and programs.`,
	RunE:  runPs,
}

func init() {
	rootCmd.AddCommand(psCmd)
}

func runPs(cmd *cobra.Command, args []string) error {
	store, err := session.NewStore()
	if err != nil {
		return fmt.Errorf("failed to access session store: %w", err)
	}

	records, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		_, _ = fmt.Fprintln(out, "No sessions.")
		return nil
	}

	// Create tabwriter for aligned output
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tDRIVES\tPROGRAMS\tSTATUS\tSTARTED")
	_, _ = fmt.Fprintln(w, "--\t------\t--------\t------\t-------")

	for _, rec := range records {
		started := rec.StartedAt.Format("2006-01-02 15:04:05")
		status := rec.Status
		if rec.ExitReason != "" {
			status += " (" + rec.ExitReason + ")"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			rec.ID,
			driveList(rec.Drives),
			len(rec.Programs),
			status,
			started,
		)
	}

	_ = w.Flush()
	return nil
}

// driveList renders drives as "C: D:"
func driveList(drives []session.VirtualDrive) string {
	if len(drives) == 0 {
		return "-"
	}
	letters := make([]string, len(drives))
	for i, d := range drives {
		letters[i] = d.Letter() + ":"
	}
	return strings.Join(letters, " ")
}
