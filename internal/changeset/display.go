package changeset

import (
	"fmt"
	"io"
	"strings"
)

const maxDisplayChanges = 20

// PrintSummary prints a human-readable change summary to the writer.
func PrintSummary(w io.Writer, cs *SessionChangeset) {
	if cs == nil {
		return
	}

	totalChanges := 0
	for _, dc := range cs.Drives {
		totalChanges += len(dc.Changes)
	}

	if totalChanges == 0 && len(cs.Programs) == 0 {
		_, _ = fmt.Fprintln(w, "\nNo changes detected.")
		return
	}

	_, _ = fmt.Fprintln(w, "\nSession Changes")
	_, _ = fmt.Fprintln(w, strings.Repeat("─", 40))

	if len(cs.Programs) > 0 {
		_, _ = fmt.Fprintf(w, "\nPrograms run: %s\n", strings.Join(cs.Programs, ", "))
	}

	for _, dc := range cs.Drives {
		if len(dc.Changes) == 0 {
			continue
		}
		_, _ = fmt.Fprintf(w, "\nDrive %s: (%s):\n", dc.Letter, dc.Source)
		printChanges(w, dc.Changes)
	}

	if totalChanges == 0 {
		_, _ = fmt.Fprintln(w, "\nNo file changes.")
	}
}

// printChanges prints individual file changes, summarizing if >maxDisplayChanges
func printChanges(w io.Writer, changes []Change) {
	if len(changes) > maxDisplayChanges {
		// Show the first 5 across types, then summary
		created, modified, deleted := categorize(changes)
		shown := 0
		for _, group := range [][]Change{created, modified, deleted} {
			for _, c := range group {
				if shown >= 5 {
					break
				}
				printChange(w, c)
				shown++
			}
		}
		_, _ = fmt.Fprintf(w, "  (%d changes total: %d created, %d modified, %d deleted)\n",
			len(changes), len(created), len(modified), len(deleted))
		return
	}
	for _, c := range changes {
		printChange(w, c)
	}
}

// printChange prints a single change line
func printChange(w io.Writer, c Change) {
	path := dosPath(c.Path)
	switch c.Type {
	case Created:
		_, _ = fmt.Fprintf(w, "  + %-50s (%s)\n", path, formatSize(c.NewSize))
	case Modified:
		_, _ = fmt.Fprintf(w, "  ~ %-50s (%s → %s)\n", path, formatSize(c.OldSize), formatSize(c.NewSize))
	case Deleted:
		_, _ = fmt.Fprintf(w, "  - %s\n", path)
	}
}

// dosPath shows a drive-relative path the way DOS would
func dosPath(rel string) string {
	return `\` + strings.ToUpper(strings.ReplaceAll(rel, "/", `\`))
}

// categorize splits changes into created/modified/deleted slices
func categorize(changes []Change) (created, modified, deleted []Change) {
	for _, c := range changes {
		switch c.Type {
		case Created:
			created = append(created, c)
		case Modified:
			modified = append(modified, c)
		case Deleted:
			deleted = append(deleted, c)
		}
	}
	return
}

// formatSize returns a human-readable file size
func formatSize(bytes int64) string {
	switch {
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
