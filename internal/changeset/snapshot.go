package changeset

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// largeDir is the child count above which a directory is summarized instead
// of walked
const largeDir = 500

// FileEntry records a single file's metadata at snapshot time.
type FileEntry struct {
	Path    string      `json:"path"`
	Size    int64       `json:"size"`
	ModTime time.Time   `json:"mod_time"`
	Mode    os.FileMode `json:"mode"`
	IsDir   bool        `json:"is_dir"`
	// For summarized directories: count of children
	ChildCount int `json:"child_count,omitempty"`
}

// Snapshot is a map of relative paths to FileEntry.
type Snapshot map[string]FileEntry

// Filter decides whether an entry name is part of the snapshot. Host
// artifacts DOS cannot see are left out so they never show up as changes.
type Filter func(name string) bool

// Take walks a drive's backing root and returns a Snapshot.
// - Entries rejected by show are skipped, directories with their contents
// - A directory with more than 500 direct children is recorded with its child count and not walked
// - All paths are relative to root
func Take(root string, show Filter) (Snapshot, error) {
	snap := make(Snapshot)

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		// Skip the root itself
		if rel == "." {
			return nil
		}

		if show != nil && !show(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		entry := FileEntry{
			Path:    filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Mode:    info.Mode(),
			IsDir:   d.IsDir(),
		}

		// For directories, check child count before deciding to recurse
		if d.IsDir() {
			children, err := os.ReadDir(path)
			if err != nil {
				return err
			}
			entry.ChildCount = len(children)

			if entry.ChildCount > largeDir {
				snap[entry.Path] = entry
				return filepath.SkipDir
			}
		}

		snap[entry.Path] = entry
		return nil
	})
	if err != nil {
		return nil, err
	}

	return snap, nil
}

// ChangeType is the kind of change to a file
type ChangeType string

// List of change types
const (
	Created  ChangeType = "created"
	Modified ChangeType = "modified"
	Deleted  ChangeType = "deleted"
)

// Change represents a single file change.
type Change struct {
	Path    string     `json:"path"` // relative to drive root
	Type    ChangeType `json:"type"`
	OldSize int64      `json:"old_size,omitempty"`
	NewSize int64      `json:"new_size,omitempty"`
}

// Diff compares two snapshots and returns changes.
// - Files in after but not before = Created
// - Files in before but not after = Deleted
// - Files in both but with different size or modtime = Modified (directories only by child count)
func Diff(before, after Snapshot) []Change {
	var changes []Change

	// Check for created and modified
	for path, afterEntry := range after {
		beforeEntry, exists := before[path]
		if !exists {
			changes = append(changes, Change{
				Path:    path,
				Type:    Created,
				NewSize: afterEntry.Size,
			})
			continue
		}
		if afterEntry.IsDir {
			if beforeEntry.ChildCount > largeDir && beforeEntry.ChildCount != afterEntry.ChildCount {
				changes = append(changes, Change{Path: path, Type: Modified})
			}
			continue
		}
		if beforeEntry.Size != afterEntry.Size || !beforeEntry.ModTime.Equal(afterEntry.ModTime) {
			changes = append(changes, Change{
				Path:    path,
				Type:    Modified,
				OldSize: beforeEntry.Size,
				NewSize: afterEntry.Size,
			})
		}
	}

	// Check for deleted
	for path, beforeEntry := range before {
		if _, exists := after[path]; !exists {
			changes = append(changes, Change{
				Path:    path,
				Type:    Deleted,
				OldSize: beforeEntry.Size,
			})
		}
	}

	// Sort by path for deterministic output
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Path < changes[j].Path
	})

	return changes
}

// DriveChanges groups changes by drive.
type DriveChanges struct {
	Letter  string   `json:"letter"`
	Source  string   `json:"source"` // host path
	Changes []Change `json:"changes"`
}

// SessionChangeset is the complete changeset for a session.
type SessionChangeset struct {
	SessionID string         `json:"session_id"`
	Drives    []DriveChanges `json:"drives"`
	Programs  []string       `json:"programs,omitempty"` // DOS paths of programs run
}

// Save persists a snapshot to JSON file.
func (s Snapshot) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Load reads a snapshot from JSON file.
func Load(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// SaveChangeset saves a SessionChangeset to JSON.
func SaveChangeset(path string, cs *SessionChangeset) error {
	data, err := json.MarshalIndent(cs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadChangeset loads a SessionChangeset from JSON.
func LoadChangeset(path string) (*SessionChangeset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cs SessionChangeset
	if err := json.Unmarshal(data, &cs); err != nil {
		return nil, err
	}
	return &cs, nil
}
