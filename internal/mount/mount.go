package mount

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/faize-ai/coalface/internal/session"
	"github.com/mitchellh/go-homedir"
)

// Mount is a request to map a host directory onto a DOS drive letter
type Mount struct {
	Index    uint8  // 0 (A:) to 25 (Z:)
	Source   string // Host path (expanded absolute path)
	ReadOnly bool   // Default false
}

// Letter returns the DOS drive letter of the mount
func (m *Mount) Letter() string {
	return session.DriveLetter(m.Index)
}

// Drive converts an approved mount into a session drive
func (m *Mount) Drive(protected []string) session.VirtualDrive {
	return session.VirtualDrive{
		Index:     m.Index,
		Source:    m.Source,
		ReadOnly:  m.ReadOnly,
		Protected: protected,
	}
}

// Parse parses a drive specification string into a Mount struct.
//
// Formats:
//   - "C:~/dos/games" -> Mount{Index: 2, Source: expanded path, ReadOnly: false}
//   - "D:/media/cdrom:ro" -> Mount{Index: 3, Source: "/media/cdrom", ReadOnly: true}
//   - "c:/dos:rw" -> Mount{Index: 2, Source: "/dos", ReadOnly: false}
//
// Drive letters are case-insensitive. Mounts are writable unless ":ro" is
// given.
func Parse(spec string) (*Mount, error) {
	if spec == "" {
		return nil, fmt.Errorf("drive specification cannot be empty")
	}

	letter, rest, ok := strings.Cut(spec, ":")
	if !ok || len(letter) != 1 {
		return nil, fmt.Errorf("invalid drive specification '%s': expected LETTER:PATH", spec)
	}

	index, err := ParseLetter(letter)
	if err != nil {
		return nil, err
	}

	m := &Mount{Index: index}

	switch {
	case strings.HasSuffix(rest, ":ro"):
		m.ReadOnly = true
		rest = strings.TrimSuffix(rest, ":ro")
	case strings.HasSuffix(rest, ":rw"):
		rest = strings.TrimSuffix(rest, ":rw")
	}

	if strings.Contains(rest, ":") {
		return nil, fmt.Errorf("invalid drive specification: too many colons")
	}

	source, err := ExpandPath(rest)
	if err != nil {
		return nil, fmt.Errorf("invalid source path: %w", err)
	}
	m.Source = source

	return m, nil
}

// ParseLetter converts a drive letter into a drive index
func ParseLetter(letter string) (uint8, error) {
	if len(letter) != 1 {
		return 0, fmt.Errorf("invalid drive letter '%s'", letter)
	}
	c := strings.ToUpper(letter)[0]
	if c < 'A' || c > 'Z' {
		return 0, fmt.Errorf("invalid drive letter '%s'", letter)
	}
	return c - 'A', nil
}

// ExpandPath expands ~ to the home directory and returns an absolute path
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("failed to expand path: %w", err)
	}

	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("failed to convert to absolute path: %w", err)
	}

	return filepath.Clean(abs), nil
}
