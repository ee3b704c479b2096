package mount

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// ErrOutsideRoots is returned when a mount source is not under any permitted
// root
var ErrOutsideRoots = errors.New("path is outside the permitted roots")

// Validator validates mount paths against permitted roots and blocked paths
type Validator struct {
	permittedRoots []string // Expanded absolute paths; empty permits everything not blocked
	blockedPaths   []string // Expanded absolute paths
}

// NewValidator creates a new Validator.
// Each path is expanded and normalized to an absolute path.
// Symlinks are also resolved to ensure consistent comparison.
func NewValidator(permittedRoots, blockedPaths []string) (*Validator, error) {
	roots, err := normalizeAll(permittedRoots)
	if err != nil {
		return nil, fmt.Errorf("permitted root: %w", err)
	}

	blocked, err := normalizeAll(blockedPaths)
	if err != nil {
		return nil, fmt.Errorf("blocked path: %w", err)
	}

	return &Validator{
		permittedRoots: roots,
		blockedPaths:   blocked,
	}, nil
}

func normalizeAll(paths []string) ([]string, error) {
	expanded := make([]string, 0, len(paths))

	for _, path := range paths {
		if path == "" {
			continue
		}

		expandedPath, err := homedir.Expand(path)
		if err != nil {
			return nil, fmt.Errorf("failed to expand '%s': %w", path, err)
		}

		absPath, err := filepath.Abs(expandedPath)
		if err != nil {
			return nil, fmt.Errorf("failed to convert '%s' to absolute: %w", path, err)
		}

		// Resolve symlinks for consistent comparison
		// (e.g., /etc -> /private/etc on macOS)
		expanded = append(expanded, resolve(absPath))
	}

	return expanded, nil
}

// Validate checks the mount's source path against the permitted roots and the
// blocked paths. Returns an error if the mount must be refused.
func (v *Validator) Validate(m *Mount) error {
	if m == nil {
		return fmt.Errorf("mount cannot be nil")
	}
	return v.ValidatePath(m.Source)
}

// ValidatePath is Validate for a bare host path
func (v *Validator) ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("mount path cannot be empty")
	}

	sourcePath, err := homedir.Expand(path)
	if err != nil {
		sourcePath = path
	}
	sourcePath, err = filepath.Abs(sourcePath)
	if err != nil {
		sourcePath = filepath.Clean(path)
	}

	realPath := resolve(sourcePath)

	if isReserved(realPath) {
		return fmt.Errorf("mount blocked: %s is a reserved path", realPath)
	}

	for _, blocked := range v.blockedPaths {
		if isUnderOrEqual(realPath, blocked) {
			if realPath != sourcePath {
				return fmt.Errorf("mount blocked: %s resolves to protected path %s", path, blocked)
			}
			return fmt.Errorf("mount blocked: %s is a protected path", blocked)
		}
	}

	if len(v.permittedRoots) == 0 {
		return nil
	}
	for _, root := range v.permittedRoots {
		if isUnderOrEqual(realPath, root) {
			return nil
		}
	}
	return fmt.Errorf("mount blocked: %s: %w", path, ErrOutsideRoots)
}

// Blocked reports whether path is under or equal to a blocked path. Unlike
// ValidatePath it ignores the permitted roots.
func (v *Validator) Blocked(path string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return true
	}
	realPath := resolve(absPath)
	for _, blocked := range v.blockedPaths {
		if isUnderOrEqual(realPath, blocked) {
			return true
		}
	}
	return false
}

// ShouldMount is the boolean form of ValidatePath
func (v *Validator) ShouldMount(path string) bool {
	return v.ValidatePath(path) == nil
}

// isReserved reports whether path is the filesystem root or the user's home
// directory. Both may contain permitted roots, but neither may be mounted
// whole.
func isReserved(path string) bool {
	if path == string(filepath.Separator) {
		return true
	}
	if home, err := homedir.Dir(); err == nil && path == resolve(home) {
		return true
	}
	return false
}

// Within reports whether path lies under or at root once both have been
// cleaned and had their symlinks resolved. A path that does not exist yet is
// resolved through its nearest existing parent.
func Within(path, root string) bool {
	if path == "" || root == "" {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	return isUnderOrEqual(resolve(absPath), resolve(absRoot))
}

// resolve follows symlinks in path. When path does not exist the parent
// directory is resolved instead and the remainder appended, so a file about
// to be created is judged by where it will actually land.
func resolve(path string) string {
	path = filepath.Clean(path)

	if real, err := filepath.EvalSymlinks(path); err == nil {
		return real
	}

	dir, base := filepath.Split(path)
	dir = filepath.Clean(dir)
	if dir == path || base == "" {
		return path
	}
	return filepath.Join(resolve(dir), base)
}

// isUnderOrEqual returns true if testPath is under or equal to basePath.
// This handles path prefixes correctly:
//   - "/home/user/dos" is under "/home/user/dos" (equal)
//   - "/home/user/dos/GAME.EXE" is under "/home/user/dos"
//   - "/home/user/dosbox" is NOT under "/home/user/dos"
func isUnderOrEqual(testPath, basePath string) bool {
	if testPath == basePath {
		return true
	}

	baseWithSep := basePath
	if !strings.HasSuffix(baseWithSep, string(filepath.Separator)) {
		baseWithSep += string(filepath.Separator)
	}

	return strings.HasPrefix(testPath, baseWithSep)
}
