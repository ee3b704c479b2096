package mount

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidator(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)

	// Helper to resolve path through symlinks (for expected values)
	resolvePath := func(path string) string {
		resolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			return filepath.Clean(path)
		}
		return resolved
	}

	sshPath := resolvePath(filepath.Join(homeDir, ".ssh"))
	etcPath := resolvePath("/etc")
	dosPath := resolvePath(filepath.Join(homeDir, "dos"))

	tests := []struct {
		name      string
		roots     []string
		blocked   []string
		wantRoots []string
		wantPaths []string
	}{
		{
			name:      "single path with tilde",
			blocked:   []string{"~/.ssh"},
			wantRoots: []string{},
			wantPaths: []string{sshPath},
		},
		{
			name:      "roots and blocked paths",
			roots:     []string{"~/dos"},
			blocked:   []string{"~/.ssh", "/etc"},
			wantRoots: []string{dosPath},
			wantPaths: []string{sshPath, etcPath},
		},
		{
			name:      "empty paths are skipped",
			roots:     []string{""},
			blocked:   []string{"~/.ssh", "", "/etc"},
			wantRoots: []string{},
			wantPaths: []string{sshPath, etcPath},
		},
		{
			name:      "empty lists",
			wantRoots: []string{},
			wantPaths: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewValidator(tt.roots, tt.blocked)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRoots, got.permittedRoots)
			assert.Equal(t, tt.wantPaths, got.blockedPaths)
		})
	}
}

func TestValidate(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)

	sshPath := filepath.Clean(filepath.Join(homeDir, ".ssh"))
	sshKeyPath := filepath.Clean(filepath.Join(homeDir, ".ssh/id_rsa"))
	gamesPath := filepath.Clean(filepath.Join(homeDir, "dos-games"))

	validator, err := NewValidator(nil, []string{"~/.ssh", "/etc"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		mount    *Mount
		wantErr  bool
		errMatch string
	}{
		{
			name:  "allowed path",
			mount: &Mount{Index: 2, Source: gamesPath},
		},
		{
			name:     "blocked path exact match",
			mount:    &Mount{Index: 2, Source: sshPath},
			wantErr:  true,
			errMatch: "protected path",
		},
		{
			name:     "blocked path subdirectory",
			mount:    &Mount{Index: 2, Source: sshKeyPath},
			wantErr:  true,
			errMatch: "protected path",
		},
		{
			name:     "blocked system path",
			mount:    &Mount{Index: 2, Source: "/etc"},
			wantErr:  true,
			errMatch: "protected path",
		},
		{
			name:     "filesystem root is reserved",
			mount:    &Mount{Index: 2, Source: "/"},
			wantErr:  true,
			errMatch: "reserved path",
		},
		{
			name:     "home directory is reserved",
			mount:    &Mount{Index: 2, Source: homeDir},
			wantErr:  true,
			errMatch: "reserved path",
		},
		{
			name:     "nil mount",
			mount:    nil,
			wantErr:  true,
			errMatch: "cannot be nil",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.Validate(tt.mount)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMatch)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidatePermittedRoots(t *testing.T) {
	root := t.TempDir()
	games := filepath.Join(root, "games")
	require.NoError(t, os.MkdirAll(games, 0755))

	validator, err := NewValidator([]string{games}, nil)
	require.NoError(t, err)

	assert.True(t, validator.ShouldMount(games))
	assert.True(t, validator.ShouldMount(filepath.Join(games, "KEEN")))
	assert.True(t, validator.ShouldMount(filepath.Join(games, "not-created-yet")))

	err = validator.ValidatePath(root)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOutsideRoots))

	assert.False(t, validator.ShouldMount(root+"-sibling"))
	assert.False(t, validator.ShouldMount(""))
}

func TestIsUnderOrEqual(t *testing.T) {
	tests := []struct {
		name     string
		testPath string
		basePath string
		want     bool
	}{
		{"exact match", "/home/user/dos", "/home/user/dos", true},
		{"subdirectory", "/home/user/dos/GAME.EXE", "/home/user/dos", true},
		{"not under - similar prefix", "/home/user/dosbox", "/home/user/dos", false},
		{"completely different", "/var/log", "/home/user/dos", false},
		{"parent directory", "/home/user", "/home/user/dos", false},
		{"nested subdirectory", "/home/user/dos/KEEN/SAVE/GAME1.SAV", "/home/user/dos", true},
		{"root base", "/anything", "/", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUnderOrEqual(tt.testPath, tt.basePath))
		})
	}
}

func TestWithin(t *testing.T) {
	root := t.TempDir()

	assert.True(t, Within(root, root))
	assert.True(t, Within(filepath.Join(root, "NEW.TXT"), root))
	assert.True(t, Within(filepath.Join(root, "SUB", "DEEP", "NEW.TXT"), root))
	assert.False(t, Within(filepath.Join(root, "..", "ESCAPE.TXT"), root))
	assert.False(t, Within("/etc/passwd", root))
	assert.False(t, Within("", root))
}

func TestWithinSymlinkEscape(t *testing.T) {
	tmpDir := t.TempDir()

	driveRoot := filepath.Join(tmpDir, "drive-c")
	outside := filepath.Join(tmpDir, "outside")
	require.NoError(t, os.MkdirAll(driveRoot, 0755))
	require.NoError(t, os.MkdirAll(outside, 0755))

	// A link inside the drive pointing out of it
	link := filepath.Join(driveRoot, "escape")
	require.NoError(t, os.Symlink(outside, link))

	assert.False(t, Within(filepath.Join(link, "FILE.TXT"), driveRoot))
}

func TestValidateSymlinkBypass(t *testing.T) {
	tmpDir := t.TempDir()

	// Create a "blocked" directory to simulate a protected path
	blockedDir := filepath.Join(tmpDir, "blocked-secrets")
	require.NoError(t, os.MkdirAll(blockedDir, 0755))

	// Create a symlink that points to the blocked directory
	symlinkPath := filepath.Join(tmpDir, "innocent-looking-link")
	require.NoError(t, os.Symlink(blockedDir, symlinkPath))

	validator, err := NewValidator(nil, []string{blockedDir})
	require.NoError(t, err)

	tests := []struct {
		name     string
		source   string
		wantErr  bool
		errMatch string
	}{
		{
			name:     "symlink to blocked path should be blocked",
			source:   symlinkPath,
			wantErr:  true,
			errMatch: "resolves to protected path",
		},
		{
			name:     "direct blocked path should be blocked",
			source:   blockedDir,
			wantErr:  true,
			errMatch: "protected path",
		},
		{
			name:   "allowed path should pass",
			source: tmpDir,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.Validate(&Mount{Index: 2, Source: tt.source})
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMatch)
				return
			}
			assert.NoError(t, err)
		})
	}
}
