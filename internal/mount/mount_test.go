package mount

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		name     string
		spec     string
		want     *Mount
		wantErr  bool
		errMatch string
	}{
		{
			name: "drive with tilde path",
			spec: "C:~/dos/games",
			want: &Mount{
				Index:  2,
				Source: filepath.Clean(filepath.Join(homeDir, "dos/games")),
			},
		},
		{
			name: "lower case letter",
			spec: "c:/dos",
			want: &Mount{Index: 2, Source: "/dos"},
		},
		{
			name: "read-only cdrom",
			spec: "D:/media/cdrom:ro",
			want: &Mount{Index: 3, Source: "/media/cdrom", ReadOnly: true},
		},
		{
			name: "explicit rw",
			spec: "E:/dos/e:rw",
			want: &Mount{Index: 4, Source: "/dos/e"},
		},
		{
			name: "path is cleaned",
			spec: "A:/floppy/../floppy/./disk1",
			want: &Mount{Index: 0, Source: "/floppy/disk1"},
		},
		{
			name:     "empty spec",
			spec:     "",
			wantErr:  true,
			errMatch: "cannot be empty",
		},
		{
			name:     "missing letter",
			spec:     "/dos/games",
			wantErr:  true,
			errMatch: "expected LETTER:PATH",
		},
		{
			name:     "bad letter",
			spec:     "1:/dos",
			wantErr:  true,
			errMatch: "invalid drive letter",
		},
		{
			name:     "missing path",
			spec:     "C:",
			wantErr:  true,
			errMatch: "invalid source path",
		},
		{
			name:     "too many colons",
			spec:     "C:/a:/b:ro",
			wantErr:  true,
			errMatch: "too many colons",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.spec)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMatch)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLetter(t *testing.T) {
	for i := 0; i < 26; i++ {
		letter := string(rune('A' + i))
		index, err := ParseLetter(letter)
		require.NoError(t, err)
		assert.Equal(t, uint8(i), index)
	}

	_, err := ParseLetter("AA")
	assert.Error(t, err)
	_, err = ParseLetter("!")
	assert.Error(t, err)
}

func TestMountDrive(t *testing.T) {
	m := &Mount{Index: 2, Source: "/dos", ReadOnly: true}
	d := m.Drive([]string{"*.CFG"})

	assert.Equal(t, "C", m.Letter())
	assert.Equal(t, uint8(2), d.Index)
	assert.Equal(t, "/dos", d.Source)
	assert.True(t, d.ReadOnly)
	assert.Equal(t, []string{"*.CFG"}, d.Protected)
}

func TestExpandPath(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{
			name: "tilde expansion",
			path: "~/dos",
			want: filepath.Clean(filepath.Join(homeDir, "dos")),
		},
		{
			name: "absolute path",
			path: "/media/cdrom",
			want: "/media/cdrom",
		},
		{
			name:    "empty path",
			path:    "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandPath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
