package fileutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExcludeFilterMatch(t *testing.T) {
	tests := []struct {
		name        string
		patterns    []string
		relPath     string
		wantMatch   bool
		wantPattern string
	}{
		{"no patterns excludes nothing", nil, "a.txt", false, ""},
		{"direct child of skip", []string{"skip/*"}, "skip/d.log", true, "skip/*"},
		{"star does not cross separator", []string{"skip/*"}, "skip/deep/d.log", false, ""},
		{"right anchored suffix match", []string{"skip/*"}, "x/skip/d.log", true, "skip/*"},
		{"extension at any depth", []string{"*.log"}, "a/b/c.log", true, "*.log"},
		{"extension at root", []string{"*.log"}, "c.log", true, "*.log"},
		{"root anchored pattern", []string{"/skip/*"}, "x/skip/d.log", false, ""},
		{"root anchored pattern matches at root", []string{"/skip/*"}, "skip/d.log", true, "/skip/*"},
		{"double star spans segments", []string{"cache/**"}, "a/cache/b/c/d.bin", true, "cache/**"},
		{"unity folder", []string{"*/Unity/*"}, "games/Unity/save.dat", true, "*/Unity/*"},
		{"exact filename", []string{"*/steam_autocloud.vdf"}, "g/steam_autocloud.vdf", true, "*/steam_autocloud.vdf"},
		{"first matching pattern wins", []string{"*.txt", "a*"}, "a.txt", true, "*.txt"},
		{"case sensitive", []string{"*.LOG"}, "c.log", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewExcludeFilter(tt.patterns)
			require.NoError(t, err)

			pattern, matched := f.Match(tt.relPath)
			assert.Equal(t, tt.wantMatch, matched)
			assert.Equal(t, tt.wantPattern, pattern)
		})
	}
}

func TestExcludeFilterNormalizesSeparators(t *testing.T) {
	f, err := NewExcludeFilter([]string{"skip/*"})
	require.NoError(t, err)

	_, excluded := f.Match(filepath.Join("skip", "d.log"))
	assert.True(t, excluded)

	_, excluded = f.Match(filepath.Join("keep", "d.log"))
	assert.False(t, excluded)
}

func TestExcludeFilterInvalidPattern(t *testing.T) {
	_, err := NewExcludeFilter([]string{"[unclosed"})
	assert.Error(t, err)
}

func TestExcludeFilterSkipsBlankPatterns(t *testing.T) {
	f, err := NewExcludeFilter([]string{"", "  ", "*.tmp"})
	require.NoError(t, err)
	assert.Equal(t, []string{"*.tmp"}, f.Patterns())
}

func TestNilExcludeFilter(t *testing.T) {
	var f *ExcludeFilter
	_, matched := f.Match("anything")
	assert.False(t, matched)
	assert.Nil(t, f.Patterns())
}
