// ABOUTME: Tests for the directory tree renderer
// ABOUTME: Covers depth limits, .git exclusion, and working-directory rooting

package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTree_RendersStructure(t *testing.T) {
	m, repoDir := newTestManager(t)
	require.NoError(t, os.MkdirAll(filepath.Join(repoDir, ".git", "objects"), 0o755))
	require.NoError(t, m.Select("123456", "relay"))

	out, err := m.Tree("123456", 2)
	require.NoError(t, err)

	assert.Equal(t, "relay\n├── README.md\n└── docs\n    └── api.md", out)
	assert.NotContains(t, out, ".git")
}

func TestTree_DepthLimit(t *testing.T) {
	m, repoDir := newTestManager(t)
	require.NoError(t, os.MkdirAll(filepath.Join(repoDir, "docs", "deep"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "docs", "deep", "buried.md"), []byte("x\n"), 0o644))
	require.NoError(t, m.Select("123456", "relay"))

	out, err := m.Tree("123456", 1)
	require.NoError(t, err)
	assert.Contains(t, out, "docs")
	assert.NotContains(t, out, "deep")

	out, err = m.Tree("123456", 3)
	require.NoError(t, err)
	assert.Contains(t, out, "buried.md")
}

func TestTree_DefaultsDepthWhenUnset(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Select("123456", "relay"))

	out, err := m.Tree("123456", 0)
	require.NoError(t, err)
	assert.Contains(t, out, "api.md", "default depth must reach two levels")
}

func TestTree_RootedAtWorkingDirectory(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Select("123456", "relay"))
	require.NoError(t, m.ChangeDir("123456", "docs"))

	out, err := m.Tree("123456", 2)
	require.NoError(t, err)
	assert.Equal(t, "docs\n└── api.md", out)
}

func TestTree_NoRepoSelected(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Tree("999999", 2)
	assert.ErrorIs(t, err, ErrNoRepoSelected)
}
