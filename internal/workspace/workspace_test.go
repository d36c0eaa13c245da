// ABOUTME: Tests for the workspace manager
// ABOUTME: Covers registry loading, sessions, path containment, and suggestion lifecycle

package workspace

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestManager builds a registry with one repo backed by a temp directory.
func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	base := t.TempDir()
	repoDir := filepath.Join(base, "relay")
	require.NoError(t, os.MkdirAll(filepath.Join(repoDir, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "README.md"), []byte("# relay\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "docs", "api.md"), []byte("api\n"), 0o644))

	registry := filepath.Join(base, "repos.toml")
	require.NoError(t, os.WriteFile(registry, []byte(`
[[repos]]
name = "relay"
path = "relay"
default_branch = "main"
`), 0o644))

	m, err := NewManager(registry, base)
	require.NoError(t, err)
	return m, repoDir
}

func TestNewManager_LoadsRegistry(t *testing.T) {
	m, repoDir := newTestManager(t)

	repos := m.ListRepos()
	require.Len(t, repos, 1)
	assert.Equal(t, "relay", repos[0].Name)
	assert.Equal(t, repoDir, repos[0].Path)
	assert.Equal(t, "main", repos[0].DefaultBranch)
}

func TestNewManager_MissingRegistry(t *testing.T) {
	_, err := NewManager(filepath.Join(t.TempDir(), "nope.toml"), "")
	assert.Error(t, err)
}

func TestSelectAndCurrentRepo(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.CurrentRepo("123456")
	assert.ErrorIs(t, err, ErrNoRepoSelected)

	require.NoError(t, m.Select("123456", "relay"))
	repo, err := m.CurrentRepo("123456")
	require.NoError(t, err)
	assert.Equal(t, "relay", repo.Name)

	err = m.Select("123456", "unknown")
	assert.ErrorIs(t, err, ErrRepoNotFound)
}

func TestSessionsAreIndependent(t *testing.T) {
	m, _ := newTestManager(t)

	require.NoError(t, m.Select("123456", "relay"))
	require.NoError(t, m.ChangeDir("123456", "docs"))

	require.NoError(t, m.Select("789012", "relay"))

	dirA, err := m.WorkingDir("123456")
	require.NoError(t, err)
	dirB, err := m.WorkingDir("789012")
	require.NoError(t, err)
	assert.Equal(t, "docs", dirA)
	assert.Equal(t, ".", dirB)
}

func TestChangeDir_Containment(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Select("123456", "relay"))

	assert.ErrorIs(t, m.ChangeDir("123456", "../.."), ErrPathEscapes)
	assert.Error(t, m.ChangeDir("123456", "README.md"), "files are not directories")
	assert.Error(t, m.ChangeDir("123456", "missing"))

	// "docs/.." resolves back to the root, which is fine
	require.NoError(t, m.ChangeDir("123456", "docs/.."))
	dir, err := m.WorkingDir("123456")
	require.NoError(t, err)
	assert.Equal(t, ".", dir)
}

func TestListAndReadFiles(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Select("123456", "relay"))

	names, err := m.ListFiles("123456", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "docs/"}, names)

	content, err := m.ReadFile("123456", "docs/api.md")
	require.NoError(t, err)
	assert.Equal(t, "api\n", content)

	_, err = m.ReadFile("123456", "../outside.txt")
	assert.ErrorIs(t, err, ErrPathEscapes)
}

func TestSuggestionLifecycle(t *testing.T) {
	m, repoDir := newTestManager(t)
	require.NoError(t, m.Select("123456", "relay"))

	_, err := m.PendingSuggestion("123456")
	assert.ErrorIs(t, err, ErrNoPendingSuggestion)

	s := &Suggestion{FilePath: "docs/api.md", Description: "expand docs", Content: "expanded\n"}
	require.NoError(t, m.SetPendingSuggestion("123456", s))

	applied, err := m.ApplyPendingSuggestion("123456")
	require.NoError(t, err)
	assert.Equal(t, s, applied)

	data, err := os.ReadFile(filepath.Join(repoDir, "docs", "api.md"))
	require.NoError(t, err)
	assert.Equal(t, "expanded\n", string(data))

	// Applied suggestion is cleared
	_, err = m.ApplyPendingSuggestion("123456")
	assert.ErrorIs(t, err, ErrNoPendingSuggestion)
}

func TestRejectSuggestion(t *testing.T) {
	m, repoDir := newTestManager(t)
	require.NoError(t, m.Select("123456", "relay"))

	s := &Suggestion{FilePath: "README.md", Content: "clobbered"}
	require.NoError(t, m.SetPendingSuggestion("123456", s))

	rejected, err := m.RejectPendingSuggestion("123456")
	require.NoError(t, err)
	assert.Equal(t, s, rejected)

	data, err := os.ReadFile(filepath.Join(repoDir, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "# relay\n", string(data), "reject must not touch the file")
}

func TestGitOperations(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	m, repoDir := newTestManager(t)
	ctx := context.Background()

	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", append([]string{"-C", repoDir}, args...)...)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	run("init", "-b", "main")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	run("add", "-A")
	run("commit", "-m", "initial")

	require.NoError(t, m.Select("123456", "relay"))

	status, err := m.Status(ctx, "123456")
	require.NoError(t, err)
	assert.Contains(t, status, "main")

	current, branches, err := m.Branches(ctx, "123456")
	require.NoError(t, err)
	assert.Equal(t, "main", current)
	assert.Contains(t, branches, "main")

	// Dirty the tree and commit through the manager
	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "new.txt"), []byte("x"), 0o644))
	out, err := m.Commit(ctx, "123456", "add new.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "add new.txt")

	_, err = m.Commit(ctx, "123456", "")
	assert.Error(t, err)
}
