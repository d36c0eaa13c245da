// ABOUTME: Git repository registry and per-chat session state
// ABOUTME: Loads repos.toml and tracks which repo/directory each chat is working in

package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// ErrRepoNotFound is returned when a repository name is not in the registry.
var ErrRepoNotFound = errors.New("repository not found")

// ErrNoRepoSelected is returned when a chat operates without selecting a repository.
var ErrNoRepoSelected = errors.New("no repository selected")

// ErrNoPendingSuggestion is returned when a chat applies or rejects without a pending suggestion.
var ErrNoPendingSuggestion = errors.New("no pending suggestion")

// ErrPathEscapes is returned when a requested path resolves outside the repository.
var ErrPathEscapes = errors.New("path escapes repository")

// Repo is one registered repository from repos.toml.
type Repo struct {
	Name          string `toml:"name"`
	Path          string `toml:"path"`
	DefaultBranch string `toml:"default_branch"`
}

type registryFile struct {
	Repos []Repo `toml:"repos"`
}

// Suggestion is a proposed file modification waiting for apply or reject.
type Suggestion struct {
	FilePath    string
	Description string
	Content     string
	CreatedAt   time.Time
}

// session is the per-chat working state.
type session struct {
	repoName string
	subdir   string // relative directory within the repo, "" for root
	pending  *Suggestion
}

// Manager owns the repository registry and all chat sessions.
// Safe for concurrent use.
type Manager struct {
	basePath string
	logger   *slog.Logger

	mu       sync.RWMutex
	repos    map[string]Repo
	sessions map[string]*session
}

// NewManager loads the registry at registryPath. Relative repository
// paths are resolved against basePath.
func NewManager(registryPath, basePath string) (*Manager, error) {
	var reg registryFile
	if _, err := toml.DecodeFile(registryPath, &reg); err != nil {
		return nil, fmt.Errorf("loading repository registry: %w", err)
	}

	m := &Manager{
		basePath: basePath,
		logger:   slog.Default().With("component", "workspace"),
		repos:    make(map[string]Repo, len(reg.Repos)),
		sessions: make(map[string]*session),
	}
	for _, r := range reg.Repos {
		if r.Name == "" || r.Path == "" {
			return nil, fmt.Errorf("registry entry missing name or path")
		}
		if !filepath.IsAbs(r.Path) {
			r.Path = filepath.Join(basePath, r.Path)
		}
		if r.DefaultBranch == "" {
			r.DefaultBranch = "main"
		}
		m.repos[r.Name] = r
	}

	m.logger.Info("repository registry loaded", "path", registryPath, "repos", len(m.repos))
	return m, nil
}

// ListRepos returns the registered repositories sorted by name.
func (m *Manager) ListRepos() []Repo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	repos := make([]Repo, 0, len(m.repos))
	for _, r := range m.repos {
		repos = append(repos, r)
	}
	sort.Slice(repos, func(i, j int) bool { return repos[i].Name < repos[j].Name })
	return repos
}

// Select binds the chat to a registered repository and resets its
// working directory to the repo root.
func (m *Manager) Select(chatID, repoName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.repos[repoName]; !ok {
		return fmt.Errorf("%w: %s", ErrRepoNotFound, repoName)
	}
	m.sessions[chatID] = &session{repoName: repoName}
	m.logger.Info("repository selected", "chat_id", chatID, "repo", repoName)
	return nil
}

// CurrentRepo returns the repository the chat is working in.
func (m *Manager) CurrentRepo(chatID string) (Repo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[chatID]
	if !ok {
		return Repo{}, ErrNoRepoSelected
	}
	repo, ok := m.repos[sess.repoName]
	if !ok {
		return Repo{}, ErrNoRepoSelected
	}
	return repo, nil
}

// WorkingDir returns the chat's directory relative to the repo root.
func (m *Manager) WorkingDir(chatID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[chatID]
	if !ok {
		return "", ErrNoRepoSelected
	}
	if sess.subdir == "" {
		return ".", nil
	}
	return sess.subdir, nil
}

// ChangeDir moves the chat's working directory within the repository.
// The resolved directory must exist and stay inside the repo.
func (m *Manager) ChangeDir(chatID, rel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[chatID]
	if !ok {
		return ErrNoRepoSelected
	}
	repo := m.repos[sess.repoName]

	next, err := containedPath(repo.Path, filepath.Join(sess.subdir, rel))
	if err != nil {
		return err
	}
	info, err := os.Stat(filepath.Join(repo.Path, next))
	if err != nil || !info.IsDir() {
		return fmt.Errorf("not a directory: %s", rel)
	}
	sess.subdir = next
	return nil
}

// absolutePath resolves a chat-relative path to an absolute path inside
// the chat's repository, rejecting escapes.
func (m *Manager) absolutePath(chatID, rel string) (string, Repo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[chatID]
	if !ok {
		return "", Repo{}, ErrNoRepoSelected
	}
	repo := m.repos[sess.repoName]

	contained, err := containedPath(repo.Path, filepath.Join(sess.subdir, rel))
	if err != nil {
		return "", Repo{}, err
	}
	return filepath.Join(repo.Path, contained), repo, nil
}

// containedPath cleans rel against the repo root and rejects any result
// that would escape it. Returns the clean repo-relative path.
func containedPath(root, rel string) (string, error) {
	clean := filepath.Clean("/" + rel) // forces traversal resolution against a fixed anchor
	clean = strings.TrimPrefix(clean, "/")
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrPathEscapes
	}
	// Clean against "/" cannot produce "..", but keep the resolved form
	// honest against symlink-free lexical escapes.
	if !filepath.IsLocal(clean) && clean != "" && clean != "." {
		return "", ErrPathEscapes
	}
	return clean, nil
}

// SetPendingSuggestion stores a proposed modification for later apply/reject.
func (m *Manager) SetPendingSuggestion(chatID string, s *Suggestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[chatID]
	if !ok {
		return ErrNoRepoSelected
	}
	sess.pending = s
	return nil
}

// PendingSuggestion returns the chat's pending modification, if any.
func (m *Manager) PendingSuggestion(chatID string) (*Suggestion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[chatID]
	if !ok {
		return nil, ErrNoRepoSelected
	}
	if sess.pending == nil {
		return nil, ErrNoPendingSuggestion
	}
	return sess.pending, nil
}

// ApplyPendingSuggestion writes the pending suggestion's content to its
// file and clears it.
func (m *Manager) ApplyPendingSuggestion(chatID string) (*Suggestion, error) {
	m.mu.Lock()
	sess, ok := m.sessions[chatID]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNoRepoSelected
	}
	pending := sess.pending
	if pending == nil {
		m.mu.Unlock()
		return nil, ErrNoPendingSuggestion
	}
	sess.pending = nil
	m.mu.Unlock()

	target, _, err := m.absolutePath(chatID, pending.FilePath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("creating directories: %w", err)
	}
	if err := os.WriteFile(target, []byte(pending.Content), 0o644); err != nil {
		return nil, fmt.Errorf("writing suggestion: %w", err)
	}
	m.logger.Info("suggestion applied", "chat_id", chatID, "file", pending.FilePath)
	return pending, nil
}

// RejectPendingSuggestion discards the pending suggestion.
func (m *Manager) RejectPendingSuggestion(chatID string) (*Suggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[chatID]
	if !ok {
		return nil, ErrNoRepoSelected
	}
	pending := sess.pending
	if pending == nil {
		return nil, ErrNoPendingSuggestion
	}
	sess.pending = nil
	return pending, nil
}

// ListFiles returns the names of entries in the chat's working directory
// (or rel below it), directories suffixed with "/".
func (m *Manager) ListFiles(chatID, rel string) ([]string, error) {
	dir, _, err := m.absolutePath(chatID, rel)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ReadFile returns the contents of a file inside the chat's repository.
func (m *Manager) ReadFile(chatID, rel string) (string, error) {
	path, _, err := m.absolutePath(chatID, rel)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	return string(data), nil
}
