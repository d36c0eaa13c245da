// ABOUTME: Directory tree rendering for the chat-facing tree view
// ABOUTME: Box-drawing output rooted at the chat's working directory, .git excluded

package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultTreeDepth is how many directory levels Tree descends when the
// caller does not ask for a specific depth.
const DefaultTreeDepth = 2

// maxTreeDepth caps how deep a caller can ask Tree to descend.
const maxTreeDepth = 6

// Tree renders the directory structure under the chat's working
// directory, descending at most maxDepth levels. The .git directory is
// skipped. A maxDepth outside [1, maxTreeDepth] is clamped.
func (m *Manager) Tree(chatID string, maxDepth int) (string, error) {
	if maxDepth < 1 {
		maxDepth = DefaultTreeDepth
	}
	if maxDepth > maxTreeDepth {
		maxDepth = maxTreeDepth
	}

	dir, repo, err := m.absolutePath(chatID, "")
	if err != nil {
		return "", err
	}

	root := filepath.Base(dir)
	if root == "." || root == string(filepath.Separator) {
		root = repo.Name
	}

	var b strings.Builder
	b.WriteString(root + "\n")
	if err := writeTree(&b, dir, "", maxDepth, 1); err != nil {
		return "", err
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func writeTree(b *strings.Builder, dir, prefix string, maxDepth, depth int) error {
	if depth > maxDepth {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading directory: %w", err)
	}

	visible := entries[:0]
	for _, e := range entries {
		if e.Name() == ".git" {
			continue
		}
		visible = append(visible, e)
	}

	for i, e := range visible {
		connector, childPrefix := "├── ", prefix+"│   "
		if i == len(visible)-1 {
			connector, childPrefix = "└── ", prefix+"    "
		}
		b.WriteString(prefix + connector + e.Name() + "\n")
		if e.IsDir() {
			if err := writeTree(b, filepath.Join(dir, e.Name()), childPrefix, maxDepth, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}
