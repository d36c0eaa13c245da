// ABOUTME: Git operations for chat-selected repositories
// ABOUTME: Thin wrappers around the git binary via exec.CommandContext

package workspace

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// git runs a git subcommand in dir and returns trimmed stdout.
func (m *Manager) git(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", args[0], msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Status returns short-format git status with branch info for the chat's repo.
func (m *Manager) Status(ctx context.Context, chatID string) (string, error) {
	repo, err := m.CurrentRepo(chatID)
	if err != nil {
		return "", err
	}
	out, err := m.git(ctx, repo.Path, "status", "--short", "--branch")
	if err != nil {
		return "", err
	}
	if out == "" {
		out = "working tree clean"
	}
	return out, nil
}

// Branches returns the current branch and all local branch names.
func (m *Manager) Branches(ctx context.Context, chatID string) (current string, branches []string, err error) {
	repo, err := m.CurrentRepo(chatID)
	if err != nil {
		return "", nil, err
	}
	current, err = m.git(ctx, repo.Path, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", nil, err
	}
	out, err := m.git(ctx, repo.Path, "branch", "--format", "%(refname:short)")
	if err != nil {
		return "", nil, err
	}
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			branches = append(branches, line)
		}
	}
	return current, branches, nil
}

// Checkout switches the chat's repo to the named branch.
func (m *Manager) Checkout(ctx context.Context, chatID, branch string) error {
	repo, err := m.CurrentRepo(chatID)
	if err != nil {
		return err
	}
	if branch == "" {
		branch = repo.DefaultBranch
	}
	_, err = m.git(ctx, repo.Path, "checkout", branch)
	if err != nil {
		return err
	}
	m.logger.Info("branch checked out", "chat_id", chatID, "repo", repo.Name, "branch", branch)
	return nil
}

// Commit stages all changes and commits them with the given message.
func (m *Manager) Commit(ctx context.Context, chatID, message string) (string, error) {
	repo, err := m.CurrentRepo(chatID)
	if err != nil {
		return "", err
	}
	if message == "" {
		return "", fmt.Errorf("commit message required")
	}
	if _, err := m.git(ctx, repo.Path, "add", "-A"); err != nil {
		return "", err
	}
	out, err := m.git(ctx, repo.Path, "commit", "-m", message)
	if err != nil {
		return "", err
	}
	m.logger.Info("changes committed", "chat_id", chatID, "repo", repo.Name)
	return out, nil
}

// Push pushes the current branch to origin.
func (m *Manager) Push(ctx context.Context, chatID string) (string, error) {
	repo, err := m.CurrentRepo(chatID)
	if err != nil {
		return "", err
	}
	out, err := m.git(ctx, repo.Path, "push", "origin", "HEAD")
	if err != nil {
		return "", err
	}
	m.logger.Info("changes pushed", "chat_id", chatID, "repo", repo.Name)
	return out, nil
}
