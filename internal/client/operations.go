// ABOUTME: Typed operation wrappers over the raw Call transport
// ABOUTME: One method per relay endpoint, keyed by the caller's chat id

package client

import (
	"context"
	"net/http"
)

// Repos lists registered repository names.
func (c *Client) Repos(ctx context.Context, chatID string) ([]string, error) {
	out, err := c.Call(ctx, http.MethodPost, "/repos", map[string]any{"chat_id": chatID})
	if err != nil {
		return nil, err
	}
	return stringSlice(out["repos"]), nil
}

// Select picks the working repository for this chat.
func (c *Client) Select(ctx context.Context, chatID, repoName string) error {
	_, err := c.Call(ctx, http.MethodPost, "/select", map[string]any{
		"chat_id": chatID, "repo_name": repoName,
	})
	return err
}

// Status returns git status for the selected repository.
func (c *Client) Status(ctx context.Context, chatID string) (string, error) {
	out, err := c.Call(ctx, http.MethodPost, "/status", map[string]any{"chat_id": chatID})
	if err != nil {
		return "", err
	}
	s, _ := out["git_status"].(string)
	return s, nil
}

// Branches returns the current branch and all local branches.
func (c *Client) Branches(ctx context.Context, chatID string) (string, []string, error) {
	out, err := c.Call(ctx, http.MethodPost, "/branches", map[string]any{"chat_id": chatID})
	if err != nil {
		return "", nil, err
	}
	current, _ := out["current"].(string)
	return current, stringSlice(out["branches"]), nil
}

// Checkout switches the selected repository to branch.
func (c *Client) Checkout(ctx context.Context, chatID, branch string) error {
	_, err := c.Call(ctx, http.MethodPost, "/checkout", map[string]any{
		"chat_id": chatID, "branch": branch,
	})
	return err
}

// Files lists entries under path in the selected repository.
func (c *Client) Files(ctx context.Context, chatID, path string) ([]string, error) {
	out, err := c.Call(ctx, http.MethodPost, "/files", map[string]any{
		"chat_id": chatID, "path": path,
	})
	if err != nil {
		return nil, err
	}
	return stringSlice(out["files"]), nil
}

// File reads one file from the selected repository.
func (c *Client) File(ctx context.Context, chatID, filePath string) (string, error) {
	out, err := c.Call(ctx, http.MethodPost, "/file", map[string]any{
		"chat_id": chatID, "file_path": filePath,
	})
	if err != nil {
		return "", err
	}
	content, _ := out["content"].(string)
	return content, nil
}

// Tree renders the directory structure under the chat's working
// directory. maxDepth 0 leaves the depth to the relay's default.
func (c *Client) Tree(ctx context.Context, chatID string, maxDepth int) (string, error) {
	payload := map[string]any{"chat_id": chatID}
	if maxDepth > 0 {
		payload["max_depth"] = maxDepth
	}
	out, err := c.Call(ctx, http.MethodPost, "/tree", payload)
	if err != nil {
		return "", err
	}
	tree, _ := out["tree"].(string)
	return tree, nil
}

// Cd moves the chat's working directory within the selected repository.
func (c *Client) Cd(ctx context.Context, chatID, path string) (string, error) {
	out, err := c.Call(ctx, http.MethodPost, "/cd", map[string]any{
		"chat_id": chatID, "path": path,
	})
	if err != nil {
		return "", err
	}
	dir, _ := out["working_dir"].(string)
	return dir, nil
}

// Pwd returns the chat's working directory relative to the repo root.
func (c *Client) Pwd(ctx context.Context, chatID string) (string, error) {
	out, err := c.Call(ctx, http.MethodPost, "/pwd", map[string]any{"chat_id": chatID})
	if err != nil {
		return "", err
	}
	dir, _ := out["working_dir"].(string)
	return dir, nil
}

// SuggestResult is the pending modification returned by Suggest.
type SuggestResult struct {
	FilePath    string
	Description string
	Content     string
}

// Suggest asks the relay to propose a modification to filePath.
func (c *Client) Suggest(ctx context.Context, chatID, filePath, description string) (*SuggestResult, error) {
	out, err := c.Call(ctx, http.MethodPost, "/suggest", map[string]any{
		"chat_id": chatID, "file_path": filePath, "description": description,
	})
	if err != nil {
		return nil, err
	}
	result := &SuggestResult{}
	result.FilePath, _ = out["file_path"].(string)
	result.Description, _ = out["description"].(string)
	result.Content, _ = out["content"].(string)
	return result, nil
}

// Apply writes the pending suggestion to the working tree.
func (c *Client) Apply(ctx context.Context, chatID string) (string, error) {
	out, err := c.Call(ctx, http.MethodPost, "/apply", map[string]any{"chat_id": chatID})
	if err != nil {
		return "", err
	}
	path, _ := out["file_path"].(string)
	return path, nil
}

// Reject discards the pending suggestion.
func (c *Client) Reject(ctx context.Context, chatID string) (string, error) {
	out, err := c.Call(ctx, http.MethodPost, "/reject", map[string]any{"chat_id": chatID})
	if err != nil {
		return "", err
	}
	path, _ := out["file_path"].(string)
	return path, nil
}

// Commit stages and commits all changes with message.
func (c *Client) Commit(ctx context.Context, chatID, message string) (string, error) {
	out, err := c.Call(ctx, http.MethodPost, "/commit", map[string]any{
		"chat_id": chatID, "message": message,
	})
	if err != nil {
		return "", err
	}
	output, _ := out["output"].(string)
	return output, nil
}

// Push pushes the current branch to origin.
func (c *Client) Push(ctx context.Context, chatID string) (string, error) {
	out, err := c.Call(ctx, http.MethodPost, "/push", map[string]any{"chat_id": chatID})
	if err != nil {
		return "", err
	}
	output, _ := out["output"].(string)
	return output, nil
}

// CreateInvite asks the relay for a single-use invitation token. The
// caller must be an admin.
func (c *Client) CreateInvite(ctx context.Context, chatID string) (string, error) {
	out, err := c.Call(ctx, http.MethodPost, "/invites", map[string]any{"chat_id": chatID})
	if err != nil {
		return "", err
	}
	token, _ := out["token"].(string)
	return token, nil
}

// Join redeems an invitation token for chatID. Returns false when the
// token is unknown, already used, or expired.
func (c *Client) Join(ctx context.Context, chatID, token string) (bool, error) {
	out, err := c.Call(ctx, http.MethodPost, "/join", map[string]any{
		"chat_id": chatID, "token": token,
	})
	if err != nil {
		return false, err
	}
	joined, _ := out["joined"].(bool)
	return joined, nil
}

// User is one directory entry from Users.
type User struct {
	ChatID  string
	IsAdmin bool
}

// Users lists the directory. The caller must be an admin.
func (c *Client) Users(ctx context.Context, chatID string) ([]User, error) {
	out, err := c.Call(ctx, http.MethodPost, "/users", map[string]any{"chat_id": chatID})
	if err != nil {
		return nil, err
	}
	raw, _ := out["users"].([]any)
	users := make([]User, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		u := User{}
		u.ChatID, _ = m["chat_id"].(string)
		u.IsAdmin, _ = m["is_admin"].(bool)
		users = append(users, u)
	}
	return users, nil
}

func stringSlice(v any) []string {
	raw, _ := v.([]any)
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
