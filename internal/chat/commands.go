// ABOUTME: The slash command table: repository, suggestion, and directory commands
// ABOUTME: Each handler returns reply text; guard enforcement lives at the relay

package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

func commandTable() []*command {
	return []*command{
		{
			name:        "start",
			description: "Introduce the bot",
			handler: func(_ context.Context, _ *Router, _ string, _ []string) (string, error) {
				return "repo-relay at your service. /repos lists repositories; /help lists everything.", nil
			},
		},
		{
			name:        "help",
			description: "List available commands",
			handler:     handleHelp,
		},
		{
			name:        "repos",
			description: "List registered repositories",
			handler: func(ctx context.Context, r *Router, chatID string, _ []string) (string, error) {
				repos, err := r.relay.Repos(ctx, chatID)
				if err != nil {
					return "", err
				}
				if len(repos) == 0 {
					return "No repositories registered.", nil
				}
				return "Repositories:\n" + bulleted(repos), nil
			},
		},
		{
			name:        "select",
			usage:       "/select <repo>",
			description: "Choose the working repository",
			handler: func(ctx context.Context, r *Router, chatID string, args []string) (string, error) {
				if len(args) != 1 {
					return "", &usageError{usage: "/select <repo>"}
				}
				if err := r.relay.Select(ctx, chatID, args[0]); err != nil {
					return "", err
				}
				return fmt.Sprintf("Now working in %s.", args[0]), nil
			},
		},
		{
			name:        "status",
			description: "Show git status",
			handler: func(ctx context.Context, r *Router, chatID string, _ []string) (string, error) {
				status, err := r.relay.Status(ctx, chatID)
				if err != nil {
					return "", err
				}
				return status, nil
			},
		},
		{
			name:        "branches",
			description: "List branches",
			handler: func(ctx context.Context, r *Router, chatID string, _ []string) (string, error) {
				current, branches, err := r.relay.Branches(ctx, chatID)
				if err != nil {
					return "", err
				}
				var b strings.Builder
				for _, branch := range branches {
					marker := "  "
					if branch == current {
						marker = "* "
					}
					fmt.Fprintf(&b, "%s%s\n", marker, branch)
				}
				return strings.TrimRight(b.String(), "\n"), nil
			},
		},
		{
			name:        "checkout",
			usage:       "/checkout <branch>",
			description: "Switch branches",
			handler: func(ctx context.Context, r *Router, chatID string, args []string) (string, error) {
				if len(args) != 1 {
					return "", &usageError{usage: "/checkout <branch>"}
				}
				if err := r.relay.Checkout(ctx, chatID, args[0]); err != nil {
					return "", err
				}
				return fmt.Sprintf("Switched to %s.", args[0]), nil
			},
		},
		{
			name:        "files",
			usage:       "/files [path]",
			description: "List files in the repository",
			handler: func(ctx context.Context, r *Router, chatID string, args []string) (string, error) {
				path := ""
				if len(args) > 0 {
					path = args[0]
				}
				files, err := r.relay.Files(ctx, chatID, path)
				if err != nil {
					return "", err
				}
				if len(files) == 0 {
					return "Empty directory.", nil
				}
				return bulleted(files), nil
			},
		},
		{
			name:        "file",
			usage:       "/file <path>",
			description: "Show a file's contents",
			handler: func(ctx context.Context, r *Router, chatID string, args []string) (string, error) {
				if len(args) != 1 {
					return "", &usageError{usage: "/file <path>"}
				}
				content, err := r.relay.File(ctx, chatID, args[0])
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%s:\n%s", args[0], truncate(content, 3500)), nil
			},
		},
		{
			name:        "tree",
			usage:       "/tree [depth]",
			description: "Show the directory structure",
			handler: func(ctx context.Context, r *Router, chatID string, args []string) (string, error) {
				depth := 0
				if len(args) > 0 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n < 1 {
						return "", &usageError{usage: "/tree [depth]"}
					}
					depth = n
				}
				tree, err := r.relay.Tree(ctx, chatID, depth)
				if err != nil {
					return "", err
				}
				return truncate(tree, 3500), nil
			},
		},
		{
			name:        "cd",
			usage:       "/cd <path>",
			description: "Change the working directory",
			handler: func(ctx context.Context, r *Router, chatID string, args []string) (string, error) {
				if len(args) != 1 {
					return "", &usageError{usage: "/cd <path>"}
				}
				dir, err := r.relay.Cd(ctx, chatID, args[0])
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Working directory: %s", dir), nil
			},
		},
		{
			name:        "pwd",
			description: "Show the working directory",
			handler: func(ctx context.Context, r *Router, chatID string, _ []string) (string, error) {
				dir, err := r.relay.Pwd(ctx, chatID)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Working directory: %s", dir), nil
			},
		},
		{
			name:        "suggest",
			usage:       "/suggest <path> <description>",
			description: "Ask for a modification suggestion",
			handler: func(ctx context.Context, r *Router, chatID string, args []string) (string, error) {
				if len(args) < 2 {
					return "", &usageError{usage: "/suggest <path> <description>"}
				}
				result, err := r.relay.Suggest(ctx, chatID, args[0], strings.Join(args[1:], " "))
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Suggestion for %s:\n%s\n\n/apply to write it, /reject to discard.",
					result.FilePath, truncate(result.Content, 3500)), nil
			},
		},
		{
			name:        "apply",
			description: "Apply the pending suggestion",
			handler: func(ctx context.Context, r *Router, chatID string, _ []string) (string, error) {
				path, err := r.relay.Apply(ctx, chatID)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Applied suggestion to %s.", path), nil
			},
		},
		{
			name:        "reject",
			description: "Discard the pending suggestion",
			handler: func(ctx context.Context, r *Router, chatID string, _ []string) (string, error) {
				path, err := r.relay.Reject(ctx, chatID)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Discarded suggestion for %s.", path), nil
			},
		},
		{
			name:        "commit",
			usage:       "/commit <message>",
			description: "Commit all changes",
			handler: func(ctx context.Context, r *Router, chatID string, args []string) (string, error) {
				if len(args) == 0 {
					return "", &usageError{usage: "/commit <message>"}
				}
				out, err := r.relay.Commit(ctx, chatID, strings.Join(args, " "))
				if err != nil {
					return "", err
				}
				return "Committed.\n" + out, nil
			},
		},
		{
			name:        "push",
			description: "Push to origin",
			handler: func(ctx context.Context, r *Router, chatID string, _ []string) (string, error) {
				out, err := r.relay.Push(ctx, chatID)
				if err != nil {
					return "", err
				}
				return "Pushed.\n" + out, nil
			},
		},
		{
			name:        "invite",
			description: "Create a single-use invite token",
			adminOnly:   true,
			handler: func(ctx context.Context, r *Router, chatID string, _ []string) (string, error) {
				token, err := r.relay.CreateInvite(ctx, chatID)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Invite token (single use, expires in 24h):\n%s", token), nil
			},
		},
		{
			name:        "join",
			usage:       "/join <token>",
			description: "Redeem an invite token",
			handler: func(ctx context.Context, r *Router, chatID string, args []string) (string, error) {
				if len(args) != 1 {
					return "", &usageError{usage: "/join <token>"}
				}
				joined, err := r.relay.Join(ctx, chatID, args[0])
				if err != nil {
					return "", err
				}
				if !joined {
					return "That token is invalid, expired, or already used.", nil
				}
				return "Welcome aboard. /repos to get started.", nil
			},
		},
		{
			name:        "users",
			description: "List directory members",
			adminOnly:   true,
			handler: func(ctx context.Context, r *Router, chatID string, _ []string) (string, error) {
				users, err := r.relay.Users(ctx, chatID)
				if err != nil {
					return "", err
				}
				var b strings.Builder
				b.WriteString("Users:\n")
				for _, u := range users {
					role := "member"
					if u.IsAdmin {
						role = "admin"
					}
					fmt.Fprintf(&b, "- %s (%s)\n", u.ChatID, role)
				}
				return strings.TrimRight(b.String(), "\n"), nil
			},
		},
	}
}

func handleHelp(_ context.Context, r *Router, _ string, _ []string) (string, error) {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, name := range r.order {
		cmd := r.commands[name]
		line := "/" + cmd.name
		if cmd.usage != "" {
			line = cmd.usage
		}
		fmt.Fprintf(&b, "%s: %s", line, cmd.description)
		if cmd.adminOnly {
			b.WriteString(" (admin)")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func bulleted(items []string) string {
	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "- %s\n", item)
	}
	return strings.TrimRight(b.String(), "\n")
}

// truncate keeps replies under chat platform message limits.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n[truncated]"
}
