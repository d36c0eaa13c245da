// ABOUTME: Chat command router translating slash commands into relay calls
// ABOUTME: Messenger abstracts the chat platform; Relay abstracts the control server

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/2389/repo-relay/internal/client"
)

// Messenger delivers replies back to a chat. Implementations wrap a
// concrete chat platform (Telegram, Matrix, a test recorder).
type Messenger interface {
	Send(ctx context.Context, chatID, text string) error
}

// Relay is the subset of the relay client the router needs.
// *client.Client satisfies it.
type Relay interface {
	Repos(ctx context.Context, chatID string) ([]string, error)
	Select(ctx context.Context, chatID, repoName string) error
	Status(ctx context.Context, chatID string) (string, error)
	Branches(ctx context.Context, chatID string) (string, []string, error)
	Checkout(ctx context.Context, chatID, branch string) error
	Files(ctx context.Context, chatID, path string) ([]string, error)
	File(ctx context.Context, chatID, filePath string) (string, error)
	Tree(ctx context.Context, chatID string, maxDepth int) (string, error)
	Cd(ctx context.Context, chatID, path string) (string, error)
	Pwd(ctx context.Context, chatID string) (string, error)
	Suggest(ctx context.Context, chatID, filePath, description string) (*client.SuggestResult, error)
	Apply(ctx context.Context, chatID string) (string, error)
	Reject(ctx context.Context, chatID string) (string, error)
	Commit(ctx context.Context, chatID, message string) (string, error)
	Push(ctx context.Context, chatID string) (string, error)
	CreateInvite(ctx context.Context, chatID string) (string, error)
	Join(ctx context.Context, chatID, token string) (bool, error)
	Users(ctx context.Context, chatID string) ([]client.User, error)
}

// command is one registered slash command.
type command struct {
	name        string
	usage       string
	description string
	// adminOnly marks commands surfaced only to admins in help text.
	// Enforcement happens at the relay.
	adminOnly bool
	handler   func(ctx context.Context, r *Router, chatID string, args []string) (string, error)
}

// Router dispatches inbound chat messages to command handlers.
type Router struct {
	relay     Relay
	messenger Messenger
	commands  map[string]*command
	order     []string
	logger    *slog.Logger
}

// NewRouter builds a Router with the full command table registered.
func NewRouter(relay Relay, messenger Messenger) *Router {
	r := &Router{
		relay:     relay,
		messenger: messenger,
		commands:  map[string]*command{},
		logger:    slog.Default().With("component", "chat"),
	}
	for _, cmd := range commandTable() {
		r.commands[cmd.name] = cmd
		r.order = append(r.order, cmd.name)
	}
	return r
}

// Dispatch parses one inbound message and replies through the
// messenger. Non-command messages and unknown commands get a pointer to
// /help; relay errors are translated to friendly text rather than
// surfaced raw.
func (r *Router) Dispatch(ctx context.Context, chatID, text string) error {
	name, args := parseCommand(text)
	if name == "" {
		return r.messenger.Send(ctx, chatID, "I only speak slash commands. Try /help.")
	}

	cmd, ok := r.commands[name]
	if !ok {
		return r.messenger.Send(ctx, chatID, fmt.Sprintf("Unknown command /%s. Try /help.", name))
	}

	reply, err := cmd.handler(ctx, r, chatID, args)
	if err != nil {
		reply = r.errorReply(chatID, name, err)
	}
	return r.messenger.Send(ctx, chatID, reply)
}

// errorReply maps relay failures to chat-appropriate text.
func (r *Router) errorReply(chatID, name string, err error) string {
	var usage *usageError
	if errors.As(err, &usage) {
		return "Usage: " + usage.usage
	}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusForbidden:
			return "You are not authorized for that. Ask an admin for an invite and use /join <token>."
		case http.StatusBadRequest, http.StatusNotFound:
			return apiErr.Message
		}
	}

	r.logger.Error("command failed", "command", name, "chat_id", chatID, "error", err)
	return "Something went wrong talking to the relay. Try again in a moment."
}

// usageError signals a malformed invocation; the reply shows the usage line.
type usageError struct {
	usage string
}

func (e *usageError) Error() string { return "usage: " + e.usage }

// parseCommand splits "/select my-repo" into ("select", ["my-repo"]).
// Platform suffixes like "/status@relaybot" are stripped.
func parseCommand(text string) (string, []string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil
	}
	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return "", nil
	}
	name := fields[0]
	if at := strings.Index(name, "@"); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name), fields[1:]
}
