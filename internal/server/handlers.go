// ABOUTME: Protected HTTP handlers for repository, suggestion, and directory operations
// ABOUTME: Thin wrappers decrypting payloads, delegating to collaborators, encrypting responses

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/2389/repo-relay/internal/auth"
	"github.com/2389/repo-relay/internal/suggest"
	"github.com/2389/repo-relay/internal/workspace"
)

// payload reads and decrypts the request body. Garbled or absent bodies
// come back as an empty map; the chat id may also arrive in the
// X-Chat-ID header, or from the chat identity a bearer token is bound
// to, when there is no encrypted payload.
func (s *Server) payload(r *http.Request) map[string]any {
	body, err := io.ReadAll(io.LimitReader(r.Body, 8<<20))
	if err != nil {
		return map[string]any{}
	}
	p := auth.DecryptRequest(s.codec, body)
	if _, ok := p["chat_id"]; !ok {
		if chatID := r.Header.Get("X-Chat-ID"); chatID != "" {
			p["chat_id"] = chatID
		} else if id := auth.IdentityFromContext(r.Context()); id != nil && id.ChatID != "" {
			p["chat_id"] = id.ChatID
		}
	}
	return p
}

func stringField(p map[string]any, key string) string {
	v, _ := p[key].(string)
	return v
}

// requireUser extracts the chat id from the payload and checks it is an
// authorized identity. Writes the error response itself when not.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request, p map[string]any) (string, bool) {
	chatID := stringField(p, "chat_id")
	if chatID == "" {
		s.writeError(w, http.StatusBadRequest, "chat_id required")
		return "", false
	}
	if !s.directory.IsAuthorized(r.Context(), chatID) {
		s.writeError(w, http.StatusForbidden, "user not authorized")
		return "", false
	}
	return chatID, true
}

func (s *Server) writeEncrypted(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(auth.EncryptResponse(s.codec, data))
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeDomainError maps expected workspace errors to client statuses and
// everything else to an opaque 500.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, workspace.ErrNoRepoSelected),
		errors.Is(err, workspace.ErrNoPendingSuggestion):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, workspace.ErrRepoNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, workspace.ErrPathEscapes):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrForbidden):
		s.writeError(w, http.StatusForbidden, "admin privileges required")
	default:
		s.logger.Error("handler error", "path", r.URL.Path, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleListRepos(w http.ResponseWriter, r *http.Request) {
	p := s.payload(r)
	if _, ok := s.requireUser(w, r, p); !ok {
		return
	}

	repos := s.workspace.ListRepos()
	names := make([]string, len(repos))
	for i, repo := range repos {
		names[i] = repo.Name
	}
	s.writeEncrypted(w, map[string]any{"status": "success", "repos": names})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	p := s.payload(r)
	chatID, ok := s.requireUser(w, r, p)
	if !ok {
		return
	}
	repoName := stringField(p, "repo_name")
	if repoName == "" {
		s.writeError(w, http.StatusBadRequest, "repo_name required")
		return
	}

	if err := s.workspace.Select(chatID, repoName); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeEncrypted(w, map[string]any{"status": "success", "repo_name": repoName})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	p := s.payload(r)
	chatID, ok := s.requireUser(w, r, p)
	if !ok {
		return
	}

	status, err := s.workspace.Status(r.Context(), chatID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeEncrypted(w, map[string]any{"status": "success", "git_status": status})
}

func (s *Server) handleBranches(w http.ResponseWriter, r *http.Request) {
	p := s.payload(r)
	chatID, ok := s.requireUser(w, r, p)
	if !ok {
		return
	}

	current, branches, err := s.workspace.Branches(r.Context(), chatID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeEncrypted(w, map[string]any{
		"status": "success", "current": current, "branches": branches,
	})
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	p := s.payload(r)
	chatID, ok := s.requireUser(w, r, p)
	if !ok {
		return
	}
	branch := stringField(p, "branch")

	if err := s.workspace.Checkout(r.Context(), chatID, branch); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeEncrypted(w, map[string]any{"status": "success", "branch": branch})
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	p := s.payload(r)
	chatID, ok := s.requireUser(w, r, p)
	if !ok {
		return
	}

	files, err := s.workspace.ListFiles(chatID, stringField(p, "path"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeEncrypted(w, map[string]any{"status": "success", "files": files})
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	p := s.payload(r)
	chatID, ok := s.requireUser(w, r, p)
	if !ok {
		return
	}
	depth := 0
	if v, ok := p["max_depth"].(float64); ok {
		depth = int(v)
	}

	tree, err := s.workspace.Tree(chatID, depth)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeEncrypted(w, map[string]any{"status": "success", "tree": tree})
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	p := s.payload(r)
	chatID, ok := s.requireUser(w, r, p)
	if !ok {
		return
	}
	path := stringField(p, "file_path")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "file_path required")
		return
	}

	content, err := s.workspace.ReadFile(chatID, path)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeEncrypted(w, map[string]any{"status": "success", "file_path": path, "content": content})
}

func (s *Server) handleChangeDir(w http.ResponseWriter, r *http.Request) {
	p := s.payload(r)
	chatID, ok := s.requireUser(w, r, p)
	if !ok {
		return
	}
	path := stringField(p, "path")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "path required")
		return
	}

	if err := s.workspace.ChangeDir(chatID, path); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	dir, err := s.workspace.WorkingDir(chatID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeEncrypted(w, map[string]any{"status": "success", "working_dir": dir})
}

func (s *Server) handleWorkingDir(w http.ResponseWriter, r *http.Request) {
	p := s.payload(r)
	chatID, ok := s.requireUser(w, r, p)
	if !ok {
		return
	}

	dir, err := s.workspace.WorkingDir(chatID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeEncrypted(w, map[string]any{"status": "success", "working_dir": dir})
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	p := s.payload(r)
	chatID, ok := s.requireUser(w, r, p)
	if !ok {
		return
	}
	filePath := stringField(p, "file_path")
	description := stringField(p, "description")
	if filePath == "" || description == "" {
		s.writeError(w, http.StatusBadRequest, "file_path and description required")
		return
	}

	// Missing file is fine: the suggestion may create it
	content, err := s.workspace.ReadFile(chatID, filePath)
	if err != nil {
		if errors.Is(err, workspace.ErrPathEscapes) || errors.Is(err, workspace.ErrNoRepoSelected) {
			s.writeDomainError(w, r, err)
			return
		}
		content = ""
	}

	suggestion, err := s.suggester.Suggest(r.Context(), &suggest.Request{
		FilePath:    filePath,
		Description: description,
		FileContent: content,
	})
	if err != nil {
		s.logger.Error("suggestion failed", "chat_id", chatID, "error", err)
		s.writeError(w, http.StatusBadGateway, "suggestion generation failed")
		return
	}

	if err := s.workspace.SetPendingSuggestion(chatID, &workspace.Suggestion{
		FilePath:    suggestion.FilePath,
		Description: suggestion.Description,
		Content:     suggestion.Content,
	}); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.writeEncrypted(w, map[string]any{
		"status":      "success",
		"file_path":   suggestion.FilePath,
		"description": suggestion.Description,
		"content":     suggestion.Content,
	})
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	p := s.payload(r)
	chatID, ok := s.requireUser(w, r, p)
	if !ok {
		return
	}

	applied, err := s.workspace.ApplyPendingSuggestion(chatID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeEncrypted(w, map[string]any{"status": "success", "file_path": applied.FilePath})
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	p := s.payload(r)
	chatID, ok := s.requireUser(w, r, p)
	if !ok {
		return
	}

	rejected, err := s.workspace.RejectPendingSuggestion(chatID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeEncrypted(w, map[string]any{"status": "success", "file_path": rejected.FilePath})
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	p := s.payload(r)
	chatID, ok := s.requireUser(w, r, p)
	if !ok {
		return
	}
	message := stringField(p, "message")
	if message == "" {
		s.writeError(w, http.StatusBadRequest, "message required")
		return
	}

	out, err := s.workspace.Commit(r.Context(), chatID, message)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeEncrypted(w, map[string]any{"status": "success", "output": out})
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	p := s.payload(r)
	chatID, ok := s.requireUser(w, r, p)
	if !ok {
		return
	}

	out, err := s.workspace.Push(r.Context(), chatID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeEncrypted(w, map[string]any{"status": "success", "output": out})
}

func (s *Server) handleCreateInvite(w http.ResponseWriter, r *http.Request) {
	p := s.payload(r)
	chatID := stringField(p, "chat_id")
	if chatID == "" {
		s.writeError(w, http.StatusBadRequest, "chat_id required")
		return
	}

	token, err := s.directory.GenerateInvite(r.Context(), chatID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeEncrypted(w, map[string]any{"status": "success", "token": token})
}

// handleJoin redeems an invite. The joining identity is by definition
// not yet authorized, so this handler skips the requireUser check.
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	p := s.payload(r)
	chatID := stringField(p, "chat_id")
	token := stringField(p, "token")
	if chatID == "" || token == "" {
		s.writeError(w, http.StatusBadRequest, "chat_id and token required")
		return
	}

	joined, err := s.directory.RedeemInvite(r.Context(), token, chatID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeEncrypted(w, map[string]any{"status": "success", "joined": joined})
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	p := s.payload(r)
	chatID := stringField(p, "chat_id")
	if chatID == "" {
		s.writeError(w, http.StatusBadRequest, "chat_id required")
		return
	}

	users, err := s.directory.ListUsers(r.Context(), chatID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	list := make([]map[string]any, len(users))
	for i, u := range users {
		list[i] = map[string]any{
			"chat_id":  u.ChatID,
			"is_admin": u.IsAdmin,
		}
	}
	s.writeEncrypted(w, map[string]any{"status": "success", "users": list})
}
