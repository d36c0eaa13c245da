// ABOUTME: Exempt meta endpoints: root, health, docs, schema, capabilities
// ABOUTME: Renders the embedded API reference to HTML with goldmark

package server

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"net/http"
	"time"

	"github.com/yuin/goldmark"
)

//go:embed api.md
var apiDoc []byte

//go:embed openapi.json
var openAPISchema []byte

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "running",
		"message": "repo-relay is running; authenticated endpoints require signed requests",
		"docs":    "/docs",
		"health":  "/health",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":    "healthy",
		"server":    "repo-relay",
		"version":   s.version,
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := goldmark.Convert(apiDoc, &buf); err != nil {
		s.logger.Error("rendering docs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(openAPISchema)
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"server":  "repo-relay",
		"version": s.version,
		"auth": map[string]any{
			"headers":          []string{"X-API-Key", "X-Timestamp", "X-Signature"},
			"freshness_window": 300,
			"signature":        "hex(hmac-sha256(body || timestamp))",
		},
		"operations": []string{
			"repos", "select", "status", "branches", "checkout",
			"files", "file", "tree", "cd", "pwd",
			"suggest", "apply", "reject", "commit", "push",
			"invites", "join", "users",
		},
	})
}
