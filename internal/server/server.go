// ABOUTME: HTTP server wiring the gate, codec, directory, and workspace together
// ABOUTME: Registers exempt meta routes and protected relay endpoints

package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/repo-relay/internal/auth"
	"github.com/2389/repo-relay/internal/codec"
	"github.com/2389/repo-relay/internal/config"
	"github.com/2389/repo-relay/internal/suggest"
	"github.com/2389/repo-relay/internal/workspace"
)

// Server is the relay control server.
type Server struct {
	cfg       *config.Config
	codec     *codec.Codec
	directory *auth.Directory
	workspace *workspace.Manager
	suggester suggest.Suggester
	version   string
	logger    *slog.Logger

	httpServer *http.Server
}

// New assembles a Server from its collaborators.
func New(cfg *config.Config, c *codec.Codec, dir *auth.Directory, ws *workspace.Manager, sg suggest.Suggester, version string) *Server {
	return &Server{
		cfg:       cfg,
		codec:     c,
		directory: dir,
		workspace: ws,
		suggester: sg,
		version:   version,
		logger:    slog.Default().With("component", "server"),
	}
}

// Handler builds the full route table wrapped in the authentication gate.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Exempt meta routes
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /docs", s.handleDocs)
	mux.HandleFunc("GET /openapi.json", s.handleOpenAPI)
	mux.HandleFunc("GET /capabilities", s.handleCapabilities)

	// Repository operations. Every protected route is POST: payloads
	// ride in the body, and GET bodies do not survive proxies.
	mux.HandleFunc("POST /repos", s.handleListRepos)
	mux.HandleFunc("POST /select", s.handleSelect)
	mux.HandleFunc("POST /status", s.handleStatus)
	mux.HandleFunc("POST /branches", s.handleBranches)
	mux.HandleFunc("POST /checkout", s.handleCheckout)
	mux.HandleFunc("POST /files", s.handleFiles)
	mux.HandleFunc("POST /file", s.handleFile)
	mux.HandleFunc("POST /tree", s.handleTree)
	mux.HandleFunc("POST /cd", s.handleChangeDir)
	mux.HandleFunc("POST /pwd", s.handleWorkingDir)

	// Suggestion flow
	mux.HandleFunc("POST /suggest", s.handleSuggest)
	mux.HandleFunc("POST /apply", s.handleApply)
	mux.HandleFunc("POST /reject", s.handleReject)
	mux.HandleFunc("POST /commit", s.handleCommit)
	mux.HandleFunc("POST /push", s.handlePush)

	// User directory
	mux.HandleFunc("POST /invites", s.handleCreateInvite)
	mux.HandleFunc("POST /join", s.handleJoin)
	mux.HandleFunc("POST /users", s.handleUsers)

	gate := auth.Gate(auth.GateConfig{
		APIKey:                s.cfg.Security.APIKey,
		ExemptPaths:           s.cfg.Security.ExemptPaths,
		InsecureSkipSignature: s.cfg.Security.InsecureSkipSignature,
	}, auth.NewJWTVerifier([]byte(s.cfg.Security.APIKey)), s.logger)

	return gate(mux)
}

// Start serves HTTP until the context is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.HTTPAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.cfg.Server.HTTPAddr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(shutdownCtx)
}
