// ABOUTME: End-to-end tests driving the HTTP server through the authentication gate
// ABOUTME: Covers meta routes, repository operations, suggestion flow, and the user directory

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/repo-relay/internal/auth"
	"github.com/2389/repo-relay/internal/codec"
	"github.com/2389/repo-relay/internal/config"
	"github.com/2389/repo-relay/internal/store"
	"github.com/2389/repo-relay/internal/suggest"
	"github.com/2389/repo-relay/internal/workspace"
)

const (
	testAPIKey = "server-test-api-key"
	adminChat  = "123456"
	memberChat = "789012"
)

// stubSuggester returns a canned suggestion without calling any endpoint.
type stubSuggester struct {
	suggestion *suggest.Suggestion
	err        error
}

func (s *stubSuggester) Suggest(_ context.Context, req *suggest.Request) (*suggest.Suggestion, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.suggestion != nil {
		return s.suggestion, nil
	}
	return &suggest.Suggestion{
		FilePath:    req.FilePath,
		Description: req.Description,
		Content:     "suggested content\n",
	}, nil
}

type testEnv struct {
	handler http.Handler
	codec   *codec.Codec
	signer  *auth.Signer
	repoDir string
}

func newTestEnv(t *testing.T, sg suggest.Suggester) *testEnv {
	t.Helper()

	base := t.TempDir()
	repoDir := filepath.Join(base, "demo")
	require.NoError(t, os.MkdirAll(filepath.Join(repoDir, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "README.md"), []byte("# demo\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "docs", "guide.md"), []byte("guide\n"), 0o644))

	registry := filepath.Join(base, "repos.toml")
	require.NoError(t, os.WriteFile(registry, []byte(
		"[[repos]]\nname = \"demo\"\npath = \"demo\"\ndefault_branch = \"main\"\n",
	), 0o644))

	ws, err := workspace.NewManager(registry, base)
	require.NoError(t, err)

	key, err := codec.GenerateKey()
	require.NoError(t, err)
	c, err := codec.NewFromString(key)
	require.NoError(t, err)

	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	dir, err := auth.NewDirectory(context.Background(), st,
		[]string{adminChat, memberChat}, []string{adminChat})
	require.NoError(t, err)

	cfg := &config.Config{
		Server: config.ServerConfig{HTTPAddr: "127.0.0.1:0"},
		Security: config.SecurityConfig{
			APIKey:        testAPIKey,
			EncryptionKey: key,
			ExemptPaths:   config.DefaultExemptPaths,
		},
	}

	if sg == nil {
		sg = &stubSuggester{}
	}

	srv := New(cfg, c, dir, ws, sg, "test")
	return &testEnv{
		handler: srv.Handler(),
		codec:   c,
		signer:  auth.NewSigner(testAPIKey),
		repoDir: repoDir,
	}
}

// do sends a signed, encrypted request and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, payload map[string]any) *httptest.ResponseRecorder {
	t.Helper()

	plaintext, err := json.Marshal(payload)
	require.NoError(t, err)
	token, err := e.codec.Encrypt(string(plaintext))
	require.NoError(t, err)
	body, err := json.Marshal(map[string]string{"encrypted_data": token})
	require.NoError(t, err)

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set(auth.HeaderAPIKey, testAPIKey)
	req.Header.Set(auth.HeaderTimestamp, timestamp)
	req.Header.Set(auth.HeaderSignature, e.signer.Sign(body, timestamp))

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// decrypt unwraps an {"encrypted_data": token} response body.
func (e *testEnv) decrypt(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var envelope struct {
		EncryptedData *string `json:"encrypted_data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.EncryptedData, "response carried no encrypted payload")

	plaintext, err := e.codec.Decrypt(*envelope.EncryptedData)
	require.NoError(t, err)

	out := map[string]any{}
	require.NoError(t, json.Unmarshal([]byte(plaintext), &out))
	return out
}

func TestMetaRoutes_BypassGate(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{"/", "/health", "/docs", "/openapi.json", "/capabilities"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "path %s", path)
	}
}

func TestProtectedRoute_RejectsUnsignedRequest(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/repos", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRepos_ListsRegistry(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/repos", map[string]any{"chat_id": adminChat})
	require.Equal(t, http.StatusOK, rec.Code)

	out := env.decrypt(t, rec)
	assert.Equal(t, "success", out["status"])
	assert.Contains(t, out["repos"], "demo")
}

func TestRepos_UnknownChatForbidden(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/repos", map[string]any{"chat_id": "999999"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRepos_MissingChatID(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/repos", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSelectAndFileOperations(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/select", map[string]any{
		"chat_id": memberChat, "repo_name": "demo",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/files", map[string]any{"chat_id": memberChat})
	require.Equal(t, http.StatusOK, rec.Code)
	out := env.decrypt(t, rec)
	assert.Contains(t, out["files"], "README.md")

	rec = env.do(t, http.MethodPost, "/file", map[string]any{
		"chat_id": memberChat, "file_path": "README.md",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	out = env.decrypt(t, rec)
	assert.Equal(t, "# demo\n", out["content"])
}

func TestSelect_UnknownRepo(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/select", map[string]any{
		"chat_id": memberChat, "repo_name": "nope",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFile_PathEscapeRejected(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/select", map[string]any{
		"chat_id": memberChat, "repo_name": "demo",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/file", map[string]any{
		"chat_id": memberChat, "file_path": "../repos.toml",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFiles_NoRepoSelected(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/files", map[string]any{"chat_id": memberChat})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSuggestApplyFlow(t *testing.T) {
	env := newTestEnv(t, &stubSuggester{suggestion: &suggest.Suggestion{
		FilePath:    "README.md",
		Description: "rewrite the readme",
		Content:     "# rewritten\n",
	}})

	rec := env.do(t, http.MethodPost, "/select", map[string]any{
		"chat_id": memberChat, "repo_name": "demo",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/suggest", map[string]any{
		"chat_id": memberChat, "file_path": "README.md", "description": "rewrite the readme",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	out := env.decrypt(t, rec)
	assert.Equal(t, "# rewritten\n", out["content"])

	// Not written until applied
	data, err := os.ReadFile(filepath.Join(env.repoDir, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "# demo\n", string(data))

	rec = env.do(t, http.MethodPost, "/apply", map[string]any{"chat_id": memberChat})
	require.Equal(t, http.StatusOK, rec.Code)

	data, err = os.ReadFile(filepath.Join(env.repoDir, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "# rewritten\n", string(data))
}

func TestRejectLeavesFileUntouched(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/select", map[string]any{
		"chat_id": memberChat, "repo_name": "demo",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/suggest", map[string]any{
		"chat_id": memberChat, "file_path": "README.md", "description": "anything",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/reject", map[string]any{"chat_id": memberChat})
	require.Equal(t, http.StatusOK, rec.Code)

	data, err := os.ReadFile(filepath.Join(env.repoDir, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "# demo\n", string(data))

	// Nothing left to apply
	rec = env.do(t, http.MethodPost, "/apply", map[string]any{"chat_id": memberChat})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSuggest_UpstreamFailure(t *testing.T) {
	env := newTestEnv(t, &stubSuggester{err: fmt.Errorf("model unavailable")})

	rec := env.do(t, http.MethodPost, "/select", map[string]any{
		"chat_id": memberChat, "repo_name": "demo",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/suggest", map[string]any{
		"chat_id": memberChat, "file_path": "README.md", "description": "anything",
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestInviteJoinFlow(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/invites", map[string]any{"chat_id": adminChat})
	require.Equal(t, http.StatusOK, rec.Code)
	out := env.decrypt(t, rec)
	token, _ := out["token"].(string)
	require.NotEmpty(t, token)

	const newcomer = "555555"
	rec = env.do(t, http.MethodPost, "/repos", map[string]any{"chat_id": newcomer})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/join", map[string]any{
		"chat_id": newcomer, "token": token,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	out = env.decrypt(t, rec)
	assert.Equal(t, true, out["joined"])

	rec = env.do(t, http.MethodPost, "/repos", map[string]any{"chat_id": newcomer})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Second redemption of the same token fails
	rec = env.do(t, http.MethodPost, "/join", map[string]any{
		"chat_id": "666666", "token": token,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	out = env.decrypt(t, rec)
	assert.Equal(t, false, out["joined"])
}

func TestInvites_NonAdminForbidden(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/invites", map[string]any{"chat_id": memberChat})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestNavigation_CdPwdTree(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/select", map[string]any{
		"chat_id": memberChat, "repo_name": "demo",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/pwd", map[string]any{"chat_id": memberChat})
	require.Equal(t, http.StatusOK, rec.Code)
	out := env.decrypt(t, rec)
	assert.Equal(t, ".", out["working_dir"])

	rec = env.do(t, http.MethodPost, "/cd", map[string]any{
		"chat_id": memberChat, "path": "docs",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	out = env.decrypt(t, rec)
	assert.Equal(t, "docs", out["working_dir"])

	rec = env.do(t, http.MethodPost, "/pwd", map[string]any{"chat_id": memberChat})
	require.Equal(t, http.StatusOK, rec.Code)
	out = env.decrypt(t, rec)
	assert.Equal(t, "docs", out["working_dir"])

	rec = env.do(t, http.MethodPost, "/tree", map[string]any{"chat_id": memberChat})
	require.Equal(t, http.StatusOK, rec.Code)
	out = env.decrypt(t, rec)
	tree, _ := out["tree"].(string)
	assert.Equal(t, "docs\n└── guide.md", tree)
}

func TestTree_FromRepoRoot(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/select", map[string]any{
		"chat_id": memberChat, "repo_name": "demo",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/tree", map[string]any{
		"chat_id": memberChat, "max_depth": 1,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	out := env.decrypt(t, rec)
	tree, _ := out["tree"].(string)
	assert.Contains(t, tree, "README.md")
	assert.Contains(t, tree, "├── ")
	assert.NotContains(t, tree, "guide.md", "depth 1 should not descend into docs")
}

func TestBearerToken_CarriesChatIdentity(t *testing.T) {
	env := newTestEnv(t, nil)

	token, err := auth.NewJWTVerifier([]byte(testAPIKey)).Generate("ops", adminChat, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/repos", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	out := env.decrypt(t, rec)
	assert.Equal(t, "success", out["status"])
	assert.Contains(t, out["repos"], "demo")
}

func TestUsers_AdminOnly(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/users", map[string]any{"chat_id": adminChat})
	require.Equal(t, http.StatusOK, rec.Code)
	out := env.decrypt(t, rec)
	users, ok := out["users"].([]any)
	require.True(t, ok)
	assert.Len(t, users, 2)

	rec = env.do(t, http.MethodPost, "/users", map[string]any{"chat_id": memberChat})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
