// ABOUTME: HTTP gate middleware enforcing API key, timestamp freshness, and signature
// ABOUTME: Single chokepoint converting all rejection conditions before handler logic runs

package auth

import (
	"bytes"
	"crypto/subtle"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MaxTimestampSkew is the freshness window: a request timestamp may lie
// at most this far from server time, in either direction.
const MaxTimestampSkew = 300 * time.Second

// Request headers checked by the gate.
const (
	HeaderAPIKey    = "X-API-Key"
	HeaderTimestamp = "X-Timestamp"
	HeaderSignature = "X-Signature"
)

// GateConfig configures the request authentication gate.
type GateConfig struct {
	// APIKey is the shared credential all callers must present.
	APIKey string
	// ExemptPaths bypass authentication entirely (health, docs, root).
	ExemptPaths []string
	// FreshnessWindow overrides MaxTimestampSkew when positive.
	FreshnessWindow time.Duration
	// InsecureSkipSignature disables the signature check only. Key,
	// presence, and freshness checks always run. Development use only.
	InsecureSkipSignature bool
}

// Gate returns middleware that admits or rejects every request before it
// reaches the protected handler. Handlers downstream may assume admitted
// requests are authentic and fresh. Rejections map to:
//
//	401 missing headers, stale or unparsable timestamp
//	403 wrong API key or signature mismatch
func Gate(cfg GateConfig, verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "gate")

	window := cfg.FreshnessWindow
	if window <= 0 {
		window = MaxTimestampSkew
	}
	exempt := make(map[string]bool, len(cfg.ExemptPaths))
	for _, p := range cfg.ExemptPaths {
		exempt[p] = true
	}
	signer := NewSigner(cfg.APIKey)

	if cfg.InsecureSkipSignature {
		logger.Warn("signature verification is DISABLED; do not run this in production")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("handler panic", "path", r.URL.Path, "panic", rec)
					writeError(w, http.StatusInternalServerError, "internal error")
				}
			}()

			if exempt[r.URL.Path] {
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), &Identity{Method: "exempt"})))
				return
			}

			// Operator tooling presents a bearer token instead of the
			// signed-header triple.
			if authHeader := r.Header.Get("Authorization"); authHeader != "" && verifier != nil {
				gateBearer(w, r, next, verifier, authHeader, logger)
				return
			}

			apiKey := r.Header.Get(HeaderAPIKey)
			timestamp := r.Header.Get(HeaderTimestamp)
			signature := r.Header.Get(HeaderSignature)

			if apiKey == "" || timestamp == "" || signature == "" {
				logger.Warn("incomplete authentication headers", "path", r.URL.Path)
				writeError(w, http.StatusUnauthorized, "missing authentication headers")
				return
			}

			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(cfg.APIKey)) != 1 {
				logger.Warn("invalid API key", "path", r.URL.Path)
				writeError(w, http.StatusForbidden, "invalid API key")
				return
			}

			requestTime, err := strconv.ParseInt(timestamp, 10, 64)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid timestamp")
				return
			}
			skew := time.Now().Unix() - requestTime
			if skew < 0 {
				skew = -skew
			}
			if skew > int64(window.Seconds()) {
				logger.Warn("stale timestamp", "path", r.URL.Path, "skew_seconds", skew)
				writeError(w, http.StatusUnauthorized, "timestamp expired")
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeError(w, http.StatusBadRequest, "unreadable body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			if !cfg.InsecureSkipSignature && !signer.Verify(body, timestamp, signature) {
				logger.Warn("signature mismatch", "path", r.URL.Path)
				writeError(w, http.StatusForbidden, "invalid signature")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), &Identity{Method: "api-key"})))
		})
	}
}

func gateBearer(w http.ResponseWriter, r *http.Request, next http.Handler, verifier TokenVerifier, authHeader string, logger *slog.Logger) {
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || token == "" {
		writeError(w, http.StatusUnauthorized, "invalid authorization header")
		return
	}
	id, err := verifier.Verify(token)
	if err != nil {
		logger.Warn("bearer token rejected", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusForbidden, "invalid token")
		return
	}
	next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
