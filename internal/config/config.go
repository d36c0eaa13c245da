// ABOUTME: Configuration loading and parsing for repo-relay
// ABOUTME: YAML files with environment expansion, env overrides, and security validation

package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/2389/repo-relay/internal/codec"
)

// DefaultExemptPaths are the routes that bypass the authentication gate
// when the configuration does not list its own set.
var DefaultExemptPaths = []string{"/", "/health", "/docs", "/openapi.json", "/capabilities"}

// Config represents the complete repo-relay configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Security  SecurityConfig  `yaml:"security"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Suggest   SuggestConfig   `yaml:"suggest"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds server address configuration.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SecurityConfig holds the trust-boundary configuration. Environment
// variables override file values for every field, so a deployment can
// keep secrets out of the config file entirely.
type SecurityConfig struct {
	// APIKey is the shared credential. Generated and persisted on first
	// start when absent.
	APIKey string `yaml:"api_key" env:"RELAY_API_KEY"`
	// EncryptionKey is the base64-encoded 32-byte payload key. Startup
	// fails when it is missing; the relay never runs unencrypted.
	EncryptionKey   string   `yaml:"encryption_key" env:"RELAY_ENCRYPTION_KEY"`
	AuthorizedUsers []string `yaml:"authorized_users" env:"AUTHORIZED_USERS" envSeparator:","`
	AdminUsers      []string `yaml:"admin_users" env:"ADMIN_USER" envSeparator:","`
	ExemptPaths     []string `yaml:"exempt_paths"`
	// InsecureSkipSignature disables signature verification at the gate.
	// Development only.
	InsecureSkipSignature bool `yaml:"insecure_skip_signature" env:"RELAY_INSECURE_SKIP_SIGNATURE"`
}

// WorkspaceConfig holds git workspace configuration.
type WorkspaceConfig struct {
	// RegistryPath points at the repos.toml registry file.
	RegistryPath string `yaml:"registry_path"`
	// BasePath is prepended to relative repository paths in the registry.
	BasePath string `yaml:"base_path"`
}

// SuggestConfig holds the LLM suggestion endpoint configuration.
type SuggestConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key" env:"SUGGEST_API_KEY"`
	Model    string `yaml:"model"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a
// parsed Config. ${VAR_NAME} patterns in the raw YAML are expanded,
// environment variables override the security section, a missing API key
// is generated and persisted back to the file, and a missing encryption
// key fails the load.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := env.Parse(&cfg.Security); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}
	if err := env.Parse(&cfg.Suggest); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	cfg.Security.AuthorizedUsers = trimEmpty(cfg.Security.AuthorizedUsers)
	cfg.Security.AdminUsers = trimEmpty(cfg.Security.AdminUsers)
	if len(cfg.Security.ExemptPaths) == 0 {
		cfg.Security.ExemptPaths = DefaultExemptPaths
	}

	if cfg.Security.APIKey == "" {
		key, err := GenerateAPIKey()
		if err != nil {
			return nil, fmt.Errorf("generating API key: %w", err)
		}
		cfg.Security.APIKey = key
		if err := persistAPIKey(path, key); err != nil {
			return nil, fmt.Errorf("persisting generated API key: %w", err)
		}
		slog.Warn("no API key configured; generated a new one and saved it to the config file",
			"path", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// Validate checks that all required configuration fields are present and
// valid. Returns an error describing the first validation failure.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Security.EncryptionKey == "" {
		return fmt.Errorf("security.encryption_key is required; generate one with `repo-relay keygen`")
	}
	if _, err := codec.NewFromString(c.Security.EncryptionKey); err != nil {
		return fmt.Errorf("security.encryption_key is invalid: %w", err)
	}
	return nil
}

// GenerateAPIKey returns a fresh credential: 32 random bytes, hex-encoded.
func GenerateAPIKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with environment variable
// values. Unset variables expand to empty strings.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// persistAPIKey writes the generated key back into the config file,
// replacing an empty api_key line or inserting one under the security
// section. Line-based so the rest of the file is left untouched.
func persistAPIKey(path, key string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	lines := strings.Split(string(data), "\n")

	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "api_key:") {
			indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
			lines[i] = indent + "api_key: " + key
			return writeLines(path, lines)
		}
	}

	for i, line := range lines {
		if strings.TrimSpace(line) == "security:" {
			lines = append(lines[:i+1], append([]string{"  api_key: " + key}, lines[i+1:]...)...)
			return writeLines(path, lines)
		}
	}

	lines = append(lines, "security:", "  api_key: "+key, "")
	return writeLines(path, lines)
}

func writeLines(path string, lines []string) error {
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o600)
}

func trimEmpty(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
