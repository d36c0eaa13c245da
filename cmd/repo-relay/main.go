// ABOUTME: Entry point for the repo-relay control server
// ABOUTME: Subcommands: serve, init, keygen, token, chat, health

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/repo-relay/internal/auth"
	"github.com/2389/repo-relay/internal/chat"
	"github.com/2389/repo-relay/internal/client"
	"github.com/2389/repo-relay/internal/codec"
	"github.com/2389/repo-relay/internal/config"
	"github.com/2389/repo-relay/internal/server"
	"github.com/2389/repo-relay/internal/store"
	"github.com/2389/repo-relay/internal/suggest"
	"github.com/2389/repo-relay/internal/workspace"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                                            _
  _ __ ___ _ __   ___        _ __ ___| | __ _ _   _
 | '__/ _ \ '_ \ / _ \ _____| '__/ _ \ |/ _' | | | |
 | | |  __/ |_) | (_) |_____| | |  __/ | (_| | |_| |
 |_|  \___| .__/ \___/      |_|  \___|_|\__,_|\__, |
          |_|                                 |___/
`

// getConfigPath returns the path to the relay config file.
// Priority: RELAY_CONFIG env var > XDG_CONFIG_HOME/repo-relay/relay.yaml > ~/.config/repo-relay/relay.yaml
func getConfigPath() string {
	if envPath := os.Getenv("RELAY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "relay.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "repo-relay", "relay.yaml")
}

// getDataPath returns the path to the relay data directory.
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "repo-relay")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: repo-relay <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                Start the relay control server")
		fmt.Println("  init                 Create a new config file interactively")
		fmt.Println("  keygen               Generate a fresh API key and encryption key")
		fmt.Println("  token --sub SUBJECT  Mint a bearer token for operator tooling")
		fmt.Println("  chat                 Talk to a running relay from the terminal")
		fmt.Println("  health               Check relay health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "keygen":
		err = runKeygen()
	case "token":
		err = runToken()
	case "chat":
		err = runChat(ctx)
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Registry: %s\n", cfg.Workspace.RegistryPath)
	fmt.Println()

	logger.Info("starting repo-relay",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	c, err := codec.NewFromString(cfg.Security.EncryptionKey)
	if err != nil {
		return fmt.Errorf("loading encryption key: %w", err)
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	directory, err := auth.NewDirectory(ctx, st, cfg.Security.AuthorizedUsers, cfg.Security.AdminUsers)
	if err != nil {
		return fmt.Errorf("loading user directory: %w", err)
	}

	ws, err := workspace.NewManager(cfg.Workspace.RegistryPath, cfg.Workspace.BasePath)
	if err != nil {
		return fmt.Errorf("loading repository registry: %w", err)
	}

	suggester := suggest.NewClient(cfg.Suggest.Endpoint, cfg.Suggest.APIKey, cfg.Suggest.Model)

	srv := server.New(cfg, c, directory, ws, suggester, version)
	return srv.Start(ctx)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("repo-relay configuration setup")
	fmt.Println("==============================")
	fmt.Println()

	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8000")

	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", filepath.Join(defaultDataPath, "relay.db"))

	fmt.Println("\n--- Workspace Configuration ---")
	registryPath := prompt(reader, "Repository registry (repos.toml)", filepath.Join(defaultDataPath, "repos.toml"))
	basePath := prompt(reader, "Repository base path", defaultDataPath)

	fmt.Println("\n--- User Directory ---")
	adminUser := prompt(reader, "Admin chat id", "")
	fmt.Println("\n--- Suggestions ---")
	suggestEndpoint := prompt(reader, "Completion endpoint", "https://api.openai.com/v1/chat/completions")
	suggestModel := prompt(reader, "Model", "gpt-4o-mini")

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	apiKey, err := config.GenerateAPIKey()
	if err != nil {
		return fmt.Errorf("generating API key: %w", err)
	}
	encryptionKey, err := codec.GenerateKey()
	if err != nil {
		return fmt.Errorf("generating encryption key: %w", err)
	}

	var cfg strings.Builder
	cfg.WriteString("# repo-relay configuration\n")
	cfg.WriteString("# Generated by repo-relay init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: %q\n\n", httpAddr))

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n\n", dbPath))

	cfg.WriteString("security:\n")
	cfg.WriteString(fmt.Sprintf("  api_key: %q\n", apiKey))
	cfg.WriteString(fmt.Sprintf("  encryption_key: %q\n", encryptionKey))
	if adminUser != "" {
		cfg.WriteString(fmt.Sprintf("  admin_users: [%q]\n", adminUser))
		cfg.WriteString(fmt.Sprintf("  authorized_users: [%q]\n", adminUser))
	}
	cfg.WriteString("\n")

	cfg.WriteString("workspace:\n")
	cfg.WriteString(fmt.Sprintf("  registry_path: %q\n", registryPath))
	cfg.WriteString(fmt.Sprintf("  base_path: %q\n\n", basePath))

	cfg.WriteString("suggest:\n")
	cfg.WriteString(fmt.Sprintf("  endpoint: %q\n", suggestEndpoint))
	cfg.WriteString("  api_key: \"${SUGGEST_API_KEY}\"\n")
	cfg.WriteString(fmt.Sprintf("  model: %q\n\n", suggestModel))

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n", logFormat))

	if err := os.MkdirAll(filepath.Dir(outputFile), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("\nWrote %s\n", outputFile)
	fmt.Println("Generated api_key and encryption_key are in the file; share them only with the chat front-end.")
	return nil
}

func prompt(reader *bufio.Reader, question, defaultValue string) string {
	if defaultValue != "" {
		fmt.Printf("%s [%s]: ", question, defaultValue)
	} else {
		fmt.Printf("%s: ", question)
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		return defaultValue
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return defaultValue
	}
	return line
}

func runKeygen() error {
	apiKey, err := config.GenerateAPIKey()
	if err != nil {
		return fmt.Errorf("generating API key: %w", err)
	}
	encryptionKey, err := codec.GenerateKey()
	if err != nil {
		return fmt.Errorf("generating encryption key: %w", err)
	}

	fmt.Printf("api_key:        %s\n", apiKey)
	fmt.Printf("encryption_key: %s\n", encryptionKey)
	return nil
}

func runToken() error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	subject := fs.String("sub", "", "token subject (required)")
	chatID := fs.String("chat-id", "", "chat identity the token acts as (optional)")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(os.Args[2:]); err != nil {
		return err
	}
	if *subject == "" {
		return fmt.Errorf("--sub is required")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	token, err := auth.NewJWTVerifier([]byte(cfg.Security.APIKey)).Generate(*subject, *chatID, *ttl)
	if err != nil {
		return fmt.Errorf("minting token: %w", err)
	}
	fmt.Println(token)
	return nil
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	c, err := codec.NewFromString(cfg.Security.EncryptionKey)
	if err != nil {
		return fmt.Errorf("loading encryption key: %w", err)
	}

	relay := client.New(baseURL(cfg.Server.HTTPAddr), cfg.Security.APIKey, c)
	if err := relay.Health(ctx); err != nil {
		return err
	}
	fmt.Println("healthy")
	return nil
}

// stdoutMessenger prints replies for the terminal chat loop.
type stdoutMessenger struct{}

func (stdoutMessenger) Send(_ context.Context, _ string, text string) error {
	fmt.Println(text)
	fmt.Println()
	return nil
}

func runChat(ctx context.Context) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	chatID := fs.String("chat-id", "terminal", "chat id to act as")
	if err := fs.Parse(os.Args[2:]); err != nil {
		return err
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	c, err := codec.NewFromString(cfg.Security.EncryptionKey)
	if err != nil {
		return fmt.Errorf("loading encryption key: %w", err)
	}

	relay := client.New(baseURL(cfg.Server.HTTPAddr), cfg.Security.APIKey, c)
	router := chat.NewRouter(relay, stdoutMessenger{})

	fmt.Printf("Connected to %s as chat id %s. /help for commands, Ctrl-D to quit.\n\n", cfg.Server.HTTPAddr, *chatID)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := router.Dispatch(ctx, *chatID, line); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return scanner.Err()
}

func baseURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	return "http://" + addr
}
