// ABOUTME: Operator subcommands for travelmind-gateway
// ABOUTME: init writes a config, token issues API tokens, health and verify check a deployment

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/2389/travelmind-gateway/internal/agent"
	"github.com/2389/travelmind-gateway/internal/auth"
	"github.com/2389/travelmind-gateway/internal/client"
	"github.com/2389/travelmind-gateway/internal/config"
	"github.com/2389/travelmind-gateway/internal/gateway"
	"github.com/2389/travelmind-gateway/internal/store"
)

// slowHealth is the latency above which health reports a warning
const slowHealth = 2 * time.Second

// initAnswers collects what runInit asks for
type initAnswers struct {
	HTTPAddr   string
	Driver     string
	DBPath     string
	DBURL      string
	ProjectID  string
	Backend    string
	DataStore  string
	Model      string
	RemoteAddr string
	JWTSecret  string
	Tailscale  bool
	TSHostname string
	TSFunnel   bool
	LogLevel   string
	LogFormat  string
}

func runInit() error {
	return runInitFrom(os.Stdin)
}

func runInitFrom(in io.Reader) error {
	reader := bufio.NewReader(in)

	fmt.Println("travelmind-gateway configuration setup")
	fmt.Println("======================================")
	fmt.Println()

	outputFile := prompt(reader, "Config file path", config.DefaultPath())

	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, "File exists. Overwrite?", "no")) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	defaults := config.Default()
	var a initAnswers

	fmt.Println("\n--- Server Configuration ---")
	a.HTTPAddr = prompt(reader, "HTTP address", defaults.Server.HTTPAddr)

	fmt.Println("\n--- Database Configuration ---")
	a.Driver = prompt(reader, "Driver (sqlite/postgres/firestore/memory)", defaults.Database.Driver)
	switch a.Driver {
	case config.DriverSQLite:
		a.DBPath = prompt(reader, "SQLite database path", defaults.Database.Path)
	case config.DriverPostgres:
		a.DBURL = prompt(reader, "Postgres URL", "postgres://localhost:5432/travelmind")
	case config.DriverFirestore:
		a.ProjectID = prompt(reader, "Firestore project (empty to share the Vertex project)", "")
	}

	fmt.Println("\n--- Agent Configuration ---")
	a.Backend = prompt(reader, "Backend (vertex/ark/remote/echo)", defaults.Agent.Backend)
	switch a.Backend {
	case config.BackendVertex:
		a.DataStore = prompt(reader, "Vertex AI Search data store", "")
		a.Model = prompt(reader, "Model", defaults.Agent.Vertex.Model)
	case config.BackendArk:
		a.Model = prompt(reader, "Ark model endpoint", "")
	case config.BackendRemote:
		a.RemoteAddr = prompt(reader, "Agent gRPC address", defaults.Agent.Remote.Addr)
	}

	fmt.Println("\n--- Auth Configuration ---")
	if yes(prompt(reader, "Require API tokens?", "yes")) {
		secret, err := generateSecret()
		if err != nil {
			return err
		}
		a.JWTSecret = secret
	}

	fmt.Println("\n--- Tailscale Configuration ---")
	a.Tailscale = yes(prompt(reader, "Enable Tailscale?", "no"))
	if a.Tailscale {
		a.TSHostname = prompt(reader, "Tailscale hostname", defaults.Tailscale.Hostname)
		a.TSFunnel = yes(prompt(reader, "Enable Funnel (public HTTPS)?", "no"))
	}

	fmt.Println("\n--- Logging Configuration ---")
	a.LogLevel = prompt(reader, "Log level (debug/info/warn/error)", defaults.Logging.Level)
	a.LogFormat = prompt(reader, "Log format (text/json)", defaults.Logging.Format)

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// 0600: the file may hold the JWT secret
	if err := os.WriteFile(outputFile, []byte(renderConfig(a)), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	if a.Driver == config.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(a.DBPath), 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nNext steps:")
	fmt.Println("  travelmind-gateway verify")
	if a.JWTSecret != "" {
		fmt.Println("  travelmind-gateway token --subject you@agency.example")
	}
	fmt.Println("  travelmind-gateway serve")

	return nil
}

// renderConfig writes the answers as a gateway.yaml
func renderConfig(a initAnswers) string {
	var cfg strings.Builder
	cfg.WriteString("# travelmind-gateway configuration\n")
	cfg.WriteString("# Generated by travelmind-gateway init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: %q\n", a.HTTPAddr))
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  driver: %q\n", a.Driver))
	if a.DBPath != "" {
		cfg.WriteString(fmt.Sprintf("  path: %q\n", a.DBPath))
	}
	if a.DBURL != "" {
		cfg.WriteString(fmt.Sprintf("  url: %q\n", a.DBURL))
	}
	if a.ProjectID != "" {
		cfg.WriteString(fmt.Sprintf("  project_id: %q\n", a.ProjectID))
	}
	cfg.WriteString("\n")

	cfg.WriteString("agent:\n")
	cfg.WriteString(fmt.Sprintf("  backend: %q\n", a.Backend))
	cfg.WriteString("  timeout: \"120s\"\n")
	switch a.Backend {
	case config.BackendVertex:
		cfg.WriteString("  vertex:\n")
		cfg.WriteString("    project: \"${PROJECT_ID}\"\n")
		cfg.WriteString(fmt.Sprintf("    data_store: %q\n", a.DataStore))
		cfg.WriteString(fmt.Sprintf("    model: %q\n", a.Model))
	case config.BackendArk:
		cfg.WriteString("  ark:\n")
		cfg.WriteString("    api_key: \"${ARK_API_KEY}\"\n")
		cfg.WriteString(fmt.Sprintf("    model: %q\n", a.Model))
	case config.BackendRemote:
		cfg.WriteString("  remote:\n")
		cfg.WriteString(fmt.Sprintf("    addr: %q\n", a.RemoteAddr))
	}
	cfg.WriteString("\n")

	if a.JWTSecret != "" {
		cfg.WriteString("auth:\n")
		cfg.WriteString(fmt.Sprintf("  jwt_secret: %q\n", a.JWTSecret))
		cfg.WriteString("\n")
	}

	cfg.WriteString("tailscale:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", a.Tailscale))
	if a.Tailscale {
		cfg.WriteString(fmt.Sprintf("  hostname: %q\n", a.TSHostname))
		cfg.WriteString(fmt.Sprintf("  funnel: %t\n", a.TSFunnel))
	}
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", a.LogLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n", a.LogFormat))

	return cfg.String()
}

func generateSecret() (string, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(secretBytes), nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func yes(answer string) bool {
	answer = strings.ToLower(answer)
	return answer == "yes" || answer == "y"
}

// runToken issues a signed API token for a travel agent or integration and
// saves it where the chat clients look for it.
func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := fs.String("subject", "", "who the token is for")
	ttl := fs.Duration("ttl", 30*24*time.Hour, "token lifetime (0 for no expiry)")
	out := fs.String("out", client.TokenPath(), "file to save the token to (empty to only print it)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	*subject = strings.TrimSpace(*subject)
	if *subject == "" {
		return fmt.Errorf("--subject flag is required")
	}
	if len(*subject) > 100 {
		return fmt.Errorf("subject exceeds maximum length of 100 characters")
	}

	configPath := config.DefaultPath()
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret not configured in %s", configPath)
	}

	token, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret)).Generate(*subject, *ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	green := color.New(color.FgGreen)

	if *out == "" {
		fmt.Println(token)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	if err := os.WriteFile(*out, []byte(token), 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}

	green.Printf("  ✓ Token for %s saved to %s\n", *subject, *out)
	if *ttl > 0 {
		fmt.Printf("    expires %s\n", time.Now().Add(*ttl).UTC().Format("Jan 02, 2006"))
	}
	return nil
}

// dialAddr turns a listen address into one a local client can reach
func dialAddr(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}

func runHealth(ctx context.Context) error {
	cfg, err := config.LoadForClient(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	c := client.New("http://"+dialAddr(cfg.Server.HTTPAddr), client.WithToken(client.LoadToken()))
	start := time.Now()
	if err := c.Health(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	latency := time.Since(start)

	fmt.Printf("healthy (%s in %s)\n", c.BaseURL(), latency.Round(time.Millisecond))
	if latency > slowHealth {
		color.New(color.FgYellow).Printf("warning: health check took longer than %s\n", slowHealth)
	}
	return nil
}

// runVerify checks the configured database with a probe session and builds
// the configured agent, without starting the server.
func runVerify(ctx context.Context) error {
	configPath := config.DefaultPath()
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Config: %s\n", configPath)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := verifyStore(ctx, cfg.Database); err != nil {
		return err
	}
	green.Printf("  ✓ Database: %s (probe session written)\n", cfg.Database.Driver)

	a, err := agent.New(ctx, cfg.Agent, logger)
	if err != nil {
		return fmt.Errorf("creating agent: %w", err)
	}
	if err := agent.Close(a); err != nil {
		return fmt.Errorf("closing agent: %w", err)
	}
	green.Printf("  ✓ Agent: %s\n", cfg.Agent.Backend)

	return nil
}

// verifyStore writes one message to a fresh session and reads it back
func verifyStore(ctx context.Context, cfg config.DatabaseConfig) (err error) {
	s, err := gateway.OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("closing database: %w", cerr))
		}
	}()

	sessionID := store.NewSessionID()
	const probe = "travelmind-gateway verify"
	if _, err := s.SaveMessage(ctx, sessionID, store.Message{Role: store.RoleUser, Content: probe}); err != nil {
		return fmt.Errorf("writing probe message: %w", err)
	}

	msgs, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("reading probe session: %w", err)
	}
	if len(msgs) != 1 || msgs[0].Content != probe {
		return fmt.Errorf("probe session read back %d messages, want 1", len(msgs))
	}

	if inspector, ok := s.(store.SessionInspector); ok {
		if _, err := inspector.SessionCreatedAt(ctx, sessionID); err != nil {
			return fmt.Errorf("reading probe session record: %w", err)
		}
	}
	return nil
}
