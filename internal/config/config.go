// ABOUTME: Configuration loading and parsing for travelmind-gateway
// ABOUTME: Supports YAML or TOML files with environment variable expansion, env overrides and duration parsing

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Database drivers
const (
	DriverSQLite    = "sqlite"
	DriverPostgres  = "postgres"
	DriverFirestore = "firestore"
	DriverMemory    = "memory"
)

// Agent backends
const (
	BackendVertex = "vertex"
	BackendArk    = "ark"
	BackendRemote = "remote"
	BackendEcho   = "echo"
)

// minJWTSecretLen is the shortest HS256 secret accepted
const minJWTSecretLen = 32

// Config represents the complete travelmind-gateway configuration
type Config struct {
	Server      ServerConfig      `yaml:"server" toml:"server"`
	Tailscale   TailscaleConfig   `yaml:"tailscale" toml:"tailscale"`
	Database    DatabaseConfig    `yaml:"database" toml:"database"`
	Auth        AuthConfig        `yaml:"auth" toml:"auth"`
	CORS        CORSConfig        `yaml:"cors" toml:"cors"`
	Idempotency IdempotencyConfig `yaml:"idempotency" toml:"idempotency"`
	Agent       AgentConfig       `yaml:"agent" toml:"agent"`
	Web         WebConfig         `yaml:"web" toml:"web"`
	Logging     LoggingConfig     `yaml:"logging" toml:"logging"`
}

// ServerConfig holds the API listen address
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	HTTPS     bool   `yaml:"https" toml:"https"`   // Serve on :443 with a tailnet certificate
	Funnel    bool   `yaml:"funnel" toml:"funnel"` // Public Funnel (implies HTTPS)
}

// DatabaseConfig selects and configures the session store
type DatabaseConfig struct {
	Driver     string `yaml:"driver" toml:"driver"`
	Path       string `yaml:"path" toml:"path"`
	URL        string `yaml:"url" toml:"url"`
	ProjectID  string `yaml:"project_id" toml:"project_id"`
	DatabaseID string `yaml:"database_id" toml:"database_id"`
}

// AuthConfig holds authentication configuration.
// An empty JWTSecret leaves the API open.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
}

// CORSConfig holds browser cross-origin settings
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
}

// IdempotencyConfig bounds the replay cache for X-Idempotency-Key
type IdempotencyConfig struct {
	TTL        time.Duration `yaml:"-" toml:"-"`
	MaxEntries int           `yaml:"max_entries" toml:"max_entries"`

	// Raw string value for unmarshaling
	TTLRaw string `yaml:"ttl" toml:"ttl"`
}

// AgentConfig selects the agent backend and holds per-backend settings
type AgentConfig struct {
	Backend          string            `yaml:"backend" toml:"backend"`
	Timeout          time.Duration     `yaml:"-" toml:"-"`
	SystemPromptFile string            `yaml:"system_prompt_file" toml:"system_prompt_file"`
	Vertex           VertexConfig      `yaml:"vertex" toml:"vertex"`
	Ark              ArkConfig         `yaml:"ark" toml:"ark"`
	Remote           RemoteAgentConfig `yaml:"remote" toml:"remote"`

	// Raw string value for unmarshaling
	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// VertexConfig configures grounded generation on Vertex AI
type VertexConfig struct {
	Project   string `yaml:"project" toml:"project"`
	Location  string `yaml:"location" toml:"location"`
	DataStore string `yaml:"data_store" toml:"data_store"`
	Model     string `yaml:"model" toml:"model"`
}

// DataStorePath returns the fully qualified Vertex AI Search data store.
// A value that already starts with "projects/" is used as is.
func (v VertexConfig) DataStorePath() string {
	if strings.HasPrefix(v.DataStore, "projects/") {
		return v.DataStore
	}
	return fmt.Sprintf("projects/%s/locations/global/collections/default_collection/dataStores/%s",
		v.Project, v.DataStore)
}

// ArkConfig configures the Ark chat model
type ArkConfig struct {
	BaseURL     string  `yaml:"base_url" toml:"base_url"`
	Region      string  `yaml:"region" toml:"region"`
	APIKey      string  `yaml:"api_key" toml:"api_key"`
	Model       string  `yaml:"model" toml:"model"`
	MaxTokens   int     `yaml:"max_tokens" toml:"max_tokens"`
	Temperature float32 `yaml:"temperature" toml:"temperature"`
}

// RemoteAgentConfig points at an agent served over gRPC
type RemoteAgentConfig struct {
	Addr  string `yaml:"addr" toml:"addr"`
	Token string `yaml:"token" toml:"token"` // sent as a bearer token when set
}

// WebConfig configures the browser chat client
type WebConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
	APIURL   string `yaml:"api_url" toml:"api_url"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Server: ServerConfig{HTTPAddr: "0.0.0.0:8000"},
		Tailscale: TailscaleConfig{
			Hostname: "travelmind",
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   "./travelmind.db",
		},
		CORS: CORSConfig{AllowedOrigins: []string{"*"}},
		Idempotency: IdempotencyConfig{
			TTL:        10 * time.Minute,
			TTLRaw:     "10m",
			MaxEntries: 10000,
		},
		Agent: AgentConfig{
			Backend: BackendVertex,
			Vertex: VertexConfig{
				Location: "us-central1",
				Model:    "gemini-2.5-pro",
			},
			Remote: RemoteAgentConfig{Addr: "localhost:50061"},
		},
		Web: WebConfig{
			HTTPAddr: "0.0.0.0:8501",
			APIURL:   "http://localhost:8000",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Fields missing from the file keep their Default values. The format is chosen
// by extension: .toml is TOML, anything else is YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := decode(path, data)
	if err != nil {
		return nil, err
	}
	return finish(cfg)
}

// decode parses file content on top of Default
func decode(path string, data []byte) (*Config, error) {
	// Expand environment variables in the raw content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expandedData, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	return cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to Default otherwise.
// Environment overrides apply in both cases.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("checking config file: %w", err)
		}
	}
	return finish(Default())
}

// LoadForClient reads the gateway config for the chat clients, which only
// need the web section. The server sections are not validated, so a client
// runs on a machine with no agent credentials.
func LoadForClient(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if cfg, err = decode(path, data); err != nil {
				return nil, err
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// finish applies environment overrides, parses durations and validates
func finish(cfg *Config) (*Config, error) {
	applyEnvOverrides(cfg)

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Firestore shares the Vertex project unless told otherwise
	if cfg.Database.Driver == DriverFirestore && cfg.Database.ProjectID == "" {
		cfg.Database.ProjectID = cfg.Agent.Vertex.Project
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyEnvOverrides lets deployment environments set the handful of values
// that differ between environments without editing the file. Empty variables
// are ignored.
func applyEnvOverrides(cfg *Config) {
	set := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	set("PROJECT_ID", &cfg.Agent.Vertex.Project)
	set("LOCATION", &cfg.Agent.Vertex.Location)
	set("DATA_STORE_ID", &cfg.Agent.Vertex.DataStore)
	set("TRAVELMIND_DB_PATH", &cfg.Database.Path)
	set("TRAVELMIND_DB_URL", &cfg.Database.URL)
	set("API_URL", &cfg.Web.APIURL)

	// PORT follows the container platform convention; an explicit address wins
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.HTTPAddr = "0.0.0.0:" + port
	}
	set("TRAVELMIND_HTTP_ADDR", &cfg.Server.HTTPAddr)
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// Server address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the postgres driver")
		}
	case DriverFirestore:
		if c.Database.ProjectID == "" {
			return fmt.Errorf("database.project_id (or agent.vertex.project) is required for the firestore driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < minJWTSecretLen {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", minJWTSecretLen)
	}

	if c.Idempotency.MaxEntries < 0 {
		return fmt.Errorf("idempotency.max_entries must not be negative")
	}

	switch c.Agent.Backend {
	case BackendVertex:
		if c.Agent.Vertex.Project == "" {
			return fmt.Errorf("agent.vertex.project is required for the vertex backend")
		}
		if c.Agent.Vertex.DataStore == "" {
			return fmt.Errorf("agent.vertex.data_store is required for the vertex backend")
		}
		if c.Agent.Vertex.Model == "" {
			return fmt.Errorf("agent.vertex.model is required for the vertex backend")
		}
	case BackendArk:
		if c.Agent.Ark.Model == "" {
			return fmt.Errorf("agent.ark.model is required for the ark backend")
		}
	case BackendRemote:
		if c.Agent.Remote.Addr == "" {
			return fmt.Errorf("agent.remote.addr is required for the remote backend")
		}
	case BackendEcho:
	default:
		return fmt.Errorf("unknown agent.backend %q", c.Agent.Backend)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Idempotency.TTLRaw != "" {
		cfg.Idempotency.TTL, err = time.ParseDuration(cfg.Idempotency.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing idempotency.ttl %q: %w", cfg.Idempotency.TTLRaw, err)
		}
	}

	if cfg.Agent.TimeoutRaw != "" {
		cfg.Agent.Timeout, err = time.ParseDuration(cfg.Agent.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing agent.timeout %q: %w", cfg.Agent.TimeoutRaw, err)
		}
	}

	return nil
}

// DefaultPath returns where the gateway looks for its config file:
// TRAVELMIND_CONFIG, then $XDG_CONFIG_HOME/travelmind/gateway.yaml, then
// ~/.config/travelmind/gateway.yaml.
func DefaultPath() string {
	if p := os.Getenv("TRAVELMIND_CONFIG"); p != "" {
		return p
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "travelmind", "gateway.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "gateway.yaml"
	}
	return filepath.Join(home, ".config", "travelmind", "gateway.yaml")
}
