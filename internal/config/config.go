// ABOUTME: Configuration loading and parsing for relay-gateway
// ABOUTME: Supports YAML files with environment variable expansion plus an env-only fallback

package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the corresponding value is absent.
const (
	DefaultHTTPAddr      = ":8000"
	DefaultVerifyToken   = "12345"
	DefaultAssistantName = "WhatsApp Assistant"
	DefaultInstructions  = "You are a helpful assistant."
	DefaultGraphBaseURL  = "https://graph.facebook.com/v22.0"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
)

// Config represents the complete relay-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	WhatsApp  WhatsAppConfig  `yaml:"whatsapp"`
	Assistant AssistantConfig `yaml:"assistant"`
	Directory DirectoryConfig `yaml:"directory"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
}

// ServerConfig holds the inbound HTTP listener configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// WhatsAppConfig holds WhatsApp Business (Graph API) credentials
type WhatsAppConfig struct {
	AccessToken   string `yaml:"access_token"`
	PhoneNumberID string `yaml:"phone_number_id"`
	VerifyToken   string `yaml:"verify_token"`
	GraphBaseURL  string `yaml:"graph_base_url"`
}

// AssistantConfig holds OpenAI Assistants API configuration
type AssistantConfig struct {
	APIKey       string `yaml:"api_key"`
	AssistantID  string `yaml:"assistant_id"`
	Name         string `yaml:"name"`
	Instructions string `yaml:"instructions"`
	BaseURL      string `yaml:"base_url"`

	PollInterval time.Duration `yaml:"-"`
	PollAttempts int           `yaml:"poll_attempts"`

	// Raw string value for YAML unmarshaling
	PollIntervalRaw string `yaml:"poll_interval"`
}

// DirectoryConfig holds conversation directory configuration.
// Backend "memory" keeps the user-to-thread mapping in process memory;
// "sqlite" persists it at Path so threads survive restarts.
type DirectoryConfig struct {
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	MaxEntries int    `yaml:"max_entries"`

	TTL time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TTLRaw string `yaml:"ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TailscaleConfig holds Tailscale tsnet configuration for exposing the
// webhook endpoint without a reverse proxy. Funnel serves public HTTPS,
// which the webhook provider requires for live traffic.
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key"`
	StateDir  string `yaml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral"`
	Funnel    bool   `yaml:"funnel"`
	HTTPS     bool   `yaml:"https"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// If the file does not exist, configuration is built from environment
// variables alone (see FromEnv).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return FromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// FromEnv builds a configuration entirely from environment variables.
// This matches the flat env deployment style used on container platforms:
// ACCESS_TOKEN, PHONE_NUMBER_ID, VERIFY_TOKEN, OPENAI_API_KEY,
// OPENAI_ASSISTANT_ID, ASSISTANT_NAME, ASSISTANT_INSTRUCTIONS, PORT.
func FromEnv() (*Config, error) {
	cfg := &Config{
		WhatsApp: WhatsAppConfig{
			AccessToken:   os.Getenv("ACCESS_TOKEN"),
			PhoneNumberID: os.Getenv("PHONE_NUMBER_ID"),
			VerifyToken:   os.Getenv("VERIFY_TOKEN"),
		},
		Assistant: AssistantConfig{
			APIKey:       os.Getenv("OPENAI_API_KEY"),
			AssistantID:  os.Getenv("OPENAI_ASSISTANT_ID"),
			Name:         os.Getenv("ASSISTANT_NAME"),
			Instructions: os.Getenv("ASSISTANT_INSTRUCTIONS"),
		},
	}

	if port := os.Getenv("PORT"); port != "" {
		if _, err := strconv.Atoi(port); err != nil {
			return nil, fmt.Errorf("parsing PORT %q: %w", port, err)
		}
		cfg.Server.HTTPAddr = ":" + port
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills in defaults for everything that is optional.
func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.WhatsApp.VerifyToken == "" {
		c.WhatsApp.VerifyToken = DefaultVerifyToken
	}
	if c.WhatsApp.GraphBaseURL == "" {
		c.WhatsApp.GraphBaseURL = DefaultGraphBaseURL
	}
	if c.Assistant.Name == "" {
		c.Assistant.Name = DefaultAssistantName
	}
	if c.Assistant.Instructions == "" {
		c.Assistant.Instructions = DefaultInstructions
	}
	if c.Assistant.BaseURL == "" {
		c.Assistant.BaseURL = DefaultOpenAIBaseURL
	}
	if c.Assistant.PollInterval == 0 {
		c.Assistant.PollInterval = time.Second
	}
	if c.Assistant.PollAttempts == 0 {
		c.Assistant.PollAttempts = 10
	}
	if c.Directory.Backend == "" {
		c.Directory.Backend = "memory"
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.WhatsApp.AccessToken == "" {
		return fmt.Errorf("whatsapp.access_token is required (ACCESS_TOKEN)")
	}
	if c.WhatsApp.PhoneNumberID == "" {
		return fmt.Errorf("whatsapp.phone_number_id is required (PHONE_NUMBER_ID)")
	}
	if c.Assistant.APIKey == "" {
		return fmt.Errorf("assistant.api_key is required (OPENAI_API_KEY)")
	}
	if c.Assistant.AssistantID == "" {
		return fmt.Errorf("assistant.assistant_id is required (OPENAI_ASSISTANT_ID)")
	}

	switch c.Directory.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("directory.backend must be \"memory\" or \"sqlite\", got %q", c.Directory.Backend)
	}
	if c.Directory.Backend == "sqlite" && c.Directory.Path == "" {
		return fmt.Errorf("directory.path is required when directory.backend is sqlite")
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Assistant.PollIntervalRaw != "" {
		cfg.Assistant.PollInterval, err = time.ParseDuration(cfg.Assistant.PollIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing poll_interval %q: %w", cfg.Assistant.PollIntervalRaw, err)
		}
	}

	if cfg.Directory.TTLRaw != "" {
		cfg.Directory.TTL, err = time.ParseDuration(cfg.Directory.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing ttl %q: %w", cfg.Directory.TTLRaw, err)
		}
	}

	return nil
}
