package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"crawlwatch/internal/datadir"
	"crawlwatch/internal/livesync"
)

// DefaultPath is the config file looked up when --config is not given
const DefaultPath = "crawlwatch.yaml"

// Config represents the crawlwatch configuration
type Config struct {
	BackendURL  string          `yaml:"backend_url"`
	Timezone    string          `yaml:"timezone,omitempty"`
	DataDir     string          `yaml:"data_dir,omitempty"`
	SecretsFile string          `yaml:"secrets_file,omitempty"`
	Refresh     RefreshConfig   `yaml:"refresh"`
	Database    DatabaseConfig  `yaml:"database"`
	SSH         SSHServerConfig `yaml:"ssh"`
	Notify      NotifyConfig    `yaml:"notify"`
	Export      ExportConfig    `yaml:"export"`
	Debug       DebugConfig     `yaml:"debug,omitempty"`
}

// RefreshConfig controls how the dashboard stays current
type RefreshConfig struct {
	// Schedule is a cron expression for the periodic full refresh
	Schedule              string `yaml:"schedule"`
	ReconnectDelayMs      int    `yaml:"reconnect_delay_ms"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
}

// ReconnectDelay returns the fixed push channel reconnect delay
func (r RefreshConfig) ReconnectDelay() time.Duration {
	return time.Duration(r.ReconnectDelayMs) * time.Millisecond
}

// RequestTimeout returns the per-request REST timeout
func (r RefreshConfig) RequestTimeout() time.Duration {
	return time.Duration(r.RequestTimeoutSeconds) * time.Second
}

// DatabaseConfig contains local history database settings
type DatabaseConfig struct {
	// Path is relative to the data directory unless absolute
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// Retention returns how long history rows are kept; zero keeps everything
func (d DatabaseConfig) Retention() time.Duration {
	return time.Duration(d.RetentionDays) * 24 * time.Hour
}

// SSHServerConfig configures the SSH-served dashboard
type SSHServerConfig struct {
	Enabled            bool   `yaml:"enabled"`
	ListenAddr         string `yaml:"listen_addr,omitempty"`
	HostKeyPath        string `yaml:"host_key_path,omitempty"`
	AuthorizedKeysPath string `yaml:"authorized_keys_path,omitempty"`
}

// NotifyConfig configures alert delivery
type NotifyConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig configures the Telegram alert sink
type TelegramConfig struct {
	Enabled           bool    `yaml:"enabled"`
	BotToken          string  `yaml:"bot_token,omitempty"`
	ChatID            int64   `yaml:"chat_id,omitempty"`
	MessagesPerSecond float64 `yaml:"messages_per_second,omitempty"`
}

// ExportConfig controls CSV exports
type ExportConfig struct {
	// Dir is relative to the data directory unless absolute
	Dir                string `yaml:"dir,omitempty"`
	IncludeKeywords    bool   `yaml:"include_keywords"`
	IncludeAccumulated bool   `yaml:"include_accumulated"`
}

// DebugConfig contains logging settings
type DebugConfig struct {
	VerboseLogging bool `yaml:"verbose_logging,omitempty"`
}

// Default returns a default configuration
func Default() *Config {
	return &Config{
		BackendURL: "http://localhost:8001",
		Refresh: RefreshConfig{
			Schedule:              "@every 30s",
			ReconnectDelayMs:      3000,
			RequestTimeoutSeconds: 30,
		},
		Database: DatabaseConfig{
			Path:          "data/history.db",
			RetentionDays: 30,
		},
		SSH: SSHServerConfig{
			Enabled:    false,
			ListenAddr: ":2222",
		},
		Notify: NotifyConfig{
			Telegram: TelegramConfig{
				Enabled:           false,
				BotToken:          "${TELEGRAM_BOT_TOKEN}",
				MessagesPerSecond: 1,
			},
		},
		Export: ExportConfig{
			Dir:                "exports",
			IncludeKeywords:    true,
			IncludeAccumulated: true,
		},
	}
}

// Load loads configuration from a file, creating it with defaults if missing
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Created default configuration at %s\n", path)
		cfg.expandTilde()
		if err := cfg.expandEnvVars(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Tilde first so secrets_file may reference ~/...
	cfg.expandTilde()

	if err := cfg.loadSecretsFile(); err != nil {
		return nil, fmt.Errorf("failed to load secrets file: %w", err)
	}

	if err := cfg.expandEnvVars(); err != nil {
		return nil, fmt.Errorf("failed to expand environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// expandEnvVars expands ${ENV_VAR} placeholders in configuration values
func (c *Config) expandEnvVars() error {
	c.BackendURL = os.ExpandEnv(c.BackendURL)
	c.DataDir = os.ExpandEnv(c.DataDir)
	c.SecretsFile = os.ExpandEnv(c.SecretsFile)
	c.Database.Path = os.ExpandEnv(c.Database.Path)
	c.Export.Dir = os.ExpandEnv(c.Export.Dir)
	c.Notify.Telegram.BotToken = os.ExpandEnv(c.Notify.Telegram.BotToken)

	if c.Notify.Telegram.ChatID == 0 {
		if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
			var id int64
			if _, err := fmt.Sscan(raw, &id); err != nil {
				return fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", raw, err)
			}
			c.Notify.Telegram.ChatID = id
		}
	}
	return nil
}

// Validate validates the entire configuration
func (c *Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil {
		return fmt.Errorf("invalid backend_url %q: %w", c.BackendURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend_url must use http or https, got %q", c.BackendURL)
	}
	if u.Host == "" {
		return fmt.Errorf("backend_url %q has no host", c.BackendURL)
	}

	if _, err := livesync.ParseSchedule(c.Refresh.Schedule); err != nil {
		return fmt.Errorf("invalid refresh.schedule %q: %w", c.Refresh.Schedule, err)
	}
	if c.Refresh.ReconnectDelayMs <= 0 {
		return fmt.Errorf("refresh.reconnect_delay_ms must be greater than 0")
	}
	if c.Refresh.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("refresh.request_timeout_seconds must be greater than 0")
	}
	if c.Database.RetentionDays < 0 {
		return fmt.Errorf("database.retention_days must not be negative")
	}

	if c.Notify.Telegram.Enabled {
		if c.Notify.Telegram.BotToken == "" {
			return fmt.Errorf("notify.telegram.bot_token is required when telegram is enabled")
		}
		if c.Notify.Telegram.ChatID == 0 {
			return fmt.Errorf("notify.telegram.chat_id is required when telegram is enabled")
		}
		if c.Notify.Telegram.MessagesPerSecond < 0 {
			return fmt.Errorf("notify.telegram.messages_per_second must not be negative")
		}
	}

	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
		}
	}

	return nil
}

// GetLocation returns the configured timezone, falling back to time.Local
func (c *Config) GetLocation() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// expandTilde replaces a leading "~/" with the user's home directory in
// path-valued fields. Runs before env-var expansion so both "~/foo" and
// "${SOME_PATH}" work.
func (c *Config) expandTilde() {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	expand := func(p string) string {
		if p == "~" {
			return home
		}
		if strings.HasPrefix(p, "~/") {
			return filepath.Join(home, p[2:])
		}
		return p
	}

	c.DataDir = expand(c.DataDir)
	c.SecretsFile = expand(c.SecretsFile)
	c.Database.Path = expand(c.Database.Path)
	c.Export.Dir = expand(c.Export.Dir)
	c.SSH.HostKeyPath = expand(c.SSH.HostKeyPath)
	c.SSH.AuthorizedKeysPath = expand(c.SSH.AuthorizedKeysPath)
}

// loadSecretsFile reads a KEY=VALUE file into the process environment.
// Existing environment variables are not overridden. An empty or missing
// SecretsFile is a no-op.
func (c *Config) loadSecretsFile() error {
	if c.SecretsFile == "" {
		return nil
	}
	if err := datadir.LoadEnvFile(c.SecretsFile, nil); err != nil {
		return fmt.Errorf("cannot read secrets file %s: %w", c.SecretsFile, err)
	}
	return nil
}
