package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.BackendURL != "http://localhost:8001" {
		t.Errorf("Expected default backend URL, got %s", cfg.BackendURL)
	}
	if cfg.Refresh.Schedule != "@every 30s" {
		t.Errorf("Expected 30s refresh schedule, got %s", cfg.Refresh.Schedule)
	}
	if cfg.Refresh.ReconnectDelay() != 3*time.Second {
		t.Errorf("Expected 3s reconnect delay, got %s", cfg.Refresh.ReconnectDelay())
	}
	if !cfg.Export.IncludeKeywords || !cfg.Export.IncludeAccumulated {
		t.Error("Expected exports to include every optional column by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

func TestConfigSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "crawlwatch.yaml")

	original := Default()
	original.BackendURL = "https://crawler.internal:9000"
	original.Refresh.Schedule = "*/2 * * * *"
	original.Refresh.ReconnectDelayMs = 5000
	original.Database.RetentionDays = 7
	original.Notify.Telegram.ChatID = 12345

	if err := original.Save(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loaded.BackendURL != original.BackendURL {
		t.Errorf("BackendURL mismatch: got %s", loaded.BackendURL)
	}
	if loaded.Refresh.Schedule != "*/2 * * * *" {
		t.Errorf("Schedule mismatch: got %s", loaded.Refresh.Schedule)
	}
	if loaded.Refresh.ReconnectDelay() != 5*time.Second {
		t.Errorf("ReconnectDelay mismatch: got %s", loaded.Refresh.ReconnectDelay())
	}
	if loaded.Database.Retention() != 7*24*time.Hour {
		t.Errorf("Retention mismatch: got %s", loaded.Database.Retention())
	}
	if loaded.Notify.Telegram.ChatID != 12345 {
		t.Errorf("ChatID mismatch: got %d", loaded.Notify.Telegram.ChatID)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "partial.yaml")
	if err := os.WriteFile(configPath, []byte("backend_url: http://10.0.0.5:8001\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BackendURL != "http://10.0.0.5:8001" {
		t.Errorf("BackendURL: got %s", cfg.BackendURL)
	}
	if cfg.Refresh.ReconnectDelayMs != 3000 {
		t.Errorf("ReconnectDelayMs should keep its default, got %d", cfg.Refresh.ReconnectDelayMs)
	}
}

func TestEnvironmentVariableExpansion(t *testing.T) {
	t.Setenv("CW_TEST_BACKEND", "http://expanded:8001")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100200")

	configPath := filepath.Join(t.TempDir(), "env.yaml")
	content := `backend_url: ${CW_TEST_BACKEND}
notify:
  telegram:
    enabled: true
    bot_token: ${TELEGRAM_BOT_TOKEN}
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BackendURL != "http://expanded:8001" {
		t.Errorf("BackendURL not expanded: %s", cfg.BackendURL)
	}
	if cfg.Notify.Telegram.BotToken != "123:abc" {
		t.Errorf("BotToken not expanded: %s", cfg.Notify.Telegram.BotToken)
	}
	if cfg.Notify.Telegram.ChatID != -100200 {
		t.Errorf("ChatID not taken from env: %d", cfg.Notify.Telegram.ChatID)
	}
}

func TestLoadNonExistentConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "sub", "new.yaml")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Expected Load to create default config, got error: %v", err)
	}
	if cfg.BackendURL != Default().BackendURL {
		t.Errorf("Expected default backend URL, got %s", cfg.BackendURL)
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("Config file should have been created")
	}
}

func TestInvalidConfigFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")
	if err := os.WriteFile(configPath, []byte("backend_url: [unterminated\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Expected error when loading invalid YAML config")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(c *Config) {}, ""},
		{"seconds schedule", func(c *Config) { c.Refresh.Schedule = "*/10 * * * * *" }, ""},
		{"five field schedule", func(c *Config) { c.Refresh.Schedule = "*/2 * * * *" }, ""},
		{"ftp backend", func(c *Config) { c.BackendURL = "ftp://x" }, "http or https"},
		{"no host", func(c *Config) { c.BackendURL = "http://" }, "no host"},
		{"bad schedule", func(c *Config) { c.Refresh.Schedule = "every now and then" }, "refresh.schedule"},
		{"zero delay", func(c *Config) { c.Refresh.ReconnectDelayMs = 0 }, "reconnect_delay_ms"},
		{"zero timeout", func(c *Config) { c.Refresh.RequestTimeoutSeconds = 0 }, "request_timeout_seconds"},
		{"negative retention", func(c *Config) { c.Database.RetentionDays = -1 }, "retention_days"},
		{"telegram without chat", func(c *Config) {
			c.Notify.Telegram.Enabled = true
			c.Notify.Telegram.BotToken = "t"
		}, "chat_id"},
		{"telegram without token", func(c *Config) {
			c.Notify.Telegram.Enabled = true
			c.Notify.Telegram.BotToken = ""
		}, "bot_token"},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "invalid timezone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestGetLocation(t *testing.T) {
	cfg := Default()
	if cfg.GetLocation() != time.Local {
		t.Error("empty timezone should fall back to time.Local")
	}
	cfg.Timezone = "UTC"
	if cfg.GetLocation().String() != "UTC" {
		t.Errorf("got %s", cfg.GetLocation())
	}
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}

	cfg := &Config{
		DataDir:     "~/mydata",
		SecretsFile: "~/.secrets.env",
		Database:    DatabaseConfig{Path: "~/db/history.db"},
		Export:      ExportConfig{Dir: "~"},
		SSH: SSHServerConfig{
			HostKeyPath:        "~/.crawlwatch/ssh_host_key",
			AuthorizedKeysPath: "~/.crawlwatch/authorized_keys",
		},
	}

	cfg.expandTilde()

	if cfg.DataDir != filepath.Join(home, "mydata") {
		t.Errorf("DataDir: got %s", cfg.DataDir)
	}
	if cfg.SecretsFile != filepath.Join(home, ".secrets.env") {
		t.Errorf("SecretsFile: got %s", cfg.SecretsFile)
	}
	if cfg.Database.Path != filepath.Join(home, "db/history.db") {
		t.Errorf("Database.Path: got %s", cfg.Database.Path)
	}
	if cfg.Export.Dir != home {
		t.Errorf("Export.Dir: got %s", cfg.Export.Dir)
	}
	if cfg.SSH.HostKeyPath != filepath.Join(home, ".crawlwatch/ssh_host_key") {
		t.Errorf("SSH.HostKeyPath: got %s", cfg.SSH.HostKeyPath)
	}
	if cfg.SSH.AuthorizedKeysPath != filepath.Join(home, ".crawlwatch/authorized_keys") {
		t.Errorf("SSH.AuthorizedKeysPath: got %s", cfg.SSH.AuthorizedKeysPath)
	}
}

func TestLoadSecretsFile(t *testing.T) {
	secretsPath := filepath.Join(t.TempDir(), "test.env")
	content := `# This is a comment
CW_KEY_ONE=value1
CW_KEY_TWO="value with spaces"
CW_KEY_THREE='single quoted'
`
	if err := os.WriteFile(secretsPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"CW_KEY_ONE", "CW_KEY_TWO", "CW_KEY_THREE"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	t.Setenv("CW_EXISTING", "original")
	if err := os.WriteFile(secretsPath, append([]byte(content), []byte("CW_EXISTING=new\n")...), 0600); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{SecretsFile: secretsPath}
	if err := cfg.loadSecretsFile(); err != nil {
		t.Fatalf("loadSecretsFile: %v", err)
	}

	want := map[string]string{
		"CW_KEY_ONE":   "value1",
		"CW_KEY_TWO":   "value with spaces",
		"CW_KEY_THREE": "single quoted",
		"CW_EXISTING":  "original",
	}
	for key, v := range want {
		if got := os.Getenv(key); got != v {
			t.Errorf("%s: got %q, want %q", key, got, v)
		}
	}
}

func TestLoadSecretsFile_MissingOrEmpty(t *testing.T) {
	cfg := &Config{SecretsFile: "/nonexistent/path/secrets.env"}
	if err := cfg.loadSecretsFile(); err != nil {
		t.Errorf("missing file should be a no-op, got error: %v", err)
	}
	cfg = &Config{}
	if err := cfg.loadSecretsFile(); err != nil {
		t.Errorf("empty path should be a no-op, got error: %v", err)
	}
}
