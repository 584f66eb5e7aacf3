// Package config loads the monitor's YAML configuration, applies
// environment-variable overrides, and can write a starter file on first run.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file used when no --config flag is given.
const DefaultPath = "bcf-monitor.yaml"

// EmailConfig configures SMTP notifications.
type EmailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	To       string `yaml:"to"`
	From     string `yaml:"from"`
	SMTPHost string `yaml:"smtp_host"`
	SMTPPort int    `yaml:"smtp_port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// TelegramConfig configures Telegram notifications.
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  int64  `yaml:"chat_id"`
}

// TwitterConfig configures the summary tweet. Credentials come from the
// TWITTER_* environment variables.
type TwitterConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Config is the top-level application configuration.
type Config struct {
	// BaseURL is the monitored site root.
	BaseURL string `yaml:"base_url"`

	// DataDir holds one snapshot file per event.
	DataDir string `yaml:"data_dir"`

	// DaysBefore is the report window: events starting within this many
	// days of the run date are report-worthy.
	DaysBefore int `yaml:"days_before"`

	// Include lists keywords of which at least one must appear in an event
	// name (case-insensitive). Empty means include everything.
	Include []string `yaml:"include"`

	// Exclude lists keywords that drop an event when present in its name.
	Exclude []string `yaml:"exclude"`

	// OnlyChanges drops in-window events with no roster or detail changes
	// from the report.
	OnlyChanges bool `yaml:"only_changes"`

	// Schedule is the cron expression used by the schedule command.
	Schedule string `yaml:"schedule"`

	Email    EmailConfig    `yaml:"email"`
	Telegram TelegramConfig `yaml:"telegram"`
	Twitter  TwitterConfig  `yaml:"twitter"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BaseURL:     "https://boylstonchess.org",
		DataDir:     "./data",
		DaysBefore:  7,
		OnlyChanges: false,
		Schedule:    "0 7 * * *",
		Email: EmailConfig{
			SMTPHost: "smtp.gmail.com",
			SMTPPort: 587,
		},
	}
}

// Load reads the YAML config at path, falling back to defaults when the file
// does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// First run without a config file is fine; flags and env still apply.
	default:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays the BCF_* environment variables, which take precedence
// over the file for credential-type settings.
func (c *Config) applyEnv() {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&c.Email.SMTPHost, "BCF_EMAIL_SMTP_SERVER")
	setString(&c.Email.Username, "BCF_EMAIL_USERNAME")
	setString(&c.Email.Password, "BCF_EMAIL_PASSWORD")
	setString(&c.Email.From, "BCF_EMAIL_FROM")
	setString(&c.Email.To, "BCF_EMAIL_TO")
	if v := os.Getenv("BCF_EMAIL_SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Email.SMTPPort = port
		}
	}
	setString(&c.Telegram.Token, "BCF_TELEGRAM_TOKEN")
	if v := os.Getenv("BCF_TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Telegram.ChatID = id
		}
	}
}

// Validate checks that enabled notifiers are usable before a run starts.
func (c *Config) Validate() error {
	if c.DaysBefore < 0 {
		return errors.New("days_before must not be negative")
	}
	if c.Email.Enabled {
		if c.Email.To == "" {
			return errors.New("email notifications enabled but no recipient specified")
		}
		if c.Email.Username == "" || c.Email.Password == "" {
			return errors.New("email notifications enabled but SMTP credentials not specified")
		}
	}
	if c.Telegram.Enabled && (c.Telegram.Token == "" || c.Telegram.ChatID == 0) {
		return errors.New("telegram notifications enabled but token or chat_id not specified")
	}
	return nil
}

// Save writes the config as YAML. Credentials may be present, so the file is
// written 0600.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

// WriteDefault creates a starter config file at path. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	cfg := Default()
	cfg.Email.To = "you@example.com"
	cfg.Email.Username = "you@gmail.com"
	return cfg.Save(path)
}
