package backup

import (
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultKeep      = 10
	DefaultPrefix    = "shop-backup-"
	DefaultExtension = ".db"
	DefaultDirName   = "backups"
)

// Config holds snapshot and retention settings
type Config struct {
	// SourcePath is the live database file. Empty means the configured sqlite path.
	SourcePath string `mapstructure:"source_path" yaml:"source_path"`
	// Dir holds the snapshots. Empty means a backups/ directory next to the source.
	Dir    string `mapstructure:"dir" yaml:"dir"`
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
	Keep   int    `mapstructure:"keep" yaml:"keep"`

	// Notifications is filled from the top-level notifications section
	Notifications NotificationConfig `mapstructure:"-" yaml:"-"`
}

// DefaultConfig returns the default backup configuration
func DefaultConfig() Config {
	return Config{
		Prefix: DefaultPrefix,
		Keep:   DefaultKeep,
		Notifications: NotificationConfig{
			Timeout: 10 * time.Second,
		},
	}
}

// Validate validates the Config
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.SourcePath == "" {
		errs.Add("source_path", "source database path is required", nil)
	}
	if c.Keep < 1 {
		errs.Add("keep", "retention window must keep at least one snapshot", c.Keep)
	}
	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}
	if strings.ContainsAny(c.Prefix, `/\`) {
		errs.Add("prefix", "prefix cannot contain path separators", c.Prefix)
	}
	if err := c.Notifications.Validate(); err != nil {
		if verrs, ok := err.(ValidationErrors); ok {
			errs = append(errs, verrs...)
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// BackupDir resolves the snapshot directory for the configured source
func (c *Config) BackupDir() string {
	if c.Dir != "" {
		return c.Dir
	}
	return filepath.Join(filepath.Dir(c.SourcePath), DefaultDirName)
}

// NotificationConfig holds the notification channels. All are optional.
type NotificationConfig struct {
	Timeout  time.Duration   `mapstructure:"timeout" yaml:"timeout"`
	Telegram *TelegramConfig `mapstructure:"telegram" yaml:"telegram,omitempty"`
	Webhook  *WebhookConfig  `mapstructure:"webhook" yaml:"webhook,omitempty"`
	File     *FileConfig     `mapstructure:"file" yaml:"file,omitempty"`
}

// TelegramConfig for Telegram bot notifications
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token" yaml:"bot_token"`
	ChatID   string `mapstructure:"chat_id" yaml:"chat_id"`
	// APIBase overrides https://api.telegram.org
	APIBase string `mapstructure:"api_base" yaml:"api_base,omitempty"`
}

// WebhookConfig for generic webhook notifications
type WebhookConfig struct {
	URL     string            `mapstructure:"url" yaml:"url"`
	Method  string            `mapstructure:"method" yaml:"method,omitempty"`
	Headers map[string]string `mapstructure:"headers" yaml:"headers,omitempty"`
}

// FileConfig for file-based notifications
type FileConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// Validate validates the NotificationConfig
func (nc *NotificationConfig) Validate() error {
	var errs ValidationErrors

	if nc.Timeout < 0 {
		errs.Add("notifications.timeout", "timeout cannot be negative", nc.Timeout)
	}
	if nc.Timeout == 0 {
		nc.Timeout = 10 * time.Second
	}
	if nc.Telegram != nil && (nc.Telegram.BotToken == "") != (nc.Telegram.ChatID == "") {
		errs.Add("notifications.telegram", "bot_token and chat_id must be set together", nil)
	}
	if nc.Webhook != nil && nc.Webhook.URL != "" &&
		!strings.HasPrefix(nc.Webhook.URL, "http://") && !strings.HasPrefix(nc.Webhook.URL, "https://") {
		errs.Add("notifications.webhook.url", "webhook url must be http or https", nc.Webhook.URL)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
