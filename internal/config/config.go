package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"shop-lifecycle/internal/backup"
	"shop-lifecycle/internal/database"
	"shop-lifecycle/internal/importer"
	"shop-lifecycle/internal/migration"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix is prepended to every environment override, e.g. SHOP_LIFECYCLE_DATABASE_DSN
	EnvPrefix = "SHOP_LIFECYCLE"
	// FileName is the config file searched in $HOME and the working directory
	FileName = ".shop-lifecycle"
)

// Config is the complete runtime configuration
type Config struct {
	Database      database.Config           `mapstructure:"database" yaml:"database"`
	Backup        backup.Config             `mapstructure:"backup" yaml:"backup"`
	Notifications backup.NotificationConfig `mapstructure:"notifications" yaml:"notifications"`
	Migration     MigrationConfig           `mapstructure:"migration" yaml:"migration"`
	Import        ImportConfig              `mapstructure:"import" yaml:"import"`
	Logging       LoggingConfig             `mapstructure:"logging" yaml:"logging"`
	Display       DisplayConfig             `mapstructure:"display" yaml:"display"`
	AutoApprove   bool                      `mapstructure:"auto_approve" yaml:"auto_approve"`
}

// MigrationConfig lists the managed columns
type MigrationConfig struct {
	Steps []migration.Step `mapstructure:"steps" yaml:"steps"`
}

// ImportConfig holds batch sizes per dataset
type ImportConfig struct {
	CatalogBatchSize  int `mapstructure:"catalog_batch_size" yaml:"catalog_batch_size"`
	LocationBatchSize int `mapstructure:"location_batch_size" yaml:"location_batch_size"`
}

// LoggingConfig controls verbosity and log destinations
type LoggingConfig struct {
	Verbose bool   `mapstructure:"verbose" yaml:"verbose"`
	Quiet   bool   `mapstructure:"quiet" yaml:"quiet"`
	Debug   bool   `mapstructure:"debug" yaml:"debug"`
	Format  string `mapstructure:"format" yaml:"format"`
	File    string `mapstructure:"file" yaml:"file"`
}

// DisplayConfig controls terminal output
type DisplayConfig struct {
	NoColor bool `mapstructure:"no_color" yaml:"no_color"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	b := backup.DefaultConfig()
	return &Config{
		Database:      database.DefaultConfig(),
		Backup:        b,
		Notifications: b.Notifications,
		Migration:     MigrationConfig{Steps: migration.DefaultSteps()},
		Import: ImportConfig{
			CatalogBatchSize:  importer.DefaultCatalogBatchSize,
			LocationBatchSize: importer.DefaultLocationBatchSize,
		},
		Logging: LoggingConfig{Format: "text"},
	}
}

// SetDefaults registers every default with v so that environment overrides
// apply to keys that appear in no config file.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("database.driver", string(d.Database.Driver))
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("database.tls_mode", string(d.Database.TLSMode))
	v.SetDefault("database.connect_timeout", d.Database.ConnectTimeout)
	v.SetDefault("database.query_timeout", d.Database.QueryTimeout)
	v.SetDefault("database.connect_retries", d.Database.ConnectRetries)
	v.SetDefault("database.retry_delay", d.Database.RetryDelay)
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", d.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", d.Database.ConnMaxLifetime)
	v.SetDefault("database.create_if_missing", d.Database.CreateIfMissing)

	v.SetDefault("backup.source_path", "")
	v.SetDefault("backup.dir", "")
	v.SetDefault("backup.prefix", d.Backup.Prefix)
	v.SetDefault("backup.keep", d.Backup.Keep)

	v.SetDefault("notifications.timeout", d.Notifications.Timeout)

	v.SetDefault("migration.steps", d.Migration.Steps)

	v.SetDefault("import.catalog_batch_size", d.Import.CatalogBatchSize)
	v.SetDefault("import.location_batch_size", d.Import.LocationBatchSize)

	v.SetDefault("logging.verbose", false)
	v.SetDefault("logging.quiet", false)
	v.SetDefault("logging.debug", false)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", "")

	v.SetDefault("display.no_color", false)
	v.SetDefault("auto_approve", false)
}

// BindEnvironment maps SHOP_LIFECYCLE_* variables onto config keys. Keys with
// no default, such as notification secrets, are bound explicitly.
func BindEnvironment(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range []string{
		"notifications.telegram.bot_token",
		"notifications.telegram.chat_id",
		"notifications.webhook.url",
		"notifications.file.path",
	} {
		_ = v.BindEnv(key)
	}
}

// Load decodes v into a Config, resolves derived values and validates it
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	cfg.resolve()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolve fills values derived from other sections
func (c *Config) resolve() {
	c.Backup.Notifications = c.Notifications
	if c.Backup.SourcePath == "" && c.Database.Driver == database.DriverSQLite {
		c.Backup.SourcePath = c.Database.Path
	}
	if c.Notifications.Timeout == 0 {
		c.Notifications.Timeout = 10 * time.Second
		c.Backup.Notifications.Timeout = c.Notifications.Timeout
	}
}

// Validate validates the Config
func (c *Config) Validate() error {
	var errs []error

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}
	// without a source file only the backup commands can fail, and they check it
	if c.Backup.SourcePath != "" {
		if err := c.Backup.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("backup: %w", err))
		}
	}
	if err := c.Import.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("import: %w", err))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if _, err := migration.Plan(c.Migration.Steps); err != nil {
		errs = append(errs, fmt.Errorf("migration: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}
	return nil
}

// Validate validates the ImportConfig
func (ic *ImportConfig) Validate() error {
	var errs []error
	if ic.CatalogBatchSize < 1 {
		errs = append(errs, fmt.Errorf("catalog_batch_size must be at least 1, got %d", ic.CatalogBatchSize))
	}
	if ic.LocationBatchSize < 1 {
		errs = append(errs, fmt.Errorf("location_batch_size must be at least 1, got %d", ic.LocationBatchSize))
	}
	return errors.Join(errs...)
}

// Validate validates the LoggingConfig
func (lc *LoggingConfig) Validate() error {
	var errs []error
	if lc.Verbose && lc.Quiet {
		errs = append(errs, errors.New("verbose and quiet are mutually exclusive"))
	}
	switch lc.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unsupported log format %q (want text or json)", lc.Format))
	}
	return errors.Join(errs...)
}

// SampleYAML renders the default configuration as a commented YAML document
func SampleYAML() ([]byte, error) {
	d := Default()

	var node yaml.Node
	if err := node.Encode(d); err != nil {
		return nil, fmt.Errorf("failed to encode sample configuration: %w", err)
	}

	root := &node
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	comments := map[string]string{
		"database":      "Datastore connection. driver: sqlite, postgres or mysql",
		"backup":        "File snapshots of the sqlite database. keep is the number of snapshots retained",
		"notifications": "Optional backup notifications: telegram, webhook, file",
		"migration":     "Columns added to existing tables when missing",
		"import":        "Records per transaction for each dataset",
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if c, ok := comments[root.Content[i].Value]; ok {
			root.Content[i].HeadComment = c
		}
	}

	out, err := yaml.Marshal(&node)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sample configuration: %w", err)
	}
	header := "# shop-lifecycle configuration\n" +
		"# Every key can be overridden with SHOP_LIFECYCLE_<SECTION>_<KEY>, e.g. SHOP_LIFECYCLE_DATABASE_DSN\n\n"
	return append([]byte(header), out...), nil
}
