package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"shop-lifecycle/internal/database"
	"shop-lifecycle/internal/migration"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func newViper(t *testing.T, yamlContent string) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	BindEnvironment(v)
	if yamlContent != "" {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o600))
		v.SetConfigFile(path)
		require.NoError(t, v.ReadInConfig())
	}
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newViper(t, ""))
	require.NoError(t, err)

	assert.Equal(t, database.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "./data/shop.db", cfg.Database.Path)
	assert.Equal(t, database.TLSModeVerify, cfg.Database.TLSMode)
	assert.Equal(t, 30*time.Second, cfg.Database.QueryTimeout)
	assert.Equal(t, 10, cfg.Backup.Keep)
	assert.Equal(t, "shop-backup-", cfg.Backup.Prefix)
	assert.Equal(t, "./data/shop.db", cfg.Backup.SourcePath, "sqlite path is the backup source")
	assert.Equal(t, 10*time.Second, cfg.Backup.Notifications.Timeout)
	assert.Equal(t, 5, cfg.Import.CatalogBatchSize)
	assert.Equal(t, 100, cfg.Import.LocationBatchSize)
	assert.Equal(t, migration.DefaultSteps(), cfg.Migration.Steps)
}

func TestLoad_File(t *testing.T) {
	cfg, err := Load(newViper(t, `
database:
  driver: postgres
  dsn: postgres://shop:secret@db:5432/shop
  tls_mode: skip
  query_timeout: 5s
backup:
  source_path: /srv/shop/shop.db
  keep: 3
notifications:
  timeout: 2s
  telegram:
    bot_token: "123:abc"
    chat_id: "-100"
migration:
  steps:
    - {table: orders, column: gift_note, definition: "TEXT"}
import:
  catalog_batch_size: 20
`))
	require.NoError(t, err)

	assert.Equal(t, database.DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, database.TLSModeSkip, cfg.Database.TLSMode)
	assert.Equal(t, 5*time.Second, cfg.Database.QueryTimeout)
	assert.Equal(t, 3, cfg.Backup.Keep)
	assert.Equal(t, 2*time.Second, cfg.Backup.Notifications.Timeout)
	require.NotNil(t, cfg.Backup.Notifications.Telegram)
	assert.Equal(t, "-100", cfg.Backup.Notifications.Telegram.ChatID)
	assert.Equal(t, []migration.Step{{Table: "orders", Column: "gift_note", Definition: "TEXT"}}, cfg.Migration.Steps)
	assert.Equal(t, 20, cfg.Import.CatalogBatchSize)
	assert.Equal(t, 100, cfg.Import.LocationBatchSize)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("SHOP_LIFECYCLE_DATABASE_PATH", "/tmp/other.db")
	t.Setenv("SHOP_LIFECYCLE_BACKUP_KEEP", "4")
	t.Setenv("SHOP_LIFECYCLE_NOTIFICATIONS_TELEGRAM_BOT_TOKEN", "t")
	t.Setenv("SHOP_LIFECYCLE_NOTIFICATIONS_TELEGRAM_CHAT_ID", "c")

	cfg, err := Load(newViper(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/other.db", cfg.Database.Path)
	assert.Equal(t, "/tmp/other.db", cfg.Backup.SourcePath)
	assert.Equal(t, 4, cfg.Backup.Keep)
	require.NotNil(t, cfg.Notifications.Telegram)
	assert.Equal(t, "t", cfg.Notifications.Telegram.BotToken)
}

func TestLoad_NoNotificationChannelsByDefault(t *testing.T) {
	cfg, err := Load(newViper(t, ""))
	require.NoError(t, err)
	assert.Nil(t, cfg.Notifications.Telegram)
	assert.Nil(t, cfg.Notifications.Webhook)
	assert.Nil(t, cfg.Notifications.File)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad driver", "database: {driver: oracle}", "database"},
		{"zero batch", "import: {catalog_batch_size: 0}", "catalog_batch_size"},
		{"zero keep", "backup: {keep: 0}", "backup"},
		{"verbose and quiet", "logging: {verbose: true, quiet: true}", "mutually exclusive"},
		{"bad log format", "logging: {format: xml}", "log format"},
		{"duplicate step", "migration: {steps: [{table: t, column: c, definition: INT}, {table: t, column: C, definition: INT}]}", "migration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(newViper(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_ServerDriverWithoutBackupSource(t *testing.T) {
	cfg, err := Load(newViper(t, "database: {driver: mysql, dsn: 'u:p@tcp(db:3306)/shop'}"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Backup.SourcePath)
}

func TestSampleYAML(t *testing.T) {
	out, err := SampleYAML()
	require.NoError(t, err)

	text := string(out)
	assert.True(t, strings.HasPrefix(text, "# shop-lifecycle configuration"))
	assert.Contains(t, text, "catalog_batch_size: 5")
	assert.Contains(t, text, "# Columns added to existing tables when missing")

	// the sample must load back into an equivalent configuration
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(text)))
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, Default().Import, cfg.Import)
	assert.Equal(t, Default().Migration, cfg.Migration)

	var generic map[string]interface{}
	require.NoError(t, yaml.Unmarshal(out, &generic))
	assert.NotContains(t, generic["backup"], "notifications")
}
