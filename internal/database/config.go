package database

import (
	"errors"
	"fmt"
	"time"
)

// Driver selects the backing engine
type Driver string

const (
	// DriverSQLite is the embedded, file-based engine
	DriverSQLite Driver = "sqlite"
	// DriverPostgres is a PostgreSQL server
	DriverPostgres Driver = "postgres"
	// DriverMySQL is a MySQL or MariaDB server
	DriverMySQL Driver = "mysql"
)

// TLSMode controls server certificate verification for client/server engines
type TLSMode string

const (
	// TLSModeVerify keeps the driver's default verification
	TLSModeVerify TLSMode = "verify"
	// TLSModeSkip accepts any server certificate (managed hosts behind self-signed proxies)
	TLSModeSkip TLSMode = "skip"
)

// Config holds the connection parameters for the shop datastore
type Config struct {
	Driver          Driver        `mapstructure:"driver" yaml:"driver"`
	DSN             string        `mapstructure:"dsn" yaml:"dsn"`
	Path            string        `mapstructure:"path" yaml:"path"`
	TLSMode         TLSMode       `mapstructure:"tls_mode" yaml:"tls_mode"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout" yaml:"query_timeout"`
	ConnectRetries  int           `mapstructure:"connect_retries" yaml:"connect_retries"`
	RetryDelay      time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	// CreateIfMissing lets the embedded engine create a new database file.
	CreateIfMissing bool `mapstructure:"create_if_missing" yaml:"create_if_missing"`
}

// DefaultConfig returns the embedded-engine configuration used when nothing is set
func DefaultConfig() Config {
	return Config{
		Driver:          DriverSQLite,
		Path:            "./data/shop.db",
		TLSMode:         TLSModeVerify,
		ConnectTimeout:  10 * time.Second,
		QueryTimeout:    30 * time.Second,
		ConnectRetries:  3,
		RetryDelay:      2 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// Validate checks the configuration and fills zero values with defaults
func (c *Config) Validate() error {
	var errs []error

	switch c.Driver {
	case DriverSQLite:
		if c.Path == "" {
			errs = append(errs, errors.New("path is required for the sqlite driver"))
		}
	case DriverPostgres, DriverMySQL:
		if c.DSN == "" {
			errs = append(errs, fmt.Errorf("dsn is required for the %s driver", c.Driver))
		}
	case "":
		errs = append(errs, errors.New("driver is required"))
	default:
		errs = append(errs, fmt.Errorf("unsupported driver %q (expected sqlite, postgres or mysql)", c.Driver))
	}

	switch c.TLSMode {
	case "":
		c.TLSMode = TLSModeVerify
	case TLSModeVerify, TLSModeSkip:
	default:
		errs = append(errs, fmt.Errorf("unsupported tls_mode %q (expected verify or skip)", c.TLSMode))
	}

	if c.ConnectRetries < 0 {
		errs = append(errs, errors.New("connect_retries cannot be negative"))
	}

	defaults := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaults.ConnectTimeout
	}
	if c.QueryTimeout < 0 {
		c.QueryTimeout = 0
	}
	if c.ConnectRetries == 0 {
		c.ConnectRetries = 1
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = defaults.MaxOpenConns
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = defaults.MaxIdleConns
	}

	if len(errs) > 0 {
		return fmt.Errorf("database configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}

// Target returns the path or connection string this configuration points at
func (c *Config) Target() string {
	if c.Driver == DriverSQLite {
		return c.Path
	}
	return c.DSN
}
