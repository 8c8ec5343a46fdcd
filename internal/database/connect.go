package database

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"shop-lifecycle/internal/errors"
	"shop-lifecycle/internal/logging"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
)

// Connect opens the datastore selected by cfg, verifies it with a ping and
// retries recoverable failures. The engine is chosen here once; nothing
// downstream branches on it except through the returned DB's Dialect.
func Connect(ctx context.Context, cfg Config, logger *logging.Logger) (*DB, error) {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewAppError(errors.ErrorTypeValidation, "invalid database configuration", err).
			WithUserMessage(err.Error())
	}

	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrorTypeValidation, err.Error(), err)
	}

	logger.WithFields(map[string]interface{}{
		"driver":   cfg.Driver,
		"target":   logging.SanitizeDSN(cfg.Target()),
		"tls_mode": cfg.TLSMode,
	}).Info("Attempting database connection")

	retry := errors.NewRetryHandler(errors.RetryConfig{
		MaxAttempts: cfg.ConnectRetries,
		BaseDelay:   cfg.RetryDelay,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
	})

	start := time.Now()
	var sqlDB *sql.DB
	err = retry.Retry(ctx, func() error {
		db, openErr := open(cfg)
		if openErr != nil {
			return errors.WrapError(openErr, "failed to open database connection")
		}

		pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
		if pingErr := db.PingContext(pingCtx); pingErr != nil {
			db.Close()
			return errors.WrapError(pingErr, "failed to ping database")
		}

		sqlDB = db
		return nil
	})

	logger.LogDatabaseConnection(string(cfg.Driver), cfg.Target(), err == nil, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	configurePool(sqlDB, cfg)

	return New(sqlDB, dialect, logger, cfg.QueryTimeout), nil
}

func open(cfg Config) (*sql.DB, error) {
	switch cfg.Driver {
	case DriverSQLite:
		return sql.Open("sqlite3", sqliteDSN(cfg))
	case DriverPostgres:
		return openPostgres(cfg)
	case DriverMySQL:
		return openMySQL(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
}

// sqlitePathEscaper percent-encodes the characters that end the path part of
// a SQLite URI filename
var sqlitePathEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

func sqliteDSN(cfg Config) string {
	mode := "rw"
	if cfg.CreateIfMissing {
		mode = "rwc"
	}
	busy := cfg.ConnectTimeout.Milliseconds()
	return fmt.Sprintf("file:%s?mode=%s&_foreign_keys=on&_busy_timeout=%d",
		sqlitePathEscaper.Replace(cfg.Path), mode, busy)
}

func openPostgres(cfg Config) (*sql.DB, error) {
	pc, err := postgresConfig(cfg)
	if err != nil {
		return nil, err
	}
	return stdlib.OpenDB(*pc), nil
}

// postgresConfig parses the DSN and applies the TLS mode to the primary host
// and every fallback
func postgresConfig(cfg Config) (*pgx.ConnConfig, error) {
	pc, err := pgx.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}

	pc.ConnectTimeout = cfg.ConnectTimeout
	if cfg.TLSMode == TLSModeSkip {
		acceptAnyCertificate(pc.TLSConfig)
		for _, fb := range pc.Fallbacks {
			acceptAnyCertificate(fb.TLSConfig)
		}
	}
	return pc, nil
}

// acceptAnyCertificate disables certificate checks, including the chain
// callback pgx installs for sslmode=verify-ca. A nil config means no TLS.
func acceptAnyCertificate(tc *tls.Config) {
	if tc == nil {
		return
	}
	tc.InsecureSkipVerify = true
	tc.VerifyPeerCertificate = nil
	tc.VerifyConnection = nil
}

func openMySQL(cfg Config) (*sql.DB, error) {
	mc, err := mysqlConfig(cfg)
	if err != nil {
		return nil, err
	}

	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

// mysqlConfig parses the DSN and applies timeouts and the TLS mode
func mysqlConfig(cfg Config) (*mysql.Config, error) {
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}

	mc.ParseTime = true
	mc.Timeout = cfg.ConnectTimeout
	if cfg.TLSMode == TLSModeSkip {
		mc.TLS = nil
		mc.TLSConfig = "skip-verify"
	}
	return mc, nil
}

func configurePool(db *sql.DB, cfg Config) {
	if cfg.Driver == DriverSQLite {
		// a single writer avoids SQLITE_BUSY between pooled connections
		db.SetMaxOpenConns(1)
		return
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
}
