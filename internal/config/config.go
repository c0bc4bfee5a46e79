package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	// DatabaseSchemePostgres is the postgres database scheme identifier
	DatabaseSchemePostgres = "postgres"
	// DatabaseSchemeSQLite is the sqlite database scheme identifier
	DatabaseSchemeSQLite = "sqlite"
)

type Config struct {
	DBDialect         string        // postgres or sqlite
	DBDsn             string        // DSN string passed to GORM driver
	RecomputeInterval time.Duration // weight snapshot refresh period
	Debug             bool          // if true: show logs, no TUI; if false: no logs, show TUI
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		fmt.Fprintf(os.Stderr, "warning: invalid %s=%q, using %s\n", key, v, def)
		return def
	}
	return d
}

// parseDatabaseURL interprets DATABASE_URL and returns (dialect, dsn).
// Supported schemes: postgres, postgresql, sqlite (file path or :memory:).
func parseDatabaseURL(databaseURL string) (string, string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", "", err
	}
	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case DatabaseSchemePostgres, "postgresql":
		// GORM postgres driver accepts URL DSN as-is
		return DatabaseSchemePostgres, databaseURL, nil
	case DatabaseSchemeSQLite, "file":
		// glebarez/sqlite takes a bare path or file: DSN
		return DatabaseSchemeSQLite, strings.TrimPrefix(databaseURL, "sqlite://"), nil
	default:
		return "", "", fmt.Errorf("unsupported DATABASE_URL scheme: %s", u.Scheme)
	}
}

func Load() Config {
	cfg := Config{
		RecomputeInterval: getenvDuration("RECOMPUTE_INTERVAL", 10*time.Minute),
		Debug:             getenvBool("DEBUG", false),
	}

	// Default to a local sqlite file so the engine works out of the box
	dbURL := strings.TrimSpace(getenv("DATABASE_URL", "sqlite://governance.db"))
	if dialect, dsn, err := parseDatabaseURL(dbURL); err == nil {
		cfg.DBDialect = dialect
		cfg.DBDsn = dsn
	} else {
		fmt.Fprintf(os.Stderr, "warning: invalid DATABASE_URL, falling back to sqlite: %v\n", err)
		cfg.DBDialect = DatabaseSchemeSQLite
		cfg.DBDsn = "governance.db"
	}

	return cfg
}

func (c Config) String() string {
	return fmt.Sprintf("db=%s recompute=%s", c.DBDialect, c.RecomputeInterval)
}

// DebugString returns a human-friendly configuration string with masked secrets.
func (c Config) DebugString() string {
	return fmt.Sprintf(
		"db=%s dsn=%s recompute=%s debug=%t",
		c.DBDialect,
		maskDSN(c.DBDialect, c.DBDsn),
		c.RecomputeInterval,
		c.Debug,
	)
}

func maskDSN(dialect, dsn string) string {
	switch strings.ToLower(dialect) {
	case DatabaseSchemePostgres:
		if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
			if u.User != nil {
				username := u.User.Username()
				u.User = url.User(username)
			}
			return u.String()
		}
		// Fallback for DSN as key-value list
		parts := strings.Fields(dsn)
		for i, p := range parts {
			lower := strings.ToLower(p)
			if strings.HasPrefix(lower, "password=") {
				parts[i] = "password=***"
			}
		}
		return strings.Join(parts, " ")
	default:
		return dsn
	}
}
