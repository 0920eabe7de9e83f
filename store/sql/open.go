package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

const defaultPingTimeout = 5 * time.Second

// ConnectionConfig describes one database connection for the persistence
// client. Server is a DSN in the driver's native format.
type ConnectionConfig struct {
	Driver         string
	Server         string
	Debug          bool
	PingTimeout    time.Duration
	OtelIdentifier string
}

func (c ConnectionConfig) GetDebug() bool {
	return c.Debug
}

func (c ConnectionConfig) GetDriver() string {
	return strings.TrimSpace(c.Driver)
}

func (c ConnectionConfig) GetServer() string {
	return strings.TrimSpace(c.Server)
}

func (c ConnectionConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout > 0 {
		return c.PingTimeout
	}
	return defaultPingTimeout
}

func (c ConnectionConfig) GetOtelIdentifier() string {
	if identifier := strings.TrimSpace(c.OtelIdentifier); identifier != "" {
		return identifier
	}
	return "go-crebain"
}

// OpenPostgres opens a Postgres-backed persistence client.
func OpenPostgres(cfg ConnectionConfig) (*persistence.Client, error) {
	if cfg.GetServer() == "" {
		return nil, fmt.Errorf("sqlstore: postgres dsn is required")
	}
	cfg.Driver = DriverPostgres
	sqlDB, err := sql.Open(DriverPostgres, cfg.GetServer())
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open postgres: %w", err)
	}
	client, err := persistence.New(cfg, sqlDB, pgdialect.New())
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return client, nil
}

// OpenSQLite opens a SQLite-backed persistence client; handy for embedded
// setups and tests.
func OpenSQLite(cfg ConnectionConfig) (*persistence.Client, error) {
	if cfg.GetServer() == "" {
		return nil, fmt.Errorf("sqlstore: sqlite dsn is required")
	}
	cfg.Driver = DriverSQLite
	sqlDB, err := sql.Open(DriverSQLite, cfg.GetServer())
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open sqlite: %w", err)
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return client, nil
}
