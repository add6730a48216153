// Package repository persists inbound events and domain entities with bun.
//
// Postgres is the production driver; SQLite backs local runs and tests.
// Uniqueness and upsert semantics are enforced by the database so that
// concurrent writers for the same external identity never duplicate rows.
package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/okian/hookscore/pkg/logger"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// goose keeps its dialect and filesystem in package globals.
var migrateMu sync.Mutex

// Store is the bun backed persistence layer.
type Store struct {
	db           *bun.DB
	driver       string
	log          logger.Logger
	now          func() time.Time
	maxOpenConns int
}

// Open connects to the database identified by driver and dsn.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	s := &Store{driver: driver, now: time.Now, maxOpenConns: 10}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Named("repository")
	}

	sqldb, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	switch driver {
	case DriverPostgres:
		sqldb.SetMaxOpenConns(s.maxOpenConns)
		s.db = bun.NewDB(sqldb, pgdialect.New())
	case DriverSQLite:
		// SQLite serializes writers; one connection avoids "database is locked".
		sqldb.SetMaxOpenConns(1)
		s.db = bun.NewDB(sqldb, sqlitedialect.New())
	default:
		_ = sqldb.Close()
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	if err := s.db.PingContext(ctx); err != nil {
		_ = s.db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return s, nil
}

// Migrate applies the embedded migrations for the store's driver.
func (s *Store) Migrate(ctx context.Context) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	dir := "migrations/postgres"
	if s.driver == DriverSQLite {
		dir = "migrations/sqlite"
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{ctx: ctx, log: s.log})
	if err := goose.SetDialect(s.driver); err != nil {
		return fmt.Errorf("%w: %w", ErrMigrate, err)
	}
	if err := goose.Up(s.db.DB, dir); err != nil {
		return fmt.Errorf("%w: %w", ErrMigrate, err)
	}
	return nil
}

// DB exposes the underlying bun handle.
func (s *Store) DB() *bun.DB { return s.db }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) timestamp() time.Time { return s.now().UTC() }

// gooseLogger routes migration output through the service logger.
type gooseLogger struct {
	ctx context.Context
	log logger.Logger
}

func (g gooseLogger) Printf(format string, v ...interface{}) {
	g.log.Info(g.ctx, strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (g gooseLogger) Fatalf(format string, v ...interface{}) {
	g.log.Fatal(g.ctx, strings.TrimSpace(fmt.Sprintf(format, v...)))
}
