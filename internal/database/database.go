package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"jewelry-catalog/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL flavour spoken by the underlying driver
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Service owns the catalog database connection and its schema lifecycle
type Service interface {
	// Initialize connects and migrates the schema. Safe to call repeatedly.
	Initialize(ctx context.Context) error
	DB() *sql.DB
	Dialect() Dialect
	SchemaVersion(ctx context.Context) (int64, error)
	Health(ctx context.Context) map[string]string
	Close() error
}

// ErrConfigMismatch is returned by New when the shared instance was opened with a different config
var ErrConfigMismatch = errors.New("database already open with a different configuration")

type service struct {
	db      *sql.DB
	cfg     config.DatabaseConfig
	dialect Dialect
	logger  *zap.Logger

	mu          sync.Mutex
	initialized bool
	onClose     func()
}

var (
	instanceMu sync.Mutex
	instance   *service
)

// New returns the process-wide database service, opening it on first use.
// Concurrent callers all receive the same instance. Asking for a different
// config while it is open fails with ErrConfigMismatch; Close it first.
func New(cfg config.DatabaseConfig, logger *zap.Logger) (Service, error) {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance != nil {
		if instance.cfg != cfg {
			return nil, ErrConfigMismatch
		}
		return instance, nil
	}

	s, err := open(cfg, logger)
	if err != nil {
		return nil, err
	}
	s.onClose = func() {
		instanceMu.Lock()
		if instance == s {
			instance = nil
		}
		instanceMu.Unlock()
	}
	instance = s
	return s, nil
}

// Open returns a standalone database service that is not shared process-wide
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (Service, error) {
	return open(cfg, logger)
}

func open(cfg config.DatabaseConfig, logger *zap.Logger) (*service, error) {
	dialect, driver, dsn, err := dataSource(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		// One writer at a time; also keeps in-memory databases on a single connection.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	return &service{db: db, cfg: cfg, dialect: dialect, logger: logger}, nil
}

func dataSource(cfg config.DatabaseConfig) (Dialect, string, string, error) {
	switch cfg.Driver {
	case "", "sqlite", "sqlite3":
		return DialectSQLite, "sqlite", sqliteDSN(cfg.Path), nil
	case "postgres", "postgresql", "pgx":
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(cfg.User, cfg.Password),
			Host:   cfg.Host + ":" + cfg.Port,
			Path:   "/" + cfg.Database,
		}
		q := u.Query()
		q.Set("sslmode", "disable")
		if cfg.Schema != "" {
			q.Set("search_path", cfg.Schema)
		}
		u.RawQuery = q.Encode()
		return DialectPostgres, "pgx", u.String(), nil
	default:
		return "", "", "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func sqliteDSN(path string) string {
	if path == "" || path == ":memory:" {
		return "file::memory:?_pragma=foreign_keys(1)&_time_format=sqlite"
	}
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite"
}

func (s *service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to %s database: %w", s.dialect, err)
	}

	if s.initialized {
		return nil
	}

	if err := RunMigrations(ctx, s.db, s.dialect, s.logger); err != nil {
		return err
	}

	s.initialized = true
	return nil
}

func (s *service) DB() *sql.DB {
	return s.db
}

func (s *service) Dialect() Dialect {
	return s.dialect
}

func (s *service) SchemaVersion(ctx context.Context) (int64, error) {
	return CurrentVersion(ctx, s.db, s.dialect)
}

// Health returns a snapshot of connectivity and pool statistics
func (s *service) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	stats := make(map[string]string)
	stats["dialect"] = string(s.dialect)

	if err := s.db.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := s.db.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()

	if version, err := CurrentVersion(ctx, s.db, s.dialect); err == nil {
		stats["schema_version"] = strconv.FormatInt(version, 10)
	}

	return stats
}

// Close releases the connection; a later New opens a fresh one
func (s *service) Close() error {
	s.mu.Lock()
	s.initialized = false
	s.mu.Unlock()

	if s.onClose != nil {
		s.onClose()
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.logger.Info("Disconnected from database", zap.String("dialect", string(s.dialect)))
	return nil
}
