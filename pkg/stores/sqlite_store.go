package stores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/uirecorder/teststore/pkg/telemetry"

	// SQLite driver
	_ "modernc.org/sqlite"
)

const memoryPath = ":memory:"

// SQLiteStore persists tests and reports in SQLite.
type SQLiteStore struct {
	db      *sqlx.DB
	cfg     Config
	tables  Tables
	queries queries
	tel     *telemetry.Telemetry
	logger  *telemetry.Logger
}

// NewSQLiteStore creates a new SQLite store instance. Call Init and Migrate
// before use, or use Open.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.Path == memoryPath {
		// Every connection to :memory: is a separate database.
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return newStore(cfg)
}

// NewWithDB wraps an already open database handle and migrates the schema.
// The caller keeps ownership of db; Close on the returned store closes it.
func NewWithDB(ctx context.Context, db *sql.DB, cfg Config) (*SQLiteStore, error) {
	if db == nil {
		return nil, ErrNotInitialized
	}

	s, err := newStore(cfg)
	if err != nil {
		return nil, err
	}
	s.db = sqlx.NewDb(db, "sqlite")

	if err := s.Migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Open creates, initializes and migrates a store in one call.
func Open(ctx context.Context, cfg Config) (*SQLiteStore, error) {
	s, err := NewSQLiteStore(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func newStore(cfg Config) (*SQLiteStore, error) {
	tables := cfg.Tables.withDefaults()
	if err := ValidateTables(tables); err != nil {
		return nil, err
	}

	tel := cfg.Telemetry
	if tel == nil {
		tel = telemetry.NewNop()
	}

	return &SQLiteStore{
		cfg:     cfg,
		tables:  tables,
		queries: buildQueries(tables),
		tel:     tel,
		logger:  tel.Logger.NewComponentLogger("stores"),
	}, nil
}

// Init opens the database connection with WAL mode and foreign keys enabled.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate", s.cfg.Path)

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	s.logger.WithField("path", s.cfg.Path).Debug("database opened")
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate brings the schema up to date. It is idempotent.
func (s *SQLiteStore) Migrate(ctx context.Context) (err error) {
	if s.db == nil {
		return ErrNotInitialized
	}

	op := s.tel.StartOperation(ctx, "stores.migrate")
	defer func() { op.End(err) }()

	sourceDriver, err := iofs.New(templateFS{base: migrationsFS, data: s.tables}, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db.DB, &sqlite3.Config{
		MigrationsTable: s.tables.migrationsTable(),
	})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	// The migrate instance is not closed: that would close s.db.
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("schema version %d is dirty", version)
	}

	op.Logger.Debugf("schema at version %d", version)
	_ = s.tel.Events.PublishSchemaMigrated(version)
	return nil
}

// Tables returns the table names used by the store.
func (s *SQLiteStore) Tables() Tables {
	return s.tables
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return ErrNotInitialized
	}
	return s.db.PingContext(ctx)
}

// inTx runs fn inside a transaction, committing on success.
func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
