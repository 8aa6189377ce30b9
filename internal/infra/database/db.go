// Package database is the gorm-backed persistence layer. A single *DB
// implements every store port; it is constructed once in main and passed
// down explicitly.
package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var tracer = otel.Tracer("database")

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// Config selects and tunes the database connection.
type Config struct {
	// DSN is a postgres URL/keyword DSN, or a SQLite file path.
	// Empty means "ifta.db" in the working directory.
	DSN          string
	MaxOpenConns int
	LogLevel     logger.LogLevel
}

// DB wraps a gorm connection pool.
type DB struct {
	gorm    *gorm.DB
	dialect string
	logger  *zap.Logger
}

// Open connects to postgres when the DSN looks like one and to SQLite
// otherwise.
func Open(cfg Config, log *zap.Logger) (*DB, error) {
	dialect, dialector, err := dialectorFor(cfg.DSN)
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if level == 0 {
		level = logger.Warn
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger(log, level),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if dialect == DialectSQLite {
		// One connection: in-memory databases are per connection, and
		// SQLite serializes writers anyway.
		sqlDB.SetMaxOpenConns(1)
		if err := gdb.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	} else if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxOpenConns)
	}

	log.Info("database connected", zap.String("dialect", dialect))
	return &DB{gorm: gdb, dialect: dialect, logger: log}, nil
}

// gormLogger writes gorm's warnings, errors and slow queries to the zap
// logger. A missing row is an expected lookup result, not an error.
func gormLogger(log *zap.Logger, level logger.LogLevel) logger.Interface {
	std, err := zap.NewStdLogAt(log.Named("gorm"), zapcore.WarnLevel)
	if err != nil {
		std = zap.NewStdLog(log.Named("gorm"))
	}
	return logger.New(std, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

func dialectorFor(dsn string) (string, gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"),
		strings.HasPrefix(dsn, "postgresql://"),
		strings.Contains(dsn, "host="):
		return DialectPostgres, postgres.Open(dsn), nil
	case dsn == "":
		dsn = "ifta.db"
	}

	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return "", nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return DialectSQLite, sqlite.Open(dsn), nil
}

// Migrate creates or updates the schema. Migrations are additive.
func (db *DB) Migrate(ctx context.Context) error {
	err := db.gorm.WithContext(ctx).AutoMigrate(
		&companyModel{},
		&userModel{},
		&vehicleModel{},
		&quarterlyModel{},
		&reportModel{},
		&reportStateModel{},
		&attachmentModel{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Dialect returns "postgres" or "sqlite".
func (db *DB) Dialect() string {
	return db.dialect
}

// Close closes the database connection.
func (db *DB) Close() error {
	sqlDB, err := db.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
