package db

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/assessgen-backend/internal/platform/envutil"
	"github.com/yungbote/assessgen-backend/internal/platform/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver      string
	DatabaseURL string
	SQLitePath  string
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		Driver:      strings.ToLower(envutil.String("DB_DRIVER", DriverPostgres)),
		DatabaseURL: envutil.String("DATABASE_URL", "postgres://postgres@localhost:5432/assessgen?sslmode=disable"),
		SQLitePath:  envutil.String("SQLITE_PATH", "assessgen.db"),
		MaxOpen:     envutil.Int("DB_MAX_OPEN_CONNS", 20),
		MaxIdle:     envutil.Int("DB_MAX_IDLE_CONNS", 5),
		MaxLifetime: envutil.Duration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
	}
}

// Open connects with the configured driver. SQLite is meant for local runs
// and tests; pass ":memory:" as SQLitePath for a throwaway database.
func Open(log *logger.Logger, cfg Config) (*gorm.DB, error) {
	dbLog := log.With("service", "Database")
	gcfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", DriverPostgres:
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, errors.New("missing DATABASE_URL")
		}
		dialector = postgres.Open(cfg.DatabaseURL)
	case DriverSQLite:
		path := strings.TrimSpace(cfg.SQLitePath)
		if path == "" {
			path = ":memory:"
		}
		dialector = sqlite.Open(path)
	default:
		return nil, fmt.Errorf("invalid DB_DRIVER=%q (allowed: %q, %q)", cfg.Driver, DriverPostgres, DriverSQLite)
	}

	dbLog.Info("Connecting to database...", "driver", cfg.Driver)
	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		dbLog.Error("Failed to connect to database", "error", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Driver == DriverSQLite {
		// One connection keeps an in-memory database alive and shared.
		sqlDB.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpen > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpen)
		}
		if cfg.MaxIdle > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdle)
		}
		if cfg.MaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)
		}
	}
	return db, nil
}

// AutoMigrate creates or updates the tables of models.
func AutoMigrate(log *logger.Logger, db *gorm.DB, models ...any) error {
	log.Info("Auto migrating tables...", "count", len(models))
	if err := db.AutoMigrate(models...); err != nil {
		log.Error("Auto migration failed", "error", err)
		return err
	}
	return nil
}

func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
