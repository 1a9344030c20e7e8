package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sandwichproject/coordinator/internal/collections"
	"github.com/sandwichproject/coordinator/internal/directory"
	"github.com/sandwichproject/coordinator/internal/messaging"
	"github.com/sandwichproject/coordinator/internal/projects"
	"github.com/sandwichproject/coordinator/internal/users"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// Supported drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Config selects and addresses the durable database.
type Config struct {
	Driver string
	// Path is the SQLite file path, or a SQLite URI such as file::memory:?cache=shared.
	Path string
	// DSN is the MySQL data source name.
	DSN string
}

// Open connects to the configured database and performs schema migrations.
func Open(cfg Config, logger *zap.Logger) (*gorm.DB, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = DriverSQLite
	}

	var (
		db  *gorm.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		db, err = openSQLite(cfg.Path)
	case DriverMySQL:
		db, err = openMySQL(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := migrate(db, logger); err != nil {
		_ = Close(db)
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("driver", driver))
	}
	return db, nil
}

func openSQLite(path string) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func openMySQL(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{PrepareStmt: true})
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}

func migrate(db *gorm.DB, logger *zap.Logger) error {
	if err := db.AutoMigrate(
		&collections.Collection{},
		&directory.Host{},
		&directory.Recipient{},
		&directory.Driver{},
		&messaging.Message{},
		&projects.Project{},
		&users.User{},
		&migrationRecord{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return applyMigrations(db, logger)
}

// Close releases the underlying connection pool.
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
