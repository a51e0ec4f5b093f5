package database

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func gormConfig() *gorm.Config {
	return &gorm.Config{
		// Dialect specific constraint errors are mapped to gorm.ErrDuplicatedKey and
		// gorm.ErrForeignKeyViolated so callers can use errors.Is regardless of driver.
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}
}

// NewDatabase connects to the database at the given url and brings the schema
// up to date. postgres:// and postgresql:// urls use the postgres driver,
// anything else is treated as a sqlite path.
func NewDatabase(databaseURL string) (*gorm.DB, error) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		return NewPostgres(databaseURL)
	}
	return NewSQLite(databaseURL)
}

func NewPostgres(databaseURL string) (*gorm.DB, error) {
	slog.Info("connecting to postgres database")

	db, err := gorm.Open(postgres.Open(databaseURL), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("unable to connect to postgres: %w", err)
	}

	if err := GetMigrator(db).Migrate(); err != nil {
		return nil, fmt.Errorf("unable to migrate database: %w", err)
	}

	return db, nil
}

func NewSQLite(path string) (*gorm.DB, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
			return nil, fmt.Errorf("unable to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(sqliteDSN(path)), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database '%s': %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unable to access sqlite connection pool: %w", err)
	}
	// SQLite only supports one writer at a time, and every connection to
	// :memory: is its own database, so everything goes through one connection.
	sqlDB.SetMaxOpenConns(1)

	if err := GetMigrator(db).Migrate(); err != nil {
		return nil, fmt.Errorf("unable to migrate database: %w", err)
	}

	return db, nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on"
}
