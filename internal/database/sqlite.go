package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Session writes and websocket-driven message appends land on sqlite from
// many goroutines, so the file DSN enables WAL and a busy timeout.
const sqliteFileOptions = "_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000"

func openSQLite(cfg Config) (*gorm.DB, error) {
	dsn, err := sqliteDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: false,
	})
	if err != nil {
		return nil, err
	}

	// Participant rows cascade from their session; this must hold even on
	// connections the driver opened before the DSN flags applied.
	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, err
	}

	return db, nil
}

func sqliteDSN(cfg Config) (string, error) {
	if dsn := strings.TrimSpace(cfg.DSN); dsn != "" {
		return dsn, nil
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" || strings.EqualFold(path, ":memory:") {
		return "file::memory:?cache=shared&_foreign_keys=1", nil
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("database: create sqlite directory: %w", err)
		}
	}

	return fmt.Sprintf("file:%s?%s", filepath.ToSlash(path), sqliteFileOptions), nil
}
