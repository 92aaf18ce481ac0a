package database

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/syncroom-dev/syncroom/internal/models"
)

// Config contains database connection options.
type Config struct {
	Driver   string
	Path     string // SQLite database path when Driver == sqlite
	DSN      string // Optional DSN override
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	Options  map[string]string
}

// Open initialises a gorm.DB using the provided configuration.
func Open(cfg Config) (*gorm.DB, error) {
	driver := strings.ToLower(cfg.Driver)
	if driver == "" {
		driver = "sqlite"
	}

	switch driver {
	case "sqlite":
		return openSQLite(cfg)
	case "postgres", "postgresql":
		return openPostgres(cfg)
	case "mysql":
		return openMySQL(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// AutoMigrate creates or updates the schema for every persistent model.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("nil database handle")
	}

	return db.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.ConversationMessage{},
		&models.CollabSession{},
		&models.CollabSessionParticipant{},
	)
}
