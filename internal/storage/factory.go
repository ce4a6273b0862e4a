package storage

import (
	"fmt"
	"log/slog"

	"github.com/caleywoods/wayfindr/internal/config"
	"github.com/caleywoods/wayfindr/internal/database"
	"github.com/caleywoods/wayfindr/internal/storage/file"
	gormstorage "github.com/caleywoods/wayfindr/internal/storage/gorm"
	"github.com/caleywoods/wayfindr/internal/storage/memory"
)

// NewBackend creates a storage backend based on configuration. The SQL
// backends connect through dbm, which the caller closes.
func NewBackend(cfg config.StorageConfig, dbm *database.Manager, logger *slog.Logger) (Backend, error) {
	switch cfg.Type {
	case "file", "":
		return file.New(file.Config{
			DataDir:  cfg.File.DataDir,
			Format:   cfg.File.Format,
			Compress: cfg.File.Compress,
		}), nil

	case "sqlite", "postgres":
		if dbm == nil {
			return nil, fmt.Errorf("%s backend needs a database manager", cfg.Type)
		}
		err := dbm.Connect(database.Config{
			Type:       cfg.Type,
			SqlitePath: cfg.SQLite.Path,
			Postgres: database.PostgresConfig{
				Host:     cfg.Postgres.Host,
				Port:     cfg.Postgres.Port,
				Username: cfg.Postgres.Username,
				Password: cfg.Postgres.Password,
				Database: cfg.Postgres.Database,
				SSLMode:  cfg.Postgres.SSLMode,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return gormstorage.New(gormstorage.Dependencies{DB: dbm.DB, Logger: logger}), nil

	case "memory":
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
