// Package gormstorage implements the storage.Backend interface on top of
// GORM. It works with any dialector the database package can open.
package gormstorage

import (
	"fmt"
	"log/slog"

	"github.com/caleywoods/wayfindr/internal/model"
	"github.com/caleywoods/wayfindr/internal/model/convert"
	"github.com/caleywoods/wayfindr/pkg/core"

	"gorm.io/gorm"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger
}

// Backend stores each session's waypoints as rows of the waypoints table.
type Backend struct {
	deps Dependencies
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{deps: deps}
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("gorm backend: no database")
	}
	if err := b.deps.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close is a no-op; the connection is owned by the database manager.
func (b *Backend) Close() error {
	return nil
}

// Read returns the session's waypoints in saved order. Rows that cannot be
// converted are skipped with a warning.
func (b *Backend) Read(key string) ([]core.Waypoint, error) {
	var rows []model.Waypoint
	err := b.deps.DB.
		Where("session_key = ?", key).
		Order("ord").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query waypoints for %s: %w", key, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	list := make([]core.Waypoint, 0, len(rows))
	for _, row := range rows {
		w, err := convert.WaypointToCore(row)
		if err != nil {
			b.deps.Logger.Warn("Skipping unreadable waypoint row", "session", key, "error", err)
			continue
		}
		list = append(list, w)
	}
	return list, nil
}

// Write replaces every row of the session in one transaction.
func (b *Backend) Write(key string, list []core.Waypoint) error {
	rows := make([]model.Waypoint, 0, len(list))
	for i, w := range list {
		rows = append(rows, convert.WaypointToGorm(key, i, w))
	}

	return b.deps.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_key = ?", key).Delete(&model.Waypoint{}).Error; err != nil {
			return fmt.Errorf("clear waypoints for %s: %w", key, err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, 500).Error; err != nil {
			return fmt.Errorf("insert waypoints for %s: %w", key, err)
		}
		return nil
	})
}
