// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"fmt"

	"github.com/caleywoods/wayfindr/internal/model"
	"github.com/caleywoods/wayfindr/pkg/core"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// positionToJSON converts a core.Position to datatypes.JSON for DB storage.
func positionToJSON(p core.Position) datatypes.JSON {
	data, _ := json.Marshal(p)
	return datatypes.JSON(data)
}

// WaypointToGorm converts a core.Waypoint into its row for sessionKey.
func WaypointToGorm(sessionKey string, ord int, w core.Waypoint) model.Waypoint {
	row := model.Waypoint{
		SessionKey: sessionKey,
		ID:         w.ID.String(),
		Ord:        ord,
		Name:       w.Name,
		Position:   positionToJSON(w.Position),
		Color:      uint32(w.Color),
		Dimension:  w.Dimension,
		Visible:    w.Visible,
		IsShared:   w.IsShared,
	}
	if w.Owner != nil {
		owner := w.Owner.String()
		row.Owner = &owner
	}
	return row
}

// WaypointToCore converts a row back into a core.Waypoint.
func WaypointToCore(row model.Waypoint) (core.Waypoint, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return core.Waypoint{}, fmt.Errorf("waypoint id %q: %w", row.ID, err)
	}

	w := core.Waypoint{
		ID:        id,
		Name:      row.Name,
		Color:     core.Color(row.Color),
		Dimension: row.Dimension,
		Visible:   row.Visible,
		IsShared:  row.IsShared,
	}
	if len(row.Position) > 0 {
		if err := json.Unmarshal(row.Position, &w.Position); err != nil {
			return core.Waypoint{}, fmt.Errorf("waypoint %s position: %w", row.ID, err)
		}
	}
	if w.Dimension == "" {
		w.Dimension = core.DefaultDimension
	}
	if row.Owner != nil {
		owner, err := uuid.Parse(*row.Owner)
		if err != nil {
			return core.Waypoint{}, fmt.Errorf("waypoint %s owner %q: %w", row.ID, *row.Owner, err)
		}
		w.Owner = &owner
	}
	return w, nil
}
