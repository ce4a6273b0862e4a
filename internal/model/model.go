package model

import (
	"time"

	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Waypoint{},
}

// Waypoint is one saved waypoint of one session. Rows of a session are
// rewritten as a whole; Ord keeps the list order stable across loads.
type Waypoint struct {
	SessionKey string         `json:"sessionKey" gorm:"primaryKey;size:255;index:idx_waypoint_session_ord,priority:1"`
	ID         string         `json:"id" gorm:"primaryKey;size:36"`
	Ord        int            `json:"ord" gorm:"index:idx_waypoint_session_ord,priority:2"`
	Name       string         `json:"name" gorm:"size:255"`
	Position   datatypes.JSON `json:"position"`                        // {"x":..,"y":..,"z":..}
	Color      uint32         `json:"color"`                           // 0xRRGGBB
	Dimension  string         `json:"dimension" gorm:"size:128"`       // e.g. minecraft:overworld
	Visible    bool           `json:"visible"`                         // client-side render toggle
	IsShared   bool           `json:"isShared"`                        // replicated to every client
	Owner      *string        `json:"owner" gorm:"size:36;index"`      // player id, set while shared
	UpdatedAt  time.Time      `json:"updatedAt" gorm:"autoUpdateTime"` // last rewrite of the row
}

func (*Waypoint) TableName() string {
	return "waypoints"
}
