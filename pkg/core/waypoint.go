package core

import "github.com/google/uuid"

// DefaultDimension is assigned to waypoints created without one.
const DefaultDimension = "minecraft:overworld"

// Waypoint is a named marker at a position in a dimension.
// Owner is set only while the waypoint is shared.
type Waypoint struct {
	ID        uuid.UUID  `json:"id" yaml:"id"`
	Name      string     `json:"name" yaml:"name"`
	Position  Position   `json:"position" yaml:"position"`
	Color     Color      `json:"color" yaml:"color"`
	Dimension string     `json:"dimension" yaml:"dimension"`
	Visible   bool       `json:"visible" yaml:"visible"`
	IsShared  bool       `json:"isShared" yaml:"isShared"`
	Owner     *uuid.UUID `json:"owner,omitempty" yaml:"owner,omitempty"`
}

// NewWaypoint creates a personal waypoint with a fresh id.
func NewWaypoint(name string, pos Position, color Color, dimension string, visible bool) Waypoint {
	if dimension == "" {
		dimension = DefaultDimension
	}
	return Waypoint{
		ID:        uuid.New(),
		Name:      name,
		Position:  pos,
		Color:     color,
		Dimension: dimension,
		Visible:   visible,
	}
}

// Clone returns a copy that shares no memory with w.
func (w Waypoint) Clone() Waypoint {
	if w.Owner != nil {
		owner := *w.Owner
		w.Owner = &owner
	}
	return w
}

// OwnedBy reports whether player owns w.
func (w Waypoint) OwnedBy(player uuid.UUID) bool {
	return w.Owner != nil && *w.Owner == player
}

// CloneAll copies a waypoint list. A nil input yields an empty slice.
func CloneAll(list []Waypoint) []Waypoint {
	out := make([]Waypoint, len(list))
	for i, w := range list {
		out[i] = w.Clone()
	}
	return out
}
