package registry

import (
	"github.com/caleywoods/wayfindr/pkg/core"
	"github.com/google/uuid"
)

// Navigation describes the way to the current target.
type Navigation struct {
	Target   core.Waypoint
	Distance float64
	// Bearing is relative to the viewer's facing, clockwise, in [0, 360).
	Bearing float64
	Arrived bool
}

// SetNavigationTarget selects the named waypoint as target.
func (r *Registry) SetNavigationTarget(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexByName(name)
	if i < 0 {
		return false
	}
	r.navTarget = r.waypoints[i].ID
	return true
}

// ClearNavigationTarget drops the target.
func (r *Registry) ClearNavigationTarget() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.navTarget = uuid.Nil
}

// IsNavigationTarget reports whether the target is named name.
func (r *Registry) IsNavigationTarget(name string) bool {
	w, ok := r.NavigationTarget()
	return ok && w.Name == name
}

// NavigationTarget returns the current target.
func (r *Registry) NavigationTarget() (core.Waypoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.targetLocked()
}

func (r *Registry) targetLocked() (core.Waypoint, bool) {
	if r.navTarget == uuid.Nil {
		return core.Waypoint{}, false
	}
	if i := r.indexByID(r.navTarget); i >= 0 {
		return r.waypoints[i].Clone(), true
	}
	return core.Waypoint{}, false
}

// IsWithinDeadzone reports whether pos is within the deadzone of the target
// on every axis. Always false without a target.
func (r *Registry) IsWithinDeadzone(pos core.Position) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.targetLocked()
	return ok && target.Position.WithinBox(pos, r.deadzone)
}

// Navigation computes distance and bearing from a viewer at from facing yaw.
func (r *Registry) Navigation(from core.Position, yaw float64) (Navigation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.targetLocked()
	if !ok {
		return Navigation{}, false
	}
	return Navigation{
		Target:   target,
		Distance: from.DistanceTo(target.Position),
		Bearing:  core.Bearing(from, target.Position, yaw),
		Arrived:  target.Position.WithinBox(from, r.deadzone),
	}, true
}
