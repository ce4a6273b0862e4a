package registry

import (
	"github.com/caleywoods/wayfindr/pkg/core"
	"github.com/google/uuid"
)

// All returns a copy of every waypoint in insertion order.
func (r *Registry) All() []core.Waypoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return core.CloneAll(r.waypoints)
}

// Len returns the number of waypoints.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waypoints)
}

// GetByName returns the first waypoint named name.
func (r *Registry) GetByName(name string) (core.Waypoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexByName(name); i >= 0 {
		return r.waypoints[i].Clone(), true
	}
	return core.Waypoint{}, false
}

// GetByID returns the waypoint with the given id.
func (r *Registry) GetByID(id uuid.UUID) (core.Waypoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexByID(id); i >= 0 {
		return r.waypoints[i].Clone(), true
	}
	return core.Waypoint{}, false
}

// Shared returns the shared waypoints.
func (r *Registry) Shared() []core.Waypoint {
	return r.filter(func(w core.Waypoint) bool { return w.IsShared })
}

// Personal returns the waypoints that are not shared.
func (r *Registry) Personal() []core.Waypoint {
	return r.filter(func(w core.Waypoint) bool { return !w.IsShared })
}

// Visible returns the visible waypoints of dimension within maxDistance of
// from. A non-positive maxDistance disables the distance check.
func (r *Registry) Visible(dimension string, from core.Position, maxDistance float64) []core.Waypoint {
	return r.filter(func(w core.Waypoint) bool {
		if !w.Visible || w.Dimension != dimension {
			return false
		}
		return maxDistance <= 0 || from.DistanceTo(w.Position) <= maxDistance
	})
}

func (r *Registry) filter(keep func(core.Waypoint) bool) []core.Waypoint {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []core.Waypoint{}
	for _, w := range r.waypoints {
		if keep(w) {
			out = append(out, w.Clone())
		}
	}
	return out
}
