// Package registry holds the authoritative waypoint list of the active
// session together with the navigation target.
package registry

import (
	"log/slog"
	"sync"

	"github.com/caleywoods/wayfindr/pkg/core"
	"github.com/google/uuid"
)

// DefaultDeadzone is the per-axis distance at which a navigation target
// counts as reached.
const DefaultDeadzone = 3.0

// Store persists waypoint lists per session key. *storage.Store satisfies it.
type Store interface {
	Load(key string) []core.Waypoint
	AppendOne(key string, w core.Waypoint) bool
	SaveAll(key string, list []core.Waypoint) bool
}

// Options tune a Registry. Zero values select defaults.
type Options struct {
	Deadzone float64
	Logger   *slog.Logger
}

// Registry is safe for concurrent use. Every mutation is persisted before
// the call returns; callers never observe an applied but unsaved change.
type Registry struct {
	mu        sync.Mutex
	store     Store
	key       string
	waypoints []core.Waypoint
	navTarget uuid.UUID
	deadzone  float64
	logger    *slog.Logger
}

// New creates an empty registry with no session loaded.
func New(store Store, opts Options) *Registry {
	if opts.Deadzone <= 0 {
		opts.Deadzone = DefaultDeadzone
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Registry{
		store:     store,
		waypoints: []core.Waypoint{},
		deadzone:  opts.Deadzone,
		logger:    opts.Logger,
	}
}

// LoadForSession replaces the in-memory list with the one saved under key.
// Switching to a different key clears the navigation target.
func (r *Registry) LoadForSession(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if key != r.key {
		r.navTarget = uuid.Nil
	}
	r.key = key
	r.waypoints = dedupe(r.store.Load(key), r.logger)
	r.logger.Info("Loaded waypoints", "session", key, "count", len(r.waypoints))
}

// SessionKey returns the key of the loaded session, or "" if none.
func (r *Registry) SessionKey() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.key
}

// Add creates a personal waypoint with a fresh id and saves it.
func (r *Registry) Add(name string, pos core.Position, color core.Color, dimension string, visible bool) core.Waypoint {
	w := core.NewWaypoint(name, pos, color, dimension, visible)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.waypoints = append(r.waypoints, w)
	r.appendLocked(w)
	return w.Clone()
}

// AddWaypoint inserts w keeping its id. An existing waypoint with the same
// id is replaced in place.
func (r *Registry) AddWaypoint(w core.Waypoint) core.Waypoint {
	w = w.Clone()
	if w.Dimension == "" {
		w.Dimension = core.DefaultDimension
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexByID(w.ID); i >= 0 {
		r.logger.Warn("Waypoint id already present, replacing", "id", w.ID, "old", r.waypoints[i].Name, "new", w.Name)
		r.waypoints[i] = w
	} else {
		r.waypoints = append(r.waypoints, w)
	}
	r.appendLocked(w)
	return w.Clone()
}

// Remove deletes the first waypoint whose name or id equals nameOrID.
func (r *Registry) Remove(nameOrID string) bool {
	_, ok := r.Take(nameOrID)
	return ok
}

// Take is Remove returning the deleted waypoint.
func (r *Registry) Take(nameOrID string) (core.Waypoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(func(w core.Waypoint) bool {
		return w.Name == nameOrID || w.ID.String() == nameOrID
	})
	if i < 0 {
		return core.Waypoint{}, false
	}
	removed := r.waypoints[i]
	r.waypoints = append(r.waypoints[:i:i], r.waypoints[i+1:]...)
	if removed.ID == r.navTarget {
		r.navTarget = uuid.Nil
	}
	r.saveLocked()
	return removed, true
}

// Update replaces the stored waypoint that has w's id. Unknown ids are
// ignored.
func (r *Registry) Update(w core.Waypoint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexByID(w.ID)
	if i < 0 {
		return false
	}
	w = w.Clone()
	if w.Dimension == "" {
		w.Dimension = core.DefaultDimension
	}
	r.waypoints[i] = w
	r.saveLocked()
	return true
}

// Modify applies fn to the first waypoint named name, saves, and returns
// the result. The id cannot be changed through fn.
func (r *Registry) Modify(name string, fn func(w *core.Waypoint)) (core.Waypoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.modifyLocked(r.indexByName(name), fn)
}

// ModifyByID is Modify for the waypoint with the given id.
func (r *Registry) ModifyByID(id uuid.UUID, fn func(w *core.Waypoint)) (core.Waypoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.modifyLocked(r.indexByID(id), fn)
}

func (r *Registry) modifyLocked(i int, fn func(w *core.Waypoint)) (core.Waypoint, bool) {
	if i < 0 {
		return core.Waypoint{}, false
	}
	w := r.waypoints[i].Clone()
	id := w.ID
	fn(&w)
	w.ID = id
	r.waypoints[i] = w
	r.saveLocked()
	return w.Clone(), true
}

// Rename changes the name of the first waypoint named oldName.
func (r *Registry) Rename(oldName, newName string) bool {
	_, ok := r.Modify(oldName, func(w *core.Waypoint) { w.Name = newName })
	return ok
}

// ToggleVisible flips the visibility of the named waypoint.
func (r *Registry) ToggleVisible(name string) bool {
	_, ok := r.Modify(name, func(w *core.Waypoint) { w.Visible = !w.Visible })
	return ok
}

// SetVisible sets the visibility of the named waypoint.
func (r *Registry) SetVisible(name string, visible bool) bool {
	_, ok := r.Modify(name, func(w *core.Waypoint) { w.Visible = visible })
	return ok
}

// SetColor sets the color of the named waypoint.
func (r *Registry) SetColor(name string, color core.Color) bool {
	_, ok := r.Modify(name, func(w *core.Waypoint) { w.Color = color })
	return ok
}

// SetShared marks the named waypoint shared with the given owner, or
// personal when owner is nil.
func (r *Registry) SetShared(name string, owner *uuid.UUID) (core.Waypoint, bool) {
	return r.Modify(name, shareWith(owner))
}

// SetSharedByID is SetShared for the waypoint with the given id.
func (r *Registry) SetSharedByID(id uuid.UUID, owner *uuid.UUID) (core.Waypoint, bool) {
	return r.ModifyByID(id, shareWith(owner))
}

// UnshareOwned makes the waypoint personal again if it is still shared and
// owned by owner.
func (r *Registry) UnshareOwned(id, owner uuid.UUID) (core.Waypoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexByID(id)
	if i < 0 || !r.waypoints[i].IsShared || !r.waypoints[i].OwnedBy(owner) {
		return core.Waypoint{}, false
	}
	return r.modifyLocked(i, shareWith(nil))
}

func shareWith(owner *uuid.UUID) func(w *core.Waypoint) {
	return func(w *core.Waypoint) {
		if owner == nil {
			w.IsShared = false
			w.Owner = nil
			return
		}
		o := *owner
		w.IsShared = true
		w.Owner = &o
	}
}

// RemoveShared deletes the waypoint with the given id only if it is shared.
// found reports whether the id was present at all.
func (r *Registry) RemoveShared(id uuid.UUID) (found, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexByID(id)
	if i < 0 {
		return false, false
	}
	if !r.waypoints[i].IsShared {
		return true, false
	}
	r.waypoints = append(r.waypoints[:i:i], r.waypoints[i+1:]...)
	if id == r.navTarget {
		r.navTarget = uuid.Nil
	}
	r.saveLocked()
	return true, true
}

// ReplaceAll swaps the whole list and saves it. Later entries win when ids
// repeat.
func (r *Registry) ReplaceAll(list []core.Waypoint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.replaceLocked(core.CloneAll(list))
}

// MergeShared keeps every personal waypoint and replaces the shared ones
// with incoming, as one step. It returns the resulting count.
func (r *Registry) MergeShared(incoming []core.Waypoint) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	merged := make([]core.Waypoint, 0, len(r.waypoints)+len(incoming))
	for _, w := range r.waypoints {
		if !w.IsShared {
			merged = append(merged, w)
		}
	}
	merged = append(merged, core.CloneAll(incoming)...)
	r.replaceLocked(merged)
	return len(r.waypoints)
}

func (r *Registry) replaceLocked(list []core.Waypoint) {
	r.waypoints = dedupe(list, r.logger)
	if r.navTarget != uuid.Nil && r.indexByID(r.navTarget) < 0 {
		r.navTarget = uuid.Nil
	}
	r.saveLocked()
}

func (r *Registry) appendLocked(w core.Waypoint) {
	if r.key == "" {
		r.logger.Debug("No session loaded, not saving", "id", w.ID)
		return
	}
	r.store.AppendOne(r.key, w)
}

func (r *Registry) saveLocked() {
	if r.key == "" {
		r.logger.Debug("No session loaded, not saving")
		return
	}
	r.store.SaveAll(r.key, r.waypoints)
}

func (r *Registry) indexOf(match func(core.Waypoint) bool) int {
	for i, w := range r.waypoints {
		if match(w) {
			return i
		}
	}
	return -1
}

func (r *Registry) indexByID(id uuid.UUID) int {
	return r.indexOf(func(w core.Waypoint) bool { return w.ID == id })
}

func (r *Registry) indexByName(name string) int {
	return r.indexOf(func(w core.Waypoint) bool { return w.Name == name })
}

// dedupe keeps one entry per id at the position of its first occurrence,
// holding the value of its last occurrence.
func dedupe(list []core.Waypoint, logger *slog.Logger) []core.Waypoint {
	out := make([]core.Waypoint, 0, len(list))
	seen := make(map[uuid.UUID]int, len(list))
	for _, w := range list {
		if i, ok := seen[w.ID]; ok {
			logger.Warn("Duplicate waypoint id, keeping latest", "id", w.ID, "name", w.Name)
			out[i] = w
			continue
		}
		seen[w.ID] = len(out)
		out = append(out, w)
	}
	return out
}
