// internal/storage/storage.go
package storage

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/caleywoods/wayfindr/internal/cache"
	"github.com/caleywoods/wayfindr/pkg/core"
)

// Backend is the interface all storage implementations must satisfy.
// Read of an unknown session key returns (nil, nil).
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Waypoint sets, one per session key
	Read(sessionKey string) ([]core.Waypoint, error)
	Write(sessionKey string, waypoints []core.Waypoint) error
}

// Stats combines cache counters with backend activity.
type Stats struct {
	cache.Stats
	BackendLoads  uint64 `json:"backendLoads"`
	BackendWrites uint64 `json:"backendWrites"`
	Failures      uint64 `json:"failures"`
}

// Store is a write-through layer over a Backend with a session cache in
// front of reads. It never returns errors: failures are logged and a read
// that fails yields an empty list.
type Store struct {
	backend Backend
	cache   *cache.SessionCache
	logger  *slog.Logger

	mu       sync.Mutex
	loads    atomic.Uint64
	writes   atomic.Uint64
	failures atomic.Uint64
}

// NewStore wraps backend. A nil cache gets a default-sized one.
func NewStore(backend Backend, c *cache.SessionCache, logger *slog.Logger) *Store {
	if c == nil {
		c = cache.NewSessionCache(cache.DefaultMaxEntries, cache.DefaultTTL)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, cache: c, logger: logger}
}

// Load returns the waypoints saved under key.
func (s *Store) Load(key string) []core.Waypoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(key)
}

func (s *Store) loadLocked(key string) []core.Waypoint {
	if list, ok := s.cache.Get(key); ok {
		return list
	}
	s.loads.Add(1)
	list, err := s.backend.Read(key)
	if err != nil {
		s.failures.Add(1)
		s.logger.Warn("Failed to read waypoints, treating as empty", "session", key, "error", err)
		return []core.Waypoint{}
	}
	if list == nil {
		list = []core.Waypoint{}
	}
	s.cache.Set(key, list)
	return list
}

// AppendOne adds w to the set saved under key. A saved waypoint with the
// same id is replaced. Reports whether the write reached the backend.
func (s *Store) AppendOne(key string, w core.Waypoint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.loadLocked(key)
	replaced := false
	for i := range list {
		if list[i].ID == w.ID {
			s.logger.Warn("Waypoint already saved, replacing", "session", key, "id", w.ID, "name", w.Name)
			list[i] = w.Clone()
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, w.Clone())
	}
	return s.writeLocked(key, list)
}

// SaveAll overwrites the set saved under key.
func (s *Store) SaveAll(key string, list []core.Waypoint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(key, core.CloneAll(list))
}

func (s *Store) writeLocked(key string, list []core.Waypoint) bool {
	if err := s.backend.Write(key, list); err != nil {
		s.failures.Add(1)
		// Force the next load back to the backend so cache and storage agree.
		s.cache.Delete(key)
		s.logger.Error("Failed to save waypoints", "session", key, "count", len(list), "error", err)
		return false
	}
	s.writes.Add(1)
	s.cache.Set(key, list)
	s.logger.Debug("Saved waypoints", "session", key, "count", len(list))
	return true
}

// Invalidate drops the cached copy of key.
func (s *Store) Invalidate(key string) {
	s.cache.Delete(key)
}

// ClearAll drops every cached session.
func (s *Store) ClearAll() {
	s.cache.Reset()
}

// Stats returns cache and backend counters.
func (s *Store) Stats() Stats {
	return Stats{
		Stats:         s.cache.Stats(),
		BackendLoads:  s.loads.Load(),
		BackendWrites: s.writes.Load(),
		Failures:      s.failures.Load(),
	}
}

// Close closes the underlying backend.
func (s *Store) Close() error {
	s.ClearAll()
	return s.backend.Close()
}
