// internal/storage/memory/memory.go
package memory

import (
	"sort"
	"sync"

	"github.com/caleywoods/wayfindr/pkg/core"
)

// Backend keeps waypoint sets in process memory. Contents are lost on
// exit, which makes it suitable for tests and throwaway servers.
type Backend struct {
	sets map[string][]core.Waypoint
	mu   sync.RWMutex
}

// New creates a new memory backend
func New() *Backend {
	return &Backend{
		sets: make(map[string][]core.Waypoint),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sets = make(map[string][]core.Waypoint)
	return nil
}

// Read returns a copy of the set stored under key.
func (b *Backend) Read(key string) ([]core.Waypoint, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	list, ok := b.sets[key]
	if !ok {
		return nil, nil
	}
	return core.CloneAll(list), nil
}

// Write replaces the set stored under key.
func (b *Backend) Write(key string, list []core.Waypoint) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sets[key] = core.CloneAll(list)
	return nil
}

// Keys returns the stored session keys in sorted order.
func (b *Backend) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.sets))
	for k := range b.sets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
