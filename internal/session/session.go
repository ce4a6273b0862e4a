// Package session derives session keys and tracks the facts the engine
// consumes from its host: the current session, the local player and
// whether a server connection is available.
package session

import (
	"strings"
	"sync"

	"github.com/caleywoods/wayfindr/pkg/core"
	"github.com/google/uuid"
)

// Session key prefixes.
const (
	PrefixSinglePlayer = "sp-"
	PrefixMultiplayer  = "mp-"
	PrefixServer       = "server-"
)

// SinglePlayerKey returns the key of a local save.
func SinglePlayerKey(saveName string) string {
	return PrefixSinglePlayer + strings.TrimSpace(saveName)
}

// MultiplayerKey returns the key of a remote server, as seen by a client.
func MultiplayerKey(serverAddress string) string {
	return PrefixMultiplayer + strings.TrimSpace(serverAddress)
}

// ServerKey returns the key under which a server stores its shared set.
func ServerKey(world string) string {
	return PrefixServer + strings.TrimSpace(world)
}

// IsMultiplayer reports whether key belongs to a remote server session.
func IsMultiplayer(key string) bool {
	return strings.HasPrefix(key, PrefixMultiplayer)
}

// Lifecycle receives host events. Implementations must tolerate calls in
// any order; OnTick is called frequently and must not block.
type Lifecycle interface {
	OnJoin(key string)
	OnDisconnect()
	OnTick(pos core.Position)
}

// Context holds the current session facts.
type Context struct {
	mu        sync.RWMutex
	key       string
	player    uuid.UUID
	connected bool
}

// NewContext creates a Context for the given local player with no session.
func NewContext(player uuid.UUID) *Context {
	return &Context{player: player}
}

// Key returns the current session key, or "" before the first join.
func (c *Context) Key() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.key
}

// SetKey records the current session key.
func (c *Context) SetKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = key
}

// Player returns the local player id.
func (c *Context) Player() uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.player
}

// Connected reports whether a server connection is available.
func (c *Context) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SetConnected records connection availability.
func (c *Context) SetConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = connected
}
