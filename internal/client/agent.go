// Package client is the player side of waypoint replication. It merges
// server deltas into the local registry and forwards local changes to
// shared waypoints.
package client

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/caleywoods/wayfindr/internal/dispatcher"
	"github.com/caleywoods/wayfindr/internal/registry"
	"github.com/caleywoods/wayfindr/internal/session"
	"github.com/caleywoods/wayfindr/internal/transport"
	"github.com/caleywoods/wayfindr/pkg/core"
	"github.com/caleywoods/wayfindr/pkg/streaming"
)

// Lane is the dispatcher lane inbound messages run on.
const Lane = "client"

const defaultQueueSize = 1024

var (
	ErrNotConnected = errors.New("not connected to a server")
	ErrNotFound     = errors.New("waypoint not found")
)

// Options configure an Agent.
type Options struct {
	QueueSize int
	Logger    *slog.Logger
}

// Agent implements session.Lifecycle.
type Agent struct {
	reg    *registry.Registry
	sess   *session.Context
	d      *dispatcher.Dispatcher
	logger *slog.Logger

	mu     sync.RWMutex
	sender transport.Sender
}

var _ session.Lifecycle = (*Agent)(nil)

// New registers the agent's inbound handlers on d.
func New(reg *registry.Registry, sess *session.Context, d *dispatcher.Dispatcher, opts Options) *Agent {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	a := &Agent{
		reg:    reg,
		sess:   sess,
		d:      d,
		logger: opts.Logger,
	}

	lane := []dispatcher.Option{dispatcher.Lane(Lane), dispatcher.Buffered(opts.QueueSize), dispatcher.Blocking()}
	d.Register(streaming.TypeSync, a.handleSync, lane...)
	d.Register(streaming.TypeAdd, a.handleAdd, lane...)
	d.Register(streaming.TypeUpdate, a.handleUpdate, lane...)
	d.Register(streaming.TypeDelete, a.handleDelete, lane...)
	d.Register(streaming.TypeReject, a.handleReject, lane...)
	return a
}

// Attach sets the connection used for outbound messages and marks the
// connection available. A nil sender detaches.
func (a *Agent) Attach(s transport.Sender) {
	a.mu.Lock()
	a.sender = s
	a.mu.Unlock()
	a.sess.SetConnected(s != nil)
}

// Receive queues one inbound envelope.
func (a *Agent) Receive(env streaming.Envelope) {
	if !a.d.HasHandler(env.Type) {
		a.logger.Warn("Dropping message of unknown type", "type", env.Type)
		return
	}
	if _, err := a.d.Dispatch(dispatcher.Event{Command: env.Type, Payload: env.Payload}); err != nil {
		a.logger.Warn("Dropping message", "type", env.Type, "error", err)
	}
}

// OnJoin reloads the registry for the new session.
func (a *Agent) OnJoin(key string) {
	a.sess.SetKey(key)
	a.reg.LoadForSession(key)
}

// OnDisconnect marks the connection unavailable. Local state is kept.
func (a *Agent) OnDisconnect() {
	a.Attach(nil)
}

// OnTick clears the navigation target once the player reaches it.
func (a *Agent) OnTick(pos core.Position) {
	if a.reg.IsWithinDeadzone(pos) {
		if w, ok := a.reg.NavigationTarget(); ok {
			a.logger.Info("Arrived at waypoint", "name", w.Name)
		}
		a.reg.ClearNavigationTarget()
	}
}

// ToggleShare flips the shared state of the named waypoint. Sharing sends
// an Add and is rolled back when the send fails. Unsharing sends a Delete
// and clears ownership locally even if the send fails. After the name is
// resolved every step addresses the waypoint by id.
func (a *Agent) ToggleShare(name string) (core.Waypoint, error) {
	w, ok := a.reg.GetByName(name)
	if !ok {
		return core.Waypoint{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if w.IsShared {
		err := a.send(streaming.EncodeDelete(w.ID))
		if err != nil {
			a.logger.Warn("Unshare not sent, clearing locally", "name", name, "error", err)
		}
		if cleared, ok := a.reg.SetSharedByID(w.ID, nil); ok {
			w = cleared
		}
		return w, err
	}

	player := a.sess.Player()
	shared, ok := a.reg.SetSharedByID(w.ID, &player)
	if !ok {
		return core.Waypoint{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	env, err := streaming.EncodeAdd(shared)
	if err == nil {
		err = a.send(env)
	}
	if err != nil {
		a.logger.Warn("Share not sent, rolling back", "name", name, "error", err)
		if undone, ok := a.reg.UnshareOwned(w.ID, player); ok {
			return undone, err
		}
		return w, err
	}
	return shared, nil
}

// Delete removes the named waypoint and, if it was shared, asks the server
// to delete it for everyone.
func (a *Agent) Delete(nameOrID string) bool {
	w, ok := a.reg.Take(nameOrID)
	if !ok {
		return false
	}
	if w.IsShared {
		if err := a.send(streaming.EncodeDelete(w.ID)); err != nil {
			a.logger.Warn("Shared delete not sent", "name", w.Name, "error", err)
		}
	}
	return true
}

// Rename renames the named waypoint, propagating the change if shared.
func (a *Agent) Rename(oldName, newName string) bool {
	return a.modify(oldName, func(w *core.Waypoint) { w.Name = newName })
}

// SetColor recolors the named waypoint, propagating the change if shared.
func (a *Agent) SetColor(name string, c core.Color) bool {
	return a.modify(name, func(w *core.Waypoint) { w.Color = c })
}

func (a *Agent) modify(name string, fn func(w *core.Waypoint)) bool {
	w, ok := a.reg.Modify(name, fn)
	if !ok {
		return false
	}
	if w.IsShared {
		env, err := streaming.EncodeUpdate(w)
		if err == nil {
			err = a.send(env)
		}
		if err != nil {
			a.logger.Warn("Shared update not sent", "name", w.Name, "error", err)
		}
	}
	return true
}

func (a *Agent) send(env streaming.Envelope) error {
	a.mu.RLock()
	s := a.sender
	a.mu.RUnlock()

	if s == nil || !a.sess.Connected() {
		return ErrNotConnected
	}
	return s.Send(env)
}
