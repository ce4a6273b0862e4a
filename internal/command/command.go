// Package command implements the text commands players use to manage
// waypoints. Commands are dispatcher handlers so they run through the same
// logging and metrics as protocol messages.
package command

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/caleywoods/wayfindr/internal/dispatcher"
	"github.com/caleywoods/wayfindr/internal/registry"
	"github.com/caleywoods/wayfindr/internal/util"
	"github.com/caleywoods/wayfindr/pkg/core"
)

const prefix = "cmd:"

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUsage          = errors.New("usage")
	ErrNoTarget       = errors.New("no target position")
	ErrNotFound       = errors.New("no waypoint found")
	ErrNoSharing      = errors.New("sharing needs a server connection")
)

// Editor applies edits that may have to reach the server. *client.Agent
// implements it.
type Editor interface {
	ToggleShare(name string) (core.Waypoint, error)
	Delete(nameOrID string) bool
	Rename(oldName, newName string) bool
	SetColor(name string, c core.Color) bool
}

// Dependencies holds what the commands read and change.
type Dependencies struct {
	Registry *registry.Registry
	// Editor is nil in single-player; edits then go to the Registry only.
	Editor Editor
	// Position is the player's position.
	Position func() core.Position
	// Target is the block the player looks at, if any.
	Target func() (core.Position, bool)
	// Dimension is the player's current dimension.
	Dimension func() string
	// Yaw is the player's heading in degrees.
	Yaw  func() float64
	Rand *rand.Rand
}

// Service provides the command handlers.
type Service struct {
	deps   Dependencies
	editor Editor
}

// NewService creates a command service.
func NewService(deps Dependencies) *Service {
	s := &Service{deps: deps, editor: deps.Editor}
	if s.editor == nil {
		s.editor = localEditor{deps.Registry}
	}
	if s.deps.Position == nil {
		s.deps.Position = func() core.Position { return core.Position{} }
	}
	if s.deps.Target == nil {
		s.deps.Target = func() (core.Position, bool) { return core.Position{}, false }
	}
	if s.deps.Dimension == nil {
		s.deps.Dimension = func() string { return core.DefaultDimension }
	}
	if s.deps.Yaw == nil {
		s.deps.Yaw = func() float64 { return 0 }
	}
	return s
}

// Register adds every command to d.
func (s *Service) Register(d *dispatcher.Dispatcher) {
	d.Register(prefix+"add", s.add)
	d.Register(prefix+"addhere", s.addHere)
	d.Register(prefix+"quick", s.quick)
	d.Register(prefix+"delete", s.delete)
	d.Register(prefix+"rename", s.rename)
	d.Register(prefix+"color", s.color)
	d.Register(prefix+"toggle", s.toggle)
	d.Register(prefix+"share", s.share)
	d.Register(prefix+"nav", s.nav)
	d.Register(prefix+"clearnav", s.clearNav)
	d.Register(prefix+"list", s.list)
}

// Execute parses one command line and runs it through d.
func Execute(d *dispatcher.Dispatcher, line string) (string, error) {
	args := util.SplitArgs(line)
	if len(args) == 0 {
		return "", fmt.Errorf("%w: empty command", ErrUsage)
	}
	name := strings.ToLower(args[0])
	if !d.HasHandler(prefix + name) {
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}

	result, err := d.Dispatch(dispatcher.Event{Command: prefix + name, Args: args[1:]})
	if err != nil {
		return "", err
	}
	out, _ := result.(string)
	return out, nil
}

func (s *Service) add(e dispatcher.Event) (any, error) {
	pos, ok := s.deps.Target()
	if !ok {
		return nil, ErrNoTarget
	}
	return s.addAt(e.Args, "add <name> [color]", pos, "at crosshair target")
}

func (s *Service) addHere(e dispatcher.Event) (any, error) {
	return s.addAt(e.Args, "addhere <name> [color]", s.deps.Position(), "at your location")
}

func (s *Service) addAt(args []string, usage string, pos core.Position, mode string) (any, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, fmt.Errorf("%w: %s", ErrUsage, usage)
	}
	color := core.DefaultColor
	if len(args) == 2 {
		var err error
		if color, err = core.ParseColor(args[1]); err != nil {
			return nil, err
		}
	}

	w := s.deps.Registry.Add(args[0], pos, color, s.deps.Dimension(), true)
	return fmt.Sprintf("Added waypoint '%s' %s at %s", w.Name, mode, blockPos(w.Position)), nil
}

// quick adds a waypoint at the player with a generated name and a random
// bright color.
func (s *Service) quick(e dispatcher.Event) (any, error) {
	name := fmt.Sprintf("Quick Waypoint %d", s.deps.Registry.Len()+1)
	color := core.RandomBrightColor(s.deps.Rand)
	w := s.deps.Registry.Add(name, s.deps.Position(), color, s.deps.Dimension(), true)
	return fmt.Sprintf("Added waypoint '%s' at %s", w.Name, blockPos(w.Position)), nil
}

func (s *Service) delete(e dispatcher.Event) (any, error) {
	if len(e.Args) != 1 {
		return nil, fmt.Errorf("%w: delete <name>", ErrUsage)
	}
	if !s.editor.Delete(e.Args[0]) {
		return nil, fmt.Errorf("%w with name '%s'", ErrNotFound, e.Args[0])
	}
	return fmt.Sprintf("Removed waypoint '%s'", e.Args[0]), nil
}

func (s *Service) rename(e dispatcher.Event) (any, error) {
	if len(e.Args) != 2 {
		return nil, fmt.Errorf("%w: rename <old> <new>", ErrUsage)
	}
	if !s.editor.Rename(e.Args[0], e.Args[1]) {
		return nil, fmt.Errorf("%w with name '%s'", ErrNotFound, e.Args[0])
	}
	return fmt.Sprintf("Renamed waypoint '%s' to '%s'", e.Args[0], e.Args[1]), nil
}

func (s *Service) color(e dispatcher.Event) (any, error) {
	if len(e.Args) != 2 {
		return nil, fmt.Errorf("%w: color <name> <color>", ErrUsage)
	}
	c, err := core.ParseColor(e.Args[1])
	if err != nil {
		return nil, err
	}
	if !s.editor.SetColor(e.Args[0], c) {
		return nil, fmt.Errorf("%w with name '%s'", ErrNotFound, e.Args[0])
	}
	return fmt.Sprintf("Set color of '%s' to %s", e.Args[0], c.Hex()), nil
}

func (s *Service) toggle(e dispatcher.Event) (any, error) {
	if len(e.Args) != 1 {
		return nil, fmt.Errorf("%w: toggle <name>", ErrUsage)
	}
	if !s.deps.Registry.ToggleVisible(e.Args[0]) {
		return nil, fmt.Errorf("%w with name '%s'", ErrNotFound, e.Args[0])
	}
	w, _ := s.deps.Registry.GetByName(e.Args[0])
	if w.Visible {
		return fmt.Sprintf("Waypoint '%s' is now visible", w.Name), nil
	}
	return fmt.Sprintf("Waypoint '%s' is now hidden", w.Name), nil
}

func (s *Service) share(e dispatcher.Event) (any, error) {
	if len(e.Args) != 1 {
		return nil, fmt.Errorf("%w: share <name>", ErrUsage)
	}
	before, ok := s.deps.Registry.GetByName(e.Args[0])
	if !ok {
		return nil, fmt.Errorf("%w with name '%s'", ErrNotFound, e.Args[0])
	}

	w, err := s.editor.ToggleShare(e.Args[0])
	if !before.IsShared {
		if err != nil {
			return nil, err
		}
		return fmt.Sprintf("Waypoint '%s' is now shared", w.Name), nil
	}
	// Unsharing always applies locally.
	if err != nil {
		return fmt.Sprintf("Waypoint '%s' is no longer shared (server not notified: %v)", w.Name, err), nil
	}
	return fmt.Sprintf("Waypoint '%s' is no longer shared", w.Name), nil
}

func (s *Service) nav(e dispatcher.Event) (any, error) {
	reg := s.deps.Registry
	if len(e.Args) == 0 {
		n, ok := reg.Navigation(s.deps.Position(), s.deps.Yaw())
		if !ok {
			return "No navigation target", nil
		}
		return fmt.Sprintf("Navigating to '%s': %.1f blocks, bearing %.0f°", n.Target.Name, n.Distance, n.Bearing), nil
	}
	if len(e.Args) != 1 {
		return nil, fmt.Errorf("%w: nav [name]", ErrUsage)
	}
	if !reg.SetNavigationTarget(e.Args[0]) {
		return nil, fmt.Errorf("%w with name '%s'", ErrNotFound, e.Args[0])
	}
	return fmt.Sprintf("Navigating to '%s'", e.Args[0]), nil
}

func (s *Service) clearNav(e dispatcher.Event) (any, error) {
	s.deps.Registry.ClearNavigationTarget()
	return "Navigation cleared", nil
}

func (s *Service) list(e dispatcher.Event) (any, error) {
	all := s.deps.Registry.All()
	if len(all) == 0 {
		return "No waypoints", nil
	}
	from := s.deps.Position()

	var b strings.Builder
	for i, w := range all {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s %s %s %.0fm", w.Name, blockPos(w.Position), w.Color.Hex(), from.DistanceTo(w.Position))
		if w.Dimension != core.DefaultDimension {
			fmt.Fprintf(&b, " [%s]", w.Dimension)
		}
		if w.IsShared {
			b.WriteString(" [shared]")
		}
		if !w.Visible {
			b.WriteString(" [hidden]")
		}
		if s.deps.Registry.IsNavigationTarget(w.Name) {
			b.WriteString(" [target]")
		}
	}
	return b.String(), nil
}

func blockPos(p core.Position) string {
	return fmt.Sprintf("%d, %d, %d", int(p.X), int(p.Y), int(p.Z))
}

// localEditor applies edits to the registry alone.
type localEditor struct {
	reg *registry.Registry
}

func (l localEditor) ToggleShare(name string) (core.Waypoint, error) {
	return core.Waypoint{}, ErrNoSharing
}

func (l localEditor) Delete(nameOrID string) bool { return l.reg.Remove(nameOrID) }

func (l localEditor) Rename(oldName, newName string) bool { return l.reg.Rename(oldName, newName) }

func (l localEditor) SetColor(name string, c core.Color) bool { return l.reg.SetColor(name, c) }
