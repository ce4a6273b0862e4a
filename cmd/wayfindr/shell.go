package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/caleywoods/wayfindr/internal/api"
	"github.com/caleywoods/wayfindr/internal/command"
	"github.com/caleywoods/wayfindr/internal/dispatcher"
	"github.com/caleywoods/wayfindr/internal/registry"
	"github.com/caleywoods/wayfindr/internal/session"
	"github.com/caleywoods/wayfindr/internal/util"
	"github.com/caleywoods/wayfindr/pkg/core"
)

const help = `player:  pos <x> <y> <z> [yaw] | look [<x> <y> <z>] | dim <name> | where
server:  remote | status
waypoints: add, addhere, quick, delete, rename, color, toggle, share, nav, clearnav, list
quit`

// shell stands in for the game: it holds the player's position and feeds
// typed lines to the command layer.
type shell struct {
	mu     sync.Mutex
	pos    core.Position
	yaw    float64
	target *core.Position
	dim    string

	d         *dispatcher.Dispatcher
	reg       *registry.Registry
	lifecycle session.Lifecycle
	remote    *api.Client
	out       io.Writer
}

func newShell(d *dispatcher.Dispatcher, reg *registry.Registry, lc session.Lifecycle, remote *api.Client, out io.Writer) *shell {
	return &shell{
		dim:       core.DefaultDimension,
		d:         d,
		reg:       reg,
		lifecycle: lc,
		remote:    remote,
		out:       out,
	}
}

func (s *shell) position() core.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

func (s *shell) heading() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.yaw
}

func (s *shell) lookAt() (core.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.target == nil {
		return core.Position{}, false
	}
	return *s.target, true
}

func (s *shell) dimension() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dim
}

// run reads lines until quit or EOF.
func (s *shell) run(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if !s.exec(scanner.Text()) {
			return nil
		}
	}
	return scanner.Err()
}

// exec runs one line and reports whether the shell should keep going.
func (s *shell) exec(line string) bool {
	args := util.SplitArgs(line)
	if len(args) == 0 {
		return true
	}
	switch strings.ToLower(args[0]) {
	case "quit", "exit":
		return false
	case "help":
		s.println(help)
	case "pos":
		s.setPosition(args[1:])
	case "look":
		s.setTarget(args[1:])
	case "dim":
		if len(args) != 2 {
			s.println("usage: dim <name>")
			break
		}
		s.mu.Lock()
		s.dim = args[1]
		s.mu.Unlock()
	case "where":
		s.printf("%s in %s, yaw %.0f\n", formatPos(s.position()), s.dimension(), s.heading())
	case "remote":
		s.listRemote()
	case "status":
		s.serverStatus()
	default:
		out, err := command.Execute(s.d, line)
		if err != nil {
			s.println(err.Error())
			break
		}
		s.println(out)
	}
	return true
}

func (s *shell) setPosition(args []string) {
	if len(args) != 3 && len(args) != 4 {
		s.println("usage: pos <x> <y> <z> [yaw]")
		return
	}
	nums, err := parseFloats(args)
	if err != nil {
		s.println(err.Error())
		return
	}
	pos := core.Position{X: nums[0], Y: nums[1], Z: nums[2]}
	s.mu.Lock()
	s.pos = pos
	if len(nums) == 4 {
		s.yaw = nums[3]
	}
	s.mu.Unlock()

	if nav, ok := s.reg.Navigation(pos, s.heading()); ok {
		if nav.Arrived {
			s.printf("Arrived at '%s'\n", nav.Target.Name)
		} else {
			s.printf("'%s': %.1f blocks, bearing %.0f°\n", nav.Target.Name, nav.Distance, nav.Bearing)
		}
	}
	// clears the navigation target once inside the deadzone
	s.lifecycle.OnTick(pos)
}

func (s *shell) setTarget(args []string) {
	if len(args) == 0 {
		s.mu.Lock()
		s.target = nil
		s.mu.Unlock()
		return
	}
	if len(args) != 3 {
		s.println("usage: look [<x> <y> <z>]")
		return
	}
	nums, err := parseFloats(args)
	if err != nil {
		s.println(err.Error())
		return
	}
	s.mu.Lock()
	s.target = &core.Position{X: nums[0], Y: nums[1], Z: nums[2]}
	s.mu.Unlock()
}

func (s *shell) listRemote() {
	if s.remote == nil {
		s.println("not connected to a server")
		return
	}
	list, err := s.remote.SharedWaypoints()
	if err != nil {
		s.println(err.Error())
		return
	}
	if len(list) == 0 {
		s.println("No shared waypoints on the server")
		return
	}
	for _, w := range list {
		s.printf("%s %s %s\n", w.Name, formatPos(w.Position), w.Color.Hex())
	}
}

func (s *shell) serverStatus() {
	if s.remote == nil {
		s.println("not connected to a server")
		return
	}
	st, err := s.remote.Status()
	if err != nil {
		s.println(err.Error())
		return
	}
	s.printf("%s: %d players, %d shared waypoints, up %s\n", st.World, st.Peers, st.Shared, st.Uptime)
}

func (s *shell) println(msg string) {
	fmt.Fprintln(s.out, msg)
}

func (s *shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func formatPos(p core.Position) string {
	return fmt.Sprintf("%.0f, %.0f, %.0f", p.X, p.Y, p.Z)
}

func parseFloats(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("not a number: %s", a)
		}
		out[i] = v
	}
	return out, nil
}
