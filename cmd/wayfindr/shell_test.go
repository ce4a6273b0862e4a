package main

import (
	"bytes"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/caleywoods/wayfindr/internal/api"
	"github.com/caleywoods/wayfindr/internal/cache"
	"github.com/caleywoods/wayfindr/internal/command"
	"github.com/caleywoods/wayfindr/internal/dispatcher"
	"github.com/caleywoods/wayfindr/internal/registry"
	"github.com/caleywoods/wayfindr/internal/storage"
	"github.com/caleywoods/wayfindr/internal/storage/memory"
	"github.com/caleywoods/wayfindr/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type tickRecorder struct {
	reg   *registry.Registry
	ticks []core.Position
}

func (r *tickRecorder) OnJoin(string) {}
func (r *tickRecorder) OnDisconnect() {}
func (r *tickRecorder) OnTick(pos core.Position) {
	r.ticks = append(r.ticks, pos)
	if r.reg.IsWithinDeadzone(pos) {
		r.reg.ClearNavigationTarget()
	}
}

type staticSnapshot []core.Waypoint

func (s staticSnapshot) Snapshot() []core.Waypoint { return s }

func newTestShell(t *testing.T, remote *api.Client) (*shell, *registry.Registry, *tickRecorder, *bytes.Buffer) {
	t.Helper()
	store := storage.NewStore(memory.New(), cache.NewSessionCache(4, time.Minute), discard)
	reg := registry.New(store, registry.Options{Logger: discard})
	reg.LoadForSession("sp-test")

	d, err := dispatcher.New(nopLogger{})
	require.NoError(t, err)
	t.Cleanup(d.Close)

	ticks := &tickRecorder{reg: reg}
	out := new(bytes.Buffer)
	sh := newShell(d, reg, ticks, remote, out)
	command.NewService(command.Dependencies{
		Registry:  reg,
		Position:  sh.position,
		Target:    sh.lookAt,
		Dimension: sh.dimension,
		Yaw:       sh.heading,
	}).Register(d)
	return sh, reg, ticks, out
}

func TestShell_PlayerState(t *testing.T) {
	sh, _, ticks, out := newTestShell(t, nil)

	require.NoError(t, sh.run(strings.NewReader("pos 10 64 -5 90\ndim minecraft:the_nether\nlook 1 2 3\nwhere\n")))

	assert.Equal(t, core.Position{X: 10, Y: 64, Z: -5}, sh.position())
	assert.Equal(t, 90.0, sh.heading())
	assert.Equal(t, "minecraft:the_nether", sh.dimension())
	target, ok := sh.lookAt()
	require.True(t, ok)
	assert.Equal(t, core.Position{X: 1, Y: 2, Z: 3}, target)
	assert.Equal(t, []core.Position{{X: 10, Y: 64, Z: -5}}, ticks.ticks)
	assert.Contains(t, out.String(), "10, 64, -5 in minecraft:the_nether, yaw 90")

	sh.exec("look")
	_, ok = sh.lookAt()
	assert.False(t, ok)
}

func TestShell_BadInput(t *testing.T) {
	sh, _, ticks, out := newTestShell(t, nil)

	sh.exec("pos 1 2")
	sh.exec("pos a b c")
	sh.exec("look 1")
	sh.exec("dim")

	assert.Empty(t, ticks.ticks)
	assert.Contains(t, out.String(), "usage: pos")
	assert.Contains(t, out.String(), "not a number: a")
	assert.Contains(t, out.String(), "usage: look")
	assert.Contains(t, out.String(), "usage: dim")
}

func TestShell_RunsCommands(t *testing.T) {
	sh, reg, _, out := newTestShell(t, nil)

	sh.exec("pos 5 70 5")
	sh.exec(`addhere "Home Base" blue`)
	sh.exec("share \"Home Base\"")
	sh.exec("bogus")

	w, ok := reg.GetByName("Home Base")
	require.True(t, ok)
	assert.Equal(t, core.Position{X: 5, Y: 70, Z: 5}, w.Position)
	assert.False(t, w.IsShared)
	assert.Contains(t, out.String(), "Added waypoint 'Home Base'")
	assert.Contains(t, out.String(), command.ErrNoSharing.Error())
	assert.Contains(t, out.String(), "unknown command: bogus")
}

func TestShell_NavigationArrives(t *testing.T) {
	sh, reg, _, out := newTestShell(t, nil)
	w := reg.Add("Tower", core.Position{X: 100, Y: 64, Z: 0}, core.DefaultColor, "", true)
	require.True(t, reg.SetNavigationTarget(w.Name))

	sh.exec("pos 0 64 0")
	assert.Contains(t, out.String(), "'Tower': 100.0 blocks")
	assert.True(t, reg.IsNavigationTarget(w.Name))

	sh.exec("pos 99 64 0")
	assert.Contains(t, out.String(), "Arrived at 'Tower'")
	assert.False(t, reg.IsNavigationTarget(w.Name))
}

func TestShell_Quit(t *testing.T) {
	sh, reg, _, _ := newTestShell(t, nil)

	require.NoError(t, sh.run(strings.NewReader("quick\nquit\nquick\n")))
	assert.Equal(t, 1, reg.Len())
}

func TestShell_Remote(t *testing.T) {
	w := core.NewWaypoint("Spawn", core.Position{X: 0, Y: 70, Z: 0}, core.Color(0x00FF00), "", true)
	w.IsShared = true
	srv := httptest.NewServer(api.NewRouter(api.Routes{Waypoints: staticSnapshot{w}}))
	defer srv.Close()

	sh, _, _, out := newTestShell(t, api.New(srv.URL))
	sh.exec("remote")
	sh.exec("status")

	assert.Contains(t, out.String(), "Spawn 0, 70, 0 #00FF00")
	assert.Contains(t, out.String(), "404")
}

func TestShell_Offline(t *testing.T) {
	sh, _, _, out := newTestShell(t, nil)
	sh.exec("remote")
	sh.exec("status")
	assert.Equal(t, 2, strings.Count(out.String(), "not connected to a server"))
}
