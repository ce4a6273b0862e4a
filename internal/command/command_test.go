package command

import (
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/caleywoods/wayfindr/internal/cache"
	"github.com/caleywoods/wayfindr/internal/dispatcher"
	"github.com/caleywoods/wayfindr/internal/registry"
	"github.com/caleywoods/wayfindr/internal/storage"
	"github.com/caleywoods/wayfindr/internal/storage/memory"
	"github.com/caleywoods/wayfindr/pkg/core"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// fakeEditor records calls and shares by flipping the flag locally.
type fakeEditor struct {
	reg      *registry.Registry
	shareErr error
	calls    []string
}

func (f *fakeEditor) ToggleShare(name string) (core.Waypoint, error) {
	f.calls = append(f.calls, "share "+name)
	w, _ := f.reg.GetByName(name)
	if w.IsShared {
		w, _ = f.reg.SetShared(name, nil)
		return w, f.shareErr
	}
	if f.shareErr != nil {
		return w, f.shareErr
	}
	owner := uuid.New()
	w, ok := f.reg.SetShared(name, &owner)
	if !ok {
		return w, errors.New("not found: " + name)
	}
	return w, nil
}

func (f *fakeEditor) Delete(nameOrID string) bool {
	f.calls = append(f.calls, "delete "+nameOrID)
	return f.reg.Remove(nameOrID)
}

func (f *fakeEditor) Rename(oldName, newName string) bool {
	f.calls = append(f.calls, "rename "+oldName)
	return f.reg.Rename(oldName, newName)
}

func (f *fakeEditor) SetColor(name string, c core.Color) bool {
	f.calls = append(f.calls, "color "+name)
	return f.reg.SetColor(name, c)
}

type fixture struct {
	d      *dispatcher.Dispatcher
	reg    *registry.Registry
	pos    core.Position
	target *core.Position
	yaw    float64
	editor *fakeEditor
}

func setup(t *testing.T, withEditor bool) *fixture {
	t.Helper()
	store := storage.NewStore(memory.New(), cache.NewSessionCache(4, time.Minute), discard)
	reg := registry.New(store, registry.Options{Logger: discard})
	reg.LoadForSession("sp-test")

	d, err := dispatcher.New(nopLogger{})
	require.NoError(t, err)
	t.Cleanup(d.Close)

	f := &fixture{d: d, reg: reg, pos: core.Position{X: 10.7, Y: 64, Z: -3.2}}
	deps := Dependencies{
		Registry: reg,
		Position: func() core.Position { return f.pos },
		Target: func() (core.Position, bool) {
			if f.target == nil {
				return core.Position{}, false
			}
			return *f.target, true
		},
		Yaw:  func() float64 { return f.yaw },
		Rand: rand.New(rand.NewPCG(1, 2)),
	}
	if withEditor {
		f.editor = &fakeEditor{reg: reg}
		deps.Editor = f.editor
	}
	NewService(deps).Register(d)
	return f
}

func (f *fixture) run(t *testing.T, line string) string {
	t.Helper()
	out, err := Execute(f.d, line)
	require.NoError(t, err, line)
	return out
}

func TestAddHere(t *testing.T) {
	f := setup(t, false)

	out := f.run(t, `addhere "Home Base" blue`)
	assert.Equal(t, "Added waypoint 'Home Base' at your location at 10, 64, -3", out)

	w, ok := f.reg.GetByName("Home Base")
	require.True(t, ok)
	assert.Equal(t, f.pos, w.Position)
	assert.Equal(t, core.Color(0x0000FF), w.Color)
	assert.Equal(t, core.DefaultDimension, w.Dimension)
	assert.True(t, w.Visible)
}

func TestAdd_UsesTarget(t *testing.T) {
	f := setup(t, false)

	_, err := Execute(f.d, "add Tower")
	assert.ErrorIs(t, err, ErrNoTarget)

	f.target = &core.Position{X: 1, Y: 2, Z: 3}
	out := f.run(t, "add Tower #00ff00")
	assert.Equal(t, "Added waypoint 'Tower' at crosshair target at 1, 2, 3", out)

	w, _ := f.reg.GetByName("Tower")
	assert.Equal(t, core.Color(0x00FF00), w.Color)
}

func TestAdd_DefaultsToRed(t *testing.T) {
	f := setup(t, false)
	f.run(t, "addhere Plain")
	w, _ := f.reg.GetByName("Plain")
	assert.Equal(t, core.DefaultColor, w.Color)
}

func TestQuick(t *testing.T) {
	f := setup(t, false)
	f.run(t, "addhere First")

	out := f.run(t, "quick")
	assert.Contains(t, out, "Quick Waypoint 2")

	w, ok := f.reg.GetByName("Quick Waypoint 2")
	require.True(t, ok)
	r, g, b := w.Color.RGB()
	for _, c := range []uint8{r, g, b} {
		assert.GreaterOrEqual(t, c, uint8(100))
	}
}

func TestEdits_LocalOnly(t *testing.T) {
	f := setup(t, false)
	f.run(t, "addhere Base")

	assert.Equal(t, "Renamed waypoint 'Base' to 'Camp'", f.run(t, "rename Base Camp"))
	assert.Equal(t, "Set color of 'Camp' to #FFA500", f.run(t, "color Camp orange"))
	assert.Equal(t, "Waypoint 'Camp' is now hidden", f.run(t, "toggle Camp"))
	assert.Equal(t, "Waypoint 'Camp' is now visible", f.run(t, "toggle Camp"))

	_, err := Execute(f.d, "share Camp")
	assert.ErrorIs(t, err, ErrNoSharing)

	assert.Equal(t, "Removed waypoint 'Camp'", f.run(t, "delete Camp"))
	_, err = Execute(f.d, "delete Camp")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "no waypoint found with name 'Camp'")
}

func TestEdits_GoThroughEditor(t *testing.T) {
	f := setup(t, true)
	f.run(t, "addhere Base")

	f.run(t, "rename Base Camp")
	f.run(t, "color Camp green")
	assert.Equal(t, "Waypoint 'Camp' is now shared", f.run(t, "share Camp"))
	assert.Equal(t, "Waypoint 'Camp' is no longer shared", f.run(t, "share Camp"))
	f.run(t, "delete Camp")

	assert.Equal(t, []string{"rename Base", "color Camp", "share Camp", "share Camp", "delete Camp"}, f.editor.calls)
}

func TestShare_Failures(t *testing.T) {
	f := setup(t, true)
	f.run(t, "addhere Base")
	sendErr := errors.New("offline")
	f.editor.shareErr = sendErr

	_, err := Execute(f.d, "share Base")
	assert.ErrorIs(t, err, sendErr)

	_, err = Execute(f.d, "share Nope")
	assert.ErrorIs(t, err, ErrNotFound)

	f.editor.shareErr = nil
	f.run(t, "share Base")
	f.editor.shareErr = sendErr
	out := f.run(t, "share Base")
	assert.Contains(t, out, "no longer shared (server not notified")
}

func TestNavigation(t *testing.T) {
	f := setup(t, false)
	f.pos = core.Position{X: 0, Y: 64, Z: 0}
	f.run(t, "addhere Origin")
	f.pos = core.Position{X: -100, Y: 64, Z: 0}

	assert.Equal(t, "No navigation target", f.run(t, "nav"))
	assert.Equal(t, "Navigating to 'Origin'", f.run(t, "nav Origin"))
	assert.Equal(t, "Navigating to 'Origin': 100.0 blocks, bearing 90°", f.run(t, "nav"))

	f.yaw = 90
	assert.Equal(t, "Navigating to 'Origin': 100.0 blocks, bearing 0°", f.run(t, "nav"))

	assert.Equal(t, "Navigation cleared", f.run(t, "clearnav"))
	assert.False(t, f.reg.IsNavigationTarget("Origin"))

	_, err := Execute(f.d, "nav Nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	f := setup(t, false)
	assert.Equal(t, "No waypoints", f.run(t, "list"))

	f.pos = core.Position{}
	f.run(t, "addhere A red")
	f.pos = core.Position{X: 30, Y: 0, Z: 40}
	f.run(t, "addhere B")
	f.run(t, "toggle B")
	f.run(t, "nav A")

	out := f.run(t, "list")
	assert.Equal(t, "A 0, 0, 0 #FF0000 50m [target]\nB 30, 0, 40 #FF0000 0m [hidden]", out)
}

func TestExecute_Errors(t *testing.T) {
	f := setup(t, false)

	_, err := Execute(f.d, "   ")
	assert.ErrorIs(t, err, ErrUsage)

	_, err = Execute(f.d, "teleport home")
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = Execute(f.d, "waypoint_add {}")
	assert.ErrorIs(t, err, ErrUnknownCommand, "protocol handlers are not reachable as commands")

	_, err = Execute(f.d, "rename OnlyOne")
	assert.ErrorIs(t, err, ErrUsage)

	f.run(t, "addhere Base")
	_, err = Execute(f.d, "color Base mauve")
	assert.ErrorIs(t, err, core.ErrInvalidColor)
}

func TestExecute_CaseInsensitiveName(t *testing.T) {
	f := setup(t, false)
	assert.Contains(t, f.run(t, "ADDHERE Loud"), "Loud")
}
