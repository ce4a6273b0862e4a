// internal/storage/memory/memory_test.go
package memory

import (
	"testing"

	"github.com/caleywoods/wayfindr/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadUnknownKey(t *testing.T) {
	b := New()
	require.NoError(t, b.Init())

	list, err := b.Read("sp-nothing")
	require.NoError(t, err)
	assert.Nil(t, list)
}

func TestWriteThenRead(t *testing.T) {
	b := New()
	w := core.NewWaypoint("Spawn", core.Position{X: 1}, core.DefaultColor, "", true)

	require.NoError(t, b.Write("sp-a", []core.Waypoint{w}))
	require.NoError(t, b.Write("sp-b", nil))

	list, err := b.Read("sp-a")
	require.NoError(t, err)
	assert.Equal(t, []core.Waypoint{w}, list)

	list, err = b.Read("sp-b")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	assert.Equal(t, []string{"sp-a", "sp-b"}, b.Keys())
}

func TestReadReturnsCopy(t *testing.T) {
	b := New()
	w := core.NewWaypoint("Spawn", core.Position{}, core.DefaultColor, "", true)
	require.NoError(t, b.Write("k", []core.Waypoint{w}))

	list, _ := b.Read("k")
	list[0].Name = "changed"

	again, _ := b.Read("k")
	assert.Equal(t, "Spawn", again[0].Name)
}

func TestCloseDropsData(t *testing.T) {
	b := New()
	require.NoError(t, b.Write("k", []core.Waypoint{}))
	require.NoError(t, b.Close())
	assert.Empty(t, b.Keys())
}
