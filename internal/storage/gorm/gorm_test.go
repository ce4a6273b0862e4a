package gormstorage

import (
	"testing"

	"github.com/caleywoods/wayfindr/internal/database"
	"github.com/caleywoods/wayfindr/internal/model"
	"github.com/caleywoods/wayfindr/pkg/core"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	db, err := database.GetSqliteDB("")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	b := New(Dependencies{DB: db})
	require.NoError(t, b.Init())
	return b
}

func TestInitWithoutDB(t *testing.T) {
	b := New(Dependencies{})
	assert.Error(t, b.Init())
}

func TestReadUnknownSession(t *testing.T) {
	b := newTestBackend(t)
	list, err := b.Read("sp-none")
	require.NoError(t, err)
	assert.Nil(t, list)
}

func TestWriteThenReadKeepsOrder(t *testing.T) {
	b := newTestBackend(t)
	owner := uuid.New()
	shared := core.NewWaypoint("B", core.Position{X: 2, Y: 3, Z: 4}, 0x00FF00, "minecraft:the_nether", true)
	shared.IsShared = true
	shared.Owner = &owner
	list := []core.Waypoint{
		core.NewWaypoint("Z", core.Position{X: 1}, core.DefaultColor, "", false),
		shared,
		core.NewWaypoint("A", core.Position{Z: -1}, 0x0000FF, "", true),
	}

	require.NoError(t, b.Write("server-world", list))
	got, err := b.Read("server-world")
	require.NoError(t, err)
	assert.Equal(t, list, got)
}

func TestWriteReplacesSession(t *testing.T) {
	b := newTestBackend(t)
	first := core.NewWaypoint("first", core.Position{}, core.DefaultColor, "", true)
	second := core.NewWaypoint("second", core.Position{}, core.DefaultColor, "", true)
	other := core.NewWaypoint("other", core.Position{}, core.DefaultColor, "", true)

	require.NoError(t, b.Write("a", []core.Waypoint{first}))
	require.NoError(t, b.Write("b", []core.Waypoint{other}))
	require.NoError(t, b.Write("a", []core.Waypoint{second}))

	got, err := b.Read("a")
	require.NoError(t, err)
	assert.Equal(t, []core.Waypoint{second}, got)

	got, err = b.Read("b")
	require.NoError(t, err)
	assert.Equal(t, []core.Waypoint{other}, got)

	require.NoError(t, b.Write("a", nil))
	got, err = b.Read("a")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadSkipsBadRows(t *testing.T) {
	b := newTestBackend(t)
	good := core.NewWaypoint("good", core.Position{}, core.DefaultColor, "", true)
	require.NoError(t, b.Write("k", []core.Waypoint{good}))
	require.NoError(t, b.deps.DB.Create(&model.Waypoint{SessionKey: "k", ID: "not-a-uuid", Ord: 1}).Error)

	got, err := b.Read("k")
	require.NoError(t, err)
	assert.Equal(t, []core.Waypoint{good}, got)
}
