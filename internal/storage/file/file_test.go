// internal/storage/file/file_test.go
package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/caleywoods/wayfindr/pkg/core"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() []core.Waypoint {
	owner := uuid.New()
	shared := core.NewWaypoint("Portal", core.Position{X: 8.5, Y: 70, Z: -1200}, 0x800080, "minecraft:the_nether", true)
	shared.IsShared = true
	shared.Owner = &owner
	return []core.Waypoint{
		core.NewWaypoint("Home", core.Position{X: 1, Y: 2, Z: 3}, core.DefaultColor, "", false),
		shared,
	}
}

func newBackend(t *testing.T, format string, compress bool) *Backend {
	t.Helper()
	b := New(Config{DataDir: filepath.Join(t.TempDir(), "waypoints"), Format: format, Compress: compress})
	require.NoError(t, b.Init())
	return b
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		format   string
		compress bool
	}{
		{"json", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"json zstd", FormatJSON, true},
		{"yaml zstd", FormatYAML, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend(t, tt.format, tt.compress)
			list := sample()

			require.NoError(t, b.Write("mp-example.org:25565", list))
			got, err := b.Read("mp-example.org:25565")
			require.NoError(t, err)
			assert.Equal(t, list, got)
		})
	}
}

func TestPathSanitizesKey(t *testing.T) {
	b := New(Config{DataDir: "/data", Format: FormatJSON})
	assert.Equal(t, filepath.Join("/data", "mp-example.org_3a25565.json"), b.Path("mp-example.org:25565"))

	b = New(Config{DataDir: "/data", Format: FormatYAML, Compress: true})
	assert.Equal(t, filepath.Join("/data", "sp-My_20World.yaml.zst"), b.Path("sp-My World"))
	assert.NotEqual(t, b.Path("sp-My World"), b.Path("sp-My_World"))
}

func TestSimilarKeysDoNotShareAFile(t *testing.T) {
	b := newBackend(t, FormatJSON, false)
	only := core.NewWaypoint("OnlyInA", core.Position{}, core.DefaultColor, "", true)
	require.NoError(t, b.Write("sp-My World", []core.Waypoint{only}))

	got, err := b.Read("sp-My_World")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = b.Read("sp-My World")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestReadMissingOrEmpty(t *testing.T) {
	b := newBackend(t, FormatJSON, false)

	list, err := b.Read("sp-missing")
	require.NoError(t, err)
	assert.Nil(t, list)

	require.NoError(t, os.WriteFile(b.Path("sp-empty"), nil, 0o644))
	list, err = b.Read("sp-empty")
	require.NoError(t, err)
	assert.Nil(t, list)
}

func TestReadCorrupt(t *testing.T) {
	b := newBackend(t, FormatJSON, false)
	require.NoError(t, os.WriteFile(b.Path("sp-bad"), []byte("{not a list"), 0o644))

	_, err := b.Read("sp-bad")
	assert.Error(t, err)
}

func TestWriteIsIdempotent(t *testing.T) {
	b := newBackend(t, FormatJSON, false)
	list := sample()

	require.NoError(t, b.Write("k", list))
	first, err := os.ReadFile(b.Path("k"))
	require.NoError(t, err)

	reloaded, err := b.Read("k")
	require.NoError(t, err)
	require.NoError(t, b.Write("k", reloaded))
	second, err := os.ReadFile(b.Path("k"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestWriteEmptyList(t *testing.T) {
	b := newBackend(t, FormatJSON, false)
	require.NoError(t, b.Write("k", nil))

	data, err := os.ReadFile(b.Path("k"))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	b := newBackend(t, FormatYAML, true)
	require.NoError(t, b.Write("a", sample()))
	require.NoError(t, b.Write("a", sample()))

	entries, err := os.ReadDir(b.cfg.DataDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.yaml.zst", entries[0].Name())
}

func TestLegacyFileDefaultsDimension(t *testing.T) {
	b := newBackend(t, FormatJSON, false)
	id := uuid.New()
	legacy := `[{"id":"` + id.String() + `","name":"Old","position":{"x":0,"y":64,"z":0},"color":16711680,"visible":true,"isShared":false}]`
	require.NoError(t, os.WriteFile(b.Path("sp-old"), []byte(legacy), 0o644))

	list, err := b.Read("sp-old")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, core.DefaultDimension, list[0].Dimension)
	assert.Equal(t, id, list[0].ID)
}

func TestInitRejectsUnknownFormat(t *testing.T) {
	b := New(Config{DataDir: t.TempDir(), Format: "toml"})
	assert.Error(t, b.Init())
}
