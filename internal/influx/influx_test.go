package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/caleywoods/wayfindr/internal/config"
	"github.com/caleywoods/wayfindr/internal/hub"
	"github.com/google/uuid"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWriter struct {
	mu     sync.Mutex
	points []*influxdb2_write.Point
	fail   bool
}

func (w *memWriter) WritePoint(p *influxdb2_write.Point) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return errors.New("write failed")
	}
	w.points = append(w.points, p)
	return nil
}

func (w *memWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.points)
}

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(zerolog.Nop(), filepath.Join(t.TempDir(), "backup.gz"))
	err := m.Connect(config.InfluxConfig{Enabled: false})
	assert.Error(t, err)
	assert.False(t, m.IsValid)
}

func TestConnect_UnreachableUsesBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "influx_backup.log.gz")
	m := NewManager(zerolog.Nop(), path)

	err := m.Connect(config.InfluxConfig{
		Enabled:  true,
		Protocol: "http",
		Host:     "127.0.0.1",
		Port:     "1",
		Bucket:   "replication",
	})
	require.NoError(t, err)
	assert.False(t, m.IsValid)
	require.NotNil(t, m.BackupWriter)

	o := hub.Outcome{Type: "waypoint_add", Player: uuid.New(), ID: uuid.New(), Applied: true, Time: time.Unix(1700000000, 0)}
	require.NoError(t, m.WritePoint(OutcomePoint(o)))
	require.NoError(t, m.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)

	line := strings.TrimSpace(string(data))
	assert.True(t, strings.HasPrefix(line, "replication,result=applied,type=waypoint_add "), line)
	assert.Contains(t, line, `player="`+o.Player.String()+`"`)
	assert.True(t, strings.HasSuffix(line, " 1700000000000000000"), line)
}

func TestWritePoint_NoBackend(t *testing.T) {
	m := NewManager(zerolog.Nop(), "")
	err := m.WritePoint(influxdb2_write.NewPointWithMeasurement("x").AddField("v", 1))
	assert.Error(t, err)
}

func TestOutcomePoint(t *testing.T) {
	o := hub.Outcome{
		Type:   "waypoint_delete",
		Player: uuid.New(),
		Reason: hub.ReasonNotPermitted,
		Time:   time.Unix(10, 0),
	}
	line := influxdb2_write.PointToLineProtocol(OutcomePoint(o), time.Second)

	assert.Contains(t, line, "result=rejected")
	assert.Contains(t, line, `reason=not\ owner`)
	assert.NotContains(t, line, "waypoint=", "nil ids are omitted")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(line), " 10"), line)
}

func TestRecorder_FlushDrainsQueue(t *testing.T) {
	w := &memWriter{}
	r := NewRecorder(w, nil)

	for i := 0; i < 5; i++ {
		r.Record(hub.Outcome{Type: "waypoint_add", Applied: true, Time: time.Now()})
	}
	assert.Equal(t, 5, r.Pending())

	assert.Equal(t, 5, r.Flush())
	assert.Equal(t, 0, r.Pending())
	assert.Equal(t, 5, w.count())
	assert.Equal(t, 0, r.Flush())
}

func TestRecorder_ReportsErrors(t *testing.T) {
	var errs []error
	r := NewRecorder(&memWriter{fail: true}, func(err error) { errs = append(errs, err) })

	r.Record(hub.Outcome{Type: "waypoint_add"})
	r.Record(hub.Outcome{Type: "waypoint_add"})
	assert.Equal(t, 0, r.Flush())
	assert.Len(t, errs, 2)
}

func TestRecorder_RunFlushesOnStop(t *testing.T) {
	w := &memWriter{}
	r := NewRecorder(w, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.Run(ctx, time.Hour)
		close(done)
	}()

	r.Record(hub.Outcome{Type: "waypoint_update", Applied: true})
	cancel()
	<-done

	assert.Equal(t, 1, w.count())
}
