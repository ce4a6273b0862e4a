package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingHandler struct {
	slog.Handler
}

func (failingHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("sink down") }

func textHandler(buf *bytes.Buffer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(buf, &slog.HandlerOptions{Level: level})
}

func TestFanout_WritesEveryEnabledHandler(t *testing.T) {
	var info, debug bytes.Buffer
	f := newFanout(nil, textHandler(&info, slog.LevelInfo), nil, textHandler(&debug, slog.LevelDebug))
	require.Len(t, f.handlers, 2)

	logger := slog.New(f)
	logger.Debug("detail")
	logger.Info("summary")

	assert.NotContains(t, info.String(), "detail")
	assert.Contains(t, info.String(), "summary")
	assert.Contains(t, debug.String(), "detail")
	assert.Contains(t, debug.String(), "summary")
}

func TestFanout_Enabled(t *testing.T) {
	ctx := context.Background()
	assert.False(t, newFanout(nil).Enabled(ctx, slog.LevelError))

	f := newFanout(nil, textHandler(&bytes.Buffer{}, slog.LevelWarn))
	assert.False(t, f.Enabled(ctx, slog.LevelInfo))
	assert.True(t, f.Enabled(ctx, slog.LevelWarn))
}

func TestFanout_DynamicAttrs(t *testing.T) {
	var buf bytes.Buffer
	key := "sp-first"
	f := newFanout(func() []slog.Attr {
		if key == "" {
			return nil
		}
		return []slog.Attr{slog.String("session", key)}
	}, textHandler(&buf, slog.LevelInfo))

	logger := slog.New(f).With("component", "hub")
	logger.Info("one")
	key = ""
	logger.Info("two")

	out := buf.String()
	assert.Contains(t, out, "msg=one component=hub session=sp-first")
	assert.Contains(t, out, "msg=two component=hub\n")
}

func TestFanout_Groups(t *testing.T) {
	var buf bytes.Buffer
	f := newFanout(func() []slog.Attr {
		return []slog.Attr{slog.Int("peers", 2)}
	}, textHandler(&buf, slog.LevelInfo))

	assert.Same(t, f, f.WithGroup(""))

	slog.New(f).WithGroup("msg").Info("applied", "type", "waypoint_add")
	assert.Contains(t, buf.String(), "msg.type=waypoint_add")
	assert.Contains(t, buf.String(), "msg.peers=2")
}

func TestFanout_FailingSinkDoesNotStopOthers(t *testing.T) {
	var buf bytes.Buffer
	f := newFanout(nil, failingHandler{}, textHandler(&buf, slog.LevelInfo))

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "still written", 0)
	err := f.Handle(context.Background(), r)

	assert.EqualError(t, err, "sink down")
	assert.Contains(t, buf.String(), "still written")
}
