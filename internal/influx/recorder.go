package influx

import (
	"context"
	"time"

	"github.com/caleywoods/wayfindr/internal/hub"
	"github.com/caleywoods/wayfindr/internal/queue"
	"github.com/google/uuid"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement is the name of replication outcome points.
const Measurement = "replication"

// DefaultBacklog bounds the outcomes kept between flushes.
const DefaultBacklog = 10_000

// PointWriter accepts points. *Manager implements it.
type PointWriter interface {
	WritePoint(point *influxdb2_write.Point) error
}

// Recorder buffers hub outcomes and writes them in batches. It implements
// hub.Recorder.
type Recorder struct {
	writer  PointWriter
	pending *queue.Queue[hub.Outcome]
	onError func(error)
}

var _ hub.Recorder = (*Recorder)(nil)

// NewRecorder creates a Recorder writing to w. onError may be nil.
func NewRecorder(w PointWriter, onError func(error)) *Recorder {
	if onError == nil {
		onError = func(error) {}
	}
	return &Recorder{
		writer:  w,
		pending: queue.New[hub.Outcome](DefaultBacklog),
		onError: onError,
	}
}

// Record queues o. It never blocks on I/O.
func (r *Recorder) Record(o hub.Outcome) {
	r.pending.Push(o)
}

// Pending returns the number of queued outcomes.
func (r *Recorder) Pending() int {
	return r.pending.Len()
}

// Dropped returns how many outcomes were discarded because the backlog
// was full.
func (r *Recorder) Dropped() uint64 {
	return r.pending.Dropped()
}

// Flush writes every queued outcome and returns how many were written.
func (r *Recorder) Flush() int {
	written := 0
	for _, o := range r.pending.GetAndEmpty() {
		if err := r.writer.WritePoint(OutcomePoint(o)); err != nil {
			r.onError(err)
			continue
		}
		written++
	}
	return written
}

// Run flushes every interval until ctx is done, then flushes once more.
func (r *Recorder) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Flush()
			return
		case <-ticker.C:
			r.Flush()
		}
	}
}

// OutcomePoint converts o into a point. Message type, result and reason
// are tags; ids are fields to keep series cardinality low.
func OutcomePoint(o hub.Outcome) *influxdb2_write.Point {
	result := "applied"
	if !o.Applied {
		result = "rejected"
	}
	p := influxdb2_write.NewPointWithMeasurement(Measurement).
		AddTag("type", o.Type).
		AddTag("result", result).
		AddField("player", o.Player.String()).
		AddField("count", 1).
		SetTime(o.Time)
	if o.Reason != "" {
		p.AddTag("reason", o.Reason)
	}
	if o.ID != uuid.Nil {
		p.AddField("waypoint", o.ID.String())
	}
	return p.SortTags().SortFields()
}
