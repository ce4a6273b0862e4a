package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var ErrClosed = errors.New("dispatcher closed")

// Event is one unit of work: an inbound protocol message, a peer joining
// or leaving, or a local command.
type Event struct {
	Command   string
	Source    string // peer or player id, empty for local events
	Payload   string
	Args      []string
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
	lane       string
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Lane runs the handler on a named queue. Handlers sharing a lane share one
// goroutine, so their events are processed one at a time in arrival order.
// The first registration on a lane sets its buffer size.
func Lane(name string) Option {
	return func(c *config) {
		c.lane = name
	}
}

type item struct {
	event   Event
	handler HandlerFunc
	barrier chan struct{}
}

type lane struct {
	name string
	ch   chan item
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger

	// OTEL metrics
	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter
	failed    metric.Int64Counter

	// Lanes are tracked for the gauge callback, Flush and Close
	mu     sync.RWMutex
	lanes  map[string]*lane
	closed bool
	wg     sync.WaitGroup
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		lanes:    make(map[string]*lane),
		logger:   logger,
	}

	// Get meter from global OTel provider (returns no-op if not configured)
	m := otel.Meter("github.com/caleywoods/wayfindr/internal/dispatcher")

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of events waiting per lane"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for name, l := range d.lanes {
				o.ObserveInt64(d.queueSize, int64(len(l.ch)),
					metric.WithAttributes(attribute.String("lane", name)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.events.processed",
		metric.WithDescription("Total events processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"dispatcher.events.dropped",
		metric.WithDescription("Total events dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	d.failed, err = m.Int64Counter(
		"dispatcher.events.failed",
		metric.WithDescription("Total queued events whose handler returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given command with optional configuration.
// Registration is not safe to run concurrently with Dispatch.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	if cfg.logged {
		handler = d.withLogging(command, handler)
	}

	if cfg.lane != "" || cfg.bufferSize > 0 {
		name := cfg.lane
		if name == "" {
			name = command
		}
		size := cfg.bufferSize
		if size <= 0 {
			size = 1
		}
		handler = d.withLane(d.lane(name, size), command, cfg.blocking, handler)
	}

	d.handlers[command] = handler
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	h, ok := d.handlers[e.Command]
	if !ok {
		return nil, fmt.Errorf("unknown command: %s", e.Command)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return h(e)
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	_, ok := d.handlers[command]
	return ok
}

// Flush blocks until every event queued before the call has been handled.
func (d *Dispatcher) Flush() {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return
	}
	barriers := make([]chan struct{}, 0, len(d.lanes))
	for _, l := range d.lanes {
		b := make(chan struct{})
		l.ch <- item{barrier: b}
		barriers = append(barriers, b)
	}
	d.mu.RUnlock()

	for _, b := range barriers {
		<-b
	}
}

// Close stops accepting events, drains every lane and waits for the lane
// goroutines to exit.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, l := range d.lanes {
		close(l.ch)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) lane(name string, size int) *lane {
	d.mu.Lock()
	defer d.mu.Unlock()

	if l, ok := d.lanes[name]; ok {
		return l
	}
	l := &lane{name: name, ch: make(chan item, size)}
	d.lanes[name] = l

	d.wg.Add(1)
	go d.run(l)
	return l
}

func (d *Dispatcher) run(l *lane) {
	defer d.wg.Done()
	for it := range l.ch {
		if it.barrier != nil {
			close(it.barrier)
			continue
		}
		d.handle(l, it)
	}
}

func (d *Dispatcher) handle(l *lane, it item) {
	attrs := metric.WithAttributes(
		attribute.String("lane", l.name),
		attribute.String("command", it.event.Command),
	)
	defer func() {
		if r := recover(); r != nil {
			d.failed.Add(context.Background(), 1, attrs)
			d.logger.Error("handler panicked", "command", it.event.Command, "lane", l.name, "panic", r)
		}
	}()

	if _, err := it.handler(it.event); err != nil {
		d.failed.Add(context.Background(), 1, attrs)
	}
	d.processed.Add(context.Background(), 1, attrs)
}

func (d *Dispatcher) withLane(l *lane, command string, blocking bool, h HandlerFunc) HandlerFunc {
	cmdAttr := metric.WithAttributes(
		attribute.String("lane", l.name),
		attribute.String("command", command),
	)

	return func(e Event) (any, error) {
		d.mu.RLock()
		defer d.mu.RUnlock()
		if d.closed {
			return nil, ErrClosed
		}

		it := item{event: e, handler: h}
		if blocking {
			l.ch <- it
			return "queued", nil
		}
		select {
		case l.ch <- it:
			return "queued", nil
		default:
			d.dropped.Add(context.Background(), 1, cmdAttr)
			return nil, fmt.Errorf("queue full: %s", l.name)
		}
	}
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "command", command, "source", e.Source, "payload", len(e.Payload))

		result, err := h(e)

		if err != nil {
			d.logger.Error("event failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "command", command, "duration", time.Since(start))
		}

		return result, err
	}
}
