package dispatcher

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	logger := &testLogger{}

	d, err := New(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}

	return d, logger
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	called := false
	d.Register("waypoint_test", func(e Event) (any, error) {
		called = true
		return "result", nil
	})

	result, err := d.Dispatch(Event{Command: "waypoint_test", Payload: "abc"})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
	if result != "result" {
		t.Errorf("expected 'result', got %v", result)
	}
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(Event{Command: "waypoint_unknown"})

	if err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)

	d.Register("waypoint_buffered", func(e Event) (any, error) {
		processed.Add(1)
		wg.Done()
		return nil, nil
	}, Buffered(100))

	// Dispatch 3 events
	for i := 0; i < 3; i++ {
		result, err := d.Dispatch(Event{Command: "waypoint_buffered"})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if result != "queued" {
			t.Errorf("expected 'queued', got %v", result)
		}
	}

	// Wait for processing
	wg.Wait()

	if processed.Load() != 3 {
		t.Errorf("expected 3 processed, got %d", processed.Load())
	}
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	// Block the handler so queue fills up
	block := make(chan struct{})
	d.Register("waypoint_full", func(e Event) (any, error) {
		<-block
		return nil, nil
	}, Buffered(2))

	// Fill the queue (2 items) + 1 being processed
	d.Dispatch(Event{Command: "waypoint_full"}) // being processed
	d.Dispatch(Event{Command: "waypoint_full"}) // queued
	d.Dispatch(Event{Command: "waypoint_full"}) // queued

	// This should be dropped
	_, err := d.Dispatch(Event{Command: "waypoint_full"})

	if err == nil {
		t.Error("expected error when queue is full")
	}

	close(block)
}

func TestDispatcher_BufferedBlocking(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	d.Register("waypoint_blocking", func(e Event) (any, error) {
		<-block
		return nil, nil
	}, Buffered(1), Blocking())

	// First event starts processing
	d.Dispatch(Event{Command: "waypoint_blocking"})
	// Second event fills the queue
	d.Dispatch(Event{Command: "waypoint_blocking"})

	// Third event should block (test with timeout)
	done := make(chan struct{})
	go func() {
		d.Dispatch(Event{Command: "waypoint_blocking"})
		close(done)
	}()

	select {
	case <-done:
		t.Error("dispatch should have blocked")
	case <-time.After(50 * time.Millisecond):
		// Expected - dispatch is blocking
	}

	close(block)
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("waypoint_logged", func(e Event) (any, error) {
		return "ok", nil
	}, Logged())

	d.Dispatch(Event{Command: "waypoint_logged", Source: "player", Payload: "{}"})

	// Give time for logging
	time.Sleep(10 * time.Millisecond)

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) < 2 {
		t.Errorf("expected at least 2 log messages, got %d", len(logger.messages))
	}
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("waypoint_error", func(e Event) (any, error) {
		return nil, fmt.Errorf("test error")
	}, Logged())

	d.Dispatch(Event{Command: "waypoint_error"})

	logger.mu.Lock()
	defer logger.mu.Unlock()

	hasError := false
	for _, msg := range logger.messages {
		if len(msg) >= 5 && msg[:5] == "ERROR" {
			hasError = true
			break
		}
	}

	if !hasError {
		t.Error("expected error log message")
	}
}

func TestDispatcher_HasHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register("waypoint_exists", func(e Event) (any, error) { return nil, nil })

	if !d.HasHandler("waypoint_exists") {
		t.Error("expected handler to exist")
	}

	if d.HasHandler("waypoint_not_exists") {
		t.Error("expected handler to not exist")
	}
}

func TestDispatcher_CombinedOptions(t *testing.T) {
	d, logger := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)

	d.Register("waypoint_combined", func(e Event) (any, error) {
		processed.Add(1)
		wg.Done()
		return "done", nil
	}, Buffered(100), Logged())
	t.Cleanup(d.Close)

	result, err := d.Dispatch(Event{Command: "waypoint_combined"})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if result != "queued" {
		t.Errorf("expected 'queued', got %v", result)
	}

	wg.Wait()
	d.Flush()

	if processed.Load() != 1 {
		t.Errorf("expected 1 processed, got %d", processed.Load())
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) < 2 {
		t.Errorf("expected log messages, got %d", len(logger.messages))
	}
}

func TestDispatcher_LanePreservesOrderAcrossCommands(t *testing.T) {
	d, _ := newTestDispatcher(t)
	t.Cleanup(d.Close)

	var mu sync.Mutex
	var seen []string
	record := func(e Event) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e.Command+":"+e.Payload)
		return nil, nil
	}
	d.Register("waypoint_add", record, Lane("hub"), Buffered(64), Blocking())
	d.Register("waypoint_delete", record, Lane("hub"), Blocking())

	var want []string
	for i := 0; i < 20; i++ {
		cmd := "waypoint_add"
		if i%3 == 0 {
			cmd = "waypoint_delete"
		}
		payload := fmt.Sprint(i)
		want = append(want, cmd+":"+payload)
		if _, err := d.Dispatch(Event{Command: cmd, Payload: payload}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	d.Flush()

	mu.Lock()
	defer mu.Unlock()
	if fmt.Sprint(seen) != fmt.Sprint(want) {
		t.Errorf("events out of order:\n got %v\nwant %v", seen, want)
	}
}

func TestDispatcher_LaneRunsOneAtATime(t *testing.T) {
	d, _ := newTestDispatcher(t)
	t.Cleanup(d.Close)

	var running, maxRunning atomic.Int32
	h := func(e Event) (any, error) {
		n := running.Add(1)
		for {
			m := maxRunning.Load()
			if n <= m || maxRunning.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		running.Add(-1)
		return nil, nil
	}
	d.Register("a", h, Lane("shared"), Buffered(32), Blocking())
	d.Register("b", h, Lane("shared"), Blocking())

	for i := 0; i < 10; i++ {
		d.Dispatch(Event{Command: "a"})
		d.Dispatch(Event{Command: "b"})
	}
	d.Flush()

	if maxRunning.Load() != 1 {
		t.Errorf("expected handlers on one lane to run serially, saw %d at once", maxRunning.Load())
	}
}

func TestDispatcher_CloseDrainsAndRejects(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	d.Register("work", func(e Event) (any, error) {
		time.Sleep(time.Millisecond)
		processed.Add(1)
		return nil, nil
	}, Lane("worker"), Buffered(10))

	for i := 0; i < 5; i++ {
		d.Dispatch(Event{Command: "work"})
	}
	d.Close()

	if processed.Load() != 5 {
		t.Errorf("expected queued events to drain, got %d", processed.Load())
	}

	_, err := d.Dispatch(Event{Command: "work"})
	if !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	// Second close and flush after close are no-ops
	d.Close()
	d.Flush()
}

func TestDispatcher_PanicDoesNotKillLane(t *testing.T) {
	d, logger := newTestDispatcher(t)
	t.Cleanup(d.Close)

	var processed atomic.Int32
	d.Register("boom", func(e Event) (any, error) {
		panic("bad payload")
	}, Lane("l"), Buffered(4))
	d.Register("ok", func(e Event) (any, error) {
		processed.Add(1)
		return nil, nil
	}, Lane("l"))

	d.Dispatch(Event{Command: "boom"})
	d.Dispatch(Event{Command: "ok"})
	d.Flush()

	if processed.Load() != 1 {
		t.Errorf("expected lane to keep running after panic")
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.messages) == 0 {
		t.Error("expected panic to be logged")
	}
}

func TestDispatcher_DispatchSetsTimestamp(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got time.Time
	d.Register("ts", func(e Event) (any, error) {
		got = e.Timestamp
		return nil, nil
	})
	d.Dispatch(Event{Command: "ts"})

	if got.IsZero() {
		t.Error("expected timestamp to be filled in")
	}
}
