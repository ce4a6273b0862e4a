package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caleywoods/wayfindr/internal/storage"
)

// DefaultInterval is used when Dependencies.Interval is not positive.
const DefaultInterval = 10 * time.Second

// Status is a point-in-time view of the server.
type Status struct {
	Time    time.Time     `json:"time"`
	World   string        `json:"world"`
	Uptime  string        `json:"uptime"`
	Peers   int           `json:"peers"`
	Shared  int           `json:"shared"`
	Storage storage.Stats `json:"storage"`
	Pending int           `json:"pendingOutcomes"`
	Dropped uint64        `json:"droppedOutcomes"`
}

// Dependencies holds the probes the monitor samples. Nil probes read as
// zero.
type Dependencies struct {
	World    string
	Peers    func() int
	Shared   func() int
	Storage  func() storage.Stats
	Pending  func() int
	Dropped  func() uint64
	Path     string
	Interval time.Duration
	Logger   *slog.Logger
}

// Service manages status monitoring
type Service struct {
	deps    Dependencies
	started time.Time

	mu        sync.RWMutex
	isRunning bool
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		deps:    deps,
		started: time.Now(),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Status samples every probe.
func (s *Service) Status() Status {
	st := Status{
		Time:   time.Now(),
		World:  s.deps.World,
		Uptime: time.Since(s.started).Truncate(time.Second).String(),
	}
	if s.deps.Peers != nil {
		st.Peers = s.deps.Peers()
	}
	if s.deps.Shared != nil {
		st.Shared = s.deps.Shared()
	}
	if s.deps.Storage != nil {
		st.Storage = s.deps.Storage()
	}
	if s.deps.Pending != nil {
		st.Pending = s.deps.Pending()
	}
	if s.deps.Dropped != nil {
		st.Dropped = s.deps.Dropped()
	}
	return st
}

// WriteStatus replaces the status file with the current Status.
func (s *Service) WriteStatus() error {
	if s.deps.Path == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.Status(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}
	tmp := s.deps.Path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.deps.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create status dir: %w", err)
	}
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write status file: %w", err)
	}
	return os.Rename(tmp, s.deps.Path)
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})

	go s.run(s.stopChan, s.done)
	return nil
}

func (s *Service) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	logger := s.deps.Logger
	logger.Debug("Starting status monitor", "path", s.deps.Path, "interval", s.deps.Interval)

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()

	for {
		if err := s.WriteStatus(); err != nil {
			logger.Error("Error writing status file", "error", err)
		}
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

// Stop stops the status monitor and waits for the last write.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
