// Package hub is the server side of waypoint replication. It owns the
// shared set, checks ownership on every inbound change and broadcasts
// accepted changes to all connected peers.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/caleywoods/wayfindr/internal/dispatcher"
	"github.com/caleywoods/wayfindr/internal/registry"
	"github.com/caleywoods/wayfindr/internal/transport"
	"github.com/caleywoods/wayfindr/pkg/core"
	"github.com/caleywoods/wayfindr/pkg/streaming"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Lane is the dispatcher lane every hub event runs on.
const Lane = "hub"

const (
	cmdJoin  = "hub_join"
	cmdLeave = "hub_leave"

	defaultQueueSize = 1024
)

// Rejection reasons.
const (
	ReasonDecode       = "undecodable payload"
	ReasonUnknown      = "unknown waypoint"
	ReasonNotPermitted = "not owner"
	ReasonUnsupported  = "unsupported message"
)

var errRejected = errors.New("rejected")

// Outcome describes one handled inbound message.
type Outcome struct {
	Type    string
	Player  uuid.UUID
	ID      uuid.UUID
	Applied bool
	Reason  string
	Time    time.Time
}

// Recorder receives every Outcome. Record must not block.
type Recorder interface {
	Record(o Outcome)
}

// Options configure a Hub.
type Options struct {
	Operators        []uuid.UUID
	NotifyRejections bool
	QueueSize        int
	Recorder         Recorder
	Logger           *slog.Logger
}

// Hub implements transport.Hub.
type Hub struct {
	reg       *registry.Registry
	d         *dispatcher.Dispatcher
	operators map[uuid.UUID]struct{}
	notify    bool
	recorder  Recorder
	logger    *slog.Logger

	mu       sync.RWMutex
	peers    map[uuid.UUID]peer
	lastConn transport.ConnID

	applied  metric.Int64Counter
	rejected metric.Int64Counter
}

var _ transport.Hub = (*Hub)(nil)

type peer struct {
	conn   transport.ConnID
	sender transport.Sender
}

// New registers the hub's handlers on d. reg must already hold the
// server's session (see session.ServerKey).
func New(reg *registry.Registry, d *dispatcher.Dispatcher, opts Options) (*Hub, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}

	h := &Hub{
		reg:       reg,
		d:         d,
		operators: make(map[uuid.UUID]struct{}, len(opts.Operators)),
		notify:    opts.NotifyRejections,
		recorder:  opts.Recorder,
		logger:    opts.Logger,
		peers:     make(map[uuid.UUID]peer),
	}
	for _, op := range opts.Operators {
		h.operators[op] = struct{}{}
	}

	if err := h.initMetrics(); err != nil {
		return nil, err
	}

	lane := []dispatcher.Option{dispatcher.Lane(Lane), dispatcher.Buffered(opts.QueueSize)}
	// Membership changes must never be dropped.
	membership := []dispatcher.Option{dispatcher.Lane(Lane), dispatcher.Buffered(opts.QueueSize), dispatcher.Blocking()}

	d.Register(cmdJoin, h.handleJoin, membership...)
	d.Register(cmdLeave, h.handleLeave, membership...)
	d.Register(streaming.TypeAdd, h.handleAdd, lane...)
	d.Register(streaming.TypeUpdate, h.handleUpdate, lane...)
	d.Register(streaming.TypeDelete, h.handleDelete, lane...)
	d.Register(streaming.TypeSync, h.handleUnsupported, lane...)
	d.Register(streaming.TypeReject, h.handleUnsupported, lane...)

	return h, nil
}

func (h *Hub) initMetrics() error {
	m := otel.Meter("github.com/caleywoods/wayfindr/internal/hub")
	var err error

	h.applied, err = m.Int64Counter(
		"hub.messages.applied",
		metric.WithDescription("Inbound replication messages applied and broadcast"),
	)
	if err != nil {
		return fmt.Errorf("creating applied counter: %w", err)
	}

	h.rejected, err = m.Int64Counter(
		"hub.messages.rejected",
		metric.WithDescription("Inbound replication messages dropped"),
	)
	if err != nil {
		return fmt.Errorf("creating rejected counter: %w", err)
	}

	peers, err := m.Int64ObservableGauge(
		"hub.peers",
		metric.WithDescription("Connected peers"),
	)
	if err != nil {
		return fmt.Errorf("creating peers gauge: %w", err)
	}
	_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		o.ObserveInt64(peers, int64(h.Peers()))
		return nil
	}, peers)
	if err != nil {
		return fmt.Errorf("registering peers callback: %w", err)
	}
	return nil
}

// Join adds a peer and queues a full Sync for it. A peer that joins again
// replaces its earlier connection.
func (h *Hub) Join(player uuid.UUID, s transport.Sender) (transport.ConnID, error) {
	h.mu.Lock()
	h.lastConn++
	conn := h.lastConn
	if _, ok := h.peers[player]; ok {
		h.logger.Info("Peer reconnected, replacing connection", "player", player)
	}
	h.peers[player] = peer{conn: conn, sender: s}
	h.mu.Unlock()

	_, err := h.d.Dispatch(connEvent(cmdJoin, player, conn))
	if err != nil {
		h.removePeer(player, conn)
		return 0, fmt.Errorf("join %s: %w", player, err)
	}
	return conn, nil
}

// Leave removes the peer's connection once the messages it sent before
// leaving are handled. A connection that was already replaced is ignored.
func (h *Hub) Leave(player uuid.UUID, conn transport.ConnID) {
	if _, err := h.d.Dispatch(connEvent(cmdLeave, player, conn)); err != nil {
		h.removePeer(player, conn)
	}
}

func connEvent(cmd string, player uuid.UUID, conn transport.ConnID) dispatcher.Event {
	return dispatcher.Event{
		Command: cmd,
		Source:  player.String(),
		Args:    []string{strconv.FormatUint(uint64(conn), 10)},
	}
}

// Receive queues an inbound envelope from peer.
func (h *Hub) Receive(peer uuid.UUID, env streaming.Envelope) {
	if !h.d.HasHandler(env.Type) {
		h.logger.Warn("Dropping message of unknown type", "player", peer, "type", env.Type)
		h.rejected.Add(context.Background(), 1, metric.WithAttributes(attribute.String("type", env.Type)))
		return
	}
	_, err := h.d.Dispatch(dispatcher.Event{
		Command: env.Type,
		Source:  peer.String(),
		Payload: env.Payload,
	})
	if err != nil {
		h.logger.Warn("Dropping message", "player", peer, "type", env.Type, "error", err)
		h.rejected.Add(context.Background(), 1, metric.WithAttributes(attribute.String("type", env.Type)))
	}
}

// Peers returns the number of connected peers.
func (h *Hub) Peers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// Snapshot returns the shared set.
func (h *Hub) Snapshot() []core.Waypoint {
	return h.reg.Shared()
}

// IsOperator reports whether player may change any waypoint.
func (h *Hub) IsOperator(player uuid.UUID) bool {
	_, ok := h.operators[player]
	return ok
}

// removePeer deletes player only while conn is still its current connection.
func (h *Hub) removePeer(player uuid.UUID, conn transport.ConnID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := h.peers[player]; ok && p.conn == conn {
		delete(h.peers, player)
		return true
	}
	return false
}

func (h *Hub) peer(id uuid.UUID) (peer, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.peers[id]
	return p, ok
}

// broadcast sends env to every peer, including the originator.
func (h *Hub) broadcast(env streaming.Envelope) {
	h.mu.RLock()
	targets := make(map[uuid.UUID]transport.Sender, len(h.peers))
	for id, p := range h.peers {
		targets[id] = p.sender
	}
	h.mu.RUnlock()

	for id, s := range targets {
		if err := s.Send(env); err != nil {
			h.logger.Warn("Broadcast send failed", "player", id, "type", env.Type, "error", err)
		}
	}
}

func (h *Hub) permitted(w core.Waypoint, player uuid.UUID) bool {
	return w.OwnedBy(player) || h.IsOperator(player)
}
