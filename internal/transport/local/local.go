// Package local connects client agents to a hub inside one process. It is
// used for single-player hosting and in tests.
package local

import (
	"errors"
	"sync"

	"github.com/caleywoods/wayfindr/internal/channel"
	"github.com/caleywoods/wayfindr/internal/transport"
	"github.com/caleywoods/wayfindr/pkg/streaming"
	"github.com/google/uuid"
)

// DefaultQueueSize is the per-direction buffer of a Link.
const DefaultQueueSize = 256

// Conn delivers envelopes to a receive function on its own goroutine, in
// send order.
type Conn struct {
	ch      *channel.Buffered[streaming.Envelope]
	deliver func(streaming.Envelope)
	done    chan struct{}
}

// NewConn starts a Conn with the given buffer size.
func NewConn(size int, deliver func(streaming.Envelope)) *Conn {
	if size <= 0 {
		size = DefaultQueueSize
	}
	c := &Conn{
		ch:      channel.NewBuffered[streaming.Envelope](size),
		deliver: deliver,
		done:    make(chan struct{}),
	}
	go c.pump()
	return c
}

func (c *Conn) pump() {
	defer close(c.done)
	for env := range c.ch.Receive() {
		c.deliver(env)
	}
}

// Send enqueues env without blocking.
func (c *Conn) Send(env streaming.Envelope) error {
	switch err := c.ch.Offer(env); {
	case errors.Is(err, channel.ErrClosed):
		return transport.ErrClosed
	case errors.Is(err, channel.ErrFull):
		return transport.ErrQueueFull
	default:
		return err
	}
}

// Pending returns the number of envelopes not yet delivered.
func (c *Conn) Pending() int {
	return c.ch.Len()
}

// Close stops accepting envelopes and waits until the queued ones are
// delivered.
func (c *Conn) Close() error {
	c.ch.Close()
	<-c.done
	return nil
}

// Link is one client's connection to an in-process hub.
type Link struct {
	player   uuid.UUID
	conn     transport.ConnID
	hub      transport.Hub
	toHub    *Conn
	toClient *Conn
	once     sync.Once
}

// Dial joins player to hub. Envelopes from the hub are passed to receive;
// the returned Link sends envelopes to the hub.
func Dial(hub transport.Hub, player uuid.UUID, receive func(streaming.Envelope)) (*Link, error) {
	l := &Link{
		player:   player,
		hub:      hub,
		toClient: NewConn(DefaultQueueSize, receive),
	}
	l.toHub = NewConn(DefaultQueueSize, func(env streaming.Envelope) {
		hub.Receive(player, env)
	})

	conn, err := hub.Join(player, l.toClient)
	if err != nil {
		_ = l.toHub.Close()
		_ = l.toClient.Close()
		return nil, err
	}
	l.conn = conn
	return l, nil
}

// Send enqueues env for the hub.
func (l *Link) Send(env streaming.Envelope) error {
	return l.toHub.Send(env)
}

// Close flushes pending envelopes to the hub and leaves it.
func (l *Link) Close() error {
	l.once.Do(func() {
		_ = l.toHub.Close()
		l.hub.Leave(l.player, l.conn)
		_ = l.toClient.Close()
	})
	return nil
}
